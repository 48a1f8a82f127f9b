package transport

// Topics builds the per-device topic namespace under a configurable base,
// e.g. base "crewcall" yields "crewcall/status/btn-001".
type Topics struct {
	Base string
}

// DefaultBase is used when no topic base is configured.
const DefaultBase = "crewcall"

// NewTopics returns a Topics helper, falling back to DefaultBase.
func NewTopics(base string) Topics {
	if base == "" {
		base = DefaultBase
	}
	return Topics{Base: base}
}

// Status is the periodic device status topic.
func (t Topics) Status(deviceID string) string {
	return t.Base + "/status/" + deviceID
}

// Command is the inbound command topic for one device.
func (t Topics) Command(deviceID string) string {
	return t.Base + "/command/" + deviceID
}

// Response is the topic for command responses and workflow updates.
func (t Topics) Response(deviceID string) string {
	return t.Base + "/response/" + deviceID
}

// Relay is the mesh relay topic for a repeater.
func (t Topics) Relay(repeaterID string) string {
	return t.Base + "/relay/" + repeaterID
}

// Event is a device event sub-topic, e.g. Event(id, "press").
func (t Topics) Event(deviceID, kind string) string {
	return t.Base + "/" + deviceID + "/event/" + kind
}

// Press is the button press event topic.
func (t Topics) Press(deviceID string) string {
	return t.Event(deviceID, "press")
}

// Emergency is the dedicated emergency topic.
func (t Topics) Emergency(deviceID string) string {
	return t.Base + "/" + deviceID + "/emergency"
}

// VoiceReady is the voice-ready announcement topic.
func (t Topics) VoiceReady(deviceID string) string {
	return t.Event(deviceID, "voice_ready")
}
