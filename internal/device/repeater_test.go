package device

import (
	"testing"
	"time"
)

func repeaterConfig(id string) Config {
	cfg := DefaultConfig(TypeRepeater)
	cfg.ID = id
	cfg.MeshUpdateInterval = time.Hour
	cfg.StatusInterval = time.Hour
	return cfg
}

func TestRepeater_RelayTagsEndpoints(t *testing.T) {
	client := newFakeClient()
	d := newTestSimulator(t, repeaterConfig("rep-1"), client)
	d.Start()
	defer d.Stop()

	if err := d.Perform("relay", map[string]any{"from": "btn-3", "to": "gateway", "payload": "press"}); err != nil {
		t.Fatalf("relay: %v", err)
	}
	if err := d.Perform("relay", map[string]any{"from": "btn-3"}); err == nil {
		t.Error("relay without to should fail")
	}

	msgs := client.messages("crewcall/relay/rep-1")
	if len(msgs) != 1 {
		t.Fatalf("relay publishes = %d, want 1", len(msgs))
	}
	relay := d.Events(0)[0].Payload.(RelayPayload)
	if relay.From != "btn-3" || relay.To != "gateway" {
		t.Errorf("relay endpoints = %+v", relay)
	}
}

func TestRepeater_ChildRegistryAndPurge(t *testing.T) {
	client := newFakeClient()
	d := newTestSimulator(t, repeaterConfig("rep-1"), client)
	d.Start()
	defer d.Stop()

	base := time.Now()
	d.now = func() time.Time { return base }
	d.Perform("register_child", map[string]any{"device_id": "btn-1"})
	d.Perform("register_child", map[string]any{"device_id": "btn-2"})

	// btn-2 stays fresh via relay traffic; btn-1 goes stale.
	d.now = func() time.Time { return base.Add(2 * time.Hour) }
	d.Perform("relay", map[string]any{"from": "btn-2", "to": "gateway"})
	d.Perform("purge_children", map[string]any{"max_age_ms": float64(time.Hour.Milliseconds())})

	mesh, ok := d.Mesh()
	if !ok {
		t.Fatal("expected mesh info for repeater")
	}
	if len(mesh.Children) != 1 || mesh.Children[0] != "btn-2" {
		t.Errorf("children after purge = %v, want [btn-2]", mesh.Children)
	}

	d.Perform("unregister_child", map[string]any{"device_id": "btn-2"})
	mesh, _ = d.Mesh()
	if len(mesh.Children) != 0 {
		t.Errorf("children after unregister = %v", mesh.Children)
	}
}

func TestRepeater_SignalChangeClamped(t *testing.T) {
	client := newFakeClient()
	d := newTestSimulator(t, repeaterConfig("rep-1"), client)
	d.Start()
	defer d.Stop()

	if err := d.Perform("simulate_signal_change", map[string]any{"signal": 180.0}); err != nil {
		t.Fatalf("signal change: %v", err)
	}
	if got := d.Status().Signal; got != 100 {
		t.Errorf("signal = %v, want 100", got)
	}
	if err := d.Perform("simulate_signal_change", map[string]any{"signal": -20.0}); err != nil {
		t.Fatalf("signal change: %v", err)
	}
	if got := d.Status().Signal; got != 0 {
		t.Errorf("signal = %v, want 0", got)
	}
}

func TestRepeater_CongestionBurst(t *testing.T) {
	client := newFakeClient()
	d := newTestSimulator(t, repeaterConfig("rep-1"), client)
	d.Start()

	if err := d.Perform("simulate_congestion", map[string]any{"messages": 5.0, "duration_ms": 50.0}); err != nil {
		t.Fatalf("congestion: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(client.messages("crewcall/relay/rep-1")) >= 5 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	d.Stop()
	if n := len(client.messages("crewcall/relay/rep-1")); n != 5 {
		t.Errorf("congestion publishes = %d, want 5", n)
	}
}

func TestRepeater_FirmwareUpdate(t *testing.T) {
	client := newFakeClient()
	d := newTestSimulator(t, repeaterConfig("rep-1"), client)
	d.Start()
	defer d.Stop()

	before, _ := d.Mesh()
	if err := d.Perform("simulate_firmware_update", map[string]any{"duration_ms": 20.0}); err != nil {
		t.Fatalf("firmware update: %v", err)
	}
	// Commands are rejected during the busy period.
	if err := d.Perform("relay", map[string]any{"from": "a", "to": "b"}); err == nil {
		t.Error("expected rejection while firmware update in progress")
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if mesh, _ := d.Mesh(); mesh.Firmware != before.Firmware {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	after, _ := d.Mesh()
	if after.Firmware == before.Firmware {
		t.Fatalf("firmware version unchanged: %s", after.Firmware)
	}
	if got := d.Status().Firmware; got != after.Firmware {
		t.Errorf("status firmware = %q, want %q", got, after.Firmware)
	}
}

func TestRepeater_FormMesh(t *testing.T) {
	client := newFakeClient()
	d := newTestSimulator(t, repeaterConfig("rep-1"), client)
	d.Start()
	defer d.Stop()

	err := d.Perform("form_mesh", map[string]any{"peers": []any{"rep-2", "rep-3", "rep-4"}})
	if err != nil {
		t.Fatalf("form_mesh: %v", err)
	}
	mesh, _ := d.Mesh()
	if mesh.Role != MeshRoleCoordinator {
		t.Errorf("role = %s, want coordinator", mesh.Role)
	}
	if len(mesh.Peers) != 3 {
		t.Errorf("peers = %v", mesh.Peers)
	}

	// One mesh event for self plus one per peer with increasing hops.
	var hops []int
	for _, e := range d.Events(0) {
		if e.Kind != KindMeshUpdate {
			continue
		}
		hops = append(hops, e.Payload.(MeshPayload).HopCount)
	}
	if len(hops) != 4 {
		t.Fatalf("mesh events = %d, want 4", len(hops))
	}
	for i := 1; i < len(hops); i++ {
		if hops[i] != hops[i-1]+1 {
			t.Errorf("hop counts not increasing: %v", hops)
			break
		}
	}

	if err := d.Perform("form_mesh", map[string]any{"peers": []any{}}); err == nil {
		t.Error("form_mesh without peers should fail")
	}
}

func TestNextPatchVersion(t *testing.T) {
	if got := nextPatchVersion("1.2.3"); got != "1.2.4" {
		t.Errorf("nextPatchVersion = %s", got)
	}
	if got := nextPatchVersion("weird"); got != "weird.1" {
		t.Errorf("fallback = %s", got)
	}
}
