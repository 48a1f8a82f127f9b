package scenario

// BuiltIn returns predefined scenarios modeling common service-traffic shapes.
func BuiltIn() map[string]Scenario {
	return map[string]Scenario{
		"dinner-rush": {
			Name:        "Dinner Rush",
			Description: "Evening service peak: the whole fleet comes online, holds under sustained call-button traffic, then winds down.",
			Phases: []Phase{
				{
					Name:        "warmup",
					Description: "Crew watches and repeaters come online ahead of service.",
					Type:        "load",
					Load:        &LoadPhase{DurationS: 60, RampUpS: 30, MaxDevices: 30, DeviceTypes: []string{"watch", "repeater"}},
				},
				{
					Name:        "peak",
					Description: "Guests call from every cabin and deck at once.",
					Type:        "load",
					Load:        &LoadPhase{DurationS: 300, RampUpS: 60, MaxDevices: 120},
				},
				{
					Name:        "wind-down",
					Description: "Service tapers off.",
					Type:        "pause",
					PauseS:      60,
				},
			},
		},
		"anchorage-churn": {
			Name:        "Anchorage Churn",
			Description: "Devices repeatedly drop off and rejoin the mesh as the vessel swings at anchor.",
			Phases: []Phase{
				{
					Name:        "churn",
					Description: "Repeated connect and disconnect cycles across the fleet.",
					Type:        "lifecycle",
					Lifecycle:   &LifecyclePhase{Cycles: 5, DeviceCount: 30, ConnectS: 60, DisconnectS: 15},
				},
				{
					Name:   "settle",
					Type:   "pause",
					PauseS: 30,
				},
				{
					Name:        "recovery",
					Description: "Full fleet returns to steady state.",
					Type:        "load",
					Load:        &LoadPhase{DurationS: 120, RampUpS: 20, MaxDevices: 30},
				},
			},
		},
		"charter-turnaround": {
			Name:        "Charter Turnaround",
			Description: "Between charters: the fleet is torn down, the boat sits quiet, and the next guest fleet is provisioned.",
			Phases: []Phase{
				{
					Name:        "teardown",
					Description: "Departing charter's devices cycle off.",
					Type:        "lifecycle",
					Lifecycle:   &LifecyclePhase{Cycles: 1, DeviceCount: 60, ConnectS: 30, DisconnectS: 0},
				},
				{
					Name:   "quiet-ship",
					Type:   "pause",
					PauseS: 120,
				},
				{
					Name:        "provisioning",
					Description: "New charter's devices ramp in slowly for burn-in.",
					Type:        "load",
					Load:        &LoadPhase{DurationS: 600, RampUpS: 300, MaxDevices: 60},
				},
			},
		},
	}
}
