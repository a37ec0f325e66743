package scenario

import "time"

// BuiltIn returns the predefined scenarios.
func BuiltIn() map[string]Scenario {
	return map[string]Scenario{
		"quiet": {
			Name:        "Quiet",
			Description: "No traffic. Routes settle and every window reports a healthy track.",
		},
		"train-pass": {
			Name:        "Train Pass",
			Description: "Two trains cross the whole line in opposite directions once routes have converged.",
			Actions: []Action{
				{At: 90 * time.Second, Kind: Train, Mote: 1},
				{At: 270 * time.Second, Kind: Train, Mote: 0},
			},
		},
		"broken-rail": {
			Name:        "Broken Rail",
			Description: "The rail breaks in section 3. A slow train stops at the break and the gateway flags the sections around it; after the repair a second train passes cleanly.",
			Actions: []Action{
				{At: 60 * time.Second, Kind: Break, Section: 3},
				{At: 90 * time.Second, Kind: Train, Mote: 1, Speed: 2},
				{At: 300 * time.Second, Kind: Repair, Section: 3},
				{At: 390 * time.Second, Kind: Train, Mote: 1},
			},
		},
		"low-battery": {
			Name:        "Low Battery",
			Description: "Mote 3 advertises an empty battery so its neighbours route around it, then recovers.",
			Actions: []Action{
				{At: 60 * time.Second, Kind: BatteryOverride, Mote: 3},
				{At: 150 * time.Second, Kind: Train, Mote: 1},
				{At: 300 * time.Second, Kind: BatteryOverride, Mote: 3},
			},
		},
	}
}
