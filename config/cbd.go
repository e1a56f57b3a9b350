package config

// StateCBDs lists the CBD and regional centre destinations used for driving
// distance lookups, keyed by Australian state code.
var StateCBDs = map[string][]string{
	"NSW": {
		"Sydney CBD NSW",
		"Parramatta NSW",
		"North Sydney NSW",
		"Liverpool NSW",
		"Newcastle NSW",
		"Wollongong NSW",
	},
	"VIC": {
		"Melbourne CBD VIC",
		"Docklands VIC",
		"Box Hill VIC",
		"Dandenong VIC",
		"Geelong VIC",
	},
	"QLD": {
		"Brisbane CBD QLD",
		"Fortitude Valley QLD",
		"South Brisbane QLD",
		"Gold Coast QLD",
		"Surfers Paradise QLD",
		"Sunshine Coast QLD",
		"Townsville QLD",
		"Cairns QLD",
	},
	"WA": {
		"Perth CBD WA",
		"Subiaco WA",
		"Joondalup WA",
		"Fremantle WA",
	},
	"SA": {
		"Adelaide CBD SA",
		"North Adelaide SA",
	},
	"TAS": {
		"Hobart CBD TAS",
		"Launceston TAS",
	},
	"ACT": {
		"Canberra CBD ACT",
		"Belconnen ACT",
		"Woden ACT",
	},
	"NT": {
		"Darwin CBD NT",
		"Palmerston NT",
	},
}

// CBDsForState returns the destinations for a state code, or nil when the state is unknown.
func CBDsForState(state string) []string {
	return StateCBDs[NormalizeState(state)]
}
