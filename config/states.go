package config

import "strings"

// State represents an Australian state or territory
type State struct {
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Capital   string    `json:"capital"`
	Center    []float64 `json:"center"`
	ZoomLevel int       `json:"zoom_level"`
}

// SupportedStates lists the states locations may belong to
var SupportedStates = []State{
	{Code: "NSW", Name: "New South Wales", Capital: "Sydney", Center: []float64{-33.8688, 151.2093}, ZoomLevel: 11},
	{Code: "VIC", Name: "Victoria", Capital: "Melbourne", Center: []float64{-37.8136, 144.9631}, ZoomLevel: 11},
	{Code: "QLD", Name: "Queensland", Capital: "Brisbane", Center: []float64{-27.4698, 153.0251}, ZoomLevel: 11},
	{Code: "WA", Name: "Western Australia", Capital: "Perth", Center: []float64{-31.9523, 115.8613}, ZoomLevel: 11},
	{Code: "SA", Name: "South Australia", Capital: "Adelaide", Center: []float64{-34.9285, 138.6007}, ZoomLevel: 11},
	{Code: "TAS", Name: "Tasmania", Capital: "Hobart", Center: []float64{-42.8821, 147.3272}, ZoomLevel: 12},
	{Code: "ACT", Name: "Australian Capital Territory", Capital: "Canberra", Center: []float64{-35.2809, 149.1300}, ZoomLevel: 12},
	{Code: "NT", Name: "Northern Territory", Capital: "Darwin", Center: []float64{-12.4634, 130.8456}, ZoomLevel: 12},
}

// GetStateCodes returns the codes of all supported states
func GetStateCodes() []string {
	codes := make([]string, len(SupportedStates))
	for i, state := range SupportedStates {
		codes[i] = state.Code
	}
	return codes
}

// GetStateByCode returns a state by code or full name
func GetStateByCode(code string) *State {
	normalized := NormalizeState(code)
	for i := range SupportedStates {
		if SupportedStates[i].Code == normalized {
			return &SupportedStates[i]
		}
	}
	return nil
}

// NormalizeState turns a state code or full state name into the upper-case
// code. Unknown values are only trimmed and upper-cased.
func NormalizeState(state string) string {
	trimmed := strings.TrimSpace(state)
	for _, s := range SupportedStates {
		if strings.EqualFold(trimmed, s.Name) {
			return s.Code
		}
	}
	return strings.ToUpper(trimmed)
}
