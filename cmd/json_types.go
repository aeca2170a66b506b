package cmd

// actionForJSON is a struct used for marshaling an action to JSON for machine-readable output.
type actionForJSON struct {
	Action      string   `json:"action"`
	Synopsis    string   `json:"synopsis"`
	Explanation []string `json:"explanation"`
}
