package tools

// Output is the envelope every handler returns.
type Output struct {
	Result   any      `json:"result"`
	Metadata Metadata `json:"metadata"`
}

// Metadata describes how a result was produced.
type Metadata struct {
	Tool     string   `json:"tool"`
	Clamped  []Clamp  `json:"clamped"`
	Notes    []string `json:"notes"`
	Attempts int      `json:"attempts,omitempty"`
}

// Clamp records an integer argument coerced into its documented range.
type Clamp struct {
	Field     string `json:"field"`
	Requested int    `json:"requested"`
	Applied   int    `json:"applied"`
	Min       int    `json:"min"`
	Max       int    `json:"max"`
}
