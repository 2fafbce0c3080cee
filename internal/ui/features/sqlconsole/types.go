package sqlconsole

// RunSignals is sent by the editor's Run button.
type RunSignals struct {
	SQL string `json:"sql"`
}

// BudgetSignals is sent when the row budget input changes.
type BudgetSignals struct {
	Budget int `json:"budget"`
}

// DebugSignals is sent when the debug toggle changes.
type DebugSignals struct {
	Debug bool `json:"debug"`
}

// BudgetPatch echoes the clamped budget back to the page.
type BudgetPatch struct {
	Budget int `json:"budget"`
}
