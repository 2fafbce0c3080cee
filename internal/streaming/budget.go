package streaming

// Row budget bounds.
const (
	DefaultRowBudget = 100_000
	MinRowBudget     = 5_000
	MaxRowBudget     = 1_000_000
)

// ClampBudget limits n to [MinRowBudget, MaxRowBudget].
func ClampBudget(n int) int {
	return max(MinRowBudget, min(n, MaxRowBudget))
}
