package workflow

// DefaultBudgetUSD and DefaultBudgetWarnAt are the fallbacks of spec §4.7
// step 1: "BudgetTracker(budget_usd | default 10.0, warn_at 80%)".
const (
	DefaultBudgetUSD    = 10.0
	DefaultBudgetWarnAt = 0.8
)

// BudgetTracker accumulates LLM/tool cost against a ceiling and reports
// whether the warn or exceeded thresholds have been crossed. It is plain
// in-workflow state, not an I/O boundary, so it stays deterministic and
// replay-safe.
type BudgetTracker struct {
	Limit   float64
	WarnAt  float64
	spent   float64
	warned  bool
}

// NewBudgetTracker constructs a tracker; a non-positive limit falls back to
// DefaultBudgetUSD.
func NewBudgetTracker(limitUSD *float64) *BudgetTracker {
	limit := DefaultBudgetUSD
	if limitUSD != nil && *limitUSD > 0 {
		limit = *limitUSD
	}
	return &BudgetTracker{Limit: limit, WarnAt: DefaultBudgetWarnAt}
}

// Add records additional spend.
func (b *BudgetTracker) Add(cost float64) {
	b.spent += cost
}

// Spent returns total recorded spend.
func (b *BudgetTracker) Spent() float64 { return b.spent }

// Remaining returns the unspent portion of the limit (never negative).
func (b *BudgetTracker) Remaining() float64 {
	r := b.Limit - b.spent
	if r < 0 {
		return 0
	}
	return r
}

// IsExceeded reports whether spend has reached or passed the limit.
func (b *BudgetTracker) IsExceeded() bool {
	return b.spent >= b.Limit
}

// CrossedWarnThreshold reports true exactly once, the first call after
// spend passes WarnAt*Limit — callers use this to emit a single
// budget_warning event instead of one per iteration.
func (b *BudgetTracker) CrossedWarnThreshold() bool {
	if b.warned || b.Limit <= 0 {
		return false
	}
	if b.spent >= b.Limit*b.WarnAt {
		b.warned = true
		return true
	}
	return false
}
