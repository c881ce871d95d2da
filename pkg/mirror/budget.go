package mirror

// DefaultFailureLimit is the number of per-file transfer failures tolerated
// before a run aborts. It's a coarse circuit breaker for unattended runs
// against a device with a systemic problem (full disk, revoked permission)
// rather than a per-file retry policy.
const DefaultFailureLimit = 10

// FailureBudget counts transfer failures across one mirror run. The count
// only increases; once it exceeds the limit the run must terminate.
type FailureBudget struct {
	limit int
	count int
}

// NewFailureBudget returns a budget that tolerates limit failures. A zero or
// negative limit falls back to DefaultFailureLimit.
func NewFailureBudget(limit int) *FailureBudget {
	if limit <= 0 {
		limit = DefaultFailureLimit
	}
	return &FailureBudget{limit: limit}
}

// RecordFailure increments the counter and returns the cumulative count for
// diagnostics.
func (b *FailureBudget) RecordFailure() int {
	b.count++
	return b.count
}

// Exceeded returns whether the budget has been spent. The walker checks this
// immediately after every RecordFailure call.
func (b *FailureBudget) Exceeded() bool {
	return b.count > b.limit
}

// Count returns the cumulative number of recorded failures.
func (b *FailureBudget) Count() int {
	return b.count
}
