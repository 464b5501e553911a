package harvest

import "errors"

// ErrExtraction marks a fatal browsing failure. The walker does not retry:
// the run aborts, any partially accumulated records are discarded, and a
// caller wanting resilience wraps the whole run with its own policy.
var ErrExtraction = errors.New("extraction failure")

// Rejection explains why a single row failed schema validation. Rejected
// rows are logged and skipped; they never abort the page or the run.
type Rejection struct {
	Reason string
}
