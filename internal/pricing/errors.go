package pricing

import (
	"errors"
	"fmt"
)

// ErrNotInitialized is returned by lookup and refresh operations before
// Initialize has completed successfully.
var ErrNotInitialized = errors.New("pricing engine not initialized")

// NotFoundError reports that no base price exists for a code and location
// combination. Callers distinguish it from transport failures: the catalog
// answered, the answer is "no data".
type NotFoundError struct {
	CSICode  string
	Location string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no price available for CSI code %s in location %s", e.CSICode, e.Location)
}

// IsNotFound reports whether err is a missing-data error.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// InvalidQueryError reports a query rejected before any catalog or cache
// access.
type InvalidQueryError struct {
	Field  string
	Reason string
}

func (e *InvalidQueryError) Error() string {
	return fmt.Sprintf("invalid query: %s %s", e.Field, e.Reason)
}

// IsInvalidQuery reports whether err is a query validation error.
func IsInvalidQuery(err error) bool {
	var iq *InvalidQueryError
	return errors.As(err, &iq)
}

// BatchFailure pairs a failed batch entry's input position with its error.
type BatchFailure struct {
	Index int
	Err   error
}

func (f BatchFailure) Error() string {
	return fmt.Sprintf("query %d: %v", f.Index, f.Err)
}

func (f BatchFailure) Unwrap() error { return f.Err }

// PartialBatchError reports that some entries of a batch lookup failed.
// The successful results are still returned alongside it.
type PartialBatchError struct {
	Total    int
	Failures []BatchFailure
}

func (e *PartialBatchError) Error() string {
	return fmt.Sprintf("batch lookup: %d of %d queries failed", len(e.Failures), e.Total)
}

// IsPartialBatch reports whether err is a partial batch failure and returns
// the detail when it is.
func IsPartialBatch(err error) (*PartialBatchError, bool) {
	var pb *PartialBatchError
	if errors.As(err, &pb) {
		return pb, true
	}
	return nil, false
}
