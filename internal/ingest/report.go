package ingest

import "time"

// FileStatus is the processing outcome of a single file.
type FileStatus string

// File outcome values.
const (
	StatusIndexed FileStatus = "indexed"
	StatusSkipped FileStatus = "skipped"
	StatusFailed  FileStatus = "failed"
)

// FileResult is the outcome of processing one file in a batch run.
type FileResult struct {
	path   string
	status FileStatus
	reason string
	err    error
}

// NewIndexed creates a successful file result.
func NewIndexed(path string) FileResult {
	return FileResult{path: path, status: StatusIndexed}
}

// NewSkipped creates a skip result with a reason.
func NewSkipped(path, reason string) FileResult {
	return FileResult{path: path, status: StatusSkipped, reason: reason}
}

// NewFailed creates a failed file result.
func NewFailed(path string, err error) FileResult {
	return FileResult{path: path, status: StatusFailed, err: err}
}

// Path returns the file path relative to the extraction root.
func (r FileResult) Path() string { return r.path }

// Status returns the processing outcome.
func (r FileResult) Status() FileStatus { return r.status }

// Reason returns the skip reason, if any.
func (r FileResult) Reason() string { return r.reason }

// Err returns the error, if any.
func (r FileResult) Err() error { return r.err }

// Report aggregates the outcome of one batch run. A run with failures is
// still a completed run: failures never abort the batch.
type Report struct {
	Indexed  int
	Skipped  int
	Failed   int
	Failures []FileResult
	Duration time.Duration
}

func (rep *Report) add(r FileResult) {
	switch r.Status() {
	case StatusIndexed:
		rep.Indexed++
	case StatusSkipped:
		rep.Skipped++
	case StatusFailed:
		rep.Failed++
		rep.Failures = append(rep.Failures, r)
	}
}

// Total returns the number of files visited.
func (rep *Report) Total() int { return rep.Indexed + rep.Skipped + rep.Failed }
