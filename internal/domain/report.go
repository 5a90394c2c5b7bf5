package domain

import "fmt"

// ItemError records one failed item of a batch run.
type ItemError struct {
	Key   string `json:"key"` // reference or URL
	Stage string `json:"stage,omitempty"`
	Error string `json:"error"`
}

// BatchReport is the outcome of an operator or ingestion batch.
type BatchReport struct {
	Processed int            `json:"processed"`
	Updated   int            `json:"updated"`
	Created   int            `json:"created"`
	Skipped   int            `json:"skipped"`
	Failed    int            `json:"failed"`
	Errors    []ItemError    `json:"errors,omitempty"`
	Changes   map[string]int `json:"changes,omitempty"` // field -> number of rows changed
}

func NewBatchReport() *BatchReport {
	return &BatchReport{Changes: make(map[string]int)}
}

func (r *BatchReport) Fail(key, stage string, err error) {
	r.Failed++
	r.Errors = append(r.Errors, ItemError{Key: key, Stage: stage, Error: err.Error()})
}

func (r *BatchReport) CountChange(field string) {
	if r.Changes == nil {
		r.Changes = make(map[string]int)
	}
	r.Changes[field]++
}

// Merge adds the counters of other into r.
func (r *BatchReport) Merge(other *BatchReport) {
	if other == nil {
		return
	}
	r.Processed += other.Processed
	r.Updated += other.Updated
	r.Created += other.Created
	r.Skipped += other.Skipped
	r.Failed += other.Failed
	r.Errors = append(r.Errors, other.Errors...)
	for k, v := range other.Changes {
		if r.Changes == nil {
			r.Changes = make(map[string]int)
		}
		r.Changes[k] += v
	}
}

func (r *BatchReport) String() string {
	return fmt.Sprintf("processed=%d created=%d updated=%d skipped=%d failed=%d",
		r.Processed, r.Created, r.Updated, r.Skipped, r.Failed)
}
