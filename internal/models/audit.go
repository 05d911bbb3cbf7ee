package models

import "time"

// AuditRecord captures one completed, loggable search.
type AuditRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Query     string    `json:"q"`
	Kind      string    `json:"kind"`
	Field     string    `json:"field"`
	Limit     int       `json:"limit"`
	Took      int64     `json:"took"`
	TimedOut  bool      `json:"timed_out"`
	Hits      int64     `json:"hits"`
}
