package models

// Hit is one scored record returned by the engine.
type Hit struct {
	ID     string
	Score  float64
	Fields map[string]any
}

// ResultSet is the engine's answer to a windowed query.
type ResultSet struct {
	Hits     []Hit
	Total    int64
	Took     int64 // milliseconds
	TimedOut bool
}

// Record is a flat, transport-safe search result.
type Record map[string]any

// Response is the payload returned to the client.
// Took and TimedOut are only set when the engine actually ran.
type Response struct {
	Results  []Record `json:"results"`
	Total    int64    `json:"total"`
	Took     *int64   `json:"took,omitempty"`
	TimedOut *bool    `json:"timed_out,omitempty"`
}

// EmptyResponse is the zero-result payload used for empty queries and engine failures.
func EmptyResponse() *Response {
	return &Response{Results: []Record{}}
}
