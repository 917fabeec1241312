package domain

import "time"

// Batch is the outcome of a single records fetch against a consumer instance.
type Batch struct {
	Group      string    `json:"group"`
	Instance   string    `json:"instance"`
	URL        string    `json:"url"`
	StatusCode int       `json:"status_code"`
	Body       []byte    `json:"body"`
	FetchedAt  time.Time `json:"fetched_at"`
}
