package publishers

import (
	"time"

	"github.com/samvad-hq/rest-records-fetcher/internal/domain"
)

// Event represents the payload published downstream.
// Body carries the proxy response verbatim; it is not parsed.
type Event struct {
	Group      string    `json:"consumer_group"`
	Instance   string    `json:"consumer_instance"`
	URL        string    `json:"url"`
	StatusCode int       `json:"status_code"`
	Body       string    `json:"body"`
	FetchedAt  time.Time `json:"fetched_at"`
}

// NewEvent constructs an Event for the given batch.
func NewEvent(batch domain.Batch) Event {
	fetchedAt := batch.FetchedAt
	if fetchedAt.IsZero() {
		fetchedAt = time.Now()
	}
	return Event{
		Group:      batch.Group,
		Instance:   batch.Instance,
		URL:        batch.URL,
		StatusCode: batch.StatusCode,
		Body:       string(batch.Body),
		FetchedAt:  fetchedAt.UTC(),
	}
}

// Key identifies the consumer instance the event was fetched from.
func (e Event) Key() string {
	return e.Group + "/" + e.Instance
}
