package app

import (
	"context"

	"github.com/samvad-hq/rest-records-fetcher/pkg/publishers"
	"github.com/samvad-hq/rest-records-fetcher/pkg/restproxy"
)

// RecordsFetcher retrieves the next records batch of a consumer instance.
type RecordsFetcher interface {
	FetchRecords(ctx context.Context, ep restproxy.Endpoint) (*restproxy.Response, error)
}

// EventPublisher forwards fetched batches downstream.
type EventPublisher interface {
	Publish(ctx context.Context, evt publishers.Event) (int, error)
	Size() int
	Close() error
}
