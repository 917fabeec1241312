package publishers

import "context"

// Publisher forwards fetched batches to a downstream sink (SQS, HTTP, Kafka, etc).
type Publisher interface {
	ID() string
	Type() string
	Publish(ctx context.Context, evt Event) error
	Close() error
}
