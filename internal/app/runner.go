package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/samvad-hq/rest-records-fetcher/internal/config"
	"github.com/samvad-hq/rest-records-fetcher/internal/domain"
	"github.com/samvad-hq/rest-records-fetcher/internal/logger"
	"github.com/samvad-hq/rest-records-fetcher/internal/storage"
	"github.com/samvad-hq/rest-records-fetcher/pkg/httpclient"
	"github.com/samvad-hq/rest-records-fetcher/pkg/publishers"
	"github.com/samvad-hq/rest-records-fetcher/pkg/restproxy"
)

// Runner performs one records fetch against a REST proxy consumer instance and
// writes the raw response body to its output. History and downstream
// publishing are optional and run only after the body has been written.
type Runner struct {
	endpoint restproxy.Endpoint
	fetcher  RecordsFetcher
	out      io.Writer
	store    storage.Store
	fanout   EventPublisher
	log      logger.Logger
}

// NewRunner builds a runner from config. out receives the response body.
func NewRunner(ctx context.Context, cfg *config.Config, log logger.Logger, out io.Writer) (*Runner, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if out == nil {
		return nil, fmt.Errorf("output writer must not be nil")
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	endpoint := restproxy.Endpoint{
		BaseURL:  cfg.RestProxyURL,
		Group:    cfg.ConsumerGroup,
		Instance: cfg.ConsumerInstance,
	}
	fetcher := restproxy.NewClient(httpclient.NewRestyClient(cfg.RequestTimeout), cfg.AcceptHeader)

	store, err := storage.NewStore(cfg.StorageType, cfg.BBoltPath, storage.Options{
		BatchTTL:        cfg.StorageTTL,
		CleanupInterval: cfg.StorageCleanupInterval,
	})
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	log.DebugObj("storage initialized", "storage_config", map[string]any{
		"type":                     cfg.StorageType,
		"path":                     cfg.BBoltPath,
		"batch_ttl_seconds":        int(cfg.StorageTTL.Seconds()),
		"cleanup_interval_seconds": int(cfg.StorageCleanupInterval.Seconds()),
	})

	fanout, err := buildFanout(ctx, cfg.PublishersFile, log)
	if err != nil {
		return nil, errors.Join(err, store.Close())
	}

	return &Runner{
		endpoint: endpoint,
		fetcher:  fetcher,
		out:      out,
		store:    store,
		fanout:   fanout,
		log:      log,
	}, nil
}

func buildFanout(ctx context.Context, path string, log logger.Logger) (*publishers.Fanout, error) {
	if path == "" {
		return publishers.NewFanout(nil), nil
	}

	publisherReg, err := publishers.LoadRegistry(path)
	if err != nil {
		return nil, fmt.Errorf("load publishers registry: %w", err)
	}
	enabled := publisherReg.Enabled()

	pubClients, err := publishers.BuildAll(ctx, publishers.DefaultRegistry(), enabled, log)
	if err != nil {
		return nil, fmt.Errorf("build publishers: %w", err)
	}

	summaries := make([]map[string]string, 0, len(enabled))
	for _, pubCfg := range enabled {
		summaries = append(summaries, map[string]string{
			"id":   pubCfg.ID,
			"type": pubCfg.Type,
		})
	}
	log.InfoObj("publishers registry loaded", "publishers_meta", map[string]any{
		"count":      len(summaries),
		"publishers": summaries,
	})
	return publishers.NewFanout(pubClients), nil
}

// Run fetches once, writes the body followed by a newline, then records and
// forwards the batch. A failed fetch writes nothing.
func (r *Runner) Run(ctx context.Context) error {
	if r == nil || r.fetcher == nil {
		return fmt.Errorf("runner is not initialized")
	}

	start := time.Now()
	resp, err := r.fetcher.FetchRecords(ctx, r.endpoint)
	if err != nil {
		return fmt.Errorf("fetch records: %w", err)
	}

	meta := map[string]any{
		"url":        resp.URL,
		"status":     resp.StatusCode,
		"bytes":      len(resp.Body),
		"elapsed_ms": time.Since(start).Milliseconds(),
	}
	if resp.OK() {
		r.log.InfoObj("records fetched", "fetch_meta", meta)
	} else {
		meta["body"] = restproxy.Snippet(resp.Body)
		r.log.WarnObj("rest proxy returned non-2xx status", "fetch_meta", meta)
	}

	if err := r.writeBody(resp.Body); err != nil {
		return err
	}

	batch := domain.Batch{
		Group:      r.endpoint.Group,
		Instance:   r.endpoint.Instance,
		URL:        resp.URL,
		StatusCode: resp.StatusCode,
		Body:       resp.Body,
		FetchedAt:  start.UTC(),
	}

	r.logPreviousBatch()

	var errs []error
	if err := r.store.RecordBatch(batch); err != nil {
		r.log.ErrorObj("record batch failed", "error", err)
		errs = append(errs, fmt.Errorf("record batch: %w", err))
	}
	if err := r.forward(ctx, batch); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// logPreviousBatch reports the last recorded fetch, if history is enabled.
func (r *Runner) logPreviousBatch() {
	prev, found, err := r.store.LastBatch()
	if err != nil {
		r.log.WarnObj("read previous batch failed", "error", err)
		return
	}
	if !found {
		return
	}
	r.log.DebugObj("previous batch", "previous_batch", map[string]any{
		"fetched_at": prev.FetchedAt,
		"status":     prev.StatusCode,
		"bytes":      len(prev.Body),
	})
}

func (r *Runner) writeBody(body []byte) error {
	buf := make([]byte, 0, len(body)+1)
	buf = append(buf, body...)
	buf = append(buf, '\n')
	if _, err := r.out.Write(buf); err != nil {
		return fmt.Errorf("write body: %w", err)
	}
	return nil
}

func (r *Runner) forward(ctx context.Context, batch domain.Batch) error {
	if r.fanout == nil || r.fanout.Size() == 0 {
		return nil
	}

	delivered, err := r.fanout.Publish(ctx, publishers.NewEvent(batch))
	r.log.InfoObj("batch forwarded", "publish_meta", map[string]any{
		"publishers_count": r.fanout.Size(),
		"delivered":        delivered,
	})
	if err != nil {
		r.log.ErrorObj("batch forwarding failed", "error", err)
		return fmt.Errorf("forward batch: %w", err)
	}
	return nil
}

// Close releases storage and publishers, logging any errors encountered.
func (r *Runner) Close() error {
	if r == nil {
		return nil
	}

	var errs []error
	if r.store != nil {
		if err := r.store.Close(); err != nil {
			r.log.ErrorObj("storage close failed", "error", err)
			errs = append(errs, err)
		}
	}
	if r.fanout != nil {
		if err := r.fanout.Close(); err != nil {
			r.log.ErrorObj("publishers close failed", "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
