package lode

import (
	"context"
	"sync"

	"github.com/justapithecus/lode/lode"

	"github.com/auxoncorp/modality-dlt-plugin/ingest"
)

// LodeClient is a Lode-backed implementation of Client.
// Uses Lode's HiveLayout with partition keys source/day/record_kind.
type LodeClient struct {
	dataset lode.Dataset
	config  Config

	mu  sync.Mutex // guards seq
	seq int64      // per-stream record sequence, advanced after each successful write
}

// NewLodeClient creates a new Lode client with filesystem storage.
// The root parameter is the base directory for Hive-partitioned storage.
func NewLodeClient(cfg Config, root string) (*LodeClient, error) {
	return NewLodeClientWithFactory(cfg, lode.NewFSFactory(root))
}

// NewLodeClientWithFactory creates a new Lode client with a custom store factory.
// Use lode.NewMemoryFactory() for testing.
func NewLodeClientWithFactory(cfg Config, factory lode.StoreFactory) (*LodeClient, error) {
	ds, err := newDataset(datasetID(cfg), factory)
	if err != nil {
		return nil, WrapInitError(err, datasetID(cfg))
	}
	cfg.Source = SanitizeSource(cfg.Source)
	return &LodeClient{dataset: ds, config: cfg}, nil
}

func datasetID(cfg Config) string {
	if cfg.Dataset == "" {
		return DefaultDataset
	}
	return cfg.Dataset
}

func newDataset(id string, factory lode.StoreFactory) (lode.Dataset, error) {
	return lode.NewDataset(
		lode.DatasetID(id),
		factory,
		lode.WithHiveLayout(partitionKeys...),
		lode.WithCodec(lode.NewJSONLCodec()),
	)
}

// WriteOps writes a batch of ops as one Lode snapshot.
// The record sequence only advances when the write succeeds.
func (c *LodeClient) WriteOps(ctx context.Context, ops []ingest.Op) error {
	if len(ops) == 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	records := make([]any, 0, len(ops))
	for i, op := range ops {
		records = append(records, toOpRecordMap(op, c.seq+int64(i), c.config))
	}

	if _, err := c.dataset.Write(ctx, records, lode.Metadata{}); err != nil {
		return WrapWriteError(err, datasetID(c.config))
	}
	c.seq += int64(len(ops))
	return nil
}

// Close releases client resources.
func (c *LodeClient) Close() error {
	// Dataset doesn't require explicit close in current Lode API
	return nil
}

var _ Client = (*LodeClient)(nil)
