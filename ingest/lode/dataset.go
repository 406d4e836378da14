package lode

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/justapithecus/lode/lode"

	"github.com/auxoncorp/modality-dlt-plugin/ingest"
)

// NewReadDataset creates a Lode Dataset for reading.
// Uses the same codec and layout as the write path.
func NewReadDataset(dataset string, factory lode.StoreFactory) (lode.Dataset, error) {
	if dataset == "" {
		dataset = DefaultDataset
	}
	return newDataset(dataset, factory)
}

// NewReadDatasetFS creates a read Dataset with filesystem storage.
func NewReadDatasetFS(dataset, rootPath string) (lode.Dataset, error) {
	return NewReadDataset(dataset, lode.NewFSFactory(rootPath))
}

// NewReadDatasetS3 creates a read Dataset with S3 storage.
func NewReadDatasetS3(ctx context.Context, dataset string, s3cfg S3Config) (lode.Dataset, error) {
	factory, err := s3Factory(ctx, s3cfg)
	if err != nil {
		return nil, err
	}
	return NewReadDataset(dataset, factory)
}

// ReadOps reads back every op stored for streamID, in write order.
// An empty streamID matches all streams; source narrows by partition.
func ReadOps(ctx context.Context, ds lode.Dataset, source, streamID string) ([]ingest.Op, error) {
	snapshots, err := ds.Snapshots(ctx)
	if err != nil {
		return nil, WrapReadError(err, string(ds.ID())+"/snapshots")
	}

	// Snapshots are ordered by creation time.
	var ops []ingest.Op
	for _, snap := range snapshots {
		if !snapshotMatchesFilter(snap, "source", SanitizeSource(source)) {
			continue
		}

		data, err := ds.Read(ctx, snap.ID)
		if err != nil {
			return nil, WrapReadError(err, fmt.Sprintf("%s/snapshot/%s", ds.ID(), snap.ID))
		}
		// Partitioning splits a batch across files by record kind; seq
		// restores write order within the snapshot.
		records := make([]map[string]any, 0, len(data))
		for _, item := range data {
			record, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if streamID != "" && toString(record["stream_id"]) != streamID {
				continue
			}
			records = append(records, record)
		}
		slices.SortStableFunc(records, func(a, b map[string]any) int {
			return cmp.Compare(toSeq(a["seq"]), toSeq(b["seq"]))
		})

		for _, record := range records {
			op, err := fromOpRecordMap(record)
			if err != nil {
				return nil, fmt.Errorf("snapshot %s: %w", snap.ID, err)
			}
			ops = append(ops, op)
		}
	}
	return ops, nil
}

// toSeq reads a record sequence, which JSON decoding yields as float64.
func toSeq(v any) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	default:
		return 0
	}
}

// snapshotMatchesFilter checks if a snapshot's file paths match
// the given partition key=value filter.
func snapshotMatchesFilter(snap *lode.DatasetSnapshot, key, value string) bool {
	if value == "" {
		return true
	}
	for _, f := range snap.Manifest.Files {
		if matchesPartitionValue(f.Path, key, value) {
			return true
		}
	}
	return false
}

// matchesPartitionValue checks if a Hive-partitioned path contains an exact
// key=value segment, so that source=a does not match source=ab.
func matchesPartitionValue(path, key, value string) bool {
	segment := key + "=" + value
	for _, part := range strings.Split(path, "/") {
		if part == segment {
			return true
		}
	}
	return false
}
