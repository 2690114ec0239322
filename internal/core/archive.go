package core

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"growcore/internal/blob"
)

// ArchiveSnapshot exports the full store state and writes it to the blob
// store. An empty key derives a timestamped one under snapshots/.
func (s *Service) ArchiveSnapshot(ctx context.Context, bs blob.Store, key string) (blob.Info, error) {
	if key == "" {
		key = fmt.Sprintf("snapshots/%s.json", time.Now().UTC().Format("20060102T150405Z"))
	}
	var info blob.Info
	err := s.instrumentOnly(ctx, "archive_snapshot", func(ctx context.Context) error {
		data, err := s.store.ExportState()
		if err != nil {
			return err
		}
		info, err = bs.Put(ctx, key, bytes.NewReader(data), blob.PutOptions{ContentType: "application/json"})
		return err
	})
	return info, err
}

// RestoreSnapshot loads an archived snapshot and replaces the store state.
func (s *Service) RestoreSnapshot(ctx context.Context, bs blob.Store, key string) error {
	return s.instrumentOnly(ctx, "restore_snapshot", func(ctx context.Context) error {
		_, rc, err := bs.Get(ctx, key)
		if err != nil {
			return err
		}
		defer func() { _ = rc.Close() }()
		data, err := io.ReadAll(rc)
		if err != nil {
			return err
		}
		return s.store.ImportState(data)
	})
}

// instrumentOnly wraps a non-transactional operation with the same metrics
// and tracing treatment as transactional ones.
func (s *Service) instrumentOnly(ctx context.Context, op string, fn func(context.Context) error) error {
	started := time.Now()
	var span TraceSpan
	if s.tracer != nil {
		ctx, span = s.tracer.Start(ctx, op)
	}
	err := fn(ctx)
	if s.metrics != nil {
		s.metrics.Observe(ctx, op, err == nil, time.Since(started))
	}
	if span != nil {
		span.End(err)
	}
	return err
}
