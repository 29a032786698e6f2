package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"tally/internal/amqp"
	"tally/internal/codec"
)

// Exporter renders the current dataset into a carrier image.
type Exporter interface {
	ExportImage(ctx context.Context, strategyName string) ([]byte, int64, error)
}

// SnapshotWorker renders carrier-image snapshots of the dataset whenever a
// replacement event arrives. Snapshots double as offline backups: any of
// them can be fed back through the import endpoints to restore the data.
type SnapshotWorker struct {
	exporter   Exporter
	dir        string
	timeout    time.Duration
	strategies []string
}

func NewSnapshotWorker(exporter Exporter, dir string, timeout time.Duration) *SnapshotWorker {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &SnapshotWorker{
		exporter:   exporter,
		dir:        dir,
		timeout:    timeout,
		strategies: []string{"stego", "qr"},
	}
}

// HandleDatasetEvent renders one snapshot per strategy for the revision the
// event announces. Strategies run concurrently; a dataset too dense for the
// QR symbol is skipped with a warning rather than failing the event, since
// retrying cannot shrink the data.
func (w *SnapshotWorker) HandleDatasetEvent(ctx context.Context, ev *amqp.DatasetEvent) error {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	slog.InfoContext(ctx, "Rendering dataset snapshots",
		"revision", ev.Revision,
		"source", ev.Source,
		"categories", ev.Categories,
		"items", ev.Items)

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot directory: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, strategy := range w.strategies {
		g.Go(func() error {
			return w.renderSnapshot(ctx, strategy, ev.Revision)
		})
	}
	return g.Wait()
}

func (w *SnapshotWorker) renderSnapshot(ctx context.Context, strategy string, eventRevision int64) error {
	data, revision, err := w.exporter.ExportImage(ctx, strategy)
	if errors.Is(err, codec.ErrDataTooLarge) || errors.Is(err, codec.ErrImageGenerationFailed) {
		slog.WarnContext(ctx, "Dataset does not fit strategy, skipping snapshot",
			"strategy", strategy,
			"revision", eventRevision,
			"error", err)
		return nil
	}
	if err != nil {
		return fmt.Errorf("render %s snapshot: %w", strategy, err)
	}

	path := filepath.Join(w.dir, fmt.Sprintf("tally-%s.png", strategy))
	if err := writeFileAtomic(path, data); err != nil {
		return fmt.Errorf("write %s snapshot: %w", strategy, err)
	}

	slog.InfoContext(ctx, "Snapshot written",
		"strategy", strategy,
		"revision", revision,
		"path", path,
		"bytes", len(data))
	return nil
}

// writeFileAtomic writes to a temp file in the same directory and renames it
// over the target, so readers never observe a half-written snapshot.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
