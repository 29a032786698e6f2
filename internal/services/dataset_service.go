package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tally/internal/amqp"
	"tally/internal/codec"
	"tally/internal/core"
)

// Store is the persistence surface the service needs: load and atomically
// replace the single dataset document.
type Store interface {
	Load(ctx context.Context) ([]byte, int64, error)
	Replace(ctx context.Context, document []byte) (int64, error)
	Close() error
}

// Publisher announces dataset replacements. Publishing is best-effort:
// a broker failure never fails the operation that changed the data.
type Publisher interface {
	PublishDatasetReplaced(ctx context.Context, ev *amqp.DatasetEvent) error
	Close() error
}

// DatasetService orchestrates dataset operations across storage, the image
// codec and the event stream. Every edit and import goes through a full
// load-modify-replace of the single document, so the stored dataset is
// always a complete, decodable snapshot.
type DatasetService struct {
	store     Store
	publisher Publisher
	pipeline  *codec.Pipeline
}

func NewDatasetService(store Store, publisher Publisher, pipeline *codec.Pipeline) *DatasetService {
	if pipeline == nil {
		pipeline = codec.NewPipeline()
	}
	return &DatasetService{
		store:     store,
		publisher: publisher,
		pipeline:  pipeline,
	}
}

// Load returns the current dataset and its revision.
func (s *DatasetService) Load(ctx context.Context) (core.Dataset, int64, error) {
	document, revision, err := s.store.Load(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("load dataset: %w", err)
	}
	d, err := codec.Unmarshal(document)
	if err != nil {
		return nil, 0, fmt.Errorf("decode stored dataset: %w", err)
	}
	return d, revision, nil
}

// Overview returns the per-category totals for the current dataset.
func (s *DatasetService) Overview(ctx context.Context) (core.Overview, error) {
	d, _, err := s.Load(ctx)
	if err != nil {
		return core.Overview{}, err
	}
	return d.Overview(), nil
}

// replace serializes and stores the dataset, then announces the change.
func (s *DatasetService) replace(ctx context.Context, d core.Dataset, source string) (int64, error) {
	document, err := codec.Marshal(d)
	if err != nil {
		return 0, fmt.Errorf("encode dataset: %w", err)
	}
	revision, err := s.store.Replace(ctx, document)
	if err != nil {
		return 0, fmt.Errorf("store dataset: %w", err)
	}

	if s.publisher != nil {
		ev := amqp.NewDatasetEvent(revision, source, len(d), d.ItemCount())
		if err := s.publisher.PublishDatasetReplaced(ctx, ev); err != nil {
			// Data is safely stored; the event stream catches up later.
			slog.ErrorContext(ctx, "Failed to publish dataset event",
				"revision", revision, "source", source, "error", err)
		}
	}
	return revision, nil
}

// AddCategory appends a new empty category.
func (s *DatasetService) AddCategory(ctx context.Context, name string) (core.Category, error) {
	cat := core.NewCategory(name)
	if err := cat.Validate(); err != nil {
		return core.Category{}, err
	}

	d, _, err := s.Load(ctx)
	if err != nil {
		return core.Category{}, err
	}
	d = append(d, cat)
	if _, err := s.replace(ctx, d, amqp.SourceEdit); err != nil {
		return core.Category{}, err
	}
	return cat, nil
}

// RenameCategory changes a category's name in place.
func (s *DatasetService) RenameCategory(ctx context.Context, id uuid.UUID, name string) error {
	d, _, err := s.Load(ctx)
	if err != nil {
		return err
	}
	idx := indexOf(d, id)
	if idx < 0 {
		return core.ErrCategoryNotFound
	}
	d[idx].Name = name
	if err := d[idx].Validate(); err != nil {
		return err
	}
	_, err = s.replace(ctx, d, amqp.SourceEdit)
	return err
}

// DeleteCategory removes a category and all of its items.
func (s *DatasetService) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	d, _, err := s.Load(ctx)
	if err != nil {
		return err
	}
	idx := indexOf(d, id)
	if idx < 0 {
		return core.ErrCategoryNotFound
	}
	d = append(d[:idx], d[idx+1:]...)
	_, err = s.replace(ctx, d, amqp.SourceEdit)
	return err
}

// AddItem appends an expense item to a category.
func (s *DatasetService) AddItem(ctx context.Context, categoryID uuid.UUID, amount decimal.Decimal, description string) (core.ExpenseItem, error) {
	d, _, err := s.Load(ctx)
	if err != nil {
		return core.ExpenseItem{}, err
	}
	idx := indexOf(d, categoryID)
	if idx < 0 {
		return core.ExpenseItem{}, core.ErrCategoryNotFound
	}

	item := core.NewExpenseItem(amount, description)
	d[idx].Items = append(d[idx].Items, item)
	if _, err := s.replace(ctx, d, amqp.SourceEdit); err != nil {
		return core.ExpenseItem{}, err
	}
	return item, nil
}

// DeleteItem removes one expense item from a category.
func (s *DatasetService) DeleteItem(ctx context.Context, categoryID, itemID uuid.UUID) error {
	d, _, err := s.Load(ctx)
	if err != nil {
		return err
	}
	idx := indexOf(d, categoryID)
	if idx < 0 {
		return core.ErrCategoryNotFound
	}
	for i, item := range d[idx].Items {
		if item.ID == itemID {
			d[idx].Items = append(d[idx].Items[:i], d[idx].Items[i+1:]...)
			_, err = s.replace(ctx, d, amqp.SourceEdit)
			return err
		}
	}
	return core.ErrItemNotFound
}

// Revision returns the revision of the stored dataset without decoding it.
func (s *DatasetService) Revision(ctx context.Context) (int64, error) {
	_, revision, err := s.store.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("load dataset: %w", err)
	}
	return revision, nil
}

// ExportImage renders the current dataset into a carrier image using the
// named strategy ("qr" or "stego"). It returns the revision the image was
// rendered from.
func (s *DatasetService) ExportImage(ctx context.Context, strategyName string) ([]byte, int64, error) {
	strategy, err := s.pipeline.Strategy(strategyName)
	if err != nil {
		return nil, 0, err
	}
	d, revision, err := s.Load(ctx)
	if err != nil {
		return nil, 0, err
	}

	out, err := s.pipeline.ExportImage(d, strategy)
	if err != nil {
		return nil, 0, err
	}

	slog.InfoContext(ctx, "Dataset exported",
		"strategy", strategy.Name(),
		"revision", revision,
		"categories", len(d),
		"items", d.ItemCount(),
		"image_bytes", len(out))
	return out, revision, nil
}

// ExportText renders the current dataset as pretty-printed JSON.
func (s *DatasetService) ExportText(ctx context.Context) ([]byte, error) {
	d, _, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	return s.pipeline.ExportText(d)
}

// ImportImage decodes a steganographic carrier and atomically replaces the
// stored dataset. On any decode failure the stored dataset is untouched.
func (s *DatasetService) ImportImage(ctx context.Context, data []byte) (int64, error) {
	d, err := s.pipeline.ImportImage(data)
	if err != nil {
		return 0, err
	}
	return s.importDataset(ctx, d, amqp.SourceImportImage)
}

// ImportScanned decodes raw QR scanner output and atomically replaces the
// stored dataset.
func (s *DatasetService) ImportScanned(ctx context.Context, raw []byte) (int64, error) {
	d, err := s.pipeline.ImportScanned(raw)
	if err != nil {
		return 0, err
	}
	return s.importDataset(ctx, d, amqp.SourceImportScan)
}

// ImportText parses plain JSON text and atomically replaces the stored
// dataset.
func (s *DatasetService) ImportText(ctx context.Context, data []byte) (int64, error) {
	d, err := s.pipeline.ImportText(data)
	if err != nil {
		return 0, err
	}
	return s.importDataset(ctx, d, amqp.SourceImportText)
}

func (s *DatasetService) importDataset(ctx context.Context, d core.Dataset, source string) (int64, error) {
	if err := d.Validate(); err != nil {
		return 0, fmt.Errorf("%w: %v", codec.ErrMalformed, err)
	}
	revision, err := s.replace(ctx, d, source)
	if err != nil {
		return 0, err
	}

	slog.InfoContext(ctx, "Dataset imported",
		"source", source,
		"revision", revision,
		"categories", len(d),
		"items", d.ItemCount())
	return revision, nil
}

// Close closes both storage and the event publisher.
func (s *DatasetService) Close() error {
	var errs []error

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close dataset service: %v", errs)
	}
	return nil
}

func indexOf(d core.Dataset, id uuid.UUID) int {
	for i, c := range d {
		if c.ID == id {
			return i
		}
	}
	return -1
}
