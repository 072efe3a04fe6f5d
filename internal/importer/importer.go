// Package importer loads bank statement exports into the transaction store.
package importer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"moneyviz/internal/amqp"
	"moneyviz/internal/core"
	applog "moneyviz/internal/log"
	"moneyviz/internal/storage"
)

// Store is the part of the repository the importer writes to.
type Store interface {
	EnsureCategories(ctx context.Context, names []string) error
	ImportRecords(ctx context.Context, records []storage.Record) (storage.ImportResult, error)
}

// Publisher announces finished imports.
type Publisher interface {
	PublishImportCompleted(ctx context.Context, msg *amqp.ImportCompletedMessage) error
}

// Recorder counts imported rows.
type Recorder interface {
	RecordImport(inserted, skipped int)
}

// Summary totals an import run across files.
type Summary struct {
	Files    []string
	Inserted int
	Skipped  int
}

type Importer struct {
	store     Store
	rules     *Rules
	locator   *Locator
	publisher Publisher
	recorder  Recorder
	logger    *applog.Logger
}

// Option configures an Importer.
type Option func(*Importer)

// WithLocator splits merchant locations off descriptions before the rules
// are applied.
func WithLocator(l *Locator) Option {
	return func(i *Importer) { i.locator = l }
}

// WithPublisher enables import notifications.
func WithPublisher(p Publisher) Option {
	return func(i *Importer) { i.publisher = p }
}

// WithRecorder enables row counters.
func WithRecorder(r Recorder) Option {
	return func(i *Importer) { i.recorder = r }
}

// WithLogger sets the logger.
func WithLogger(l *applog.Logger) Option {
	return func(i *Importer) { i.logger = l.WithComponent(applog.ComponentImporter) }
}

func New(store Store, rules *Rules, opts ...Option) *Importer {
	i := &Importer{
		store:  store,
		rules:  rules,
		logger: applog.Discard(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Records turns parsed entries into storage records using the rules.
func (i *Importer) Records(entries []Entry) []storage.Record {
	out := make([]storage.Record, 0, len(entries))
	for _, e := range entries {
		desc, location := i.locator.Split(e.Description)
		name, processed := i.rules.Describe(desc)
		out = append(out, storage.Record{
			Date:                e.Date,
			ValueDate:           e.ValueDate,
			AmountCents:         core.ToCents(e.Amount),
			BalanceCents:        core.ToCents(e.Balance),
			Location:            location,
			Description:         desc,
			DescriptionOriginal: e.Original,
			DescriptionID:       name,
			Processed:           processed,
			CategoryID:          i.rules.Category(name),
		})
	}
	return out
}

// ImportFile parses and stores one statement file.
func (i *Importer) ImportFile(ctx context.Context, path string) (storage.ImportResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return storage.ImportResult{}, fmt.Errorf("open statement: %w", err)
	}
	defer f.Close()

	entries, err := ParseStatement(f)
	if err != nil {
		return storage.ImportResult{}, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}

	res, err := i.store.ImportRecords(ctx, i.Records(entries))
	if err != nil {
		return storage.ImportResult{}, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}

	applog.NewStructuredLogger(i.logger).LogImportCompleted(ctx, path, res.Inserted, res.Skipped)
	return res, nil
}

// Import stores every file in order and stops at the first failure. When
// anything was processed a single notification is published at the end;
// a failed publish is logged but does not fail the import.
func (i *Importer) Import(ctx context.Context, paths []string) (Summary, error) {
	var sum Summary

	if err := i.store.EnsureCategories(ctx, i.rules.Categories()); err != nil {
		return sum, fmt.Errorf("seed categories: %w", err)
	}

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		res, err := i.ImportFile(ctx, path)
		if err != nil {
			i.notify(ctx, sum)
			return sum, err
		}
		sum.Files = append(sum.Files, path)
		sum.Inserted += res.Inserted
		sum.Skipped += res.Skipped
		if i.recorder != nil {
			i.recorder.RecordImport(res.Inserted, res.Skipped)
		}
	}

	i.notify(ctx, sum)
	return sum, nil
}

func (i *Importer) notify(ctx context.Context, sum Summary) {
	if i.publisher == nil || sum.Inserted == 0 {
		return
	}
	msg := amqp.NewImportCompletedMessage(sum.Files, sum.Inserted, sum.Skipped)
	if err := i.publisher.PublishImportCompleted(ctx, msg); err != nil {
		applog.NewStructuredLogger(i.logger).LogError(ctx, "Failed to publish import notification", err,
			applog.ComponentImporter, applog.OpPublish, nil)
	}
}
