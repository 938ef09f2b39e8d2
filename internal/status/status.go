// Package status looks up ex-gratia application records by application ID.
//
// A lookup either finds a record or reports NotFound; any failure to read or
// parse the underlying store is returned as an error wrapping ErrLookupFailure.
package status

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/smartgov/exgratia/internal/models"
)

var (
	// ErrLookupFailure marks any failure to read or parse the status store.
	ErrLookupFailure = errors.New("status lookup failed")
	// ErrMalformedRecord marks a row that cannot be turned into an ApplicationRecord.
	ErrMalformedRecord = errors.New("malformed status record")
)

// Source yields every application record in store order.
type Source interface {
	Records(ctx context.Context) ([]models.ApplicationRecord, error)
}

// Finder is implemented by sources that can match an ID without a full scan.
// The match must be case-insensitive.
type Finder interface {
	Find(ctx context.Context, applicationID string) (models.ApplicationRecord, bool, error)
}

// Lookup resolves application IDs against a Source.
type Lookup struct {
	src Source
}

// NewLookup creates a Lookup backed by src.
func NewLookup(src Source) *Lookup {
	return &Lookup{src: src}
}

// Lookup returns the first record whose application_id equals id, ignoring case.
func (l *Lookup) Lookup(ctx context.Context, id string) (models.LookupResult, error) {
	id = strings.TrimSpace(id)

	if f, ok := l.src.(Finder); ok {
		rec, found, err := f.Find(ctx, id)
		if err != nil {
			slog.Error("Lookup Find failed", "error", err, "application_id", id)
			return models.LookupResult{}, wrapFailure(err)
		}
		if !found {
			slog.Debug("Lookup no match", "application_id", id)
			return models.NotFound(), nil
		}
		return models.Found(rec), nil
	}

	records, err := l.src.Records(ctx)
	if err != nil {
		slog.Error("Lookup Records failed", "error", err, "application_id", id)
		return models.LookupResult{}, wrapFailure(err)
	}
	for _, rec := range records {
		if strings.EqualFold(rec.ApplicationID, id) {
			return models.Found(rec), nil
		}
	}
	slog.Debug("Lookup no match", "application_id", id, "records", len(records))
	return models.NotFound(), nil
}

func wrapFailure(err error) error {
	if errors.Is(err, ErrLookupFailure) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrLookupFailure, err)
}
