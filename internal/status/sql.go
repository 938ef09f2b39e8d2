package status

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/smartgov/exgratia/internal/models"
)

// TableName is the SQL table holding application records.
const TableName = "application_status"

// Dialect selects the placeholder style of the target database.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite3"
	DialectPostgres Dialect = "postgres"
)

func (d Dialect) placeholders() sq.PlaceholderFormat {
	if d == DialectPostgres {
		return sq.Dollar
	}
	return sq.Question
}

// SQLSource reads application records from the application_status table.
type SQLSource struct {
	db      *sql.DB
	builder sq.StatementBuilderType
}

var (
	_ Source = (*SQLSource)(nil)
	_ Finder = (*SQLSource)(nil)
)

// NewSQLSource creates a source over db. The table is expected to exist.
func NewSQLSource(db *sql.DB, dialect Dialect) *SQLSource {
	return &SQLSource{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(dialect.placeholders()),
	}
}

func (s *SQLSource) selectRecords() sq.SelectBuilder {
	return s.builder.Select(Columns...).From(TableName)
}

// Find matches applicationID case-insensitively inside the query.
func (s *SQLSource) Find(ctx context.Context, applicationID string) (models.ApplicationRecord, bool, error) {
	query, args, err := s.selectRecords().
		Where(sq.Eq{"UPPER(" + ColApplicationID + ")": strings.ToUpper(applicationID)}).
		Limit(1).
		ToSql()
	if err != nil {
		return models.ApplicationRecord{}, false, fmt.Errorf("build query: %w", err)
	}

	rec, err := scanRecord(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return models.ApplicationRecord{}, false, nil
	}
	if err != nil {
		return models.ApplicationRecord{}, false, err
	}
	return rec, true, nil
}

// Records returns every row of the table.
func (s *SQLSource) Records(ctx context.Context) ([]models.ApplicationRecord, error) {
	query, args, err := s.selectRecords().ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", TableName, err)
	}
	defer rows.Close()

	var records []models.ApplicationRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", TableName, err)
	}
	return records, nil
}

// Import replaces the table contents with records in one transaction, so rows
// dropped from the source disappear and an empty batch clears the table. When
// IDs repeat, ignoring case, the first record wins, matching CSV lookups.
func (s *SQLSource) Import(ctx context.Context, records []models.ApplicationRecord) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin import: %w", err)
	}
	defer tx.Rollback()

	del, delArgs, err := s.builder.Delete(TableName).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete: %w", err)
	}
	if _, err := tx.ExecContext(ctx, del, delArgs...); err != nil {
		return 0, fmt.Errorf("clear %s: %w", TableName, err)
	}

	seen := make(map[string]struct{}, len(records))
	imported := 0
	for _, rec := range records {
		key := strings.ToUpper(rec.ApplicationID)
		if _, dup := seen[key]; dup {
			slog.Warn("SQLSource skipping duplicate application ID", "application_id", rec.ApplicationID)
			continue
		}
		seen[key] = struct{}{}

		ins, insArgs, err := s.builder.Insert(TableName).
			Columns(Columns...).
			Values(rec.ApplicationID, rec.ApplicantName, rec.Phone, rec.Type,
				string(rec.Status), rec.Amount, rec.DateApplied, rec.Remarks).
			ToSql()
		if err != nil {
			return 0, fmt.Errorf("build insert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, ins, insArgs...); err != nil {
			return 0, fmt.Errorf("insert %s: %w", rec.ApplicationID, err)
		}
		imported++
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit import: %w", err)
	}
	slog.Info("SQLSource imported status records", "count", imported, "skipped", len(records)-imported)
	return imported, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (models.ApplicationRecord, error) {
	var (
		rec                                     models.ApplicationRecord
		name, phone, typ, date, remarks, status sql.NullString
		amount                                  sql.NullFloat64
	)
	if err := row.Scan(&rec.ApplicationID, &name, &phone, &typ, &status, &amount, &date, &remarks); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rec, err
		}
		return rec, fmt.Errorf("scan %s: %w", TableName, err)
	}
	if !amount.Valid || amount.Float64 < 0 {
		return rec, fmt.Errorf("%w: invalid amount for %s", ErrMalformedRecord, rec.ApplicationID)
	}
	rec.ApplicantName = name.String
	rec.Phone = phone.String
	rec.Type = typ.String
	rec.Status = models.ApplicationStatus(status.String)
	rec.Amount = amount.Float64
	rec.DateApplied = date.String
	rec.Remarks = remarks.String
	return rec, nil
}
