package status

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/smartgov/exgratia/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCSV = `application_id,applicant_name,phone,type,status,amount,date_applied,remarks
23LDM786,Pema Lhamu,+919800000001,House Damage,Approved,50000,2024-06-12,Amount disbursed
45KTP102,Karma Bhutia,+919800000002,Crop Loss,Under Review,"12,500",2024-07-01,Field verification pending
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseCSV(t *testing.T) {
	records, err := ParseCSV(strings.NewReader(sampleCSV))
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "23LDM786", records[0].ApplicationID)
	assert.Equal(t, models.ApplicationApproved, records[0].Status)
	assert.Equal(t, 50000.0, records[0].Amount)
	assert.Equal(t, 12500.0, records[1].Amount)
	assert.Equal(t, "Field verification pending", records[1].Remarks)
}

func TestParseCSV_ColumnOrder(t *testing.T) {
	in := "status,amount,application_id\nPending,100,ABC123\n"
	records, err := ParseCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "ABC123", records[0].ApplicationID)
	assert.Equal(t, models.ApplicationPending, records[0].Status)
	assert.Empty(t, records[0].ApplicantName)
}

func TestParseCSV_Malformed(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"empty", ""},
		{"missing amount column", "application_id,status\nABC123,Pending\n"},
		{"non-numeric amount", "application_id,status,amount\nABC123,Pending,lots\n"},
		{"negative amount", "application_id,status,amount\nABC123,Pending,-5\n"},
		{"ragged row", "application_id,status,amount\nABC123,Pending\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCSV(strings.NewReader(tt.in))
			assert.ErrorIs(t, err, ErrMalformedRecord)
		})
	}
}

func TestLookup_CSV(t *testing.T) {
	path := writeFile(t, t.TempDir(), "status.csv", sampleCSV)
	l := NewLookup(NewCSVSource(path))

	res, err := l.Lookup(context.Background(), "23ldm786")
	require.NoError(t, err)
	assert.True(t, res.Found)
	assert.Equal(t, "Pema Lhamu", res.Record.ApplicantName)

	res, err = l.Lookup(context.Background(), " 23LDM786 ")
	require.NoError(t, err)
	assert.True(t, res.Found)

	res, err = l.Lookup(context.Background(), "NOPE123")
	require.NoError(t, err)
	assert.False(t, res.Found)
}

func TestLookup_FirstMatchWins(t *testing.T) {
	in := "application_id,status,amount\nDUP123,Pending,1\ndup123,Approved,2\n"
	path := writeFile(t, t.TempDir(), "status.csv", in)

	res, err := NewLookup(NewCSVSource(path)).Lookup(context.Background(), "DUP123")
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationPending, res.Record.Status)
}

func TestLookup_MissingFile(t *testing.T) {
	l := NewLookup(NewCSVSource(filepath.Join(t.TempDir(), "absent.csv")))
	_, err := l.Lookup(context.Background(), "23LDM786")
	assert.ErrorIs(t, err, ErrLookupFailure)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLookup_MalformedAmount(t *testing.T) {
	path := writeFile(t, t.TempDir(), "status.csv", "application_id,status,amount\n23LDM786,Approved,n/a\n")
	_, err := NewLookup(NewCSVSource(path)).Lookup(context.Background(), "23LDM786")
	assert.ErrorIs(t, err, ErrLookupFailure)
	assert.ErrorIs(t, err, ErrMalformedRecord)
}

type failingSource struct{}

func (failingSource) Records(context.Context) ([]models.ApplicationRecord, error) {
	return nil, errors.New("disk on fire")
}

func TestLookup_SourceErrorIsWrapped(t *testing.T) {
	_, err := NewLookup(failingSource{}).Lookup(context.Background(), "23LDM786")
	assert.ErrorIs(t, err, ErrLookupFailure)
	assert.Contains(t, err.Error(), "disk on fire")
}

func TestCachedSource_InvalidatesOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "status.csv", sampleCSV)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cache, err := NewCachedSource(path)
	require.NoError(t, err)
	require.NoError(t, cache.Start(ctx))
	defer cache.Close()

	l := NewLookup(cache)
	res, err := l.Lookup(ctx, "99NEW001")
	require.NoError(t, err)
	assert.False(t, res.Found)

	updated := sampleCSV + "99NEW001,Dawa,+919800000003,Injury,Pending,4300,2024-08-01,\n"
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))

	assert.Eventually(t, func() bool {
		res, err := l.Lookup(ctx, "99new001")
		return err == nil && res.Found
	}, 2*time.Second, 20*time.Millisecond)
}

func TestCachedSource_ServesFromCache(t *testing.T) {
	path := writeFile(t, t.TempDir(), "status.csv", sampleCSV)
	cache, err := NewCachedSource(path)
	require.NoError(t, err)
	defer cache.Close()

	first, err := cache.Records(context.Background())
	require.NoError(t, err)
	require.Len(t, first, 2)

	// Not started, so no invalidation: the removed file is not re-read.
	require.NoError(t, os.Remove(path))
	second, err := cache.Records(context.Background())
	require.NoError(t, err)
	assert.Len(t, second, 2)

	cache.Invalidate()
	_, err = cache.Records(context.Background())
	assert.ErrorIs(t, err, ErrLookupFailure)
}

func TestCachedSource_CloseStopsLoop(t *testing.T) {
	path := writeFile(t, t.TempDir(), "status.csv", sampleCSV)
	cache, err := NewCachedSource(path)
	require.NoError(t, err)
	require.NoError(t, cache.Start(context.Background()))
	require.NoError(t, cache.Close())

	select {
	case <-cache.Done():
	case <-time.After(time.Second):
		t.Fatal("watch loop did not exit")
	}
	assert.NoError(t, cache.Close())
}

const createStatusTable = `CREATE TABLE application_status (
	application_id TEXT PRIMARY KEY,
	applicant_name TEXT,
	phone TEXT,
	type TEXT,
	status TEXT NOT NULL,
	amount REAL NOT NULL,
	date_applied TEXT,
	remarks TEXT
)`

func newSQLiteDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "status.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	_, err = db.Exec(createStatusTable)
	require.NoError(t, err)
	return db
}

func TestSQLSource_RoundTrip(t *testing.T) {
	db := newSQLiteDB(t)
	src := NewSQLSource(db, DialectSQLite)

	records, err := ParseCSV(strings.NewReader(sampleCSV))
	require.NoError(t, err)
	n, err := src.Import(context.Background(), records)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	l := NewLookup(src)
	res, err := l.Lookup(context.Background(), "23ldm786")
	require.NoError(t, err)
	require.True(t, res.Found)
	assert.Equal(t, records[0], res.Record)

	res, err = l.Lookup(context.Background(), "NOPE123")
	require.NoError(t, err)
	assert.False(t, res.Found)

	all, err := src.Records(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestSQLSource_ImportReplaces(t *testing.T) {
	src := NewSQLSource(newSQLiteDB(t), DialectSQLite)
	ctx := context.Background()

	_, err := src.Import(ctx, []models.ApplicationRecord{
		{ApplicationID: "ABC123", Status: models.ApplicationPending, Amount: 10},
		{ApplicationID: "XYZ789", Status: models.ApplicationPending, Amount: 30},
	})
	require.NoError(t, err)
	_, err = src.Import(ctx, []models.ApplicationRecord{{ApplicationID: "abc123", Status: models.ApplicationApproved, Amount: 20}})
	require.NoError(t, err)

	all, err := src.Records(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, models.ApplicationApproved, all[0].Status)

	res, err := NewLookup(src).Lookup(ctx, "XYZ789")
	require.NoError(t, err)
	assert.False(t, res.Found, "row removed from the CSV must not be served")
}

func TestSQLSource_ImportEmptyClears(t *testing.T) {
	src := NewSQLSource(newSQLiteDB(t), DialectSQLite)
	ctx := context.Background()

	_, err := src.Import(ctx, []models.ApplicationRecord{{ApplicationID: "ABC123", Status: models.ApplicationPending, Amount: 10}})
	require.NoError(t, err)
	n, err := src.Import(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	all, err := src.Records(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestSQLSource_ImportFirstDuplicateWins(t *testing.T) {
	src := NewSQLSource(newSQLiteDB(t), DialectSQLite)
	ctx := context.Background()
	records := []models.ApplicationRecord{
		{ApplicationID: "ABC123", ApplicantName: "First", Status: models.ApplicationPending, Amount: 10},
		{ApplicationID: "abc123", ApplicantName: "Second", Status: models.ApplicationApproved, Amount: 20},
	}

	n, err := src.Import(ctx, records)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	fromSQL, err := NewLookup(src).Lookup(ctx, "ABC123")
	require.NoError(t, err)
	csvPath := writeFile(t, t.TempDir(), "status.csv", strings.Join(Columns, ",")+"\n"+
		"ABC123,First,,,Pending,10,,\n"+
		"abc123,Second,,,Approved,20,,\n")
	fromCSV, err := NewLookup(NewCSVSource(csvPath)).Lookup(ctx, "ABC123")
	require.NoError(t, err)
	require.True(t, fromSQL.Found)
	require.True(t, fromCSV.Found)
	assert.Equal(t, "First", fromSQL.Record.ApplicantName)
	assert.Equal(t, fromCSV.Record.ApplicantName, fromSQL.Record.ApplicantName)
}

func TestSQLSource_QueryFailure(t *testing.T) {
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "empty.db"))
	require.NoError(t, err)
	defer db.Close()

	_, err = NewLookup(NewSQLSource(db, DialectSQLite)).Lookup(context.Background(), "23LDM786")
	assert.ErrorIs(t, err, ErrLookupFailure)
}
