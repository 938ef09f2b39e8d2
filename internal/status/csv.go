package status

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/smartgov/exgratia/internal/models"
)

// Column names of the status file header.
const (
	ColApplicationID = "application_id"
	ColApplicantName = "applicant_name"
	ColPhone         = "phone"
	ColType          = "type"
	ColStatus        = "status"
	ColAmount        = "amount"
	ColDateApplied   = "date_applied"
	ColRemarks       = "remarks"
)

// Columns lists the status columns in file order.
var Columns = []string{
	ColApplicationID, ColApplicantName, ColPhone, ColType,
	ColStatus, ColAmount, ColDateApplied, ColRemarks,
}

var requiredColumns = []string{ColApplicationID, ColStatus, ColAmount}

// CSVSource reads application records from a CSV file on every call.
type CSVSource struct {
	path string
}

var _ Source = (*CSVSource)(nil)

// NewCSVSource creates a source for the CSV file at path.
func NewCSVSource(path string) *CSVSource {
	return &CSVSource{path: path}
}

// Path returns the file the source reads.
func (s *CSVSource) Path() string {
	return s.path
}

// Records opens and parses the file.
func (s *CSVSource) Records(ctx context.Context) ([]models.ApplicationRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrLookupFailure, s.path, err)
	}
	defer f.Close()

	records, err := ParseCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrLookupFailure, s.path, err)
	}
	return records, nil
}

// ParseCSV parses status rows. The first row must be a header naming at least
// application_id, status and amount; columns may appear in any order.
func ParseCSV(r io.Reader) ([]models.ApplicationRecord, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: missing header", ErrMalformedRecord)
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("%w: header missing column %q", ErrMalformedRecord, col)
		}
	}

	var records []models.ApplicationRecord
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %w", ErrMalformedRecord, line, err)
		}
		rec, err := parseRow(row, index)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func parseRow(row []string, index map[string]int) (models.ApplicationRecord, error) {
	field := func(col string) string {
		i, ok := index[col]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	amount, err := ParseAmount(field(ColAmount))
	if err != nil {
		return models.ApplicationRecord{}, err
	}
	return models.ApplicationRecord{
		ApplicationID: field(ColApplicationID),
		ApplicantName: field(ColApplicantName),
		Phone:         field(ColPhone),
		Type:          field(ColType),
		Status:        models.ApplicationStatus(field(ColStatus)),
		Amount:        amount,
		DateApplied:   field(ColDateApplied),
		Remarks:       field(ColRemarks),
	}, nil
}

// ParseAmount parses a non-negative amount. Thousands separators are accepted.
func ParseAmount(raw string) (float64, error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	amount, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: amount %q is not numeric", ErrMalformedRecord, raw)
	}
	if amount < 0 {
		return 0, fmt.Errorf("%w: amount %q is negative", ErrMalformedRecord, raw)
	}
	return amount, nil
}
