// Package submission keeps the append-only CSV log of application submissions.
package submission

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/smartgov/exgratia/internal/models"
)

// Header is the first row of the submission log.
var Header = []string{"submission_id", "name", "phone", "submission_date", "status", "details"}

// DateLayout is how submission dates are written.
const DateLayout = "2006-01-02 15:04:05"

var ErrMalformedLog = errors.New("malformed submission log")

// Log appends submissions to a CSV file. It is safe for concurrent use.
type Log struct {
	path string
	now  func() time.Time
	mu   sync.Mutex
}

// Open creates the log file with its header when it is missing or empty.
func Open(path string) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create submission dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open submission log: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat submission log: %w", err)
	}
	if info.Size() == 0 {
		w := csv.NewWriter(f)
		if err := w.Write(Header); err != nil {
			return nil, fmt.Errorf("write submission header: %w", err)
		}
		w.Flush()
		if err := w.Error(); err != nil {
			return nil, fmt.Errorf("write submission header: %w", err)
		}
		slog.Info("Submission log initialised", "path", path)
	}
	return &Log{path: path, now: time.Now}, nil
}

// Path returns the log file path.
func (l *Log) Path() string {
	return l.path
}

// Append validates s, assigns its ID, date and Received status, and writes it.
// The stored submission is returned.
func (l *Log) Append(s models.Submission) (models.Submission, error) {
	if err := s.Validate(); err != nil {
		return models.Submission{}, err
	}
	s.ID = uuid.NewString()
	s.SubmissionDate = l.now().Truncate(time.Second)
	s.Status = models.SubmissionReceived

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		slog.Error("Submission Append open failed", "error", err, "path", l.path)
		return models.Submission{}, fmt.Errorf("open submission log: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	row := []string{s.ID, s.Name, s.Phone, s.SubmissionDate.Format(DateLayout), string(s.Status), s.Details}
	if err := w.Write(row); err != nil {
		return models.Submission{}, fmt.Errorf("write submission: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		slog.Error("Submission Append write failed", "error", err, "path", l.path)
		return models.Submission{}, fmt.Errorf("write submission: %w", err)
	}
	slog.Info("Submission recorded", "submission_id", s.ID)
	return s, nil
}

// List reads every submission in file order.
func (l *Log) List() ([]models.Submission, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("open submission log: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(Header)
	if _, err := r.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return []models.Submission{}, nil
		}
		return nil, fmt.Errorf("%w: header: %w", ErrMalformedLog, err)
	}

	out := []models.Submission{}
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedLog, err)
		}
		date, err := time.ParseInLocation(DateLayout, row[3], time.Local)
		if err != nil {
			return nil, fmt.Errorf("%w: submission %s date: %w", ErrMalformedLog, row[0], err)
		}
		out = append(out, models.Submission{
			ID:             row[0],
			Name:           row[1],
			Phone:          row[2],
			SubmissionDate: date,
			Status:         models.SubmissionStatus(row[4]),
			Details:        row[5],
		})
	}
}
