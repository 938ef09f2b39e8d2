// Package testutil provides fixtures and HTTP helpers shared by the assistant's tests.
package testutil

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/smartgov/exgratia/internal/models"
	"github.com/smartgov/exgratia/internal/status"
)

// SampleRecords returns a small status table covering every known status.
func SampleRecords() []models.ApplicationRecord {
	return []models.ApplicationRecord{
		{ApplicationID: "23LDM786", ApplicantName: "Pema Lhamu", Phone: "+919800000001", Type: "Landslide", Status: models.ApplicationApproved, Amount: 50000, DateApplied: "2024-06-12", Remarks: "Disbursed"},
		{ApplicationID: "24FLD102", ApplicantName: "Karma Bhutia", Phone: "+919800000002", Type: "Flood", Status: models.ApplicationUnderReview, Amount: 12500.5, DateApplied: "2024-07-01"},
		{ApplicationID: "24CRP330", ApplicantName: "Tshering Dorjee", Phone: "+919800000003", Type: "Crop loss", Status: models.ApplicationPending, Amount: 8000, DateApplied: "2024-07-15"},
		{ApplicationID: "22HSE901", ApplicantName: "Nima Sherpa", Phone: "+919800000004", Type: "House damage", Status: models.ApplicationRejected, Amount: 0, DateApplied: "2023-11-30", Remarks: "Duplicate claim"},
	}
}

// WriteStatusCSV writes records to dir/status.csv with the standard header and returns the path.
func WriteStatusCSV(t testing.TB, dir string, records []models.ApplicationRecord) string {
	t.Helper()
	path := filepath.Join(dir, "status.csv")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create status csv: %v", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(status.Columns); err != nil {
		t.Fatalf("write header: %v", err)
	}
	for _, r := range records {
		row := []string{
			r.ApplicationID, r.ApplicantName, r.Phone, r.Type,
			string(r.Status), strconv.FormatFloat(r.Amount, 'f', -1, 64), r.DateApplied, r.Remarks,
		}
		if err := w.Write(row); err != nil {
			t.Fatalf("write row: %v", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		t.Fatalf("flush status csv: %v", err)
	}
	return path
}

// WriteFile writes content to dir/name and returns the path.
func WriteFile(t testing.TB, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

// NewJSONRequest creates a request with body encoded as JSON; a nil body sends none.
func NewJSONRequest(t testing.TB, method, url string, body interface{}) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

// DecodeAPIResponse decodes a models.APIResponse and checks its status field.
// Result is left as raw JSON for DecodeResult.
func DecodeAPIResponse(t testing.TB, rr *httptest.ResponseRecorder, wantStatus models.APIStatus) (models.APIResponse, json.RawMessage) {
	t.Helper()
	var envelope struct {
		models.APIResponse
		Result json.RawMessage `json:"result,omitempty"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode API response: %v", err)
	}
	if envelope.Status != string(wantStatus) {
		t.Errorf("API status = %q, want %q (message %q)", envelope.Status, wantStatus, envelope.Message)
	}
	return envelope.APIResponse, envelope.Result
}

// DecodeResult unmarshals a raw API result into target.
func DecodeResult(t testing.TB, raw json.RawMessage, target interface{}) {
	t.Helper()
	if err := json.Unmarshal(raw, target); err != nil {
		t.Fatalf("decode API result: %v", err)
	}
}
