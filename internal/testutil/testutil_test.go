package testutil

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/smartgov/exgratia/internal/models"
	"github.com/smartgov/exgratia/internal/status"
)

func TestWriteStatusCSVRoundTrip(t *testing.T) {
	want := SampleRecords()
	path := WriteStatusCSV(t, t.TempDir(), want)

	got, err := status.NewCSVSource(path).Records(context.Background())
	if err != nil {
		t.Fatalf("Records: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("got %d records, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("record %d:\n got %+v\nwant %+v", i, got[i], want[i])
		}
	}
}

func TestNewJSONRequest(t *testing.T) {
	req := NewJSONRequest(t, http.MethodPost, "/api/submissions", map[string]string{"name": "Pema"})
	if req.Header.Get("Content-Type") != "application/json" {
		t.Error("missing JSON content type")
	}
	var body map[string]string
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["name"] != "Pema" {
		t.Errorf("body = %v", body)
	}

	empty := NewJSONRequest(t, http.MethodGet, "/health", nil)
	if empty.Header.Get("Content-Type") != "" {
		t.Error("bodyless request should not set a content type")
	}
}

func TestDecodeAPIResponse(t *testing.T) {
	rr := httptest.NewRecorder()
	json.NewEncoder(rr).Encode(models.Success(map[string]string{"application_id": "23LDM786"}))

	resp, raw := DecodeAPIResponse(t, rr, models.APIStatusOK)
	if resp.Status != "ok" {
		t.Errorf("status = %q", resp.Status)
	}
	var result map[string]string
	DecodeResult(t, raw, &result)
	if result["application_id"] != "23LDM786" {
		t.Errorf("result = %v", result)
	}
}
