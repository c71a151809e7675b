package tasks

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

type fakeSheetsAPI struct {
	mu      sync.Mutex
	values  map[string][][]interface{} // keyed by range suffix, e.g. "K4:R"
	updates []*sheets.ValueRange
}

func (f *fakeSheetsAPI) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")

		switch {
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "values:batchUpdate"):
			var req sheets.BatchUpdateValuesRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Errorf("decode batchUpdate: %v", err)
			}
			if req.ValueInputOption != "USER_ENTERED" {
				t.Errorf("ValueInputOption = %q", req.ValueInputOption)
			}
			f.updates = append(f.updates, req.Data...)
			json.NewEncoder(w).Encode(map[string]any{"spreadsheetId": "sid", "totalUpdatedCells": len(req.Data)})
		case r.Method == http.MethodGet && strings.Contains(r.URL.Path, "/values/"):
			rng := r.URL.Path[strings.Index(r.URL.Path, "/values/")+len("/values/"):]
			var rows [][]interface{}
			for suffix, v := range f.values {
				if strings.HasSuffix(rng, suffix) {
					rows = v
				}
			}
			json.NewEncoder(w).Encode(map[string]any{"range": rng, "majorDimension": "ROWS", "values": rows})
		case r.Method == http.MethodGet:
			json.NewEncoder(w).Encode(map[string]any{
				"sheets": []map[string]any{
					{"properties": map[string]any{"title": "상품 프로모션", "sheetId": 0}},
					{"properties": map[string]any{"title": "브랜드 프로모션", "sheetId": 1234}},
				},
			})
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

func newTestSheetsClient(t *testing.T, api *fakeSheetsAPI) *SheetsClient {
	t.Helper()
	server := httptest.NewServer(api.handler(t))
	t.Cleanup(server.Close)

	client, err := NewSheetsClient(context.Background(), "sid", "",
		option.WithEndpoint(server.URL+"/"),
		option.WithoutAuthentication(),
		option.WithHTTPClient(server.Client()),
	)
	if err != nil {
		t.Fatalf("NewSheetsClient() error = %v", err)
	}
	return client
}

func TestSheetsClient_ReadRows(t *testing.T) {
	api := &fakeSheetsAPI{values: map[string][][]interface{}{
		"K4:R": {
			{"2025-11-01", "2025-12-05", "986269048", "P", "0.17", "*전 채널"},
			{"2025-11-01", "2025-12-05", "", "P", "0.17", "SSG"},
		},
	}}
	client := newTestSheetsClient(t, api)

	rows, stats, err := client.ReadRows(context.Background(), ProductLayout("상품 프로모션"))
	if err != nil {
		t.Fatalf("ReadRows() error = %v", err)
	}
	if len(rows) != 1 || rows[0].TargetID != 986269048 {
		t.Errorf("ReadRows() = %+v", rows)
	}
	if stats.Read != 2 || stats.Invalid != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestSheetsClient_StampProcessed(t *testing.T) {
	api := &fakeSheetsAPI{values: map[string][][]interface{}{
		"M4:M": {{"100"}, {"200"}, {"300"}},
		"R4:R": {{""}, {"2025. 10. 1"}},
	}}
	client := newTestSheetsClient(t, api)

	n, err := client.StampProcessed(context.Background(), ProductLayout("상품 프로모션"), []int64{100, 200, 300},
		time.Date(2025, 11, 3, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("StampProcessed() error = %v", err)
	}
	if n != 2 {
		t.Errorf("StampProcessed() = %d, want 2", n)
	}
	if len(api.updates) != 2 {
		t.Fatalf("updates = %d, want 2", len(api.updates))
	}
	if api.updates[0].Range != "'상품 프로모션'!R4" || api.updates[1].Range != "'상품 프로모션'!R6" {
		t.Errorf("update ranges = %q, %q", api.updates[0].Range, api.updates[1].Range)
	}
	if api.updates[0].Values[0][0] != "2025. 11. 3" {
		t.Errorf("stamp value = %v", api.updates[0].Values[0][0])
	}
}

func TestSheetsClient_StampNothing(t *testing.T) {
	api := &fakeSheetsAPI{}
	client := newTestSheetsClient(t, api)

	n, err := client.StampProcessed(context.Background(), BrandLayout("b"), nil, time.Now())
	if err != nil || n != 0 {
		t.Errorf("StampProcessed(nil) = %d, %v", n, err)
	}
	if len(api.updates) != 0 {
		t.Errorf("unexpected updates: %d", len(api.updates))
	}
}

func TestSheetsClient_SheetTitle(t *testing.T) {
	client := newTestSheetsClient(t, &fakeSheetsAPI{})

	title, err := client.SheetTitle(context.Background(), 1234)
	if err != nil {
		t.Fatalf("SheetTitle() error = %v", err)
	}
	if title != "브랜드 프로모션" {
		t.Errorf("SheetTitle() = %q", title)
	}
	if _, err := client.SheetTitle(context.Background(), 99); err == nil {
		t.Error("SheetTitle() expected error for unknown gid")
	}
}

func TestParseSheetRef(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantID  string
		wantGID int64
		hasGID  bool
		wantErr bool
	}{
		{name: "bare id", in: "1AbC_d-E", wantID: "1AbC_d-E"},
		{name: "url with fragment gid", in: "https://docs.google.com/spreadsheets/d/1AbC_d-E/edit#gid=1234", wantID: "1AbC_d-E", wantGID: 1234, hasGID: true},
		{name: "url with query gid", in: "https://docs.google.com/spreadsheets/d/1AbC/edit?gid=0#gid=0", wantID: "1AbC", wantGID: 0, hasGID: true},
		{name: "url without gid", in: "https://docs.google.com/spreadsheets/d/1AbC/edit", wantID: "1AbC"},
		{name: "empty", in: " ", wantErr: true},
		{name: "not a sheet", in: "https://example.com/x", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSheetRef(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseSheetRef() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if got.SpreadsheetID != tt.wantID || got.GID != tt.wantGID || got.HasGID != tt.hasGID {
				t.Errorf("ParseSheetRef() = %+v", got)
			}
		})
	}
}
