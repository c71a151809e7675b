package types

import (
	"encoding/json"
	"testing"
)

func TestParseCampaignKind(t *testing.T) {
	tests := []struct {
		in      string
		want    CampaignKind
		wantErr bool
	}{
		{"product", KindProduct, false},
		{" Brand ", KindBrand, false},
		{"상품", KindProduct, false},
		{"브랜드", KindBrand, false},
		{"both", "", true},
	}

	for _, tt := range tests {
		got, err := ParseCampaignKind(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseCampaignKind(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseCampaignKind(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestKindLabelRoundTrip(t *testing.T) {
	for _, k := range Kinds {
		got, ok := KindFromLabel(k.Label())
		if !ok || got != k {
			t.Errorf("KindFromLabel(%q) = %q, %v; want %q", k.Label(), got, ok, k)
		}
	}
	if _, ok := KindFromLabel("기타"); ok {
		t.Error("KindFromLabel accepted an unknown label")
	}
}

func TestParseDiscountType(t *testing.T) {
	tests := []struct {
		in      string
		want    DiscountType
		wantErr bool
	}{
		{"P", DiscountPercent, false},
		{"p ", DiscountPercent, false},
		{"W", DiscountWon, false},
		{"A", DiscountAbsolute, false},
		{"X", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseDiscountType(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseDiscountType(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseDiscountType(%q) = %v, want %v", tt.in, got, tt.want)
		}
		if !tt.wantErr && got.Code() != normalizeCode(tt.in) {
			t.Errorf("Code() = %q, want %q", got.Code(), normalizeCode(tt.in))
		}
	}
}

func normalizeCode(s string) string {
	switch s {
	case "p ":
		return "P"
	}
	return s
}

func TestRunReport_AllSucceeded(t *testing.T) {
	tests := []struct {
		name   string
		report RunReport
		want   bool
	}{
		{"no files", RunReport{}, true},
		{"all ok", RunReport{FilesGenerated: 3, FilesSucceeded: 3}, true},
		{"partial", RunReport{FilesGenerated: 3, FilesSucceeded: 1, FilesFailed: 2}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.report.AllSucceeded(); got != tt.want {
				t.Errorf("AllSucceeded() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPipelineResponse_JSONMarshal(t *testing.T) {
	response := PipelineResponse{
		Success: false,
		Error:   "sheet not found",
	}

	data, err := json.Marshal(response)
	if err != nil {
		t.Fatalf("Marshal error = %v", err)
	}

	var result map[string]interface{}
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("Unmarshal error = %v", err)
	}

	if result["success"] != false {
		t.Errorf("success = %v, want false", result["success"])
	}
	if _, ok := result["reports"]; ok {
		t.Error("reports should be omitted when empty")
	}
}
