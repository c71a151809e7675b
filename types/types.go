package types

import (
	"fmt"
	"strings"
	"time"
)

// CampaignKind selects the sheet layout, channel set and lookup strategy
type CampaignKind string

const (
	KindProduct CampaignKind = "product"
	KindBrand   CampaignKind = "brand"
)

// Kinds lists every campaign kind in processing order
var Kinds = []CampaignKind{KindProduct, KindBrand}

// ParseCampaignKind accepts the English name or the Korean label
func ParseCampaignKind(s string) (CampaignKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "product", "products", "상품":
		return KindProduct, nil
	case "brand", "brands", "브랜드":
		return KindBrand, nil
	}
	return "", fmt.Errorf("unknown campaign kind %q", s)
}

// Label is the fixed token used in generated file names
func (k CampaignKind) Label() string {
	if k == KindBrand {
		return "브랜드"
	}
	return "상품"
}

// KindFromLabel is the inverse of Label
func KindFromLabel(label string) (CampaignKind, bool) {
	switch label {
	case "상품":
		return KindProduct, true
	case "브랜드":
		return KindBrand, true
	}
	return "", false
}

// DiscountType is the closed set of discount encodings the back office accepts
type DiscountType int

const (
	DiscountPercent DiscountType = iota + 1
	DiscountWon
	DiscountAbsolute
)

// ParseDiscountType maps the sheet code (P, W, A) to a DiscountType
func ParseDiscountType(s string) (DiscountType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "P", "%":
		return DiscountPercent, nil
	case "W", "원":
		return DiscountWon, nil
	case "A":
		return DiscountAbsolute, nil
	}
	return 0, fmt.Errorf("unknown discount type %q", s)
}

// Code is the single-letter code written to output files
func (d DiscountType) Code() string {
	switch d {
	case DiscountPercent:
		return "P"
	case DiscountWon:
		return "W"
	case DiscountAbsolute:
		return "A"
	}
	return ""
}

func (d DiscountType) String() string {
	switch d {
	case DiscountPercent:
		return "percent"
	case DiscountWon:
		return "won"
	case DiscountAbsolute:
		return "absolute"
	}
	return fmt.Sprintf("DiscountType(%d)", int(d))
}

// SourceRow is one campaign row read from the sheet
type SourceRow struct {
	Kind            CampaignKind
	SheetRow        int // 1-based sheet row number
	StartDate       time.Time
	EndDate         time.Time
	TargetID        int64 // product id or brand id
	DiscountType    DiscountType
	DiscountValue   float64
	ChannelSelector string
	Note            string
	ProcessedDate   string // raw cell value, empty when not yet processed
}

// IsProcessed reports whether the row was stamped by an earlier run
func (r SourceRow) IsProcessed() bool {
	return r.ProcessedDate != ""
}

// PromotionRow is one expanded row destined for a single channel file
type PromotionRow struct {
	StartDate             time.Time
	EndDate               time.Time
	Channel               string
	TargetID              int64
	DiscountType          DiscountType
	DiscountValue         float64
	LinkedDiscountType    DiscountType
	LinkedDiscountValue   float64
	ExternalDiscountType  DiscountType
	ExternalDiscountValue float64
	ChannelShare          int
	PlatformShare         int
	VendorShare           int
}

// GeneratedFile is a materialized channel file ready for submission
type GeneratedFile struct {
	Name      string
	Path      string
	Kind      CampaignKind
	Channel   string
	StartDate time.Time
	EndDate   time.Time
	Rows      int
	TargetIDs []int64
}

// FileOutcome is the submission result for one file
type FileOutcome struct {
	Name     string `json:"name"`
	Channel  string `json:"channel"`
	Rows     int    `json:"rows"`
	Success  bool   `json:"success"`
	Attempts int    `json:"attempts"`
	Error    string `json:"error,omitempty"`
}

// RunReport summarizes one campaign-kind run
type RunReport struct {
	RunID          string        `json:"run_id"`
	Kind           CampaignKind  `json:"kind"`
	Resumed        bool          `json:"resumed"`
	RowsRead       int           `json:"rows_read"`
	RowsInvalid    int           `json:"rows_invalid"`
	RowsProcessed  int           `json:"rows_processed"`
	RowsPending    int           `json:"rows_pending"`
	RowsExpanded   int           `json:"rows_expanded"`
	FilesGenerated int           `json:"files_generated"`
	FilesSucceeded int           `json:"files_succeeded"`
	FilesFailed    int           `json:"files_failed"`
	RowsStamped    int           `json:"rows_stamped"`
	Files          []FileOutcome `json:"files,omitempty"`
}

// AllSucceeded reports whether every generated file reached the back office
func (r *RunReport) AllSucceeded() bool {
	return r.FilesFailed == 0 && r.FilesSucceeded == r.FilesGenerated
}

// PipelineRequest is the body of POST /run/{kind}
type PipelineRequest struct {
	SheetName string `json:"sheet_name,omitempty"`
	Resume    string `json:"resume,omitempty"` // "retry", "restart" or empty for automatic
	DryRun    bool   `json:"dry_run,omitempty"`
}

// PipelineResponse is returned by the HTTP runner
type PipelineResponse struct {
	Success bool         `json:"success"`
	Reports []*RunReport `json:"reports,omitempty"`
	Error   string       `json:"error,omitempty"`
}
