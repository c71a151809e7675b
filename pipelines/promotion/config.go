package promotion

import (
	"fmt"

	"promo-pipelines/configs"
	"promo-pipelines/tasks"
	"promo-pipelines/types"
)

// Config holds the settings of one campaign-kind run
type Config struct {
	Kind types.CampaignKind

	// SheetName is the spreadsheet tab holding this kind's rows
	SheetName string

	// OutputDir receives generated files, the upload ledger and failure screenshots
	OutputDir string

	// DryRun writes files without submitting or stamping
	DryRun bool
}

// LoadConfig builds the run config from the environment. A non-empty sheet
// overrides PRODUCT_SHEET_NAME / BRAND_SHEET_NAME.
func LoadConfig(env *configs.Env, kind types.CampaignKind, sheet string, dryRun bool) *Config {
	if sheet == "" {
		sheet = defaultSheet(env, kind)
	}
	return &Config{
		Kind:      kind,
		SheetName: sheet,
		OutputDir: env.OutputDir,
		DryRun:    dryRun,
	}
}

func defaultSheet(env *configs.Env, kind types.CampaignKind) string {
	if env == nil {
		return ""
	}
	if kind == types.KindBrand {
		return env.BrandSheetName
	}
	return env.ProductSheetName
}

func sheetEnvName(kind types.CampaignKind) string {
	if kind == types.KindBrand {
		return "BRAND_SHEET_NAME"
	}
	return "PRODUCT_SHEET_NAME"
}

// Validate checks that all required run configuration is present
func (c *Config) Validate() error {
	if c.Kind != types.KindProduct && c.Kind != types.KindBrand {
		return fmt.Errorf("campaign kind %q is not supported", c.Kind)
	}
	if c.SheetName == "" {
		return fmt.Errorf("%s is required", sheetEnvName(c.Kind))
	}
	if c.OutputDir == "" {
		return fmt.Errorf("OUTPUT_DIR is required")
	}
	return nil
}

// Layout is the sheet layout for this run
func (c *Config) Layout() tasks.SheetLayout {
	return tasks.LayoutFor(c.Kind, c.SheetName)
}
