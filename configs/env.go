package configs

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v9"
	_ "github.com/joho/godotenv/autoload"
)

// Env holds configuration shared by every promotion pipeline run
type Env struct {
	Port      string `env:"PORT" envDefault:"8080"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	OutputDir string `env:"OUTPUT_DIR" envDefault:"outputs"`

	// Google Sheets (campaign source)
	SpreadsheetURL        string `env:"SPREADSHEET_URL,required,notEmpty"`
	ProductSheetName      string `env:"PRODUCT_SHEET_NAME"`
	BrandSheetName        string `env:"BRAND_SHEET_NAME"`
	GoogleCredentialsFile string `env:"GOOGLE_APPLICATION_CREDENTIALS" envDefault:"credentials.json"`

	// Product lookup service
	ProductAPIBaseURL string        `env:"PRODUCT_API_BASE_URL,required,notEmpty"`
	ProductAPITimeout time.Duration `env:"PRODUCT_API_TIMEOUT" envDefault:"5s"`
	LookupDelay       time.Duration `env:"PRODUCT_LOOKUP_DELAY" envDefault:"50ms"`

	// Back office UI (promotion submission and secondary lookup)
	BackOfficeURL      string        `env:"BFLOW_BASE_URL" envDefault:"https://b-flow.co.kr"`
	BackOfficeEmail    string        `env:"BFLOW_EMAIL"`
	BackOfficePassword string        `env:"BFLOW_PASSWORD"`
	BrowserHeadless    bool          `env:"BROWSER_HEADLESS" envDefault:"true"`
	BrowserTimeout     time.Duration `env:"BROWSER_TIMEOUT" envDefault:"2m"`
	ScrapeBatchSize    int           `env:"SCRAPE_BATCH_SIZE" envDefault:"20"`

	// Email Configuration (run summary)
	EmailSMTPHost     string   `env:"EMAIL_SMTP_HOST" envDefault:"smtp.resend.com"`
	EmailSMTPPort     string   `env:"EMAIL_SMTP_PORT" envDefault:"587"`
	EmailSMTPUser     string   `env:"EMAIL_SMTP_USER" envDefault:"resend"`
	EmailSMTPPassword string   `env:"EMAIL_SMTP_PASSWORD"`
	EmailFromAddress  string   `env:"EMAIL_FROM_ADDRESS"`
	NotifyEmails      []string `env:"NOTIFY_EMAILS" envSeparator:","`

	// Cloud Logging (run history)
	GCPProjectID string `env:"GCP_PROJECT_ID"`
	ServiceName  string `env:"SERVICE_NAME"`
}

// Load parses the environment (and a .env file when present) into Env
func Load() (*Env, error) {
	cfg := &Env{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if cfg.ServiceName == "" {
		cfg.ServiceName = getEnv("K_SERVICE", "promo-pipelines")
	}
	if cfg.ScrapeBatchSize <= 0 {
		return nil, fmt.Errorf("SCRAPE_BATCH_SIZE must be positive, got %d", cfg.ScrapeBatchSize)
	}

	return cfg, nil
}

// HasBackOfficeCredentials reports whether browser login is possible
func (e *Env) HasBackOfficeCredentials() bool {
	return e.BackOfficeEmail != "" && e.BackOfficePassword != ""
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
