package pipelines

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"promo-pipelines/channels"
	"promo-pipelines/configs"
	"promo-pipelines/ledger"
	"promo-pipelines/tasks"
	"promo-pipelines/types"
)

// RowSource reads campaign rows and writes processed dates back
type RowSource interface {
	ReadRows(ctx context.Context, layout tasks.SheetLayout) ([]types.SourceRow, tasks.RowStats, error)
	StampProcessed(ctx context.Context, layout tasks.SheetLayout, ids []int64, today time.Time) (int, error)
}

// ChannelQuery resolves products to their channel listings
type ChannelQuery interface {
	Query(ctx context.Context, productIDs []int64) map[int64]map[string]string
}

// FileWriter materializes channel files and reads them back on resume
type FileWriter interface {
	Write(kind types.CampaignKind, g tasks.FileGroup) (types.GeneratedFile, error)
	ReadTargetIDs(path string) ([]int64, error)
	Dir() string
}

// Submitter registers one file with the back office
type Submitter interface {
	Submit(ctx context.Context, sub tasks.Submission) (bool, error)
}

// Notifier delivers run reports; it reports whether anything was sent
type Notifier interface {
	Notify(ctx context.Context, reports []*types.RunReport) (bool, error)
}

// State holds shared state between pipeline tasks
// Collaborators are set once by NewState (or by tests); per-run data goes in the Data map
// State is safe for concurrent access via Get/Set methods
type State struct {
	Ctx    context.Context
	Config *configs.Env
	RunID  string

	Directory *channels.Directory
	Sheets    RowSource
	Lookup    ChannelQuery
	Writer    FileWriter
	Submitter Submitter
	Ledger    ledger.Store
	Notifier  Notifier

	// Now is the clock used for processed dates
	Now func() time.Time

	closers []func()

	// mu protects Data from concurrent access
	mu sync.RWMutex

	// Data holds pipeline-specific state keyed by the pipeline's Key constants
	Data map[string]interface{}
}

// NewState validates the channel registry and wires the production collaborators
func NewState(ctx context.Context, cfg *configs.Env) (*State, error) {
	dir := channels.Default()
	if err := dir.Validate(); err != nil {
		return nil, fmt.Errorf("channel registry: %w", err)
	}

	ref, err := tasks.ParseSheetRef(cfg.SpreadsheetURL)
	if err != nil {
		return nil, err
	}
	sheetsClient, err := tasks.NewSheetsClient(ctx, ref.SpreadsheetID, cfg.GoogleCredentialsFile)
	if err != nil {
		return nil, err
	}

	browser := tasks.NewBrowser(tasks.BrowserConfig{
		BaseURL:  cfg.BackOfficeURL,
		Email:    cfg.BackOfficeEmail,
		Password: cfg.BackOfficePassword,
		Headless: cfg.BrowserHeadless,
		Timeout:  cfg.BrowserTimeout,
	})

	// nil interface, not a nil *ChannelScraper, when the fallback is unavailable
	var secondary tasks.SecondaryLookup
	if cfg.HasBackOfficeCredentials() {
		secondary = tasks.NewChannelScraper(browser, dir, cfg.ScrapeBatchSize)
	} else {
		zap.L().Warn("back office credentials not set, secondary channel lookup disabled")
	}
	primary := tasks.NewProductAPIClient(cfg.ProductAPIBaseURL, cfg.ProductAPITimeout)

	s := NewStateWith(ctx, cfg, dir)
	s.Sheets = sheetsClient
	s.Lookup = tasks.NewChannelLookup(primary, secondary, cfg.LookupDelay)
	s.Writer = tasks.NewXLSXWriter(cfg.OutputDir)
	s.Submitter = tasks.NewPromotionSubmitter(browser, dir, cfg.OutputDir)
	s.Ledger = ledger.NewFileStore(cfg.OutputDir)
	s.Notifier = emailNotifier{cfg: cfg}
	s.closers = append(s.closers, browser.Close)
	return s, nil
}

// NewStateWith returns a state without collaborators; callers set them
func NewStateWith(ctx context.Context, cfg *configs.Env, dir *channels.Directory) *State {
	if ctx == nil {
		ctx = context.Background()
	}
	return &State{
		Ctx:       ctx,
		Config:    cfg,
		RunID:     uuid.NewString(),
		Directory: dir,
		Now:       time.Now,
		Data:      make(map[string]interface{}),
	}
}

// NewRun starts a fresh run id and clears per-run data
func (s *State) NewRun() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.RunID = uuid.NewString()
	s.Data = make(map[string]interface{})
	return s.RunID
}

// Close releases the browser and other collaborators
func (s *State) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

// Set stores a value in the pipeline state (thread-safe)
func (s *State) Set(key string, value interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Data[key] = value
}

// Get retrieves a value from the pipeline state (thread-safe)
func (s *State) Get(key string) interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Data[key]
}

// GetString retrieves a string value from the pipeline state (thread-safe)
func (s *State) GetString(key string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.Data[key].(string); ok {
		return v
	}
	return ""
}

type emailNotifier struct {
	cfg *configs.Env
}

func (n emailNotifier) Notify(ctx context.Context, reports []*types.RunReport) (bool, error) {
	return tasks.SendRunSummary(ctx, n.cfg, reports)
}
