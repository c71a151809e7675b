package promotion

import (
	"errors"
	"fmt"
	"time"

	"github.com/fieldryand/goflow/v2"
	"go.uber.org/zap"

	"promo-pipelines/ledger"
	"promo-pipelines/logger"
	"promo-pipelines/pipelines"
	"promo-pipelines/tasks"
	"promo-pipelines/types"
)

func init() {
	for _, kind := range types.Kinds {
		kind := kind
		pipelines.RegisterDescriptor(pipelines.Descriptor{
			Name:        string(kind),
			Description: fmt.Sprintf("%s promotion upload (sheet rows -> channel files -> back office)", kind.Label()),
			Flags:       []string{"--sheet", "--dry-run"},
			New: func(state *pipelines.State, opts pipelines.RunOptions) (pipelines.Pipeline, error) {
				p, err := New(state, kind, opts)
				if err != nil {
					return nil, err
				}
				return p, nil
			},
		})
	}
}

// State keys for promotion pipeline data
const (
	KeyConfig     = "promotion_config"
	KeyRows       = "pending_rows"
	KeyChannelMap = "channel_map"
	KeyExpansion  = "expansion"
	KeyFiles      = "generated_files"
)

// Step names, in execution order
const (
	StepReadRows       = "read_rows"
	StepLookupChannels = "lookup_channels"
	StepExpandRows     = "expand_rows"
	StepWriteFiles     = "write_files"
	StepSubmitFiles    = "submit_files"
	StepStampProcessed = "stamp_processed"
	StepNotify         = "notify"
)

var steps = []string{
	StepReadRows,
	StepLookupChannels,
	StepExpandRows,
	StepWriteFiles,
	StepSubmitFiles,
	StepStampProcessed,
	StepNotify,
}

// stepRetries are extra attempts for idempotent steps. Submission and stamping
// get none: a repeated submission registers the promotion twice.
var stepRetries = map[string]int{
	StepReadRows:       2,
	StepLookupChannels: 2,
	StepNotify:         2,
}

// retryDelay is the pause between attempts of one step
var retryDelay = 5 * time.Second

type pendingRows struct {
	Rows []types.SourceRow
}

type channelMap struct {
	ByProduct map[int64]map[string]string
}

type generatedFiles struct {
	Files []types.GeneratedFile
}

// Pipeline runs one campaign kind end to end
type Pipeline struct {
	state  *pipelines.State
	config *Config
	report *types.RunReport
	ledger *ledger.Ledger
}

// New creates a pipeline for kind bound to state
func New(state *pipelines.State, kind types.CampaignKind, opts pipelines.RunOptions) (*Pipeline, error) {
	if state == nil || state.Config == nil {
		return nil, fmt.Errorf("pipeline state is not initialized")
	}
	cfg := LoadConfig(state.Config, kind, opts.SheetName, opts.DryRun)
	state.Set(KeyConfig, cfg)

	return &Pipeline{
		state:  state,
		config: cfg,
		report: &types.RunReport{RunID: state.RunID, Kind: kind},
	}, nil
}

// Name returns the pipeline identifier
func (p *Pipeline) Name() string {
	return string(p.config.Kind)
}

// Description returns a human-readable description
func (p *Pipeline) Description() string {
	return fmt.Sprintf("%s promotion upload", p.config.Kind.Label())
}

// Report returns the counters of the last run
func (p *Pipeline) Report() *types.RunReport {
	return p.report
}

// ValidateConfig validates configuration and collaborators. A broken channel
// registry is fatal.
func (p *Pipeline) ValidateConfig() error {
	if err := p.config.Validate(); err != nil {
		return err
	}
	s := p.state
	if s.Directory == nil {
		return fmt.Errorf("channel directory is required")
	}
	if err := s.Directory.Validate(); err != nil {
		return fmt.Errorf("channel registry: %w", err)
	}
	switch {
	case s.Sheets == nil:
		return fmt.Errorf("sheets client is required")
	case s.Writer == nil:
		return fmt.Errorf("file writer is required")
	case s.Ledger == nil:
		return fmt.Errorf("upload ledger store is required")
	case p.config.Kind == types.KindProduct && s.Lookup == nil:
		return fmt.Errorf("channel lookup is required for product campaigns")
	case !p.config.DryRun && s.Submitter == nil:
		return fmt.Errorf("submitter is required")
	}
	return nil
}

// Job returns a goflow job factory function
func (p *Pipeline) Job() func() *goflow.Job {
	return func() *goflow.Job {
		j := &goflow.Job{
			Name:     p.Name() + "-promotion",
			Schedule: "@manual",
			Active:   true,
		}

		j.Add(&goflow.Task{
			Name:       StepReadRows,
			Operator:   &ReadRowsOp{pipeline: p},
			Retries:    stepRetries[StepReadRows],
			RetryDelay: goflow.ConstantDelay{Period: int(retryDelay / time.Second)},
		})
		j.Add(&goflow.Task{
			Name:       StepLookupChannels,
			Operator:   &LookupChannelsOp{pipeline: p},
			Retries:    stepRetries[StepLookupChannels],
			RetryDelay: goflow.ConstantDelay{Period: int(retryDelay / time.Second)},
		})
		j.Add(&goflow.Task{
			Name:     StepExpandRows,
			Operator: &ExpandRowsOp{pipeline: p},
		})
		j.Add(&goflow.Task{
			Name:     StepWriteFiles,
			Operator: &WriteFilesOp{pipeline: p},
		})
		j.Add(&goflow.Task{
			Name:     StepSubmitFiles,
			Operator: &SubmitFilesOp{pipeline: p},
		})
		j.Add(&goflow.Task{
			Name:     StepStampProcessed,
			Operator: &StampProcessedOp{pipeline: p},
		})
		j.Add(&goflow.Task{
			Name:       StepNotify,
			Operator:   &NotifyOp{pipeline: p},
			Retries:    stepRetries[StepNotify],
			RetryDelay: goflow.ConstantDelay{Period: int(retryDelay / time.Second)},
		})

		setupDAGEdges(j)
		return j
	}
}

// VisualizationJob returns a goflow job for UI visualization only (not for execution)
func (p *Pipeline) VisualizationJob() func() *goflow.Job {
	return func() *goflow.Job {
		j := &goflow.Job{
			Name:   p.Name() + "-promotion",
			Active: false,
		}
		for _, name := range steps {
			j.Add(&goflow.Task{Name: name, Operator: &noopOp{}})
		}
		setupDAGEdges(j)
		return j
	}
}

// setupDAGEdges chains the steps; each depends on the previous one
func setupDAGEdges(j *goflow.Job) {
	for i := 1; i < len(steps); i++ {
		j.SetDownstream(j.Task(steps[i-1]), j.Task(steps[i]))
	}
}

// noopOp is a no-operation operator for visualization
type noopOp struct{}

func (o *noopOp) Run() (any, error) { return nil, nil }

// getStateValue safely retrieves a typed value from pipeline state
func getStateValue[T any](p *Pipeline, key string) (*T, error) {
	val := p.state.Get(key)
	if val == nil {
		return nil, fmt.Errorf("state key %q not set", key)
	}
	typed, ok := val.(*T)
	if !ok {
		return nil, fmt.Errorf("state key %q has unexpected type %T", key, val)
	}
	return typed, nil
}

// operators returns the step operators in execution order
func (p *Pipeline) operators() []goflow.Operator {
	return []goflow.Operator{
		&ReadRowsOp{pipeline: p},
		&LookupChannelsOp{pipeline: p},
		&ExpandRowsOp{pipeline: p},
		&WriteFilesOp{pipeline: p},
		&SubmitFilesOp{pipeline: p},
		&StampProcessedOp{pipeline: p},
		&NotifyOp{pipeline: p},
	}
}

// RunOnce executes the pipeline synchronously
func (p *Pipeline) RunOnce() error {
	if err := p.ValidateConfig(); err != nil {
		return err
	}
	p.report = &types.RunReport{RunID: p.state.RunID, Kind: p.config.Kind}

	logger.Info("Running promotion pipeline in once mode",
		zap.String("kind", string(p.config.Kind)),
		zap.String("sheet", p.config.SheetName),
		zap.Bool("dry_run", p.config.DryRun))

	flow := pipelines.NewFlow(p.Name(),
		zap.String("run_id", p.state.RunID),
		zap.String("sheet", p.config.SheetName))
	ops := p.operators()
	for i, name := range steps {
		op := ops[i]
		retries := stepRetries[name]
		run := func() error {
			return p.runWithRetry(name, op, retries)
		}
		if i == 0 {
			flow.AddTask(name, run)
		} else {
			flow.AddTask(name, run, steps[i-1])
		}
	}

	if err := flow.Run(p.state.Ctx); err != nil {
		return err
	}

	r := p.report
	logger.Info("Pipeline complete",
		zap.String("run_id", r.RunID),
		zap.String("kind", string(r.Kind)),
		zap.Int("rows_pending", r.RowsPending),
		zap.Int("files_generated", r.FilesGenerated),
		zap.Int("files_failed", r.FilesFailed),
		zap.Int("rows_stamped", r.RowsStamped),
	)
	return nil
}

// runWithRetry runs op up to retries+1 times, pausing retryDelay between attempts
func (p *Pipeline) runWithRetry(name string, op goflow.Operator, retries int) error {
	var err error
	for attempt := 0; ; attempt++ {
		if _, err = op.Run(); err == nil || attempt >= retries {
			return err
		}
		logger.Warn("step retry",
			zap.String("pipeline", p.Name()),
			zap.String("step", name),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
		select {
		case <-p.state.Ctx.Done():
			return err
		case <-time.After(retryDelay):
		}
	}
}

// --- Custom Operators ---

// ReadRowsOp reads the campaign tab and keeps rows not yet processed
type ReadRowsOp struct {
	pipeline *Pipeline
}

func (o *ReadRowsOp) Run() (interface{}, error) {
	p := o.pipeline
	layout := p.config.Layout()
	logger.Info("Task: read_rows", zap.String("sheet", layout.SheetName), zap.String("range", layout.ReadRange()))

	rows, stats, err := p.state.Sheets.ReadRows(p.state.Ctx, layout)
	if err != nil {
		return nil, fmt.Errorf("read_rows failed: %w", err)
	}

	pending := make([]types.SourceRow, 0, len(rows))
	processed := 0
	for _, r := range rows {
		if r.IsProcessed() {
			processed++
			continue
		}
		pending = append(pending, r)
	}

	p.report.RowsRead = stats.Read
	p.report.RowsInvalid = stats.Invalid
	p.report.RowsProcessed = processed
	p.report.RowsPending = len(pending)
	p.state.Set(KeyRows, &pendingRows{Rows: pending})

	logger.Info("Task: read_rows complete",
		zap.Int("rows_read", stats.Read),
		zap.Int("rows_invalid", stats.Invalid),
		zap.Int("rows_processed", processed),
		zap.Int("rows_pending", len(pending)))
	return len(pending), nil
}

// LookupChannelsOp resolves channel listings for product rows
type LookupChannelsOp struct {
	pipeline *Pipeline
}

func (o *LookupChannelsOp) Run() (interface{}, error) {
	p := o.pipeline
	logger.Info("Task: lookup_channels", zap.String("kind", string(p.config.Kind)))

	rows, err := getStateValue[pendingRows](p, KeyRows)
	if err != nil {
		return nil, fmt.Errorf("lookup_channels: %w", err)
	}

	// brand selectors resolve against the directory alone
	if p.config.Kind != types.KindProduct || len(rows.Rows) == 0 {
		p.state.Set(KeyChannelMap, &channelMap{ByProduct: map[int64]map[string]string{}})
		logger.Info("Task: lookup_channels complete", zap.Int("products", 0))
		return 0, nil
	}

	ids := make([]int64, 0, len(rows.Rows))
	for _, r := range rows.Rows {
		ids = append(ids, r.TargetID)
	}
	result := p.state.Lookup.Query(p.state.Ctx, ids)
	p.state.Set(KeyChannelMap, &channelMap{ByProduct: result})

	logger.Info("Task: lookup_channels complete", zap.Int("products", len(result)))
	return len(result), nil
}

// ExpandRowsOp turns each row into one row per resolved channel
type ExpandRowsOp struct {
	pipeline *Pipeline
}

func (o *ExpandRowsOp) Run() (interface{}, error) {
	p := o.pipeline
	logger.Info("Task: expand_rows")

	rows, err := getStateValue[pendingRows](p, KeyRows)
	if err != nil {
		return nil, fmt.Errorf("expand_rows: %w", err)
	}
	lookup, err := getStateValue[channelMap](p, KeyChannelMap)
	if err != nil {
		return nil, fmt.Errorf("expand_rows: %w", err)
	}

	result := tasks.ExpandRows(p.state.Directory, rows.Rows, lookup.ByProduct)
	p.report.RowsExpanded = len(result.Rows)
	p.state.Set(KeyExpansion, &result)

	logger.Info("Task: expand_rows complete",
		zap.Int("expanded_rows", len(result.Rows)),
		zap.Int("contributing_targets", len(result.Contributing)))
	return len(result.Rows), nil
}

// WriteFilesOp partitions expanded rows and writes one file per group
type WriteFilesOp struct {
	pipeline *Pipeline
}

func (o *WriteFilesOp) Run() (interface{}, error) {
	p := o.pipeline
	logger.Info("Task: write_files", zap.String("dir", p.state.Writer.Dir()))

	exp, err := getStateValue[tasks.ExpansionResult](p, KeyExpansion)
	if err != nil {
		return nil, fmt.Errorf("write_files: %w", err)
	}

	groups := tasks.Partition(exp.Rows)
	files := make([]types.GeneratedFile, 0, len(groups))
	for _, g := range groups {
		f, err := p.state.Writer.Write(p.config.Kind, g)
		if err != nil {
			return nil, fmt.Errorf("write_files failed: %w", err)
		}
		files = append(files, f)
	}

	p.report.FilesGenerated = len(files)
	p.state.Set(KeyFiles, &generatedFiles{Files: files})

	logger.Info("Task: write_files complete", zap.Int("files", len(files)))
	return len(files), nil
}

// SubmitFilesOp submits every generated file and records each outcome
type SubmitFilesOp struct {
	pipeline *Pipeline
}

func (o *SubmitFilesOp) Run() (interface{}, error) {
	p := o.pipeline
	logger.Info("Task: submit_files")

	files, err := getStateValue[generatedFiles](p, KeyFiles)
	if err != nil {
		return nil, fmt.Errorf("submit_files: %w", err)
	}
	if p.config.DryRun {
		logger.Info("Task: submit_files skipped", zap.String("reason", "dry run"), zap.Int("files", len(files.Files)))
		return 0, nil
	}
	if len(files.Files) == 0 {
		logger.Info("Task: submit_files complete", zap.Int("files", 0))
		return 0, nil
	}

	led, err := ledger.Open(p.state.Ledger)
	if err != nil {
		return nil, fmt.Errorf("submit_files: %w", err)
	}
	led.WithClock(p.state.Now)
	p.ledger = led

	refs := make([]ledger.FileRef, 0, len(files.Files))
	for _, f := range files.Files {
		refs = append(refs, ledger.FileRef{Name: f.Name, Kind: f.Kind, Sheet: p.config.SheetName})
	}
	if err := led.BeginBatch(refs); err != nil && !errors.Is(err, ledger.ErrNotPersisted) {
		return nil, fmt.Errorf("submit_files: %w", err)
	}

	submitBatch(p.state, led, files.Files, p.report)

	logger.Info("Task: submit_files complete",
		zap.Int("succeeded", p.report.FilesSucceeded),
		zap.Int("failed", p.report.FilesFailed))
	return p.report.FilesSucceeded, nil
}

// StampProcessedOp writes the processed date for contributing rows, only when
// every file of the batch was accepted
type StampProcessedOp struct {
	pipeline *Pipeline
}

func (o *StampProcessedOp) Run() (interface{}, error) {
	p := o.pipeline
	logger.Info("Task: stamp_processed")

	if p.config.DryRun {
		logger.Info("Task: stamp_processed skipped", zap.String("reason", "dry run"))
		return 0, nil
	}
	if !p.report.AllSucceeded() {
		logger.Warn("Task: stamp_processed skipped",
			zap.String("reason", "some files failed"),
			zap.Int("files_failed", p.report.FilesFailed))
		return 0, nil
	}

	exp, err := getStateValue[tasks.ExpansionResult](p, KeyExpansion)
	if err != nil {
		return nil, fmt.Errorf("stamp_processed: %w", err)
	}

	stamped := 0
	if len(exp.Contributing) > 0 {
		stamped, err = p.state.Sheets.StampProcessed(p.state.Ctx, p.config.Layout(), exp.Contributing, p.state.Now())
		if err != nil {
			return nil, fmt.Errorf("stamp_processed failed: %w", err)
		}
	}
	p.report.RowsStamped = stamped

	if p.ledger != nil {
		if removed, err := p.ledger.Finalize(); err != nil {
			logger.Warn("ledger cleanup failed", zap.Error(err))
		} else if removed {
			logger.Info("upload ledger cleared")
		}
	}

	logger.Info("Task: stamp_processed complete", zap.Int("rows_stamped", stamped))
	return stamped, nil
}

// NotifyOp sends the run summary; delivery problems never fail the run
type NotifyOp struct {
	pipeline *Pipeline
}

func (o *NotifyOp) Run() (interface{}, error) {
	p := o.pipeline
	if p.state.Notifier == nil || p.config.DryRun {
		return false, nil
	}
	logger.Info("Task: notify")

	sent, err := p.state.Notifier.Notify(p.state.Ctx, []*types.RunReport{p.report})
	if err != nil {
		logger.Warn("Task: notify failed", zap.Error(err))
		return false, nil
	}
	logger.Info("Task: notify complete", zap.Bool("sent", sent))
	return sent, nil
}
