package promotion

import (
	"errors"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"promo-pipelines/ledger"
	"promo-pipelines/logger"
	"promo-pipelines/pipelines"
	"promo-pipelines/tasks"
	"promo-pipelines/types"
)

// Resume resubmits the failed files named by decision. Each kind whose files
// all reached the back office afterwards gets its rows stamped, using the
// target ids read back from the files. It returns one report per kind.
func Resume(state *pipelines.State, decision ledger.Decision) ([]*types.RunReport, error) {
	if decision.Action != ledger.ResumeFiles || len(decision.Files) == 0 {
		return nil, fmt.Errorf("nothing to resume")
	}
	if state.Submitter == nil || state.Sheets == nil || state.Writer == nil || state.Ledger == nil {
		return nil, fmt.Errorf("resume requires submitter, sheets, writer and ledger store")
	}

	led, err := ledger.Open(state.Ledger)
	if err != nil {
		return nil, err
	}
	led.WithClock(state.Now)

	byKind := make(map[types.CampaignKind][]types.GeneratedFile)
	var order []types.CampaignKind
	var refs []ledger.FileRef
	for _, pf := range decision.Files {
		key, err := tasks.ParseFileName(pf.Name)
		if err != nil {
			logger.Warn("skipping unrecognized ledger file", zap.String("file", pf.Name), zap.Error(err))
			continue
		}
		kind := pf.Kind
		if kind == "" {
			kind = key.Kind
		}
		if _, ok := byKind[kind]; !ok {
			order = append(order, kind)
		}
		byKind[kind] = append(byKind[kind], types.GeneratedFile{
			Name:      pf.Name,
			Path:      pf.Path,
			Kind:      kind,
			Channel:   key.Channel,
			StartDate: key.StartDate,
			EndDate:   key.EndDate,
			Rows:      key.Rows,
		})
		refs = append(refs, ledger.FileRef{Name: pf.Name, Kind: kind, Sheet: pf.Sheet})
	}
	if len(refs) == 0 {
		return nil, fmt.Errorf("no resumable files")
	}
	if err := led.BeginBatch(refs); err != nil && !errors.Is(err, ledger.ErrNotPersisted) {
		return nil, err
	}

	logger.Info("resuming failed uploads",
		zap.String("run_id", state.RunID),
		zap.Int("files", len(refs)))

	var reports []*types.RunReport
	var errs []error
	for _, kind := range order {
		files := byKind[kind]
		report := &types.RunReport{
			RunID:          state.RunID,
			Kind:           kind,
			Resumed:        true,
			FilesGenerated: len(files),
		}
		reports = append(reports, report)

		submitBatch(state, led, files, report)

		if !led.AllSucceeded(kind) {
			logger.Warn("files still failing, rows not stamped",
				zap.String("kind", string(kind)),
				zap.Int("files_failed", report.FilesFailed))
			continue
		}
		stamped, err := stampFromLedger(state, led, kind)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		report.RowsStamped = stamped
	}

	if removed, err := led.Finalize(); err != nil {
		logger.Warn("ledger cleanup failed", zap.Error(err))
	} else if removed {
		logger.Info("upload ledger cleared")
	}

	if state.Notifier != nil {
		if _, err := state.Notifier.Notify(state.Ctx, reports); err != nil {
			logger.Warn("run summary not sent", zap.Error(err))
		}
	}
	return reports, errors.Join(errs...)
}

// stampFromLedger stamps every target id found in the kind's files
func stampFromLedger(state *pipelines.State, led *ledger.Ledger, kind types.CampaignKind) (int, error) {
	sheet := led.Sheet(kind)
	if sheet == "" {
		sheet = defaultSheet(state.Config, kind)
	}
	if sheet == "" {
		return 0, fmt.Errorf("stamp %s rows: %s is required", kind, sheetEnvName(kind))
	}

	seen := make(map[int64]bool)
	var ids []int64
	for _, name := range led.Names(kind) {
		fileIDs, err := state.Writer.ReadTargetIDs(filepath.Join(state.Writer.Dir(), name))
		if err != nil {
			logger.Warn("cannot read target ids", zap.String("file", name), zap.Error(err))
			continue
		}
		for _, id := range fileIDs {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	if len(ids) == 0 {
		return 0, nil
	}

	stamped, err := state.Sheets.StampProcessed(state.Ctx, tasks.LayoutFor(kind, sheet), ids, state.Now())
	if err != nil {
		return 0, fmt.Errorf("stamp %s rows: %w", kind, err)
	}
	logger.Info("rows stamped after resume",
		zap.String("kind", string(kind)),
		zap.String("sheet", sheet),
		zap.Int("rows_stamped", stamped))
	return stamped, nil
}
