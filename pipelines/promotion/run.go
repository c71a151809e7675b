package promotion

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"promo-pipelines/ledger"
	"promo-pipelines/logger"
	"promo-pipelines/pipelines"
	"promo-pipelines/types"
)

// ResumeMode chooses what happens when the ledger holds failed files
type ResumeMode string

const (
	ResumeAuto    ResumeMode = ""        // resume when there is something to resume
	ResumeRetry   ResumeMode = "retry"   // resubmit failed files only
	ResumeRestart ResumeMode = "restart" // drop the ledger and start over
)

// ParseResumeMode accepts "", "auto", "retry" and "restart"
func ParseResumeMode(s string) (ResumeMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return ResumeAuto, nil
	case "retry", "resume":
		return ResumeRetry, nil
	case "restart":
		return ResumeRestart, nil
	}
	return ResumeAuto, fmt.Errorf("unknown resume mode %q", s)
}

// Execute is one invocation: resume the previous batch if it left failed
// files, otherwise run every requested kind in turn. Dry runs never look at
// the ledger.
func Execute(state *pipelines.State, kinds []types.CampaignKind, opts pipelines.RunOptions, mode ResumeMode) ([]*types.RunReport, error) {
	runID := state.NewRun()

	if !opts.DryRun && state.Ledger != nil {
		decision, err := ledger.CheckResume(state.Ledger, state.Config.OutputDir, nil)
		if errors.Is(err, ledger.ErrCorruptLedger) {
			// rows of the lost batch are still unstamped, so a fresh run regenerates them
			logger.Warn("discarding unreadable upload ledger", zap.Error(err))
			if rerr := state.Ledger.Remove(); rerr != nil {
				return nil, fmt.Errorf("discard corrupt ledger: %w", rerr)
			}
			decision, err = ledger.Decision{Action: ledger.RestartAll}, nil
		}
		if err != nil {
			return nil, err
		}
		if decision.Action == ledger.ResumeFiles {
			if mode == ResumeRestart {
				logger.Info("discarding upload ledger", zap.Int("failed_files", len(decision.Files)))
				if err := state.Ledger.Remove(); err != nil {
					return nil, fmt.Errorf("discard ledger: %w", err)
				}
			} else {
				return Resume(state, decision)
			}
		}
	}

	var reports []*types.RunReport
	var errs []error
	for _, kind := range kinds {
		p, err := pipelines.New(string(kind), state, opts)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := p.RunOnce(); err != nil {
			logger.Error("pipeline failed",
				zap.String("run_id", runID),
				zap.String("kind", string(kind)),
				zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", kind, err))
		}
		if r := p.Report(); r != nil {
			reports = append(reports, r)
		}
	}
	return reports, errors.Join(errs...)
}
