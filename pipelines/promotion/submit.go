package promotion

import (
	"errors"

	"go.uber.org/zap"

	"promo-pipelines/ledger"
	"promo-pipelines/logger"
	"promo-pipelines/pipelines"
	"promo-pipelines/tasks"
	"promo-pipelines/types"
)

var errRejected = errors.New("submission failed")

// submitBatch submits files one by one, recording every attempt in led and
// appending outcomes to report. A failed file never stops the batch.
func submitBatch(state *pipelines.State, led *ledger.Ledger, files []types.GeneratedFile, report *types.RunReport) {
	for _, f := range files {
		if err := state.Ctx.Err(); err != nil {
			logger.Warn("submission interrupted", zap.String("run_id", state.RunID), zap.Error(err))
			return
		}

		ok, err := state.Submitter.Submit(state.Ctx, tasks.Submission{
			Path:      f.Path,
			Channel:   f.Channel,
			StartDate: f.StartDate,
			EndDate:   f.EndDate,
			Kind:      f.Kind,
		})
		if err == nil && !ok {
			err = errRejected
		}

		entry, lerr := led.RecordAttempt(f.Name, f.Kind, err)
		if lerr != nil {
			logger.Warn("upload ledger not updated", zap.String("file", f.Name), zap.Error(lerr))
		}

		outcome := types.FileOutcome{
			Name:     f.Name,
			Channel:  f.Channel,
			Rows:     f.Rows,
			Success:  err == nil,
			Attempts: entry.Attempts,
		}
		if err != nil {
			outcome.Error = entry.LastError
			if outcome.Error == "" {
				outcome.Error = err.Error()
			}
			report.FilesFailed++
			logger.Error("file failed",
				zap.String("pipeline", string(f.Kind)),
				zap.String("run_id", state.RunID),
				zap.String("file", f.Name),
				zap.String("channel", f.Channel),
				zap.Int("attempts", entry.Attempts),
				zap.Error(err))
		} else {
			report.FilesSucceeded++
			logger.Info("file submitted",
				zap.String("pipeline", string(f.Kind)),
				zap.String("run_id", state.RunID),
				zap.String("file", f.Name),
				zap.String("channel", f.Channel),
				zap.Int("rows", f.Rows),
				zap.Int("attempts", entry.Attempts))
		}
		report.Files = append(report.Files, outcome)
	}
}
