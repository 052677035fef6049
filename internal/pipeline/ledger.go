package pipeline

import (
	"go.uber.org/zap"

	"github.com/LittleCrime666/End-to-End-Valuation-Pipeline/internal/importer"
	"github.com/LittleCrime666/End-to-End-Valuation-Pipeline/internal/store"
)

// 运行记录写入失败只记日志，不影响运行结果

func (r *Runner) ledgerStart(log *zap.Logger, out *Outcome) {
	if r.store == nil {
		return
	}
	if err := r.store.CreateRunLog(out.RunID, out.Period.Year, out.Period.Quarter, out.Rate); err != nil {
		log.Warn("failed to create run log", zap.Error(err))
	}
}

func (r *Runner) ledgerFinish(log *zap.Logger, out *Outcome, status string, runErr error) {
	if r.store == nil {
		return
	}

	c := store.RunCompletion{
		MergedRecords: out.Records,
		OutputPath:    out.OutputPath,
		Status:        status,
	}
	if runErr != nil {
		c.ErrorMessage = runErr.Error()
	}
	if out.Report != nil {
		c.TotalFiles = out.Report.Total
		c.NewFiles = out.Report.New
		c.SkippedFiles = out.Report.Skipped
		c.FailedFiles = out.Report.Failed

		if err := r.store.InsertRunFiles(runFiles(out.RunID, out.Report.Results)); err != nil {
			log.Warn("failed to record run files", zap.Error(err))
		}
	}
	if err := r.store.CompleteRunLog(out.RunID, c); err != nil {
		log.Warn("failed to complete run log", zap.Error(err))
	}

	if status == store.RunStatusWritten {
		if err := r.store.SetLastPeriod(out.Period.Year, out.Period.Quarter); err != nil {
			log.Warn("failed to save last period", zap.Error(err))
		}
	}
}

func runFiles(runID string, results []importer.Result) []store.RunFile {
	files := make([]store.RunFile, 0, len(results))
	for _, res := range results {
		f := store.RunFile{
			RunID:      runID,
			FileName:   res.File,
			Status:     string(res.Status),
			EntityCode: res.EntityCode,
			DurationMS: res.Duration.Milliseconds(),
		}
		if res.Err != nil {
			f.Reason = res.Err.Reason
		}
		files = append(files, f)
	}
	return files
}
