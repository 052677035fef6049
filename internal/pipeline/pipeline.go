package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/LittleCrime666/End-to-End-Valuation-Pipeline/internal/config"
	"github.com/LittleCrime666/End-to-End-Valuation-Pipeline/internal/exporter"
	"github.com/LittleCrime666/End-to-End-Valuation-Pipeline/internal/importer"
	"github.com/LittleCrime666/End-to-End-Valuation-Pipeline/internal/kurs"
	"github.com/LittleCrime666/End-to-End-Valuation-Pipeline/internal/logger"
	"github.com/LittleCrime666/End-to-End-Valuation-Pipeline/internal/merge"
	"github.com/LittleCrime666/End-to-End-Valuation-Pipeline/internal/metrics"
	"github.com/LittleCrime666/End-to-End-Valuation-Pipeline/internal/model"
	"github.com/LittleCrime666/End-to-End-Valuation-Pipeline/internal/ratio"
	"github.com/LittleCrime666/End-to-End-Valuation-Pipeline/internal/store"
	"github.com/LittleCrime666/End-to-End-Valuation-Pipeline/internal/summary"
)

// EventExport 导出阶段的进度事件类型，Data 为 exporter.ProgressEvent
const EventExport = "export"

// Runner 串联一次报告期运行：汇率 → 旧数据 → 提取 → 合并 → 比率 → 输出 → 运行记录
type Runner struct {
	log     *zap.Logger
	metrics *metrics.Manager
	store   *store.Store
	writer  *exporter.Writer
	newID   func() string
}

// Option 配置 Runner
type Option func(*Runner)

// WithLogger 设置日志器
func WithLogger(log *zap.Logger) Option {
	return func(r *Runner) {
		r.log = log
	}
}

// WithMetrics 设置指标管理器
func WithMetrics(m *metrics.Manager) Option {
	return func(r *Runner) {
		r.metrics = m
	}
}

// WithStore 设置运行记录库，nil 时不记录
func WithStore(st *store.Store) Option {
	return func(r *Runner) {
		r.store = st
	}
}

// NewRunner 创建运行器
func NewRunner(opts ...Option) *Runner {
	r := &Runner{newID: uuid.NewString}
	for _, opt := range opts {
		opt(r)
	}
	r.log = logger.OrNop(r.log)
	r.writer = exporter.NewWriter(r.log)
	return r
}

// Outcome 运行结果
type Outcome struct {
	RunID      string           `json:"runId"`
	Period     model.Period     `json:"period"`
	Status     string           `json:"status"` // written / nothing_to_do
	Rate       float64          `json:"rate"`
	OutputPath string           `json:"outputPath,omitempty"`
	Report     *importer.Report `json:"report"`
	Merge      merge.Outcome    `json:"merge,omitempty"`
	Records    int              `json:"records"`
	Added      int              `json:"added"`
	Updated    int              `json:"updated"`
	Duration   time.Duration    `json:"duration"`
}

// Run 执行一次运行，onProgress 可为 nil
// 汇率缺失等配置错误在处理任何文件之前返回
func (r *Runner) Run(ctx context.Context, rc *config.RunConfig, onProgress func(importer.ProgressEvent)) (*Outcome, error) {
	if rc == nil {
		return nil, fmt.Errorf("%w: nil run config", config.ErrInvalidConfig)
	}
	start := time.Now()
	log := r.log.With(zap.Stringer("period", rc.Period))

	rate, err := kurs.Resolve(rc.FixedRate, rc.RateFile, rc.Period)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve exchange rate for %s: %w", rc.Period, err)
	}

	files, err := listWorkbooks(rc.InputDir)
	if err != nil {
		return nil, err
	}
	dataFiles, summaryFiles := summary.Partition(files, rc.SummaryPrefix)

	out := &Outcome{
		RunID:  r.newID(),
		Period: rc.Period,
		Rate:   rate,
	}
	log = log.With(zap.String("run_id", out.RunID))
	r.ledgerStart(log, out)

	outcome, err := r.run(ctx, log, rc, out, dataFiles, summaryFiles, onProgress)
	out.Duration = time.Since(start)
	if err != nil {
		r.ledgerFinish(log, out, store.RunStatusFailed, err)
		r.metrics.RecordRun(store.RunStatusFailed, out.Duration)
		return out, err
	}

	r.ledgerFinish(log, outcome, outcome.Status, nil)
	r.metrics.RecordRun(outcome.Status, outcome.Duration)
	log.Info("run finished",
		zap.String("status", outcome.Status),
		zap.String("output", outcome.OutputPath),
		zap.Duration("duration", outcome.Duration),
	)
	return outcome, nil
}

func (r *Runner) run(ctx context.Context, log *zap.Logger, rc *config.RunConfig, out *Outcome,
	dataFiles, summaryFiles []string, onProgress func(importer.ProgressEvent)) (*Outcome, error) {

	target := rc.OutputPath
	prior, hasPrior, err := exporter.ReadDataset(target)
	if err != nil {
		// 旧文件无法读取时不覆盖它
		target = exporter.AlternatePath(rc.OutputPath, time.Now())
		log.Warn("prior output unreadable, continuing with new records only",
			zap.String("path", rc.OutputPath), zap.String("alternate", target), zap.Error(err))
		prior, hasPrior = nil, false
	}

	coordinator := importer.NewCoordinator(importer.WithLogger(log), importer.WithMetrics(r.metrics))
	report, err := coordinator.Run(ctx, importer.ExtractOptions{
		Files:         dataFiles,
		Rate:          out.Rate,
		Existing:      prior.Codes(),
		Workers:       rc.Workers,
		ProgressEvery: rc.ProgressEvery,
	}, onProgress)
	out.Report = report
	if err != nil {
		return out, err
	}

	merged, err := merge.Merge(merge.Input{
		Prior:    prior,
		HasPrior: hasPrior,
		New:      report.Records,
		Divisor:  rc.DisplayDivisor,
	})
	if errors.Is(err, merge.ErrNothingToDo) {
		log.Info("no new records and no prior output, nothing to write")
		out.Status = store.RunStatusNothingToDo
		return out, nil
	}
	if err != nil {
		return out, err
	}
	out.Merge = merged.Outcome
	out.Records = len(merged.Dataset)
	out.Added = merged.Added
	out.Updated = merged.Updated
	r.metrics.SetRecordsMerged(out.Records)

	var table *summary.Table
	if len(summaryFiles) > 0 {
		table, err = summary.Read(summaryFiles[0])
		if err != nil {
			log.Warn("summary file unreadable, ratios use zero quotes",
				zap.String("file", filepath.Base(summaryFiles[0])), zap.Error(err))
			table = nil
		}
		if len(summaryFiles) > 1 {
			log.Warn("multiple summary files, using the first", zap.Strings("files", summaryFiles))
		}
	}

	ratios := ratio.NewEngine(rc.Period, rc.DisplayDivisor).Compute(merged.Dataset, table.Quotes())

	written, err := r.writer.Save(target, exporter.Workbook{
		Data:    merged.Dataset,
		Summary: table,
		Ratios:  ratios,
	}, exportProgress(onProgress))
	if err != nil {
		return out, err
	}
	out.OutputPath = written
	out.Status = store.RunStatusWritten
	return out, nil
}

// listWorkbooks 列出目录下的 xlsx 文件（扩展名不区分大小写）
func listWorkbooks(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: read input directory %s: %v", config.ErrInvalidConfig, dir, err)
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".xlsx") {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	return files, nil
}

func exportProgress(onProgress func(importer.ProgressEvent)) func(exporter.ProgressEvent) {
	if onProgress == nil {
		return nil
	}
	return func(evt exporter.ProgressEvent) {
		onProgress(importer.ProgressEvent{
			Type:      EventExport,
			Message:   evt.Stage,
			Data:      evt,
			Timestamp: time.Now(),
		})
	}
}
