package importer

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/LittleCrime666/End-to-End-Valuation-Pipeline/internal/logger"
	"github.com/LittleCrime666/End-to-End-Valuation-Pipeline/internal/metrics"
	"github.com/LittleCrime666/End-to-End-Valuation-Pipeline/internal/model"
)

// Coordinator 提取协调器：有界并发地处理一个报告期目录下的所有工作簿
type Coordinator struct {
	log     *zap.Logger
	metrics *metrics.Manager
}

// Option 配置 Coordinator
type Option func(*Coordinator)

// WithLogger 设置日志器
func WithLogger(log *zap.Logger) Option {
	return func(c *Coordinator) {
		c.log = log
	}
}

// WithMetrics 设置指标管理器
func WithMetrics(m *metrics.Manager) Option {
	return func(c *Coordinator) {
		c.metrics = m
	}
}

// NewCoordinator 创建提取协调器
func NewCoordinator(opts ...Option) *Coordinator {
	c := &Coordinator{}
	for _, opt := range opts {
		opt(c)
	}
	c.log = logger.OrNop(c.log)
	return c
}

// ExtractOptions 提取选项
type ExtractOptions struct {
	Files         []string
	Rate          float64
	Existing      map[string]struct{}
	Workers       int // <=0 时使用 CPU 核数
	ProgressEvery int // 每处理 N 个文件发送一次进度，<=0 时为 20
}

// ProgressEvent 进度事件
type ProgressEvent struct {
	Type      string      `json:"type"`      // start/progress/file_error/done/error
	Message   string      `json:"message"`   // 事件消息
	Data      interface{} `json:"data"`      // 附加数据
	Timestamp time.Time   `json:"timestamp"` // 时间戳
}

// Tally 运行中的计数
type Tally struct {
	Total     int `json:"total"`
	Processed int `json:"processed"`
	New       int `json:"new"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// Report 提取报告
type Report struct {
	Tally
	Records  model.Dataset `json:"-"`
	Results  []Result      `json:"results"`
	Failures []*FileError  `json:"failures"`
	Duration time.Duration `json:"duration"`
}

// Extract 执行提取，返回进度通道；done 事件的 Data 为 *Report
// 调用方必须读完通道，file_error 等事件不会因通道已满而丢弃
func (c *Coordinator) Extract(ctx context.Context, opts ExtractOptions) <-chan ProgressEvent {
	progressChan := make(chan ProgressEvent, 100)

	go func() {
		defer close(progressChan)
		c.doExtract(ctx, opts, progressChan)
	}()

	return progressChan
}

// Run 同步执行提取，onProgress 可为 nil
func (c *Coordinator) Run(ctx context.Context, opts ExtractOptions, onProgress func(ProgressEvent)) (*Report, error) {
	var report *Report
	var runErr error
	for evt := range c.Extract(ctx, opts) {
		if onProgress != nil {
			onProgress(evt)
		}
		switch evt.Type {
		case "done":
			report, _ = evt.Data.(*Report)
		case "error":
			if err, ok := evt.Data.(error); ok {
				runErr = err
			} else {
				runErr = fmt.Errorf("extraction failed: %s", evt.Message)
			}
		}
	}
	if runErr != nil {
		return report, runErr
	}
	if report == nil {
		return nil, fmt.Errorf("extraction finished without report")
	}
	return report, nil
}

// doExtract 执行提取逻辑；结果只在当前 goroutine 汇总
func (c *Coordinator) doExtract(ctx context.Context, opts ExtractOptions, progressChan chan ProgressEvent) {
	startTime := time.Now()

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	every := opts.ProgressEvery
	if every <= 0 {
		every = 20
	}

	rc := RunContext{Rate: opts.Rate, Existing: opts.Existing}
	report := &Report{
		Tally:    Tally{Total: len(opts.Files)},
		Records:  model.Dataset{},
		Failures: []*FileError{},
	}

	c.sendProgress(progressChan, ProgressEvent{
		Type:    "start",
		Message: fmt.Sprintf("开始处理 %d 个文件", len(opts.Files)),
		Data: map[string]interface{}{
			"total":   len(opts.Files),
			"workers": workers,
		},
		Timestamp: time.Now(),
	})
	c.log.Info("extraction started", zap.Int("files", len(opts.Files)), zap.Int("workers", workers))

	results := make(chan Result)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	go func() {
		defer close(results)
		for _, path := range opts.Files {
			path := path
			if gctx.Err() != nil {
				break
			}
			g.Go(func() error {
				r := ExtractFile(gctx, path, rc)
				select {
				case results <- r:
				case <-gctx.Done():
				}
				return nil
			})
		}
		_ = g.Wait()
	}()

	for r := range results {
		c.recordResult(report, r)

		if r.Status == StatusError {
			c.log.Warn("file failed", zap.String("file", r.File), zap.String("reason", r.Err.Reason))
			c.sendBlocking(progressChan, ProgressEvent{
				Type:      "file_error",
				Message:   fmt.Sprintf("处理失败 %s: %s", r.File, r.Err.Reason),
				Data:      r.Err,
				Timestamp: time.Now(),
			})
		}

		if report.Processed%every == 0 || report.Processed == report.Total {
			tally := report.Tally
			c.sendProgress(progressChan, ProgressEvent{
				Type: "progress",
				Message: fmt.Sprintf("进度 %d/%d（新增 %d，跳过 %d，失败 %d）",
					tally.Processed, tally.Total, tally.New, tally.Skipped, tally.Failed),
				Data:      tally,
				Timestamp: time.Now(),
			})
		}
	}

	if err := ctx.Err(); err != nil {
		c.sendBlocking(progressChan, ProgressEvent{
			Type:      "error",
			Message:   fmt.Sprintf("提取被取消: %v", err),
			Data:      err,
			Timestamp: time.Now(),
		})
		return
	}

	// 到达顺序不确定，按实体代码 + 文件名排序保证输出稳定
	sort.SliceStable(report.Records, func(i, j int) bool {
		a, b := report.Records[i], report.Records[j]
		if a.EntityCode != b.EntityCode {
			return a.EntityCode < b.EntityCode
		}
		return a.SourceFile < b.SourceFile
	})
	sort.SliceStable(report.Failures, func(i, j int) bool {
		return report.Failures[i].File < report.Failures[j].File
	})
	sort.SliceStable(report.Results, func(i, j int) bool {
		return report.Results[i].File < report.Results[j].File
	})

	report.Duration = time.Since(startTime)
	c.log.Info("extraction finished",
		zap.Int("processed", report.Processed),
		zap.Int("new", report.New),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
		zap.Duration("duration", report.Duration),
	)

	c.sendBlocking(progressChan, ProgressEvent{
		Type:      "done",
		Message:   "提取完成",
		Data:      report,
		Timestamp: time.Now(),
	})
}

// recordResult 汇总单个文件结果
func (c *Coordinator) recordResult(report *Report, r Result) {
	report.Processed++
	report.Results = append(report.Results, r)

	switch r.Status {
	case StatusNew:
		report.New++
		report.Records = append(report.Records, *r.Record)
	case StatusSkipped:
		report.Skipped++
	case StatusError:
		report.Failed++
		report.Failures = append(report.Failures, r.Err)
	}

	c.metrics.RecordFile(string(r.Status), r.Duration)
}

// sendProgress 发送进度事件
func (c *Coordinator) sendProgress(ch chan ProgressEvent, event ProgressEvent) {
	select {
	case ch <- event:
	default:
		// 通道已满，丢弃事件
	}
}

// sendBlocking 发送不可丢弃的事件（file_error / error / done），阻塞直到被消费
func (c *Coordinator) sendBlocking(ch chan ProgressEvent, event ProgressEvent) {
	ch <- event
}
