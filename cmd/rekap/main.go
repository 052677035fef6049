package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/LittleCrime666/End-to-End-Valuation-Pipeline/internal/config"
	"github.com/LittleCrime666/End-to-End-Valuation-Pipeline/internal/importer"
	"github.com/LittleCrime666/End-to-End-Valuation-Pipeline/internal/logger"
	"github.com/LittleCrime666/End-to-End-Valuation-Pipeline/internal/metrics"
	"github.com/LittleCrime666/End-to-End-Valuation-Pipeline/internal/model"
	"github.com/LittleCrime666/End-to-End-Valuation-Pipeline/internal/pipeline"
	"github.com/LittleCrime666/End-to-End-Valuation-Pipeline/internal/server"
	"github.com/LittleCrime666/End-to-End-Valuation-Pipeline/internal/store"
)

var (
	year       = flag.Int("year", 0, "报告年份")
	quarter    = flag.Int("quarter", 0, "报告季度 (1-4)")
	configPath = flag.String("config", "", "配置文件路径 (默认为程序目录下的 config.toml)")
	rate       = flag.Float64("rate", 0, "美元汇率 (覆盖配置与汇率表)")
	serve      = flag.Bool("serve", false, "以 HTTP 服务模式运行")
	port       = flag.Int("port", 0, "服务端口 (覆盖配置文件)")
	initConfig = flag.String("init-config", "", "写出默认配置到指定路径后退出")
)

func main() {
	flag.Parse()
	os.Exit(run())
}

func run() int {
	if *initConfig != "" {
		if err := writeDefaultConfig(*initConfig); err != nil {
			fmt.Printf("写出默认配置失败: %v\n", err)
			return 2
		}
		fmt.Printf("已写出默认配置: %s\n", *initConfig)
		return 0
	}

	// .env 不存在时忽略
	_ = godotenv.Load()

	fmt.Println("==========================================")
	fmt.Println("  Rekap - 季度财报基本面汇总工具")
	fmt.Println("==========================================")

	cfg, info, err := config.LoadConfigWithInfo(*configPath)
	if err != nil {
		fmt.Printf("加载配置失败: %v\n", err)
		return 2
	}
	if info.FromFile {
		fmt.Printf("配置文件: %s\n", info.Path)
	}
	if *rate > 0 {
		cfg.Run.Rate = *rate
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}

	zl, err := logger.New(cfg.Log.Level, cfg.Log.Dev)
	if err != nil {
		fmt.Printf("初始化日志失败: %v\n", err)
		return 2
	}
	defer func() { _ = zl.Sync() }()
	if len(info.EnvKeys) > 0 {
		zl.Info("config overridden by environment", zap.Strings("keys", info.EnvKeys))
	}

	st := openStore(cfg, zl)
	if st != nil {
		defer st.Close()
	}
	m := metrics.NewManager()

	if *serve {
		runServer(cfg, st, m, zl)
		return 0
	}
	return runOnce(cfg, st, m, zl)
}

// writeDefaultConfig 写出默认配置，已存在的文件不覆盖
func writeDefaultConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	return config.SaveConfig(config.DefaultConfig(), path)
}

// openStore 打开运行记录库，失败时仅告警
func openStore(cfg *config.AppConfig, zl *zap.Logger) *store.Store {
	if !cfg.Store.Enabled {
		return nil
	}
	if _, err := config.EnsureDataDir(cfg); err != nil {
		zl.Warn("failed to create data directory", zap.Error(err))
		return nil
	}
	st, err := store.New(config.StorePath(cfg))
	if err != nil {
		zl.Warn("run ledger disabled", zap.Error(err))
		return nil
	}
	return st
}

func runOnce(cfg *config.AppConfig, st *store.Store, m *metrics.Manager, zl *zap.Logger) int {
	p := model.Period{Year: *year, Quarter: *quarter}
	if p.Year == 0 && p.Quarter == 0 && st != nil {
		// 未指定报告期时沿用上一次成功的报告期
		if y, q, err := st.GetLastPeriod(); err == nil {
			p = model.Period{Year: y, Quarter: q}
			fmt.Printf("未指定报告期，沿用上次: %s\n", p)
		}
	}

	rc, err := config.NewRunConfig(cfg, p)
	if err != nil {
		fmt.Printf("配置错误: %v\n", err)
		return 2
	}
	fmt.Printf("报告期: %s\n", p)
	fmt.Printf("输入目录: %s\n", rc.InputDir)
	fmt.Printf("输出文件: %s\n", rc.OutputPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner := pipeline.NewRunner(
		pipeline.WithLogger(zl),
		pipeline.WithMetrics(m),
		pipeline.WithStore(st),
	)
	out, err := runner.Run(ctx, rc, printProgress)
	if err != nil {
		if out != nil {
			fmt.Printf("运行失败 (%s): %v\n", out.RunID, err)
		} else {
			fmt.Printf("运行失败: %v\n", err)
		}
		if errors.Is(err, config.ErrInvalidConfig) || out == nil {
			return 2
		}
		return 1
	}

	fmt.Println("------------------------------------------")
	if out.Report != nil {
		r := out.Report
		fmt.Printf("文件总数: %d  新增: %d  跳过: %d  失败: %d\n", r.Total, r.New, r.Skipped, r.Failed)
		for _, f := range r.Failures {
			fmt.Printf("  失败: %s (%s)\n", f.File, f.Reason)
		}
	}
	switch out.Status {
	case store.RunStatusNothingToDo:
		fmt.Println("没有新数据，也没有旧的输出文件，未写出任何内容")
	default:
		fmt.Printf("已写出 %d 条记录: %s\n", out.Records, out.OutputPath)
	}
	fmt.Printf("耗时: %s\n", formatElapsed(out.Duration))
	return 0
}

// printProgress 在控制台打印运行计数
func printProgress(evt importer.ProgressEvent) {
	switch evt.Type {
	case "start", "progress", "file_error":
		fmt.Println(evt.Message)
	}
}

func runServer(cfg *config.AppConfig, st *store.Store, m *metrics.Manager, zl *zap.Logger) {
	srv := server.NewServer(cfg,
		server.WithStore(st),
		server.WithMetrics(m),
		server.WithLogger(zl),
	)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	go func() {
		fmt.Printf("服务启动中，监听端口 %d ...\n", cfg.Server.Port)
		if err := srv.Run(addr); err != nil {
			log.Fatalf("服务启动失败: %v", err)
		}
	}()

	fmt.Println("\n按 Ctrl+C 停止服务...")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	fmt.Println("\n正在关闭服务...")
}

// formatElapsed 格式化为 HH:MM:SS (x.xx 秒)
func formatElapsed(d time.Duration) string {
	total := int(d.Seconds())
	return fmt.Sprintf("%02d:%02d:%02d (%.2f 秒)", total/3600, total%3600/60, total%60, d.Seconds())
}
