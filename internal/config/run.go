package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/LittleCrime666/End-to-End-Valuation-Pipeline/internal/model"
)

// RunConfig 单次运行的解析后参数
type RunConfig struct {
	Period         model.Period
	InputDir       string
	OutputPath     string
	RateFile       string
	FixedRate      float64
	Workers        int
	ProgressEvery  int
	DisplayDivisor float64
	SummaryPrefix  string
}

// NewRunConfig 根据应用配置和报告期生成运行参数
// 报告期非法或输入目录不存在时返回 ErrInvalidConfig
func NewRunConfig(cfg *AppConfig, p model.Period) (*RunConfig, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: nil config", ErrInvalidConfig)
	}
	if err := validate.Struct(p); err != nil {
		return nil, fmt.Errorf("%w: period: %v", ErrInvalidConfig, err)
	}

	inputDir := filepath.Join(cfg.Paths.InputBase, expandPattern(cfg.Paths.InputDirPattern, p.Year, p.Quarter))
	info, err := os.Stat(inputDir)
	if err != nil {
		return nil, fmt.Errorf("%w: input directory %s: %v", ErrInvalidConfig, inputDir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: input path %s is not a directory", ErrInvalidConfig, inputDir)
	}

	return &RunConfig{
		Period:         p,
		InputDir:       inputDir,
		OutputPath:     filepath.Join(cfg.Paths.OutputDir, expandPattern(cfg.Paths.OutputNamePattern, p.Year, p.Quarter)),
		RateFile:       cfg.Paths.RateFile,
		FixedRate:      cfg.Run.Rate,
		Workers:        cfg.Run.Workers,
		ProgressEvery:  cfg.Run.ProgressEvery,
		DisplayDivisor: cfg.Run.DisplayDivisor,
		SummaryPrefix:  cfg.Paths.SummaryPrefix,
	}, nil
}
