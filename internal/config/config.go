package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"github.com/pelletier/go-toml/v2"
)

// EnvPrefix 环境变量前缀，节与字段之间用双下划线分隔，如 REKAP_RUN__WORKERS
const EnvPrefix = "REKAP_"

// ErrInvalidConfig 配置错误，运行前即终止
var ErrInvalidConfig = errors.New("invalid configuration")

var validate = validator.New()

// AppConfig 应用配置
type AppConfig struct {
	Paths  PathsConfig  `toml:"paths"`
	Run    RunSettings  `toml:"run"`
	Log    LogConfig    `toml:"log"`
	Server ServerConfig `toml:"server"`
	Store  StoreConfig  `toml:"store"`
}

// PathsConfig 路径配置
type PathsConfig struct {
	InputBase         string `toml:"input_base" validate:"required"`
	OutputDir         string `toml:"output_dir" validate:"required"`
	RateFile          string `toml:"rate_file"`
	DataDir           string `toml:"data_dir" validate:"required"`
	InputDirPattern   string `toml:"input_dir_pattern" validate:"required"`
	OutputNamePattern string `toml:"output_name_pattern" validate:"required"`
	SummaryPrefix     string `toml:"summary_prefix" validate:"required"`
}

// RunSettings 运行参数
type RunSettings struct {
	Workers        int     `toml:"workers" validate:"gte=0,lte=256"`
	ProgressEvery  int     `toml:"progress_every" validate:"gte=0"`
	DisplayDivisor float64 `toml:"display_divisor" validate:"gt=0"`
	Rate           float64 `toml:"rate" validate:"gte=0"` // 固定汇率，>0 时不查汇率表
}

// LogConfig 日志配置
type LogConfig struct {
	Level string `toml:"level" validate:"omitempty,oneof=debug info warn error"`
	Dev   bool   `toml:"dev"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port    int  `toml:"port" validate:"gte=0,lte=65535"`
	DevMode bool `toml:"dev_mode"`
}

// StoreConfig 运行记录库配置
type StoreConfig struct {
	Enabled bool   `toml:"enabled"`
	File    string `toml:"file" validate:"required_if=Enabled true"`
}

// LoadConfigInfo 配置加载元信息
type LoadConfigInfo struct {
	Path     string   // 使用的配置文件路径
	FromFile bool     // 是否读取了配置文件
	EnvKeys  []string // 被环境变量覆盖的配置项
}

// DefaultConfig 默认配置
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Paths: PathsConfig{
			InputBase:         "Laporan Keuangan",
			OutputDir:         "Rekap Analisa Fundamental",
			DataDir:           "data",
			InputDirPattern:   "{year} Q{quarter}",
			OutputNamePattern: "{year} Kuartal {quarter}.xlsx",
			SummaryPrefix:     "Ringkasan Saham-",
		},
		Run: RunSettings{
			Workers:        0,
			ProgressEvery:  20,
			DisplayDivisor: 1e9,
		},
		Log: LogConfig{
			Level: "info",
		},
		Server: ServerConfig{
			Port: 20261,
		},
		Store: StoreConfig{
			Enabled: true,
			File:    "rekap.db",
		},
	}
}

// GetExeDir 获取可执行文件所在目录
func GetExeDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	return filepath.Dir(exe), nil
}

// LoadConfigWithInfo 加载配置：默认值 → config.toml → 环境变量
// path 为空时读取可执行文件同目录下的 config.toml
func LoadConfigWithInfo(path string) (*AppConfig, LoadConfigInfo, error) {
	info := LoadConfigInfo{}
	cfg := DefaultConfig()

	explicit := path != ""
	if !explicit {
		exeDir, err := GetExeDir()
		if err != nil {
			// 无法获取可执行文件目录，使用当前目录
			exeDir = "."
		}
		path = filepath.Join(exeDir, "config.toml")
	}
	info.Path = path

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, info, fmt.Errorf("%w: parse %s: %v", ErrInvalidConfig, path, err)
		}
		info.FromFile = true
	case os.IsNotExist(err) && !explicit:
		// 配置文件不存在，使用默认配置
	default:
		return nil, info, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	keys, err := applyEnv(cfg)
	if err != nil {
		return nil, info, err
	}
	info.EnvKeys = keys

	if err := Validate(cfg); err != nil {
		return nil, info, err
	}
	return cfg, info, nil
}

// LoadConfig 加载配置
func LoadConfig(path string) (*AppConfig, error) {
	cfg, _, err := LoadConfigWithInfo(path)
	return cfg, err
}

// applyEnv 用 REKAP_ 前缀的环境变量覆盖配置，返回被覆盖的配置项
func applyEnv(cfg *AppConfig) ([]string, error) {
	k := koanf.New(".")

	// REKAP_PATHS__INPUT_BASE -> paths.input_base
	provider := env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(s, EnvPrefix)
		return strings.ReplaceAll(strings.ToLower(s), "__", ".")
	})
	if err := k.Load(provider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}
	keys := k.Keys()
	if len(keys) == 0 {
		return nil, nil
	}

	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "toml"}); err != nil {
		return nil, fmt.Errorf("%w: environment override: %v", ErrInvalidConfig, err)
	}
	return keys, nil
}

// Validate 校验配置
func Validate(cfg *AppConfig) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// SaveConfig 保存配置到指定路径
func SaveConfig(cfg *AppConfig, path string) error {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ResolveDir 相对路径按可执行文件目录解析
func ResolveDir(dir string) string {
	if filepath.IsAbs(dir) {
		return dir
	}
	exeDir, err := GetExeDir()
	if err != nil || exeDir == "" {
		exeDir = "."
	}
	return filepath.Join(exeDir, dir)
}

// EnsureDataDir 确保数据目录存在
func EnsureDataDir(cfg *AppConfig) (string, error) {
	dataDir := ResolveDir(cfg.Paths.DataDir)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", err
	}
	return dataDir, nil
}

// StorePath 运行记录库文件路径
func StorePath(cfg *AppConfig) string {
	return filepath.Join(ResolveDir(cfg.Paths.DataDir), cfg.Store.File)
}

func expandPattern(pattern string, year, quarter int) string {
	return strings.NewReplacer(
		"{year}", strconv.Itoa(year),
		"{quarter}", strconv.Itoa(quarter),
	).Replace(pattern)
}
