package importer

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/LittleCrime666/End-to-End-Valuation-Pipeline/internal/model"
	"github.com/LittleCrime666/End-to-End-Valuation-Pipeline/internal/normalize"
	"github.com/LittleCrime666/End-to-End-Valuation-Pipeline/internal/parser"
)

// ErrMissingEntityCode 工作簿中找不到实体代码
var ErrMissingEntityCode = errors.New("entity code not found")

// Status 单个文件的处理结果
type Status string

const (
	StatusNew     Status = "new"
	StatusSkipped Status = "skipped"
	StatusError   Status = "error"
)

// FileError 单个文件的失败原因，带文件标识
type FileError struct {
	File   string `json:"file"`
	Reason string `json:"reason"`
	Err    error  `json:"-"`
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s: %s", e.File, e.Reason)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

// RunContext 每次运行只读共享的输入
type RunContext struct {
	Rate     float64             // 美元兑本币汇率
	Existing map[string]struct{} // 已存在于输出文件中的实体代码
}

// Result 单个文件的提取结果
type Result struct {
	File       string                  `json:"file"`
	Status     Status                  `json:"status"`
	EntityCode string                  `json:"entityCode,omitempty"`
	Record     *model.NormalizedRecord `json:"-"`
	Err        *FileError              `json:"error,omitempty"`
	Stats      parser.ScanStats        `json:"-"`
	Duration   time.Duration           `json:"duration"`
}

// ExtractFile 提取单个工作簿：识别标签 → 校验实体代码 → 换算单位
// 失败不会 panic 或向上返回错误，统一转成 StatusError 结果
func ExtractFile(ctx context.Context, path string, rc RunContext) Result {
	start := time.Now()
	name := filepath.Base(path)
	result := Result{File: name}

	set, stats, err := parser.ScanWorkbook(ctx, path)
	result.Stats = stats
	if err != nil {
		result.Status = StatusError
		result.Err = &FileError{File: name, Reason: err.Error(), Err: err}
		result.Duration = time.Since(start)
		return result
	}

	code := strings.TrimSpace(set.Text(model.EntityCode))
	if code == "" {
		result.Status = StatusError
		result.Err = &FileError{File: name, Reason: ErrMissingEntityCode.Error(), Err: ErrMissingEntityCode}
		result.Duration = time.Since(start)
		return result
	}
	result.EntityCode = code

	if _, ok := rc.Existing[code]; ok {
		result.Status = StatusSkipped
		result.Duration = time.Since(start)
		return result
	}

	record := normalize.Apply(code, set, rc.Rate)
	record.SourceFile = name
	result.Status = StatusNew
	result.Record = &record
	result.Duration = time.Since(start)
	return result
}
