package parser

import (
	"context"
	"errors"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/LittleCrime666/End-to-End-Valuation-Pipeline/internal/model"
)

// ErrOpenWorkbook 工作簿无法打开
var ErrOpenWorkbook = errors.New("failed to open workbook")

// ScanStats 单个工作簿的扫描统计
type ScanStats struct {
	SheetsScanned int
	SheetsSkipped int
	RowsScanned   int
	EarlyStop     bool
}

// ScanWorkbook 打开工作簿并扫描所有 Sheet 的 A、B 两列
// 所有指标识别完成后立即停止（跨 Sheet 生效）
func ScanWorkbook(ctx context.Context, path string) (model.MetricSet, ScanStats, error) {
	var stats ScanStats

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, stats, fmt.Errorf("%w: %v", ErrOpenWorkbook, err)
	}
	defer f.Close()

	matcher := NewLabelMatcher()
	for _, sheet := range f.GetSheetList() {
		if matcher.Done() {
			stats.EarlyStop = true
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}

		rows, err := scanSheet(f, sheet, matcher)
		stats.RowsScanned += rows
		if err != nil {
			// 受保护或结构异常的 Sheet 直接跳过
			stats.SheetsSkipped++
			continue
		}
		stats.SheetsScanned++
	}
	if matcher.Done() {
		stats.EarlyStop = true
	}

	return matcher.Result(), stats, nil
}

// scanSheet 逐行读取 A、B 两列，返回已读取行数
func scanSheet(f *excelize.File, sheet string, matcher *LabelMatcher) (int, error) {
	rows, err := f.Rows(sheet)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		cols, err := rows.Columns(excelize.Options{RawCellValue: true})
		if err != nil {
			return count, err
		}
		count++
		if len(cols) < 2 {
			continue
		}
		if matcher.Observe(cols[0], cols[1]) {
			break
		}
	}
	return count, rows.Error()
}
