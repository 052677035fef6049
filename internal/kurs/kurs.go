package kurs

import (
	"errors"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/LittleCrime666/End-to-End-Valuation-Pipeline/internal/model"
	"github.com/LittleCrime666/End-to-End-Valuation-Pipeline/internal/parser"
)

var (
	// ErrRateNotFound 汇率表中没有该报告期
	ErrRateNotFound = errors.New("exchange rate not found for period")
	// ErrColumnsNotFound 汇率表缺少年份、季度或汇率列
	ErrColumnsNotFound = errors.New("exchange rate sheet must have year, quarter and rate columns")
	// ErrNoSource 未配置汇率文件也未指定固定汇率
	ErrNoSource = errors.New("no exchange rate source configured")
)

var (
	yearColumns    = []string{"tahun", "year"}
	quarterColumns = []string{"kuartal", "quarter"}
	rateColumns    = []string{"nilai", "kurs", "rate"}
)

// Resolve 确定报告期的美元汇率：固定汇率优先，否则查汇率表
func Resolve(fixed float64, path string, p model.Period) (float64, error) {
	if fixed > 0 {
		return fixed, nil
	}
	if path == "" {
		return 0, ErrNoSource
	}
	return Lookup(path, p)
}

// Lookup 在汇率表第一个 Sheet 中查找报告期的汇率
func Lookup(path string, p model.Period) (float64, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open exchange rate file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return 0, ErrColumnsNotFound
	}
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return 0, fmt.Errorf("failed to read exchange rate sheet: %w", err)
	}
	return FindRate(rows, p)
}

// FindRate 在表格行中查找报告期的汇率，第一行为表头
func FindRate(rows [][]string, p model.Period) (float64, error) {
	if len(rows) == 0 {
		return 0, ErrColumnsNotFound
	}

	headers := rows[0]
	yearIdx := parser.FindColumn(headers, yearColumns)
	quarterIdx := parser.FindColumn(headers, quarterColumns)
	rateIdx := parser.FindColumn(headers, rateColumns)
	if yearIdx < 0 || quarterIdx < 0 || rateIdx < 0 {
		return 0, fmt.Errorf("%w: got %v", ErrColumnsNotFound, headers)
	}

	for _, row := range rows[1:] {
		year, ok := intCell(row, yearIdx)
		if !ok || year != p.Year {
			continue
		}
		quarter, ok := intCell(row, quarterIdx)
		if !ok || quarter != p.Quarter {
			continue
		}
		if rateIdx >= len(row) {
			break
		}
		rate, ok := parser.ParseValue(row[rateIdx])
		if !ok || rate <= 0 {
			return 0, fmt.Errorf("%w: invalid rate %q for %s", ErrRateNotFound, row[rateIdx], p)
		}
		return rate, nil
	}

	return 0, fmt.Errorf("%w: %s", ErrRateNotFound, p)
}

func intCell(row []string, idx int) (int, bool) {
	if idx >= len(row) {
		return 0, false
	}
	v, ok := parser.ParseValue(row[idx])
	if !ok {
		return 0, false
	}
	return int(v), true
}
