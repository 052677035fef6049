package exporter

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/LittleCrime666/End-to-End-Valuation-Pipeline/internal/logger"
	"github.com/LittleCrime666/End-to-End-Valuation-Pipeline/internal/model"
	"github.com/LittleCrime666/End-to-End-Valuation-Pipeline/internal/parser"
	"github.com/LittleCrime666/End-to-End-Valuation-Pipeline/internal/summary"
)

// 输出工作簿的 Sheet 名
const (
	SheetData    = "Data"
	SheetSummary = "Summary"
	SheetRatios  = "Ratios"
)

// RatioHeaders 比率表表头
var RatioHeaders = []string{
	string(model.EntityCode), "Price", "Shares",
	string(model.TotalLiabilities), string(model.Equity), string(model.Revenue),
	string(model.GrossProfit), string(model.NetIncome),
	"EPS", "Market Cap", "PER (x)", "PBV (x)", "DER (x)", "ROE (%)", "GPM (%)", "NPM (%)",
}

// DataHeaders 数据表表头：实体代码 + 15 项财务指标
func DataHeaders() []string {
	headers := make([]string, 0, len(model.FinancialMetrics)+1)
	headers = append(headers, string(model.EntityCode))
	for _, m := range model.FinancialMetrics {
		headers = append(headers, string(m))
	}
	return headers
}

// Workbook 一个报告期的输出内容
type Workbook struct {
	Data    model.Dataset
	Summary *summary.Table
	Ratios  []model.RatioRecord
}

// Writer 输出工作簿写入器
type Writer struct {
	log *zap.Logger
	now func() time.Time
}

// NewWriter 创建写入器
func NewWriter(log *zap.Logger) *Writer {
	return &Writer{
		log: logger.OrNop(log),
		now: time.Now,
	}
}

// Save 写入目标路径；目标文件被占用时改存到带时间戳的备用路径
// 返回实际写入的路径
func (w *Writer) Save(target string, wb Workbook, onProgress func(ProgressEvent)) (string, error) {
	progress := progressFunc(onProgress)
	progress.report(0, "准备输出", 0)

	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	f, err := w.build(wb, progress)
	if err != nil {
		return "", err
	}
	defer f.Close()

	progress.report(90, "保存文件", 0)
	err = f.SaveAs(target)
	if err == nil {
		progress.report(100, "完成", 0)
		return target, nil
	}
	if !IsLocked(err) {
		return "", fmt.Errorf("failed to save workbook: %w", err)
	}

	alt := AlternatePath(target, w.now())
	w.log.Warn("output locked, saving to alternate path", zap.String("target", target), zap.String("alternate", alt))
	if err := f.SaveAs(alt); err != nil {
		return "", fmt.Errorf("failed to save workbook to alternate path: %w", err)
	}
	progress.report(100, "完成", 0)
	return alt, nil
}

func (w *Writer) build(wb Workbook, progress progressFunc) (*excelize.File, error) {
	f := excelize.NewFile()

	if err := f.SetSheetName("Sheet1", SheetData); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to create data sheet: %w", err)
	}
	if err := writeData(f, wb.Data); err != nil {
		_ = f.Close()
		return nil, err
	}
	progress.report(40, "写入数据表", len(wb.Data))

	if _, err := f.NewSheet(SheetSummary); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to create summary sheet: %w", err)
	}
	if err := writeSummary(f, wb.Summary); err != nil {
		_ = f.Close()
		return nil, err
	}
	progress.report(60, "写入汇总表", summaryRows(wb.Summary))

	if _, err := f.NewSheet(SheetRatios); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to create ratio sheet: %w", err)
	}
	if err := writeRatios(f, wb.Ratios); err != nil {
		_ = f.Close()
		return nil, err
	}
	progress.report(80, "写入比率表", len(wb.Ratios))

	f.SetActiveSheet(0)
	return f, nil
}

func writeData(f *excelize.File, ds model.Dataset) error {
	rows := make([][]any, 0, len(ds)+1)
	rows = append(rows, stringsToRow(DataHeaders()))
	for _, r := range ds {
		row := make([]any, 0, len(model.FinancialMetrics)+1)
		row = append(row, r.EntityCode)
		for _, m := range model.FinancialMetrics {
			row = append(row, r.Value(m))
		}
		rows = append(rows, row)
	}
	return setRows(f, SheetData, rows)
}

func writeSummary(f *excelize.File, t *summary.Table) error {
	if t.Empty() {
		return nil
	}
	codeIdx := parser.FindColumn(t.Headers, summary.CodeColumns)
	rows := make([][]any, 0, len(t.Rows)+1)
	rows = append(rows, stringsToRow(t.Headers))
	for _, r := range t.Rows {
		rows = append(rows, summaryRow(r, codeIdx))
	}
	return setRows(f, SheetSummary, rows)
}

// summaryRow 可解析为数值的单元格按数值写出，代码列保持文本
func summaryRow(values []string, codeIdx int) []any {
	row := make([]any, len(values))
	for i, v := range values {
		if i == codeIdx {
			row[i] = v
			continue
		}
		if n, ok := parser.ParseValue(v); ok {
			row[i] = n
			continue
		}
		row[i] = v
	}
	return row
}

func summaryRows(t *summary.Table) int {
	if t.Empty() {
		return 0
	}
	return len(t.Rows)
}

func writeRatios(f *excelize.File, records []model.RatioRecord) error {
	rows := make([][]any, 0, len(records)+1)
	rows = append(rows, stringsToRow(RatioHeaders))
	for _, r := range records {
		rows = append(rows, []any{
			r.EntityCode,
			Round1(r.Price),
			Round1(r.Shares),
			Round1(r.TotalLiabilities),
			Round1(r.Equity),
			Round1(r.Revenue),
			Round1(r.GrossProfit),
			Round1(r.NetIncome),
			Round1(r.EPS),
			Round1(r.MarketCap),
			Round1(r.PER),
			Round1(r.PBV),
			Round1(r.DER),
			Round1(r.ROE),
			Round1(r.GPM),
			Round1(r.NPM),
		})
	}
	return setRows(f, SheetRatios, rows)
}

func setRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		r := row
		if err := f.SetSheetRow(sheet, cell, &r); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

func stringsToRow(values []string) []any {
	row := make([]any, len(values))
	for i, v := range values {
		row[i] = v
	}
	return row
}

// Round1 四舍五入到 1 位小数
func Round1(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(1).Float64()
	return f
}

// AlternatePath 目标文件被占用时的备用路径："<base> - new YYYYMMDD-HHMMSS<ext>"
func AlternatePath(target string, now time.Time) string {
	ext := filepath.Ext(target)
	base := strings.TrimSuffix(target, ext)
	return fmt.Sprintf("%s - new %s%s", base, now.Format("20060102-150405"), ext)
}

// IsLocked 判断保存失败是否因为目标文件被其它程序占用
func IsLocked(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, fs.ErrPermission) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "being used by another process") ||
		strings.Contains(msg, "sharing violation")
}
