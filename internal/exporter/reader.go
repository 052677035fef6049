package exporter

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/LittleCrime666/End-to-End-Valuation-Pipeline/internal/model"
	"github.com/LittleCrime666/End-to-End-Valuation-Pipeline/internal/parser"
)

// ErrNoEntityColumn 旧输出文件的 Data 表没有实体代码列
var ErrNoEntityColumn = errors.New("data sheet has no entity code column")

var entityColumns = []string{string(model.EntityCode), "Saham", "Kode Saham"}

// legacyHeaders 早期版本输出文件使用的印尼语列名
var legacyHeaders = map[string]model.Metric{
	"aset lancar":               model.CurrentAssets,
	"aset tetap":                model.NonCurrentAssets,
	"total aset":                model.TotalAssets,
	"liabilitas jangka pendek":  model.CurrentLiabilities,
	"liabilitas jangka panjang": model.NonCurrentLiabilities,
	"dana syirkah temporer":     model.TemporarySyirkahFunds,
	"total liabilitas":          model.TotalLiabilities,
	"ekuitas":                   model.Equity,
	"pendapatan":                model.Revenue,
	"laba bruto":                model.GrossProfit,
	"laba usaha":                model.OperatingProfit,
	"laba bersih":               model.NetIncome,
	"arus kas operasi":          model.OperatingCashFlow,
	"arus kas investasi":        model.InvestingCashFlow,
	"arus kas pendanaan":        model.FinancingCashFlow,
}

// ReadDataset 读取旧输出文件的 Data 表
// 文件不存在时 exists=false 且 err=nil
func ReadDataset(path string) (ds model.Dataset, exists bool, err error) {
	if _, statErr := os.Stat(path); statErr != nil {
		if os.IsNotExist(statErr) {
			return nil, false, nil
		}
		return nil, true, fmt.Errorf("failed to stat prior output: %w", statErr)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, true, fmt.Errorf("failed to open prior output: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(SheetData, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, true, fmt.Errorf("failed to read %s sheet: %w", SheetData, err)
	}
	ds, err = ParseDataRows(rows)
	return ds, true, err
}

// ParseDataRows 将 Data 表的行（第一行为表头）解析为数据集
// 空代码行被忽略，无法解析的数值记为 0
func ParseDataRows(rows [][]string) (model.Dataset, error) {
	if len(rows) == 0 {
		return model.Dataset{}, nil
	}

	headers := rows[0]
	codeIdx := parser.FindColumn(headers, entityColumns)
	if codeIdx < 0 {
		return nil, ErrNoEntityColumn
	}
	columns := metricColumns(headers)

	ds := make(model.Dataset, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if codeIdx >= len(row) {
			continue
		}
		code := strings.TrimSpace(row[codeIdx])
		if code == "" {
			continue
		}
		rec := model.NewRecord(code)
		for idx, m := range columns {
			if idx < len(row) {
				rec.Values[m] = parser.ParseNumberOrZero(row[idx])
			}
		}
		ds = append(ds, rec)
	}
	return ds, nil
}

// metricColumns 列索引 → 指标，仅按完整列名匹配
func metricColumns(headers []string) map[int]model.Metric {
	byName := make(map[string]model.Metric, len(model.FinancialMetrics)+len(legacyHeaders))
	for _, m := range model.FinancialMetrics {
		byName[parser.NormalizeLabel(string(m))] = m
	}
	for name, m := range legacyHeaders {
		byName[name] = m
	}

	columns := make(map[int]model.Metric)
	for i, h := range headers {
		if m, ok := byName[parser.NormalizeLabel(h)]; ok {
			columns[i] = m
		}
	}
	return columns
}
