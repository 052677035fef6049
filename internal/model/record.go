package model

import (
	"fmt"
	"strconv"
)

// NormalizedRecord 单个实体换算后的财务数据
type NormalizedRecord struct {
	EntityCode string             `json:"entityCode"`
	Values     map[Metric]float64 `json:"values"`
	SourceFile string             `json:"-"` // 仅用于排序，不落盘
}

// NewRecord 创建空记录，所有财务指标为 0
func NewRecord(code string) NormalizedRecord {
	values := make(map[Metric]float64, len(FinancialMetrics))
	for _, m := range FinancialMetrics {
		values[m] = 0
	}
	return NormalizedRecord{EntityCode: code, Values: values}
}

// Value 读取指标值，缺失时为 0
func (r NormalizedRecord) Value(m Metric) float64 {
	return r.Values[m]
}

// Dataset 按实体代码去重后的有序记录集
type Dataset []NormalizedRecord

// Codes 返回数据集中出现过的实体代码
func (d Dataset) Codes() map[string]struct{} {
	codes := make(map[string]struct{}, len(d))
	for _, r := range d {
		codes[r.EntityCode] = struct{}{}
	}
	return codes
}

// Quote 汇总文件中的行情数据
type Quote struct {
	Price  float64 `json:"price"`
	Shares float64 `json:"shares"`
}

// RatioRecord 估值与盈利能力比率
type RatioRecord struct {
	EntityCode          string  `json:"entityCode"`
	Price               float64 `json:"price"`
	Shares              float64 `json:"shares"`
	TotalLiabilities    float64 `json:"totalLiabilities"`
	Equity              float64 `json:"equity"`
	Revenue             float64 `json:"revenue"`
	GrossProfit         float64 `json:"grossProfit"`
	NetIncome           float64 `json:"netIncome"`
	AnnualizedNetIncome float64 `json:"annualizedNetIncome"`
	EPS                 float64 `json:"eps"`
	MarketCap           float64 `json:"marketCap"`
	PER                 float64 `json:"per"`
	PBV                 float64 `json:"pbv"`
	DER                 float64 `json:"der"`
	ROE                 float64 `json:"roe"`
	GPM                 float64 `json:"gpm"`
	NPM                 float64 `json:"npm"`
}

func formatAny(v any) string {
	switch x := v.(type) {
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(v)
	}
}
