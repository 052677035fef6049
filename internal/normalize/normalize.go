package normalize

import (
	"strings"

	"github.com/LittleCrime666/End-to-End-Valuation-Pipeline/internal/model"
	"github.com/LittleCrime666/End-to-End-Valuation-Pipeline/internal/parser"
)

// magnitudeRule 数量级关键词 → 倍数，按顺序取第一个命中的
type magnitudeRule struct {
	keywords []string
	factor   float64
}

var magnitudeRules = []magnitudeRule{
	{keywords: []string{"ribuan", "thousand"}, factor: 1e3},
	{keywords: []string{"jutaan", "million"}, factor: 1e6},
	{keywords: []string{"miliaran", "billion"}, factor: 1e9},
}

var foreignCurrencyKeywords = []string{"dollar", "usd"}

// CurrencyMultiplier 报告币种倍数：美元按汇率折算，其余为 1
func CurrencyMultiplier(currency string, rate float64) float64 {
	if parser.ContainsAny(strings.ToLower(currency), foreignCurrencyKeywords) {
		return rate
	}
	return 1
}

// MagnitudeMultiplier 数量级倍数，未识别时为 1
func MagnitudeMultiplier(rounding string) float64 {
	text := strings.ToLower(rounding)
	for _, rule := range magnitudeRules {
		if parser.ContainsAny(text, rule.keywords) {
			return rule.factor
		}
	}
	return 1
}

// Multiplier 单个工作簿的总倍数 = 币种倍数 × 数量级倍数
func Multiplier(set model.MetricSet, rate float64) float64 {
	return CurrencyMultiplier(set.Text(model.ReportingCurrency), rate) *
		MagnitudeMultiplier(set.Text(model.RoundingUnit))
}

// Apply 将 15 项财务指标解析并乘以倍数，无法解析的记为 0
func Apply(code string, set model.MetricSet, rate float64) model.NormalizedRecord {
	record := model.NewRecord(code)
	multiplier := Multiplier(set, rate)
	for _, m := range model.FinancialMetrics {
		if v, ok := parser.ParseValue(set[m]); ok {
			record.Values[m] = v * multiplier
		}
	}
	return record
}
