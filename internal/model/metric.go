package model

// Metric 指标名称，同时用作输出列名
type Metric string

const (
	EntityCode        Metric = "Entity Code"
	ReportingCurrency Metric = "Reporting Currency"
	RoundingUnit      Metric = "Rounding Unit"

	CurrentAssets         Metric = "Current Assets"
	NonCurrentAssets      Metric = "Non-current Assets"
	TotalAssets           Metric = "Total Assets"
	CurrentLiabilities    Metric = "Current Liabilities"
	NonCurrentLiabilities Metric = "Non-current Liabilities"
	TemporarySyirkahFunds Metric = "Temporary Syirkah Funds"
	TotalLiabilities      Metric = "Total Liabilities"
	Equity                Metric = "Equity"
	Revenue               Metric = "Revenue"
	GrossProfit           Metric = "Gross Profit"
	OperatingProfit       Metric = "Operating Profit"
	NetIncome             Metric = "Net Income"
	OperatingCashFlow     Metric = "Operating Cash Flow"
	InvestingCashFlow     Metric = "Investing Cash Flow"
	FinancingCashFlow     Metric = "Financing Cash Flow"
)

// FinancialMetrics 需要换算单位的 15 项财务指标（按输出列顺序）
var FinancialMetrics = []Metric{
	CurrentAssets,
	NonCurrentAssets,
	TotalAssets,
	CurrentLiabilities,
	NonCurrentLiabilities,
	TemporarySyirkahFunds,
	TotalLiabilities,
	Equity,
	Revenue,
	GrossProfit,
	OperatingProfit,
	NetIncome,
	OperatingCashFlow,
	InvestingCashFlow,
	FinancingCashFlow,
}

// AllMetrics 标签识别阶段需要查找的全部指标
func AllMetrics() []Metric {
	all := make([]Metric, 0, len(FinancialMetrics)+3)
	all = append(all, EntityCode, ReportingCurrency, RoundingUnit)
	all = append(all, FinancialMetrics...)
	return all
}

// MetricSet 单个工作簿中识别出的原始值，未识别的指标不出现在 map 中
type MetricSet map[Metric]any

// Text 以字符串形式返回原始值，不存在时返回空串
func (s MetricSet) Text(m Metric) string {
	v, ok := s[m]
	if !ok || v == nil {
		return ""
	}
	if str, ok := v.(string); ok {
		return str
	}
	return formatAny(v)
}
