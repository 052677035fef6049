package parser

import (
	"strings"

	"github.com/LittleCrime666/End-to-End-Valuation-Pipeline/internal/model"
)

// labelRule 标签规则：标签文本 → 指标
// priority 越小越优先；普通指标统一为 0（即先到先得）
type labelRule struct {
	pattern  string
	metric   model.Metric
	priority int
}

// exactRules 必须整行完全相等的标签
var exactRules = map[string]labelRule{
	"jumlah laba (rugi) sebelum pajak penghasilan": {metric: model.OperatingProfit},
	"jumlah laba (rugi)":                           {metric: model.NetIncome},
	"jumlah liabilitas":                            {metric: model.TotalLiabilities},
	"jumlah aset":                                  {metric: model.TotalAssets},
	"kode entitas":                                 {metric: model.EntityCode},

	"total profit (loss) before tax": {metric: model.OperatingProfit},
	"total profit (loss)":            {metric: model.NetIncome},
	"total liabilities":              {metric: model.TotalLiabilities},
	"total assets":                   {metric: model.TotalAssets},
	"entity code":                    {metric: model.EntityCode},
}

// containsRules 子串匹配规则，按顺序检查
var containsRules = []labelRule{
	{pattern: "mata uang pelaporan", metric: model.ReportingCurrency},
	{pattern: "reporting currency", metric: model.ReportingCurrency},
	{pattern: "pembulatan yang digunakan", metric: model.RoundingUnit},
	{pattern: "level of rounding used", metric: model.RoundingUnit},

	{pattern: "jumlah aset lancar", metric: model.CurrentAssets},
	{pattern: "total current assets", metric: model.CurrentAssets},
	{pattern: "jumlah aset tidak lancar", metric: model.NonCurrentAssets},
	{pattern: "total non-current assets", metric: model.NonCurrentAssets},
	{pattern: "jumlah liabilitas jangka pendek", metric: model.CurrentLiabilities},
	{pattern: "total current liabilities", metric: model.CurrentLiabilities},
	{pattern: "jumlah liabilitas jangka panjang", metric: model.NonCurrentLiabilities},
	{pattern: "total non-current liabilities", metric: model.NonCurrentLiabilities},
	{pattern: "jumlah dana syirkah temporer", metric: model.TemporarySyirkahFunds},
	{pattern: "total temporary syirkah funds", metric: model.TemporarySyirkahFunds},
	{pattern: "jumlah ekuitas yang diatribusikan kepada pemilik entitas induk", metric: model.Equity},
	{pattern: "total equity attributable to equity owners of the parent entity", metric: model.Equity},
	{pattern: "jumlah laba bruto", metric: model.GrossProfit},
	{pattern: "total gross profit", metric: model.GrossProfit},
	{pattern: "jumlah arus kas bersih yang diperoleh dari (digunakan untuk) aktivitas operasi", metric: model.OperatingCashFlow},
	{pattern: "total net cash flows received from (used in) operating activities", metric: model.OperatingCashFlow},
	{pattern: "jumlah arus kas bersih yang diperoleh dari (digunakan untuk) aktivitas investasi", metric: model.InvestingCashFlow},
	{pattern: "total net cash flows received from (used in) investing activities", metric: model.InvestingCashFlow},
	{pattern: "jumlah arus kas bersih yang diperoleh dari (digunakan untuk) aktivitas pendanaan", metric: model.FinancingCashFlow},
	{pattern: "total net cash flows received from (used in) financing activities", metric: model.FinancingCashFlow},

	// 营业收入按行业口径取优先级：销售 > 利息收入 > 保费收入
	{pattern: "penjualan dan pendapatan usaha", metric: model.Revenue, priority: 0},
	{pattern: "sales and revenue", metric: model.Revenue, priority: 0},
	{pattern: "pendapatan bunga", metric: model.Revenue, priority: 1},
	{pattern: "interest income", metric: model.Revenue, priority: 1},
	{pattern: "pendapatan dari premi asuransi", metric: model.Revenue, priority: 2},
	{pattern: "revenue from insurance premiums", metric: model.Revenue, priority: 2},
}

// bestPriority 每个指标可达到的最优优先级，达到后即不再等待
var bestPriority = func() map[model.Metric]int {
	best := make(map[model.Metric]int)
	record := func(r labelRule) {
		if p, ok := best[r.metric]; !ok || r.priority < p {
			best[r.metric] = r.priority
		}
	}
	for _, r := range exactRules {
		record(r)
	}
	for _, r := range containsRules {
		record(r)
	}
	return best
}()

// resolution 单个指标的识别状态
type resolution struct {
	value    any
	priority int
	held     bool
}

// offer 仅当尚未持有值或优先级严格更优时接受新值
func (r *resolution) offer(value any, priority int) bool {
	if r.held && priority >= r.priority {
		return false
	}
	r.value = value
	r.priority = priority
	r.held = true
	return true
}

// LabelMatcher 按行扫描 (标签, 值) 并识别指标
// 每个工作簿使用独立实例，不可并发使用
type LabelMatcher struct {
	resolved map[model.Metric]*resolution
	pending  map[model.Metric]struct{}
}

// NewLabelMatcher 创建标签识别器，所有指标初始为待识别
func NewLabelMatcher() *LabelMatcher {
	m := &LabelMatcher{
		resolved: make(map[model.Metric]*resolution),
		pending:  make(map[model.Metric]struct{}),
	}
	for _, metric := range model.AllMetrics() {
		m.pending[metric] = struct{}{}
	}
	return m
}

// Done 所有指标都已识别到最优来源
func (m *LabelMatcher) Done() bool {
	return len(m.pending) == 0
}

// Pending 返回仍待识别的指标数量
func (m *LabelMatcher) Pending() int {
	return len(m.pending)
}

// Observe 处理一行 (标签, 值)，返回是否已全部识别完成
func (m *LabelMatcher) Observe(label string, value any) bool {
	if m.Done() {
		return true
	}
	if isBlank(value) {
		return false
	}
	lbl := NormalizeLabel(label)
	if lbl == "" {
		return false
	}

	if rule, ok := exactRules[lbl]; ok {
		m.apply(rule, value)
	}
	for _, rule := range containsRules {
		if strings.Contains(lbl, rule.pattern) {
			m.apply(rule, value)
		}
	}

	return m.Done()
}

func (m *LabelMatcher) apply(rule labelRule, value any) {
	res, ok := m.resolved[rule.metric]
	if !ok {
		res = &resolution{}
		m.resolved[rule.metric] = res
	}
	if !res.offer(value, rule.priority) {
		return
	}
	if res.priority <= bestPriority[rule.metric] {
		delete(m.pending, rule.metric)
	}
}

// Result 返回已识别的指标原始值
func (m *LabelMatcher) Result() model.MetricSet {
	set := make(model.MetricSet, len(m.resolved))
	for metric, res := range m.resolved {
		if res.held {
			set[metric] = res.value
		}
	}
	return set
}

func isBlank(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(x) == ""
	default:
		return false
	}
}
