package ratio

import (
	"math"

	"github.com/LittleCrime666/End-to-End-Valuation-Pipeline/internal/model"
)

// SafeDiv 安全除法：分母为 0 或任一操作数为 NaN/Inf 时返回 0
func SafeDiv(a, b float64) float64 {
	if b == 0 || !isFinite(a) || !isFinite(b) {
		return 0
	}
	q := a / b
	if !isFinite(q) {
		return 0
	}
	return q
}

// Engine 比率计算器
type Engine struct {
	period       model.Period
	shareDivisor float64
}

// NewEngine 创建比率计算器
// shareDivisor 将汇总文件中的流通股数换算为与财务数据一致的单位，<=0 时不换算
func NewEngine(period model.Period, shareDivisor float64) *Engine {
	if shareDivisor <= 0 {
		shareDivisor = 1
	}
	return &Engine{period: period, shareDivisor: shareDivisor}
}

// Compute 为数据集中每个实体计算比率；quotes 中没有的实体价格与股数记为 0
func (e *Engine) Compute(ds model.Dataset, quotes map[string]model.Quote) []model.RatioRecord {
	out := make([]model.RatioRecord, 0, len(ds))
	for _, r := range ds {
		q := quotes[r.EntityCode]
		out = append(out, e.computeOne(r, q))
	}
	return out
}

func (e *Engine) computeOne(r model.NormalizedRecord, q model.Quote) model.RatioRecord {
	shares := SafeDiv(q.Shares, e.shareDivisor)
	price := finiteOrZero(q.Price)

	netIncome := r.Value(model.NetIncome)
	equity := r.Value(model.Equity)
	revenue := r.Value(model.Revenue)
	annualNI := netIncome * e.period.AnnualizationFactor()
	eps := SafeDiv(annualNI, shares)

	return model.RatioRecord{
		EntityCode:          r.EntityCode,
		Price:               price,
		Shares:              shares,
		TotalLiabilities:    r.Value(model.TotalLiabilities),
		Equity:              equity,
		Revenue:             revenue,
		GrossProfit:         r.Value(model.GrossProfit),
		NetIncome:           netIncome,
		AnnualizedNetIncome: annualNI,
		EPS:                 eps,
		MarketCap:           finiteOrZero(price * shares),
		PER:                 SafeDiv(price, eps),
		PBV:                 SafeDiv(price, SafeDiv(equity, shares)),
		DER:                 SafeDiv(r.Value(model.TotalLiabilities), equity),
		ROE:                 SafeDiv(annualNI, equity) * 100,
		GPM:                 SafeDiv(r.Value(model.GrossProfit), revenue) * 100,
		NPM:                 SafeDiv(netIncome, revenue) * 100,
	}
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func finiteOrZero(f float64) float64 {
	if !isFinite(f) {
		return 0
	}
	return f
}
