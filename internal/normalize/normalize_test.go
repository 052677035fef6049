package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/LittleCrime666/End-to-End-Valuation-Pipeline/internal/model"
)

func TestCurrencyMultiplier(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 15000.0, CurrencyMultiplier("US Dollar / USD", 15000))
	assert.Equal(t, 15000.0, CurrencyMultiplier("Dolar Amerika / US DOLLAR", 15000))
	assert.Equal(t, 1.0, CurrencyMultiplier("Rupiah / IDR", 15000))
	assert.Equal(t, 1.0, CurrencyMultiplier("", 15000))
}

func TestMagnitudeMultiplier(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1e3, MagnitudeMultiplier("Dalam Ribuan / In Thousand"))
	assert.Equal(t, 1e6, MagnitudeMultiplier("Dalam Jutaan / In Million"))
	assert.Equal(t, 1e9, MagnitudeMultiplier("Dalam Miliaran / In Billion"))
	assert.Equal(t, 1.0, MagnitudeMultiplier("Satuan Penuh / Full Amount"))
	assert.Equal(t, 1.0, MagnitudeMultiplier(""))
}

func TestApply_MillionsIDR(t *testing.T) {
	t.Parallel()

	set := model.MetricSet{
		model.ReportingCurrency: "Rupiah / IDR",
		model.RoundingUnit:      "Dalam Jutaan / In Million",
		model.TotalAssets:       "1,234",
		model.NetIncome:         "(10)",
		model.Revenue:           "n/a",
	}

	rec := Apply("AALI", set, 16000)
	assert.Equal(t, "AALI", rec.EntityCode)
	assert.InDelta(t, 1_234_000_000.0, rec.Value(model.TotalAssets), 1e-6)
	assert.InDelta(t, -10_000_000.0, rec.Value(model.NetIncome), 1e-6)
	assert.Equal(t, 0.0, rec.Value(model.Revenue))
	assert.Equal(t, 0.0, rec.Value(model.Equity))
	assert.Len(t, rec.Values, len(model.FinancialMetrics))
}

func TestApply_ThousandsUSD(t *testing.T) {
	t.Parallel()

	set := model.MetricSet{
		model.ReportingCurrency: "US Dollar",
		model.RoundingUnit:      "Thousand",
		model.Equity:            2.5,
	}

	rec := Apply("ADRO", set, 15000)
	assert.InDelta(t, 2.5*1e3*15000, rec.Value(model.Equity), 1e-6)
}
