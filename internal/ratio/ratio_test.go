package ratio

import (
	"math"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/LittleCrime666/End-to-End-Valuation-Pipeline/internal/model"
)

func TestSafeDiv(t *testing.T) {
	Convey("SafeDiv never yields NaN or Inf", t, func() {
		So(SafeDiv(10, 4), ShouldEqual, 2.5)
		So(SafeDiv(10, 0), ShouldEqual, 0)
		So(SafeDiv(0, 0), ShouldEqual, 0)
		So(SafeDiv(math.NaN(), 1), ShouldEqual, 0)
		So(SafeDiv(1, math.Inf(1)), ShouldEqual, 0)
		So(SafeDiv(math.MaxFloat64, 1e-300), ShouldEqual, 0)
	})
}

func TestEngine_Compute(t *testing.T) {
	Convey("Given a Q2 dataset", t, func() {
		rec := model.NewRecord("AAA")
		rec.Values[model.NetIncome] = 10
		rec.Values[model.Equity] = 60
		rec.Values[model.TotalLiabilities] = 40
		rec.Values[model.Revenue] = 100
		rec.Values[model.GrossProfit] = 30

		engine := NewEngine(model.Period{Year: 2025, Quarter: 2}, 1e9)

		Convey("With a matching quote", func() {
			quotes := map[string]model.Quote{"AAA": {Price: 500, Shares: 5e9}}
			out := engine.Compute(model.Dataset{rec}, quotes)
			So(out, ShouldHaveLength, 1)
			r := out[0]

			So(r.Shares, ShouldEqual, 5)
			So(r.AnnualizedNetIncome, ShouldEqual, 20)
			So(r.EPS, ShouldEqual, 4)
			So(r.MarketCap, ShouldEqual, 2500)
			So(r.PER, ShouldEqual, 125)
			So(r.PBV, ShouldAlmostEqual, 500/(60.0/5), 1e-9)
			So(r.DER, ShouldAlmostEqual, 0.6667, 1e-4)
			So(r.ROE, ShouldAlmostEqual, 33.33, 0.01)
			So(r.GPM, ShouldAlmostEqual, 30, 1e-9)
			So(r.NPM, ShouldAlmostEqual, 10, 1e-9)
		})

		Convey("Without a quote", func() {
			out := engine.Compute(model.Dataset{rec}, nil)
			r := out[0]

			So(r.Price, ShouldEqual, 0)
			So(r.Shares, ShouldEqual, 0)
			So(r.EPS, ShouldEqual, 0)
			So(r.PER, ShouldEqual, 0)
			So(r.PBV, ShouldEqual, 0)
			So(r.MarketCap, ShouldEqual, 0)
			So(r.DER, ShouldAlmostEqual, 0.6667, 1e-4)
		})

		Convey("With zero equity and revenue", func() {
			empty := model.NewRecord("ZZZ")
			out := engine.Compute(model.Dataset{empty}, map[string]model.Quote{"ZZZ": {Price: 100, Shares: 1e9}})
			r := out[0]

			So(r.DER, ShouldEqual, 0)
			So(r.ROE, ShouldEqual, 0)
			So(r.GPM, ShouldEqual, 0)
			So(r.NPM, ShouldEqual, 0)
			So(r.PBV, ShouldEqual, 0)
			So(math.IsNaN(r.PER), ShouldBeFalse)
		})
	})
}

func TestPeriod_AnnualizationFactor(t *testing.T) {
	Convey("Annualization follows the quarter", t, func() {
		So(model.Period{Quarter: 1}.AnnualizationFactor(), ShouldEqual, 4)
		So(model.Period{Quarter: 2}.AnnualizationFactor(), ShouldEqual, 2)
		So(model.Period{Quarter: 3}.AnnualizationFactor(), ShouldAlmostEqual, 4.0/3.0, 1e-12)
		So(model.Period{Quarter: 4}.AnnualizationFactor(), ShouldEqual, 1)
	})
}
