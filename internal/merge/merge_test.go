package merge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LittleCrime666/End-to-End-Valuation-Pipeline/internal/model"
)

func record(code string, equity float64, source string) model.NormalizedRecord {
	r := model.NewRecord(code)
	r.Values[model.Equity] = equity
	r.SourceFile = source
	return r
}

func codes(ds model.Dataset) []string {
	out := make([]string, len(ds))
	for i, r := range ds {
		out[i] = r.EntityCode
	}
	return out
}

func TestMerge_NewSupersedesPrior(t *testing.T) {
	t.Parallel()

	prior := model.Dataset{
		record("AAA", 1.5, ""),
		record("BBB", 2.5, ""),
	}
	fresh := model.Dataset{
		record("BBB", 9e9, "BBB.xlsx"),
		record("CCC", 3e9, "CCC.xlsx"),
	}

	res, err := Merge(Input{Prior: prior, HasPrior: true, New: fresh})
	require.NoError(t, err)

	assert.Equal(t, OutcomeMerged, res.Outcome)
	assert.Equal(t, []string{"AAA", "BBB", "CCC"}, codes(res.Dataset))
	assert.Equal(t, 1.5, res.Dataset[0].Value(model.Equity), "prior rows are not rescaled")
	assert.Equal(t, 9.0, res.Dataset[1].Value(model.Equity))
	assert.Equal(t, 3.0, res.Dataset[2].Value(model.Equity))
	assert.Equal(t, 1, res.Added)
	assert.Equal(t, 1, res.Updated)
	for _, r := range res.Dataset {
		assert.Empty(t, r.SourceFile)
	}
}

func TestMerge_DuplicateNewRowsKeepLast(t *testing.T) {
	t.Parallel()

	fresh := model.Dataset{
		record("AAA", 1e9, "a1.xlsx"),
		record("AAA", 2e9, "a2.xlsx"),
	}

	res, err := Merge(Input{New: fresh})
	require.NoError(t, err)
	require.Len(t, res.Dataset, 1)
	assert.Equal(t, 2.0, res.Dataset[0].Value(model.Equity))
	assert.Equal(t, OutcomeNewOnly, res.Outcome)
	assert.Equal(t, 1, res.Added)
}

func TestMerge_NothingToDo(t *testing.T) {
	t.Parallel()

	_, err := Merge(Input{})
	assert.ErrorIs(t, err, ErrNothingToDo)
}

func TestMerge_PriorOnly(t *testing.T) {
	t.Parallel()

	prior := model.Dataset{record("AAA", 1.5, ""), record("BBB", 2.5, "")}

	res, err := Merge(Input{Prior: prior, HasPrior: true})
	require.NoError(t, err)
	assert.Equal(t, OutcomePriorOnly, res.Outcome)
	assert.Equal(t, []string{"AAA", "BBB"}, codes(res.Dataset))
	assert.Equal(t, 2.5, res.Dataset[1].Value(model.Equity))
}

func TestMerge_CustomDivisor(t *testing.T) {
	t.Parallel()

	res, err := Merge(Input{New: model.Dataset{record("AAA", 5000, "a.xlsx")}, Divisor: 1e3})
	require.NoError(t, err)
	assert.Equal(t, 5.0, res.Dataset[0].Value(model.Equity))
}

func TestDedupeKeepLast_Order(t *testing.T) {
	t.Parallel()

	ds := model.Dataset{
		record("A", 1, ""),
		record("B", 1, ""),
		record("A", 2, ""),
		record("C", 1, ""),
	}
	out := DedupeKeepLast(ds)
	assert.Equal(t, []string{"B", "A", "C"}, codes(out))
	assert.Equal(t, 2.0, out[1].Value(model.Equity))
}

func TestMerge_PriorOnlyDuplicates(t *testing.T) {
	t.Parallel()

	prior := model.Dataset{
		record("AAA", 1.5, ""),
		record("AAA", 4.5, ""),
		record("BBB", 2.5, ""),
	}

	res, err := Merge(Input{Prior: prior, HasPrior: true})
	require.NoError(t, err)
	assert.Equal(t, OutcomePriorOnly, res.Outcome)
	assert.Equal(t, []string{"AAA", "BBB"}, codes(res.Dataset))
	assert.Equal(t, 4.5, res.Dataset[0].Value(model.Equity))
}

func TestMerge_Idempotent(t *testing.T) {
	t.Parallel()

	in := Input{
		Prior:    model.Dataset{record("AAA", 1.5, ""), record("BBB", 2.5, "")},
		HasPrior: true,
		New: model.Dataset{
			record("BBB", 7e9, "b1.xlsx"),
			record("CCC", 3e9, "CCC.xlsx"),
			record("BBB", 8e9, "b2.xlsx"),
		},
	}

	first, err := Merge(in)
	require.NoError(t, err)
	second, err := Merge(in)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, []string{"AAA", "CCC", "BBB"}, codes(first.Dataset))
	assert.Equal(t, 8.0, first.Dataset[2].Value(model.Equity))
	assert.Equal(t, 7e9, in.New[0].Value(model.Equity), "input rows are not rescaled in place")

	seen := make(map[string]int)
	for _, r := range first.Dataset {
		seen[r.EntityCode]++
	}
	for code, n := range seen {
		assert.Equal(t, 1, n, code)
	}

	// 以合并结果作为下一次的旧数据，无新数据时结果不变
	again, err := Merge(Input{Prior: first.Dataset, HasPrior: true})
	require.NoError(t, err)
	assert.Equal(t, first.Dataset, again.Dataset)
}
