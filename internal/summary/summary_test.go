package summary

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/LittleCrime666/End-to-End-Valuation-Pipeline/internal/model"
)

func writeSummary(t *testing.T, path string, rows [][]any) {
	t.Helper()

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		r := row
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &r))
	}
	require.NoError(t, f.SaveAs(path))
}

func TestPartition(t *testing.T) {
	t.Parallel()

	files := []string{
		"/in/BBCA.xlsx",
		"/in/Ringkasan Saham-20250630.xlsx",
		"/in/~$BBCA.xlsx",
		"/in/AALI.xlsx",
	}
	data, summaries := Partition(files, "")
	assert.Equal(t, []string{"/in/AALI.xlsx", "/in/BBCA.xlsx"}, data)
	assert.Equal(t, []string{"/in/Ringkasan Saham-20250630.xlsx"}, summaries)
}

func TestReadAndQuotes(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "Ringkasan Saham-20250630.xlsx")
	writeSummary(t, path, [][]any{
		{"No", "Kode Saham", "Nama Perusahaan", "Penutupan", "Tradable Shares"},
		{1, "AALI", "Astra Agro Lestari", 6500, "1,924,688,333"},
		{2, "BBCA", "Bank Central Asia", 9000, 123275050000},
		{3, "AALI", "duplicate row", 1, 1},
		{4, "", "no code", 1, 1},
	})

	table, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, "Ringkasan Saham-20250630.xlsx", table.Source)
	assert.Len(t, table.Rows, 4)

	quotes := table.Quotes()
	require.Len(t, quotes, 2)
	assert.Equal(t, model.Quote{Price: 6500, Shares: 1924688333}, quotes["AALI"])
	assert.Equal(t, 9000.0, quotes["BBCA"].Price)
	assert.Equal(t, 123275050000.0, quotes["BBCA"].Shares)
}

func TestQuotes_SynonymHeaders(t *testing.T) {
	t.Parallel()

	table := &Table{
		Headers: []string{"KODE", "Last", "Free Float"},
		Rows:    [][]string{{"TLKM", "3,100", "(0)"}},
	}
	q := table.Quotes()["TLKM"]
	assert.Equal(t, 3100.0, q.Price)
	assert.Equal(t, 0.0, q.Shares)
}

func TestQuotes_NoCodeColumn(t *testing.T) {
	t.Parallel()

	table := &Table{Headers: []string{"Close"}, Rows: [][]string{{"100"}}}
	assert.Empty(t, table.Quotes())

	var empty *Table
	assert.Empty(t, empty.Quotes())
}
