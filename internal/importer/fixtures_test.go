package importer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"
)

// writeStatement 生成一个简化的财报工作簿，rows 为 A、B 两列
func writeStatement(t *testing.T, dir, name string, rows [][2]any) string {
	t.Helper()

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("cell name: %v", err)
		}
		row := []any{r[0], r[1]}
		if err := f.SetSheetRow("Sheet1", cell, &row); err != nil {
			t.Fatalf("set row: %v", err)
		}
	}

	path := filepath.Join(dir, name)
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("save workbook: %v", err)
	}
	return path
}

// statementRows 常规印尼语标签，单位为百万
func statementRows(code, currency string) [][2]any {
	return [][2]any{
		{"Kode entitas", code},
		{"Mata uang pelaporan", currency},
		{"Pembulatan yang digunakan dalam penyajian jumlah dalam laporan keuangan", "Dalam Jutaan / In Million"},
		{"Jumlah aset", "5,000"},
		{"Jumlah liabilitas", "2,000"},
		{"Jumlah ekuitas yang diatribusikan kepada pemilik entitas induk", "3,000"},
		{"Penjualan dan pendapatan usaha", "1,000"},
		{"Jumlah laba bruto", "400"},
		{"Jumlah laba (rugi)", "(50)"},
	}
}

func writeBroken(t *testing.T, dir, name string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("corrupted"), 0644); err != nil {
		t.Fatalf("write broken file: %v", err)
	}
	return path
}
