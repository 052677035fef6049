package summary

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/LittleCrime666/End-to-End-Valuation-Pipeline/internal/model"
	"github.com/LittleCrime666/End-to-End-Valuation-Pipeline/internal/parser"
)

// DefaultPrefix 交易所每日汇总文件的文件名前缀
const DefaultPrefix = "Ringkasan Saham-"

// 列名候选，按优先级排列
var (
	PriceColumns  = []string{"Penutupan", "Penutupan (Close)", "Close", "Last", "Penutupan Harga"}
	SharesColumns = []string{"Tradable Shares", "Tradable", "Shares", "Free Float", "Tradable Shares (Saham)"}
	CodeColumns   = []string{"Kode Saham", "Kode", "Saham", "Kode saham"}
	codeFallback  = []string{"kode", "saham"}
)

// ErrEmptySheet 汇总文件没有表头
var ErrEmptySheet = errors.New("summary sheet is empty")

// Table 汇总文件第一个 Sheet 的原样内容
type Table struct {
	Source  string
	Headers []string
	Rows    [][]string
}

// Empty 没有可用数据
func (t *Table) Empty() bool {
	return t == nil || len(t.Headers) == 0
}

// Partition 按文件名前缀区分数据文件与汇总文件，并忽略 Excel 锁文件
func Partition(files []string, prefix string) (data, summaries []string) {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	for _, f := range files {
		base := filepath.Base(f)
		switch {
		case strings.HasPrefix(base, "~$"):
			continue
		case strings.HasPrefix(base, prefix):
			summaries = append(summaries, f)
		default:
			data = append(data, f)
		}
	}
	sort.Strings(data)
	sort.Strings(summaries)
	return data, summaries
}

// Read 读取汇总文件的第一个 Sheet
func Read(path string) (*Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open summary file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptySheet
	}

	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read summary sheet: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrEmptySheet
	}

	headers := rows[0]
	table := &Table{
		Source:  filepath.Base(path),
		Headers: headers,
		Rows:    make([][]string, 0, len(rows)-1),
	}
	for _, row := range rows[1:] {
		padded := make([]string, len(headers))
		copy(padded, row)
		table.Rows = append(table.Rows, padded)
	}
	return table, nil
}

// Quotes 按实体代码提取收盘价与流通股数
// 同一代码出现多次时取第一行；找不到代码列时返回空 map
func (t *Table) Quotes() map[string]model.Quote {
	quotes := make(map[string]model.Quote)
	if t.Empty() {
		return quotes
	}

	codeIdx := parser.FindColumn(t.Headers, CodeColumns)
	if codeIdx < 0 {
		codeIdx = parser.FindColumn(t.Headers, codeFallback)
	}
	if codeIdx < 0 {
		return quotes
	}
	priceIdx := parser.FindColumn(t.Headers, PriceColumns)
	sharesIdx := parser.FindColumn(t.Headers, SharesColumns)

	for _, row := range t.Rows {
		code := strings.TrimSpace(cell(row, codeIdx))
		if code == "" {
			continue
		}
		if _, ok := quotes[code]; ok {
			continue
		}
		quotes[code] = model.Quote{
			Price:  parser.ParseNumberOrZero(cell(row, priceIdx)),
			Shares: parser.ParseNumberOrZero(cell(row, sharesIdx)),
		}
	}
	return quotes
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}
