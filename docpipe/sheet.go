package docpipe

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"

	"github.com/hazyhaar/larder/normalize"
	"github.com/hazyhaar/larder/record"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// priceSet collects prices keyed by ingredient id. The last price seen for an
// id wins; ids keep the position of their first appearance.
type priceSet struct {
	source string
	order  []string
	byID   map[string]record.Price
}

func newPriceSet(source string) *priceSet {
	return &priceSet{source: source, byID: make(map[string]record.Price)}
}

func (s *priceSet) add(id, label string, perKg decimal.Decimal) {
	if !perKg.IsPositive() {
		return
	}
	if _, ok := s.byID[id]; !ok {
		s.order = append(s.order, id)
	}
	s.byID[id] = record.Price{
		ID:     id,
		Label:  strings.TrimSpace(label),
		PerKg:  perKg,
		Source: s.source,
	}
}

func (s *priceSet) list() []record.Price {
	out := make([]record.Price, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out
}

// sweepRow looks for (label, price) pairs in adjacent cells.
func sweepRow(row []string, cat *normalize.Catalog, set *priceSet, price func(col int) (decimal.Decimal, bool)) {
	for c := 0; c+1 < len(row); c++ {
		label := strings.TrimSpace(row[c])
		if label == "" {
			continue
		}
		id, ok := cat.Lookup(label)
		if !ok {
			continue
		}
		amount, ok := price(c + 1)
		if !ok {
			continue
		}
		set.add(id, label, amount)
		c++
	}
}

// parseXLSX reads every sheet of a workbook.
func parseXLSX(data []byte, cat *normalize.Catalog, source string) ([]record.Price, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	set := newPriceSet(source)
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
		}
		for r, row := range rows {
			sweepRow(row, cat, set, func(col int) (decimal.Decimal, bool) {
				return xlsxAmount(f, sheet, r, col, row[col])
			})
		}
	}

	prices := set.list()
	if len(prices) == 0 {
		return nil, noContent(source, FormatXLSX, "no price rows found")
	}
	return prices, nil
}

// xlsxAmount reads a price cell. Numeric cells are taken verbatim, text
// cells must look like money.
func xlsxAmount(f *excelize.File, sheet string, row, col int, raw string) (decimal.Decimal, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, false
	}
	if cell, err := excelize.CoordinatesToCellName(col+1, row+1); err == nil {
		typ, err := f.GetCellType(sheet, cell)
		if err == nil && (typ == excelize.CellTypeNumber || typ == excelize.CellTypeUnset) {
			if d, err := decimal.NewFromString(raw); err == nil {
				return d, true
			}
		}
	}
	return moneyCell(raw)
}

func moneyCell(raw string) (decimal.Decimal, bool) {
	if !looksLikeMoney(raw) {
		return decimal.Zero, false
	}
	d, err := parseAmount(amountRe.FindString(raw))
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// parseCSV reads a delimited export. Spreadsheet programs in Spanish locales
// write ';' separated files, so the delimiter is sniffed from the first line.
func parseCSV(data []byte, cat *normalize.Catalog, source string) ([]record.Price, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		decoded, err := charmap.Windows1252.NewDecoder().Bytes(data)
		if err != nil {
			return nil, fmt.Errorf("decode csv: %w", err)
		}
		data = decoded
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = sniffDelimiter(data)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}

	set := newPriceSet(source)
	for _, row := range rows {
		sweepRow(row, cat, set, func(col int) (decimal.Decimal, bool) {
			return moneyCell(row[col])
		})
	}

	prices := set.list()
	if len(prices) == 0 {
		return nil, noContent(source, FormatCSV, "no price rows found")
	}
	return prices, nil
}

func sniffDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	best, bestN := ',', bytes.Count(line, []byte{','})
	for _, d := range []rune{';', '\t'} {
		if n := bytes.Count(line, []byte(string(d))); n > bestN {
			best, bestN = d, n
		}
	}
	return best
}
