package docpipe

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"github.com/hazyhaar/larder/normalize"
	"github.com/hazyhaar/larder/record"
)

// tjSpaceThreshold is the TJ kerning offset (thousandths of an em) past
// which an adjustment is read as a word gap.
const tjSpaceThreshold = 200

// parsePDF extracts "<product> $ <price>" lines from every page.
func parsePDF(data []byte, cat *normalize.Catalog, source string) ([]record.Price, int, error) {
	conf := model.NewDefaultConfiguration()
	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), conf)
	if err != nil {
		return nil, 0, fmt.Errorf("pdfcpu read: %w", err)
	}

	set := newPriceSet(source)
	for pageNr := 1; pageNr <= ctx.PageCount; pageNr++ {
		for _, line := range pageLines(ctx, pageNr) {
			label, amount, ok := priceLine(line)
			if !ok {
				continue
			}
			id, ok := cat.Lookup(label)
			if !ok {
				continue
			}
			set.add(id, label, amount)
		}
	}

	prices := set.list()
	if len(prices) == 0 {
		return nil, ctx.PageCount, noContent(source, FormatPDF, "no price lines found")
	}
	return prices, ctx.PageCount, nil
}

// priceLine splits a text line on its first '$': the text before is the
// label, the first number after is the price.
func priceLine(line string) (string, decimal.Decimal, bool) {
	i := strings.IndexByte(line, '$')
	if i < 0 {
		return "", decimal.Zero, false
	}
	label := strings.Trim(line[:i], " \t.:-–")
	if label == "" {
		return "", decimal.Zero, false
	}
	m := amountRe.FindString(line[i+1:])
	if m == "" {
		return "", decimal.Zero, false
	}
	d, err := parseAmount(m)
	if err != nil {
		return "", decimal.Zero, false
	}
	return label, d, true
}

// pageLines extracts the text lines of a single page via its content stream.
func pageLines(ctx *model.Context, pageNr int) []string {
	r, err := pdfcpu.ExtractPageContent(ctx, pageNr)
	if err != nil || r == nil {
		return nil
	}
	data, err := io.ReadAll(r)
	if err != nil || len(data) == 0 {
		return nil
	}
	return streamLines(data)
}

// streamLines walks content stream operators and rebuilds text lines.
// Text positioned on the current baseline joins the current line with a
// space; any move to another baseline (T*, ', " included) starts a new one.
func streamLines(data []byte) []string {
	var (
		lines    []string
		cur      strings.Builder
		operands []float64
		pending  []string
		inArray  bool
		y        float64 // baseline of the text line matrix
		leading  float64
		lineY    float64 // baseline of cur
		haveLine bool
	)

	endLine := func() {
		if s := strings.Join(strings.Fields(cur.String()), " "); s != "" {
			lines = append(lines, s)
		}
		cur.Reset()
	}
	space := func() {
		if cur.Len() > 0 {
			cur.WriteByte(' ')
		}
	}
	show := func() {
		for _, s := range pending {
			cur.WriteString(s)
		}
	}
	moveTo := func(ny float64) {
		if haveLine && ny == lineY {
			space()
		} else {
			endLine()
		}
		y, lineY, haveLine = ny, ny, true
	}
	nextLine := func() {
		endLine()
		y -= leading
		lineY, haveLine = y, true
	}

	for i := 0; i < len(data); {
		c := data[i]
		switch {
		case isPDFSpace(c):
			i++
		case c == '%':
			for i < len(data) && data[i] != '\n' && data[i] != '\r' {
				i++
			}
		case c == '(':
			raw, n := readLiteral(data[i:])
			pending = append(pending, decodeText(raw))
			i += n
		case c == '<' && i+1 < len(data) && data[i+1] == '<':
			i += skipDict(data[i:])
		case c == '<':
			end := bytes.IndexByte(data[i:], '>')
			if end < 0 {
				i = len(data)
				continue
			}
			pending = append(pending, decodeText(decodeHex(data[i+1:i+end])))
			i += end + 1
		case c == '[':
			inArray = true
			i++
		case c == ']':
			inArray = false
			i++
		case c == '/':
			i++
			for i < len(data) && !isPDFSpace(data[i]) && !isPDFDelim(data[i]) {
				i++
			}
		case c == '\'' || c == '"':
			nextLine()
			show()
			operands, pending = operands[:0], pending[:0]
			i++
		default:
			start := i
			for i < len(data) && !isPDFSpace(data[i]) && !isPDFDelim(data[i]) {
				i++
			}
			if i == start {
				i++
				continue
			}
			tok := string(data[start:i])
			if v, err := strconv.ParseFloat(tok, 64); err == nil {
				if inArray {
					if v < -tjSpaceThreshold {
						pending = append(pending, " ")
					}
				} else {
					operands = append(operands, v)
				}
				continue
			}

			switch tok {
			case "BT":
				y = 0
			case "Tj", "TJ":
				show()
			case "Td", "TD":
				if len(operands) >= 2 {
					ty := operands[len(operands)-1]
					if tok == "TD" {
						leading = -ty
					}
					moveTo(y + ty)
				}
			case "TL":
				if len(operands) >= 1 {
					leading = operands[len(operands)-1]
				}
			case "T*":
				nextLine()
			case "Tm":
				if len(operands) >= 6 {
					moveTo(operands[len(operands)-1])
				}
			}
			operands, pending = operands[:0], pending[:0]
		}
	}
	endLine()
	return lines
}

func isPDFSpace(c byte) bool {
	return c == ' ' || c == '\n' || c == '\r' || c == '\t' || c == '\f' || c == 0
}

func isPDFDelim(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

// readLiteral decodes a balanced (string) with PDF escape sequences and
// returns the raw bytes plus the number of input bytes consumed.
func readLiteral(data []byte) ([]byte, int) {
	var out []byte
	depth := 0
	i := 0
	for i < len(data) {
		c := data[i]
		switch {
		case c == '(':
			if depth > 0 {
				out = append(out, c)
			}
			depth++
			i++
		case c == ')':
			depth--
			i++
			if depth == 0 {
				return out, i
			}
			out = append(out, c)
		case c == '\\' && i+1 < len(data):
			i++
			switch e := data[i]; e {
			case 'n':
				out = append(out, '\n')
			case 'r':
				out = append(out, '\r')
			case 't':
				out = append(out, '\t')
			case 'b':
				out = append(out, '\b')
			case 'f':
				out = append(out, '\f')
			case '\r', '\n':
				// line continuation
				if e == '\r' && i+1 < len(data) && data[i+1] == '\n' {
					i++
				}
			default:
				if e >= '0' && e <= '7' {
					val := int(e - '0')
					for k := 0; k < 2 && i+1 < len(data) && data[i+1] >= '0' && data[i+1] <= '7'; k++ {
						i++
						val = val*8 + int(data[i]-'0')
					}
					out = append(out, byte(val))
				} else {
					out = append(out, e)
				}
			}
			i++
		default:
			out = append(out, c)
			i++
		}
	}
	return out, i
}

func skipDict(data []byte) int {
	depth := 0
	for i := 0; i+1 < len(data); i++ {
		switch {
		case data[i] == '<' && data[i+1] == '<':
			depth++
			i++
		case data[i] == '>' && data[i+1] == '>':
			depth--
			i++
			if depth == 0 {
				return i + 1
			}
		}
	}
	return len(data)
}

func decodeHex(h []byte) []byte {
	var digits []byte
	for _, c := range h {
		if _, ok := hexVal(c); ok {
			digits = append(digits, c)
		}
	}
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}
	out := make([]byte, 0, len(digits)/2)
	for i := 0; i < len(digits); i += 2 {
		hi, _ := hexVal(digits[i])
		lo, _ := hexVal(digits[i+1])
		out = append(out, hi<<4|lo)
	}
	return out
}

func hexVal(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// decodeText maps PDF string bytes to UTF-8: UTF-16BE when a BOM is
// present, UTF-8 when valid, WinAnsi (Windows-1252) otherwise.
func decodeText(raw []byte) string {
	if len(raw) >= 2 && raw[0] == 0xFE && raw[1] == 0xFF {
		dec := unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM).NewDecoder()
		if s, err := dec.Bytes(raw); err == nil {
			return string(s)
		}
	}
	if utf8.Valid(raw) {
		return string(raw)
	}
	s, err := charmap.Windows1252.NewDecoder().Bytes(raw)
	if err != nil {
		return string(raw)
	}
	return string(s)
}
