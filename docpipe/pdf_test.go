package docpipe

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestParsePDF_PriceLines(t *testing.T) {
	// WHAT: Lines "<product> $ <price>" become prices; other lines are ignored.
	// WHY: Supplier PDFs are plain text lists with headers and unknown products.
	raw := buildRealTextPDF(
		"Lista de precios - semana 12",
		"Tomate $ 1.200,50",
		"Papa x kg ....... $ 850",
		"Coliflor $ 300",
		"Precios sujetos a cambio",
	)

	pipe := New(Config{})
	batch, err := pipe.Parse(context.Background(), "proveedor.pdf", raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if batch.Pages != 1 {
		t.Errorf("pages = %d, want 1", batch.Pages)
	}
	assertPrices(t, batch.Prices, map[string]string{
		"tomate": "1200.5",
		"papa":   "850",
	})
	if batch.Prices[1].Label != "Papa x kg" {
		t.Errorf("label = %q", batch.Prices[1].Label)
	}
}

func TestParsePDF_NoPrices(t *testing.T) {
	raw := buildRealTextPDF("Hello World from PDF extraction test")
	_, err := New(Config{}).Parse(context.Background(), "hello.pdf", raw)
	if !errors.Is(err, ErrNoContent) {
		t.Fatalf("expected ErrNoContent, got %v", err)
	}
}

func TestStreamLines(t *testing.T) {
	// WHAT: Content stream operators are rebuilt into visual lines.
	// WHY: Table-like PDFs place name and price with separate moves on one baseline.
	tests := []struct {
		name   string
		stream string
		want   []string
	}{
		{
			name:   "T* separates lines",
			stream: "BT 14 TL 72 720 Td (Tomate $ 100) Tj T* (Papa $ 50) Tj ET",
			want:   []string{"Tomate $ 100", "Papa $ 50"},
		},
		{
			name:   "same baseline in two text objects",
			stream: "BT 72 650 Td (Cebolla) Tj ET BT 300 650 Td ($ 400,00) Tj ET",
			want:   []string{"Cebolla $ 400,00"},
		},
		{
			name:   "relative move down",
			stream: "BT 72 700 Td (Zapallo) Tj 0 -14 Td (Acelga) Tj ET",
			want:   []string{"Zapallo", "Acelga"},
		},
		{
			name:   "Tm on two baselines",
			stream: "BT 1 0 0 1 72 700 Tm (Lomo) Tj 1 0 0 1 300 700 Tm ($ 9.000) Tj 1 0 0 1 72 686 Tm (Falda) Tj ET",
			want:   []string{"Lomo $ 9.000", "Falda"},
		},
		{
			name:   "TJ kerning gap",
			stream: "BT 72 700 Td [(Pe) 20 (pino) -300 ($ 10)] TJ ET",
			want:   []string{"Pepino $ 10"},
		},
		{
			name:   "quote operator starts a line",
			stream: "BT 14 TL 72 700 Td (Batata) Tj ($ 20) ' ET",
			want:   []string{"Batata", "$ 20"},
		},
		{
			name:   "WinAnsi octal and hex strings",
			stream: "BT 72 700 Td (Morr\\363n ) Tj <24203530> Tj ET",
			want:   []string{"Morrón $ 50"},
		},
		{
			name:   "escaped parens and nested",
			stream: "BT 72 700 Td (Salm\\363n \\(rosado\\) (fresco)) Tj ET",
			want:   []string{"Salmón (rosado) (fresco)"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := streamLines([]byte(tt.stream))
			if strings.Join(got, "|") != strings.Join(tt.want, "|") {
				t.Errorf("streamLines = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPriceLine(t *testing.T) {
	label, amount, ok := priceLine("Bife de chorizo: $ 12.500,00 x kg")
	if !ok || label != "Bife de chorizo" || amount.String() != "12500" {
		t.Errorf("priceLine = %q %s %v", label, amount, ok)
	}
	for _, line := range []string{"Sin precio", "$ 100", "Tomate $ consultar"} {
		if _, _, ok := priceLine(line); ok {
			t.Errorf("priceLine(%q): expected no match", line)
		}
	}
}

// --- PDF test helpers ---

// buildRealTextPDF creates a valid PDF with proper xref offsets whose page
// shows each line with T*.
func buildRealTextPDF(lines ...string) []byte {
	var sb strings.Builder
	sb.WriteString("BT\n/F1 12 Tf\n14 TL\n72 720 Td\n")
	for i, line := range lines {
		if i > 0 {
			sb.WriteString("T*\n")
		}
		sb.WriteString("(" + pdfEscape(line) + ") Tj\n")
	}
	sb.WriteString("ET")
	return buildStreamPDF(sb.String())
}

func pdfEscape(text string) string {
	escaped := strings.ReplaceAll(text, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, "(", `\(`)
	return strings.ReplaceAll(escaped, ")", `\)`)
}

// buildStreamPDF wraps a raw content stream in a one-page PDF.
func buildStreamPDF(stream string) []byte {
	streamLen := len(stream)

	var b strings.Builder
	b.WriteString("%PDF-1.4\n")

	offsets := make([]int, 6)

	offsets[1] = b.Len()
	b.WriteString("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")

	offsets[2] = b.Len()
	b.WriteString("2 0 obj\n<< /Type /Pages /Kids [3 0 R] /Count 1 >>\nendobj\n")

	offsets[3] = b.Len()
	b.WriteString("3 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R /Resources << /Font << /F1 5 0 R >> >> >>\nendobj\n")

	offsets[4] = b.Len()
	b.WriteString("4 0 obj\n<< /Length ")
	b.WriteString(pdfItoa(streamLen))
	b.WriteString(" >>\nstream\n")
	b.WriteString(stream)
	b.WriteString("\nendstream\nendobj\n")

	offsets[5] = b.Len()
	b.WriteString("5 0 obj\n<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>\nendobj\n")

	xrefOffset := b.Len()
	b.WriteString("xref\n0 6\n")
	b.WriteString("0000000000 65535 f \n")
	for i := 1; i <= 5; i++ {
		b.WriteString(pdfPadOffset(offsets[i]))
		b.WriteString(" 00000 n \n")
	}
	b.WriteString("trailer\n<< /Size 6 /Root 1 0 R >>\nstartxref\n")
	b.WriteString(pdfItoa(xrefOffset))
	b.WriteString("\n%%EOF\n")

	return []byte(b.String())
}

func pdfItoa(n int) string {
	if n == 0 {
		return "0"
	}
	s := ""
	for n > 0 {
		s = string(rune('0'+n%10)) + s
		n /= 10
	}
	return s
}

func pdfPadOffset(n int) string {
	s := pdfItoa(n)
	for len(s) < 10 {
		s = "0" + s
	}
	return s
}
