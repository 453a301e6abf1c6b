package ingest

import (
	"bytes"

	"github.com/hazyhaar/larder/docpipe"
)

// sniffHeader is how many leading bytes are inspected.
const sniffHeader = 1024

// identifyMagic names the container a file really is, from its first bytes.
func identifyMagic(data []byte) string {
	header := data
	if len(header) > sniffHeader {
		header = header[:sniffHeader]
	}
	switch {
	case len(header) >= 4 && header[0] == 'P' && header[1] == 'K' && header[2] == 3 && header[3] == 4:
		return "zip"
	case isPDFHeader(header):
		return "pdf"
	case len(header) >= 4 && header[0] == 0xd0 && header[1] == 0xcf && header[2] == 0x11 && header[3] == 0xe0:
		return "ole2"
	case len(header) >= 4 && header[0] == 0x7f && string(header[1:4]) == "ELF",
		len(header) >= 2 && header[0] == 'M' && header[1] == 'Z':
		return "executable"
	case len(header) >= 3 && header[0] == 0xff && header[1] == 0xd8 && header[2] == 0xff,
		len(header) >= 4 && header[0] == 0x89 && string(header[1:4]) == "PNG":
		return "image"
	case bytes.IndexByte(header, 0) >= 0:
		return "binary"
	default:
		return "text"
	}
}

// isPDFHeader reports whether the PDF marker opens the data, allowing only a
// BOM and blank lines in front of it.
func isPDFHeader(header []byte) bool {
	header = bytes.TrimPrefix(header, []byte("\xef\xbb\xbf"))
	return bytes.HasPrefix(bytes.TrimLeft(header, " \t\r\n"), []byte("%PDF-"))
}

// checkMagic rejects files whose content contradicts their extension, e.g.
// a renamed legacy .xls workbook or an image saved as .pdf.
func checkMagic(name string, format docpipe.Format, data []byte) error {
	magic := identifyMagic(data)
	var want string
	switch format {
	case docpipe.FormatXLSX:
		want = "zip"
	case docpipe.FormatPDF:
		want = "pdf"
	default:
		want = "text"
	}
	if magic == want {
		return nil
	}
	return &docpipe.ParseError{
		Source: name,
		Format: format,
		Reason: "content is " + magic + ", not " + string(format),
	}
}
