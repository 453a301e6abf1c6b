// Package docpipe reads supplier price lists and recipe documents and
// normalizes them into record batches.
//
// Supported formats:
//   - .xlsx .xlsm  price list spreadsheet (excelize)
//   - .csv         price list exported as delimited text
//   - .pdf         price list, one "<product> $ <price>" per line (pdfcpu)
//   - .md          recipes, one H1 per recipe (goldmark)
//   - .html .htm   recipes, sanitized and converted to Markdown
//
// Usage:
//
//	pipe := docpipe.New(docpipe.Config{})
//	batch, err := pipe.ParseFile(ctx, "/path/to/Lista de precios.pdf")
//	fmt.Println(len(batch.Prices), "prices")
package docpipe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/hazyhaar/larder/normalize"
	"github.com/hazyhaar/larder/safeio"
)

// Pipeline is the document parsing engine. It is safe for concurrent use.
type Pipeline struct {
	cfg     Config
	catalog *normalize.Catalog
	logger  *slog.Logger
}

// New creates a Pipeline with the given configuration.
func New(cfg Config) *Pipeline {
	cfg.defaults()
	return &Pipeline{
		cfg:     cfg,
		catalog: cfg.Catalog,
		logger:  cfg.Logger,
	}
}

// Catalog returns the ingredient catalog used for normalization.
func (p *Pipeline) Catalog() *normalize.Catalog { return p.catalog }

// Detect returns the document format based on file extension.
func (p *Pipeline) Detect(name string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	case ".csv":
		return FormatCSV, nil
	case ".pdf":
		return FormatPDF, nil
	case ".md", ".markdown":
		return FormatMD, nil
	case ".html", ".htm":
		return FormatHTML, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

// Parse normalizes the content of one file. name is only used for format
// detection and as the Source of the produced records.
func (p *Pipeline) Parse(ctx context.Context, name string, data []byte) (*Batch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	format, err := p.Detect(name)
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > p.cfg.MaxFileSize {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", safeio.ErrTooLarge, len(data), p.cfg.MaxFileSize)
	}

	source := filepath.Base(name)
	if len(data) == 0 {
		return nil, &ParseError{Source: source, Format: format, Reason: "empty file", Err: ErrNoContent}
	}

	p.logger.Debug("parsing document", "source", source, "format", format, "bytes", len(data))

	batch := &Batch{Source: source, Format: format}
	switch format {
	case FormatXLSX:
		batch.Prices, err = parseXLSX(data, p.catalog, source)
	case FormatCSV:
		batch.Prices, err = parseCSV(data, p.catalog, source)
	case FormatPDF:
		batch.Prices, batch.Pages, err = parsePDF(data, p.catalog, source)
	case FormatMD:
		batch.Recipes, err = parseMarkdown(data, p.catalog, source)
	case FormatHTML:
		batch.Recipes, err = parseHTML(data, p.catalog, source)
	}
	if err != nil {
		var pe *ParseError
		if !errors.As(err, &pe) {
			err = &ParseError{Source: source, Format: format, Reason: "unreadable file", Err: err}
		}
		return nil, err
	}

	p.logger.Debug("document parsed", "source", source, "format", format,
		"prices", len(batch.Prices), "recipes", len(batch.Recipes))
	return batch, nil
}

// ParseFile reads and parses a file from disk.
func (p *Pipeline) ParseFile(ctx context.Context, path string) (*Batch, error) {
	if _, err := p.Detect(path); err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.Size() > p.cfg.MaxFileSize {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", safeio.ErrTooLarge, info.Size(), p.cfg.MaxFileSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return p.Parse(ctx, path, data)
}

// SupportedFormats returns all supported format extensions.
func SupportedFormats() []string {
	return []string{"xlsx", "xlsm", "csv", "pdf", "md", "markdown", "html", "htm"}
}

func noContent(source string, format Format, reason string) error {
	return &ParseError{Source: source, Format: format, Reason: reason, Err: ErrNoContent}
}
