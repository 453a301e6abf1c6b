package docpipe

import (
	"errors"
	"fmt"

	"github.com/hazyhaar/larder/record"
)

// Format identifies a supported input file type.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
	FormatPDF  Format = "pdf"
	FormatMD   Format = "md"
	FormatHTML Format = "html"
)

// Kind is what a format yields: price lists or recipes.
type Kind string

const (
	KindPrices  Kind = "prices"
	KindRecipes Kind = "recipes"
)

// Kind returns the record kind produced by f.
func (f Format) Kind() Kind {
	switch f {
	case FormatMD, FormatHTML:
		return KindRecipes
	default:
		return KindPrices
	}
}

var (
	// ErrUnsupportedFormat is returned by Detect for unknown extensions.
	ErrUnsupportedFormat = errors.New("docpipe: unsupported format")

	// ErrNoContent marks a readable file of a known format that holds none
	// of the expected structure (no price rows, no recipes).
	ErrNoContent = errors.New("docpipe: no recognizable content")
)

// ParseError reports why a file of a supported format could not be turned
// into records. A ParseError never comes with a partial Batch.
type ParseError struct {
	Source string
	Format Format
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	msg := fmt.Sprintf("parse %s (%s): %s", e.Source, e.Format, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ParseError) Unwrap() error { return e.Err }

// Batch is the normalized output of one file.
type Batch struct {
	Source  string          `json:"source"`
	Format  Format          `json:"format"`
	Pages   int             `json:"pages,omitempty"` // PDF only
	Prices  []record.Price  `json:"prices,omitempty"`
	Recipes []record.Recipe `json:"recipes,omitempty"`
}

// Len returns the number of records in the batch.
func (b *Batch) Len() int { return len(b.Prices) + len(b.Recipes) }
