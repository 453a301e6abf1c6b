// Package ingest runs uploads through detection, parsing and storage, and
// journals every attempt.
package ingest

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hazyhaar/larder/docpipe"
	"github.com/hazyhaar/larder/journal"
	"github.com/hazyhaar/larder/kit"
	"github.com/hazyhaar/larder/record"
	"github.com/hazyhaar/larder/safeio"
	"github.com/hazyhaar/larder/warehouse"
)

// ErrTooLarge is returned when an upload exceeds MaxFileBytes.
var ErrTooLarge = safeio.ErrTooLarge

// Config holds ingest settings.
type Config struct {
	// InputDir is the ETL input directory; kept uploads go to InputDir/uploads.
	InputDir string
	// MaxFileBytes caps a single upload.
	MaxFileBytes int64
	// KeepUploads stores a copy of every accepted upload.
	KeepUploads bool
}

func (c *Config) defaults() {
	if c.MaxFileBytes <= 0 {
		c.MaxFileBytes = 20 << 20
	}
	if c.InputDir == "" {
		c.InputDir = "inputs"
	}
}

// Result describes an accepted upload.
type Result struct {
	Import    record.Import   `json:"import"`
	Recipes   []record.Recipe `json:"recipes"`
	Prices    []record.Price  `json:"prices"`
	Duplicate bool            `json:"duplicate,omitempty"`
}

// Ingester is the upload pipeline orchestrator.
type Ingester struct {
	pipe    *docpipe.Pipeline
	store   *warehouse.Store
	journal *journal.Journal
	cfg     Config
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures an Ingester.
type Option func(*Ingester)

// WithJournal records every attempt in j.
func WithJournal(j *journal.Journal) Option {
	return func(ing *Ingester) { ing.journal = j }
}

// WithLogger sets the ingester logger.
func WithLogger(l *slog.Logger) Option {
	return func(ing *Ingester) { ing.logger = l }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(ing *Ingester) { ing.now = now }
}

// New creates an ingester writing to store.
func New(pipe *docpipe.Pipeline, store *warehouse.Store, cfg Config, opts ...Option) *Ingester {
	cfg.defaults()
	ing := &Ingester{
		pipe:   pipe,
		store:  store,
		cfg:    cfg,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, o := range opts {
		o(ing)
	}
	return ing
}

// Pipeline returns the parser used by the ingester.
func (ing *Ingester) Pipeline() *docpipe.Pipeline { return ing.pipe }

// Store returns the record store.
func (ing *Ingester) Store() *warehouse.Store { return ing.store }

// Ingest runs the full pipeline for a single upload:
//  1. detect the format from the file name (unsupported: rejected untouched)
//  2. read at most MaxFileBytes while hashing
//  3. check the content matches the extension, then parse
//  4. keep a copy of the upload when configured
//  5. append one import to the store
//
// The store is only written in step 5, so every failure leaves it unchanged.
func (ing *Ingester) Ingest(ctx context.Context, filename string, r io.Reader) (*Result, error) {
	start := ing.now()
	name := safeio.CleanFilename(filename)
	entry := journal.Entry{
		RequestID: kit.GetRequestID(ctx),
		Transport: kit.GetTransport(ctx),
		File:      name,
		Status:    journal.StatusRejected,
	}

	res, err := ing.ingest(ctx, name, r, &entry)

	entry.DurationMs = ing.now().Sub(start).Milliseconds()
	if err != nil {
		entry.Reason = err.Error()
		ing.logger.WarnContext(ctx, "upload rejected", "file", name, "format", entry.Format, "error", err)
	} else {
		entry.Status = journal.StatusAccepted
		entry.ImportID = res.Import.ID
		entry.Recipes = len(res.Recipes)
		entry.Prices = len(res.Prices)
		ing.logger.InfoContext(ctx, "upload accepted", "file", name, "format", entry.Format,
			"import_id", res.Import.ID, "recipes", entry.Recipes, "prices", entry.Prices,
			"duplicate", res.Duplicate)
	}
	ing.record(ctx, entry)
	return res, err
}

func (ing *Ingester) ingest(ctx context.Context, name string, r io.Reader, entry *journal.Entry) (*Result, error) {
	format, err := ing.pipe.Detect(name)
	if err != nil {
		return nil, err
	}
	entry.Format = string(format)

	data, err := safeio.LimitedReadAll(r, ing.cfg.MaxFileBytes)
	if err != nil {
		if errors.Is(err, safeio.ErrTooLarge) {
			return nil, fmt.Errorf("%w: max %d MB", ErrTooLarge, ing.cfg.MaxFileBytes>>20)
		}
		return nil, fmt.Errorf("read upload: %w", err)
	}
	sum := sha256.Sum256(data)
	entry.SHA256 = hex.EncodeToString(sum[:])
	entry.SizeBytes = int64(len(data))

	if len(data) > 0 {
		if err := checkMagic(name, format, data); err != nil {
			return nil, err
		}
	}

	batch, err := ing.pipe.Parse(ctx, name, data)
	if err != nil {
		return nil, err
	}

	duplicate := ing.seen(ctx, entry.SHA256)

	if ing.cfg.KeepUploads {
		if path, err := ing.keep(name, entry.SHA256, data); err != nil {
			ing.logger.WarnContext(ctx, "keep upload failed", "file", name, "error", err)
		} else {
			ing.logger.DebugContext(ctx, "upload kept", "path", path)
		}
	}

	stored, err := ing.store.Append(ctx, warehouse.Commit{
		Import: record.Import{
			File:      name,
			Format:    string(format),
			SHA256:    entry.SHA256,
			SizeBytes: entry.SizeBytes,
		},
		Recipes: batch.Recipes,
		Prices:  batch.Prices,
	})
	if err != nil {
		return nil, fmt.Errorf("store import: %w", err)
	}

	return &Result{
		Import:    stored.Import,
		Recipes:   stored.Recipes,
		Prices:    stored.Prices,
		Duplicate: duplicate,
	}, nil
}

// IngestFile ingests a file from disk.
func (ing *Ingester) IngestFile(ctx context.Context, path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return ing.Ingest(ctx, filepath.Base(path), f)
}

// UploadsDir is where kept uploads are written.
func (ing *Ingester) UploadsDir() string {
	return filepath.Join(ing.cfg.InputDir, "uploads")
}

// keep writes a copy of an accepted upload as
// <uploads>/<timestamp>-<sha8>-<name>.
func (ing *Ingester) keep(name, sum string, data []byte) (string, error) {
	dir := ing.UploadsDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	stamp := ing.now().UTC().Format("20060102T150405")
	path, err := safeio.SafePath(dir, stamp+"-"+sum[:8]+"-"+name)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func (ing *Ingester) seen(ctx context.Context, sum string) bool {
	if ing.journal == nil {
		return false
	}
	ok, err := ing.journal.SeenSHA256(ctx, sum)
	if err != nil {
		ing.logger.WarnContext(ctx, "journal lookup failed", "error", err)
		return false
	}
	return ok
}

func (ing *Ingester) record(ctx context.Context, e journal.Entry) {
	if ing.journal == nil {
		return
	}
	if _, err := ing.journal.Record(ctx, e); err != nil {
		ing.logger.ErrorContext(ctx, "journal write failed", "file", e.File, "error", err)
	}
}

// FileOutcome is the result of one file in a directory run.
type FileOutcome struct {
	File     string `json:"file"`
	ImportID string `json:"import_id,omitempty"`
	Recipes  int    `json:"recipes"`
	Prices   int    `json:"prices"`
	Error    string `json:"error,omitempty"`
}

// RunReport summarizes a directory run.
type RunReport struct {
	Dir      string        `json:"dir"`
	Accepted int           `json:"accepted"`
	Failed   int           `json:"failed"`
	Skipped  []string      `json:"skipped,omitempty"`
	Files    []FileOutcome `json:"files"`
}

// Filter selects which directory entries RunDirFunc ingests.
type Filter func(name string, info fs.FileInfo) bool

// RunDir ingests every supported file directly under dir, in name order.
// A failing file is reported and the run continues. Hidden files,
// subdirectories and unsupported extensions are skipped.
func (ing *Ingester) RunDir(ctx context.Context, dir string) (*RunReport, error) {
	return ing.RunDirFunc(ctx, dir, nil)
}

// RunDirFunc is RunDir restricted to the supported files accepted by keep.
// A nil keep accepts everything.
func (ing *Ingester) RunDirFunc(ctx context.Context, dir string, keep Filter) (*RunReport, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}

	report := &RunReport{Dir: dir, Files: []FileOutcome{}}
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		if _, err := ing.pipe.Detect(name); err != nil {
			report.Skipped = append(report.Skipped, name)
			continue
		}
		if keep != nil {
			info, err := e.Info()
			if err != nil || !keep(name, info) {
				continue
			}
		}

		out := FileOutcome{File: name}
		res, err := ing.IngestFile(ctx, filepath.Join(dir, name))
		if err != nil {
			out.Error = err.Error()
			report.Failed++
		} else {
			out.ImportID = res.Import.ID
			out.Recipes = len(res.Recipes)
			out.Prices = len(res.Prices)
			report.Accepted++
		}
		report.Files = append(report.Files, out)
	}

	ing.logger.InfoContext(ctx, "directory ingested", "dir", dir,
		"accepted", report.Accepted, "failed", report.Failed, "skipped", len(report.Skipped))
	return report, nil
}

// Summary renders the report as a short human-readable text.
func (r *RunReport) Summary() string {
	var b bytes.Buffer
	fmt.Fprintf(&b, "%s: %d accepted, %d failed, %d skipped\n", r.Dir, r.Accepted, r.Failed, len(r.Skipped))
	for _, f := range r.Files {
		if f.Error != "" {
			fmt.Fprintf(&b, "  FAIL %s: %s\n", f.File, f.Error)
			continue
		}
		fmt.Fprintf(&b, "  ok   %s (%d recipes, %d prices)\n", f.File, f.Recipes, f.Prices)
	}
	return b.String()
}
