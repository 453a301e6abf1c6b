// Package warehouse is the flat-file record store: one JSON document holding
// every price, recipe and import, rewritten as a whole on each change.
//
// Readers are served from memory. Writers are serialized, and each rewrite
// goes to a temporary file that is synced and renamed over the previous
// document, so the file on disk is always a complete version.
package warehouse

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"github.com/hazyhaar/larder/idgen"
	"github.com/hazyhaar/larder/record"
)

// ErrNotFound is returned when a record or query path does not exist.
var ErrNotFound = errors.New("warehouse: not found")

const (
	formatVersion = "2.0"
	generatedBy   = "larder"
)

// Metadata heads the stored document.
type Metadata struct {
	Version     string    `json:"version"`
	GeneratedBy string    `json:"generated_by"`
	UpdatedAt   time.Time `json:"updated_at,omitzero"`
}

type document struct {
	Metadata Metadata                `json:"metadata"`
	Prices   map[string]record.Price `json:"prices"`
	Recipes  []record.Recipe         `json:"recipes"`
	Imports  []record.Import         `json:"imports"`
}

// Commit is everything one import adds to the store.
type Commit struct {
	Import  record.Import   `json:"import"`
	Recipes []record.Recipe `json:"recipes"`
	Prices  []record.Price  `json:"prices"`
}

// Stats summarizes the store content.
type Stats struct {
	Path      string    `json:"path"`
	Recipes   int       `json:"recipes"`
	Prices    int       `json:"prices"`
	Imports   int       `json:"imports"`
	Bytes     int       `json:"bytes"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store is the JSON flat-file store. It is safe for concurrent use within a
// single process.
type Store struct {
	mu     sync.RWMutex
	path   string
	doc    document
	raw    []byte
	logger *slog.Logger
	recID  idgen.Generator
	impID  idgen.Generator
	now    func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithIDGenerators overrides the recipe and import ID generators.
func WithIDGenerators(recipes, imports idgen.Generator) Option {
	return func(s *Store) {
		s.recID = recipes
		s.impID = imports
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open loads the document at path. A missing or empty file is an empty store;
// the file is created on the first write.
func Open(path string, opts ...Option) (*Store, error) {
	s := &Store{
		path:   path,
		logger: slog.Default(),
		recID:  idgen.Prefixed("rcp_", idgen.Default),
		impID:  idgen.Prefixed("imp_", idgen.Default),
		now:    time.Now,
	}
	for _, o := range opts {
		o(s)
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		s.doc = emptyDocument()
	case err != nil:
		return nil, fmt.Errorf("warehouse: read %s: %w", path, err)
	case len(bytes.TrimSpace(data)) == 0:
		s.doc = emptyDocument()
	default:
		doc, err := decodeDocument(data)
		if err != nil {
			return nil, fmt.Errorf("warehouse: decode %s: %w", path, err)
		}
		s.doc = doc
	}

	raw, err := encode(s.doc)
	if err != nil {
		return nil, err
	}
	s.raw = raw

	s.logger.Info("warehouse opened", "path", path,
		"recipes", len(s.doc.Recipes), "prices", len(s.doc.Prices), "imports", len(s.doc.Imports))
	return s, nil
}

// Path returns the document location.
func (s *Store) Path() string { return s.path }

// Append adds one import with its recipes and merges its prices, replacing
// earlier prices for the same ingredient. Missing IDs and timestamps are
// filled in. The stored commit is returned.
func (s *Store) Append(ctx context.Context, c Commit) (Commit, error) {
	if err := ctx.Err(); err != nil {
		return Commit{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	imp := c.Import
	if imp.ID == "" {
		imp.ID = s.impID()
	}
	if imp.CreatedAt.IsZero() {
		imp.CreatedAt = now
	}
	imp.Recipes = len(c.Recipes)
	imp.Prices = len(c.Prices)

	recipes := make([]record.Recipe, len(c.Recipes))
	for i, r := range c.Recipes {
		r = r.Clone()
		if r.ID == "" {
			r.ID = s.recID()
		}
		if r.CreatedAt.IsZero() {
			r.CreatedAt = now
		}
		r.ImportID = imp.ID
		recipes[i] = r
	}
	prices := make([]record.Price, len(c.Prices))
	for i, p := range c.Prices {
		if p.UpdatedAt.IsZero() {
			p.UpdatedAt = now
		}
		prices[i] = p
	}

	next := s.doc.shallowCopy()
	next.Recipes = append(next.Recipes, recipes...)
	next.Imports = append(next.Imports, imp)
	for _, p := range prices {
		next.Prices[p.ID] = p
	}
	next.Metadata.UpdatedAt = now

	if err := s.commit(next); err != nil {
		return Commit{}, err
	}
	s.logger.Info("import stored", "import_id", imp.ID, "file", imp.File,
		"recipes", len(recipes), "prices", len(prices))
	return Commit{Import: imp, Recipes: recipes, Prices: prices}, nil
}

// DeleteRecipe removes a recipe by ID.
func (s *Store) DeleteRecipe(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, r := range s.doc.Recipes {
		if r.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("recipe %q: %w", id, ErrNotFound)
	}

	next := s.doc.shallowCopy()
	next.Recipes = append(next.Recipes[:idx:idx], next.Recipes[idx+1:]...)
	next.Metadata.UpdatedAt = s.now().UTC()
	return s.commit(next)
}

// DeletePrice removes the price of an ingredient.
func (s *Store) DeletePrice(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.doc.Prices[id]; !ok {
		return fmt.Errorf("price %q: %w", id, ErrNotFound)
	}

	next := s.doc.shallowCopy()
	delete(next.Prices, id)
	next.Metadata.UpdatedAt = s.now().UTC()
	return s.commit(next)
}

// Recipes returns all recipes in import order.
func (s *Store) Recipes() []record.Recipe {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]record.Recipe, len(s.doc.Recipes))
	for i, r := range s.doc.Recipes {
		out[i] = r.Clone()
	}
	return out
}

// FindRecipes returns recipes whose name or ingredients contain q
// (case-insensitive). An empty q returns every recipe.
func (s *Store) FindRecipes(q string) []record.Recipe {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return s.Recipes()
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []record.Recipe
	for _, r := range s.doc.Recipes {
		if recipeMatches(r, q) {
			out = append(out, r.Clone())
		}
	}
	return out
}

func recipeMatches(r record.Recipe, q string) bool {
	if strings.Contains(strings.ToLower(r.Name), q) {
		return true
	}
	for _, ing := range r.Ingredients {
		if strings.Contains(ing.ID, q) || strings.Contains(strings.ToLower(ing.Name), q) {
			return true
		}
	}
	return false
}

// Recipe returns one recipe by ID.
func (s *Store) Recipe(id string) (record.Recipe, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.doc.Recipes {
		if r.ID == id {
			return r.Clone(), nil
		}
	}
	return record.Recipe{}, fmt.Errorf("recipe %q: %w", id, ErrNotFound)
}

// Prices returns all prices sorted by ingredient ID.
func (s *Store) Prices() []record.Price {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]record.Price, 0, len(s.doc.Prices))
	for _, p := range s.doc.Prices {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// PriceTable returns the per-kilogram price of every known ingredient.
func (s *Store) PriceTable() map[string]decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]decimal.Decimal, len(s.doc.Prices))
	for id, p := range s.doc.Prices {
		out[id] = p.PerKg
	}
	return out
}

// Imports returns every accepted import in upload order.
func (s *Store) Imports() []record.Import {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]record.Import(nil), s.doc.Imports...)
}

// Stats returns record counts and the document size.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{
		Path:      s.path,
		Recipes:   len(s.doc.Recipes),
		Prices:    len(s.doc.Prices),
		Imports:   len(s.doc.Imports),
		Bytes:     len(s.raw),
		UpdatedAt: s.doc.Metadata.UpdatedAt,
	}
}

// Query evaluates a gjson path against the stored document, e.g.
// "prices.tomate.price_per_kg" or "recipes.#.name". An empty path returns
// the whole document.
func (s *Store) Query(path string) (json.RawMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if strings.TrimSpace(path) == "" {
		return append(json.RawMessage(nil), s.raw...), nil
	}
	res := gjson.GetBytes(s.raw, path)
	if !res.Exists() {
		return nil, fmt.Errorf("path %q: %w", path, ErrNotFound)
	}
	return json.RawMessage(res.Raw), nil
}

// commit persists next and swaps it in. Callers hold s.mu.
func (s *Store) commit(next document) error {
	raw, err := encode(next)
	if err != nil {
		return err
	}
	if err := writeAndSwap(s.path, raw); err != nil {
		s.logger.Error("warehouse write failed", "path", s.path, "error", err)
		return err
	}
	s.doc = next
	s.raw = raw
	return nil
}

func emptyDocument() document {
	return document{
		Metadata: Metadata{Version: formatVersion, GeneratedBy: generatedBy},
		Prices:   map[string]record.Price{},
		Recipes:  []record.Recipe{},
		Imports:  []record.Import{},
	}
}

// shallowCopy copies the containers so appends and deletes on the copy do
// not touch the live document. Records themselves are values.
func (d document) shallowCopy() document {
	next := document{
		Metadata: d.Metadata,
		Prices:   make(map[string]record.Price, len(d.Prices)),
		Recipes:  append(make([]record.Recipe, 0, len(d.Recipes)+1), d.Recipes...),
		Imports:  append(make([]record.Import, 0, len(d.Imports)+1), d.Imports...),
	}
	for k, v := range d.Prices {
		next.Prices[k] = v
	}
	return next
}

func encode(doc document) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "    ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("warehouse: encode: %w", err)
	}
	return buf.Bytes(), nil
}

// writeAndSwap writes data to a temporary file next to path, syncs it and
// renames it over path.
func writeAndSwap(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("warehouse: mkdir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("warehouse: create tmp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("warehouse: write tmp file %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("warehouse: sync tmp file %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("warehouse: close tmp file %s: %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("warehouse: chmod tmp file %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("warehouse: replace %s: %w", path, err)
	}
	return nil
}

// legacyDocument accepts both the current layout and the older one where
// prices were bare numbers keyed by ingredient and recipes had no IDs.
type legacyDocument struct {
	Metadata Metadata                   `json:"metadata"`
	Prices   map[string]json.RawMessage `json:"prices"`
	Recipes  []record.Recipe            `json:"recipes"`
	Imports  []record.Import            `json:"imports"`
}

func decodeDocument(data []byte) (document, error) {
	var in legacyDocument
	if err := json.Unmarshal(data, &in); err != nil {
		return document{}, err
	}

	doc := emptyDocument()
	doc.Metadata.UpdatedAt = in.Metadata.UpdatedAt

	for id, raw := range in.Prices {
		p, err := decodePrice(id, raw)
		if err != nil {
			return document{}, fmt.Errorf("price %q: %w", id, err)
		}
		doc.Prices[id] = p
	}
	for i, r := range in.Recipes {
		if r.ID == "" {
			r.ID = legacyRecipeID(i, r.Name)
		}
		if r.Ingredients == nil {
			r.Ingredients = []record.Ingredient{}
		}
		doc.Recipes = append(doc.Recipes, r)
	}
	if in.Imports != nil {
		doc.Imports = in.Imports
	}
	return doc, nil
}

func decodePrice(id string, raw json.RawMessage) (record.Price, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '{' {
		var p record.Price
		if err := json.Unmarshal(raw, &p); err != nil {
			return record.Price{}, err
		}
		p.ID = id
		return p, nil
	}
	var d decimal.Decimal
	if err := json.Unmarshal(raw, &d); err != nil {
		return record.Price{}, err
	}
	return record.Price{ID: id, PerKg: d}, nil
}

// legacyRecipeID derives a stable ID for recipes stored without one, so the
// same document yields the same IDs on every load.
func legacyRecipeID(pos int, name string) string {
	u := uuid.NewSHA1(uuid.NameSpaceOID, fmt.Appendf(nil, "%d:%s", pos, name))
	return "rcp_" + u.String()
}
