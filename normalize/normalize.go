// Package normalize maps free-text ingredient labels found in price lists and
// recipes onto canonical ingredient IDs.
//
// Lookup is exact first. Otherwise the longest alias that appears in the text
// as whole words wins, so "pechuga de pollo" resolves to "pechuga" and
// "coliflor" does not resolve to "brocoli" through the "coli" alias.
// Matching ignores case and diacritics ("Morrón" == "morron").
package normalize

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

// Alias maps one spelling onto a canonical ID.
type Alias struct {
	Text string
	ID   string
}

// Catalog is an immutable alias table. Safe for concurrent use.
type Catalog struct {
	exact map[string]string
	byLen []Alias // folded aliases, longest first, ties in declaration order
	idSet map[string]struct{}
}

// New builds a Catalog from aliases. Later duplicates override earlier ones.
func New(aliases []Alias) *Catalog {
	c := &Catalog{
		exact: make(map[string]string, len(aliases)),
		idSet: make(map[string]struct{}),
	}
	order := make([]string, 0, len(aliases))
	for _, a := range aliases {
		key := fold(a.Text)
		if key == "" || a.ID == "" {
			continue
		}
		if _, seen := c.exact[key]; !seen {
			order = append(order, key)
		}
		c.exact[key] = a.ID
		c.idSet[a.ID] = struct{}{}
	}
	for _, k := range order {
		c.byLen = append(c.byLen, Alias{Text: k, ID: c.exact[k]})
	}
	sort.SliceStable(c.byLen, func(i, j int) bool {
		return len(c.byLen[i].Text) > len(c.byLen[j].Text)
	})
	return c
}

// Default returns the built-in catalog (vegetables, meats, fish).
func Default() *Catalog {
	return New(builtin)
}

// With returns a new Catalog containing c's aliases followed by extra ones.
func (c *Catalog) With(extra []Alias) *Catalog {
	all := make([]Alias, 0, len(c.byLen)+len(extra))
	all = append(all, c.aliasesInOrder()...)
	all = append(all, extra...)
	return New(all)
}

// Lookup returns the canonical ID for text.
func (c *Catalog) Lookup(text string) (string, bool) {
	key := fold(text)
	if key == "" {
		return "", false
	}
	if id, ok := c.exact[key]; ok {
		return id, true
	}
	for _, a := range c.byLen {
		if containsWord(key, a.Text) {
			return a.ID, true
		}
	}
	return "", false
}

// IDs returns every canonical ID, sorted.
func (c *Catalog) IDs() []string {
	ids := make([]string, 0, len(c.idSet))
	for id := range c.idSet {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of distinct aliases.
func (c *Catalog) Len() int { return len(c.exact) }

func (c *Catalog) aliasesInOrder() []Alias {
	return append([]Alias(nil), c.byLen...)
}

type aliasFile struct {
	Aliases map[string]string `yaml:"aliases"`
}

// LoadAliases reads a YAML file of the form
//
//	aliases:
//	  "nalga": nalga
//	  "peceto": peceto
//
// Map order is not significant: aliases are sorted by text for stability.
func LoadAliases(path string) ([]Alias, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read aliases %s: %w", path, err)
	}
	var f aliasFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse aliases %s: %w", path, err)
	}
	keys := make([]string, 0, len(f.Aliases))
	for k := range f.Aliases {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]Alias, 0, len(keys))
	for _, k := range keys {
		id := strings.TrimSpace(f.Aliases[k])
		if id == "" {
			return nil, fmt.Errorf("parse aliases %s: empty id for %q", path, k)
		}
		out = append(out, Alias{Text: k, ID: id})
	}
	return out, nil
}

// fold lowercases, strips diacritics and collapses whitespace.
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.Join(strings.Fields(strings.ToLower(out)), " ")
}

// containsWord reports whether word occurs in s delimited by non-letters.
func containsWord(s, word string) bool {
	for start := 0; start < len(s); {
		i := strings.Index(s[start:], word)
		if i < 0 {
			return false
		}
		i += start
		end := i + len(word)
		if boundaryBefore(s, i) && boundaryAfter(s, end) {
			return true
		}
		start = i + 1
	}
	return false
}

func boundaryBefore(s string, i int) bool {
	if i == 0 {
		return true
	}
	r := lastRune(s[:i])
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

func boundaryAfter(s string, i int) bool {
	if i >= len(s) {
		return true
	}
	r := []rune(s[i:])[0]
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

func lastRune(s string) rune {
	r := []rune(s)
	return r[len(r)-1]
}
