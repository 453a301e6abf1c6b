// Package record defines the normalized entities larder stores: recipes with
// their ingredients, per-kilogram prices, and the import that produced them.
package record

import (
	"time"

	"github.com/shopspring/decimal"
)

// Ingredient is one line of a recipe, mapped to a canonical ingredient ID.
type Ingredient struct {
	ID   string  `json:"id"`   // canonical ingredient id, e.g. "asado_de_tira"
	Name string  `json:"name"` // label as written in the source
	QtyG float64 `json:"qty_g"`
}

// Recipe is a named list of ingredients.
type Recipe struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Ingredients []Ingredient `json:"ingredients"`
	Source      string       `json:"source,omitempty"`
	ImportID    string       `json:"import_id,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}

// Price is the latest known price per kilogram for a canonical ingredient.
type Price struct {
	ID        string          `json:"id"`
	Label     string          `json:"label,omitempty"`
	PerKg     decimal.Decimal `json:"price_per_kg"`
	Source    string          `json:"source,omitempty"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Import records one accepted upload.
type Import struct {
	ID        string    `json:"id"`
	File      string    `json:"file"`
	Format    string    `json:"format"`
	SHA256    string    `json:"sha256,omitempty"`
	SizeBytes int64     `json:"size_bytes"`
	Recipes   int       `json:"recipes"`
	Prices    int       `json:"prices"`
	CreatedAt time.Time `json:"created_at"`
}

// Clone returns a deep copy of the recipe.
func (r Recipe) Clone() Recipe {
	if r.Ingredients != nil {
		r.Ingredients = append([]Ingredient(nil), r.Ingredients...)
	}
	return r
}
