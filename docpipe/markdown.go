package docpipe

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/hazyhaar/larder/normalize"
	"github.com/hazyhaar/larder/record"
)

// skipTitleMarker marks H1 sections that are shopping lists, not recipes.
const skipTitleMarker = "Lista"

// parseMarkdown reads one recipe per H1 section.
func parseMarkdown(src []byte, cat *normalize.Catalog, source string) ([]record.Recipe, error) {
	recipes := markdownRecipes(src, cat, source)
	if len(recipes) == 0 {
		return nil, noContent(source, FormatMD, "no recipes found")
	}
	return recipes, nil
}

func markdownRecipes(src []byte, cat *normalize.Catalog, source string) []record.Recipe {
	doc := goldmark.New().Parser().Parse(text.NewReader(src))

	var (
		recipes []record.Recipe
		cur     *record.Recipe
	)
	flush := func() {
		if cur != nil && len(cur.Ingredients) > 0 {
			recipes = append(recipes, *cur)
		}
		cur = nil
	}
	addLines := func(n ast.Node) {
		if cur == nil {
			return
		}
		for _, line := range blockLines(n, src) {
			if ing, ok := parseIngredientLine(line, cat); ok {
				cur.Ingredients = append(cur.Ingredients, ing)
			}
		}
	}

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Heading:
			if node.Level == 1 {
				flush()
				title := cleanProduct(strings.Join(blockLines(node, src), " "))
				if title != "" && !strings.Contains(title, skipTitleMarker) {
					cur = &record.Recipe{Name: title, Source: source}
				}
				return ast.WalkSkipChildren, nil
			}
			addLines(node)
			return ast.WalkSkipChildren, nil
		case *ast.Paragraph, *ast.TextBlock:
			addLines(node)
			return ast.WalkSkipChildren, nil
		case *ast.FencedCodeBlock, *ast.CodeBlock, *ast.HTMLBlock:
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	flush()
	return recipes
}

// blockLines returns the trimmed source lines of a leaf block.
func blockLines(n ast.Node, src []byte) []string {
	segs := n.Lines()
	out := make([]string, 0, segs.Len())
	for i := 0; i < segs.Len(); i++ {
		seg := segs.At(i)
		if line := strings.TrimSpace(string(seg.Value(src))); line != "" {
			out = append(out, line)
		}
	}
	return out
}
