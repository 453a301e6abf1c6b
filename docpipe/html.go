package docpipe

import (
	"bytes"
	"fmt"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"

	"github.com/hazyhaar/larder/normalize"
	"github.com/hazyhaar/larder/record"
)

// htmlPolicy keeps document structure (headings, lists, tables) and drops
// scripts, styles and attributes.
var htmlPolicy = bluemonday.UGCPolicy()

// parseHTML sanitizes a recipe page, converts it to Markdown and reads it
// with the Markdown reader. A page without H1 uses its <title>.
func parseHTML(data []byte, cat *normalize.Catalog, source string) ([]record.Recipe, error) {
	title := htmlTitle(data)
	clean := htmlPolicy.SanitizeBytes(data)

	md, err := htmltomarkdown.ConvertString(string(clean))
	if err != nil {
		return nil, fmt.Errorf("html to markdown: %w", err)
	}

	recipes := markdownRecipes([]byte(md), cat, source)
	if len(recipes) == 0 && title != "" {
		recipes = markdownRecipes([]byte("# "+title+"\n\n"+md), cat, source)
	}
	if len(recipes) == 0 {
		return nil, noContent(source, FormatHTML, "no recipes found")
	}
	return recipes, nil
}

// htmlTitle returns the text of the first <title> element.
func htmlTitle(data []byte) string {
	z := html.NewTokenizer(bytes.NewReader(data))
	inTitle := false
	for {
		switch z.Next() {
		case html.ErrorToken:
			return ""
		case html.StartTagToken:
			name, _ := z.TagName()
			inTitle = string(name) == "title"
		case html.EndTagToken:
			name, _ := z.TagName()
			if string(name) == "title" {
				return ""
			}
		case html.TextToken:
			if inTitle {
				return strings.Join(strings.Fields(string(z.Text())), " ")
			}
		}
	}
}
