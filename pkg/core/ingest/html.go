package ingest

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// extractHTML returns the visible text of the body, one block element per line.
func extractHTML(content []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	// Remove script, style and hidden elements
	doc.Find("script, style, noscript").Remove()
	doc.Find("[hidden], [style*='display:none'], [style*='display: none']").Remove()

	var lines []string
	doc.Find("h1, h2, h3, h4, h5, h6, p, li, tr").Each(func(i int, sel *goquery.Selection) {
		if goquery.NodeName(sel) == "tr" {
			var cells []string
			sel.Find("th, td").Each(func(_ int, c *goquery.Selection) {
				cells = append(cells, strings.Join(strings.Fields(c.Text()), " "))
			})
			lines = append(lines, strings.Join(cells, " | "))
			return
		}
		// Paragraphs nested in list items or cells are already covered by their parent.
		if sel.ParentsFiltered("li, td, th").Length() > 0 {
			return
		}
		if text := strings.Join(strings.Fields(sel.Text()), " "); text != "" {
			lines = append(lines, text)
		}
	})

	if len(lines) == 0 {
		return strings.Join(strings.Fields(doc.Find("body").Text()), " "), nil
	}
	return strings.Join(lines, "\n"), nil
}
