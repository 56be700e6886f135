package extract

import (
	"bytes"
	"fmt"

	"github.com/PuerkitoBio/goquery"
)

// htmlText extracts the readable text of an HTML document. Script, style and
// chrome elements are dropped before taking the text content.
func htmlText(data []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	doc.Find("script, style, noscript, nav, footer, aside").Remove()

	// Block elements get a trailing newline so paragraphs stay separated
	// once the text content is flattened.
	doc.Find("br").AfterHtml("\n")
	doc.Find("p, h1, h2, h3, h4, h5, h6, li, div, blockquote, pre").
		AppendHtml("\n")

	body := doc.Find("body")
	text := body.Text()
	if body.Length() == 0 {
		text = doc.Text()
	}
	return normalizeWhitespace(text), nil
}
