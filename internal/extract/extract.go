// Package extract turns uploaded document bytes into plain text.
package extract

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/docchat/docchat/pkg/models"
)

// Supported document formats.
const (
	FormatPDF      = "pdf"
	FormatDocx     = "docx"
	FormatHTML     = "html"
	FormatMarkdown = "markdown"
	FormatText     = "text"
)

// DetectFormat maps a filename extension to a document format.
func DetectFormat(filename string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".pdf":
		return FormatPDF, nil
	case ".docx":
		return FormatDocx, nil
	case ".html", ".htm":
		return FormatHTML, nil
	case ".md", ".markdown":
		return FormatMarkdown, nil
	case ".txt", ".text":
		return FormatText, nil
	default:
		return "", fmt.Errorf("%w: %q", models.ErrUnsupportedFormat, ext)
	}
}

// Text extracts plain text from raw document bytes in the given format.
func Text(format string, data []byte) (string, error) {
	switch format {
	case FormatPDF:
		return pdfText(data)
	case FormatDocx:
		return docxText(data)
	case FormatHTML:
		return htmlText(data)
	case FormatMarkdown:
		return markdownText(data)
	case FormatText:
		return normalizeWhitespace(strings.ToValidUTF8(string(data), "")), nil
	default:
		return "", fmt.Errorf("%w: %q", models.ErrUnsupportedFormat, format)
	}
}

var (
	spaceRun = regexp.MustCompile(`[ \t]+`)
	blankRun = regexp.MustCompile(`\n{3,}`)
)

// normalizeWhitespace collapses runs of spaces and trims each line, keeping
// at most one blank line between paragraphs.
func normalizeWhitespace(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = spaceRun.ReplaceAllString(s, " ")

	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	s = strings.Join(lines, "\n")
	s = blankRun.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
