package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf16"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// pdfText extracts the text of a PDF. pdfcpu has no direct text extraction,
// so the page content streams are dumped to a temp directory and the
// text-show operators are scavenged out of them.
func pdfText(data []byte) (string, error) {
	tmp, err := os.CreateTemp("", "docchat-*.pdf")
	if err != nil {
		return "", fmt.Errorf("temp pdf: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("temp pdf: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("temp pdf: %w", err)
	}

	pdfCtx, err := api.ReadContextFile(tmp.Name())
	if err != nil {
		return "", fmt.Errorf("read pdf: %w", err)
	}
	pageCount := pdfCtx.PageCount

	outDir, err := os.MkdirTemp("", "docchat-pages-")
	if err != nil {
		return "", fmt.Errorf("temp dir: %w", err)
	}
	defer os.RemoveAll(outDir)

	conf := model.NewDefaultConfiguration()
	if err := api.ExtractContentFile(tmp.Name(), outDir, nil, conf); err != nil {
		return "", fmt.Errorf("extract pdf content: %w", err)
	}

	entries, err := os.ReadDir(outDir)
	if err != nil {
		return "", fmt.Errorf("read extracted pages: %w", err)
	}

	pageTexts := make(map[int]string, pageCount)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		n, ok := pageNumber(e.Name())
		if !ok {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(outDir, e.Name()))
		if err != nil {
			continue
		}
		pageTexts[n] = contentStreamText(raw)
	}

	var sb strings.Builder
	for p := 1; p <= pageCount; p++ {
		t := strings.TrimSpace(pageTexts[p])
		if t == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(t)
	}
	return normalizeWhitespace(sb.String()), nil
}

// pageNumber pulls the page index out of an extracted content filename,
// e.g. "whatever_Content_page_3.txt".
func pageNumber(name string) (int, bool) {
	i := strings.LastIndex(name, "page_")
	if i < 0 {
		return 0, false
	}
	var n int
	if _, err := fmt.Sscanf(name[i:], "page_%d", &n); err != nil {
		return 0, false
	}
	return n, true
}

// contentStreamText recovers the text shown by a decompressed page content
// stream. It collects the string operands of the text-show operators (Tj,
// TJ, ' and ") and breaks lines at the text-positioning operators. Strings
// in non-standard font encodings come out garbled or get dropped; that is
// the limit of content-level extraction.
func contentStreamText(stream []byte) string {
	var out strings.Builder
	var pending []string
	newline := false

	emit := func() {
		if len(pending) == 0 {
			return
		}
		if newline && out.Len() > 0 {
			out.WriteString("\n")
		}
		newline = false
		for _, s := range pending {
			out.WriteString(s)
		}
		pending = pending[:0]
	}

	i := 0
	for i < len(stream) {
		c := stream[i]
		switch {
		case isPDFSpace(c):
			i++
		case c == '%':
			for i < len(stream) && stream[i] != '\n' && stream[i] != '\r' {
				i++
			}
		case c == '(':
			s, next := parseLiteralString(stream, i)
			if mostlyPrintable(s) {
				pending = append(pending, s)
			}
			i = next
		case c == '<':
			if i+1 < len(stream) && stream[i+1] == '<' {
				i += 2
				continue
			}
			s, next := parseHexString(stream, i)
			if mostlyPrintable(s) {
				pending = append(pending, s)
			}
			i = next
		case c == '>':
			i++
			if i < len(stream) && stream[i] == '>' {
				i++
			}
		case c == '[' || c == ']' || c == '{' || c == '}':
			i++
		case c == '/':
			i++
			for i < len(stream) && isPDFRegular(stream[i]) {
				i++
			}
		default:
			start := i
			for i < len(stream) && isPDFRegular(stream[i]) {
				i++
			}
			if i == start {
				i++
				continue
			}
			switch string(stream[start:i]) {
			case "Tj", "TJ":
				emit()
			case "'", `"`:
				newline = true
				emit()
			case "Td", "TD", "T*", "Tm":
				newline = true
			case "BT", "ET":
				pending = pending[:0]
				newline = true
			}
		}
	}
	return out.String()
}

// parseLiteralString reads a PDF literal string starting at b[start] == '('
// and returns its decoded content plus the index past the closing paren.
func parseLiteralString(b []byte, start int) (string, int) {
	var sb strings.Builder
	depth := 1
	i := start + 1
	for i < len(b) {
		c := b[i]
		if c == '\\' {
			if i+1 >= len(b) {
				i++
				break
			}
			e := b[i+1]
			switch e {
			case 'n':
				sb.WriteByte('\n')
				i += 2
			case 'r':
				sb.WriteByte('\r')
				i += 2
			case 't':
				sb.WriteByte('\t')
				i += 2
			case 'b':
				sb.WriteByte('\b')
				i += 2
			case 'f':
				sb.WriteByte('\f')
				i += 2
			case '(', ')', '\\':
				sb.WriteByte(e)
				i += 2
			case '\r':
				i += 2
				if i < len(b) && b[i] == '\n' {
					i++
				}
			case '\n':
				i += 2
			default:
				if e >= '0' && e <= '7' {
					v := 0
					j := i + 1
					for j < len(b) && j < i+4 && b[j] >= '0' && b[j] <= '7' {
						v = v*8 + int(b[j]-'0')
						j++
					}
					sb.WriteByte(byte(v))
					i = j
				} else {
					sb.WriteByte(e)
					i += 2
				}
			}
			continue
		}
		if c == '(' {
			depth++
			sb.WriteByte(c)
			i++
			continue
		}
		if c == ')' {
			depth--
			if depth == 0 {
				i++
				return decodeTextString(sb.String()), i
			}
			sb.WriteByte(c)
			i++
			continue
		}
		sb.WriteByte(c)
		i++
	}
	return decodeTextString(sb.String()), i
}

// parseHexString reads a PDF hex string starting at b[start] == '<' and
// returns its decoded content plus the index past the closing '>'.
func parseHexString(b []byte, start int) (string, int) {
	var digits []byte
	i := start + 1
	for i < len(b) && b[i] != '>' {
		if isHexDigit(b[i]) {
			digits = append(digits, b[i])
		}
		i++
	}
	if i < len(b) {
		i++
	}
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}
	raw := make([]byte, 0, len(digits)/2)
	for j := 0; j+1 < len(digits); j += 2 {
		raw = append(raw, hexVal(digits[j])<<4|hexVal(digits[j+1]))
	}
	return decodeTextString(string(raw)), i
}

// decodeTextString handles the UTF-16BE form PDF text strings may take.
func decodeTextString(s string) string {
	b := []byte(s)
	if len(b) >= 2 && b[0] == 0xFE && b[1] == 0xFF {
		u := make([]uint16, 0, (len(b)-2)/2)
		for i := 2; i+1 < len(b); i += 2 {
			u = append(u, uint16(b[i])<<8|uint16(b[i+1]))
		}
		return string(utf16.Decode(u))
	}
	return s
}

func mostlyPrintable(s string) bool {
	if s == "" {
		return false
	}
	printable, total := 0, 0
	for _, r := range s {
		total++
		if unicode.IsPrint(r) || r == '\n' || r == '\t' {
			printable++
		}
	}
	return printable*10 >= total*8
}

func isPDFSpace(c byte) bool {
	switch c {
	case 0, '\t', '\n', '\f', '\r', ' ':
		return true
	}
	return false
}

func isPDFRegular(c byte) bool {
	if isPDFSpace(c) {
		return false
	}
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return false
	}
	return true
}

func isHexDigit(c byte) bool {
	return c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F'
}

func hexVal(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}
