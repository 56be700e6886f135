package extract

import (
	"archive/zip"
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/docchat/docchat/pkg/models"
)

// Test DetectFormat extension mapping
func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name        string
		filename    string
		expected    string
		expectError bool
	}{
		{"pdf", "report.pdf", FormatPDF, false},
		{"pdf uppercase", "REPORT.PDF", FormatPDF, false},
		{"docx", "notes.docx", FormatDocx, false},
		{"html", "page.html", FormatHTML, false},
		{"htm", "page.htm", FormatHTML, false},
		{"markdown md", "readme.md", FormatMarkdown, false},
		{"markdown long", "readme.markdown", FormatMarkdown, false},
		{"text txt", "plain.txt", FormatText, false},
		{"text long", "plain.text", FormatText, false},
		{"nested path", "/some/dir/report.pdf", FormatPDF, false},
		{"unsupported extension", "sheet.xlsx", "", true},
		{"no extension", "README", "", true},
		{"dotfile", ".gitignore", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			format, err := DetectFormat(tt.filename)

			if tt.expectError {
				if err == nil {
					t.Error("Expected error but got none")
				}
				if !errors.Is(err, models.ErrUnsupportedFormat) {
					t.Errorf("Expected ErrUnsupportedFormat, got: %v", err)
				}
			} else {
				if err != nil {
					t.Errorf("Expected no error, got: %v", err)
				}
				if format != tt.expected {
					t.Errorf("Expected format '%s', got '%s'", tt.expected, format)
				}
			}
		})
	}
}

// Test Text dispatch with an unknown format
func TestText_UnsupportedFormat(t *testing.T) {
	_, err := Text("xlsx", []byte("data"))
	if err == nil {
		t.Error("Expected error for unsupported format")
	}
	if !errors.Is(err, models.ErrUnsupportedFormat) {
		t.Errorf("Expected ErrUnsupportedFormat, got: %v", err)
	}
}

// Test plain text normalization
func TestText_Plain(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"simple", "hello world", "hello world"},
		{"crlf and space runs", "a  b\r\nc\n\n\n\nd", "a b\nc\n\nd"},
		{"leading and trailing space", "  text  \n", "text"},
		{"tabs collapsed", "col1\t\tcol2", "col1 col2"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Text(FormatText, []byte(tt.input))
			if err != nil {
				t.Fatalf("Expected no error, got: %v", err)
			}
			if got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}

// Test HTML text extraction
func TestText_HTML(t *testing.T) {
	html := `<html><head><title>T</title><style>body{color:red}</style>` +
		`<script>var tracker = 1;</script></head>` +
		`<body><nav>Menu entries</nav><h1>Title</h1>` +
		`<p>First para.</p><p>Second para.</p>` +
		`<footer>Footer text</footer></body></html>`

	got, err := Text(FormatHTML, []byte(html))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	expected := "Title\nFirst para.\nSecond para."
	if got != expected {
		t.Errorf("Expected %q, got %q", expected, got)
	}
}

func TestText_HTMLStripsChrome(t *testing.T) {
	html := `<body><aside>Sidebar</aside><p>Real content here.</p>` +
		`<script>alert("x")</script></body>`

	got, err := Text(FormatHTML, []byte(html))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if !strings.Contains(got, "Real content here.") {
		t.Errorf("Expected content to survive, got %q", got)
	}
	for _, dropped := range []string{"Sidebar", "alert"} {
		if strings.Contains(got, dropped) {
			t.Errorf("Expected %q to be stripped, got %q", dropped, got)
		}
	}
}

func TestText_HTMLLineBreaks(t *testing.T) {
	html := `<body><p>line one<br>line two</p></body>`

	got, err := Text(FormatHTML, []byte(html))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if got != "line one\nline two" {
		t.Errorf("Expected br to break the line, got %q", got)
	}
}

// Test markdown text extraction
func TestText_Markdown(t *testing.T) {
	md := "# Title\n\nFirst *paragraph* with [link](https://example.com/page) text.\n\n" +
		"- item one\n- item two\n\n```\ncode line\n```\n"

	got, err := Text(FormatMarkdown, []byte(md))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	for _, want := range []string{
		"Title",
		"First paragraph with link text.",
		"item one",
		"item two",
		"code line",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("Expected output to contain %q, got %q", want, got)
		}
	}
	for _, markup := range []string{"#", "*", "](", "https://example.com"} {
		if strings.Contains(got, markup) {
			t.Errorf("Expected markup %q to be stripped, got %q", markup, got)
		}
	}
}

func TestText_MarkdownEmpty(t *testing.T) {
	got, err := Text(FormatMarkdown, []byte(""))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if got != "" {
		t.Errorf("Expected empty output, got %q", got)
	}
}

// createTestDocx builds a minimal docx archive in memory.
func createTestDocx(t *testing.T, documentXML string) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	w := zip.NewWriter(buf)

	contentTypes, err := w.Create("[Content_Types].xml")
	if err != nil {
		t.Fatalf("Failed to create content types entry: %v", err)
	}
	if _, err := contentTypes.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="xml" ContentType="application/xml"/>
</Types>`)); err != nil {
		t.Fatalf("Failed to write content types: %v", err)
	}

	if documentXML != "" {
		doc, err := w.Create("word/document.xml")
		if err != nil {
			t.Fatalf("Failed to create document entry: %v", err)
		}
		if _, err := doc.Write([]byte(documentXML)); err != nil {
			t.Fatalf("Failed to write document xml: %v", err)
		}
	}

	if err := w.Close(); err != nil {
		t.Fatalf("Failed to close zip writer: %v", err)
	}
	return buf.Bytes()
}

// Test docx text extraction
func TestText_Docx(t *testing.T) {
	tests := []struct {
		name        string
		documentXML string
		expected    string
	}{
		{
			name: "single paragraph",
			documentXML: `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body><w:p><w:r><w:t>Hello World</w:t></w:r></w:p></w:body>
</w:document>`,
			expected: "Hello World",
		},
		{
			name: "multiple paragraphs",
			documentXML: `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body>
<w:p><w:r><w:t>First paragraph</w:t></w:r></w:p>
<w:p><w:r><w:t>Second paragraph</w:t></w:r></w:p>
</w:body>
</w:document>`,
			expected: "First paragraph\nSecond paragraph",
		},
		{
			name: "multiple runs in one paragraph",
			documentXML: `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body><w:p><w:r><w:t>Hello </w:t></w:r><w:r><w:t>World</w:t></w:r></w:p></w:body>
</w:document>`,
			expected: "Hello World",
		},
		{
			name: "empty body",
			documentXML: `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body></w:body>
</w:document>`,
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := createTestDocx(t, tt.documentXML)
			got, err := Text(FormatDocx, data)
			if err != nil {
				t.Fatalf("Expected no error, got: %v", err)
			}
			if got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestText_DocxInvalidZip(t *testing.T) {
	_, err := Text(FormatDocx, []byte("not a zip file"))
	if err == nil {
		t.Error("Expected error for invalid zip")
	}
	if !errors.Is(err, models.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got: %v", err)
	}
}

func TestText_DocxMissingDocumentXML(t *testing.T) {
	data := createTestDocx(t, "")
	got, err := Text(FormatDocx, data)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if got != "" {
		t.Errorf("Expected empty text, got %q", got)
	}
}

// Test the PDF content stream scanner
func TestContentStreamText(t *testing.T) {
	tests := []struct {
		name     string
		stream   string
		expected string
	}{
		{
			name:     "single Tj",
			stream:   `BT /F1 12 Tf (Hello) Tj ET`,
			expected: "Hello",
		},
		{
			name:     "line break at T*",
			stream:   `BT (Hello) Tj T* (World) Tj ET`,
			expected: "Hello\nWorld",
		},
		{
			name:     "TJ array with kerning",
			stream:   `BT [(Wor) -250 (ld)] TJ ET`,
			expected: "World",
		},
		{
			name:     "quote operator breaks line",
			stream:   `BT (a) Tj (b) ' ET`,
			expected: "a\nb",
		},
		{
			name:     "escaped parens",
			stream:   `BT (Line \(one\)) Tj ET`,
			expected: "Line (one)",
		},
		{
			name:     "octal escapes",
			stream:   `BT (\101\102) Tj ET`,
			expected: "AB",
		},
		{
			name:     "hex string",
			stream:   `BT <48656C6C6F> Tj ET`,
			expected: "Hello",
		},
		{
			name:     "binary hex string dropped",
			stream:   `BT <01020304> Tj ET`,
			expected: "",
		},
		{
			name:     "unconsumed string dropped at ET",
			stream:   `BT (leftover) ET`,
			expected: "",
		},
		{
			name:     "positioning before first text",
			stream:   `BT 1 0 0 1 72 720 Tm (Start) Tj ET`,
			expected: "Start",
		},
		{
			name:     "Td between lines",
			stream:   `BT (first) Tj 0 -14 Td (second) Tj ET`,
			expected: "first\nsecond",
		},
		{
			name:     "comment skipped",
			stream:   "BT % nothing here\n(visible) Tj ET",
			expected: "visible",
		},
		{
			name:     "empty stream",
			stream:   ``,
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := contentStreamText([]byte(tt.stream))
			if got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}

// Test page number parsing from extracted content filenames
func TestPageNumber(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		expected int
		ok       bool
	}{
		{"pdfcpu content name", "report_Content_page_3.txt", 3, true},
		{"bare content name", "Content_page_12.txt", 12, true},
		{"no page marker", "readme.txt", 0, false},
		{"non numeric page", "Content_page_x.txt", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, ok := pageNumber(tt.filename)
			if ok != tt.ok {
				t.Fatalf("Expected ok=%v, got %v", tt.ok, ok)
			}
			if ok && n != tt.expected {
				t.Errorf("Expected page %d, got %d", tt.expected, n)
			}
		})
	}
}

// Test literal string parsing edge cases
func TestParseLiteralString(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain", "(hello)", "hello"},
		{"nested parens", "(a (b) c)", "a (b) c"},
		{"escaped backslash", `(a\\b)`, `a\b`},
		{"newline escape", `(a\nb)`, "a\nb"},
		{"line continuation", "(a\\\nb)", "ab"},
		{"unterminated", "(abc", "abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := parseLiteralString([]byte(tt.input), 0)
			if got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestDecodeTextString_UTF16(t *testing.T) {
	// "Hi" encoded UTF-16BE with BOM
	in := string([]byte{0xFE, 0xFF, 0x00, 'H', 0x00, 'i'})
	if got := decodeTextString(in); got != "Hi" {
		t.Errorf("Expected 'Hi', got %q", got)
	}
	// Plain strings pass through untouched
	if got := decodeTextString("plain"); got != "plain" {
		t.Errorf("Expected 'plain', got %q", got)
	}
}

func TestNormalizeWhitespace(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"space runs", "a   b", "a b"},
		{"line trim", "  a  \n  b  ", "a\nb"},
		{"blank line cap", "a\n\n\n\n\nb", "a\n\nb"},
		{"carriage returns", "a\r\nb\rc", "a\nb\nc"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := normalizeWhitespace(tt.input); got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}

// Benchmark tests
func BenchmarkContentStreamText(b *testing.B) {
	stream := []byte(`BT /F1 12 Tf (The quick brown fox jumps over the lazy dog) Tj T* [(and) -250 (again)] TJ ET`)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		contentStreamText(stream)
	}
}

func BenchmarkMarkdownText(b *testing.B) {
	md := []byte("# Title\n\nA paragraph with *emphasis* and [links](https://example.com).\n\n- one\n- two\n")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = markdownText(md)
	}
}
