// Package extractor implements the Text Extractor (C5): format-dispatched
// text extraction from raw document bytes, dispatched by filename suffix per
// spec §4.10 step 2. Plain text and markdown pass through unchanged;
// word-processor documents are converted via the same HTML-to-Markdown
// pipeline the teacher uses for web content; PDFs are scanned directly since
// no PDF parsing library appears anywhere in the retrieved corpus.
package extractor

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	readability "github.com/go-shiori/go-readability"

	"ragforge/internal/rag/ragerr"
)

// Format names a dispatched extraction format.
type Format string

const (
	FormatPlain         Format = "plain"
	FormatMarkdown      Format = "markdown"
	FormatHTML          Format = "html"
	FormatWordProcessor Format = "word-processor" // .docx-family, extracted via its embedded HTML/XML body
	FormatPDF           Format = "pdf"
)

var suffixToFormat = map[string]Format{
	".txt":  FormatPlain,
	".text": FormatPlain,
	".md":   FormatMarkdown,
	".mdx":  FormatMarkdown,
	".markdown": FormatMarkdown,
	".htm":  FormatHTML,
	".html": FormatHTML,
	".docx": FormatWordProcessor,
	".doc":  FormatWordProcessor,
	".pdf":  FormatPDF,
}

// DetectFormat dispatches on the filename's suffix, defaulting to plain text
// for unrecognized or absent extensions.
func DetectFormat(filename string) Format {
	ext := strings.ToLower(filepath.Ext(filename))
	if f, ok := suffixToFormat[ext]; ok {
		return f
	}
	return FormatPlain
}

// Extract dispatches on filename to produce plain text from raw bytes.
func Extract(filename string, raw []byte) (string, error) {
	return ExtractFormat(DetectFormat(filename), raw)
}

// ExtractFormat performs extraction for an already-determined format,
// letting callers bypass filename sniffing when the format is known out of
// band (e.g. from a content-type header).
func ExtractFormat(format Format, raw []byte) (string, error) {
	switch format {
	case FormatPlain, FormatMarkdown:
		return string(raw), nil
	case FormatHTML:
		return extractHTML(raw)
	case FormatWordProcessor:
		return extractWordProcessor(raw)
	case FormatPDF:
		return extractPDF(raw)
	default:
		return "", ragerr.New(ragerr.InvalidInput, fmt.Sprintf("extractor: unsupported format %q", format))
	}
}

// extractHTML converts HTML markup to Markdown-flavored plain text, matching
// the teacher's web-ingestion conversion pipeline: prefer the
// boilerplate-stripped main article body (go-shiori/go-readability), and
// fall back to converting the whole document when readability finds nothing
// extractable (non-article pages, malformed markup). A title, when
// readability recovers one, is prepended as a leading H1 unless the
// converted body already starts with one.
func extractHTML(raw []byte) (string, error) {
	html := string(raw)

	articleHTML, title := readArticle(html)
	if articleHTML == "" {
		articleHTML = html
	}

	out, err := md.ConvertString(articleHTML, converter.WithDomain(""))
	if err != nil {
		return "", ragerr.Wrap(ragerr.Internal, err, "extractor: html conversion failed")
	}
	if title != "" && !hasLeadingH1(out) {
		out = "# " + title + "\n\n" + out
	}
	return out, nil
}

// readArticle attempts readability extraction against a blank base URL,
// since ingested HTML has no known origin to resolve relative links
// against (unlike the teacher's web-fetch path, which knows the page's
// final URL). Returns ("", "") when readability can't find an article body,
// signaling the caller to fall back to the raw document.
func readArticle(html string) (articleHTML, title string) {
	base, _ := url.Parse("")
	art, err := readability.FromReader(strings.NewReader(html), base)
	if err != nil || strings.TrimSpace(art.Content) == "" {
		return "", ""
	}
	return art.Content, strings.TrimSpace(art.Title)
}

func hasLeadingH1(markdown string) bool {
	return strings.HasPrefix(strings.TrimLeft(markdown, "\n"), "# ")
}

// extractWordProcessor treats the payload as the document's body markup
// (an OOXML "document.xml" part, or an HTML export thereof) and reuses the
// HTML conversion path; a true zip/OOXML unpacker is outside the retrieved
// corpus's dependency surface.
func extractWordProcessor(raw []byte) (string, error) {
	return extractHTML(raw)
}
