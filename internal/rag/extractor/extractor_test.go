package extractor

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDetectFormat(t *testing.T) {
	require.Equal(t, FormatPlain, DetectFormat("notes.txt"))
	require.Equal(t, FormatMarkdown, DetectFormat("README.md"))
	require.Equal(t, FormatHTML, DetectFormat("page.html"))
	require.Equal(t, FormatWordProcessor, DetectFormat("report.docx"))
	require.Equal(t, FormatPDF, DetectFormat("paper.pdf"))
	require.Equal(t, FormatPlain, DetectFormat("noextension"))
}

func TestExtract_PlainPassesThrough(t *testing.T) {
	text, err := Extract("paris.txt", []byte("Paris is the capital of France."))
	require.NoError(t, err)
	require.Equal(t, "Paris is the capital of France.", text)
}

func TestExtract_HTMLStripsMarkup(t *testing.T) {
	text, err := Extract("page.html", []byte("<html><body><h1>Title</h1><p>Hello world</p></body></html>"))
	require.NoError(t, err)
	require.Contains(t, text, "Title")
	require.Contains(t, text, "Hello world")
	require.NotContains(t, text, "<h1>")
}

func TestExtractPDF_RejectsNonPDFPayload(t *testing.T) {
	_, err := ExtractFormat(FormatPDF, []byte("not a pdf"))
	require.Error(t, err)
}

func TestExtractPDF_ExtractsLiteralTextOperators(t *testing.T) {
	raw := []byte("%PDF-1.4\n1 0 obj\n<< >>\nstream\nBT /F1 12 Tf (Paris is the capital) Tj (of France) Tj ET\nendstream\nendobj\n")
	text, err := extractPDF(raw)
	require.NoError(t, err)
	require.Contains(t, text, "Paris is the capital")
	require.Contains(t, text, "of France")
}

func TestExtractPDF_ExtractsTJArrayOperator(t *testing.T) {
	raw := []byte("%PDF-1.4\nBT [(Paris)-250(is)-250(the)-250(capital)] TJ ET")
	text, err := extractPDF(raw)
	require.NoError(t, err)
	require.Contains(t, text, "Paris")
	require.Contains(t, text, "capital")
}
