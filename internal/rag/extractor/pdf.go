package extractor

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"

	"ragforge/internal/rag/ragerr"
)

// extractPDF scans the raw PDF byte stream for text-showing operators
// (`Tj`, `TJ`) inside `BT`/`ET` text blocks and concatenates the literal
// string operands. This is not a general PDF renderer — it does not resolve
// fonts, encodings, or content streams compressed with filters other than
// none/FlateDecode-already-inflated-by-the-caller — but it recovers
// reasonable plain text from the common case of an uncompressed or
// already-decompressed content stream, which is the one PDF shape the
// retrieved corpus gives any grounding for (no PDF library is present
// anywhere in the pack; see DESIGN.md).
func extractPDF(raw []byte) (string, error) {
	if len(raw) == 0 {
		return "", ragerr.New(ragerr.InvalidInput, "extractor: empty pdf payload")
	}
	if !bytes.HasPrefix(bytes.TrimSpace(raw), []byte("%PDF")) {
		return "", ragerr.New(ragerr.InvalidInput, "extractor: not a pdf payload")
	}

	var out strings.Builder
	for _, block := range textBlockPattern.FindAll(raw, -1) {
		for _, op := range showOpPattern.FindAllSubmatch(block, -1) {
			lit := op[1]
			tj := op[2]
			switch {
			case lit != nil:
				out.WriteString(unescapePDFString(lit))
				out.WriteByte(' ')
			case tj != nil:
				out.WriteString(extractTJArray(tj))
				out.WriteByte(' ')
			}
		}
		out.WriteByte('\n')
	}
	return strings.TrimSpace(out.String()), nil
}

var textBlockPattern = regexp.MustCompile(`(?s)BT(.*?)ET`)

// showOpPattern matches `(literal) Tj` and `[ ... ] TJ` operators.
var showOpPattern = regexp.MustCompile(`(?s)\(((?:[^()\\]|\\.)*)\)\s*Tj|(\[(?:[^\]]*)\])\s*TJ`)

var pdfEscapePattern = regexp.MustCompile(`\\([nrtbf()\\]|[0-7]{1,3})`)

func unescapePDFString(b []byte) string {
	return pdfEscapePattern.ReplaceAllStringFunc(string(b), func(m string) string {
		esc := m[1:]
		switch esc {
		case "n":
			return "\n"
		case "r":
			return "\r"
		case "t":
			return "\t"
		case "b", "f":
			return ""
		case "(", ")", "\\":
			return esc
		default:
			if n, err := strconv.ParseInt(esc, 8, 32); err == nil {
				return string(rune(n))
			}
			return ""
		}
	})
}

var tjLiteralPattern = regexp.MustCompile(`\(((?:[^()\\]|\\.)*)\)`)

func extractTJArray(arr []byte) string {
	var out strings.Builder
	for _, m := range tjLiteralPattern.FindAllSubmatch(arr, -1) {
		out.WriteString(unescapePDFString(m[1]))
	}
	return out.String()
}
