package extract

import (
	"bytes"
	"compress/zlib"
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildPDF assembles a single-generation PDF with one page per content
// stream. Streams are uncompressed unless wrapped by deflate().
func buildPDF(contents ...[]byte) []byte {
	var out bytes.Buffer
	out.WriteString("%PDF-1.4\n")

	kids := ""
	for i := range contents {
		kids += fmt.Sprintf("%d 0 R ", 3+2*i)
	}
	fmt.Fprintf(&out, "1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")
	fmt.Fprintf(&out, "2 0 obj\n<< /Type /Pages /Kids [%s] /Count %d >>\nendobj\n", kids, len(contents))

	for i, content := range contents {
		pageNum := 3 + 2*i
		filter := ""
		if isZlib(content) {
			filter = " /Filter /FlateDecode"
		}
		fmt.Fprintf(&out, "%d 0 obj\n<< /Type /Page /Parent 2 0 R /Contents %d 0 R >>\nendobj\n",
			pageNum, pageNum+1)
		fmt.Fprintf(&out, "%d 0 obj\n<< /Length %d%s >>\nstream\n", pageNum+1, len(content), filter)
		out.Write(content)
		out.WriteString("\nendstream\nendobj\n")
	}

	out.WriteString("trailer\n<< /Root 1 0 R >>\n%%EOF\n")
	return out.Bytes()
}

func deflate(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	_, err := w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func isZlib(data []byte) bool {
	return len(data) > 1 && data[0] == 0x78
}

func TestLexicalExtractor_SinglePage(t *testing.T) {
	pdf := buildPDF([]byte("BT /F1 12 Tf 72 700 Td (Request for Accommodation) Tj ET"))

	texts, err := NewLexicalExtractor(nil).Extract(context.Background(), pdf)
	require.NoError(t, err)

	require.Len(t, texts, 1)
	assert.Equal(t, "Request for Accommodation", texts[0])
}

func TestLexicalExtractor_MultiplePagesInOrder(t *testing.T) {
	pdf := buildPDF(
		[]byte("BT (page one) Tj ET"),
		[]byte("BT (page two) Tj ET"),
		[]byte("BT (page three) Tj ET"),
	)

	texts, err := NewLexicalExtractor(nil).Extract(context.Background(), pdf)
	require.NoError(t, err)

	assert.Equal(t, []string{"page one", "page two", "page three"}, texts)
}

func TestLexicalExtractor_TJArrayAndPositioning(t *testing.T) {
	pdf := buildPDF([]byte("BT [(Noti) -20 (ce of) 5 ( Hearing)] TJ 0 -14 Td (Superior Court) Tj ET"))

	texts, err := NewLexicalExtractor(nil).Extract(context.Background(), pdf)
	require.NoError(t, err)

	assert.Equal(t, "Notice of Hearing\nSuperior Court", texts[0])
}

func TestLexicalExtractor_EscapesAndNesting(t *testing.T) {
	pdf := buildPDF([]byte(`BT (Fee \(waived\) \$100 50\% done) Tj ET`))

	texts, err := NewLexicalExtractor(nil).Extract(context.Background(), pdf)
	require.NoError(t, err)

	assert.Equal(t, `Fee (waived) $100 50% done`, texts[0])
}

func TestLexicalExtractor_OctalEscape(t *testing.T) {
	pdf := buildPDF([]byte(`BT (A\101B) Tj ET`))

	texts, err := NewLexicalExtractor(nil).Extract(context.Background(), pdf)
	require.NoError(t, err)

	assert.Equal(t, "AAB", texts[0])
}

func TestLexicalExtractor_HexString(t *testing.T) {
	pdf := buildPDF([]byte("BT <4869> Tj ET"))

	texts, err := NewLexicalExtractor(nil).Extract(context.Background(), pdf)
	require.NoError(t, err)

	assert.Equal(t, "Hi", texts[0])
}

func TestLexicalExtractor_FlateStream(t *testing.T) {
	content := deflate(t, []byte("BT (compressed page text here) Tj ET"))
	pdf := buildPDF(content)

	texts, err := NewLexicalExtractor(nil).Extract(context.Background(), pdf)
	require.NoError(t, err)

	assert.Equal(t, "compressed page text here", texts[0])
}

func TestLexicalExtractor_EmptyPage(t *testing.T) {
	pdf := buildPDF(
		[]byte("BT (has text) Tj ET"),
		[]byte("q 1 0 0 1 0 0 cm Q"),
	)

	texts, err := NewLexicalExtractor(nil).Extract(context.Background(), pdf)
	require.NoError(t, err)

	require.Len(t, texts, 2)
	assert.Equal(t, "has text", texts[0])
	assert.Empty(t, texts[1])
}

func TestLexicalExtractor_NotAPDF(t *testing.T) {
	_, err := NewLexicalExtractor(nil).Extract(context.Background(), []byte("<html>nope</html>"))
	assert.Error(t, err)
}

func TestLexicalExtractor_NoPages(t *testing.T) {
	pdf := []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\n")
	_, err := NewLexicalExtractor(nil).Extract(context.Background(), pdf)
	assert.Error(t, err)
}
