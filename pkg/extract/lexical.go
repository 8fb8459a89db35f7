package extract

import (
	"bytes"
	"compress/zlib"
	"context"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/hashicorp/go-hclog"
)

var (
	objHeaderRe     = regexp.MustCompile(`(\d+)\s+(\d+)\s+obj\b`)
	streamStartRe   = regexp.MustCompile(`stream(\r\n|\r|\n)`)
	pageTypeRe      = regexp.MustCompile(`/Type\s*/Page\b`)
	contentsRefRe   = regexp.MustCompile(`/Contents\s+(\d+)\s+\d+\s+R`)
	contentsArrayRe = regexp.MustCompile(`/Contents\s*\[([^\]]*)\]`)
	refRe           = regexp.MustCompile(`(\d+)\s+\d+\s+R`)
	flateRe         = regexp.MustCompile(`/Filter\s*(\[\s*)?/FlateDecode\b`)
)

// LexicalExtractor reads text straight out of PDF content streams without a
// rendering pass. It understands the text-showing operators of uncompressed
// and Flate-compressed streams, which covers the output of the common form
// authoring tools. Pages it cannot read come back empty, which the pipeline
// treats as an OCR candidate rather than a hard failure.
type LexicalExtractor struct {
	logger hclog.Logger
}

// NewLexicalExtractor creates a content-stream text extractor.
func NewLexicalExtractor(logger hclog.Logger) *LexicalExtractor {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &LexicalExtractor{logger: logger.Named("lexical")}
}

// pdfObject is one indirect object: the dictionary text and, for stream
// objects, the raw stream bytes.
type pdfObject struct {
	num    int
	dict   []byte
	stream []byte
}

// Extract returns per-page text in page order. It fails only when the input
// has no recognizable page structure at all.
func (e *LexicalExtractor) Extract(ctx context.Context, pdf []byte) ([]string, error) {
	if !bytes.HasPrefix(pdf, []byte("%PDF-")) {
		return nil, &ExtractionError{Reason: "not a PDF document"}
	}

	objects := parsePDFObjects(pdf)
	if len(objects) == 0 {
		return nil, &ExtractionError{Reason: "no indirect objects found"}
	}

	var pages []pdfObject
	for _, obj := range objects {
		if obj.stream == nil && pageTypeRe.Match(obj.dict) {
			pages = append(pages, obj)
		}
	}
	if len(pages) == 0 {
		return nil, &ExtractionError{Reason: "no page objects found"}
	}

	byNum := make(map[int]pdfObject, len(objects))
	for _, obj := range objects {
		byNum[obj.num] = obj
	}

	texts := make([]string, len(pages))
	for i, page := range pages {
		var parts []string
		for _, contentNum := range contentRefs(page.dict) {
			content, ok := byNum[contentNum]
			if !ok || content.stream == nil {
				continue
			}
			data, err := decodeStream(content)
			if err != nil {
				e.logger.Debug("content stream undecodable", "object", contentNum, "error", err)
				continue
			}
			if text := contentText(data); text != "" {
				parts = append(parts, text)
			}
		}
		texts[i] = strings.TrimSpace(strings.Join(parts, "\n"))
	}
	return texts, nil
}

// parsePDFObjects walks the file sequentially so stream payloads are never
// scanned for object headers. Later bodies for the same number win, which
// collapses incremental updates.
func parsePDFObjects(raw []byte) []pdfObject {
	byNum := make(map[int]pdfObject)
	var order []int

	pos := 0
	for pos < len(raw) {
		loc := objHeaderRe.FindSubmatchIndex(raw[pos:])
		if loc == nil {
			break
		}
		num, _ := strconv.Atoi(string(raw[pos+loc[2] : pos+loc[3]]))
		bodyStart := pos + loc[1]

		endObj := bytes.Index(raw[bodyStart:], []byte("endobj"))
		if endObj < 0 {
			break
		}

		var dict, stream []byte
		streamLoc := streamStartRe.FindIndex(raw[bodyStart:])
		if streamLoc != nil && streamLoc[0] < endObj {
			dict = raw[bodyStart : bodyStart+streamLoc[0]]
			payloadStart := bodyStart + streamLoc[1]
			endStream := bytes.Index(raw[payloadStart:], []byte("endstream"))
			if endStream < 0 {
				break
			}
			stream = raw[payloadStart : payloadStart+endStream]
			after := payloadStart + endStream + len("endstream")
			endObj = bytes.Index(raw[after:], []byte("endobj"))
			if endObj < 0 {
				break
			}
			pos = after + endObj + len("endobj")
		} else {
			dict = raw[bodyStart : bodyStart+endObj]
			pos = bodyStart + endObj + len("endobj")
		}

		if _, seen := byNum[num]; !seen {
			order = append(order, num)
		}
		byNum[num] = pdfObject{num: num, dict: dict, stream: stream}
	}

	objects := make([]pdfObject, 0, len(order))
	for _, num := range order {
		objects = append(objects, byNum[num])
	}
	return objects
}

// contentRefs resolves the /Contents entry to object numbers, handling both
// the single-reference and array forms.
func contentRefs(dict []byte) []int {
	if m := contentsArrayRe.FindSubmatch(dict); m != nil {
		var nums []int
		for _, ref := range refRe.FindAllSubmatch(m[1], -1) {
			num, _ := strconv.Atoi(string(ref[1]))
			nums = append(nums, num)
		}
		return nums
	}
	if m := contentsRefRe.FindSubmatch(dict); m != nil {
		num, _ := strconv.Atoi(string(m[1]))
		return []int{num}
	}
	return nil
}

// decodeStream returns the stream bytes, inflating FlateDecode streams.
// Other filters are not decodable here.
func decodeStream(obj pdfObject) ([]byte, error) {
	data := trimStreamEOL(obj.stream)
	if !flateRe.Match(obj.dict) {
		return data, nil
	}
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("flate stream: %w", err)
	}
	defer r.Close()
	inflated, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("flate stream: %w", err)
	}
	return inflated, nil
}

func trimStreamEOL(payload []byte) []byte {
	if bytes.HasSuffix(payload, []byte("\r\n")) {
		return payload[:len(payload)-2]
	}
	if len(payload) > 0 && (payload[len(payload)-1] == '\n' || payload[len(payload)-1] == '\r') {
		return payload[:len(payload)-1]
	}
	return payload
}

// contentText scans a decoded content stream for text-showing operators.
// Strings accumulate until a Tj/TJ/quote operator consumes them; positioning
// operators that start a new line emit a newline so reading order survives.
func contentText(data []byte) string {
	var out strings.Builder
	var pending strings.Builder

	newline := func() {
		if out.Len() > 0 && !strings.HasSuffix(out.String(), "\n") {
			out.WriteByte('\n')
		}
	}
	flush := func() {
		if pending.Len() > 0 {
			if out.Len() > 0 && !strings.HasSuffix(out.String(), "\n") {
				out.WriteByte(' ')
			}
			out.WriteString(pending.String())
			pending.Reset()
		}
	}

	i := 0
	for i < len(data) {
		c := data[i]
		switch {
		case c == '(':
			s, next := parseLiteralString(data, i)
			pending.WriteString(s)
			i = next
		case c == '<':
			if i+1 < len(data) && data[i+1] == '<' {
				i += 2
				continue
			}
			s, next := parseHexString(data, i)
			pending.WriteString(s)
			i = next
		case c == '%':
			for i < len(data) && data[i] != '\n' && data[i] != '\r' {
				i++
			}
		case isPDFDelim(c) || isPDFSpace(c):
			i++
		default:
			start := i
			for i < len(data) && !isPDFDelim(data[i]) && !isPDFSpace(data[i]) {
				i++
			}
			switch string(data[start:i]) {
			case "Tj", "TJ":
				flush()
			case "'", "\"":
				newline()
				flush()
			case "Td", "TD", "T*":
				newline()
			case "ET":
				pending.Reset()
			}
		}
	}
	flush()
	return out.String()
}

// parseLiteralString decodes a ( ) string starting at open, returning the
// text and the index past the closing paren.
func parseLiteralString(data []byte, open int) (string, int) {
	var s strings.Builder
	depth := 1
	i := open + 1
	for i < len(data) && depth > 0 {
		c := data[i]
		switch c {
		case '\\':
			if i+1 >= len(data) {
				i++
				continue
			}
			next := data[i+1]
			switch next {
			case 'n':
				s.WriteByte('\n')
				i += 2
			case 'r':
				s.WriteByte('\r')
				i += 2
			case 't':
				s.WriteByte('\t')
				i += 2
			case 'b', 'f':
				i += 2
			case '(', ')', '\\':
				s.WriteByte(next)
				i += 2
			case '\n':
				i += 2
			case '\r':
				i += 2
				if i < len(data) && data[i] == '\n' {
					i++
				}
			default:
				if next >= '0' && next <= '7' {
					code := 0
					j := i + 1
					for j < len(data) && j < i+4 && data[j] >= '0' && data[j] <= '7' {
						code = code*8 + int(data[j]-'0')
						j++
					}
					s.WriteByte(byte(code))
					i = j
				} else {
					s.WriteByte(next)
					i += 2
				}
			}
		case '(':
			depth++
			s.WriteByte(c)
			i++
		case ')':
			depth--
			if depth > 0 {
				s.WriteByte(c)
			}
			i++
		default:
			s.WriteByte(c)
			i++
		}
	}
	return s.String(), i
}

// parseHexString decodes a < > string starting at open. Bytes outside the
// printable ASCII range are dropped: without font CMaps there is no reliable
// mapping for them.
func parseHexString(data []byte, open int) (string, int) {
	var s strings.Builder
	var digits []byte
	i := open + 1
	for i < len(data) && data[i] != '>' {
		c := data[i]
		if isHexDigit(c) {
			digits = append(digits, c)
		}
		i++
	}
	if i < len(data) {
		i++ // past '>'
	}
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}
	for j := 0; j+1 < len(digits); j += 2 {
		b := hexVal(digits[j])<<4 | hexVal(digits[j+1])
		if b >= 0x20 && b < 0x7f {
			s.WriteByte(b)
		}
	}
	return s.String(), i
}

func isPDFSpace(c byte) bool {
	switch c {
	case 0x00, '\t', '\n', '\f', '\r', ' ':
		return true
	}
	return false
}

func isPDFDelim(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
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
