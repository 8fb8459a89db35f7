// Package canonical turns raw PDF bytes into a canonical form suitable for
// digest comparison. Two fetches of the same document that differ only in
// regeneration noise (Info dictionary values, XMP metadata, trailer file
// IDs, object file order) canonicalize to identical bytes; any difference in
// content survives into the output.
package canonical

import (
	"bytes"
	"fmt"
	"regexp"
	"sort"
	"strconv"
)

// MalformedDocumentError reports input that could not be parsed as a PDF.
// Canonicalization never silently produces empty output for bad input.
type MalformedDocumentError struct {
	Reason string
}

func (e *MalformedDocumentError) Error() string {
	return fmt.Sprintf("malformed document: %s", e.Reason)
}

var (
	headerRe    = regexp.MustCompile(`^%PDF-(\d+\.\d+)`)
	objHeaderRe = regexp.MustCompile(`(\d+)\s+(\d+)\s+obj\b`)
	streamRe    = regexp.MustCompile(`stream(\r\n|\r|\n)`)
	refRe       = regexp.MustCompile(`\b(\d+)\s+(\d+)\s+R\b`)
	rootRe      = regexp.MustCompile(`/Root\s+(\d+)\s+(\d+)\s+R`)
	infoRe      = regexp.MustCompile(`/Info\s+(\d+)\s+(\d+)\s+R`)
	metadataRe  = regexp.MustCompile(`/Type\s*/Metadata\b`)
	xrefTypeRe  = regexp.MustCompile(`/Type\s*/XRef\b`)
	metaRefRe   = regexp.MustCompile(`/Metadata\s+\d+\s+\d+\s+R`)
	catalogRe   = regexp.MustCompile(`/Type\s*/Catalog\b`)
)

// object is one indirect object lifted out of the raw file. For stream
// objects the head holds the dictionary, payload the untouched stream bytes.
type object struct {
	num     int
	gen     int
	head    []byte
	payload []byte // nil for non-stream objects
}

// Canonicalize rewrites raw PDF bytes into canonical form. The transform is
// pure and deterministic: identical input always yields identical output.
func Canonicalize(raw []byte) ([]byte, error) {
	m := headerRe.FindSubmatch(raw)
	if m == nil {
		return nil, &MalformedDocumentError{Reason: "missing %PDF header"}
	}
	version := string(m[1])

	objects, err := parseObjects(raw)
	if err != nil {
		return nil, err
	}
	if len(objects) == 0 {
		return nil, &MalformedDocumentError{Reason: "no indirect objects found"}
	}

	infoNum := findInfoNumber(raw)
	rootNum := findRootNumber(raw, objects)
	if rootNum == 0 {
		return nil, &MalformedDocumentError{Reason: "no document catalog"}
	}

	// Drop regeneration noise: the Info dictionary, XMP metadata streams,
	// and cross-reference stream objects (the xref is rebuilt below).
	kept := objects[:0]
	for _, obj := range objects {
		if obj.num == infoNum {
			continue
		}
		if obj.payload != nil && metadataRe.Match(obj.head) {
			continue
		}
		if xrefTypeRe.Match(obj.head) {
			continue
		}
		kept = append(kept, obj)
	}
	if len(kept) == 0 {
		return nil, &MalformedDocumentError{Reason: "no content objects after stripping metadata"}
	}

	// Deterministic order regardless of file layout: incremental updates
	// already collapsed in parseObjects (later bodies win), so sorting by
	// object number fixes the output ordering.
	sort.Slice(kept, func(i, j int) bool { return kept[i].num < kept[j].num })

	// Dense renumbering so sparse numbering from deleted objects cannot
	// leak into the canonical bytes.
	renumber := make(map[int]int, len(kept))
	for i, obj := range kept {
		renumber[obj.num] = i + 1
	}
	if _, ok := renumber[rootNum]; !ok {
		return nil, &MalformedDocumentError{Reason: "document catalog was stripped"}
	}

	var out bytes.Buffer
	fmt.Fprintf(&out, "%%PDF-%s\n", version)

	offsets := make([]int, len(kept))
	for i, obj := range kept {
		offsets[i] = out.Len()
		head := normalizeHead(obj.head)
		head = rewriteRefs(head, renumber)
		head = metaRefRe.ReplaceAll(head, nil)

		fmt.Fprintf(&out, "%d 0 obj\n", i+1)
		out.Write(bytes.TrimSpace(head))
		if obj.payload != nil {
			out.WriteString("\nstream\n")
			out.Write(obj.payload)
			out.WriteString("\nendstream")
		}
		out.WriteString("\nendobj\n")
	}

	// Classic xref table over the renumbered objects.
	xrefOffset := out.Len()
	fmt.Fprintf(&out, "xref\n0 %d\n", len(kept)+1)
	out.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&out, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&out, "trailer\n<< /Size %d /Root %d 0 R >>\nstartxref\n%d\n%%%%EOF\n",
		len(kept)+1, renumber[rootNum], xrefOffset)

	return out.Bytes(), nil
}

// parseObjects walks the file sequentially so stream payloads are never
// scanned for object headers. Incremental updates collapse: a later body for
// the same object number replaces the earlier one.
func parseObjects(raw []byte) ([]object, error) {
	byNum := make(map[int]object)
	var order []int

	pos := 0
	for pos < len(raw) {
		loc := objHeaderRe.FindSubmatchIndex(raw[pos:])
		if loc == nil {
			break
		}
		num, _ := strconv.Atoi(string(raw[pos+loc[2] : pos+loc[3]]))
		gen, _ := strconv.Atoi(string(raw[pos+loc[4] : pos+loc[5]]))
		bodyStart := pos + loc[1]

		endObj := bytes.Index(raw[bodyStart:], []byte("endobj"))
		if endObj < 0 {
			return nil, &MalformedDocumentError{Reason: fmt.Sprintf("object %d %d has no endobj", num, gen)}
		}

		var head, payload []byte
		streamLoc := streamRe.FindIndex(raw[bodyStart:])
		if streamLoc != nil && streamLoc[0] < endObj {
			head = raw[bodyStart : bodyStart+streamLoc[0]]
			payloadStart := bodyStart + streamLoc[1]
			endStream := bytes.Index(raw[payloadStart:], []byte("endstream"))
			if endStream < 0 {
				return nil, &MalformedDocumentError{Reason: fmt.Sprintf("object %d %d has no endstream", num, gen)}
			}
			payload = trimStreamEOL(raw[payloadStart : payloadStart+endStream])
			after := payloadStart + endStream + len("endstream")
			endObj = bytes.Index(raw[after:], []byte("endobj"))
			if endObj < 0 {
				return nil, &MalformedDocumentError{Reason: fmt.Sprintf("object %d %d has no endobj", num, gen)}
			}
			pos = after + endObj + len("endobj")
		} else {
			head = raw[bodyStart : bodyStart+endObj]
			pos = bodyStart + endObj + len("endobj")
		}

		if _, seen := byNum[num]; !seen {
			order = append(order, num)
		}
		byNum[num] = object{num: num, gen: gen, head: head, payload: payload}
	}

	objects := make([]object, 0, len(order))
	for _, num := range order {
		objects = append(objects, byNum[num])
	}
	return objects, nil
}

// trimStreamEOL strips the single EOL the spec places between stream data
// and the endstream keyword, leaving the payload bytes untouched.
func trimStreamEOL(payload []byte) []byte {
	if bytes.HasSuffix(payload, []byte("\r\n")) {
		return payload[:len(payload)-2]
	}
	if len(payload) > 0 && (payload[len(payload)-1] == '\n' || payload[len(payload)-1] == '\r') {
		return payload[:len(payload)-1]
	}
	return payload
}

// findInfoNumber locates the object number of the Info dictionary via the
// last trailer that references one. Zero means no Info dictionary.
func findInfoNumber(raw []byte) int {
	matches := infoRe.FindAllSubmatch(raw, -1)
	if len(matches) == 0 {
		return 0
	}
	num, _ := strconv.Atoi(string(matches[len(matches)-1][1]))
	return num
}

// findRootNumber locates the catalog object, preferring trailer /Root
// references and falling back to scanning for /Type /Catalog.
func findRootNumber(raw []byte, objects []object) int {
	matches := rootRe.FindAllSubmatch(raw, -1)
	if len(matches) > 0 {
		num, _ := strconv.Atoi(string(matches[len(matches)-1][1]))
		return num
	}
	for _, obj := range objects {
		if obj.payload == nil && catalogRe.Match(obj.head) {
			return obj.num
		}
	}
	return 0
}

// normalizeHead collapses whitespace runs outside string literals to a
// single space so line-break and spacing jitter between regenerations does
// not survive into the canonical bytes. Literal and hex string contents are
// copied verbatim.
func normalizeHead(head []byte) []byte {
	var out bytes.Buffer
	out.Grow(len(head))

	inLiteral := 0 // nesting depth of ( )
	inHex := false
	escaped := false
	pendingSpace := false

	for i := 0; i < len(head); i++ {
		c := head[i]

		if inLiteral > 0 {
			out.WriteByte(c)
			if escaped {
				escaped = false
				continue
			}
			switch c {
			case '\\':
				escaped = true
			case '(':
				inLiteral++
			case ')':
				inLiteral--
			}
			continue
		}
		if inHex {
			out.WriteByte(c)
			if c == '>' {
				inHex = false
			}
			continue
		}

		switch c {
		case ' ', '\t', '\r', '\n', '\f', 0x00:
			pendingSpace = out.Len() > 0
			continue
		case '(':
			inLiteral = 1
		case '<':
			// "<<" opens a dictionary, a lone "<" a hex string.
			if i+1 < len(head) && head[i+1] == '<' {
				if pendingSpace {
					out.WriteByte(' ')
					pendingSpace = false
				}
				out.WriteString("<<")
				i++
				continue
			}
			inHex = true
		}
		if pendingSpace {
			out.WriteByte(' ')
			pendingSpace = false
		}
		out.WriteByte(c)
	}
	return out.Bytes()
}

// rewriteRefs maps indirect references onto the dense renumbering. All
// generations collapse to zero in canonical output.
func rewriteRefs(head []byte, renumber map[int]int) []byte {
	return refRe.ReplaceAllFunc(head, func(ref []byte) []byte {
		m := refRe.FindSubmatch(ref)
		old, _ := strconv.Atoi(string(m[1]))
		if newNum, ok := renumber[old]; ok {
			return []byte(fmt.Sprintf("%d 0 R", newNum))
		}
		// Reference to a stripped object; leave a null in its place.
		return []byte("null")
	})
}
