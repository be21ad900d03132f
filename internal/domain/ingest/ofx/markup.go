package ofx

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/FACorreiaa/statement-ingest/internal/domain/ingest"
)

const (
	// headWindow bounds how far the security gate and the root-tag check
	// look into the raw bytes.
	headWindow = 64 << 10
	// prologWindow bounds the XML-prolog scan that picks the dialect.
	prologWindow = 4 << 10
)

var forbiddenMarkup = [][]byte{
	[]byte("<!DOCTYPE"),
	[]byte("<!ENTITY"),
}

// checkForbiddenMarkup scans the head of the raw bytes for document-type and
// entity declarations. It runs before any decoding or parsing so an entity
// bomb never reaches the tree parser.
func checkForbiddenMarkup(data []byte) *ingest.Error {
	head := data
	if len(head) > headWindow {
		head = head[:headWindow]
	}
	upper := bytes.ToUpper(head)
	for _, marker := range forbiddenMarkup {
		if bytes.Contains(upper, marker) {
			return ingest.NewError(ingest.KindSecurityViolation,
				fmt.Sprintf("file contains a forbidden %s declaration", marker),
				"remove DOCTYPE and ENTITY declarations, or re-export the statement directly from your bank")
		}
	}
	return nil
}

// encodingCandidate is one decoding strategy. Candidates are tried in
// order; the first success wins.
type encodingCandidate struct {
	name   string
	decode func([]byte) (string, bool)
}

func decodeUTF8(data []byte) (string, bool) {
	if !utf8.Valid(data) {
		return "", false
	}
	return string(data), true
}

func decodeWindows1252(data []byte) (string, bool) {
	out, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		return "", false
	}
	return string(out), true
}

var charsetHintRe = regexp.MustCompile(`(?i)CHARSET:\s*([A-Za-z0-9_-]+)|encoding="([^"]+)"`)

// resolveEncoding decodes the raw bytes to text. A legacy charset hint in
// the header block is honored first, then UTF-8, then Windows-1252.
func resolveEncoding(data []byte) (string, string, *ingest.Error) {
	candidates := []encodingCandidate{
		{name: "utf-8", decode: decodeUTF8},
		{name: "windows-1252", decode: decodeWindows1252},
	}

	head := data
	if len(head) > prologWindow {
		head = head[:prologWindow]
	}
	if m := charsetHintRe.FindSubmatch(head); m != nil {
		hint := strings.ToLower(string(m[1]) + string(m[2]))
		if strings.Contains(hint, "1252") || strings.Contains(hint, "latin") {
			candidates = append([]encodingCandidate{{name: "windows-1252", decode: decodeWindows1252}}, candidates...)
		}
	}

	for _, c := range candidates {
		if text, ok := c.decode(data); ok {
			return text, c.name, nil
		}
	}
	return "", "", ingest.NewError(ingest.KindEncodingExhausted,
		"file could not be decoded with any supported character set",
		"re-save the file as UTF-8 and upload it again")
}

// detectDialect picks the OFX dialect: an XML prolog near the top selects
// the v2 XML dialect, its absence the v1 SGML-like dialect.
func detectDialect(text string) Dialect {
	head := text
	if len(head) > prologWindow {
		head = head[:prologWindow]
	}
	if strings.Contains(strings.ToLower(head), "<?xml") {
		return DialectXML
	}
	return DialectSGML
}

// leafTagRe matches an opening tag immediately followed by inline text with
// no closing tag on the same line, the v1 shorthand for a leaf element.
// Known limitation: a value containing an unescaped '<' defeats the match
// and the line is passed through unmodified.
var leafTagRe = regexp.MustCompile(`^\s*<([A-Za-z0-9_.]+)>([^<]*[^<\s])\s*$`)

// normalizeSGML converts the legacy SGML-like dialect into well-formed
// markup by synthesizing a closing tag for every leaf element. The caller
// has already discarded the non-markup header block via cutFromRoot.
func normalizeSGML(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimRight(line, "\r")
		if m := leafTagRe.FindStringSubmatch(line); m != nil {
			line = line + "</" + m[1] + ">"
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

// cutFromRoot returns the markup starting at the <OFX> root, or an error
// when the root tag is absent from the head window.
func cutFromRoot(text string) (string, *ingest.Error) {
	head := text
	if len(head) > headWindow {
		head = head[:headWindow]
	}
	idx := strings.Index(strings.ToUpper(head), "<OFX>")
	if idx < 0 {
		return "", ingest.NewError(ingest.KindFormatMarkerMissing,
			"no <OFX> root tag found: this is not a valid OFX/QBO file",
			"export a Web Connect (.qbo) or OFX statement from your bank and upload that instead")
	}
	return text[idx:], nil
}

// node is one element of the parsed statement tree.
type node struct {
	name     string
	text     string
	children []*node
}

// parseTree parses well-formed markup into a tree. The decoder receives
// already-decoded UTF-8, so no charset reader is installed.
func parseTree(markup string) (*node, *ingest.Error) {
	dec := xml.NewDecoder(strings.NewReader(markup))
	// Legacy exports routinely carry bare ampersands in payee names; strict
	// mode would reject the whole file over one of them.
	dec.Strict = false
	root := &node{name: ""}
	stack := []*node{root}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, ingest.NewError(ingest.KindStructuralParseFailure,
				fmt.Sprintf("statement markup could not be parsed: %v", err),
				"re-export the statement from your bank, or convert it to CSV and upload that")
		}
		switch t := tok.(type) {
		case xml.StartElement:
			child := &node{name: strings.ToUpper(t.Name.Local)}
			top := stack[len(stack)-1]
			top.children = append(top.children, child)
			stack = append(stack, child)
		case xml.EndElement:
			if len(stack) > 1 {
				stack = stack[:len(stack)-1]
			}
		case xml.CharData:
			if s := strings.TrimSpace(string(t)); s != "" {
				top := stack[len(stack)-1]
				if top.text != "" {
					top.text += " "
				}
				top.text += s
			}
		}
	}
	if len(root.children) == 0 {
		return nil, ingest.NewError(ingest.KindStructuralParseFailure,
			"statement markup is empty",
			"re-export the statement from your bank, or convert it to CSV and upload that")
	}
	return root, nil
}

// findAll collects every descendant with the given (upper-case) name, in
// document order.
func (n *node) findAll(name string) []*node {
	var out []*node
	for _, c := range n.children {
		if c.name == name {
			out = append(out, c)
		}
		out = append(out, c.findAll(name)...)
	}
	return out
}

// first returns the first descendant with the given name, or nil.
func (n *node) first(name string) *node {
	for _, c := range n.children {
		if c.name == name {
			return c
		}
		if found := c.first(name); found != nil {
			return found
		}
	}
	return nil
}

// childText returns the trimmed text of the first descendant with the given
// name, or "".
func (n *node) childText(name string) string {
	if c := n.first(name); c != nil {
		return strings.TrimSpace(c.text)
	}
	return ""
}
