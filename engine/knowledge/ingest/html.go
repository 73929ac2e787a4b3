package ingest

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/transform"
)

// page is the text content of a source plus the metadata a web loader
// usually reports.
type page struct {
	Title       string
	Description string
	Language    string
	Text        string
}

var skippedElements = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Template: true,
	atom.Svg:      true,
	atom.Nav:      true,
}

// lineBreaks flattens source formatting; only block elements start new lines.
var lineBreaks = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

var blockElements = map[atom.Atom]bool{
	atom.Address: true, atom.Article: true, atom.Aside: true, atom.Blockquote: true,
	atom.Br: true, atom.Dd: true, atom.Div: true, atom.Dl: true, atom.Dt: true,
	atom.Figcaption: true, atom.Figure: true, atom.Footer: true, atom.H1: true,
	atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Header: true, atom.Hr: true, atom.Li: true, atom.Main: true, atom.Ol: true,
	atom.P: true, atom.Pre: true, atom.Section: true, atom.Table: true, atom.Td: true,
	atom.Th: true, atom.Tr: true, atom.Ul: true,
}

// decodePage turns a response body into text. HTML is parsed, anything else
// is transcoded to UTF-8 as is.
func decodePage(data []byte, contentType string) (page, error) {
	if isHTML(data, contentType) {
		return parseHTML(bytes.NewReader(data), contentType)
	}
	text, err := decodeText(data, contentType)
	if err != nil {
		return page{}, err
	}
	return page{Text: text}, nil
}

func isHTML(data []byte, contentType string) bool {
	switch mediaType(contentType) {
	case "text/html", "application/xhtml+xml":
		return true
	case "":
		return strings.HasPrefix(http.DetectContentType(data), "text/html")
	default:
		return false
	}
}

func parseHTML(r io.Reader, contentType string) (page, error) {
	utf8Reader, err := charset.NewReader(r, contentType)
	if err != nil {
		return page{}, fmt.Errorf("detect charset: %w", err)
	}
	root, err := html.Parse(utf8Reader)
	if err != nil {
		return page{}, fmt.Errorf("parse html: %w", err)
	}
	var out page
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if skippedElements[n.DataAtom] {
				return
			}
			switch n.DataAtom {
			case atom.Title:
				if out.Title == "" {
					out.Title = collapseSpaces(nodeText(n))
				}
				return
			case atom.Meta:
				if strings.EqualFold(attr(n, "name"), "description") && out.Description == "" {
					out.Description = collapseSpaces(attr(n, "content"))
				}
			case atom.Html:
				out.Language = strings.TrimSpace(attr(n, "lang"))
			}
		}
		if n.Type == html.TextNode {
			b.WriteString(lineBreaks.Replace(n.Data))
		}
		block := n.Type == html.ElementNode && blockElements[n.DataAtom]
		if block {
			b.WriteByte('\n')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if block {
			b.WriteByte('\n')
		}
	}
	walk(root)
	out.Text = normalizeLines(b.String())
	return out, nil
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return b.String()
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// normalizeLines collapses whitespace inside lines and drops blank lines.
func normalizeLines(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, line := range lines {
		if collapsed := collapseSpaces(line); collapsed != "" {
			out = append(out, collapsed)
		}
	}
	return strings.Join(out, "\n")
}

func decodeText(data []byte, contentType string) (string, error) {
	if utf8.Valid(data) {
		return normalizeNewlines(string(data)), nil
	}
	enc, name, _ := charset.DetermineEncoding(data, contentType)
	reader := transform.NewReader(bytes.NewReader(data), enc.NewDecoder())
	decoded, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("transcode from %s: %w", name, err)
	}
	if !utf8.Valid(decoded) {
		return "", fmt.Errorf("transcoded result invalid utf-8")
	}
	return normalizeNewlines(string(decoded)), nil
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}
