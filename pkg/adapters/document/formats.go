package document

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

func init() {
	Register(Registration{
		MimeTypes:  []string{"text/plain"},
		Extensions: []string{".txt", ".text"},
		Extractor:  TextExtractorFunc(extractPlain),
	})
	Register(Registration{
		MimeTypes:  []string{"text/markdown", "text/x-markdown"},
		Extensions: []string{".md", ".markdown"},
		Extractor:  TextExtractorFunc(extractPlain),
	})
	Register(Registration{
		MimeTypes:  []string{"text/csv", "application/csv"},
		Extensions: []string{".csv"},
		Extractor:  TextExtractorFunc(extractCSV),
	})
	Register(Registration{
		MimeTypes:  []string{"text/html", "application/xhtml+xml"},
		Extensions: []string{".html", ".htm"},
		Extractor:  TextExtractorFunc(extractHTML),
	})
}

var errNotText = errors.New("content is not valid UTF-8 text")

func checkText(data []byte) error {
	if !utf8.Valid(data) || bytes.IndexByte(data, 0) >= 0 {
		return errNotText
	}
	return nil
}

func extractPlain(_ context.Context, data []byte) (string, error) {
	if err := checkText(data); err != nil {
		return "", err
	}
	return string(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))), nil
}

// extractCSV renders each record as one " | " separated line.
func extractCSV(_ context.Context, data []byte) (string, error) {
	if err := checkText(data); err != nil {
		return "", err
	}
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var b strings.Builder
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		b.WriteString(strings.Join(record, " | "))
		b.WriteByte('\n')
	}
	return b.String(), nil
}

// extractHTML keeps visible text, one line per block element.
func extractHTML(_ context.Context, data []byte) (string, error) {
	if err := checkText(data); err != nil {
		return "", err
	}
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return "", err
	}

	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "head", "template":
				return
			}
		}
		if n.Type == html.TextNode {
			if t := strings.Join(strings.Fields(n.Data), " "); t != "" {
				b.WriteString(t)
				b.WriteByte(' ')
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && isBlock(n.Data) {
			b.WriteByte('\n')
		}
	}
	walk(doc)
	return b.String(), nil
}

func isBlock(tag string) bool {
	switch tag {
	case "p", "div", "br", "li", "tr", "h1", "h2", "h3", "h4", "h5", "h6",
		"section", "article", "header", "footer", "table", "ul", "ol", "blockquote":
		return true
	}
	return false
}
