package crawler

import (
	"bytes"
	"fmt"
	"mime"
	"net/url"
	"regexp"
	"strings"

	"code.sajari.com/docconv"
	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/eventinsight/eventinsight/internal/core"
)

// Document is the plain-text form of a fetched page.
type Document struct {
	Title string
	Text  string
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// Extractor converts raw page bytes into a plain-text document and a title.
// HTML goes through goquery: script/style subtrees are removed, remaining
// text nodes flatten with single-space separation and whitespace runs
// collapse. Other content types (a page URL may point at a PDF or Office
// document) are handed to docconv with the reported MIME type.
type Extractor struct{}

func NewExtractor() *Extractor { return &Extractor{} }

func (e *Extractor) Extract(pageURL, contentType string, body []byte) (*Document, error) {
	mimeType := contentType
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		mimeType = mt
	}

	if mimeType == "" || mimeType == "text/html" || mimeType == "application/xhtml+xml" || mimeType == "text/plain" {
		return extractHTML(pageURL, body), nil
	}

	res, err := docconv.Convert(bytes.NewReader(body), mimeType, false)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", core.ErrExtract, mimeType, err)
	}
	title := strings.TrimSpace(res.Meta["Title"])
	if title == "" {
		title = hostnameOf(pageURL)
	}
	return &Document{Title: title, Text: collapse(res.Body)}, nil
}

// extractHTML is best-effort: the html parser tolerates arbitrarily malformed
// markup, so this path has no failure mode.
func extractHTML(pageURL string, body []byte) *Document {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		// Unreachable for byte input; fall back to treating it as text.
		return &Document{Title: hostnameOf(pageURL), Text: collapse(string(body))}
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title = hostnameOf(pageURL)
	}

	// Everything that is not script or style flattens to text, the title
	// element included, matching a plain strip-all-tags extraction where
	// each tag boundary becomes a space.
	doc.Find("script, style").Remove()
	var sb strings.Builder
	for _, node := range doc.Nodes {
		appendTextNodes(node, &sb)
	}

	return &Document{Title: title, Text: collapse(sb.String())}
}

func appendTextNodes(n *html.Node, sb *strings.Builder) {
	if n.Type == html.TextNode {
		sb.WriteString(n.Data)
		sb.WriteByte(' ')
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		appendTextNodes(c, sb)
	}
}

func collapse(s string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
}

func hostnameOf(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil || u.Hostname() == "" {
		return pageURL
	}
	return u.Hostname()
}

// WordCount counts whitespace-separated words in extracted text.
func WordCount(text string) int {
	return len(strings.Fields(text))
}
