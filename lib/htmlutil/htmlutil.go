package htmlutil

import (
	"bytes"
	"context"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/net/html"
)

var tracer = otel.Tracer("edupage-client/lib/htmlutil")

func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		child = child.NextSibling
	}
}

var innerWhitespace = regexp.MustCompile(`\s\s+`)

func removeNonPrintable(s string) string {
	newStr := strings.Builder{}
	for _, c := range s {
		if unicode.IsPrint(c) {
			newStr.WriteRune(c)
		}
	}
	return newStr.String()
}

// PlainText renders a fragment of markup (message bodies can carry some) as text. Line breaks
// and block elements become newlines, runs of blank lines collapse into one.
func PlainText(ctx context.Context, fragment string) string {
	if !strings.ContainsAny(fragment, "<&") {
		return cleanLines(fragment)
	}

	_, span := tracer.Start(ctx, "PlainText")
	defer span.End()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse fragment")
		return cleanLines(fragment)
	}
	doc.Find("br").ReplaceWithNodes(newline())
	doc.Find("p, div, li, tr, h1, h2, h3, h4").AppendNodes(newline())
	if len(doc.Nodes) == 0 {
		return ""
	}
	return cleanLines(GetText(doc.Nodes[0]))
}

func newline() *html.Node {
	return &html.Node{Type: html.TextNode, Data: "\n"}
}

func cleanLines(text string) string {
	var lines []string
	blank := false
	for _, line := range strings.Split(text, "\n") {
		line = removeNonPrintable(line)
		line = innerWhitespace.ReplaceAllString(line, " ")
		line = strings.TrimSpace(line)
		if line == "" {
			blank = len(lines) > 0
			continue
		}
		if blank {
			lines = append(lines, "")
			blank = false
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}
