package parser

import (
	"bytes"
	"io"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"
)

// Page is the readable content of an HTML document.
type Page struct {
	Title string
	Text  string
}

type Parser struct{}

func New() *Parser { return &Parser{} }

var whitespaceRe = regexp.MustCompile(`\s+`)

// Extract decodes r to UTF-8 using contentType and the document's own
// charset hints, then returns its visible text with whitespace collapsed.
func (p *Parser) Extract(r io.Reader, contentType string) (Page, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Page{}, err
	}

	enc, _, _ := charset.DetermineEncoding(data, contentType)
	utf8data, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		// fallback: if already utf-8, continue
		if !utf8.Valid(data) {
			return Page{}, err
		}
		utf8data = data
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(utf8data))
	if err != nil {
		return Page{}, err
	}
	return fromDocument(doc), nil
}

// ExtractHTML is Extract for an already-decoded HTML string, such as a
// rendered browser page.
func (p *Parser) ExtractHTML(html string) (Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Page{}, err
	}
	return fromDocument(doc), nil
}

func fromDocument(doc *goquery.Document) Page {
	doc.Find("script,noscript,style,template").Remove()

	title := strings.TrimSpace(doc.Find("title").First().Text())

	// block elements would otherwise glue adjacent words together
	doc.Find("p,li,h1,h2,h3,h4,h5,h6,td,th,div,br,section,article").Each(func(i int, s *goquery.Selection) {
		s.AppendHtml(" ")
	})
	text := strings.TrimSpace(whitespaceRe.ReplaceAllString(doc.Text(), " "))

	return Page{Title: title, Text: text}
}
