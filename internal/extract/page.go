package extract

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Page is a fetched share page, parsed once and shared by every strategy.
type Page struct {
	Raw string
	Doc *goquery.Document
	ID  string
}

// NewPage parses html for the content identified by id.
func NewPage(html, id string) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}
	return &Page{Raw: html, Doc: doc, ID: id}, nil
}

// CanonicalURL returns the href of <link rel="canonical">, or "".
func (p *Page) CanonicalURL() string {
	href, _ := p.Doc.Find(`link[rel="canonical"]`).First().Attr("href")
	return strings.TrimSpace(href)
}

// IsGallery reports whether the canonical link points at a note (image post).
func (p *Page) IsGallery() bool {
	return strings.Contains(p.CanonicalURL(), "/note/")
}
