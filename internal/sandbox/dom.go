package sandbox

import (
	"fmt"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
)

// Match is one node selected by an XPath query
type Match struct {
	Text string `json:"text"`
	HTML string `json:"html"`
}

// DOM is a sandbox's document, backed by a goquery tree
type DOM struct {
	doc     *goquery.Document
	changes []DOMChange
	mu      sync.RWMutex
}

// NewDOM parses markup into a document. Fragments are completed with
// html, head and body elements by the HTML parser.
func NewDOM(markup string) (*DOM, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return &DOM{doc: doc, changes: []DOMChange{}}, nil
}

// Replace swaps the whole document for markup
func (d *DOM) Replace(markup string) error {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return fmt.Errorf("parse document: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.doc = doc
	d.changes = append(d.changes, DOMChange{Type: "replace", Selector: "html"})
	return nil
}

// Append adds markup as the last child of the first element matching section
func (d *DOM) Append(section, markup string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	target := d.doc.Find(section).First()
	if target.Length() == 0 {
		return fmt.Errorf("%w: %s", ErrNoSection, section)
	}
	target.AppendHtml(markup)
	d.changes = append(d.changes, DOMChange{Type: "append", Selector: section, Value: markup})
	return nil
}

// XPath evaluates expr against the whole document
func (d *DOM) XPath(expr string) ([]Match, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if len(d.doc.Nodes) == 0 {
		return []Match{}, nil
	}
	nodes, err := htmlquery.QueryAll(d.doc.Nodes[0], expr)
	if err != nil {
		return nil, fmt.Errorf("xpath %q: %w", expr, err)
	}

	out := make([]Match, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, Match{
			Text: htmlquery.InnerText(n),
			HTML: htmlquery.OutputHTML(n, true),
		})
	}
	return out, nil
}

// Count returns the number of elements matching selector
func (d *DOM) Count(selector string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.doc.Find(selector).Length()
}

// Attrs returns the named attribute of every match that carries it, in
// document order.
func (d *DOM) Attrs(selector, name string) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var out []string
	d.doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		if v, ok := s.Attr(name); ok {
			out = append(out, v)
		}
	})
	return out
}

// Text returns the combined text of matches
func (d *DOM) Text(selector string) string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return strings.TrimSpace(d.doc.Find(selector).Text())
}

// Title returns the document title
func (d *DOM) Title() string {
	return d.Text("title")
}

// HTML renders the whole document
func (d *DOM) HTML() (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return goquery.OuterHtml(d.doc.Selection)
}

// GetChanges returns accumulated DOM changes
func (d *DOM) GetChanges() []DOMChange {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]DOMChange{}, d.changes...)
}

// RecordChange adds a DOM change
func (d *DOM) RecordChange(change DOMChange) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.changes = append(d.changes, change)
}

// proxy builds the `document` global handed to sandboxed code. Lookups run
// against the current tree, so they follow Replace.
func (d *DOM) proxy() map[string]interface{} {
	first := func(selector string) interface{} {
		d.mu.RLock()
		sel := d.doc.Find(selector).First()
		d.mu.RUnlock()
		if sel.Length() == 0 {
			return nil
		}
		return d.element(selector, sel)
	}

	all := func(selector string) []interface{} {
		d.mu.RLock()
		defer d.mu.RUnlock()
		out := []interface{}{}
		d.doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
			out = append(out, d.element(selector, s))
		})
		return out
	}

	return map[string]interface{}{
		"querySelector":    first,
		"querySelectorAll": all,
		"getElementById": func(id string) interface{} {
			return first("#" + id)
		},
		"getElementsByClassName": func(class string) []interface{} {
			return all("." + class)
		},
		"getElementsByTagName": all,
	}
}

// element creates a proxy for a single node
func (d *DOM) element(selector string, sel *goquery.Selection) map[string]interface{} {
	id, _ := sel.Attr("id")
	class, _ := sel.Attr("class")

	return map[string]interface{}{
		"tagName":     strings.ToUpper(goquery.NodeName(sel)),
		"id":          id,
		"className":   class,
		"textContent": sel.Text(),
		"getAttribute": func(name string) interface{} {
			d.mu.RLock()
			defer d.mu.RUnlock()
			if v, ok := sel.Attr(name); ok {
				return v
			}
			return nil
		},
		"setAttribute": func(name, value string) {
			d.mu.Lock()
			defer d.mu.Unlock()
			sel.SetAttr(name, value)
			d.changes = append(d.changes, DOMChange{
				Type:     "attribute",
				Selector: selector,
				Property: name,
				Value:    value,
			})
		},
	}
}
