package extractor

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/use-agent/offerscout/models"
)

// ScanPrices walks every element under root in document order and collects
// the values of elements whose trimmed text starts with the scan currency.
//
// Candidates whose own or parent text mentions an exclude word, or whose
// value is below MinPrice, are dropped unless the element carries one of the
// main-price classes. A wrapper whose text equals one of its child elements'
// text is skipped so the same figure is not counted twice.
func ScanPrices(root *html.Node, scan *models.PriceScan) []float64 {
	if root == nil || scan == nil || scan.Currency == "" {
		return nil
	}

	var values []float64
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && !skipElement(n) {
			if v, ok := candidate(n, scan); ok {
				values = append(values, v)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return values
}

func candidate(n *html.Node, scan *models.PriceScan) (float64, bool) {
	text := strings.TrimSpace(textContent(n))
	if !strings.HasPrefix(text, scan.Currency) {
		return 0, false
	}
	if hasTwinChild(n, text) {
		return 0, false
	}
	v, ok := parseCurrencyPrefixed(text, scan.Currency)
	if !ok {
		return 0, false
	}
	if hasAnyClass(n, scan.MainClasses) {
		return v, true
	}
	if mentionsAny(text, scan.ExcludeWords) {
		return 0, false
	}
	if n.Parent != nil && mentionsAny(textContent(n.Parent), scan.ExcludeWords) {
		return 0, false
	}
	if v < scan.MinPrice {
		return 0, false
	}
	return v, true
}

func skipElement(n *html.Node) bool {
	switch n.Data {
	case "script", "style", "noscript", "template", "head":
		return true
	}
	return false
}

// textContent concatenates all descendant text nodes, like DOM textContent
// minus script and style bodies.
func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			return
		case html.ElementNode:
			if skipElement(n) {
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func hasTwinChild(n *html.Node, text string) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && strings.TrimSpace(textContent(c)) == text {
			return true
		}
	}
	return false
}

func hasAnyClass(n *html.Node, classes []string) bool {
	if len(classes) == 0 {
		return false
	}
	for _, a := range n.Attr {
		if a.Key != "class" {
			continue
		}
		for _, have := range strings.Fields(a.Val) {
			for _, want := range classes {
				if have == want {
					return true
				}
			}
		}
	}
	return false
}

func mentionsAny(text string, words []string) bool {
	if len(words) == 0 {
		return false
	}
	lower := strings.ToLower(text)
	for _, w := range words {
		if w != "" && strings.Contains(lower, strings.ToLower(w)) {
			return true
		}
	}
	return false
}
