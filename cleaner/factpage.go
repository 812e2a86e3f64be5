package cleaner

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// pageChrome is never part of a fact: navigation, ads, share and comment
// widgets, embedded media and anything the page hides.
var pageChrome = []string{
	"script", "style", "noscript", "svg", "iframe", "form",
	"nav", "header", "footer", "aside",
	"[hidden]", `[aria-hidden="true"]`,
	".ad", ".ads", ".advert", ".share", ".social", ".comments", ".related",
}

// boilerplate marks paragraphs and list items that are site furniture
// rather than facts about the subject.
var boilerplate = []string{"copyright", "all rights reserved", "privacy policy"}

// FactScope narrows a fact page to the part that holds its facts. Page
// chrome and boilerplate lines are always dropped. Then the scope
// selectors are tried in order and the first one that matches wins: only
// its elements are kept, wrapped in one <article>. scoped reports whether a
// selector matched; otherwise the whole cleaned document is returned.
func FactScope(rawHTML string, scope []string) (body string, scoped bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return rawHTML, false
	}

	doc.Find(strings.Join(pageChrome, ", ")).Remove()
	doc.Find("p, li").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return isBoilerplate(s.Text())
	}).Remove()

	for _, sel := range scope {
		m := doc.Find(sel)
		if strings.TrimSpace(m.Text()) == "" {
			continue
		}
		var b strings.Builder
		b.WriteString("<article>")
		m.Each(func(_ int, s *goquery.Selection) {
			if h, err := goquery.OuterHtml(s); err == nil {
				b.WriteString(h)
			}
		})
		b.WriteString("</article>")
		return b.String(), true
	}

	out, err := doc.Html()
	if err != nil {
		return rawHTML, false
	}
	return out, false
}

func isBoilerplate(text string) bool {
	text = strings.ToLower(text)
	for _, w := range boilerplate {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}
