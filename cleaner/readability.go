package cleaner

import (
	"log/slog"
	nurl "net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"
)

// minBodyText is the least visible text, in bytes, a readability body needs
// before it replaces the page.
const minBodyText = 50

// mainBody returns the HTML of the page's main article as located by
// readability. An unscoped fact page is usually a single article with
// sidebars; when readability finds nothing substantial the page is returned
// as given.
func mainBody(pageHTML, pageURL string) string {
	u, err := nurl.Parse(pageURL)
	if err != nil {
		slog.Debug("summarize: bad page url, keeping whole page", "url", pageURL, "error", err)
		return pageHTML
	}
	article, err := readability.FromReader(strings.NewReader(pageHTML), u)
	if err != nil {
		slog.Debug("summarize: no main body, keeping whole page", "url", pageURL, "error", err)
		return pageHTML
	}
	if n := len(strings.TrimSpace(article.TextContent)); n < minBodyText {
		slog.Debug("summarize: main body too short, keeping whole page", "url", pageURL, "length", n)
		return pageHTML
	}
	return article.Content
}
