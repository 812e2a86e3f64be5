// Package cleaner turns a fact page into a short Markdown summary for
// sources whose facts selectors find nothing.
package cleaner

import (
	"fmt"
	nurl "net/url"
	"strings"
	"unicode/utf8"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
)

// DefaultSummaryRunes caps a summary when the caller passes 0.
const DefaultSummaryRunes = 1200

// Summarizer renders fact pages as Markdown. It is safe for concurrent use.
type Summarizer struct {
	conv     *converter.Converter
	maxRunes int
}

// NewSummarizer creates a Summarizer keeping at most maxRunes runes.
func NewSummarizer(maxRunes int) *Summarizer {
	if maxRunes <= 0 {
		maxRunes = DefaultSummaryRunes
	}
	return &Summarizer{
		conv: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
			),
		),
		maxRunes: maxRunes,
	}
}

// Summarize returns the facts of rawHTML as Markdown. scope lists ordered
// selectors for the fact block (see FactScope). Without a scope match the
// readability main body is used instead. Relative links resolve against
// the page's origin.
func (s *Summarizer) Summarize(rawHTML, pageURL string, scope []string) (string, error) {
	body, scoped := FactScope(rawHTML, scope)
	if !scoped {
		body = mainBody(body, pageURL)
	}

	md, err := s.conv.ConvertString(body, converter.WithDomain(originOf(pageURL)))
	if err != nil {
		return "", fmt.Errorf("summarize: markdown: %w", err)
	}
	return truncate(strings.TrimSpace(md), s.maxRunes), nil
}

func originOf(pageURL string) string {
	u, err := nurl.Parse(pageURL)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

// truncate cuts s to at most n runes, preferring the last newline before the
// cut.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	cut := string(runes[:n])
	if i := strings.LastIndexByte(cut, '\n'); i > len(cut)/2 {
		cut = cut[:i]
	}
	return strings.TrimSpace(cut)
}
