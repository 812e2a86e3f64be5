package cleaner

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const factPage = `<html><head><title>Song</title><script>var x = 1;</script></head>
<body>
<nav><a href="/home">Home</a></nav>
<article>
<h1>Test Song</h1>
<p>Test Song was composed by a music director whose work spans several decades of film scores.</p>
<p>The lead vocals were recorded in a single take, with a string section arranged for the bridge.</p>
<p><a href="/credits">Full credits</a></p>
</article>
<footer>Copyright</footer>
</body></html>`

const factListPage = `<html><body>
<header><a href="/">Songfacts</a></header>
<div class="main-content">
  <h1>Test Song by The Testers</h1>
  <ul class="fact-list">
    <li>The band wrote it in <a href="/facts/studio">one afternoon</a>.</li>
    <li>It was the closing song of their 1994 tour.</li>
    <li>Copyright 2024 Songfacts, LLC. All rights reserved.</li>
  </ul>
  <div class="share">Share this fact</div>
  <p>Privacy Policy</p>
</div>
</body></html>`

func TestSummarize(t *testing.T) {
	s := NewSummarizer(0)

	md, err := s.Summarize(factPage, "https://facts.example/song", nil)
	require.NoError(t, err)

	assert.Contains(t, md, "music director")
	assert.NotContains(t, md, "var x")
	assert.NotContains(t, md, "Copyright")
}

func TestSummarizeScopedFactList(t *testing.T) {
	s := NewSummarizer(0)

	md, err := s.Summarize(factListPage, "https://www.songfacts.com/facts/the-testers/test-song",
		[]string{".missing", ".fact-list", ".main-content"})
	require.NoError(t, err)

	assert.Contains(t, md, "one afternoon](https://www.songfacts.com/facts/studio)")
	assert.Contains(t, md, "1994 tour")
	assert.NotContains(t, md, "Test Song by", "first matching scope wins")
	assert.NotContains(t, md, "rights reserved")
	assert.NotContains(t, md, "Share this")
	assert.True(t, strings.HasPrefix(md, "- "), md)
}

func TestFactScope(t *testing.T) {
	body, scoped := FactScope(factListPage, nil)
	assert.False(t, scoped)
	assert.Contains(t, body, "Test Song by")
	assert.NotContains(t, body, "<header>")
	assert.NotContains(t, body, "Privacy Policy")
	assert.NotContains(t, body, "All rights reserved")

	body, scoped = FactScope(factListPage, []string{".fact-list li"})
	assert.True(t, scoped)
	assert.True(t, strings.HasPrefix(body, "<article><li>"), body)
	assert.Equal(t, 2, strings.Count(body, "<li>"))

	_, scoped = FactScope(factListPage, []string{".share", "table"})
	assert.False(t, scoped, "chrome removed before scoping")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 10))
	assert.Equal(t, "₹₹", truncate("₹₹₹₹", 2))

	long := "first line is long enough\nsecond line"
	assert.Equal(t, "first line is long enough", truncate(long, 30))
}
