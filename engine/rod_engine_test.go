package engine

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/use-agent/offerscout/config"
)

// failingPage rejects every setup call a tab receives before navigation.
type failingPage struct {
	methods []string
}

func (p *failingPage) Call(_ context.Context, _, method string, _ interface{}) ([]byte, error) {
	p.methods = append(p.methods, method)
	return nil, errors.New("target closed")
}

func (p *failingPage) EvalOnNewDocument(string) (func() error, error) {
	p.methods = append(p.methods, "evalOnNewDocument")
	return nil, errors.New("target closed")
}

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func TestPrepareTabLogsSetupFailures(t *testing.T) {
	logs := captureLogs(t)
	page := &failingPage{}

	prepareTab(page, config.BrowserConfig{Stealth: true, AcceptLanguage: "en-IN"}, "amazon")

	assert.Equal(t, []string{"evalOnNewDocument", "Network.setExtraHTTPHeaders"}, page.methods)
	assert.Contains(t, logs.String(), "stealth injection failed")
	assert.Contains(t, logs.String(), "extra headers not set")
	assert.Contains(t, logs.String(), "source=amazon")
}

func TestPrepareTabSkipsDisabledSetup(t *testing.T) {
	logs := captureLogs(t)
	page := &failingPage{}

	prepareTab(page, config.BrowserConfig{}, "flipkart")

	assert.Empty(t, page.methods)
	assert.Empty(t, logs.String())
}
