package engine

import (
	"testing"

	"github.com/go-rod/rod/lib/proto"
	"github.com/stretchr/testify/assert"

	"github.com/use-agent/offerscout/config"
)

func TestBlockPolicyBlocks(t *testing.T) {
	p := NewBlockPolicy([]string{"Image", " Font "}, []string{"DoubleClick.net", "*.criteo.com", ".hotjar.com."})

	tests := []struct {
		name   string
		rt     proto.NetworkResourceType
		url    string
		reason string
	}{
		{"blocked type", proto.NetworkResourceTypeImage, "https://rukminim2.flixcart.com/a.jpg", BlockedByType},
		{"trimmed type", proto.NetworkResourceTypeFont, "https://www.flipkart.com/f.woff2", BlockedByType},
		{"domain", proto.NetworkResourceTypeScript, "https://doubleclick.net/tag.js", BlockedByDomain},
		{"subdomain", proto.NetworkResourceTypeXHR, "https://securepubads.g.DOUBLECLICK.net/x", BlockedByDomain},
		{"wildcard entry", proto.NetworkResourceTypeScript, "https://static.criteo.com/js/ld.js", BlockedByDomain},
		{"dotted entry", proto.NetworkResourceTypeScript, "https://script.hotjar.com/h.js", BlockedByDomain},
		{"document", proto.NetworkResourceTypeDocument, "https://www.flipkart.com/search?q=x", ""},
		{"lookalike host", proto.NetworkResourceTypeScript, "https://notdoubleclick.net/x.js", ""},
		{"unparseable url", proto.NetworkResourceTypeScript, "://bad", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reason, blocked := p.Blocks(tt.rt, tt.url)
			assert.Equal(t, tt.reason != "", blocked)
			assert.Equal(t, tt.reason, reason)
		})
	}
}

func TestBlockPolicyWithLeavesBaseUnchanged(t *testing.T) {
	base := NewBlockPolicy([]string{"Image"}, []string{"doubleclick.net"})
	amazon := base.With(nil, []string{"amazon-adsystem.com"})

	_, blocked := amazon.Blocks(proto.NetworkResourceTypeScript, "https://aax.amazon-adsystem.com/e/dtb")
	assert.True(t, blocked)
	_, blocked = amazon.Blocks(proto.NetworkResourceTypeImage, "https://m.media-amazon.com/i.jpg")
	assert.True(t, blocked)

	_, blocked = base.Blocks(proto.NetworkResourceTypeScript, "https://aax.amazon-adsystem.com/e/dtb")
	assert.False(t, blocked)
}

func TestBlockPolicyEmpty(t *testing.T) {
	assert.True(t, BlockPolicy{}.Empty())
	assert.True(t, NewBlockPolicy(nil, []string{" ", "."}).Empty())
	assert.False(t, BlockPolicy{}.With([]string{"Media"}, nil).Empty())

	_, blocked := BlockPolicy{}.Blocks(proto.NetworkResourceTypeImage, "https://doubleclick.net/")
	assert.False(t, blocked)
}

func TestDefaultBlockDomainsCoverTrackers(t *testing.T) {
	p := NewBlockPolicy(nil, config.DefaultBlockDomains)
	for _, u := range []string{
		"https://www.googletagmanager.com/gtm.js",
		"https://connect.facebook.net/en_US/fbevents.js",
		"https://www.clarity.ms/tag/abc",
	} {
		_, blocked := p.Blocks(proto.NetworkResourceTypeScript, u)
		assert.True(t, blocked, u)
	}
	_, blocked := p.Blocks(proto.NetworkResourceTypeDocument, "https://www.amazon.in/s?k=widget")
	assert.False(t, blocked)
}

func TestOptionsFor(t *testing.T) {
	srcs := config.DefaultSources()
	opts := OptionsFor(&srcs[1])
	assert.Equal(t, "amazon", opts.Source)
	assert.Equal(t, []string{"amazon-adsystem.com"}, opts.BlockDomains)
}
