package enrichment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	iphoneUA  = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_4 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Mobile/15E148 Safari/604.1"
	chromeUA  = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	crawlerUA = "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)"
)

func TestParseUserAgentMobile(t *testing.T) {
	info := ParseUserAgent(iphoneUA)

	require.NotNil(t, info.Platform)
	assert.Equal(t, "iOS", *info.Platform)
	require.NotNil(t, info.Browser)
	assert.Equal(t, "Safari", *info.Browser)
	require.NotNil(t, info.Device)
	assert.Equal(t, "mobile", *info.Device)
	require.NotNil(t, info.OS)
	assert.Equal(t, "17.4", *info.OS)
}

func TestParseUserAgentDesktop(t *testing.T) {
	info := ParseUserAgent(chromeUA)

	require.NotNil(t, info.Platform)
	assert.Equal(t, "Windows", *info.Platform)
	require.NotNil(t, info.Browser)
	assert.Equal(t, "Chrome", *info.Browser)
	require.NotNil(t, info.Device)
	assert.Equal(t, "desktop", *info.Device)
}

func TestParseUserAgentBot(t *testing.T) {
	info := ParseUserAgent(crawlerUA)

	require.NotNil(t, info.Device)
	assert.Equal(t, "bot", *info.Device)
}

func TestParseUserAgentEmpty(t *testing.T) {
	info := ParseUserAgent("")

	assert.Nil(t, info.Platform)
	assert.Nil(t, info.Browser)
	assert.Nil(t, info.Device)
	assert.Nil(t, info.OS)
}
