package enrichment

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"redirector/pkg/cache"
	"redirector/pkg/logging"
)

const (
	DefaultGeoBaseURL = "https://ipinfo.io"

	geoLookupTimeout = 3 * time.Second
	geoCacheTTL      = 24 * time.Hour
)

// Location is the geolocation result for a visitor IP. A zero value means
// the lookup was skipped or failed; redirects proceed either way.
type Location struct {
	Country string
	Region  string
	City    string
}

// GeoResolver resolves visitor IPs to locations through an ipinfo-style
// JSON API, memoizing results in the cache.
type GeoResolver struct {
	client  *http.Client
	baseURL string
	cache   cache.GeoCacheInterface
	logger  *logging.Logger
}

func NewGeoResolver(baseURL string, geoCache cache.GeoCacheInterface, logger *logging.Logger) *GeoResolver {
	if baseURL == "" {
		baseURL = DefaultGeoBaseURL
	}
	return &GeoResolver{
		client:  &http.Client{Timeout: geoLookupTimeout},
		baseURL: baseURL,
		cache:   geoCache,
		logger:  logger,
	}
}

// Resolve returns the location for an IP address. Lookups are skipped for
// empty, unparseable, loopback and private addresses. Failures are logged
// and swallowed; a lookup problem must never abort a redirect.
func (g *GeoResolver) Resolve(ctx context.Context, ipStr string) Location {
	ip := net.ParseIP(ipStr)
	if ip == nil || ip.IsLoopback() || ip.IsPrivate() {
		return Location{}
	}

	if g.cache != nil {
		if cached, err := g.cache.Get(ctx, ipStr); err == nil && cached != nil {
			return Location{Country: cached.Country, Region: cached.Region, City: cached.City}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/%s/json", g.baseURL, ipStr), nil)
	if err != nil {
		g.logger.Warn(ctx, "failed to build geo lookup request", "ip", ipStr, "error", err)
		return Location{}
	}

	resp, err := g.client.Do(req)
	if err != nil {
		g.logger.Warn(ctx, "geo lookup failed", "ip", ipStr, "error", err)
		return Location{}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		g.logger.Warn(ctx, "geo lookup returned non-OK status", "ip", ipStr, "status", resp.StatusCode)
		return Location{}
	}

	var body cache.CachedLocation
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		g.logger.Warn(ctx, "failed to decode geo lookup response", "ip", ipStr, "error", err)
		return Location{}
	}

	if g.cache != nil {
		if err := g.cache.Set(ctx, ipStr, &body, geoCacheTTL); err != nil {
			g.logger.Warn(ctx, "failed to cache geo lookup result", "ip", ipStr, "error", err)
		}
	}

	return Location{Country: body.Country, Region: body.Region, City: body.City}
}
