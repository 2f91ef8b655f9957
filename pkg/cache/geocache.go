package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

type GeoCacheInterface interface {
	Get(ctx context.Context, ip string) (*CachedLocation, error)
	Set(ctx context.Context, ip string, location *CachedLocation, ttl time.Duration) error
}

// GeoCache memoizes results of the external IP geolocation lookup so a
// busy visitor IP is not resolved over and over.
type GeoCache struct {
	client *redis.Client
}

// CachedLocation field names line up with the ipinfo response body, so the
// lookup result can be stored as-is.
type CachedLocation struct {
	Country string `json:"country"`
	Region  string `json:"region"`
	City    string `json:"city"`
}

func NewGeoCache(client *redis.Client) *GeoCache {
	return &GeoCache{client: client}
}

func (c *GeoCache) Get(ctx context.Context, ip string) (*CachedLocation, error) {
	key := "geo:" + ip
	val, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var cached CachedLocation
	if err := json.Unmarshal([]byte(val), &cached); err != nil {
		return nil, err
	}

	return &cached, nil
}

func (c *GeoCache) Set(ctx context.Context, ip string, location *CachedLocation, ttl time.Duration) error {
	key := "geo:" + ip
	data, err := json.Marshal(location)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, ttl).Err()
}
