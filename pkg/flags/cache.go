package flags

import (
	"os"

	"github.com/spf13/pflag"

	"github.com/wayfarer-travel/wayfarer/pkg/apis/cache"
	"github.com/wayfarer-travel/wayfarer/pkg/cache/compressed"
	"github.com/wayfarer-travel/wayfarer/pkg/cache/redis"
)

// CacheFlags holds caching configuration information for Wayfarer.
type CacheFlags struct {
	RedisURL      string
	CompressCache bool
}

func NewCacheFlags() *CacheFlags {
	return &CacheFlags{}
}

func (f *CacheFlags) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&f.RedisURL,
		"redis-url",
		os.Getenv("REDIS_URL"),
		"Redis URL for caching")
	fs.BoolVar(&f.CompressCache,
		"compress-cache",
		false,
		"Compress cached entries")
}

func (f *CacheFlags) GetCacheClient() (cache.Cache, error) {
	if f.RedisURL == "" {
		return nil, nil
	}

	cacheClient, err := redis.NewRedisCache(f.RedisURL)
	if err != nil {
		return nil, err
	}

	if f.CompressCache {
		return compressed.NewCompressedCache(cacheClient)
	}

	return cacheClient, nil
}
