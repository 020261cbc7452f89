// Package compressed wraps another cache with gzip compression and checksum
// validation, for large cached payloads like full exchange-rate tables.
package compressed

import (
	"bytes"
	"compress/gzip"
	"crypto/md5" // nolint:gosec
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/wayfarer-travel/wayfarer/pkg/apis/cache"
)

const (
	cachePrefix = "cc:"

	// md5 digest appended to every entry.
	checksumLen = 16
)

type Cache struct {
	Cache cache.Cache
}

func NewCompressedCache(c cache.Cache) (*Cache, error) {
	return &Cache{
		Cache: c,
	}, nil
}

func (c Cache) Get(key string) ([]byte, error) {
	b, err := c.Cache.Get(cachePrefix + key)
	if err != nil {
		return nil, err
	}

	dataLen := len(b)
	if dataLen < checksumLen {
		return nil, fmt.Errorf("invalid cache item length")
	}

	data := b[:dataLen-checksumLen]
	var checksum [checksumLen]byte
	copy(checksum[:], b[dataLen-checksumLen:])
	return uncompress(data, checksum)
}

func (c Cache) Set(key string, content []byte, duration time.Duration) error {
	startLen := len(content)
	if startLen <= 0 {
		log.Warningf("Key: %s data size is 0", key)
		return nil
	}

	data, checksum, err := compress(content)
	if err != nil {
		return err
	}
	data = append(data, checksum[:]...)

	log.Debugf("Compressed cache entry %s from %d to %d bytes", key, startLen, len(data))

	return c.Cache.Set(cachePrefix+key, data, duration)
}

func compress(value []byte) ([]byte, [checksumLen]byte, error) {
	var buf bytes.Buffer
	sum := md5.Sum(value) // nolint:gosec

	zw := gzip.NewWriter(&buf)

	_, err := zw.Write(value)

	if err != nil {
		return nil, sum, err
	}

	err = zw.Close()
	if err != nil {
		return nil, sum, err
	}
	return buf.Bytes(), sum, nil
}

func uncompress(value []byte, vSum [checksumLen]byte) ([]byte, error) {
	var buf, uncompressed bytes.Buffer
	buf.Write(value)

	zr, err := gzip.NewReader(&buf)

	if err != nil {
		return nil, err
	}

	_, err = uncompressed.ReadFrom(zr)
	if err != nil {
		return nil, err
	}

	if err := zr.Close(); err != nil {
		return nil, err
	}

	ret := uncompressed.Bytes()
	sum := md5.Sum(ret) // nolint:gosec
	if sum != vSum {
		return nil, fmt.Errorf("check sum validation did not match")
	}

	return uncompressed.Bytes(), nil
}
