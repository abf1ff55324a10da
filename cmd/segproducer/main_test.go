package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndnchain/hcfetch/ndn"
)

func TestNotFoundErrorMessage(t *testing.T) {
	err := &notFoundError{path: "/tmp/missing.bin"}
	assert.Contains(t, err.Error(), "/tmp/missing.bin")
}

func TestPublishCacheRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := publishCachePath(dir, "/demo/object")
	content := []byte("hello world")
	packets := []ndn.Data{{Name: ndn.NameFromString("/demo/object").Append(ndn.SegmentComponent(0)), Content: content}}

	_, ok := loadCachedPublish(path, content)
	assert.False(t, ok, "no cache file yet")

	require.NoError(t, savePublishCache(path, content, packets))

	got, ok := loadCachedPublish(path, content)
	require.True(t, ok)
	assert.Equal(t, packets, got)

	_, ok = loadCachedPublish(path, []byte("different content"))
	assert.False(t, ok, "changed content must miss the cache")
}

func TestPublishCachePathIsStablePerName(t *testing.T) {
	dir := t.TempDir()
	a := publishCachePath(dir, "/demo/object")
	b := publishCachePath(dir, "/demo/object")
	assert.Equal(t, a, b)
	assert.Equal(t, dir, filepath.Dir(a))

	c := publishCachePath(dir, "/demo/other")
	assert.NotEqual(t, a, c)
}
