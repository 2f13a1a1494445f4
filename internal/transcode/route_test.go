package transcode

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRouteExtensionDirectCopy(t *testing.T) {
	for _, ext := range []string{"mp3", "M4A", ".aac"} {
		assert.Equal(t, ActionCopy, RouteExtension(ext), ext)
	}
}

func TestRouteExtensionALAC(t *testing.T) {
	for _, ext := range []string{"flac", "wav", "aif", "aiff"} {
		assert.Equal(t, ActionTranscodeALAC, RouteExtension(ext), ext)
	}
}

func TestRouteExtensionAAC(t *testing.T) {
	for _, ext := range []string{"ogg", "opus", "wma"} {
		assert.Equal(t, ActionTranscodeAAC, RouteExtension(ext), ext)
	}
}

func TestCacheKeyOmitsBitrateWhenZero(t *testing.T) {
	assert.Equal(t, "F1:alac", CacheKey("F1", "alac", 0))
	assert.Equal(t, "F1:aac:192", CacheKey("F1", "aac", 192))
}

func TestMemoryCacheSetGetInvalidate(t *testing.T) {
	c := NewMemoryCache(time.Hour)
	_, ok := c.Get("k")
	assert.False(t, ok)

	c.Set("k", "/tmp/out.m4a")
	path, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "/tmp/out.m4a", path)

	c.Invalidate("k")
	_, ok = c.Get("k")
	assert.False(t, ok)
}
