package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"musicroom-core/internal/config"
	"musicroom-core/internal/media"
)

func TestNewSearcher(t *testing.T) {
	assert.Nil(t, newSearcher(config.Config{}, nil))

	s := newSearcher(config.Config{YouTubeAPIKey: "key"}, nil)
	assert.IsType(t, &media.CachedSearcher{}, s)
}
