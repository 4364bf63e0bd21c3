package main

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mx-pai/rss-recommendation-platform/pkg/models"
	"github.com/mx-pai/rss-recommendation-platform/pkg/store"
)

func TestNewAppWithMemoryStore(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("INGEST_STORE", "memory")

	a, err := newApp(context.Background())
	require.NoError(t, err)
	defer a.Close()

	assert.IsType(t, &store.MemoryStore{}, a.store)
	assert.Nil(t, a.generator())
	assert.False(t, a.scheduler.IsRunning())
	assert.Error(t, a.migrate(context.Background()))

	result := a.fetcher.FetchSource(context.Background(), 1)
	assert.False(t, result.Success)
	assert.Equal(t, models.ErrorKindNotFound, result.Kind)
}

func TestSourceAddCommand(t *testing.T) {
	t.Chdir(t.TempDir())

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"source", "add", "Example", "https://example.test/",
		"--store", "memory", "--type", "rss", "--feed-url", "https://example.test/feed.xml",
		"--fetch-config", `{"skip_full_text": true}`})
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
	})

	require.NoError(t, rootCmd.ExecuteContext(context.Background()))

	var src models.Source
	require.NoError(t, json.Unmarshal(out.Bytes(), &src))
	assert.Equal(t, int64(1), src.ID)
	assert.Equal(t, models.SourceTypeFeed, src.Type)
	assert.Equal(t, "https://example.test/feed.xml", src.FeedURL)
	assert.True(t, src.IsActive)
	assert.Equal(t, 60, src.FetchFrequency)
}
