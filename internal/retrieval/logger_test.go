package retrieval

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryLogger_Entry(t *testing.T) {
	var buf bytes.Buffer
	logger := NewQueryLogger(&buf)

	before := time.Now()
	logger.Log(QueryLogEntry{
		Query:         "screen flickering ThinkPad",
		TopK:          3,
		NumResults:    2,
		TopScore:      0.82,
		Reranked:      true,
		Duration:      1500 * time.Millisecond,
		CorrelationID: "req-42",
	})

	var raw map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &raw))
	for _, key := range []string{"timestamp", "query", "top_k", "num_results", "top_score", "reranked", "duration_ns", "latency_ms", "correlation_id"} {
		assert.Contains(t, raw, key)
	}

	var entry QueryLogEntry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "screen flickering ThinkPad", entry.Query)
	assert.Equal(t, 3, entry.TopK)
	assert.Equal(t, 2, entry.NumResults)
	assert.InDelta(t, 0.82, entry.TopScore, 1e-6)
	assert.True(t, entry.Reranked)
	assert.Equal(t, 1500*time.Millisecond, entry.Duration)
	assert.Equal(t, int64(1500), entry.LatencyMs)
	assert.Equal(t, "req-42", entry.CorrelationID)
	assert.False(t, entry.Timestamp.Before(before.Truncate(time.Second)))
}

func TestQueryLogger_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "nested", "query.log")

	logger, err := NewFileQueryLogger(path)
	require.NoError(t, err)
	logger.Log(QueryLogEntry{Query: "vpn drops", TopK: 3})
	require.NoError(t, logger.Close())

	// Reopening appends rather than truncates.
	logger, err = NewFileQueryLogger(path)
	require.NoError(t, err)
	logger.Log(QueryLogEntry{Query: "battery drain", TopK: 3, NumResults: 1})
	require.NoError(t, logger.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var queries []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var entry QueryLogEntry
		require.NoError(t, json.Unmarshal(sc.Bytes(), &entry))
		queries = append(queries, entry.Query)
	}
	require.NoError(t, sc.Err())
	assert.Equal(t, []string{"vpn drops", "battery drain"}, queries)
}

func TestQueryLogger_Close(t *testing.T) {
	t.Run("Writer Logger", func(t *testing.T) {
		assert.NoError(t, NewQueryLogger(&bytes.Buffer{}).Close())
	})

	t.Run("File Closed", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "query.log")
		logger, err := NewFileQueryLogger(path)
		require.NoError(t, err)
		require.NoError(t, logger.Close())
		assert.ErrorIs(t, logger.Close(), os.ErrClosed)
	})
}

func TestQueryLogger_ThreadSafety(t *testing.T) {
	var buf bytes.Buffer
	logger := NewQueryLogger(&buf)

	const workers, perWorker = 20, 50
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				logger.Log(QueryLogEntry{Query: "wifi", TopK: w, NumResults: j, Duration: time.Millisecond})
			}
		}(w)
	}
	wg.Wait()

	dec := json.NewDecoder(&buf)
	count := 0
	for dec.More() {
		var entry QueryLogEntry
		require.NoError(t, dec.Decode(&entry), "entry %d", count)
		assert.Equal(t, int64(1), entry.LatencyMs)
		count++
	}
	assert.Equal(t, workers*perWorker, count)
}
