package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pmatch-go/internal/apperr"
	"pmatch-go/internal/config"
	"pmatch-go/pkg/log"
)

func TestMain(m *testing.M) {
	log.Init("error", "console", "")
	os.Exit(m.Run())
}

type fakeItem struct {
	Index     int       `json:"index"`
	Embedding []float32 `json:"embedding"`
}

func newTestClient(baseURL string, batchSize, dims, retries int) Client {
	return NewClient(config.EmbeddingConfig{
		APIKey:     "test-key",
		BaseURL:    baseURL,
		Model:      "text-embedding-3-small",
		Dimensions: dims,
		BatchSize:  batchSize,
		Timeout:    2 * time.Second,
		MaxRetries: retries,
	})
}

func TestEmbedTextsAllBlankSkipsNetwork(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, 64, 3, 3)
	vecs, err := c.EmbedTexts(context.Background(), []string{"", "   ", "\n\t"})

	require.NoError(t, err)
	assert.Empty(t, vecs)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestEmbedTextsPreservesOrderWithShuffledResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input []string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		// 故意乱序返回，index 标记真实位置
		items := make([]fakeItem, 0, len(req.Input))
		for i := len(req.Input) - 1; i >= 0; i-- {
			items = append(items, fakeItem{Index: i, Embedding: []float32{float32(i), 0, 0}})
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"data": items})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, 64, 3, 3)
	vecs, err := c.EmbedTexts(context.Background(), []string{"x", "y", "z"})

	require.NoError(t, err)
	require.Len(t, vecs, 3)
	for i, v := range vecs {
		assert.Equal(t, float32(i), v[0])
	}
}

func TestEmbedTextsBatches(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		var req struct {
			Input []string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.LessOrEqual(t, len(req.Input), 2)

		items := make([]fakeItem, len(req.Input))
		for i := range req.Input {
			items[i] = fakeItem{Index: i, Embedding: []float32{1, 2, 3}}
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"data": items})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, 2, 3, 3)
	vecs, err := c.EmbedTexts(context.Background(), []string{"a", "b", "c", "d", "e"})

	require.NoError(t, err)
	assert.Len(t, vecs, 5)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestEmbedTextsFiltersBlanksKeepsRelativeOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input []string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"first", "second"}, req.Input)

		items := make([]fakeItem, len(req.Input))
		for i := range req.Input {
			items[i] = fakeItem{Index: i, Embedding: []float32{float32(i), 1, 1}}
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"data": items})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, 64, 3, 3)
	vecs, err := c.EmbedTexts(context.Background(), []string{"first", "  ", "second"})

	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, float32(0), vecs[0][0])
	assert.Equal(t, float32(1), vecs[1][0])
}

func TestEmbedTextsRetriesTransientFailure(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []fakeItem{{Index: 0, Embedding: []float32{1, 1, 1}}},
		})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, 64, 3, 3)
	vecs, err := c.EmbedTexts(context.Background(), []string{"hello"})

	require.NoError(t, err)
	assert.Len(t, vecs, 1)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestEmbedTextsDoesNotRetryAuthFailure(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, 64, 3, 3)
	_, err := c.EmbedTexts(context.Background(), []string{"hello"})

	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindEmbeddingUnavailable))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestEmbedTextsDimensionMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []fakeItem{{Index: 0, Embedding: []float32{1, 1}}},
		})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, 64, 3, 3)
	_, err := c.EmbedTexts(context.Background(), []string{"hello"})

	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindDimensionMismatch))
}
