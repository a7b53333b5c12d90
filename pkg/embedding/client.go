// Package embedding provides a client for interacting with embedding models.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"pmatch-go/internal/apperr"
	"pmatch-go/internal/config"
	"pmatch-go/pkg/log"
)

// Client defines the interface for an embedding client.
type Client interface {
	// EmbedTexts 将一批文本转为向量。空白文本在调用前被过滤掉；
	// 返回的向量与保留下来的文本一一对应并保持原有相对顺序。
	// 全部为空白时直接返回空切片，不发起任何远程调用。
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	// EmbedText 是单条文本的便捷入口。
	EmbedText(ctx context.Context, text string) ([]float32, error)
	// Dimensions 返回该模型产出向量的固定维度。
	Dimensions() int
}

type openAICompatibleClient struct {
	cfg    config.EmbeddingConfig
	client *http.Client
}

// NewClient creates a new embedding client based on the provider in the config.
func NewClient(cfg config.EmbeddingConfig) Client {
	return &openAICompatibleClient{
		cfg:    cfg,
		client: &http.Client{},
	}
}

type embeddingRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func (c *openAICompatibleClient) Dimensions() int {
	return c.cfg.Dimensions
}

// EmbedText calls the OpenAI-compatible API to get the vector for a single text.
func (c *openAICompatibleClient) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, apperr.New(apperr.KindEmptyInput, "text is empty, no embedding produced")
	}
	return vecs[0], nil
}

// EmbedTexts 分批调用 Embedding API，每批最多 BatchSize 条。
func (c *openAICompatibleClient) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	// 过滤空白文本；全空时不调用远程服务
	kept := make([]string, 0, len(texts))
	for _, t := range texts {
		if strings.TrimSpace(t) != "" {
			kept = append(kept, t)
		}
	}
	if len(kept) == 0 {
		return [][]float32{}, nil
	}

	log.Infof("[EmbeddingClient] 开始调用 Embedding API, model: %s, texts: %d", c.cfg.Model, len(kept))

	out := make([][]float32, 0, len(kept))
	for start := 0; start < len(kept); start += c.cfg.BatchSize {
		end := start + c.cfg.BatchSize
		if end > len(kept) {
			end = len(kept)
		}
		batchVecs, err := c.embedBatch(ctx, kept[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, batchVecs...)
	}

	log.Infof("[EmbeddingClient] 成功获取 %d 个向量, 维度: %d", len(out), len(out[0]))
	return out, nil
}

// embedBatch 调用一次 API 并带有界重试。仅传输错误、429 和 5xx 会重试。
func (c *openAICompatibleClient) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	var lastErr error
	for attempt := 0; attempt < c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt-1)) * 500 * time.Millisecond
			log.Warnf("[EmbeddingClient] 第 %d 次重试, 等待 %s", attempt, backoff)
			select {
			case <-ctx.Done():
				return nil, apperr.Wrap(apperr.KindEmbeddingUnavailable, "embedding call cancelled", ctx.Err())
			case <-time.After(backoff):
			}
		}

		vecs, retryable, err := c.doEmbed(ctx, batch)
		if err == nil {
			return vecs, nil
		}
		lastErr = err
		if !retryable {
			break
		}
	}
	return nil, lastErr
}

func (c *openAICompatibleClient) doEmbed(ctx context.Context, batch []string) (vecs [][]float32, retryable bool, err error) {
	reqBody := embeddingRequest{
		Model:      c.cfg.Model,
		Input:      batch,
		Dimensions: c.cfg.Dimensions,
	}

	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, false, fmt.Errorf("failed to marshal embedding request: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, "POST", c.cfg.BaseURL+"/embeddings", bytes.NewReader(reqBytes))
	if err != nil {
		return nil, false, fmt.Errorf("failed to create embedding request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		log.Errorf("[EmbeddingClient] 调用 Embedding API 失败, error: %v", err)
		return nil, true, apperr.Wrap(apperr.KindEmbeddingUnavailable, "failed to call embedding api", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Errorf("[EmbeddingClient] Embedding API 返回非 200 状态码: %s", resp.Status)
		// 429 与 5xx 属于瞬时失败可以重试；其余 4xx（鉴权、参数错误）重试无意义
		transient := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return nil, transient, apperr.New(apperr.KindEmbeddingUnavailable,
			fmt.Sprintf("embedding api returned status %s", resp.Status))
	}

	var embeddingResp embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&embeddingResp); err != nil {
		log.Errorf("[EmbeddingClient] 解析 Embedding API 响应失败, error: %v", err)
		return nil, false, apperr.Wrap(apperr.KindEmbeddingUnavailable, "failed to decode embedding response", err)
	}

	if len(embeddingResp.Data) != len(batch) {
		log.Errorf("[EmbeddingClient] Embedding API 返回数量不符, want: %d, got: %d", len(batch), len(embeddingResp.Data))
		return nil, false, apperr.New(apperr.KindEmbeddingUnavailable, "embedding api returned wrong number of vectors")
	}

	// 按 index 恢复输入顺序，服务端可能乱序返回
	sort.Slice(embeddingResp.Data, func(i, j int) bool {
		return embeddingResp.Data[i].Index < embeddingResp.Data[j].Index
	})

	vecs = make([][]float32, 0, len(embeddingResp.Data))
	for _, d := range embeddingResp.Data {
		if len(d.Embedding) == 0 {
			log.Warnf("[EmbeddingClient] Embedding API 返回了空的向量数据")
			return nil, false, apperr.New(apperr.KindEmbeddingUnavailable, "received empty embedding from api")
		}
		if c.cfg.Dimensions > 0 && len(d.Embedding) != c.cfg.Dimensions {
			log.Errorf("[EmbeddingClient] 向量维度与配置不一致, want: %d, got: %d", c.cfg.Dimensions, len(d.Embedding))
			return nil, false, apperr.New(apperr.KindDimensionMismatch,
				fmt.Sprintf("embedding dimension %d does not match configured %d", len(d.Embedding), c.cfg.Dimensions))
		}
		vecs = append(vecs, d.Embedding)
	}
	return vecs, false, nil
}
