// Package es 提供了与 Elasticsearch 交互的客户端功能。
// 画像向量以 dense_vector 存储并用 cosine 相似度建索引；
// 机构过滤条件下推到 kNN 查询内部，top-k 在过滤后的候选集上计算。
package es

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"pmatch-go/internal/config"
	"pmatch-go/internal/model"
	"pmatch-go/pkg/log"
)

// Client 封装了画像向量索引的全部访问。
type Client struct {
	es        *elasticsearch.Client
	indexName string
	dims      int
}

// Hit 是一条 kNN 命中。Score 是 Elasticsearch 的原始 _score，
// cosine 相似度下为 (1 + cos) / 2，换算由检索服务负责。
type Hit struct {
	Profile model.EsProfile
	Score   float64
}

// NewClient 初始化 Elasticsearch 客户端并确保画像索引存在。
// dims 是向量维度，必须与 Embedding 模型的输出一致。
func NewClient(esCfg config.ElasticsearchConfig, dims int) (*Client, error) {
	cfg := elasticsearch.Config{
		Addresses: []string{esCfg.Addresses},
		Username:  esCfg.Username,
		Password:  esCfg.Password,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	}
	esClient, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, err
	}

	c := &Client{es: esClient, indexName: esCfg.IndexName, dims: dims}
	if err := c.createIndexIfNotExists(); err != nil {
		return nil, err
	}
	return c, nil
}

// createIndexIfNotExists 检查索引是否存在，如果不存在则创建它。
func (c *Client) createIndexIfNotExists() error {
	res, err := c.es.Indices.Exists([]string{c.indexName})
	if err != nil {
		log.Errorf("检查索引是否存在时出错: %v", err)
		return err
	}
	if !res.IsError() && res.StatusCode == http.StatusOK {
		log.Infof("索引 '%s' 已存在", c.indexName)
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		log.Errorf("检查索引 '%s' 是否存在时收到意外的状态码: %d", c.indexName, res.StatusCode)
		return fmt.Errorf("检查索引是否存在时收到意外的状态码: %d", res.StatusCode)
	}

	// 向量维度由 Embedding 模型决定，similarity 选 cosine 与评分约定对齐
	mapping := fmt.Sprintf(`{
		"mappings": {
			"properties": {
				"profile_id":    { "type": "keyword" },
				"name":          { "type": "text" },
				"title":         { "type": "keyword" },
				"research_area": { "type": "text" },
				"institution":   { "type": "keyword" },
				"country":       { "type": "keyword" },
				"profile_url":   { "type": "keyword" },
				"embedding": {
					"type": "dense_vector",
					"dims": %d,
					"index": true,
					"similarity": "cosine"
				},
				"model_version": { "type": "keyword" }
			}
		}
	}`, c.dims)

	res, err = c.es.Indices.Create(
		c.indexName,
		c.es.Indices.Create.WithBody(strings.NewReader(mapping)),
	)
	if err != nil {
		log.Errorf("创建索引 '%s' 失败: %v", c.indexName, err)
		return err
	}
	if res.IsError() {
		log.Errorf("创建索引 '%s' 时 Elasticsearch 返回错误: %s", c.indexName, res.String())
		return errors.New("创建索引时 Elasticsearch 返回错误")
	}

	log.Infof("索引 '%s' 创建成功", c.indexName)
	return nil
}

// IndexProfile 将画像文档写入索引，以 profile_id 作为文档 ID 保证幂等覆盖。
func (c *Client) IndexProfile(ctx context.Context, doc model.EsProfile) error {
	if len(doc.Embedding) != c.dims {
		return fmt.Errorf("embedding dimension %d does not match index dims %d", len(doc.Embedding), c.dims)
	}

	docBytes, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	req := esapi.IndexRequest{
		Index:      c.indexName,
		DocumentID: doc.ProfileID,
		Body:       bytes.NewReader(docBytes),
		Refresh:    "true",
	}

	res, err := req.Do(ctx, c.es)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		log.Errorf("索引画像文档到 Elasticsearch 出错: %s", res.String())
		return errors.New("failed to index profile document")
	}
	return nil
}

// DeleteProfile 从索引中删除画像文档；文档不存在视为成功。
func (c *Client) DeleteProfile(ctx context.Context, profileID string) error {
	req := esapi.DeleteRequest{
		Index:      c.indexName,
		DocumentID: profileID,
		Refresh:    "true",
	}

	res, err := req.Do(ctx, c.es)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() && res.StatusCode != http.StatusNotFound {
		log.Errorf("从 Elasticsearch 删除画像文档出错: %s", res.String())
		return errors.New("failed to delete profile document")
	}
	return nil
}

// KnnSearch 执行 kNN 向量检索。institution 非空时过滤条件进入 kNN
// 的 filter 上下文，保证 k 个近邻从满足过滤的文档中选出。
func (c *Client) KnnSearch(ctx context.Context, queryVector []float32, k int, institution string) ([]Hit, error) {
	if len(queryVector) != c.dims {
		return nil, fmt.Errorf("query vector dimension %d does not match index dims %d", len(queryVector), c.dims)
	}

	knn := map[string]interface{}{
		"field":          "embedding",
		"query_vector":   queryVector,
		"k":              k,
		"num_candidates": k * 10,
	}
	if institution != "" {
		knn["filter"] = map[string]interface{}{
			"term": map[string]interface{}{"institution": institution},
		}
	}

	esQuery := map[string]interface{}{
		"knn":  knn,
		"size": k,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(esQuery); err != nil {
		return nil, fmt.Errorf("failed to encode es query: %w", err)
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(c.indexName),
		c.es.Search.WithBody(&buf),
	)
	if err != nil {
		log.Errorf("向 Elasticsearch 发送 kNN 检索请求失败: %v", err)
		return nil, fmt.Errorf("elasticsearch search failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		log.Errorf("Elasticsearch 返回错误: %s", res.String())
		return nil, fmt.Errorf("elasticsearch returned an error: %s", res.String())
	}

	var esResponse struct {
		Hits struct {
			Hits []struct {
				Source model.EsProfile `json:"_source"`
				Score  float64         `json:"_score"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&esResponse); err != nil {
		return nil, fmt.Errorf("failed to decode es response: %w", err)
	}

	hits := make([]Hit, 0, len(esResponse.Hits.Hits))
	for _, h := range esResponse.Hits.Hits {
		hits = append(hits, Hit{Profile: h.Source, Score: h.Score})
	}
	return hits, nil
}
