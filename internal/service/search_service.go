// Package service 提供了画像匹配相关的业务逻辑。
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"pmatch-go/internal/apperr"
	"pmatch-go/internal/model"
	"pmatch-go/internal/repository"
	"pmatch-go/pkg/es"
	"pmatch-go/pkg/log"
)

// ProfileSearcher 抽象了向量索引的 kNN 查询，由 pkg/es 的客户端实现。
type ProfileSearcher interface {
	KnnSearch(ctx context.Context, queryVector []float32, k int, institution string) ([]es.Hit, error)
}

// InstitutionCache 缓存去重后的机构集合，用于过滤条件校验。
type InstitutionCache interface {
	Get(ctx context.Context) ([]string, bool)
	Set(ctx context.Context, institutions []string)
}

// SearchService 接口定义了向量相似度检索操作。
type SearchService interface {
	// Search 对画像索引执行 kNN 检索，返回按相似度降序、ID 升序稳定排列的命中。
	Search(ctx context.Context, queryVector []float32, topK int, filters model.SearchFilters) ([]model.SearchHit, error)
	// ListInstitutions 返回可用作过滤条件的机构集合。
	ListInstitutions(ctx context.Context) ([]string, error)
}

type searchService struct {
	searcher    ProfileSearcher
	profileRepo repository.ProfileRepository
	instCache   InstitutionCache
	dims        int
	maxTopK     int
}

// NewSearchService 创建一个新的 SearchService 实例。
func NewSearchService(searcher ProfileSearcher, profileRepo repository.ProfileRepository, instCache InstitutionCache, dims, maxTopK int) SearchService {
	return &searchService{
		searcher:    searcher,
		profileRepo: profileRepo,
		instCache:   instCache,
		dims:        dims,
		maxTopK:     maxTopK,
	}
}

// Search 执行一次向量近邻检索。
// 机构过滤下推到 kNN 查询内部，top-k 在过滤后的候选集上计算；
// 同一索引快照与同一查询向量下结果可重复（得分降序，ID 升序决胜）。
func (s *searchService) Search(ctx context.Context, queryVector []float32, topK int, filters model.SearchFilters) ([]model.SearchHit, error) {
	if topK < 1 || topK > s.maxTopK {
		return nil, apperr.New(apperr.KindInvalidArgument,
			fmt.Sprintf("topK must be between 1 and %d", s.maxTopK))
	}
	if len(queryVector) != s.dims {
		return nil, apperr.New(apperr.KindDimensionMismatch,
			fmt.Sprintf("query vector dimension %d does not match configured %d", len(queryVector), s.dims))
	}

	institution, err := s.resolveInstitution(ctx, filters.Institution)
	if err != nil {
		return nil, err
	}

	log.Infof("[SearchService] 开始 kNN 检索, topK: %d, institution: '%s'", topK, institution)
	rawHits, err := s.searcher.KnnSearch(ctx, queryVector, topK, institution)
	if err != nil {
		return nil, fmt.Errorf("knn search failed: %w", err)
	}

	hits := make([]model.SearchHit, 0, len(rawHits))
	for _, h := range rawHits {
		hits = append(hits, model.SearchHit{
			ID:           h.Profile.ProfileID,
			Name:         h.Profile.Name,
			Title:        h.Profile.Title,
			ResearchArea: h.Profile.ResearchArea,
			Institution:  h.Profile.Institution,
			Country:      h.Profile.Country,
			ProfileURL:   h.Profile.ProfileURL,
			// Elasticsearch 的 cosine kNN 得分是 (1 + cos) / 2，
			// 换算回原始余弦相似度，即 1 - 余弦距离
			Score: 2*h.Score - 1,
		})
	}

	// 得分降序，ID 升序决胜，保证确定性排序
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})

	if len(hits) > topK {
		hits = hits[:topK]
	}

	log.Infof("[SearchService] kNN 检索完成, 返回 %d 条命中", len(hits))
	return hits, nil
}

// ListInstitutions 返回机构集合，优先走缓存。
func (s *searchService) ListInstitutions(ctx context.Context) ([]string, error) {
	if cached, ok := s.instCache.Get(ctx); ok {
		return cached, nil
	}
	institutions, err := s.profileRepo.ListDistinctInstitutions()
	if err != nil {
		return nil, fmt.Errorf("failed to list institutions: %w", err)
	}
	s.instCache.Set(ctx, institutions)
	return institutions, nil
}

// resolveInstitution 校验机构过滤条件并归一到库中的标准写法。
// 未知机构返回 InvalidFilter，并附带合法取值集合供调用方自纠。
func (s *searchService) resolveInstitution(ctx context.Context, institution string) (string, error) {
	trimmed := strings.TrimSpace(institution)
	if trimmed == "" {
		return "", nil
	}

	available, err := s.ListInstitutions(ctx)
	if err != nil {
		return "", err
	}

	for _, known := range available {
		if strings.EqualFold(known, trimmed) {
			return known, nil
		}
	}

	log.Warnf("[SearchService] 未知的机构过滤条件: '%s'", trimmed)
	return "", apperr.New(apperr.KindInvalidFilter,
		fmt.Sprintf("institution not found: %s", trimmed)).
		WithDetail("available_institutions", available)
}

// redisInstitutionCache 是 InstitutionCache 的 Redis 实现。
type redisInstitutionCache struct {
	rdb *redis.Client
	ttl time.Duration
}

const institutionCacheKey = "pmatch:institutions"

// NewRedisInstitutionCache 创建基于 Redis 的机构集合缓存。
func NewRedisInstitutionCache(rdb *redis.Client) InstitutionCache {
	return &redisInstitutionCache{rdb: rdb, ttl: 10 * time.Minute}
}

func (c *redisInstitutionCache) Get(ctx context.Context) ([]string, bool) {
	raw, err := c.rdb.Get(ctx, institutionCacheKey).Result()
	if err != nil {
		return nil, false
	}
	var institutions []string
	if err := json.Unmarshal([]byte(raw), &institutions); err != nil {
		return nil, false
	}
	return institutions, true
}

func (c *redisInstitutionCache) Set(ctx context.Context, institutions []string) {
	raw, err := json.Marshal(institutions)
	if err != nil {
		return
	}
	// 缓存写失败只影响性能，不影响正确性
	if err := c.rdb.Set(ctx, institutionCacheKey, raw, c.ttl).Err(); err != nil {
		log.Warnf("[SearchService] 写入机构缓存失败: %v", err)
	}
}
