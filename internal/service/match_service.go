package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"pmatch-go/internal/apperr"
	"pmatch-go/internal/model"
	"pmatch-go/internal/repository"
	"pmatch-go/pkg/embedding"
	"pmatch-go/pkg/log"
	"pmatch-go/pkg/vector"
)

// MatchService 接口定义了画像匹配的两个入口。
// 每次调用都是一次独立、无状态的 嵌入 → 检索 → 过滤 → 排序 遍历，
// 请求之间不保留任何状态。
type MatchService interface {
	// MatchByText 将查询文本向量化后检索相似画像。
	MatchByText(ctx context.Context, queryText string, topK int, filters model.SearchFilters) ([]model.SearchHit, error)
	// MatchByUser 复用上传会话在摄入时计算好的向量，不产生新的嵌入调用。
	MatchByUser(ctx context.Context, userID string, topK int, filters model.SearchFilters) ([]model.SearchHit, error)
}

type matchService struct {
	embeddingClient embedding.Client
	searchService   SearchService
	userRepo        repository.UserRepository
	profileRepo     repository.ProfileRepository
	maxAbstracts    int
}

// NewMatchService 创建一个新的 MatchService 实例。
func NewMatchService(
	embeddingClient embedding.Client,
	searchService SearchService,
	userRepo repository.UserRepository,
	profileRepo repository.ProfileRepository,
	maxAbstracts int,
) MatchService {
	return &matchService{
		embeddingClient: embeddingClient,
		searchService:   searchService,
		userRepo:        userRepo,
		profileRepo:     profileRepo,
		maxAbstracts:    maxAbstracts,
	}
}

// MatchByText 将查询文本嵌入为向量后委托给检索引擎。
func (s *matchService) MatchByText(ctx context.Context, queryText string, topK int, filters model.SearchFilters) ([]model.SearchHit, error) {
	if strings.TrimSpace(queryText) == "" {
		return nil, apperr.New(apperr.KindEmptyInput, "query text is empty")
	}

	log.Infof("[MatchService] 按文本匹配, query: '%s', topK: %d", queryText, topK)
	queryVector, err := s.embeddingClient.EmbedText(ctx, queryText)
	if err != nil {
		// 嵌入失败原样上抛，绝不以零向量顶替——零向量会破坏整个排序
		return nil, err
	}

	return s.search(ctx, vector.Normalize(queryVector), topK, filters)
}

// MatchByUser 取出会话的既有向量后委托给检索引擎，零新增嵌入调用。
func (s *matchService) MatchByUser(ctx context.Context, userID string, topK int, filters model.SearchFilters) ([]model.SearchHit, error) {
	log.Infof("[MatchService] 按会话匹配, userID: %s, topK: %d", userID, topK)

	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.KindNotFound, fmt.Sprintf("user not found: %s", userID))
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if !user.HasEmbedding() {
		// 上传内容为空，没有可检索的向量；与"检索失败"是不同的失败类别
		return nil, apperr.New(apperr.KindNoEmbedding,
			"user has no embedding yet, upload a document with readable content first")
	}

	return s.search(ctx, user.Embedding, topK, filters)
}

// search 执行检索并做编排层的后处理：按 ID 去重、补齐联系信息、截断摘要。
func (s *matchService) search(ctx context.Context, queryVector []float32, topK int, filters model.SearchFilters) ([]model.SearchHit, error) {
	hits, err := s.searchService.Search(ctx, queryVector, topK, filters)
	if err != nil {
		return nil, err
	}

	// 并发摄入的竞态可能在底层留下重复行，按 ID 去重兜底（保留排序靠前者）
	seen := make(map[string]struct{}, len(hits))
	deduped := hits[:0]
	for _, h := range hits {
		if _, dup := seen[h.ID]; dup {
			continue
		}
		seen[h.ID] = struct{}{}
		deduped = append(deduped, h)
	}
	hits = deduped

	if err := s.attachContactInfo(hits); err != nil {
		// 联系信息补齐失败不吞掉命中本身，记录后返回已有字段
		log.Warnf("[MatchService] 补齐联系信息失败: %v", err)
	}

	log.Infof("[MatchService] 匹配完成, 返回 %d 条结果", len(hits))
	return hits, nil
}

// attachContactInfo 从关系库批量取回邮箱与摘要等展示字段，
// 摘要数量截断到配置上限以控制响应体大小。
func (s *matchService) attachContactInfo(hits []model.SearchHit) error {
	if len(hits) == 0 {
		return nil
	}

	ids := make([]string, 0, len(hits))
	for _, h := range hits {
		ids = append(ids, h.ID)
	}

	profiles, err := s.profileRepo.FindByIDs(ids)
	if err != nil {
		return fmt.Errorf("failed to load profiles for hits: %w", err)
	}

	byID := make(map[string]model.Profile, len(profiles))
	for _, p := range profiles {
		byID[p.ID] = p
	}

	for i := range hits {
		p, ok := byID[hits[i].ID]
		if !ok {
			log.Warnf("[MatchService] 命中 %s 在关系库中不存在, 跳过补齐", hits[i].ID)
			continue
		}
		hits[i].Email = p.Email
		abstracts := []string(p.Abstracts)
		if len(abstracts) > s.maxAbstracts {
			abstracts = abstracts[:s.maxAbstracts]
		}
		hits[i].Abstracts = abstracts
	}
	return nil
}
