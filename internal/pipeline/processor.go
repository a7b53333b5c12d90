package pipeline

import (
	"context"
	"fmt"

	"pmatch-go/internal/model"
	"pmatch-go/internal/repository"
	"pmatch-go/pkg/embedding"
	"pmatch-go/pkg/log"
	"pmatch-go/pkg/tasks"
	"pmatch-go/pkg/vector"
)

// ProfileIndexer 抽象向量索引的写入，由 pkg/es 的客户端实现。
type ProfileIndexer interface {
	IndexProfile(ctx context.Context, profile model.EsProfile) error
	DeleteProfile(ctx context.Context, profileID string) error
}

// Processor 消费画像向量化任务：读取摘要、计算聚合向量、
// 回写关系库并同步到向量索引。无摘要的画像会从索引中移除。
type Processor struct {
	profileRepo  repository.ProfileRepository
	embedder     embedding.Client
	indexer      ProfileIndexer
	modelVersion string
}

// NewProcessor 创建一个新的 Processor 实例。
func NewProcessor(profileRepo repository.ProfileRepository, embedder embedding.Client, indexer ProfileIndexer, modelVersion string) *Processor {
	return &Processor{
		profileRepo:  profileRepo,
		embedder:     embedder,
		indexer:      indexer,
		modelVersion: modelVersion,
	}
}

// Process 处理一条向量化任务。返回错误时由消费端按重试策略处理。
func (p *Processor) Process(ctx context.Context, task tasks.ProfileEmbedTask) error {
	profile, err := p.profileRepo.FindByID(task.ProfileID)
	if err != nil {
		return fmt.Errorf("failed to load profile %s: %w", task.ProfileID, err)
	}

	abstracts := profile.Abstracts
	if len(abstracts) > model.MaxAbstractsPerProfile {
		abstracts = abstracts[:model.MaxAbstractsPerProfile]
	}
	if len(abstracts) == 0 {
		// 摘要被清空的画像不能留在索引里
		return p.clearEmbedding(ctx, profile)
	}

	vecs, err := p.embedder.EmbedTexts(ctx, abstracts)
	if err != nil {
		return fmt.Errorf("failed to embed abstracts for profile %s: %w", task.ProfileID, err)
	}
	if len(vecs) == 0 {
		return p.clearEmbedding(ctx, profile)
	}
	for i, v := range vecs {
		vecs[i] = vector.Normalize(v)
	}
	pooled, err := vector.MeanPool(vecs, nil)
	if err != nil {
		return fmt.Errorf("failed to pool vectors for profile %s: %w", task.ProfileID, err)
	}
	if vector.IsZero(pooled) {
		log.Warnf("[Processor] 画像 %s 聚合后为零向量, 按无向量处理", task.ProfileID)
		return p.clearEmbedding(ctx, profile)
	}

	if err := p.profileRepo.UpdateEmbedding(profile.ID, pooled, p.modelVersion); err != nil {
		return fmt.Errorf("failed to store embedding for profile %s: %w", profile.ID, err)
	}

	doc := model.EsProfile{
		ProfileID:    profile.ID,
		Name:         profile.Name,
		Title:        profile.Title,
		ResearchArea: profile.ResearchArea,
		Institution:  profile.Institution,
		Country:      profile.Country,
		ProfileURL:   profile.ProfileURL,
		Embedding:    pooled,
		ModelVersion: p.modelVersion,
	}
	if err := p.indexer.IndexProfile(ctx, doc); err != nil {
		return fmt.Errorf("failed to index profile %s: %w", profile.ID, err)
	}

	log.Infof("[Processor] 画像向量化完成, ProfileID: %s, 摘要数: %d", profile.ID, len(abstracts))
	return nil
}

func (p *Processor) clearEmbedding(ctx context.Context, profile *model.Profile) error {
	if err := p.profileRepo.UpdateEmbedding(profile.ID, nil, ""); err != nil {
		return fmt.Errorf("failed to clear embedding for profile %s: %w", profile.ID, err)
	}
	if err := p.indexer.DeleteProfile(ctx, profile.ID); err != nil {
		return fmt.Errorf("failed to remove profile %s from index: %w", profile.ID, err)
	}
	log.Infof("[Processor] 画像 %s 无摘要, 已移出向量索引", profile.ID)
	return nil
}
