package service

import (
	"context"
	"crypto/md5"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"pmatch-go/internal/apperr"
	"pmatch-go/internal/model"
	"pmatch-go/internal/repository"
	"pmatch-go/pkg/log"
	"pmatch-go/pkg/tasks"
)

// EmbedTaskProducer 抽象了向量化任务的投递，由 pkg/kafka 的生产者实现。
type EmbedTaskProducer interface {
	ProduceEmbedTask(ctx context.Context, task tasks.ProfileEmbedTask) error
}

// IngestService 接口定义了画像摄入操作。
// 写路径：先落关系库（last-write-wins），有摘要时再投递异步向量化任务；
// 摘要为空的画像不会携带向量，也不进入向量索引。
type IngestService interface {
	// IngestProfile 摄入一条画像，返回确定性生成的画像 ID。
	IngestProfile(ctx context.Context, req model.IngestProfileRequest) (string, error)
	// SeedFromCSV 从 CSV 文件批量导入画像，重复导入幂等。
	SeedFromCSV(ctx context.Context, csvPath string) (int, error)
	// CleanupEmptyProfiles 清理没有摘要的历史记录。
	CleanupEmptyProfiles(ctx context.Context) (int64, error)
}

type ingestService struct {
	profileRepo repository.ProfileRepository
	producer    EmbedTaskProducer
}

// NewIngestService 创建一个新的 IngestService 实例。
func NewIngestService(profileRepo repository.ProfileRepository, producer EmbedTaskProducer) IngestService {
	return &ingestService{profileRepo: profileRepo, producer: producer}
}

// NaturalKeyID 由自然键（档案 URL、邮箱、姓名中第一个非空者）生成确定性 ID，
// 保证同一研究者重复摄入时落在同一行。
func NaturalKeyID(profileURL, email, name string) string {
	key := strings.TrimSpace(profileURL)
	if key == "" {
		key = strings.TrimSpace(email)
	}
	if key == "" {
		key = strings.TrimSpace(name)
	}
	return fmt.Sprintf("%x", md5.Sum([]byte(key)))
}

// IngestProfile 写入画像并在有摘要时投递向量化任务。
func (s *ingestService) IngestProfile(ctx context.Context, req model.IngestProfileRequest) (string, error) {
	if strings.TrimSpace(req.ProfileURL) == "" &&
		strings.TrimSpace(req.Email) == "" &&
		strings.TrimSpace(req.Name) == "" {
		return "", apperr.New(apperr.KindInvalidArgument,
			"profile needs at least one identifying key (profileUrl, email or name)")
	}

	// 过滤空白摘要并截断到上限
	abstracts := make([]string, 0, len(req.Abstracts))
	for _, a := range req.Abstracts {
		if strings.TrimSpace(a) != "" {
			abstracts = append(abstracts, a)
		}
		if len(abstracts) == model.MaxAbstractsPerProfile {
			break
		}
	}

	profile := &model.Profile{
		ID:           NaturalKeyID(req.ProfileURL, req.Email, req.Name),
		Name:         req.Name,
		Email:        req.Email,
		Title:        req.Title,
		ResearchArea: req.ResearchArea,
		Institution:  req.Institution,
		Country:      req.Country,
		ProfileURL:   req.ProfileURL,
		Abstracts:    abstracts,
		// 向量由后台任务计算；摘要为空时保持 NULL，不携带过期向量
		Embedding: nil,
	}

	if err := s.profileRepo.Upsert(profile); err != nil {
		return "", fmt.Errorf("failed to upsert profile: %w", err)
	}
	log.Infof("[IngestService] 画像已写入, ID: %s, Name: %s, 摘要数: %d", profile.ID, profile.Name, len(abstracts))

	if len(abstracts) > 0 {
		task := tasks.ProfileEmbedTask{
			ProfileID:  profile.ID,
			ProfileURL: profile.ProfileURL,
			Name:       profile.Name,
		}
		if err := s.producer.ProduceEmbedTask(ctx, task); err != nil {
			// 行已落库，任务投递失败只记录；清理任务或重新摄入会补算向量
			log.Errorf("[IngestService] 投递向量化任务失败, ProfileID: %s, Error: %v", profile.ID, err)
		}
	}

	return profile.ID, nil
}

// SeedFromCSV 读取采集产出的 CSV 并逐行摄入。
// 期望的列: name,email,title,research_area,institution,country,profile_url,abstracts
// 其中 abstracts 是 JSON 数组字符串。
func (s *ingestService) SeedFromCSV(ctx context.Context, csvPath string) (int, error) {
	f, err := os.Open(csvPath)
	if err != nil {
		return 0, fmt.Errorf("failed to open seed csv: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	header, err := reader.Read()
	if err != nil {
		return 0, fmt.Errorf("failed to read csv header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(strings.ToLower(name))] = i
	}

	field := func(row []string, name string) string {
		if idx, ok := col[name]; ok && idx < len(row) {
			return strings.TrimSpace(row[idx])
		}
		return ""
	}

	imported := 0
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Warnf("[IngestService] 跳过无法解析的 CSV 行: %v", err)
			continue
		}

		var abstracts []string
		if raw := field(row, "abstracts"); strings.HasPrefix(raw, "[") {
			if err := json.Unmarshal([]byte(raw), &abstracts); err != nil {
				log.Warnf("[IngestService] 摘要字段解析失败, 按空处理: %v", err)
				abstracts = nil
			}
		}

		req := model.IngestProfileRequest{
			Name:         field(row, "name"),
			Email:        field(row, "email"),
			Title:        field(row, "title"),
			ResearchArea: field(row, "research_area"),
			Institution:  field(row, "institution"),
			Country:      field(row, "country"),
			ProfileURL:   field(row, "profile_url"),
			Abstracts:    abstracts,
		}

		if _, err := s.IngestProfile(ctx, req); err != nil {
			log.Warnf("[IngestService] 跳过无法摄入的行 (name=%s): %v", req.Name, err)
			continue
		}
		imported++
	}

	// 导入完毕后清一次无摘要的记录，避免空画像污染机构过滤集合
	if _, err := s.CleanupEmptyProfiles(ctx); err != nil {
		log.Warnf("[IngestService] 导入后清理失败: %v", err)
	}

	log.Infof("[IngestService] 种子导入完成, 共摄入 %d 条画像", imported)
	return imported, nil
}

// CleanupEmptyProfiles 删除没有任何摘要的画像。
func (s *ingestService) CleanupEmptyProfiles(ctx context.Context) (int64, error) {
	removed, err := s.profileRepo.DeleteWithoutAbstracts()
	if err != nil {
		return 0, fmt.Errorf("failed to clean up empty profiles: %w", err)
	}
	if removed > 0 {
		log.Infof("[IngestService] 已清理 %d 条无摘要画像", removed)
	}
	return removed, nil
}
