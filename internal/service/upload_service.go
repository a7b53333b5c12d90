package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"pmatch-go/internal/apperr"
	"pmatch-go/internal/model"
	"pmatch-go/internal/repository"
	"pmatch-go/pkg/embedding"
	"pmatch-go/pkg/log"
	"pmatch-go/pkg/token"
	"pmatch-go/pkg/vector"
)

// ObjectStore 抽象对象存储，由 pkg/storage 的 MinIO 封装实现。
type ObjectStore interface {
	PutDocument(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) error
	GetPresignedURL(ctx context.Context, objectName string, expiry time.Duration) (string, error)
}

// TextExtractor 抽象文档解析，由 pkg/tika 的客户端实现。
type TextExtractor interface {
	ExtractText(ctx context.Context, reader io.Reader, fileName string) (string, error)
	ExtractPageCount(ctx context.Context, reader io.Reader, fileName string) (int, error)
}

// 归档文档下载链接的有效期
const documentURLExpiry = 24 * time.Hour

// UploadResult 是一次文档上传的处理结果。
type UploadResult struct {
	UserID       string             `json:"userId"`
	Token        string             `json:"token"`
	DetectedKind model.DocumentKind `json:"detectedKind"`
	Title        string             `json:"title"`
	HasEmbedding bool               `json:"hasEmbedding"`
	// DocumentURL 是归档原始文档的限时下载链接，归档失败时为空。
	DocumentURL string `json:"documentUrl,omitempty"`
}

// UploadService 接口定义了上传文档并构建用户查询向量的操作。
type UploadService interface {
	// ProcessDocument 存储文档、抽取文本并同步计算用户向量。
	// userID 为空时开启新会话并签发新 ID。
	ProcessDocument(ctx context.Context, userID, fileName, contentType string, data []byte) (*UploadResult, error)
}

type uploadService struct {
	userRepo       repository.UserRepository
	store          ObjectStore
	extractor      TextExtractor
	embedder       embedding.Client
	sessionManager *token.SessionManager
}

// NewUploadService 创建一个新的 UploadService 实例。
func NewUploadService(
	userRepo repository.UserRepository,
	store ObjectStore,
	extractor TextExtractor,
	embedder embedding.Client,
	sessionManager *token.SessionManager,
) UploadService {
	return &uploadService{
		userRepo:       userRepo,
		store:          store,
		extractor:      extractor,
		embedder:       embedder,
		sessionManager: sessionManager,
	}
}

func (s *uploadService) ProcessDocument(ctx context.Context, userID, fileName, contentType string, data []byte) (*UploadResult, error) {
	if len(data) == 0 {
		return nil, apperr.New(apperr.KindEmptyInput, "uploaded document is empty")
	}
	if userID == "" {
		userID = uuid.NewString()
	}

	objectName := fmt.Sprintf("uploads/%s/%s", userID, path.Base(fileName))
	var documentURL string
	if err := s.store.PutDocument(ctx, objectName, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		// 原始文件只用于留档，存储失败不阻断解析
		log.Errorf("[UploadService] 原始文档归档失败, Object: %s, Error: %v", objectName, err)
	} else {
		documentURL, err = s.store.GetPresignedURL(ctx, objectName, documentURLExpiry)
		if err != nil {
			log.Warnf("[UploadService] 生成文档下载链接失败, Object: %s, Error: %v", objectName, err)
			documentURL = ""
		}
	}

	pageCount, err := s.extractor.ExtractPageCount(ctx, bytes.NewReader(data), fileName)
	if err != nil {
		log.Warnf("[UploadService] 页数提取失败, 按 0 页处理: %v", err)
		pageCount = 0
	}
	kind := model.DetectKind(pageCount)

	content, err := s.extractor.ExtractText(ctx, bytes.NewReader(data), fileName)
	if err != nil {
		return nil, fmt.Errorf("failed to extract document text: %w", err)
	}
	content = strings.TrimSpace(content)

	title := firstNonEmptyLine(content)
	if title == "" {
		title = fileName
	}

	var emb model.Vector
	if content != "" {
		emb, err = s.embedDocument(ctx, content)
		if err != nil {
			return nil, err
		}
	}

	user := &model.User{
		ID:           userID,
		Filename:     fileName,
		ContentType:  contentType,
		DetectedKind: kind,
		Title:        title,
		Content:      content,
		Embedding:    emb,
	}
	if err := s.userRepo.Upsert(user); err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}

	sessionToken, err := s.sessionManager.Issue(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue session token: %w", err)
	}

	log.Infof("[UploadService] 文档处理完成, UserID: %s, Kind: %s, 页数: %d, 有向量: %v",
		userID, kind, pageCount, emb != nil)

	return &UploadResult{
		UserID:       userID,
		Token:        sessionToken,
		DetectedKind: kind,
		Title:        title,
		HasEmbedding: emb != nil,
		DocumentURL:  documentURL,
	}, nil
}

// embedDocument 将长文本切块向量化后做均值聚合。
// 聚合后仍是零向量时视为无向量，后续匹配会以 NoEmbedding 拒绝。
func (s *uploadService) embedDocument(ctx context.Context, content string) (model.Vector, error) {
	chunks := splitText(content, 1000, 100)
	vecs, err := s.embedder.EmbedTexts(ctx, chunks)
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, nil
	}
	for i, v := range vecs {
		vecs[i] = vector.Normalize(v)
	}
	pooled, err := vector.MeanPool(vecs, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to pool document vectors: %w", err)
	}
	if vector.IsZero(pooled) {
		return nil, nil
	}
	return pooled, nil
}

func firstNonEmptyLine(content string) string {
	for _, line := range strings.Split(content, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

// splitText 按固定窗口和重叠切分文本，按 rune 计数避免截断多字节字符。
func splitText(text string, chunkSize, overlap int) []string {
	runes := []rune(text)
	if len(runes) <= chunkSize {
		return []string{text}
	}
	step := chunkSize - overlap
	chunks := make([]string, 0, len(runes)/step+1)
	for start := 0; start < len(runes); start += step {
		end := start + chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}
