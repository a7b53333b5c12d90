package service

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pmatch-go/internal/apperr"
	"pmatch-go/internal/model"
	"pmatch-go/pkg/token"
)

// fakeStore 记录写入对象存储的文件。
type fakeStore struct {
	objects []string
	err     error
	urlErr  error
}

func (s *fakeStore) PutDocument(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) error {
	if s.err != nil {
		return s.err
	}
	s.objects = append(s.objects, objectName)
	return nil
}

func (s *fakeStore) GetPresignedURL(ctx context.Context, objectName string, expiry time.Duration) (string, error) {
	if s.urlErr != nil {
		return "", s.urlErr
	}
	return "https://minio.local/" + objectName + "?signed", nil
}

// fakeExtractor 返回预置的文本与页数。
type fakeExtractor struct {
	text      string
	pageCount int
	textErr   error
}

func (e *fakeExtractor) ExtractText(ctx context.Context, reader io.Reader, fileName string) (string, error) {
	if e.textErr != nil {
		return "", e.textErr
	}
	return e.text, nil
}

func (e *fakeExtractor) ExtractPageCount(ctx context.Context, reader io.Reader, fileName string) (int, error) {
	return e.pageCount, nil
}

func newTestUploadService(userRepo *fakeUserRepo, store *fakeStore, extractor *fakeExtractor, embedder *stubEmbedder) UploadService {
	sm := token.NewSessionManager("test-secret", 1)
	return NewUploadService(userRepo, store, extractor, embedder, sm)
}

func TestProcessDocumentRejectsEmptyFile(t *testing.T) {
	svc := newTestUploadService(newFakeUserRepo(), &fakeStore{}, &fakeExtractor{}, &stubEmbedder{dims: 4})

	_, err := svc.ProcessDocument(context.Background(), "", "cv.pdf", "application/pdf", nil)
	assert.True(t, apperr.Is(err, apperr.KindEmptyInput))
}

func TestProcessDocumentNewSession(t *testing.T) {
	userRepo := newFakeUserRepo()
	store := &fakeStore{}
	extractor := &fakeExtractor{text: "Jane Doe\nCurriculum Vitae", pageCount: 2}
	embedder := &stubEmbedder{fallback: []float32{0, 3, 0, 0}, dims: 4}
	svc := newTestUploadService(userRepo, store, extractor, embedder)

	result, err := svc.ProcessDocument(context.Background(), "", "cv.pdf", "application/pdf", []byte("%PDF"))
	require.NoError(t, err)

	assert.NotEmpty(t, result.UserID)
	assert.NotEmpty(t, result.Token)
	assert.Equal(t, model.KindCV, result.DetectedKind)
	assert.Equal(t, "Jane Doe", result.Title)
	assert.True(t, result.HasEmbedding)

	stored, err := userRepo.FindByID(result.UserID)
	require.NoError(t, err)
	assert.True(t, stored.HasEmbedding())
	// 向量已归一化
	assert.InDelta(t, 1.0, float64(stored.Embedding[1]), 1e-6)

	require.Len(t, store.objects, 1)
	assert.Equal(t, "uploads/"+result.UserID+"/cv.pdf", store.objects[0])
	assert.Equal(t, "https://minio.local/"+store.objects[0]+"?signed", result.DocumentURL)

	// 签发的 token 能解回同一用户
	sm := token.NewSessionManager("test-secret", 1)
	userID, err := sm.Verify(result.Token)
	require.NoError(t, err)
	assert.Equal(t, result.UserID, userID)
}

func TestProcessDocumentDetectsPaperByPageCount(t *testing.T) {
	extractor := &fakeExtractor{text: "Deep Learning Survey", pageCount: 12}
	embedder := &stubEmbedder{fallback: []float32{1, 0, 0, 0}, dims: 4}
	svc := newTestUploadService(newFakeUserRepo(), &fakeStore{}, extractor, embedder)

	result, err := svc.ProcessDocument(context.Background(), "", "survey.pdf", "application/pdf", []byte("%PDF"))
	require.NoError(t, err)
	assert.Equal(t, model.KindPaper, result.DetectedKind)
}

func TestProcessDocumentEmptyContentHasNoEmbedding(t *testing.T) {
	userRepo := newFakeUserRepo()
	extractor := &fakeExtractor{text: "   \n  ", pageCount: 1}
	embedder := &stubEmbedder{dims: 4}
	svc := newTestUploadService(userRepo, &fakeStore{}, extractor, embedder)

	result, err := svc.ProcessDocument(context.Background(), "", "scan.pdf", "application/pdf", []byte("%PDF"))
	require.NoError(t, err)

	assert.False(t, result.HasEmbedding)
	assert.Zero(t, embedder.calls, "空文本不应触达嵌入服务")
	// 标题回退到文件名
	assert.Equal(t, "scan.pdf", result.Title)

	stored, err := userRepo.FindByID(result.UserID)
	require.NoError(t, err)
	assert.False(t, stored.HasEmbedding())
}

func TestProcessDocumentReusesSessionUser(t *testing.T) {
	userRepo := newFakeUserRepo()
	extractor := &fakeExtractor{text: "Old Resume", pageCount: 1}
	embedder := &stubEmbedder{fallback: []float32{1, 0, 0, 0}, dims: 4}
	svc := newTestUploadService(userRepo, &fakeStore{}, extractor, embedder)

	first, err := svc.ProcessDocument(context.Background(), "", "old.pdf", "application/pdf", []byte("%PDF"))
	require.NoError(t, err)

	extractor.text = "New Resume"
	second, err := svc.ProcessDocument(context.Background(), first.UserID, "new.pdf", "application/pdf", []byte("%PDF"))
	require.NoError(t, err)

	// 同一会话覆盖同一条用户记录
	assert.Equal(t, first.UserID, second.UserID)
	assert.Len(t, userRepo.users, 1)
	stored, err := userRepo.FindByID(first.UserID)
	require.NoError(t, err)
	assert.Equal(t, "new.pdf", stored.Filename)
	assert.Equal(t, "New Resume", stored.Title)
}

func TestProcessDocumentStorageFailureDoesNotBlock(t *testing.T) {
	extractor := &fakeExtractor{text: "Resume", pageCount: 1}
	embedder := &stubEmbedder{fallback: []float32{1, 0, 0, 0}, dims: 4}
	store := &fakeStore{err: assert.AnError}
	svc := newTestUploadService(newFakeUserRepo(), store, extractor, embedder)

	result, err := svc.ProcessDocument(context.Background(), "", "cv.pdf", "application/pdf", []byte("%PDF"))
	require.NoError(t, err)
	assert.True(t, result.HasEmbedding)
	// 归档失败时没有下载链接可给
	assert.Empty(t, result.DocumentURL)
}

func TestSplitTextOverlap(t *testing.T) {
	short := splitText("短文本", 1000, 100)
	assert.Equal(t, []string{"短文本"}, short)

	long := make([]rune, 0, 2500)
	for i := 0; i < 2500; i++ {
		long = append(long, rune('a'+i%26))
	}
	chunks := splitText(string(long), 1000, 100)
	require.Len(t, chunks, 3)
	assert.Len(t, []rune(chunks[0]), 1000)
	// 相邻分块有 100 个字符的重叠
	assert.Equal(t, chunks[0][900:], chunks[1][:100])
	assert.Len(t, []rune(chunks[2]), 2500-2*900)
}
