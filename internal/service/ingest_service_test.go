package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pmatch-go/internal/apperr"
	"pmatch-go/internal/model"
)

func TestNaturalKeyIDPrefersProfileURL(t *testing.T) {
	withURL := NaturalKeyID("https://example.edu/~jane", "jane@example.edu", "Jane Doe")
	withEmail := NaturalKeyID("", "jane@example.edu", "Jane Doe")
	withName := NaturalKeyID("", "", "Jane Doe")

	assert.Len(t, withURL, 32)
	assert.NotEqual(t, withURL, withEmail)
	assert.NotEqual(t, withEmail, withName)

	// 同一自然键重复摄入得到同一 ID
	assert.Equal(t, withURL, NaturalKeyID("https://example.edu/~jane", "other@example.edu", "Other Name"))
	// 空白 URL 回退到邮箱
	assert.Equal(t, withEmail, NaturalKeyID("   ", "jane@example.edu", ""))
}

func TestIngestProfileRequiresIdentifyingKey(t *testing.T) {
	svc := NewIngestService(newFakeProfileRepo(), &fakeProducer{})

	_, err := svc.IngestProfile(context.Background(), model.IngestProfileRequest{
		Title: "Professor", Institution: "MIT",
	})
	assert.True(t, apperr.Is(err, apperr.KindInvalidArgument))
}

func TestIngestProfileUpsertsAndProducesTask(t *testing.T) {
	repo := newFakeProfileRepo()
	producer := &fakeProducer{}
	svc := NewIngestService(repo, producer)

	req := model.IngestProfileRequest{
		Name:       "Jane Doe",
		Email:      "jane@example.edu",
		ProfileURL: "https://example.edu/~jane",
		Abstracts:  []string{"paper one", "  ", "paper two"},
	}
	id, err := svc.IngestProfile(context.Background(), req)
	require.NoError(t, err)

	stored, err := repo.FindByID(id)
	require.NoError(t, err)
	// 空白摘要被剔除, 向量留待后台任务计算
	assert.Equal(t, model.StringSlice{"paper one", "paper two"}, stored.Abstracts)
	assert.Nil(t, stored.Embedding)

	require.Len(t, producer.produced, 1)
	assert.Equal(t, id, producer.produced[0].ProfileID)
}

func TestIngestProfileCapsAbstracts(t *testing.T) {
	repo := newFakeProfileRepo()
	svc := NewIngestService(repo, &fakeProducer{})

	req := model.IngestProfileRequest{
		Name:      "Jane Doe",
		Abstracts: []string{"p1", "p2", "p3", "p4", "p5", "p6", "p7"},
	}
	id, err := svc.IngestProfile(context.Background(), req)
	require.NoError(t, err)

	stored, err := repo.FindByID(id)
	require.NoError(t, err)
	assert.Len(t, []string(stored.Abstracts), model.MaxAbstractsPerProfile)
}

func TestIngestProfileWithoutAbstractsSkipsTask(t *testing.T) {
	producer := &fakeProducer{}
	svc := NewIngestService(newFakeProfileRepo(), producer)

	_, err := svc.IngestProfile(context.Background(), model.IngestProfileRequest{Name: "Jane Doe"})
	require.NoError(t, err)
	assert.Empty(t, producer.produced, "无摘要的画像不应触发向量化")
}

func TestIngestProfileLastWriteWins(t *testing.T) {
	repo := newFakeProfileRepo()
	svc := NewIngestService(repo, &fakeProducer{})

	first := model.IngestProfileRequest{
		ProfileURL: "https://example.edu/~jane",
		Name:       "Jane Doe",
		Title:      "Assistant Professor",
		Abstracts:  []string{"old paper"},
	}
	id1, err := svc.IngestProfile(context.Background(), first)
	require.NoError(t, err)

	second := first
	second.Title = "Associate Professor"
	second.Abstracts = []string{"new paper"}
	id2, err := svc.IngestProfile(context.Background(), second)
	require.NoError(t, err)

	assert.Equal(t, id1, id2)
	stored, err := repo.FindByID(id1)
	require.NoError(t, err)
	assert.Equal(t, "Associate Professor", stored.Title)
	assert.Equal(t, model.StringSlice{"new paper"}, stored.Abstracts)
	assert.Equal(t, 2, repo.upserts)
}

func TestSeedFromCSV(t *testing.T) {
	csvPath := filepath.Join(t.TempDir(), "profiles.csv")
	content := `name,email,title,research_area,institution,country,profile_url,abstracts
Jane Doe,jane@example.edu,Professor,Robotics,MIT,USA,https://example.edu/~jane,"[""paper one"",""paper two""]"
John Smith,john@example.edu,Lecturer,Chemistry,Stanford University,USA,https://example.edu/~john,
,,,,,,,"[""orphan""]"
`
	require.NoError(t, os.WriteFile(csvPath, []byte(content), 0o644))

	repo := newFakeProfileRepo()
	// 历史遗留的空画像应在导入后被清掉
	require.NoError(t, repo.Upsert(&model.Profile{ID: "stale"}))
	producer := &fakeProducer{}
	svc := NewIngestService(repo, producer)

	imported, err := svc.SeedFromCSV(context.Background(), csvPath)
	require.NoError(t, err)
	// 最后一行没有任何自然键, 被跳过
	assert.Equal(t, 2, imported)
	// 只有带摘要的 Jane 触发了向量化任务
	require.Len(t, producer.produced, 1)
	assert.Equal(t, "Jane Doe", producer.produced[0].Name)

	jane, err := repo.FindByID(NaturalKeyID("https://example.edu/~jane", "", ""))
	require.NoError(t, err)
	assert.Equal(t, "MIT", jane.Institution)
	assert.Equal(t, model.StringSlice{"paper one", "paper two"}, jane.Abstracts)

	// 导入尾声的清理移除了所有无摘要记录: 遗留的 stale 和没有摘要的 John
	assert.Len(t, repo.profiles, 1)
	_, err = repo.FindByID("stale")
	assert.Error(t, err)
	_, err = repo.FindByID(NaturalKeyID("https://example.edu/~john", "", ""))
	assert.Error(t, err)
}

func TestCleanupEmptyProfiles(t *testing.T) {
	repo := newFakeProfileRepo()
	require.NoError(t, repo.Upsert(&model.Profile{ID: "keep", Abstracts: model.StringSlice{"p1"}}))
	require.NoError(t, repo.Upsert(&model.Profile{ID: "drop"}))

	svc := NewIngestService(repo, &fakeProducer{})
	removed, err := svc.CleanupEmptyProfiles(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, removed)

	_, err = repo.FindByID("drop")
	assert.Error(t, err)
	_, err = repo.FindByID("keep")
	assert.NoError(t, err)
}
