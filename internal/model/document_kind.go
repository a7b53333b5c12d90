package model

// DocumentKind 是上传文档的类型标签，封闭集合：cv 或 paper。
type DocumentKind string

const (
	// KindCV 表示简历类文档。
	KindCV DocumentKind = "cv"
	// KindPaper 表示论文类文档。
	KindPaper DocumentKind = "paper"
)

// paperPageThreshold 是启发式阈值：论文通常不短于 5 页，简历通常更短。
const paperPageThreshold = 5

// DetectKind 根据页数把文档分类为 cv 或 paper。
// 纯函数，阈值可整体替换而不影响向量化与匹配核心。
func DetectKind(pageCount int) DocumentKind {
	if pageCount >= paperPageThreshold {
		return KindPaper
	}
	return KindCV
}
