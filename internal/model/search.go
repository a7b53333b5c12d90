package model

// EsProfile 定义了存储在 Elasticsearch 中的画像文档结构。
// 只有携带向量的画像才会被索引，NULL 向量的记录从不进入该索引。
type EsProfile struct {
	ProfileID    string    `json:"profile_id"`
	Name         string    `json:"name"`
	Title        string    `json:"title"`
	ResearchArea string    `json:"research_area"`
	Institution  string    `json:"institution"`
	Country      string    `json:"country"`
	ProfileURL   string    `json:"profile_url"`
	Embedding    []float32 `json:"embedding"`
	ModelVersion string    `json:"model_version"`
}

// SearchFilters 是检索的后置过滤条件；零值表示不过滤。
type SearchFilters struct {
	Institution string `json:"institution,omitempty"`
}

// SearchHit 是单条检索命中，按请求临时构造，从不持久化或跨请求缓存。
// Score 是余弦相似度（1 - 余弦距离），不做截断。
type SearchHit struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Email        string   `json:"email,omitempty"`
	Title        string   `json:"title,omitempty"`
	ResearchArea string   `json:"researchArea,omitempty"`
	Institution  string   `json:"institution,omitempty"`
	Country      string   `json:"country,omitempty"`
	ProfileURL   string   `json:"profileUrl,omitempty"`
	Abstracts    []string `json:"abstracts,omitempty"`
	Score        float64  `json:"score"`
}

// IngestProfileRequest 是画像摄入接口的请求体，来自采集方（爬虫等外部协作者）。
type IngestProfileRequest struct {
	Name         string   `json:"name"`
	Email        string   `json:"email"`
	Title        string   `json:"title"`
	ResearchArea string   `json:"researchArea"`
	Institution  string   `json:"institution"`
	Country      string   `json:"country"`
	ProfileURL   string   `json:"profileUrl"`
	Abstracts    []string `json:"abstracts"`
}
