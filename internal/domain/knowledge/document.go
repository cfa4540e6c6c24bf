package knowledge

import "time"

// Document 知识库中的一篇 Markdown 文档
type Document struct {
	ID          string    `json:"id"`           // 文档唯一标识
	Path        string    `json:"path"`         // 源文件绝对路径
	Title       string    `json:"title"`        // 标题（首个一级标题，缺省为文件名）
	ContentHash string    `json:"content_hash"` // 文件内容 SHA256，用于增量更新判断
	ChunkCount  int       `json:"chunk_count"`  // 切分后的分块数量
	IndexedAt   time.Time `json:"indexed_at"`   // 最近一次索引时间
}

// Section 文档中按标题切分出的一个小节
type Section struct {
	Title   string   // 小节标题（无标题时为空）
	Level   int      // 标题级别，1-6
	Blocks  []Block  // 小节内的内容块
	Images  []ImageRef
	Links   []LinkRef
}

// Block 小节内的一个内容块
type Block struct {
	ContentType ContentType
	Content     string
	Language    string // 代码块语言标记，仅 ContentTypeCode 有效
}

// ImageRef Markdown 中的图片引用
type ImageRef struct {
	Alt   string `json:"alt"`
	Path  string `json:"path"`
	Title string `json:"title,omitempty"`
}

// LinkRef Markdown 中的链接引用
type LinkRef struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

// ParsedDocument 解析后的文档结构
type ParsedDocument struct {
	Path     string
	Title    string
	Sections []Section
	Hash     string
}
