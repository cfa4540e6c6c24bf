package knowledge

import "time"

// ContentType 分块内容类型
type ContentType string

const (
	ContentTypeText  ContentType = "text"
	ContentTypeTable ContentType = "table"
	ContentTypeImage ContentType = "image"
	ContentTypeCode  ContentType = "code"
)

// TypeWeight 多模态内容类型权重，表格和图片在混合检索中略微降权
func (t ContentType) TypeWeight() float64 {
	switch t {
	case ContentTypeText, ContentTypeCode:
		return 1.0
	case ContentTypeTable:
		return 0.9
	case ContentTypeImage:
		return 0.8
	default:
		return 1.0
	}
}

// Chunk 知识分块，检索的最小单元
type Chunk struct {
	ID          string      `json:"id"`           // 分块唯一标识
	DocumentID  string      `json:"document_id"`  // 所属文档
	Seq         int         `json:"seq"`          // 文档内顺序号
	Section     string      `json:"section"`      // 所属小节标题
	ContentType ContentType `json:"content_type"` // 内容类型
	Content     string      `json:"content"`      // 分块正文
	TokenCount  int         `json:"token_count"`  // token 数
	SourcePath  string      `json:"source_path"`  // 源文件路径
	CreatedAt   time.Time   `json:"created_at"`
}

// Preview 返回分块内容预览，最长 200 字符
func (c *Chunk) Preview() string {
	runes := []rune(c.Content)
	if len(runes) <= 200 {
		return c.Content
	}
	return string(runes[:200]) + "..."
}
