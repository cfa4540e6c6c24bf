package ingest

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/knowbase/backend/internal/domain/knowledge"
	"github.com/knowbase/backend/internal/infrastructure/config"
	"github.com/knowbase/backend/internal/infrastructure/token"
)

// Chunker 智能分块器
// 以段落为基本单位按 token 预算打包，超长段落按句子边界二次切分，
// 表格、图片、代码块独立成块。
type Chunker struct {
	estimator *token.Estimator
	cfg       config.ChunkingConfig
}

// NewChunker 创建分块器
func NewChunker(pipelineCfg *config.PipelineConfig) (*Chunker, error) {
	estimator, err := token.GetEstimator()
	if err != nil {
		return nil, err
	}

	return &Chunker{
		estimator: estimator,
		cfg:       pipelineCfg.Chunking,
	}, nil
}

// ChunkDocument 将解析后的文档切分为知识分块
func (c *Chunker) ChunkDocument(doc *knowledge.ParsedDocument, documentID string) []*knowledge.Chunk {
	var chunks []*knowledge.Chunk

	for _, sec := range doc.Sections {
		chunks = append(chunks, c.chunkSection(&sec, doc.Path, documentID)...)
	}

	chunks = c.mergeShortChunks(chunks)

	// 统一编号
	now := time.Now()
	for i, chunk := range chunks {
		chunk.Seq = i
		chunk.CreatedAt = now
	}

	return chunks
}

// chunkSection 切分单个小节
func (c *Chunker) chunkSection(sec *knowledge.Section, sourcePath, documentID string) []*knowledge.Chunk {
	var chunks []*knowledge.Chunk
	var pending []string
	pendingTokens := 0

	flush := func() {
		if len(pending) == 0 {
			return
		}
		content := strings.Join(pending, "\n\n")
		chunks = append(chunks, c.newChunk(documentID, sec.Title, knowledge.ContentTypeText, content, sourcePath))
		pending = nil
		pendingTokens = 0
	}

	for _, block := range sec.Blocks {
		// 表格、图片、代码块独立成块，保持结构完整
		if block.ContentType != knowledge.ContentTypeText {
			flush()
			chunks = append(chunks, c.newChunk(documentID, sec.Title, block.ContentType, block.Content, sourcePath))
			continue
		}

		paraTokens := c.estimator.CountTokens(block.Content)

		// 超长段落按句子二次切分
		if paraTokens > c.cfg.ChunkSize {
			flush()
			for _, piece := range c.splitLongParagraph(block.Content) {
				chunks = append(chunks, c.newChunk(documentID, sec.Title, knowledge.ContentTypeText, piece, sourcePath))
			}
			continue
		}

		if pendingTokens+paraTokens > c.cfg.ChunkSize {
			// 打包满了，从上一块尾部取重叠内容作为下一块开头
			overlap := c.overlapTail(pending)
			flush()
			if overlap != "" {
				pending = append(pending, overlap)
				pendingTokens = c.estimator.CountTokens(overlap)
			}
		}

		pending = append(pending, block.Content)
		pendingTokens += paraTokens
	}

	flush()
	return chunks
}

// splitLongParagraph 把超过预算的段落按句子边界切成多段
func (c *Chunker) splitLongParagraph(para string) []string {
	sentences := splitSentences(para)

	var pieces []string
	var current []string
	currentTokens := 0

	for _, sent := range sentences {
		sentTokens := c.estimator.CountTokens(sent)

		if currentTokens+sentTokens > c.cfg.ChunkSize && len(current) > 0 {
			pieces = append(pieces, strings.Join(current, ""))
			current = nil
			currentTokens = 0
		}

		current = append(current, sent)
		currentTokens += sentTokens
	}

	if len(current) > 0 {
		pieces = append(pieces, strings.Join(current, ""))
	}

	return pieces
}

// overlapTail 从已打包的段落尾部取不超过重叠预算的句子
func (c *Chunker) overlapTail(pending []string) string {
	if c.cfg.ChunkOverlap <= 0 || len(pending) == 0 {
		return ""
	}

	last := pending[len(pending)-1]
	sentences := splitSentences(last)

	var tail []string
	tailTokens := 0
	for i := len(sentences) - 1; i >= 0; i-- {
		sentTokens := c.estimator.CountTokens(sentences[i])
		if tailTokens+sentTokens > c.cfg.ChunkOverlap {
			break
		}
		tail = append([]string{sentences[i]}, tail...)
		tailTokens += sentTokens
	}

	return strings.Join(tail, "")
}

// mergeShortChunks 将过短的文本分块向前合并
func (c *Chunker) mergeShortChunks(chunks []*knowledge.Chunk) []*knowledge.Chunk {
	if len(chunks) <= 1 {
		return chunks
	}

	var merged []*knowledge.Chunk
	for _, chunk := range chunks {
		isShort := len([]rune(chunk.Content)) < c.cfg.MinChunkLength

		if isShort && chunk.ContentType == knowledge.ContentTypeText && len(merged) > 0 {
			prev := merged[len(merged)-1]
			// 只向同小节、同类型的前块合并
			if prev.ContentType == knowledge.ContentTypeText && prev.Section == chunk.Section {
				prev.Content = prev.Content + "\n\n" + chunk.Content
				prev.TokenCount = c.estimator.CountTokens(prev.Content)
				continue
			}
		}

		merged = append(merged, chunk)
	}

	return merged
}

// newChunk 创建分块
func (c *Chunker) newChunk(documentID, section string, contentType knowledge.ContentType, content, sourcePath string) *knowledge.Chunk {
	return &knowledge.Chunk{
		ID:          uuid.NewString(),
		DocumentID:  documentID,
		Section:     section,
		ContentType: contentType,
		Content:     content,
		TokenCount:  c.estimator.CountTokens(content),
		SourcePath:  sourcePath,
	}
}

// splitSentences 按中英文句号、问号、感叹号切分句子，保留标点
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	runes := []rune(text)
	for i, r := range runes {
		current.WriteRune(r)

		switch r {
		case '。', '！', '？', '；':
			sentences = append(sentences, current.String())
			current.Reset()
		case '.', '!', '?', ';':
			// 英文标点要求后跟空白或结尾，避免切断小数和缩写
			if i+1 >= len(runes) || runes[i+1] == ' ' || runes[i+1] == '\n' {
				sentences = append(sentences, current.String())
				current.Reset()
			}
		}
	}

	if current.Len() > 0 {
		sentences = append(sentences, current.String())
	}

	return sentences
}
