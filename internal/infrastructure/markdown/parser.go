package markdown

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/knowbase/backend/internal/domain/knowledge"
)

var (
	// ![alt](path "title")
	imageRefPattern = regexp.MustCompile(`!\[([^\]]*)\]\(([^)\s]+)(?:\s+"([^"]*)")?\)`)
	// [text](url)，排除图片引用
	linkPattern    = regexp.MustCompile(`(?:^|[^!])\[([^\]]+)\]\(([^)]+)\)`)
	headingPattern = regexp.MustCompile(`^(#{1,6})\s+(.*)$`)
)

// Parser Markdown 文档解析器
type Parser struct{}

// NewParser 创建解析器
func NewParser() *Parser {
	return &Parser{}
}

// ParseFile 解析单个 Markdown 文件
func (p *Parser) ParseFile(path string) (*knowledge.ParsedDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read markdown file: %w", err)
	}

	content := normalizeNewlines(string(data))

	hash := sha256.Sum256(data)

	doc := &knowledge.ParsedDocument{
		Path: path,
		Hash: hex.EncodeToString(hash[:]),
	}

	doc.Sections = p.parseSections(content)
	doc.Title = p.extractTitle(doc.Sections, path)

	return doc, nil
}

// extractTitle 取首个一级标题，没有时退化为文件名
func (p *Parser) extractTitle(sections []knowledge.Section, path string) string {
	for _, sec := range sections {
		if sec.Level == 1 && sec.Title != "" {
			return sec.Title
		}
	}
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// parseSections 按标题切分小节，并识别小节内的内容块
func (p *Parser) parseSections(content string) []knowledge.Section {
	lines := strings.Split(content, "\n")

	var sections []knowledge.Section
	current := knowledge.Section{}
	var buf []string

	inCode := false
	codeLang := ""
	var codeBuf []string

	flushText := func() {
		text := strings.TrimSpace(strings.Join(buf, "\n"))
		buf = nil
		if text == "" {
			return
		}
		current.Blocks = append(current.Blocks, splitBlocks(text)...)
	}

	flushSection := func() {
		flushText()
		if current.Title != "" || len(current.Blocks) > 0 {
			p.collectRefs(&current)
			sections = append(sections, current)
		}
		current = knowledge.Section{}
	}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)

		// 代码块围栏
		if strings.HasPrefix(trimmed, "```") {
			if inCode {
				current.Blocks = append(current.Blocks, knowledge.Block{
					ContentType: knowledge.ContentTypeCode,
					Content:     strings.Join(codeBuf, "\n"),
					Language:    codeLang,
				})
				inCode = false
				codeLang = ""
				codeBuf = nil
			} else {
				flushText()
				inCode = true
				codeLang = strings.TrimPrefix(trimmed, "```")
			}
			continue
		}
		if inCode {
			codeBuf = append(codeBuf, line)
			continue
		}

		if m := headingPattern.FindStringSubmatch(line); m != nil {
			flushSection()
			current.Level = len(m[1])
			current.Title = strings.TrimSpace(m[2])
			continue
		}

		buf = append(buf, line)
	}

	// 未闭合的代码块按原文处理
	if inCode && len(codeBuf) > 0 {
		current.Blocks = append(current.Blocks, knowledge.Block{
			ContentType: knowledge.ContentTypeCode,
			Content:     strings.Join(codeBuf, "\n"),
			Language:    codeLang,
		})
	}
	flushSection()

	return sections
}

// collectRefs 收集小节内的图片和链接引用
func (p *Parser) collectRefs(sec *knowledge.Section) {
	for _, block := range sec.Blocks {
		if block.ContentType == knowledge.ContentTypeCode {
			continue
		}
		for _, m := range imageRefPattern.FindAllStringSubmatch(block.Content, -1) {
			sec.Images = append(sec.Images, knowledge.ImageRef{
				Alt:   m[1],
				Path:  m[2],
				Title: m[3],
			})
		}
		for _, m := range linkPattern.FindAllStringSubmatch(block.Content, -1) {
			sec.Links = append(sec.Links, knowledge.LinkRef{
				Text: m[1],
				URL:  m[2],
			})
		}
	}
}

// splitBlocks 将一段纯文本按空行拆分，并识别表格和图片块
func splitBlocks(text string) []knowledge.Block {
	paragraphs := strings.Split(text, "\n\n")

	var blocks []knowledge.Block
	for _, para := range paragraphs {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}

		blocks = append(blocks, knowledge.Block{
			ContentType: classifyBlock(para),
			Content:     para,
		})
	}

	return blocks
}

// classifyBlock 判断内容块类型
func classifyBlock(para string) knowledge.ContentType {
	lines := strings.Split(para, "\n")

	// 管道表格：多行且每行都以 | 开头
	if len(lines) >= 2 {
		isTable := true
		for _, line := range lines {
			if !strings.HasPrefix(strings.TrimSpace(line), "|") {
				isTable = false
				break
			}
		}
		if isTable {
			return knowledge.ContentTypeTable
		}
	}

	// 纯图片引用块
	if imageRefPattern.MatchString(para) {
		stripped := strings.TrimSpace(imageRefPattern.ReplaceAllString(para, ""))
		if stripped == "" {
			return knowledge.ContentTypeImage
		}
	}

	return knowledge.ContentTypeText
}

// normalizeNewlines 统一换行符
func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}
