package markdown

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/knowbase/backend/internal/domain/knowledge"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestParseFile_Sections(t *testing.T) {
	content := `# 旅人的故事

开篇介绍主人公。

## 第一章

他离开了家乡。

他遇到了第一个同伴。

## 第二章

他们穿过了沙漠。
`
	path := writeTestFile(t, "story.md", content)

	parser := NewParser()
	doc, err := parser.ParseFile(path)
	require.NoError(t, err)

	assert.Equal(t, "旅人的故事", doc.Title)
	assert.NotEmpty(t, doc.Hash)
	require.Len(t, doc.Sections, 3)

	assert.Equal(t, 1, doc.Sections[0].Level)
	assert.Equal(t, "第一章", doc.Sections[1].Title)
	assert.Len(t, doc.Sections[1].Blocks, 2, "空行分隔的段落应拆成两个内容块")
}

func TestParseFile_TitleFallback(t *testing.T) {
	path := writeTestFile(t, "notes.md", "没有标题的内容。\n")

	parser := NewParser()
	doc, err := parser.ParseFile(path)
	require.NoError(t, err)

	assert.Equal(t, "notes", doc.Title)
}

func TestParseFile_CodeBlock(t *testing.T) {
	content := "# 示例\n\n说明文字。\n\n```go\nfunc main() {}\n```\n"
	path := writeTestFile(t, "code.md", content)

	parser := NewParser()
	doc, err := parser.ParseFile(path)
	require.NoError(t, err)

	require.Len(t, doc.Sections, 1)
	blocks := doc.Sections[0].Blocks
	require.Len(t, blocks, 2)
	assert.Equal(t, knowledge.ContentTypeText, blocks[0].ContentType)
	assert.Equal(t, knowledge.ContentTypeCode, blocks[1].ContentType)
	assert.Equal(t, "go", blocks[1].Language)
	assert.Equal(t, "func main() {}", blocks[1].Content)
}

func TestParseFile_TableAndImage(t *testing.T) {
	content := `# 数据

| 角色 | 动机 |
|------|------|
| 旅人 | 寻找家园 |

![地图](images/map.png "旅行路线")
`
	path := writeTestFile(t, "data.md", content)

	parser := NewParser()
	doc, err := parser.ParseFile(path)
	require.NoError(t, err)

	require.Len(t, doc.Sections, 1)
	sec := doc.Sections[0]

	var types []knowledge.ContentType
	for _, b := range sec.Blocks {
		types = append(types, b.ContentType)
	}
	assert.Contains(t, types, knowledge.ContentTypeTable)
	assert.Contains(t, types, knowledge.ContentTypeImage)

	require.Len(t, sec.Images, 1)
	assert.Equal(t, "地图", sec.Images[0].Alt)
	assert.Equal(t, "images/map.png", sec.Images[0].Path)
	assert.Equal(t, "旅行路线", sec.Images[0].Title)
}

func TestParseFile_Links(t *testing.T) {
	content := "# 引用\n\n参见 [角色设定](characters.md) 了解更多。\n"
	path := writeTestFile(t, "ref.md", content)

	parser := NewParser()
	doc, err := parser.ParseFile(path)
	require.NoError(t, err)

	require.Len(t, doc.Sections, 1)
	require.Len(t, doc.Sections[0].Links, 1)
	assert.Equal(t, "角色设定", doc.Sections[0].Links[0].Text)
	assert.Equal(t, "characters.md", doc.Sections[0].Links[0].URL)
}

func TestParseFile_UnclosedCodeBlock(t *testing.T) {
	content := "# 残缺\n\n```python\nprint('hello')\n"
	path := writeTestFile(t, "broken.md", content)

	parser := NewParser()
	doc, err := parser.ParseFile(path)
	require.NoError(t, err)

	require.Len(t, doc.Sections, 1)
	require.Len(t, doc.Sections[0].Blocks, 1)
	assert.Equal(t, knowledge.ContentTypeCode, doc.Sections[0].Blocks[0].ContentType)
}

func TestParseFile_NotExist(t *testing.T) {
	parser := NewParser()
	_, err := parser.ParseFile("/nonexistent/file.md")
	assert.Error(t, err)
}
