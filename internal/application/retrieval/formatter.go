package retrieval

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/knowbase/backend/internal/domain/query"
)

// 句子结束标点，智能截断用
var sentenceEnders = map[rune]struct{}{
	'。': {}, '！': {}, '？': {}, '；': {},
	'.': {}, '!': {}, '?': {}, ';': {},
}

// BuildContext 把检索结果拼装成给 LLM 的上下文文本
// 每个分块带上来源标注，整体长度不超过 maxLength 字符。
func BuildContext(chunks []*query.RetrievedChunk, maxLength int, minKeepRatio float64) string {
	if len(chunks) == 0 {
		return ""
	}

	var sb strings.Builder
	for i, c := range chunks {
		entry := fmt.Sprintf("[片段 %d | 来源: %s", i+1, c.Chunk.SourcePath)
		if c.Chunk.Section != "" {
			entry += " / " + c.Chunk.Section
		}
		entry += "]\n" + c.Chunk.Content + "\n\n"

		if sb.Len()+len(entry) > maxLength*4 {
			// 字节预算粗略超限时停止追加（中文最多 4 字节/字符）
			break
		}
		sb.WriteString(entry)
	}

	return SmartTruncate(strings.TrimSpace(sb.String()), maxLength, minKeepRatio)
}

// SmartTruncate 智能截断文本到 maxLength 字符以内
// 截断优先落在句子边界上，但只接受预算后 30% 范围内的句子边界；
// 找不到时退回空白处截断，且至少保留 minKeepRatio 比例的内容；
// 再找不到就硬截断。结果永不超过 maxLength。
func SmartTruncate(text string, maxLength int, minKeepRatio float64) string {
	runes := []rune(text)
	if len(runes) <= maxLength {
		return text
	}
	if maxLength <= 0 {
		return ""
	}

	window := runes[:maxLength]

	// 句子边界：只在预算的最后 30% 里找，避免截掉太多内容
	sentenceFloor := int(float64(maxLength) * 0.7)
	for i := maxLength - 1; i >= sentenceFloor; i-- {
		if _, ok := sentenceEnders[window[i]]; ok {
			return string(window[:i+1])
		}
	}

	// 空白截断：至少保留 minKeepRatio 比例
	keepFloor := int(float64(maxLength) * minKeepRatio)
	for i := maxLength - 1; i >= keepFloor; i-- {
		if unicode.IsSpace(window[i]) {
			return strings.TrimRight(string(window[:i]), " \t\n")
		}
	}

	// 硬截断
	return string(window)
}
