package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/knowbase/backend/internal/domain/query"
)

// DecodeJSON 从 LLM 回复中提取并解析 JSON
// 模型经常把 JSON 包在 Markdown 代码块里，或者在前后附加说明文字，
// 这里先剥离代码块标记，再定位第一个完整的 JSON 值。
// 解析失败时返回包装了 query.ErrMalformedLLMOutput 的错误，调用方据此降级。
func DecodeJSON(raw string, v any) error {
	candidate := ExtractJSON(raw)
	if candidate == "" {
		return fmt.Errorf("%w: no json value found in output", query.ErrMalformedLLMOutput)
	}

	if err := json.Unmarshal([]byte(candidate), v); err != nil {
		return fmt.Errorf("%w: %v", query.ErrMalformedLLMOutput, err)
	}

	return nil
}

// ExtractJSON 从文本中提取第一个完整的 JSON 对象或数组，找不到时返回空串
func ExtractJSON(raw string) string {
	s := strings.TrimSpace(raw)

	// 剥离 Markdown 代码块
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}

	// 定位第一个 { 或 [，再按括号配对找到对应的结束位置
	start := -1
	var open, close byte
	for i := 0; i < len(s); i++ {
		if s[i] == '{' {
			start, open, close = i, '{', '}'
			break
		}
		if s[i] == '[' {
			start, open, close = i, '[', ']'
			break
		}
	}
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}

	return ""
}
