package queryproc

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/knowbase/backend/internal/application/retrieval"
	"github.com/knowbase/backend/internal/domain/query"
	"github.com/knowbase/backend/internal/infrastructure/config"
	"github.com/knowbase/backend/internal/infrastructure/llm"
	"github.com/knowbase/backend/internal/infrastructure/log"
)

// NoInformationAnswer 知识库中没有命中任何内容时的固定回答
const NoInformationAnswer = "知识库中没有找到与该问题相关的信息。"

const synthesizeCallTimeout = 45 * time.Second

// truncateKeepRatio 合成答案截断时至少保留的内容比例
const truncateKeepRatio = 0.2

// Synthesizer 答案合成器
// 用 LLM 基于检索到的上下文组织最终答案；LLM 不可用时退化为按得分拼接分块原文。
type Synthesizer struct {
	llm    Completer
	cfg    config.SynthesisConfig
	logger *slog.Logger
}

// NewSynthesizer 创建答案合成器
func NewSynthesizer(completer Completer, pipelineCfg *config.PipelineConfig) *Synthesizer {
	return &Synthesizer{
		llm:    completer,
		cfg:    pipelineCfg.Synthesis,
		logger: log.NewModuleLogger("queryproc", "synthesizer"),
	}
}

// Synthesize 生成最终答案，第二个返回值表示是否走了 LLM 合成
func (s *Synthesizer) Synthesize(ctx context.Context, queryText string, chunks []*query.RetrievedChunk) (string, bool) {
	if len(chunks) == 0 {
		return NoInformationAnswer, false
	}

	answer, err := s.synthesizeLLM(ctx, queryText, chunks)
	if err != nil {
		s.logger.Warn("LLM答案合成失败，退化为拼接分块", "error", err)
		return s.concatenateChunks(chunks), false
	}
	return answer, true
}

func (s *Synthesizer) synthesizeLLM(ctx context.Context, queryText string, chunks []*query.RetrievedChunk) (string, error) {
	if s.llm == nil {
		return "", fmt.Errorf("llm client not configured")
	}

	contextText := retrieval.BuildContext(chunks, s.cfg.MaxLength*2, truncateKeepRatio)
	prompt := fmt.Sprintf("参考资料：\n%s\n\n问题：%s", contextText, queryText)

	raw, err := s.llm.Complete(ctx, prompt, &llm.CompleteOptions{
		SystemPrompt: s.buildSystemPrompt(),
		Temperature:  0.3,
		MaxTokens:    s.cfg.MaxLength,
		Timeout:      synthesizeCallTimeout,
	})
	if err != nil {
		return "", fmt.Errorf("failed to call llm for synthesis: %w", err)
	}

	answer := strings.TrimSpace(raw)
	if answer == "" {
		return "", fmt.Errorf("llm returned empty answer")
	}
	return retrieval.SmartTruncate(answer, s.cfg.MaxLength, truncateKeepRatio), nil
}

func (s *Synthesizer) buildSystemPrompt() string {
	var sb strings.Builder
	sb.WriteString("你是一个知识库问答助手。只依据给出的参考资料回答问题，资料中没有的内容明确说不知道，不要编造。")

	if s.cfg.Style == "concise" {
		sb.WriteString("回答尽量简短，直接给出结论。")
	} else {
		sb.WriteString("回答要完整，覆盖资料中的相关要点。")
	}
	if s.cfg.EnableLogicalFlow {
		sb.WriteString("按逻辑顺序组织内容。")
	}
	if s.cfg.IncludeSourceReferences {
		sb.WriteString("在答案末尾列出引用的资料来源。")
	}
	return sb.String()
}

// concatenateChunks 规则版兜底：按得分顺序拼接分块原文并附带来源
func (s *Synthesizer) concatenateChunks(chunks []*query.RetrievedChunk) string {
	var sb strings.Builder
	sb.WriteString("根据知识库检索到以下相关内容：\n\n")
	for i, c := range chunks {
		if i >= 3 {
			break
		}
		sb.WriteString(fmt.Sprintf("%d. %s", i+1, strings.TrimSpace(c.Chunk.Content)))
		if s.cfg.IncludeSourceReferences && c.Chunk.SourcePath != "" {
			sb.WriteString(fmt.Sprintf("（来源：%s）", c.Chunk.SourcePath))
		}
		sb.WriteString("\n")
	}
	return retrieval.SmartTruncate(strings.TrimSpace(sb.String()), s.cfg.MaxLength, truncateKeepRatio)
}
