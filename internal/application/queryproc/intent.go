package queryproc

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/knowbase/backend/internal/domain/query"
	"github.com/knowbase/backend/internal/infrastructure/config"
	"github.com/knowbase/backend/internal/infrastructure/llm"
	"github.com/knowbase/backend/internal/infrastructure/log"
)

// Completer 大模型文本补全接口
type Completer interface {
	Complete(ctx context.Context, userPrompt string, opts *llm.CompleteOptions) (string, error)
}

const intentSystemPrompt = `你是一个查询意图分析助手。分析用户查询并只返回 JSON，格式如下：
{
  "intent_type": "simple|comparative|multi_aspect|complex",
  "complexity_score": 0.0,
  "key_entities": ["实体1", "实体2"],
  "question_type": "factual|analytical|procedural|comparative",
  "requires_decomposition": false,
  "reasoning": "简要说明分析过程"
}
intent_type 刻画查询形态：simple 单一事实、comparative 对比多个对象、multi_aspect 涉及多个独立方面、complex 需要多步推理。
question_type 刻画回答方式：factual 事实性、analytical 分析性、procedural 程序性、comparative 比较性。
complexity_score 取值 0-10：简单事实查询 0-3，涉及比较或分析 4-6，需要多步推理 7-10。
key_entities 列出查询中的关键实体或概念。不要输出 JSON 以外的任何内容。`

// 规则回退用的意图关键词
var (
	comparativeKeywords = []string{"比较", "对比", "区别", "差异", "异同", "compare", "versus", "difference"}
	analyticalKeywords  = []string{"分析", "评价", "评估", "原因", "影响", "为什么", "analyze", "evaluate", "why", "impact"}
	proceduralKeywords  = []string{"如何", "怎么", "怎样", "步骤", "流程", "方法", "how to", "steps"}

	// 复杂度加权关键词，每命中一个加一档
	complexKeywords   = []string{"比较", "对比", "分析", "评价", "评估", "总结", "归纳", "如何", "为什么", "原因", "影响", "关系", "compare", "analyze", "evaluate", "why", "impact"}
	connectorKeywords = []string{"和", "与", "以及", "同时", "另外", "此外", "而且", "并且", "还有", "and", "also", "as well as"}
	questionMarkRunes = []rune{'?', '？'}
	intentCallTimeout = 15 * time.Second
	validIntentTypes  = map[query.IntentType]struct{}{
		query.IntentSimple:      {},
		query.IntentComparative: {},
		query.IntentMultiAspect: {},
		query.IntentComplex:     {},
	}
	validQuestionTypes = map[query.QuestionType]struct{}{
		query.QuestionFactual:     {},
		query.QuestionAnalytical:  {},
		query.QuestionProcedural:  {},
		query.QuestionComparative: {},
	}
	validQueryTypes = map[query.QueryType]struct{}{
		query.QueryTypeFactual:     {},
		query.QueryTypeComparative: {},
		query.QueryTypeAnalytical:  {},
		query.QueryTypeProcedural:  {},
		query.QueryTypeMultiHop:    {},
	}
)

// IntentAnalyzer 查询意图分析器
// 优先走 LLM 分类，LLM 调用失败或输出无法解析时降级到规则策略，永不报错。
type IntentAnalyzer struct {
	llm    Completer
	cfg    config.DecompositionConfig
	logger *slog.Logger
}

// NewIntentAnalyzer 创建意图分析器
func NewIntentAnalyzer(completer Completer, pipelineCfg *config.PipelineConfig) *IntentAnalyzer {
	return &IntentAnalyzer{
		llm:    completer,
		cfg:    pipelineCfg.Decomposition,
		logger: log.NewModuleLogger("queryproc", "intent"),
	}
}

// Analyze 分析查询意图，返回结果永远可用
// 短于最短查询长度的查询直接按简单查询处理，不调用 LLM。
func (a *IntentAnalyzer) Analyze(ctx context.Context, queryText string) *query.Intent {
	if len([]rune(queryText)) < a.cfg.MinQueryLength {
		intent := a.analyzeByRules(queryText)
		intent.IntentType = query.IntentSimple
		intent.RequiresDecomposition = false
		intent.Reasoning = "查询长度低于最小阈值，按简单查询处理"
		return intent
	}

	intent, err := a.analyzeLLM(ctx, queryText)
	if err != nil {
		a.logger.Warn("LLM意图分析失败，降级到规则策略", "error", err)
		intent = a.analyzeByRules(queryText)
	}

	// 是否分解由复杂度阈值统一裁决，不信任 LLM 的标记
	intent.RequiresDecomposition = intent.ComplexityScore >= a.cfg.Threshold
	return intent
}

type llmIntentPayload struct {
	IntentType            string   `json:"intent_type"`
	ComplexityScore       float64  `json:"complexity_score"`
	KeyEntities           []string `json:"key_entities"`
	QuestionType          string   `json:"question_type"`
	RequiresDecomposition bool     `json:"requires_decomposition"`
	Reasoning             string   `json:"reasoning"`
}

func (a *IntentAnalyzer) analyzeLLM(ctx context.Context, queryText string) (*query.Intent, error) {
	if a.llm == nil {
		return nil, fmt.Errorf("llm client not configured")
	}

	raw, err := a.llm.Complete(ctx, "查询："+queryText, &llm.CompleteOptions{
		SystemPrompt: intentSystemPrompt,
		Temperature:  0.1,
		MaxTokens:    512,
		Timeout:      intentCallTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to call llm for intent: %w", err)
	}

	var payload llmIntentPayload
	if err := llm.DecodeJSON(raw, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode intent response: %w", err)
	}

	intentType := query.IntentType(payload.IntentType)
	if _, ok := validIntentTypes[intentType]; !ok {
		return nil, fmt.Errorf("unknown intent type %q: %w", payload.IntentType, query.ErrMalformedLLMOutput)
	}
	questionType := query.QuestionType(payload.QuestionType)
	if _, ok := validQuestionTypes[questionType]; !ok {
		return nil, fmt.Errorf("unknown question type %q: %w", payload.QuestionType, query.ErrMalformedLLMOutput)
	}
	if payload.ComplexityScore < 0 {
		payload.ComplexityScore = 0
	}
	if payload.ComplexityScore > 10 {
		payload.ComplexityScore = 10
	}

	return &query.Intent{
		IntentType:      intentType,
		ComplexityScore: payload.ComplexityScore,
		KeyEntities:     payload.KeyEntities,
		QuestionType:    questionType,
		Reasoning:       payload.Reasoning,
		Source:          "llm",
	}, nil
}

// analyzeByRules 规则版意图分析
// 复杂度 = 长度/50（上限 3.0）+ 每个复杂关键词 1.5 + 每个连接词 1.0 + 每个问号 0.5。
func (a *IntentAnalyzer) analyzeByRules(queryText string) *query.Intent {
	runes := []rune(queryText)

	complexity := float64(len(runes)) / 50
	if complexity > 3.0 {
		complexity = 3.0
	}
	complexity += 1.5 * float64(countKeywords(queryText, complexKeywords))
	complexity += 1.0 * float64(countKeywords(queryText, connectorKeywords))
	for _, r := range runes {
		for _, q := range questionMarkRunes {
			if r == q {
				complexity += 0.5
			}
		}
	}
	if complexity > 10 {
		complexity = 10
	}

	return &query.Intent{
		IntentType:      classifyIntentType(queryText, complexity),
		ComplexityScore: complexity,
		KeyEntities:     extractKeyEntities(queryText),
		QuestionType:    classifyQuestionType(queryText),
		Reasoning:       fmt.Sprintf("基于规则分析，复杂度评分: %.1f", complexity),
		Source:          "rule",
	}
}

// classifyIntentType 规则版意图类型判定
func classifyIntentType(queryText string, complexity float64) query.IntentType {
	switch {
	case containsAny(queryText, comparativeKeywords):
		return query.IntentComparative
	case containsAny(queryText, connectorKeywords) && complexity > 5:
		return query.IntentMultiAspect
	case complexity > 6:
		return query.IntentComplex
	default:
		return query.IntentSimple
	}
}

// classifyQuestionType 规则版问题类型判定
func classifyQuestionType(queryText string) query.QuestionType {
	switch {
	case containsAny(queryText, proceduralKeywords):
		return query.QuestionProcedural
	case containsAny(queryText, analyticalKeywords):
		return query.QuestionAnalytical
	case containsAny(queryText, comparativeKeywords):
		return query.QuestionComparative
	default:
		return query.QuestionFactual
	}
}

// extractKeyEntities 规则版实体提取：取较长的分词结果去重
func extractKeyEntities(queryText string) []string {
	seen := make(map[string]struct{})
	var entities []string
	for _, token := range splitWords(queryText) {
		if len([]rune(token)) < 2 {
			continue
		}
		if _, ok := seen[token]; ok {
			continue
		}
		seen[token] = struct{}{}
		entities = append(entities, token)
		if len(entities) >= 5 {
			break
		}
	}
	return entities
}

// splitWords 按标点和空白粗分词
func splitWords(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		switch r {
		case ' ', '\t', '\n', ',', '.', '?', '!', ';', ':',
			'，', '。', '？', '！', '；', '：', '、':
			return true
		}
		return false
	})
}

func containsAny(text string, keywords []string) bool {
	return countKeywords(text, keywords) > 0
}

// countKeywords 统计关键词表中在文本里出现的词数
func countKeywords(text string, keywords []string) int {
	lower := strings.ToLower(text)
	count := 0
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			count++
		}
	}
	return count
}
