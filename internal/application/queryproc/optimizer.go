package queryproc

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/knowbase/backend/internal/infrastructure/config"
	"github.com/knowbase/backend/internal/infrastructure/llm"
	"github.com/knowbase/backend/internal/infrastructure/log"
)

const diverseQueriesSystemPrompt = `你是一个查询改写助手。基于用户查询生成 3 个角度和表达方式不同的查询变体：
1. 第一个改变问题的焦点或范围；
2. 第二个使用不同的关键词和句式结构；
3. 第三个从更具体或更抽象的角度表达。
保持核心意图不变，确保变体之间有明显差异。每行一个变体，不要输出序号或任何解释。`

const optimizeCallTimeout = 10 * time.Second

// 规则扩展与改写用的词表
var (
	synonymTable = map[string][]string{
		"图片": {"图像", "照片", "插图"},
		"表格": {"数据表", "统计表"},
		"文档": {"文件", "资料"},
		"内容": {"信息", "数据"},
		"总结": {"概括", "摘要"},
		"分析": {"解析", "评估"},
	}
	relatedTermRules = []struct {
		triggers []string
		terms    []string
	}{
		{triggers: []string{"图片", "图像", "照片"}, terms: []string{"视觉", "图表"}},
		{triggers: []string{"表格", "数据"}, terms: []string{"统计", "数值"}},
		{triggers: []string{"总结", "概括"}, terms: []string{"摘要", "要点"}},
	}
	rewriteActionWords = []string{"显示", "说明", "描述", "解释"}
)

// QueryOptimizer 查询优化器
// 为单条查询生成若干检索变体：优先用 LLM 生成多样化改写，
// LLM 不可用时退回同义词/相关词扩展加规则改写。永不报错。
type QueryOptimizer struct {
	llm    Completer
	cfg    config.OptimizationConfig
	logger *slog.Logger
}

// NewQueryOptimizer 创建查询优化器
func NewQueryOptimizer(completer Completer, pipelineCfg *config.PipelineConfig) *QueryOptimizer {
	return &QueryOptimizer{
		llm:    completer,
		cfg:    pipelineCfg.Optimization,
		logger: log.NewModuleLogger("queryproc", "optimizer"),
	}
}

// Optimize 返回原查询加优化变体，原查询永远排在首位
func (o *QueryOptimizer) Optimize(ctx context.Context, queryText string) []string {
	queries := []string{queryText}

	if o.cfg.EnableLLMDiversification && o.llm != nil {
		diverse, err := o.diversifyLLM(ctx, queryText)
		if err != nil {
			o.logger.Warn("LLM查询改写失败，退回规则扩展", "error", err)
			queries = append(queries, o.expandAndRewrite(queryText)...)
		} else {
			queries = append(queries, diverse...)
		}
	} else {
		queries = append(queries, o.expandAndRewrite(queryText)...)
	}

	unique := dedupeBySimilarity(queries, o.cfg.SimilarityThreshold)
	if limit := o.cfg.MaxExpansions + 1; len(unique) > limit {
		unique = unique[:limit]
	}
	return unique
}

// diversifyLLM 用 LLM 生成多样化查询变体
func (o *QueryOptimizer) diversifyLLM(ctx context.Context, queryText string) ([]string, error) {
	raw, err := o.llm.Complete(ctx, "原查询："+queryText, &llm.CompleteOptions{
		SystemPrompt: diverseQueriesSystemPrompt,
		Temperature:  0.7,
		MaxTokens:    512,
		Timeout:      optimizeCallTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to call llm for query diversification: %w", err)
	}

	var variants []string
	for _, line := range strings.Split(raw, "\n") {
		line = cleanVariantLine(line)
		if line == "" || line == queryText || len([]rune(line)) <= 5 {
			continue
		}
		variants = append(variants, line)
		if len(variants) >= 3 {
			break
		}
	}
	return variants, nil
}

// cleanVariantLine 去掉序号、破折号等格式残留
func cleanVariantLine(line string) string {
	line = strings.TrimSpace(line)
	line = strings.TrimLeft(line, "-*• ")

	runes := []rune(line)
	digits := 0
	for digits < len(runes) && runes[digits] >= '0' && runes[digits] <= '9' {
		digits++
	}
	if digits > 0 && digits < len(runes) {
		switch runes[digits] {
		case '.', '、', ')', '）':
			runes = runes[digits+1:]
			line = string(runes)
		}
	}
	return strings.TrimSpace(line)
}

// expandAndRewrite 规则版查询扩展与改写
func (o *QueryOptimizer) expandAndRewrite(queryText string) []string {
	var out []string
	if o.cfg.EnableExpansion {
		if v := expandWithSynonyms(queryText); v != queryText {
			out = append(out, v)
		}
		if v := expandWithRelatedTerms(queryText); v != queryText {
			out = append(out, v)
		}
	}
	if o.cfg.EnableRewrite {
		out = append(out, rewriteByRules(queryText)...)
	}
	return out
}

// expandWithSynonyms 给命中的词追加一个同义词
func expandWithSynonyms(queryText string) string {
	var extra []string
	for key, synonyms := range synonymTable {
		if strings.Contains(queryText, key) && len(synonyms) > 0 {
			extra = append(extra, synonyms[0])
		}
	}
	if len(extra) == 0 {
		return queryText
	}
	return queryText + " " + strings.Join(extra, " ")
}

// expandWithRelatedTerms 按主题追加相关词，最多两个
func expandWithRelatedTerms(queryText string) string {
	var terms []string
	for _, rule := range relatedTermRules {
		if containsAny(queryText, rule.triggers) {
			terms = append(terms, rule.terms...)
		}
	}
	if len(terms) == 0 {
		return queryText
	}
	if len(terms) > 2 {
		terms = terms[:2]
	}
	return queryText + " " + strings.Join(terms, " ")
}

// rewriteByRules 问句转陈述句，并补一个动作词版本
func rewriteByRules(queryText string) []string {
	var out []string

	if strings.ContainsAny(queryText, "?？") {
		statement := strings.NewReplacer("?", "", "？", "").Replace(queryText)
		statement = strings.TrimSpace(statement)
		if statement != "" {
			out = append(out, statement)
		}
	}

	for _, action := range rewriteActionWords {
		if !strings.Contains(queryText, action) {
			out = append(out, action+queryText)
			break
		}
	}
	return out
}

// dedupeBySimilarity 按词重叠率去重，保留先出现的查询
func dedupeBySimilarity(queries []string, threshold float64) []string {
	if len(queries) == 0 {
		return nil
	}

	unique := []string{queries[0]}
	for _, q := range queries[1:] {
		similar := false
		for _, kept := range unique {
			if wordOverlap(q, kept) > threshold {
				similar = true
				break
			}
		}
		if !similar {
			unique = append(unique, q)
		}
	}
	return unique
}

// wordOverlap 两条查询分词集合的 Jaccard 重叠率
func wordOverlap(a, b string) float64 {
	setA := make(map[string]struct{})
	for _, w := range splitWords(strings.ToLower(a)) {
		setA[w] = struct{}{}
	}
	setB := make(map[string]struct{})
	for _, w := range splitWords(strings.ToLower(b)) {
		setB[w] = struct{}{}
	}

	intersection := 0
	for w := range setA {
		if _, ok := setB[w]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
