package queryproc

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/knowbase/backend/internal/domain/query"
	"github.com/knowbase/backend/internal/infrastructure/config"
	"github.com/knowbase/backend/internal/infrastructure/llm"
	"github.com/knowbase/backend/internal/infrastructure/log"
)

const decomposeSystemPrompt = `你是一个查询分解助手。把复杂查询拆成若干可独立检索的子查询，只返回 JSON 数组：
[
  {"id": "q1", "query": "子查询文本", "intent": "factual", "priority": 1, "depends_on": []},
  {"id": "q2", "query": "子查询文本", "intent": "analytical", "priority": 2, "depends_on": ["q1"]}
]
要求：
1. 子查询数量不超过 %d 个；
2. priority 表示执行优先级，数字越小越先执行；
3. depends_on 只能引用已出现的子查询 id，依赖关系不允许成环；
4. 每个子查询必须可以独立表述，不要用"它/这个"指代。
不要输出 JSON 以外的任何内容。`

const decomposeCallTimeout = 20 * time.Second

// Decomposer 查询分解器
// 复杂查询经 LLM 拆分为带依赖关系的子查询；LLM 不可用或输出无效时退化为单查询计划。
type Decomposer struct {
	llm    Completer
	cfg    config.DecompositionConfig
	logger *slog.Logger
}

// NewDecomposer 创建查询分解器
func NewDecomposer(completer Completer, pipelineCfg *config.PipelineConfig) *Decomposer {
	return &Decomposer{
		llm:    completer,
		cfg:    pipelineCfg.Decomposition,
		logger: log.NewModuleLogger("queryproc", "decomposer"),
	}
}

// Decompose 分解查询并生成执行计划，返回结果永远可用
func (d *Decomposer) Decompose(ctx context.Context, queryText string, intent *query.Intent) *query.DecompositionResult {
	if !intent.RequiresDecomposition {
		return d.singleQueryPlan(queryText, intent)
	}

	subQueries, err := d.decomposeLLM(ctx, queryText, intent)
	if err != nil {
		d.logger.Warn("LLM查询分解失败，退化为单查询计划", "error", err)
		return d.singleQueryPlan(queryText, intent)
	}
	if len(subQueries) == 0 {
		return d.singleQueryPlan(queryText, intent)
	}

	d.repairDependencies(subQueries)
	plan := buildExecutionPlan(subQueries)

	return &query.DecompositionResult{
		OriginalQuery: queryText,
		SubQueries:    subQueries,
		ExecutionPlan: plan,
		Decomposed:    len(subQueries) > 1,
	}
}

func (d *Decomposer) singleQueryPlan(queryText string, intent *query.Intent) *query.DecompositionResult {
	sub := &query.SubQuery{
		ID:       "q1",
		Query:    queryText,
		Intent:   query.QueryType(intent.QuestionType),
		Priority: 1,
	}
	return &query.DecompositionResult{
		OriginalQuery: queryText,
		SubQueries:    []*query.SubQuery{sub},
		ExecutionPlan: [][]string{{"q1"}},
		Decomposed:    false,
	}
}

type llmSubQueryPayload struct {
	ID        string   `json:"id"`
	Query     string   `json:"query"`
	Intent    string   `json:"intent"`
	Priority  int      `json:"priority"`
	DependsOn []string `json:"depends_on"`
}

func (d *Decomposer) decomposeLLM(ctx context.Context, queryText string, intent *query.Intent) ([]*query.SubQuery, error) {
	if d.llm == nil {
		return nil, fmt.Errorf("llm client not configured")
	}

	prompt := fmt.Sprintf("查询：%s\n意图类型：%s\n问题类型：%s\n关键实体：%s",
		queryText, intent.IntentType, intent.QuestionType, strings.Join(intent.KeyEntities, "、"))
	raw, err := d.llm.Complete(ctx, prompt, &llm.CompleteOptions{
		SystemPrompt: fmt.Sprintf(decomposeSystemPrompt, d.cfg.MaxSubQueries),
		Temperature:  0.2,
		MaxTokens:    1024,
		Timeout:      decomposeCallTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to call llm for decomposition: %w", err)
	}

	var payloads []llmSubQueryPayload
	if err := llm.DecodeJSON(raw, &payloads); err != nil {
		return nil, fmt.Errorf("failed to decode decomposition response: %w", err)
	}

	var subQueries []*query.SubQuery
	usedIDs := make(map[string]struct{})
	for i, p := range payloads {
		if len(subQueries) >= d.cfg.MaxSubQueries {
			d.logger.Warn("子查询数量超限，截断", "limit", d.cfg.MaxSubQueries)
			break
		}
		if strings.TrimSpace(p.Query) == "" {
			continue
		}
		id := strings.TrimSpace(p.ID)
		if _, dup := usedIDs[id]; id == "" || dup {
			id = fmt.Sprintf("q%d", i+1)
		}
		usedIDs[id] = struct{}{}
		queryType := query.QueryType(p.Intent)
		if _, ok := validQueryTypes[queryType]; !ok {
			queryType = query.QueryTypeFactual
		}
		priority := p.Priority
		if priority <= 0 {
			priority = i + 1
		}
		subQueries = append(subQueries, &query.SubQuery{
			ID:        id,
			Query:     strings.TrimSpace(p.Query),
			Intent:    queryType,
			Priority:  priority,
			DependsOn: p.DependsOn,
		})
	}
	return subQueries, nil
}

// repairDependencies 清理无效依赖并拆环
// 未知 id 和自引用直接丢弃；检测到环时删掉闭合该环的那条边并告警，
// 保证后续拓扑排序一定能完成。
func (d *Decomposer) repairDependencies(subQueries []*query.SubQuery) {
	known := make(map[string]*query.SubQuery, len(subQueries))
	for _, sq := range subQueries {
		known[sq.ID] = sq
	}

	for _, sq := range subQueries {
		var deps []string
		seen := make(map[string]struct{})
		for _, dep := range sq.DependsOn {
			if dep == sq.ID {
				d.logger.Warn("丢弃子查询自引用依赖", "id", sq.ID)
				continue
			}
			if _, ok := known[dep]; !ok {
				d.logger.Warn("丢弃未知的依赖 id", "id", sq.ID, "depends_on", dep)
				continue
			}
			if _, ok := seen[dep]; ok {
				continue
			}
			seen[dep] = struct{}{}
			deps = append(deps, dep)
		}
		sq.DependsOn = deps
	}

	// 反复做 DFS，直到依赖图无环
	for {
		from, to, found := findCycleEdge(subQueries)
		if !found {
			return
		}
		d.logger.Warn("子查询依赖图存在环，删除闭合边",
			"error", query.ErrDependencyCycle, "from", from, "to", to)
		sq := known[from]
		deps := sq.DependsOn[:0]
		for _, dep := range sq.DependsOn {
			if dep != to {
				deps = append(deps, dep)
			}
		}
		sq.DependsOn = deps
	}
}

// findCycleEdge DFS 找出闭合环的边（from 依赖 to）
func findCycleEdge(subQueries []*query.SubQuery) (string, string, bool) {
	byID := make(map[string]*query.SubQuery, len(subQueries))
	for _, sq := range subQueries {
		byID[sq.ID] = sq
	}

	const (
		white = 0 // 未访问
		gray  = 1 // 访问中
		black = 2 // 已完成
	)
	color := make(map[string]int, len(subQueries))

	var cycleFrom, cycleTo string
	var visit func(id string) bool
	visit = func(id string) bool {
		color[id] = gray
		for _, dep := range byID[id].DependsOn {
			switch color[dep] {
			case gray:
				// 回边即闭合环的边
				cycleFrom, cycleTo = id, dep
				return true
			case white:
				if visit(dep) {
					return true
				}
			}
		}
		color[id] = black
		return false
	}

	for _, sq := range subQueries {
		if color[sq.ID] == white && visit(sq.ID) {
			return cycleFrom, cycleTo, true
		}
	}
	return "", "", false
}

// buildExecutionPlan 按依赖分层生成执行计划
// 每一层是所有依赖都已满足的子查询，层内按优先级升序、同优先级保持原始顺序。
// 调用前必须先经过 repairDependencies，保证图无环。
func buildExecutionPlan(subQueries []*query.SubQuery) [][]string {
	order := make(map[string]int, len(subQueries))
	for i, sq := range subQueries {
		order[sq.ID] = i
	}

	done := make(map[string]struct{}, len(subQueries))
	remaining := make([]*query.SubQuery, len(subQueries))
	copy(remaining, subQueries)

	var plan [][]string
	for len(remaining) > 0 {
		var stage []*query.SubQuery
		var next []*query.SubQuery
		for _, sq := range remaining {
			ready := true
			for _, dep := range sq.DependsOn {
				if _, ok := done[dep]; !ok {
					ready = false
					break
				}
			}
			if ready {
				stage = append(stage, sq)
			} else {
				next = append(next, sq)
			}
		}
		if len(stage) == 0 {
			// 无环图不可能走到这里，兜底避免死循环
			for _, sq := range next {
				stage = append(stage, sq)
			}
			next = nil
		}

		sort.SliceStable(stage, func(i, j int) bool {
			if stage[i].Priority != stage[j].Priority {
				return stage[i].Priority < stage[j].Priority
			}
			return order[stage[i].ID] < order[stage[j].ID]
		})

		ids := make([]string, 0, len(stage))
		for _, sq := range stage {
			ids = append(ids, sq.ID)
			done[sq.ID] = struct{}{}
		}
		plan = append(plan, ids)
		remaining = next
	}
	return plan
}
