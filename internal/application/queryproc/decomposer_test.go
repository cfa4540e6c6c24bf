package queryproc

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knowbase/backend/internal/domain/query"
	"github.com/knowbase/backend/internal/infrastructure/config"
)

func decompositionIntent() *query.Intent {
	return &query.Intent{
		IntentType:            query.IntentComparative,
		ComplexityScore:       5.0,
		KeyEntities:           []string{"角色", "动机"},
		QuestionType:          query.QuestionComparative,
		RequiresDecomposition: true,
		Source:                "llm",
	}
}

// assertTopologicalOrder 校验执行计划中每个依赖都出现在其依赖方之前
func assertTopologicalOrder(t *testing.T, dr *query.DecompositionResult) {
	t.Helper()

	position := make(map[string]int)
	pos := 0
	for _, stage := range dr.ExecutionPlan {
		for _, id := range stage {
			position[id] = pos
			pos++
		}
	}
	require.Len(t, position, len(dr.SubQueries), "执行计划必须覆盖全部子查询")

	for _, sq := range dr.SubQueries {
		for _, dep := range sq.DependsOn {
			assert.Less(t, position[dep], position[sq.ID],
				"依赖 %s 必须排在 %s 之前", dep, sq.ID)
		}
	}
}

func TestDecomposer_SinglePlanWhenNotRequired(t *testing.T) {
	decomposer := NewDecomposer(&fakeCompleter{}, config.DefaultPipelineConfig())

	intent := &query.Intent{IntentType: query.IntentSimple, QuestionType: query.QuestionFactual, RequiresDecomposition: false}
	dr := decomposer.Decompose(context.Background(), "主人公是谁？", intent)

	require.Len(t, dr.SubQueries, 1)
	assert.False(t, dr.Decomposed)
	assert.Equal(t, "主人公是谁？", dr.SubQueries[0].Query)
	assert.Equal(t, 1, dr.SubQueries[0].Priority)
	assert.Empty(t, dr.SubQueries[0].DependsOn)
	assert.Equal(t, [][]string{{"q1"}}, dr.ExecutionPlan)
}

func TestDecomposer_LLMPlan(t *testing.T) {
	completer := &fakeCompleter{response: `[
		{"id": "q1", "query": "角色A的性格特点是什么", "intent": "factual", "priority": 1, "depends_on": []},
		{"id": "q2", "query": "角色B的性格特点是什么", "intent": "factual", "priority": 1, "depends_on": []},
		{"id": "q3", "query": "对比角色A和角色B的性格差异", "intent": "comparative", "priority": 2, "depends_on": ["q1", "q2"]}
	]`}
	decomposer := NewDecomposer(completer, config.DefaultPipelineConfig())

	dr := decomposer.Decompose(context.Background(), "比较故事中不同角色的性格特点和动机", decompositionIntent())

	require.Len(t, dr.SubQueries, 3)
	assert.True(t, dr.Decomposed)
	assertTopologicalOrder(t, dr)
	// 无依赖的两个子查询在第一阶段，依赖它们的在第二阶段
	assert.Equal(t, [][]string{{"q1", "q2"}, {"q3"}}, dr.ExecutionPlan)
}

func TestDecomposer_LLMFailureFallsBackToSinglePlan(t *testing.T) {
	tests := []struct {
		name      string
		completer *fakeCompleter
	}{
		{"调用失败", &fakeCompleter{err: errors.New("timeout")}},
		{"输出无法解析", &fakeCompleter{response: "抱歉，我不能分解"}},
		{"空列表", &fakeCompleter{response: "[]"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decomposer := NewDecomposer(tt.completer, config.DefaultPipelineConfig())
			dr := decomposer.Decompose(context.Background(), "比较不同方案的优缺点", decompositionIntent())

			require.Len(t, dr.SubQueries, 1)
			assert.False(t, dr.Decomposed)
			assert.Equal(t, "比较不同方案的优缺点", dr.SubQueries[0].Query)
		})
	}
}

func TestDecomposer_DropsInvalidDependencies(t *testing.T) {
	completer := &fakeCompleter{response: `[
		{"id": "q1", "query": "第一个问题", "intent": "factual", "priority": 1, "depends_on": ["q1", "q9"]},
		{"id": "q2", "query": "第二个问题", "intent": "factual", "priority": 2, "depends_on": ["q1"]}
	]`}
	decomposer := NewDecomposer(completer, config.DefaultPipelineConfig())

	dr := decomposer.Decompose(context.Background(), "比较故事中不同角色的性格特点和动机", decompositionIntent())

	require.Len(t, dr.SubQueries, 2)
	// 自引用和未知 id 都被丢弃
	assert.Empty(t, dr.SubQueries[0].DependsOn)
	assert.Equal(t, []string{"q1"}, dr.SubQueries[1].DependsOn)
	assertTopologicalOrder(t, dr)
}

func TestDecomposer_RepairsDependencyCycle(t *testing.T) {
	completer := &fakeCompleter{response: `[
		{"id": "q1", "query": "第一个问题", "intent": "factual", "priority": 1, "depends_on": ["q2"]},
		{"id": "q2", "query": "第二个问题", "intent": "factual", "priority": 2, "depends_on": ["q1"]}
	]`}
	decomposer := NewDecomposer(completer, config.DefaultPipelineConfig())

	dr := decomposer.Decompose(context.Background(), "比较故事中不同角色的性格特点和动机", decompositionIntent())

	// 环被拆掉后两个子查询都保留且计划可执行
	require.Len(t, dr.SubQueries, 2)
	assertTopologicalOrder(t, dr)
}

func TestDecomposer_TruncatesToMaxSubQueries(t *testing.T) {
	completer := &fakeCompleter{response: `[
		{"id": "q1", "query": "问题一", "priority": 1},
		{"id": "q2", "query": "问题二", "priority": 2},
		{"id": "q3", "query": "问题三", "priority": 3},
		{"id": "q4", "query": "问题四", "priority": 4},
		{"id": "q5", "query": "问题五", "priority": 5},
		{"id": "q6", "query": "问题六", "priority": 6}
	]`}
	decomposer := NewDecomposer(completer, config.DefaultPipelineConfig())

	dr := decomposer.Decompose(context.Background(), "比较故事中不同角色的性格特点和动机", decompositionIntent())
	assert.Len(t, dr.SubQueries, 5)
}

func TestDecomposer_FillsMissingIDsAndPriorities(t *testing.T) {
	completer := &fakeCompleter{response: `[
		{"query": "问题一"},
		{"query": "问题二", "intent": "nonsense"}
	]`}
	decomposer := NewDecomposer(completer, config.DefaultPipelineConfig())

	dr := decomposer.Decompose(context.Background(), "比较故事中不同角色的性格特点和动机", decompositionIntent())

	require.Len(t, dr.SubQueries, 2)
	assert.Equal(t, "q1", dr.SubQueries[0].ID)
	assert.Equal(t, "q2", dr.SubQueries[1].ID)
	assert.Equal(t, 1, dr.SubQueries[0].Priority)
	assert.Equal(t, 2, dr.SubQueries[1].Priority)
	// 无法识别的意图回退到事实型
	assert.Equal(t, query.QueryTypeFactual, dr.SubQueries[1].Intent)
}
