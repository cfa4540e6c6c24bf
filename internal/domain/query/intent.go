package query

// IntentType 意图类型，刻画查询的整体形态
type IntentType string

const (
	IntentSimple      IntentType = "simple"       // 简单型：单一事实即可回答
	IntentComparative IntentType = "comparative"  // 比较型：对比多个对象
	IntentMultiAspect IntentType = "multi_aspect" // 多方面型：涉及多个独立方面
	IntentComplex     IntentType = "complex"      // 复杂型：需要多步推理
)

// QuestionType 问题类型，刻画查询期望的回答方式
type QuestionType string

const (
	QuestionFactual     QuestionType = "factual"     // 事实性：谁、什么、何时
	QuestionAnalytical  QuestionType = "analytical"  // 分析性：原因、影响、评价
	QuestionProcedural  QuestionType = "procedural"  // 程序性：如何做
	QuestionComparative QuestionType = "comparative" // 比较性：区别、异同
)

// QueryType 子查询的检索意图类型
type QueryType string

const (
	QueryTypeFactual     QueryType = "factual"     // 事实型：谁、什么、何时
	QueryTypeComparative QueryType = "comparative" // 比较型：对比多个对象
	QueryTypeAnalytical  QueryType = "analytical"  // 分析型：原因、影响、评价
	QueryTypeProcedural  QueryType = "procedural"  // 过程型：如何做
	QueryTypeMultiHop    QueryType = "multi_hop"   // 多跳型：需要串联多个事实
)

// Intent 查询意图分析结果
type Intent struct {
	IntentType            IntentType   `json:"intent_type"`
	ComplexityScore       float64      `json:"complexity_score"`
	KeyEntities           []string     `json:"key_entities"`
	QuestionType          QuestionType `json:"question_type"`
	RequiresDecomposition bool         `json:"requires_decomposition"`
	// Reasoning 分析推理过程的简要说明
	Reasoning string `json:"reasoning,omitempty"`
	// Source 标记意图来源：llm 或 rule
	Source string `json:"source"`
}

// SubQuery 分解出的子查询
type SubQuery struct {
	ID        string    `json:"id"`         // 子查询标识，如 q1、q2
	Query     string    `json:"query"`      // 子查询文本
	Intent    QueryType `json:"intent"`     // 子查询意图
	Priority  int       `json:"priority"`   // 优先级，越小越先执行
	DependsOn []string  `json:"depends_on"` // 依赖的子查询 ID 列表
}

// DecompositionResult 查询分解结果
type DecompositionResult struct {
	OriginalQuery string      `json:"original_query"`
	SubQueries    []*SubQuery `json:"sub_queries"`
	// ExecutionPlan 拓扑排序后的执行计划，外层按阶段、内层为同阶段子查询 ID
	ExecutionPlan [][]string `json:"execution_plan"`
	// Decomposed 是否实际发生了分解（false 表示单查询计划）
	Decomposed bool `json:"decomposed"`
}
