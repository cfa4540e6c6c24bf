package query

import "errors"

var (
	// ErrMalformedLLMOutput LLM 返回内容无法解析。
	// 调用方必须降级到规则策略，不得向上层透出。
	ErrMalformedLLMOutput = errors.New("malformed llm output")

	// ErrRetrievalUnavailable 所有检索通道均不可用
	ErrRetrievalUnavailable = errors.New("retrieval unavailable")

	// ErrDependencyCycle 子查询依赖图存在环。
	// 分解器会通过删边修复，该错误不会从 process 透出。
	ErrDependencyCycle = errors.New("dependency cycle in sub-queries")
)
