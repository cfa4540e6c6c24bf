package queryproc

import "github.com/google/wire"

// ProviderSet 查询处理应用层 ProviderSet
var ProviderSet = wire.NewSet(
	NewIntentAnalyzer,
	NewQueryOptimizer,
	NewDecomposer,
	NewExecutor,
	NewSynthesizer,
	NewProcessor,
)
