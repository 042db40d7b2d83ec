package contextengine

import "github.com/google/wire"

// ProviderSet 上下文引擎应用层 ProviderSet
var ProviderSet = wire.NewSet(
	NewAnalyzer,
	NewRuntimeRegistry,
	NewContextBuilder,
	NewSyncService,
	NewFeedService,
)
