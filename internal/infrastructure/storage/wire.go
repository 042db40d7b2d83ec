package storage

import "github.com/google/wire"

// ProviderSet Storage 基础设施层 ProviderSet
var ProviderSet = wire.NewSet(
	ProvideDB,               // 提供数据库连接
	NewUtteranceRepository,  // 话语仓储
	NewSegmentRepository,    // 话题片段仓储
)
