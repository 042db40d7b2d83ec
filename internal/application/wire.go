package application

import (
	"github.com/meetflow/backend/internal/application/contextengine"
	"github.com/google/wire"
)

// ProviderSet Application 层总 ProviderSet
var ProviderSet = wire.NewSet(
	contextengine.ProviderSet,
	// 可以继续添加其他应用服务模块
)
