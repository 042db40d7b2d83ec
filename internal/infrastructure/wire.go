package infrastructure

import (
	"github.com/meetflow/backend/internal/infrastructure/config"
	"github.com/meetflow/backend/internal/infrastructure/eventbus"
	"github.com/meetflow/backend/internal/infrastructure/storage"
	"github.com/meetflow/backend/internal/infrastructure/websocket"
	"github.com/google/wire"
)

// ProviderSet Infrastructure 层总 ProviderSet
var ProviderSet = wire.NewSet(
	config.ProviderSet,
	websocket.ProviderSet,
	storage.ProviderSet,
	eventbus.NewEventBus,
	// 可以继续添加其他基础设施模块
)
