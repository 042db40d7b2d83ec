// Package events 定义领域事件类型和接口
// 用于系统内部的事件驱动通信
package events

import "time"

// EventType 事件类型标识
type EventType string

// 话语与话题流相关事件类型
const (
	// UtteranceIngested 话语已摄入引擎事件
	UtteranceIngested EventType = "utterance.ingested"
	// TopicFeedUpdated 话题流投影更新事件（固化提交或话题切换后触发）
	TopicFeedUpdated EventType = "topicfeed.updated"
	// RuntimeEvicted 会议运行时被注册表驱逐事件
	RuntimeEvicted EventType = "runtime.evicted"
)

// Event 领域事件接口
// 所有事件类型都必须实现此接口
type Event interface {
	// Type 返回事件类型
	Type() EventType
	// Timestamp 返回事件发生时间
	Timestamp() time.Time
}
