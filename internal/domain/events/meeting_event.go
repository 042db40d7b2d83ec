package events

import "time"

// UtteranceEvent 话语摄入事件
// 每条话语成功进入上下文引擎后触发
type UtteranceEvent struct {
	// MeetingID 会议 ID
	MeetingID string
	// UtteranceID 引擎分配的话语 ID
	UtteranceID int
	// SpeakerID 发言人 ID
	SpeakerID string
	// StartMs 话语起始毫秒偏移
	StartMs int64
	// EventTime 事件发生时间
	EventTime time.Time
}

// Type 实现 Event 接口
func (e *UtteranceEvent) Type() EventType {
	return UtteranceIngested
}

// Timestamp 实现 Event 接口
func (e *UtteranceEvent) Timestamp() time.Time {
	return e.EventTime
}

// TopicFeedEvent 话题流更新事件
// 后台固化提交或话题切换后触发，订阅者据此推送最新投影
type TopicFeedEvent struct {
	// MeetingID 会议 ID
	MeetingID string
	// Reason 触发原因（consolidation/topic_change/eviction）
	Reason string
	// EventTime 事件发生时间
	EventTime time.Time
}

// Type 实现 Event 接口
func (e *TopicFeedEvent) Type() EventType {
	if e.Reason == "eviction" {
		return RuntimeEvicted
	}
	return TopicFeedUpdated
}

// Timestamp 实现 Event 接口
func (e *TopicFeedEvent) Timestamp() time.Time {
	return e.EventTime
}
