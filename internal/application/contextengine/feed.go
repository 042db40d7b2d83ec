package contextengine

import (
	"time"

	"log/slog"

	"github.com/meetflow/backend/internal/domain/events"
	"github.com/meetflow/backend/internal/domain/meeting"
	"github.com/meetflow/backend/internal/infrastructure/log"
	"github.com/meetflow/backend/internal/infrastructure/websocket"
)

// FeedService 话题流投影服务
// 轮询端点直接取投影；同时订阅话题流事件，把最新投影推给
// 订阅该会议的 WebSocket 连接。运行时被驱逐后从存储冷读片段
type FeedService struct {
	registry    *RuntimeRegistry
	hub         *websocket.Hub
	segments    meeting.SegmentRepository
	unsubscribe func()
	logger      *slog.Logger
}

// NewFeedService 创建话题流服务并订阅话题流事件
func NewFeedService(registry *RuntimeRegistry, hub *websocket.Hub, segments meeting.SegmentRepository, eventBus events.EventBus) *FeedService {
	s := &FeedService{
		registry: registry,
		hub:      hub,
		segments: segments,
		logger:   log.NewModuleLogger("contextengine", "feed"),
	}
	if eventBus != nil {
		s.unsubscribe = eventBus.SubscribeMultiple(
			[]events.EventType{events.TopicFeedUpdated, events.RuntimeEvicted},
			events.HandlerFunc(s.handleFeedEvent),
		)
	}
	return s
}

// Close 取消事件订阅
func (s *FeedService) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}

// Feed 返回指定会议的话题流投影
// 运行时不存在时回落到存储中已固化的片段，两边都没有才算会议不存在
func (s *FeedService) Feed(meetingID string) (*meeting.TopicFeed, error) {
	rt := s.registry.GetIfExists(meetingID)
	if rt != nil {
		return buildFeed(rt.Manager.Snapshot()), nil
	}
	if s.segments == nil {
		return nil, ErrMeetingNotFound
	}
	stored, err := s.segments.ListByMeeting(meetingID)
	if err != nil {
		return nil, err
	}
	if len(stored) == 0 {
		return nil, ErrMeetingNotFound
	}
	return buildFeedFromSegments(meetingID, stored), nil
}

// handleFeedEvent 话题流事件处理：向会议的 WebSocket 连接推送
func (s *FeedService) handleFeedEvent(event events.Event) error {
	fe, ok := event.(*events.TopicFeedEvent)
	if !ok {
		return nil
	}

	if event.Type() == events.RuntimeEvicted {
		return s.hub.BroadcastToMeeting(fe.MeetingID, map[string]interface{}{
			"type":       "runtime_evicted",
			"meeting_id": fe.MeetingID,
		})
	}

	if s.hub.ConnectionCount(fe.MeetingID) == 0 {
		return nil
	}
	feed, err := s.Feed(fe.MeetingID)
	if err != nil {
		// 事件送达时运行时可能已被驱逐
		s.logger.Debug("feed unavailable for event",
			"meeting_id", fe.MeetingID,
			"reason", fe.Reason,
		)
		return nil
	}
	return s.hub.BroadcastToMeeting(fe.MeetingID, map[string]interface{}{
		"type":   "topic_feed",
		"reason": fe.Reason,
		"feed":   feed,
	})
}

// buildFeed 从引擎快照构建话题流投影
func buildFeed(snap *Snapshot) *meeting.TopicFeed {
	feed := &meeting.TopicFeed{
		MeetingID:     snap.MeetingID,
		PendingChunks: snap.PendingChunks,
		IsL1Running:   snap.IsL1Running,
		CurrentTopic:  snap.CurrentTopic,
		Topics:        make([]meeting.TopicFeedEntry, 0, len(snap.Segments)),
		UpdatedAt:     time.Now(),
	}
	// 片段本身按起始话语有序，倒序即最新在前
	for i := len(snap.Segments) - 1; i >= 0; i-- {
		feed.Topics = append(feed.Topics, feedEntry(snap.Segments[i]))
	}
	return feed
}

// buildFeedFromSegments 从存储片段构建冷投影
// 没有运行时状态，开放话题与待固化信息均为空
func buildFeedFromSegments(meetingID string, segments []*meeting.TopicSegment) *meeting.TopicFeed {
	feed := &meeting.TopicFeed{
		MeetingID: meetingID,
		Topics:    make([]meeting.TopicFeedEntry, 0, len(segments)),
		UpdatedAt: time.Now(),
	}
	for i := len(segments) - 1; i >= 0; i-- {
		feed.Topics = append(feed.Topics, feedEntry(segments[i]))
	}
	return feed
}

func feedEntry(s *meeting.TopicSegment) meeting.TopicFeedEntry {
	return meeting.TopicFeedEntry{
		ID:        s.ID,
		Name:      s.Name,
		Summary:   s.Summary,
		StartTurn: s.StartUtteranceID,
		EndTurn:   s.EndUtteranceID,
		Keywords:  s.Keywords,
	}
}
