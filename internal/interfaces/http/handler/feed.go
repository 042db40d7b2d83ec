package handler

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/meetflow/backend/internal/application/contextengine"
	"github.com/meetflow/backend/internal/domain/events"
	"github.com/meetflow/backend/internal/domain/meeting"
	"github.com/meetflow/backend/internal/interfaces/http/response"
	"github.com/gin-gonic/gin"
)

// sseHeartbeatInterval SSE 心跳周期，防止中间代理断开空闲连接
const sseHeartbeatInterval = 30 * time.Second

// FeedHandler 话题流处理器
type FeedHandler struct {
	feed     *contextengine.FeedService
	eventBus events.EventBus
}

// NewFeedHandler 创建话题流处理器
func NewFeedHandler(feed *contextengine.FeedService, eventBus events.EventBus) *FeedHandler {
	return &FeedHandler{feed: feed, eventBus: eventBus}
}

// Feed 返回话题流投影（轮询端点）
func (h *FeedHandler) Feed(c *gin.Context) {
	meetingID := c.Param("meetingId")

	feed, err := h.feed.Feed(meetingID)
	if err != nil {
		if errors.Is(err, contextengine.ErrMeetingNotFound) {
			response.Error(c, http.StatusNotFound, 400001, "会议不存在或已过期")
			return
		}
		response.ErrorWithDetail(c, http.StatusInternalServerError, 400002, "获取话题流失败", err.Error())
		return
	}

	response.Success(c, feed)
}

// Stream 话题流 SSE 端点
// 连接建立即推送当前投影，之后每次话题流更新推送一次
func (h *FeedHandler) Stream(c *gin.Context) {
	meetingID := c.Param("meetingId")

	initial, err := h.feed.Feed(meetingID)
	if err != nil {
		if errors.Is(err, contextengine.ErrMeetingNotFound) {
			response.Error(c, http.StatusNotFound, 400001, "会议不存在或已过期")
			return
		}
		response.ErrorWithDetail(c, http.StatusInternalServerError, 400002, "获取话题流失败", err.Error())
		return
	}

	updates := make(chan *meeting.TopicFeed, 8)
	unsubscribe := h.eventBus.SubscribeMultiple(
		[]events.EventType{events.TopicFeedUpdated, events.RuntimeEvicted},
		events.HandlerFunc(func(event events.Event) error {
			fe, ok := event.(*events.TopicFeedEvent)
			if !ok || fe.MeetingID != meetingID {
				return nil
			}
			feed, err := h.feed.Feed(meetingID)
			if err != nil {
				// 运行时被驱逐后推送空投影，客户端据此结束
				feed = &meeting.TopicFeed{MeetingID: meetingID, UpdatedAt: time.Now()}
			}
			select {
			case updates <- feed:
			default:
				// 客户端消费不及时，丢弃旧投影等下一次更新
			}
			return nil
		}),
	)
	defer unsubscribe()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	heartbeat := time.NewTicker(sseHeartbeatInterval)
	defer heartbeat.Stop()

	c.SSEvent("topic_feed", initial)
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case feed := <-updates:
			c.SSEvent("topic_feed", feed)
			return true
		case <-heartbeat.C:
			c.SSEvent("heartbeat", time.Now().Unix())
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
