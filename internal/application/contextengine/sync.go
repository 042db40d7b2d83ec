package contextengine

import (
	"time"

	"log/slog"

	"github.com/meetflow/backend/internal/domain/events"
	"github.com/meetflow/backend/internal/domain/meeting"
	"github.com/meetflow/backend/internal/infrastructure/log"
)

// detectRecentCount 话题检测取用的近期话语条数
const detectRecentCount = 5

// SyncService 话语摄入与重放补录服务
// 实时路径：持久化 + 引擎摄入 + 话题检测 + 事件广播
// 补录路径：从存储按水位拉取缺口话语，串行回放进引擎
type SyncService struct {
	registry   *RuntimeRegistry
	utterances meeting.UtteranceRepository
	eventBus   events.EventBus
	logger     *slog.Logger
}

// NewSyncService 创建话语同步服务
func NewSyncService(registry *RuntimeRegistry, utterances meeting.UtteranceRepository, eventBus events.EventBus) *SyncService {
	return &SyncService{
		registry:   registry,
		utterances: utterances,
		eventBus:   eventBus,
		logger:     log.NewModuleLogger("contextengine", "sync"),
	}
}

// IngestResult 单条话语摄入结果
type IngestResult struct {
	// Accepted 为 false 表示话语是重放，已被静默忽略
	Accepted bool `json:"accepted"`
	// UtteranceID 引擎分配的 ID（仅 Accepted 时有效）
	UtteranceID int `json:"utterance_id,omitempty"`
	// CurrentTopic 摄入后的当前话题
	CurrentTopic string `json:"current_topic,omitempty"`
}

// Ingest 实时摄入一条话语
// 先落库再进引擎：引擎被驱逐后可以从存储完整重建
func (s *SyncService) Ingest(meetingID string, u meeting.Utterance) (*IngestResult, error) {
	if u.Timestamp.IsZero() {
		u.Timestamp = time.Now()
	}

	if err := s.utterances.Save(meetingID, &u); err != nil {
		return nil, err
	}

	rt := s.registry.GetOrCreate(meetingID)
	utteranceID, accepted := rt.Manager.AddUtterance(u)
	if !accepted {
		s.logger.Debug("replayed utterance ignored",
			"meeting_id", meetingID,
			"start_ms", u.StartMs,
		)
		return &IngestResult{Accepted: false}, nil
	}

	s.maybeDetectTopicShift(rt, u.Text)

	if s.eventBus != nil {
		s.eventBus.Publish(&events.UtteranceEvent{
			MeetingID:   meetingID,
			UtteranceID: utteranceID,
			SpeakerID:   u.SpeakerID,
			StartMs:     u.StartMs,
			EventTime:   time.Now(),
		})
	}

	return &IngestResult{
		Accepted:     true,
		UtteranceID:  utteranceID,
		CurrentTopic: rt.Manager.CurrentTopic(),
	}, nil
}

// maybeDetectTopicShift 话题切换检测
// 先用关键词快速预筛，命中后才在后台做 LLM 判定，
// 确认切换时冲刷开放话题缓冲并广播话题流更新
func (s *SyncService) maybeDetectTopicShift(rt *ContextRuntime, text string) {
	if !rt.Detector.QuickCheck(text) {
		return
	}

	go func() {
		recent := rt.Manager.GetL0Utterances(detectRecentCount)
		previousSummary := ""
		if segments := rt.Manager.GetL1Segments(); len(segments) > 0 {
			previousSummary = segments[len(segments)-1].Summary
		}

		result := rt.Detector.Detect(recent, previousSummary)
		if result == nil || !result.TopicChanged {
			return
		}

		rt.Manager.FlushOpenTopic(result.CurrentTopic)
		s.logger.Info("topic shift detected",
			"meeting_id", rt.MeetingID,
			"previous", result.PreviousTopic,
			"current", result.CurrentTopic,
			"confidence", result.Confidence,
			"reason", result.Reason,
		)

		if s.eventBus != nil {
			s.eventBus.Publish(&events.TopicFeedEvent{
				MeetingID: rt.MeetingID,
				Reason:    "topic_change",
				EventTime: time.Now(),
			})
		}
	}()
}

// ResyncResult 补录结果
type ResyncResult struct {
	// Replayed 实际回放进引擎的话语条数
	Replayed int `json:"replayed"`
	// Skipped 被引擎按水位忽略的条数
	Skipped int `json:"skipped"`
	// WatermarkMs 补录后的引擎水位
	WatermarkMs int64 `json:"watermark_ms"`
	// StoredTotal 存储中该会议的话语总数
	StoredTotal int `json:"stored_total"`
}

// Resync 从存储补录缺口话语
// cutoffMs 非 nil 时只回放 StartMs 不超过该值的部分；
// 持有运行时锁串行回放，避免与并发补录交错；幂等：
// 存储查询的下界是引擎当前水位（严格大于），重复调用不重复摄入
func (s *SyncService) Resync(meetingID string, cutoffMs *int64) (*ResyncResult, error) {
	rt := s.registry.GetOrCreate(meetingID)

	rt.Lock()
	defer rt.Unlock()

	since := rt.Manager.LastProcessedStartMs()
	missing, err := s.utterances.FetchSince(meetingID, since, cutoffMs)
	if err != nil {
		return nil, err
	}

	result := &ResyncResult{}
	for _, u := range missing {
		if _, ok := rt.Manager.AddUtterance(*u); ok {
			result.Replayed++
		} else {
			result.Skipped++
		}
	}
	result.WatermarkMs = rt.Manager.LastProcessedStartMs()
	if total, err := s.utterances.CountByMeeting(meetingID); err == nil {
		result.StoredTotal = total
	}

	s.logger.Info("meeting resynced",
		"meeting_id", meetingID,
		"replayed", result.Replayed,
		"skipped", result.Skipped,
		"watermark_ms", result.WatermarkMs,
	)

	if result.Replayed > 0 && s.eventBus != nil {
		s.eventBus.Publish(&events.TopicFeedEvent{
			MeetingID: meetingID,
			Reason:    "resync",
			EventTime: time.Now(),
		})
	}

	return result, nil
}
