package meeting

import "time"

// TopicFeedEntry 话题流中的单个话题
type TopicFeedEntry struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Summary   string   `json:"summary"`
	StartTurn int      `json:"start_turn"`
	EndTurn   int      `json:"end_turn"`
	Keywords  []string `json:"keywords"`
}

// TopicFeed 面向轮询/SSE 端点的话题流投影
// Topics 按 EndTurn 降序排列（最新话题在前）
type TopicFeed struct {
	MeetingID     string           `json:"meeting_id"`
	PendingChunks int              `json:"pending_chunks"`
	IsL1Running   bool             `json:"is_l1_running"`
	CurrentTopic  string           `json:"current_topic"`
	Topics        []TopicFeedEntry `json:"topics"`
	UpdatedAt     time.Time        `json:"updated_at"`
}
