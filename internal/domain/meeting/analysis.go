package meeting

// TopicShiftResult 话题边界判定结果
// Reason 标注来源：LLM 判定或关键词启发式回退
type TopicShiftResult struct {
	TopicChanged  bool    `json:"topic_changed"`
	PreviousTopic string  `json:"previous_topic"`
	CurrentTopic  string  `json:"current_topic"`
	Confidence    float64 `json:"confidence"`
	Reason        string  `json:"reason"`
}

// ChunkSummary 话语块固化结果
type ChunkSummary struct {
	TopicName    string   `json:"topic_name"`
	Summary      string   `json:"summary"`
	Keywords     []string `json:"keywords"`
	KeyPoints    []string `json:"key_points"`
	KeyDecisions []string `json:"key_decisions"`
	PendingItems []string `json:"pending_items"`
}

// MergeResult 相邻片段合并结果
// 兼容 merged_topic_name/topic_name 两种返回键
type MergeResult struct {
	MergedTopicName string   `json:"merged_topic_name"`
	TopicName       string   `json:"topic_name"`
	MergedSummary   string   `json:"merged_summary"`
	Summary         string   `json:"summary"`
	Keywords        []string `json:"keywords"`
}

// Name 返回合并后的话题名
func (m *MergeResult) Name() string {
	if m.MergedTopicName != "" {
		return m.MergedTopicName
	}
	return m.TopicName
}

// MergedText 返回合并后的摘要
func (m *MergeResult) MergedText() string {
	if m.MergedSummary != "" {
		return m.MergedSummary
	}
	return m.Summary
}
