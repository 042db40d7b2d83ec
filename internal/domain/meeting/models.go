// Package meeting 定义会议转写领域的核心模型
// Utterance 与 TopicSegment 是上下文引擎的最小处理单位
package meeting

import "time"

// Utterance 一条语音转写话语
// ID 由上下文引擎在摄入时分配，同一会议内严格递增；摄入后不可变
type Utterance struct {
	ID          int       `json:"id"`
	SpeakerID   string    `json:"speaker_id"`
	SpeakerName string    `json:"speaker_name"`
	Text        string    `json:"text"`
	StartMs     int64     `json:"start_ms"` // 相对会议开始的毫秒偏移
	EndMs       int64     `json:"end_ms"`
	Timestamp   time.Time `json:"timestamp"` // 绝对时间
	Topic       string    `json:"topic,omitempty"`
}

// WordCount 估算话语的词数
// 中文按字符计，英文按空格分词
func (u *Utterance) WordCount() int {
	return countWords(u.Text)
}

// TopicSegment 一段已固化的话题片段
// 仅由后台固化产生；列表只追加，相邻片段可能被合并，但不会被拆分
type TopicSegment struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Summary          string   `json:"summary"`
	StartUtteranceID int      `json:"start_utterance_id"`
	EndUtteranceID   int      `json:"end_utterance_id"`
	Keywords         []string `json:"keywords"`
	KeyPoints        []string `json:"key_points"`
	KeyDecisions     []string `json:"key_decisions"`
	PendingItems     []string `json:"pending_items"`
	Participants     []string `json:"participants"`
}

// KeywordOverlap 计算与另一片段关键词集合的 Jaccard 重叠率
// |交集| / |并集|，任一侧为空时返回 0
func (s *TopicSegment) KeywordOverlap(other *TopicSegment) float64 {
	if len(s.Keywords) == 0 || len(other.Keywords) == 0 {
		return 0
	}
	set := make(map[string]bool, len(s.Keywords))
	for _, k := range s.Keywords {
		set[k] = true
	}
	union := len(set)
	intersection := 0
	for _, k := range other.Keywords {
		if set[k] {
			intersection++
		} else {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// MergeKeywords 返回两个片段关键词的并集，保持首次出现顺序
func MergeKeywords(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	merged := make([]string, 0, len(a)+len(b))
	for _, k := range append(append([]string{}, a...), b...) {
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		merged = append(merged, k)
	}
	return merged
}
