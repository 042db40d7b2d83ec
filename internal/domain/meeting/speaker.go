package meeting

import (
	"strings"
	"unicode"
)

// Role 发言人角色
type Role string

const (
	RoleFacilitator Role = "facilitator" // 主持人：提问比例高
	RolePresenter   Role = "presenter"   // 主讲人：平均发言较长
	RoleParticipant Role = "participant" // 普通参与者
	RoleObserver    Role = "observer"    // 旁观者：发言极少
)

// SpeakerStats 单个发言人的滚动统计
// 每摄入一条该发言人的话语即增量更新
type SpeakerStats struct {
	UserID             string  `json:"user_id"`
	Name               string  `json:"name"`
	UtteranceCount     int     `json:"utterance_count"`
	QuestionCount      int     `json:"question_count"`
	StatementCount     int     `json:"statement_count"`
	TotalWords         int     `json:"total_words"`
	AvgUtteranceLength float64 `json:"avg_utterance_length"`
}

// QuestionRatio 提问占比
func (s *SpeakerStats) QuestionRatio() float64 {
	if s.UtteranceCount == 0 {
		return 0
	}
	return float64(s.QuestionCount) / float64(s.UtteranceCount)
}

// 疑问句启发式词表
// 语言相关但稳定，作为固定规则便于测试
var (
	questionEndings  = []string{"?", "？", "吗", "呢", "么"}
	questionStarters = []string{
		"为什么", "怎么", "如何", "是否", "能不能", "可不可以", "什么", "哪",
		"what", "why", "how", "when", "where", "who", "which",
		"is", "are", "do", "does", "can", "could", "should", "would", "will",
	}
)

// IsQuestion 判断一条话语是否为疑问句
func IsQuestion(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return false
	}
	for _, end := range questionEndings {
		if strings.HasSuffix(trimmed, end) {
			return true
		}
	}
	lower := strings.ToLower(trimmed)
	for _, start := range questionStarters {
		if strings.HasPrefix(lower, start+" ") || strings.HasPrefix(lower, start) && !isASCIIWord(start) {
			return true
		}
	}
	return false
}

// isASCIIWord 判断是否为纯 ASCII 词（英文前缀需要词边界，中文不需要）
func isASCIIWord(s string) bool {
	for _, r := range s {
		if r > unicode.MaxASCII {
			return false
		}
	}
	return true
}

// countWords 统计词数：CJK 字符逐字计数，其余按空格分词
func countWords(text string) int {
	count := 0
	inWord := false
	for _, r := range text {
		switch {
		case unicode.Is(unicode.Han, r):
			count++
			inWord = false
		case unicode.IsSpace(r):
			inWord = false
		default:
			if !inWord {
				count++
				inWord = true
			}
		}
	}
	return count
}
