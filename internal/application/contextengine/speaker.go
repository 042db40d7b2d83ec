package contextengine

import (
	"sort"

	"github.com/meetflow/backend/internal/domain/meeting"
)

// 角色推断阈值
const (
	facilitatorQuestionRatio = 0.5
	presenterAvgWords        = 20
	observerMaxUtterances    = 3
)

// SpeakerContext 发言人上下文
// 维护每个发言人的滚动统计与发言人之间的交互矩阵
// 非并发安全：所有调用都发生在所属 ContextManager 的锁内
type SpeakerContext struct {
	stats        map[string]*meeting.SpeakerStats
	utterances   map[string][]*meeting.Utterance
	interactions map[string]map[string]int
	lastSpeaker  string
}

// NewSpeakerContext 创建发言人上下文
func NewSpeakerContext() *SpeakerContext {
	return &SpeakerContext{
		stats:        make(map[string]*meeting.SpeakerStats),
		utterances:   make(map[string][]*meeting.Utterance),
		interactions: make(map[string]map[string]int),
	}
}

// AddUtterance 增量更新发言人统计
func (sc *SpeakerContext) AddUtterance(u *meeting.Utterance) {
	s, ok := sc.stats[u.SpeakerID]
	if !ok {
		s = &meeting.SpeakerStats{
			UserID: u.SpeakerID,
			Name:   u.SpeakerName,
		}
		sc.stats[u.SpeakerID] = s
	}

	words := u.WordCount()
	s.UtteranceCount++
	s.TotalWords += words
	s.AvgUtteranceLength = float64(s.TotalWords) / float64(s.UtteranceCount)
	if meeting.IsQuestion(u.Text) {
		s.QuestionCount++
	} else {
		s.StatementCount++
	}

	sc.utterances[u.SpeakerID] = append(sc.utterances[u.SpeakerID], u)

	// 发言人切换时累计交互：当前发言人在回应上一位发言人
	if sc.lastSpeaker != "" && sc.lastSpeaker != u.SpeakerID {
		if sc.interactions[u.SpeakerID] == nil {
			sc.interactions[u.SpeakerID] = make(map[string]int)
		}
		sc.interactions[u.SpeakerID][sc.lastSpeaker]++
	}
	sc.lastSpeaker = u.SpeakerID
}

// Stats 返回所有发言人统计的副本，按发言数降序
func (sc *SpeakerContext) Stats() []*meeting.SpeakerStats {
	result := make([]*meeting.SpeakerStats, 0, len(sc.stats))
	for _, s := range sc.stats {
		copied := *s
		result = append(result, &copied)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].UtteranceCount != result[j].UtteranceCount {
			return result[i].UtteranceCount > result[j].UtteranceCount
		}
		return result[i].UserID < result[j].UserID
	})
	return result
}

// InferRoles 按固定阈值推断发言人角色
// 每次调用即时重算，不做缓存
func (sc *SpeakerContext) InferRoles() map[string]meeting.Role {
	roles := make(map[string]meeting.Role, len(sc.stats))
	for id, s := range sc.stats {
		switch {
		case s.QuestionRatio() > facilitatorQuestionRatio:
			roles[id] = meeting.RoleFacilitator
		case s.AvgUtteranceLength > presenterAvgWords:
			roles[id] = meeting.RolePresenter
		case s.UtteranceCount < observerMaxUtterances:
			roles[id] = meeting.RoleObserver
		default:
			roles[id] = meeting.RoleParticipant
		}
	}
	return roles
}

// GetSpeakerUtterances 返回指定发言人最近的 limit 条话语（时间正序）
// limit <= 0 时返回全部
func (sc *SpeakerContext) GetSpeakerUtterances(speakerID string, limit int) []*meeting.Utterance {
	all := sc.utterances[speakerID]
	if limit <= 0 || limit >= len(all) {
		return append([]*meeting.Utterance{}, all...)
	}
	return append([]*meeting.Utterance{}, all[len(all)-limit:]...)
}

// GetInteractionSummary 返回每个发言人回应次数 >= 2 的对象列表
func (sc *SpeakerContext) GetInteractionSummary() map[string][]string {
	summary := make(map[string][]string)
	for from, targets := range sc.interactions {
		var responded []string
		for to, count := range targets {
			if count >= 2 {
				responded = append(responded, to)
			}
		}
		if len(responded) > 0 {
			sort.Strings(responded)
			summary[from] = responded
		}
	}
	return summary
}

// Participants 返回所有发言人姓名，按首次发言顺序不作保证，按名称排序
func (sc *SpeakerContext) Participants() []string {
	names := make([]string, 0, len(sc.stats))
	for _, s := range sc.stats {
		names = append(names, s.Name)
	}
	sort.Strings(names)
	return names
}
