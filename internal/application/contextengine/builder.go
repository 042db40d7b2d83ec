package contextengine

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"log/slog"

	"github.com/meetflow/backend/internal/domain/meeting"
	"github.com/meetflow/backend/internal/infrastructure/config"
	"github.com/meetflow/backend/internal/infrastructure/log"
	"github.com/meetflow/backend/internal/infrastructure/tokenizer"
)

// CallType 下游任务类型，决定上下文装配策略
type CallType string

const (
	// CallTypeImmediateResponse 即时应答：只需最近对话
	CallTypeImmediateResponse CallType = "immediate_response"
	// CallTypeSummary 会议摘要：近期对话 + 全部话题片段 + 待办
	CallTypeSummary CallType = "summary"
	// CallTypeActionExtraction 行动项提取：完整开放话题 + 全部片段
	CallTypeActionExtraction CallType = "action_extraction"
	// CallTypeSearch 检索：近期对话 + 全部片段
	CallTypeSearch CallType = "search"
)

// 各任务类型的 L0 取用条数
const (
	immediateRecentCount = 10
	summaryRecentCount   = 5
	searchRecentCount    = 5
)

// ErrMeetingNotFound 会议运行时不存在
var ErrMeetingNotFound = errors.New("meeting runtime not found")

// ErrUnknownCallType 未知任务类型
var ErrUnknownCallType = errors.New("unknown call type")

// ParseCallType 解析任务类型字符串
func ParseCallType(s string) (CallType, error) {
	switch CallType(s) {
	case CallTypeImmediateResponse, CallTypeSummary, CallTypeActionExtraction, CallTypeSearch:
		return CallType(s), nil
	case "":
		return CallTypeImmediateResponse, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownCallType, s)
	}
}

// AgentContext 面向下游任务的装配结果
type AgentContext struct {
	MeetingID        string                  `json:"meeting_id"`
	CallType         CallType                `json:"call_type"`
	Query            string                  `json:"query,omitempty"`
	CurrentTopic     string                  `json:"current_topic"`
	RecentUtterances []*meeting.Utterance    `json:"recent_utterances,omitempty"`
	TopicUtterances  []*meeting.Utterance    `json:"topic_utterances,omitempty"`
	Segments         []*meeting.TopicSegment `json:"segments,omitempty"`
	PendingItems     []string                `json:"pending_items,omitempty"`
	Participants     []string                `json:"participants,omitempty"`
	GeneratedAt      time.Time               `json:"generated_at"`
}

// RequiredTopicContext 按名称取话题的结果
// Missing 列出请求中未命中任何片段的名称
type RequiredTopicContext struct {
	MeetingID          string                  `json:"meeting_id"`
	Segments           []*meeting.TopicSegment `json:"segments"`
	OpenTopicUtterance []*meeting.Utterance    `json:"open_topic_utterances,omitempty"`
	Missing            []string                `json:"missing,omitempty"`
}

// ContextBuilder 上下文装配器
// 从引擎一致性快照按任务类型切出所需视图，不修改任何引擎状态
type ContextBuilder struct {
	registry *RuntimeRegistry
	budget   int
	logger   *slog.Logger
}

// NewContextBuilder 创建上下文装配器
func NewContextBuilder(registry *RuntimeRegistry, engineCfg *config.EngineConfig) *ContextBuilder {
	budget := engineCfg.PlanningTokenBudget
	if budget <= 0 {
		budget = 1500
	}
	return &ContextBuilder{
		registry: registry,
		budget:   budget,
		logger:   log.NewModuleLogger("contextengine", "builder"),
	}
}

// BuildContext 为指定任务类型装配上下文
// query 是下游任务要回答的用户问题，可为空
func (b *ContextBuilder) BuildContext(meetingID string, callType CallType, query string) (*AgentContext, error) {
	rt := b.registry.GetIfExists(meetingID)
	if rt == nil {
		return nil, ErrMeetingNotFound
	}
	snap := rt.Manager.Snapshot()

	ctx := &AgentContext{
		MeetingID:    meetingID,
		CallType:     callType,
		Query:        query,
		CurrentTopic: snap.CurrentTopic,
		Participants: snap.Participants,
		GeneratedAt:  time.Now(),
	}

	switch callType {
	case CallTypeImmediateResponse:
		ctx.RecentUtterances = lastN(snap.L0, immediateRecentCount)
	case CallTypeSummary:
		ctx.RecentUtterances = lastN(snap.L0, summaryRecentCount)
		ctx.Segments = snap.Segments
		ctx.PendingItems = collectPendingItems(snap.Segments)
	case CallTypeActionExtraction:
		ctx.TopicUtterances = snap.TopicUtterances
		ctx.Segments = snap.Segments
	case CallTypeSearch:
		ctx.RecentUtterances = lastN(snap.L0, searchRecentCount)
		ctx.Segments = snap.Segments
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownCallType, callType)
	}

	return ctx, nil
}

// BuildPlanningInputContext 装配规划输入文本
// 问题与当前话题置顶，最新话题片段优先，近期话语次之，按 token 预算截断
// l0Limit 非正时取默认条数
func (b *ContextBuilder) BuildPlanningInputContext(meetingID string, l0Limit int, query string) (string, error) {
	rt := b.registry.GetIfExists(meetingID)
	if rt == nil {
		return "", ErrMeetingNotFound
	}
	snap := rt.Manager.Snapshot()

	if l0Limit <= 0 {
		l0Limit = immediateRecentCount
	}

	var sections []string
	if query != "" {
		sections = append(sections, "问题: "+query)
	}
	if snap.CurrentTopic != "" {
		sections = append(sections, "当前话题: "+snap.CurrentTopic)
	}
	// 片段从新到旧：预算耗尽时牺牲的是最早的讨论
	for i := len(snap.Segments) - 1; i >= 0; i-- {
		s := snap.Segments[i]
		sections = append(sections, fmt.Sprintf("[%s] %s", s.Name, s.Summary))
	}
	recent := lastN(snap.L0, l0Limit)
	if len(recent) > 0 {
		var sb strings.Builder
		sb.WriteString("最近对话:\n")
		for _, u := range recent {
			sb.WriteString(fmt.Sprintf("%s: %s\n", u.SpeakerName, u.Text))
		}
		sections = append(sections, strings.TrimRight(sb.String(), "\n"))
	}

	return b.fitBudget(sections), nil
}

// fitBudget 按 token 预算拼接段落，超出预算的段落整段丢弃
func (b *ContextBuilder) fitBudget(sections []string) string {
	var kept []string
	used := 0
	for _, sec := range sections {
		tokens := b.countTokens(sec)
		if used+tokens > b.budget && len(kept) > 0 {
			break
		}
		kept = append(kept, sec)
		used += tokens
	}
	return strings.Join(kept, "\n\n")
}

// countTokens 估算文本 token 数
// 分词器不可用时按字符数近似
func (b *ContextBuilder) countTokens(text string) int {
	est, err := tokenizer.GetEstimator()
	if err != nil {
		b.logger.Warn("tokenizer unavailable, approximating by rune count", "error", err)
		return len([]rune(text)) / 2
	}
	return est.CountTokens(text)
}

// BuildRequiredTopicContext 按名称取指定话题的上下文
// 名称命中当前开放话题时附带开放话题话语
func (b *ContextBuilder) BuildRequiredTopicContext(meetingID string, names []string) (*RequiredTopicContext, error) {
	rt := b.registry.GetIfExists(meetingID)
	if rt == nil {
		return nil, ErrMeetingNotFound
	}
	snap := rt.Manager.Snapshot()

	result := &RequiredTopicContext{
		MeetingID: meetingID,
		Segments:  []*meeting.TopicSegment{},
	}

	byName := make(map[string][]*meeting.TopicSegment, len(snap.Segments))
	for _, s := range snap.Segments {
		byName[s.Name] = append(byName[s.Name], s)
	}

	for _, name := range names {
		matched := false
		if segs, ok := byName[name]; ok {
			result.Segments = append(result.Segments, segs...)
			matched = true
		}
		if name == snap.CurrentTopic && len(snap.TopicUtterances) > 0 {
			result.OpenTopicUtterance = snap.TopicUtterances
			matched = true
		}
		if !matched {
			result.Missing = append(result.Missing, name)
		}
	}

	return result, nil
}

// FormatContextAsSystemPrompt 将装配结果渲染为系统提示词文本
func FormatContextAsSystemPrompt(ctx *AgentContext) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# 会议上下文（%s）\n\n", ctx.MeetingID))

	if ctx.Query != "" {
		sb.WriteString("问题: " + ctx.Query + "\n\n")
	}
	if ctx.CurrentTopic != "" {
		sb.WriteString("当前话题: " + ctx.CurrentTopic + "\n\n")
	}
	if len(ctx.Participants) > 0 {
		sb.WriteString("参与者: " + strings.Join(ctx.Participants, ", ") + "\n\n")
	}
	if len(ctx.Segments) > 0 {
		sb.WriteString("## 已讨论话题\n\n")
		for _, s := range ctx.Segments {
			sb.WriteString(fmt.Sprintf("### %s\n%s\n", s.Name, s.Summary))
			if len(s.KeyDecisions) > 0 {
				sb.WriteString("决策: " + strings.Join(s.KeyDecisions, "; ") + "\n")
			}
			sb.WriteString("\n")
		}
	}
	if len(ctx.PendingItems) > 0 {
		sb.WriteString("## 待办事项\n\n")
		for _, item := range ctx.PendingItems {
			sb.WriteString("- " + item + "\n")
		}
		sb.WriteString("\n")
	}
	if len(ctx.TopicUtterances) > 0 {
		sb.WriteString("## 当前话题完整对话\n\n")
		for _, u := range ctx.TopicUtterances {
			sb.WriteString(fmt.Sprintf("%s: %s\n", u.SpeakerName, u.Text))
		}
		sb.WriteString("\n")
	}
	if len(ctx.RecentUtterances) > 0 {
		sb.WriteString("## 最近对话\n\n")
		for _, u := range ctx.RecentUtterances {
			sb.WriteString(fmt.Sprintf("%s: %s\n", u.SpeakerName, u.Text))
		}
	}

	return strings.TrimRight(sb.String(), "\n")
}

// lastN 取切片末尾 n 个元素
func lastN(utterances []*meeting.Utterance, n int) []*meeting.Utterance {
	if n >= len(utterances) {
		return utterances
	}
	return utterances[len(utterances)-n:]
}

// collectPendingItems 聚合所有片段的待办事项（去重，保持顺序）
func collectPendingItems(segments []*meeting.TopicSegment) []string {
	seen := make(map[string]bool)
	var items []string
	for _, s := range segments {
		for _, item := range s.PendingItems {
			if item != "" && !seen[item] {
				seen[item] = true
				items = append(items, item)
			}
		}
	}
	return items
}
