package contextengine

import (
	"sync"

	"log/slog"

	"github.com/meetflow/backend/internal/domain/meeting"
	"github.com/meetflow/backend/internal/infrastructure/log"
	"github.com/google/uuid"
)

// mergeOverlapThreshold 相邻片段关键词 Jaccard 重叠率达到该值即合并
const mergeOverlapThreshold = 0.5

// fallbackSummaryRunes 降级摘要截取的最大字符数
const fallbackSummaryRunes = 120

// ManagerConfig 单个会议引擎的配置
type ManagerConfig struct {
	// L0Size 原始话语滚动窗口容量
	L0Size int
	// ChunkSize 触发后台固化的开放话题缓冲阈值
	ChunkSize int
	// Language 降级文案语言：zh-CN / en-US
	Language string
}

// withDefaults 填充零值字段
func (c ManagerConfig) withDefaults() ManagerConfig {
	if c.L0Size <= 0 {
		c.L0Size = 25
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = 25
	}
	if c.Language == "" {
		c.Language = "zh-CN"
	}
	return c
}

// CommitFunc 固化提交回调，在引擎锁外调用
type CommitFunc func(meetingID, reason string)

// ContextManager 单个会议的实时上下文引擎
//
// 两级滚动记忆：
//   - L0：固定容量的原始话语窗口 + 当前开放话题的累积缓冲
//   - L1：后台固化产生的话题片段列表（按起始话语 ID 有序，区间互不重叠）
//
// 开放话题缓冲攒满 ChunkSize 条即整体转入待固化队列，并在无固化任务
// 运行时调度一个后台任务串行排空队列（单飞）。热路径 AddUtterance
// 永不等待 LLM 调用。
type ContextManager struct {
	meetingID string
	cfg       ManagerConfig

	mu   sync.Mutex
	cond *sync.Cond

	l0            []*meeting.Utterance
	topicBuf      []*meeting.Utterance
	pendingChunks [][]*meeting.Utterance
	inFlight      []*meeting.Utterance
	l1            []*meeting.TopicSegment
	currentTopic  string
	isL1Running   bool

	nextID               int
	lastProcessedStartMs int64

	speakers *SpeakerContext

	analyzer Analyzer
	segments meeting.SegmentRepository
	onCommit CommitFunc
	logger   *slog.Logger
}

// NewContextManager 创建会议上下文引擎
// segments 与 onCommit 均可为 nil
func NewContextManager(meetingID string, cfg ManagerConfig, analyzer Analyzer, segments meeting.SegmentRepository, onCommit CommitFunc) *ContextManager {
	m := &ContextManager{
		meetingID:            meetingID,
		cfg:                  cfg.withDefaults(),
		speakers:             NewSpeakerContext(),
		analyzer:             analyzer,
		segments:             segments,
		onCommit:             onCommit,
		lastProcessedStartMs: -1,
		logger: log.NewModuleLogger("contextengine", "manager").With(
			"meeting_id", meetingID,
		),
	}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// MeetingID 返回会议 ID
func (m *ContextManager) MeetingID() string {
	return m.meetingID
}

// AddUtterance 摄入一条话语（热路径，立即返回）
// 话语 ID 由引擎分配后返回，同一会议内严格递增；StartMs 低于已处理
// 水位的重放被静默忽略并返回 accepted=false
func (m *ContextManager) AddUtterance(u meeting.Utterance) (id int, accepted bool) {
	m.mu.Lock()

	if u.StartMs < m.lastProcessedStartMs {
		m.mu.Unlock()
		return 0, false
	}

	m.nextID++
	u.ID = m.nextID
	u.Topic = m.currentTopic
	m.lastProcessedStartMs = u.StartMs

	m.l0 = append(m.l0, &u)
	if len(m.l0) > m.cfg.L0Size {
		m.l0 = m.l0[len(m.l0)-m.cfg.L0Size:]
	}

	m.topicBuf = append(m.topicBuf, &u)
	m.speakers.AddUtterance(&u)

	if len(m.topicBuf) >= m.cfg.ChunkSize {
		m.pendingChunks = append(m.pendingChunks, m.topicBuf)
		m.topicBuf = nil
		m.maybeStartConsolidationLocked()
	}

	m.mu.Unlock()
	return u.ID, true
}

// FlushOpenTopic 话题切换：将开放话题缓冲整体转入待固化队列
// newTopic 为检测到的新话题名，可为空
func (m *ContextManager) FlushOpenTopic(newTopic string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.topicBuf) > 0 {
		m.pendingChunks = append(m.pendingChunks, m.topicBuf)
		m.topicBuf = nil
		m.maybeStartConsolidationLocked()
	}
	m.currentTopic = newTopic
}

// maybeStartConsolidationLocked 无任务运行时调度下一个待固化块
// 调用方必须持有 m.mu
func (m *ContextManager) maybeStartConsolidationLocked() {
	if m.isL1Running || len(m.pendingChunks) == 0 {
		return
	}
	m.isL1Running = true
	chunk := m.pendingChunks[0]
	m.pendingChunks = m.pendingChunks[1:]
	m.inFlight = chunk
	go m.consolidateLoop(chunk)
}

// consolidateLoop 后台固化循环
// 串行排空队列；任何失败都降级为尽力而为的片段，绝不丢数据，
// 也绝不让 isL1Running 卡在 true
func (m *ContextManager) consolidateLoop(chunk []*meeting.Utterance) {
	for {
		m.consolidateChunk(chunk)

		m.mu.Lock()
		if len(m.pendingChunks) > 0 {
			chunk = m.pendingChunks[0]
			m.pendingChunks = m.pendingChunks[1:]
			m.inFlight = chunk
			m.mu.Unlock()
			continue
		}
		m.isL1Running = false
		m.cond.Broadcast()
		m.mu.Unlock()
		return
	}
}

// consolidateChunk 固化一个话语块
// LLM 调用期间不持有引擎锁，避免长时间阻塞 AddUtterance
func (m *ContextManager) consolidateChunk(chunk []*meeting.Utterance) {
	seg, degraded := m.summarizeChunk(chunk)

	// 合并判定：仅在正常固化时检查与前一片段的关键词重叠
	var prevCopy *meeting.TopicSegment
	m.mu.Lock()
	if !degraded && len(m.l1) > 0 {
		last := m.l1[len(m.l1)-1]
		if last.KeywordOverlap(seg) >= mergeOverlapThreshold {
			copied := *last
			prevCopy = &copied
		}
	}
	m.mu.Unlock()

	merged := false
	if prevCopy != nil {
		seg = m.mergeSegments(prevCopy, seg)
		merged = true
	}

	m.mu.Lock()
	if merged {
		// 单飞保证 l1 只被本循环修改，解锁期间末位片段不会变化
		m.l1[len(m.l1)-1] = seg
	} else {
		m.l1 = append(m.l1, seg)
	}
	if m.currentTopic == "" {
		m.currentTopic = seg.Name
	}
	m.inFlight = nil
	snapshot := m.copySegmentsLocked()
	m.mu.Unlock()

	if m.segments != nil {
		if err := m.segments.ReplaceForMeeting(m.meetingID, snapshot); err != nil {
			m.logger.Warn("failed to persist segment snapshot",
				"error", err,
			)
		}
	}
	if m.onCommit != nil {
		m.onCommit(m.meetingID, "consolidation")
	}

	m.logger.Info("chunk consolidated",
		"topic", seg.Name,
		"merged", merged,
		"degraded", degraded,
		"start_id", seg.StartUtteranceID,
		"end_id", seg.EndUtteranceID,
	)
}

// summarizeChunk 调用 LLM 将话语块固化为片段
// 失败时降级：首条话语截断为摘要、关键词为空（跳过合并判定）
func (m *ContextManager) summarizeChunk(chunk []*meeting.Utterance) (*meeting.TopicSegment, bool) {
	seg := &meeting.TopicSegment{
		ID:               uuid.New().String(),
		StartUtteranceID: chunk[0].ID,
		EndUtteranceID:   chunk[len(chunk)-1].ID,
		Participants:     participantNames(chunk),
	}

	if m.analyzer != nil {
		summary, err := m.analyzer.SummarizeChunk(formatUtterances(chunk))
		if err == nil && summary != nil {
			seg.Name = summary.TopicName
			seg.Summary = summary.Summary
			seg.Keywords = summary.Keywords
			seg.KeyPoints = summary.KeyPoints
			seg.KeyDecisions = summary.KeyDecisions
			seg.PendingItems = summary.PendingItems
			return seg, false
		}
		m.logger.Warn("chunk summarization failed, degrading to best-effort segment",
			"error", err,
		)
	}

	seg.Name = m.fallbackTopicName()
	seg.Summary = truncateRunes(chunk[0].Text, fallbackSummaryRunes)
	seg.Keywords = []string{}
	return seg, true
}

// mergeSegments 合并前一片段与新片段
// 名称与摘要交给 LLM 重写，失败时退化为摘要拼接；关键词始终取并集
func (m *ContextManager) mergeSegments(prev, next *meeting.TopicSegment) *meeting.TopicSegment {
	merged := &meeting.TopicSegment{
		ID:               prev.ID,
		StartUtteranceID: prev.StartUtteranceID,
		EndUtteranceID:   next.EndUtteranceID,
		Keywords:         meeting.MergeKeywords(prev.Keywords, next.Keywords),
		KeyPoints:        append(append([]string{}, prev.KeyPoints...), next.KeyPoints...),
		KeyDecisions:     append(append([]string{}, prev.KeyDecisions...), next.KeyDecisions...),
		PendingItems:     append(append([]string{}, prev.PendingItems...), next.PendingItems...),
		Participants:     mergeParticipants(prev.Participants, next.Participants),
	}

	if m.analyzer != nil {
		result, err := m.analyzer.MergeSummaries(prev.Name, prev.Summary, next.Name, next.Summary)
		if err == nil && result != nil && result.MergedText() != "" {
			merged.Name = result.Name()
			merged.Summary = result.MergedText()
			return merged
		}
		m.logger.Warn("segment merge via LLM failed, concatenating summaries",
			"error", err,
		)
	}

	merged.Name = next.Name
	if merged.Name == "" {
		merged.Name = prev.Name
	}
	merged.Summary = prev.Summary + "\n" + next.Summary
	return merged
}

// AwaitL1Idle 阻塞直到后台固化完全排空
// 可被多个读取方并发调用
func (m *ContextManager) AwaitL1Idle() {
	m.mu.Lock()
	for m.isL1Running || len(m.pendingChunks) > 0 {
		m.cond.Wait()
	}
	m.mu.Unlock()
}

// IsL1Running 是否有固化任务在运行
func (m *ContextManager) IsL1Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.isL1Running
}

// HasPendingL1 是否有待固化的话语块
func (m *ContextManager) HasPendingL1() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pendingChunks) > 0
}

// CurrentTopic 返回当前开放话题名
func (m *ContextManager) CurrentTopic() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentTopic
}

// LastProcessedStartMs 返回已处理话语的 StartMs 水位
func (m *ContextManager) LastProcessedStartMs() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastProcessedStartMs
}

// GetL0Utterances 返回 L0 窗口中最近 limit 条话语（时间正序）
// limit <= 0 时返回整个窗口
func (m *ContextManager) GetL0Utterances(limit int) []*meeting.Utterance {
	m.mu.Lock()
	defer m.mu.Unlock()

	start := 0
	if limit > 0 && limit < len(m.l0) {
		start = len(m.l0) - limit
	}
	return append([]*meeting.Utterance{}, m.l0[start:]...)
}

// GetL1Segments 返回话题片段列表快照
func (m *ContextManager) GetL1Segments() []*meeting.TopicSegment {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.copySegmentsLocked()
}

// copySegmentsLocked 复制片段列表，避免外部读到内部别名
// 调用方必须持有 m.mu
func (m *ContextManager) copySegmentsLocked() []*meeting.TopicSegment {
	result := make([]*meeting.TopicSegment, 0, len(m.l1))
	for _, s := range m.l1 {
		copied := *s
		result = append(result, &copied)
	}
	return result
}

// GetTopicUtterances 返回当前开放话题的全部话语
// 包含正在固化与排队中的块：它们尚未固化，仍属于开放话题
func (m *ContextManager) GetTopicUtterances() []*meeting.Utterance {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []*meeting.Utterance
	result = append(result, m.inFlight...)
	for _, chunk := range m.pendingChunks {
		result = append(result, chunk...)
	}
	result = append(result, m.topicBuf...)
	return result
}

// SpeakerStats 返回发言人统计快照
func (m *ContextManager) SpeakerStats() []*meeting.SpeakerStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.speakers.Stats()
}

// InferRoles 推断发言人角色
func (m *ContextManager) InferRoles() map[string]meeting.Role {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.speakers.InferRoles()
}

// GetSpeakerUtterances 返回指定发言人最近的话语
func (m *ContextManager) GetSpeakerUtterances(speakerID string, limit int) []*meeting.Utterance {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.speakers.GetSpeakerUtterances(speakerID, limit)
}

// GetInteractionSummary 返回发言人交互摘要
func (m *ContextManager) GetInteractionSummary() map[string][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.speakers.GetInteractionSummary()
}

// Participants 返回所有发言人姓名
func (m *ContextManager) Participants() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.speakers.Participants()
}

// Snapshot 在一次加锁内取出构建上下文所需的全部状态
type Snapshot struct {
	MeetingID       string
	CurrentTopic    string
	L0              []*meeting.Utterance
	TopicUtterances []*meeting.Utterance
	Segments        []*meeting.TopicSegment
	PendingChunks   int
	IsL1Running     bool
	Participants    []string
}

// Snapshot 返回一致性状态快照
func (m *ContextManager) Snapshot() *Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	var topicUtterances []*meeting.Utterance
	topicUtterances = append(topicUtterances, m.inFlight...)
	for _, chunk := range m.pendingChunks {
		topicUtterances = append(topicUtterances, chunk...)
	}
	topicUtterances = append(topicUtterances, m.topicBuf...)

	return &Snapshot{
		MeetingID:       m.meetingID,
		CurrentTopic:    m.currentTopic,
		L0:              append([]*meeting.Utterance{}, m.l0...),
		TopicUtterances: topicUtterances,
		Segments:        m.copySegmentsLocked(),
		PendingChunks:   len(m.pendingChunks),
		IsL1Running:     m.isL1Running,
		Participants:    m.speakers.Participants(),
	}
}

// fallbackTopicName 按配置语言返回降级话题名
func (m *ContextManager) fallbackTopicName() string {
	if m.cfg.Language == "en-US" {
		return "General discussion"
	}
	return "未分类讨论"
}

// participantNames 提取话语块中的发言人姓名（去重，保持出现顺序）
func participantNames(chunk []*meeting.Utterance) []string {
	seen := make(map[string]bool, len(chunk))
	var names []string
	for _, u := range chunk {
		if !seen[u.SpeakerName] {
			seen[u.SpeakerName] = true
			names = append(names, u.SpeakerName)
		}
	}
	return names
}

// mergeParticipants 合并两个参与者列表（去重）
func mergeParticipants(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var names []string
	for _, n := range append(append([]string{}, a...), b...) {
		if n != "" && !seen[n] {
			seen[n] = true
			names = append(names, n)
		}
	}
	return names
}

// truncateRunes 按字符数截断文本
func truncateRunes(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max]) + "…"
}
