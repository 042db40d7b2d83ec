package contextengine

import (
	"strings"
	"sync"

	"log/slog"

	"github.com/meetflow/backend/internal/domain/meeting"
	"github.com/meetflow/backend/internal/infrastructure/config"
	"github.com/meetflow/backend/internal/infrastructure/log"
)

// 判定来源标签
const (
	ReasonSourceLLM      = "llm"
	ReasonSourceFallback = "keyword_fallback"
)

// fallbackConfidence 启发式回退的固定置信度
const fallbackConfidence = 0.5

// TopicDetector 话题边界检测器
// 无会议级状态，可在所有会议间共享；关键词集合支持配置热更新
type TopicDetector struct {
	analyzer Analyzer
	logger   *slog.Logger

	mu       sync.RWMutex
	keywords []string
}

// NewTopicDetector 创建话题检测器
func NewTopicDetector(cfg *config.EngineConfig, analyzer Analyzer) *TopicDetector {
	keywords := config.DefaultTopicKeywords()
	if cfg != nil && len(cfg.TopicKeywords) > 0 {
		keywords = cfg.TopicKeywords
	}

	d := &TopicDetector{
		analyzer: analyzer,
		logger:   log.NewModuleLogger("contextengine", "detector"),
	}
	d.UpdateKeywords(keywords)
	return d
}

// UpdateKeywords 替换关键词集合（配置热更新入口）
func (d *TopicDetector) UpdateKeywords(keywords []string) {
	normalized := make([]string, 0, len(keywords))
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" {
			normalized = append(normalized, k)
		}
	}

	d.mu.Lock()
	d.keywords = normalized
	d.mu.Unlock()
}

// QuickCheck 纯同步的关键词包含检查
// 作为廉价预筛，命中才值得调用精确判定
func (d *TopicDetector) QuickCheck(text string) bool {
	lower := strings.ToLower(text)

	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, k := range d.keywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// Detect 精确判定最近话语是否越过话题边界
// 永不返回错误：LLM 不可用或解析失败时回退到对最新话语的 QuickCheck，
// 置信度固定为 0.5，Reason 标注来源以便下游区分
func (d *TopicDetector) Detect(recent []*meeting.Utterance, previousTopicSummary string) *meeting.TopicShiftResult {
	if len(recent) == 0 {
		return &meeting.TopicShiftResult{
			TopicChanged: false,
			Confidence:   fallbackConfidence,
			Reason:       ReasonSourceFallback,
		}
	}

	if d.analyzer != nil {
		result, err := d.analyzer.DetectTopicShift(previousTopicSummary, formatUtterances(recent))
		if err == nil && result != nil {
			if result.Reason == "" {
				result.Reason = ReasonSourceLLM
			} else {
				result.Reason = ReasonSourceLLM + ": " + result.Reason
			}
			return result
		}
		d.logger.Warn("topic detection via LLM failed, falling back to keyword check",
			"error", err,
		)
	}

	latest := recent[len(recent)-1]
	return &meeting.TopicShiftResult{
		TopicChanged: d.QuickCheck(latest.Text),
		CurrentTopic: "",
		Confidence:   fallbackConfidence,
		Reason:       ReasonSourceFallback,
	}
}

// formatUtterances 将话语列表格式化为提示词文本
func formatUtterances(utterances []*meeting.Utterance) string {
	var b strings.Builder
	for _, u := range utterances {
		b.WriteString(u.SpeakerName)
		b.WriteString(": ")
		b.WriteString(u.Text)
		b.WriteString("\n")
	}
	return b.String()
}
