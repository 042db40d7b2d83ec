package contextengine

import (
	"log/slog"

	"github.com/meetflow/backend/internal/domain/meeting"
	"github.com/meetflow/backend/internal/infrastructure/config"
	"github.com/meetflow/backend/internal/infrastructure/llm"
	"github.com/meetflow/backend/internal/infrastructure/log"
)

// Analyzer LLM 分析协作方接口
// 引擎只依赖此接口，测试中用函数字段的假实现替换
type Analyzer interface {
	// DetectTopicShift 判定最近话语是否越过话题边界
	DetectTopicShift(previousTopicSummary, recentText string) (*meeting.TopicShiftResult, error)
	// SummarizeChunk 将一个话语块固化为话题摘要
	SummarizeChunk(chunkText string) (*meeting.ChunkSummary, error)
	// MergeSummaries 合并两个相邻话题片段
	MergeSummaries(prevName, prevSummary, newName, newSummary string) (*meeting.MergeResult, error)
}

// llmAnalyzer Analyzer 的 LLM 实现（应用层 wrapper）
type llmAnalyzer struct {
	client *llm.Client
	logger *slog.Logger
}

// NewAnalyzer 创建 LLM 分析器
// 未配置 API Key 时返回 nil，引擎对 nil Analyzer 统一走降级路径
func NewAnalyzer(cfg *config.LLMConfig) Analyzer {
	if cfg == nil || cfg.APIKey == "" {
		log.NewModuleLogger("contextengine", "llm_client").
			Info("LLM API key not configured, analyzer disabled, consolidation will degrade")
		return nil
	}

	return &llmAnalyzer{
		client: llm.NewClient(cfg.BaseURL, cfg.APIKey, cfg.Model, cfg.Language),
		logger: log.NewModuleLogger("contextengine", "llm_client"),
	}
}

// DetectTopicShift 判定话题边界
func (a *llmAnalyzer) DetectTopicShift(previousTopicSummary, recentText string) (*meeting.TopicShiftResult, error) {
	return a.client.DetectTopicShift(previousTopicSummary, recentText)
}

// SummarizeChunk 固化话语块
func (a *llmAnalyzer) SummarizeChunk(chunkText string) (*meeting.ChunkSummary, error) {
	return a.client.SummarizeChunk(chunkText)
}

// MergeSummaries 合并相邻片段
func (a *llmAnalyzer) MergeSummaries(prevName, prevSummary, newName, newSummary string) (*meeting.MergeResult, error) {
	return a.client.MergeSummaries(prevName, prevSummary, newName, newSummary)
}
