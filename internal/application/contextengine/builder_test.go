package contextengine

import (
	"fmt"
	"strings"
	"testing"

	"github.com/meetflow/backend/internal/domain/meeting"
	"github.com/meetflow/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBuilderFixture(t *testing.T, analyzer Analyzer, chunkSize int) (*ContextBuilder, *RuntimeRegistry) {
	t.Helper()
	engineCfg := &config.EngineConfig{
		L0Size:              25,
		ChunkSize:           chunkSize,
		RegistryCapacity:    10,
		RuntimeTTLSeconds:   3600,
		PlanningTokenBudget: 1500,
	}
	registry := NewRuntimeRegistry(engineCfg, &config.LLMConfig{Language: "zh-CN"}, analyzer, nil, nil)
	return NewContextBuilder(registry, engineCfg), registry
}

func TestParseCallType(t *testing.T) {
	t.Run("合法类型", func(t *testing.T) {
		for _, s := range []string{"immediate_response", "summary", "action_extraction", "search"} {
			ct, err := ParseCallType(s)
			require.NoError(t, err)
			assert.Equal(t, CallType(s), ct)
		}
	})

	t.Run("空串默认即时应答", func(t *testing.T) {
		ct, err := ParseCallType("")
		require.NoError(t, err)
		assert.Equal(t, CallTypeImmediateResponse, ct)
	})

	t.Run("未知类型报错", func(t *testing.T) {
		_, err := ParseCallType("translation")
		assert.ErrorIs(t, err, ErrUnknownCallType)
	})
}

func TestContextBuilder_BuildContext(t *testing.T) {
	t.Run("会议不存在", func(t *testing.T) {
		builder, _ := newBuilderFixture(t, nil, 100)

		_, err := builder.BuildContext("unknown", CallTypeImmediateResponse, "")
		assert.ErrorIs(t, err, ErrMeetingNotFound)
	})

	t.Run("即时应答只取最近对话", func(t *testing.T) {
		builder, registry := newBuilderFixture(t, nil, 100)
		rt := registry.GetOrCreate("m1")
		for i := 1; i <= 12; i++ {
			rt.Manager.AddUtterance(makeUtterance("s1", "张三", fmt.Sprintf("发言 %d", i), i))
		}

		ctx, err := builder.BuildContext("m1", CallTypeImmediateResponse, "")
		require.NoError(t, err)

		require.Len(t, ctx.RecentUtterances, 10)
		assert.Equal(t, 3, ctx.RecentUtterances[0].ID)
		assert.Equal(t, 12, ctx.RecentUtterances[9].ID)
		assert.Empty(t, ctx.Segments)
		assert.Empty(t, ctx.TopicUtterances)
	})

	t.Run("摘要视图含片段与待办", func(t *testing.T) {
		analyzer := &fakeAnalyzer{
			summaries: []*meeting.ChunkSummary{
				{TopicName: "排期", Summary: "确定了排期", Keywords: []string{"排期"},
					PendingItems: []string{"更新甘特图", "同步客户"}},
			},
		}
		builder, registry := newBuilderFixture(t, analyzer, 5)
		rt := registry.GetOrCreate("m1")
		for i := 1; i <= 8; i++ {
			rt.Manager.AddUtterance(makeUtterance("s1", "张三", "发言", i))
		}
		rt.Manager.AwaitL1Idle()

		ctx, err := builder.BuildContext("m1", CallTypeSummary, "")
		require.NoError(t, err)

		assert.Len(t, ctx.RecentUtterances, 5)
		require.Len(t, ctx.Segments, 1)
		assert.Equal(t, []string{"更新甘特图", "同步客户"}, ctx.PendingItems)
	})

	t.Run("行动项提取取完整开放话题", func(t *testing.T) {
		analyzer := &fakeAnalyzer{
			summaries: []*meeting.ChunkSummary{
				{TopicName: "话题", Summary: "摘要", Keywords: []string{"k"}},
			},
		}
		builder, registry := newBuilderFixture(t, analyzer, 5)
		rt := registry.GetOrCreate("m1")
		for i := 1; i <= 8; i++ {
			rt.Manager.AddUtterance(makeUtterance("s1", "张三", "发言", i))
		}
		rt.Manager.AwaitL1Idle()

		ctx, err := builder.BuildContext("m1", CallTypeActionExtraction, "")
		require.NoError(t, err)

		require.Len(t, ctx.TopicUtterances, 3, "固化后的开放话题只剩 3 条")
		assert.Equal(t, 6, ctx.TopicUtterances[0].ID)
		assert.Len(t, ctx.Segments, 1)
		assert.Empty(t, ctx.RecentUtterances)
	})

	t.Run("检索视图", func(t *testing.T) {
		builder, registry := newBuilderFixture(t, nil, 100)
		rt := registry.GetOrCreate("m1")
		for i := 1; i <= 8; i++ {
			rt.Manager.AddUtterance(makeUtterance("s1", "张三", "发言", i))
		}

		ctx, err := builder.BuildContext("m1", CallTypeSearch, "")
		require.NoError(t, err)

		assert.Len(t, ctx.RecentUtterances, 5)
		assert.Empty(t, ctx.Segments)
	})

	t.Run("携带用户问题", func(t *testing.T) {
		builder, registry := newBuilderFixture(t, nil, 100)
		rt := registry.GetOrCreate("m1")
		rt.Manager.AddUtterance(makeUtterance("s1", "张三", "上线窗口定在周五", 1))

		ctx, err := builder.BuildContext("m1", CallTypeSearch, "上线时间是什么时候")
		require.NoError(t, err)

		assert.Equal(t, "上线时间是什么时候", ctx.Query)
		assert.Contains(t, FormatContextAsSystemPrompt(ctx), "问题: 上线时间是什么时候")
	})
}

func TestContextBuilder_BuildRequiredTopicContext(t *testing.T) {
	analyzer := &fakeAnalyzer{
		summaries: []*meeting.ChunkSummary{
			{TopicName: "预算评审", Summary: "预算讨论", Keywords: []string{"预算"}},
		},
	}
	builder, registry := newBuilderFixture(t, analyzer, 5)
	rt := registry.GetOrCreate("m1")
	for i := 1; i <= 7; i++ {
		rt.Manager.AddUtterance(makeUtterance("s1", "张三", "发言", i))
	}
	rt.Manager.AwaitL1Idle()
	rt.Manager.FlushOpenTopic("") // 话题名置空，避免命中开放话题分支
	rt.Manager.AwaitL1Idle()

	t.Run("命中片段", func(t *testing.T) {
		result, err := builder.BuildRequiredTopicContext("m1", []string{"预算评审"})
		require.NoError(t, err)

		require.Len(t, result.Segments, 1)
		assert.Equal(t, "预算评审", result.Segments[0].Name)
		assert.Empty(t, result.Missing)
	})

	t.Run("未命中进入缺失列表", func(t *testing.T) {
		result, err := builder.BuildRequiredTopicContext("m1", []string{"预算评审", "人事变动"})
		require.NoError(t, err)

		assert.Len(t, result.Segments, 1)
		assert.Equal(t, []string{"人事变动"}, result.Missing)
	})

	t.Run("命中开放话题附带话语", func(t *testing.T) {
		rt2 := registry.GetOrCreate("m2")
		rt2.Manager.FlushOpenTopic("验收标准")
		rt2.Manager.AddUtterance(makeUtterance("s1", "张三", "验收按模块推进", 1))

		result, err := builder.BuildRequiredTopicContext("m2", []string{"验收标准"})
		require.NoError(t, err)

		assert.Empty(t, result.Missing)
		require.Len(t, result.OpenTopicUtterance, 1)
		assert.Equal(t, "验收按模块推进", result.OpenTopicUtterance[0].Text)
	})
}

func TestContextBuilder_BuildPlanningInputContext(t *testing.T) {
	t.Run("包含话题与近期对话", func(t *testing.T) {
		analyzer := &fakeAnalyzer{
			summaries: []*meeting.ChunkSummary{
				{TopicName: "上线计划", Summary: "分两批灰度上线", Keywords: []string{"上线"}},
			},
		}
		builder, registry := newBuilderFixture(t, analyzer, 5)
		rt := registry.GetOrCreate("m1")
		for i := 1; i <= 6; i++ {
			rt.Manager.AddUtterance(makeUtterance("s1", "张三", "上线相关发言", i))
		}
		rt.Manager.AwaitL1Idle()

		text, err := builder.BuildPlanningInputContext("m1", 0, "")
		require.NoError(t, err)

		assert.Contains(t, text, "上线计划")
		assert.Contains(t, text, "分两批灰度上线")
		assert.Contains(t, text, "最近对话:")
	})

	t.Run("预算截断保留最新片段", func(t *testing.T) {
		long := strings.Repeat("非常长的历史讨论内容 ", 200)
		analyzer := &fakeAnalyzer{
			summaries: []*meeting.ChunkSummary{
				{TopicName: "历史话题", Summary: long, Keywords: []string{"a", "b"}},
				{TopicName: "最新话题", Summary: "简短摘要", Keywords: []string{"x", "y"}},
			},
		}
		engineCfg := &config.EngineConfig{
			L0Size: 25, ChunkSize: 3, RegistryCapacity: 10,
			RuntimeTTLSeconds: 3600, PlanningTokenBudget: 200,
		}
		registry := NewRuntimeRegistry(engineCfg, &config.LLMConfig{}, analyzer, nil, nil)
		builder := NewContextBuilder(registry, engineCfg)

		rt := registry.GetOrCreate("m1")
		rt.Manager.FlushOpenTopic("后续安排")
		for i := 1; i <= 6; i++ {
			rt.Manager.AddUtterance(makeUtterance("s1", "张三", "发言", i))
		}
		rt.Manager.AwaitL1Idle()

		text, err := builder.BuildPlanningInputContext("m1", 0, "")
		require.NoError(t, err)

		assert.Contains(t, text, "最新话题", "最新片段优先保留")
		assert.NotContains(t, text, "历史话题", "超预算的早期片段被丢弃")
	})

	t.Run("问题置顶", func(t *testing.T) {
		builder, registry := newBuilderFixture(t, nil, 100)
		rt := registry.GetOrCreate("m1")
		rt.Manager.AddUtterance(makeUtterance("s1", "张三", "发言", 1))

		text, err := builder.BuildPlanningInputContext("m1", 0, "下个迭代做什么")
		require.NoError(t, err)

		assert.True(t, strings.HasPrefix(text, "问题: 下个迭代做什么"), "问题应当是首段")
	})

	t.Run("话语条数受限", func(t *testing.T) {
		builder, registry := newBuilderFixture(t, nil, 100)
		rt := registry.GetOrCreate("m1")
		for i := 1; i <= 6; i++ {
			rt.Manager.AddUtterance(makeUtterance("s1", "张三", fmt.Sprintf("发言 %d", i), i))
		}

		text, err := builder.BuildPlanningInputContext("m1", 2, "")
		require.NoError(t, err)

		assert.Contains(t, text, "发言 5")
		assert.Contains(t, text, "发言 6")
		assert.NotContains(t, text, "发言 4")
	})
}

func TestFormatContextAsSystemPrompt(t *testing.T) {
	ctx := &AgentContext{
		MeetingID:    "m1",
		CallType:     CallTypeSummary,
		CurrentTopic: "收尾讨论",
		Participants: []string{"张三", "李四"},
		Segments: []*meeting.TopicSegment{
			{Name: "方案评审", Summary: "选定方案 B", KeyDecisions: []string{"采用方案 B"}},
		},
		PendingItems: []string{"补充压测报告"},
		RecentUtterances: []*meeting.Utterance{
			{SpeakerName: "张三", Text: "今天先到这里"},
		},
	}

	prompt := FormatContextAsSystemPrompt(ctx)

	assert.Contains(t, prompt, "当前话题: 收尾讨论")
	assert.Contains(t, prompt, "张三, 李四")
	assert.Contains(t, prompt, "### 方案评审")
	assert.Contains(t, prompt, "采用方案 B")
	assert.Contains(t, prompt, "- 补充压测报告")
	assert.Contains(t, prompt, "张三: 今天先到这里")
}
