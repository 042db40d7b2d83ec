package contextengine

import (
	"errors"
	"testing"

	"github.com/meetflow/backend/internal/domain/meeting"
	"github.com/meetflow/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopicDetector_QuickCheck(t *testing.T) {
	d := NewTopicDetector(&config.EngineConfig{TopicKeywords: []string{"接下来", "Next Topic"}}, nil)

	t.Run("命中关键词", func(t *testing.T) {
		assert.True(t, d.QuickCheck("接下来我们讨论预算"))
	})

	t.Run("英文关键词不区分大小写", func(t *testing.T) {
		assert.True(t, d.QuickCheck("ok, next topic please"))
	})

	t.Run("未命中", func(t *testing.T) {
		assert.False(t, d.QuickCheck("这个方案我同意"))
	})

	t.Run("热更新替换关键词", func(t *testing.T) {
		d.UpdateKeywords([]string{"换个话题"})

		assert.True(t, d.QuickCheck("我们换个话题吧"))
		assert.False(t, d.QuickCheck("接下来我们讨论预算"))
	})
}

func TestTopicDetector_Detect(t *testing.T) {
	t.Run("LLM 判定结果透传", func(t *testing.T) {
		analyzer := &fakeAnalyzer{
			shiftResult: &meeting.TopicShiftResult{
				TopicChanged:  true,
				PreviousTopic: "架构",
				CurrentTopic:  "预算",
				Confidence:    0.85,
				Reason:        "讨论对象完全变化",
			},
		}
		d := NewTopicDetector(nil, analyzer)

		u := makeUtterance("s1", "张三", "接下来聊聊预算", 1)
		result := d.Detect([]*meeting.Utterance{&u}, "架构讨论摘要")

		require.NotNil(t, result)
		assert.True(t, result.TopicChanged)
		assert.Equal(t, "预算", result.CurrentTopic)
		assert.Equal(t, "llm: 讨论对象完全变化", result.Reason)
	})

	t.Run("LLM 失败回退关键词启发式", func(t *testing.T) {
		analyzer := &fakeAnalyzer{shiftErr: errors.New("timeout")}
		d := NewTopicDetector(&config.EngineConfig{TopicKeywords: []string{"接下来"}}, analyzer)

		u := makeUtterance("s1", "张三", "接下来聊聊预算", 1)
		result := d.Detect([]*meeting.Utterance{&u}, "")

		require.NotNil(t, result, "检测永不失败")
		assert.True(t, result.TopicChanged)
		assert.Equal(t, fallbackConfidence, result.Confidence)
		assert.Equal(t, ReasonSourceFallback, result.Reason)
	})

	t.Run("无分析器时直接走启发式", func(t *testing.T) {
		d := NewTopicDetector(&config.EngineConfig{TopicKeywords: []string{"接下来"}}, nil)

		u := makeUtterance("s1", "张三", "这个方案我同意", 1)
		result := d.Detect([]*meeting.Utterance{&u}, "")

		require.NotNil(t, result)
		assert.False(t, result.TopicChanged)
	})

	t.Run("空输入不判定切换", func(t *testing.T) {
		d := NewTopicDetector(nil, nil)

		result := d.Detect(nil, "")

		require.NotNil(t, result)
		assert.False(t, result.TopicChanged)
	})
}
