package llm

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/meetflow/backend/internal/domain/meeting"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newChatServer 构造返回固定回复文本的 Chat API 假服务
func newChatServer(t *testing.T, reply string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Contains(t, r.Header.Get("Authorization"), "Bearer ")

		resp := map[string]any{
			"choices": []map[string]any{
				{"index": 0, "message": map[string]any{"role": "assistant", "content": reply}},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestUnmarshalLenient(t *testing.T) {
	t.Run("纯 JSON 直接解析", func(t *testing.T) {
		var result meeting.TopicShiftResult
		err := unmarshalLenient(`{"topic_changed": true, "confidence": 0.9}`, &result)
		require.NoError(t, err)
		assert.True(t, result.TopicChanged)
		assert.Equal(t, 0.9, result.Confidence)
	})

	t.Run("包裹说明文字时截取花括号区间", func(t *testing.T) {
		var result meeting.TopicShiftResult
		content := "好的，以下是判定结果：\n```json\n{\"topic_changed\": false, \"reason\": \"同一话题\"}\n```\n如有疑问请告知。"
		err := unmarshalLenient(content, &result)
		require.NoError(t, err)
		assert.False(t, result.TopicChanged)
		assert.Equal(t, "同一话题", result.Reason)
	})

	t.Run("没有 JSON 时返回错误", func(t *testing.T) {
		var result meeting.TopicShiftResult
		err := unmarshalLenient("抱歉，我无法判断。", &result)
		assert.Error(t, err)
	})
}

func TestClient_DetectTopicShift(t *testing.T) {
	srv := newChatServer(t, `{"topic_changed": true, "previous_topic": "预算", "current_topic": "排期", "confidence": 0.85, "reason": "出现新议题"}`)
	defer srv.Close()

	client := NewClient(srv.URL, "test-key", "test-model", "zh-CN")
	result, err := client.DetectTopicShift("讨论季度预算", "接下来我们看一下排期")
	require.NoError(t, err)
	assert.True(t, result.TopicChanged)
	assert.Equal(t, "排期", result.CurrentTopic)
	assert.Equal(t, 0.85, result.Confidence)
}

func TestClient_SummarizeChunk(t *testing.T) {
	srv := newChatServer(t, `{"topic_name": "发布计划", "summary": "确定了发布时间。", "keywords": ["发布", "计划"], "key_points": ["下周五发布"], "key_decisions": [], "pending_items": ["确认回滚方案"]}`)
	defer srv.Close()

	client := NewClient(srv.URL, "test-key", "test-model", "zh-CN")
	summary, err := client.SummarizeChunk("A: 我们下周五发布\nB: 好")
	require.NoError(t, err)
	assert.Equal(t, "发布计划", summary.TopicName)
	assert.Equal(t, []string{"发布", "计划"}, summary.Keywords)
	assert.Equal(t, []string{"确认回滚方案"}, summary.PendingItems)
}

func TestClient_MergeSummaries_KeyFallback(t *testing.T) {
	// 模型可能返回 topic_name/summary 而非 merged_ 前缀键
	srv := newChatServer(t, `{"topic_name": "发布计划", "summary": "合并后的摘要。", "keywords": ["发布"]}`)
	defer srv.Close()

	client := NewClient(srv.URL, "test-key", "test-model", "zh-CN")
	merged, err := client.MergeSummaries("发布", "摘要 A", "发布计划", "摘要 B")
	require.NoError(t, err)
	assert.Equal(t, "发布计划", merged.Name())
	assert.Equal(t, "合并后的摘要。", merged.MergedText())
}

func TestClient_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream overloaded", http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-key", "test-model", "zh-CN")
	_, err := client.SummarizeChunk("文本")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}
