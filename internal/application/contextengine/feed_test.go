package contextengine

import (
	"testing"

	"github.com/meetflow/backend/internal/domain/meeting"
	"github.com/meetflow/backend/internal/infrastructure/config"
	"github.com/meetflow/backend/internal/infrastructure/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeedService_Feed(t *testing.T) {
	engineCfg := &config.EngineConfig{
		L0Size: 25, ChunkSize: 5, RegistryCapacity: 10, RuntimeTTLSeconds: 3600,
	}
	analyzer := &fakeAnalyzer{
		summaries: []*meeting.ChunkSummary{
			{TopicName: "开场", Summary: "会议目标", Keywords: []string{"目标"}},
			{TopicName: "排期", Summary: "确定里程碑", Keywords: []string{"里程碑"}},
		},
	}
	registry := NewRuntimeRegistry(engineCfg, &config.LLMConfig{}, analyzer, nil, nil)
	svc := NewFeedService(registry, websocket.NewHub(), nil, nil)
	defer svc.Close()

	t.Run("会议不存在", func(t *testing.T) {
		_, err := svc.Feed("unknown")
		assert.ErrorIs(t, err, ErrMeetingNotFound)
	})

	t.Run("投影最新话题在前", func(t *testing.T) {
		rt := registry.GetOrCreate("m1")
		for i := 1; i <= 12; i++ {
			rt.Manager.AddUtterance(makeUtterance("s1", "张三", "发言", i))
		}
		rt.Manager.AwaitL1Idle()

		feed, err := svc.Feed("m1")
		require.NoError(t, err)

		assert.Equal(t, "m1", feed.MeetingID)
		assert.False(t, feed.IsL1Running)
		assert.Equal(t, 0, feed.PendingChunks)
		require.Len(t, feed.Topics, 2)
		assert.Equal(t, "排期", feed.Topics[0].Name, "最新话题在前")
		assert.Equal(t, "开场", feed.Topics[1].Name)
		assert.Equal(t, 10, feed.Topics[0].EndTurn)
		assert.Equal(t, 1, feed.Topics[1].StartTurn)
	})
}

func TestFeedService_ColdRead(t *testing.T) {
	engineCfg := &config.EngineConfig{
		L0Size: 25, ChunkSize: 100, RegistryCapacity: 10, RuntimeTTLSeconds: 3600,
	}
	store := &fakeSegmentStore{}
	require.NoError(t, store.ReplaceForMeeting("m1", []*meeting.TopicSegment{
		{ID: "seg-1", Name: "开场", Summary: "会议目标", StartUtteranceID: 1, EndUtteranceID: 5},
		{ID: "seg-2", Name: "排期", Summary: "确定里程碑", StartUtteranceID: 6, EndUtteranceID: 10},
	}))
	registry := NewRuntimeRegistry(engineCfg, &config.LLMConfig{}, nil, store, nil)
	svc := NewFeedService(registry, websocket.NewHub(), store, nil)
	defer svc.Close()

	t.Run("运行时被驱逐后从存储冷读", func(t *testing.T) {
		feed, err := svc.Feed("m1")
		require.NoError(t, err)

		assert.Equal(t, "m1", feed.MeetingID)
		assert.Empty(t, feed.CurrentTopic)
		require.Len(t, feed.Topics, 2)
		assert.Equal(t, "排期", feed.Topics[0].Name, "冷读同样最新话题在前")
		assert.Equal(t, "开场", feed.Topics[1].Name)
	})

	t.Run("存储也没有片段才算会议不存在", func(t *testing.T) {
		_, err := svc.Feed("unknown")
		assert.ErrorIs(t, err, ErrMeetingNotFound)
	})
}
