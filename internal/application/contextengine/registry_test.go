package contextengine

import (
	"fmt"
	"testing"
	"time"

	"github.com/meetflow/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(capacity, ttlSeconds int) *RuntimeRegistry {
	engineCfg := &config.EngineConfig{
		L0Size:            25,
		ChunkSize:         25,
		RegistryCapacity:  capacity,
		RuntimeTTLSeconds: ttlSeconds,
	}
	llmCfg := &config.LLMConfig{Language: "zh-CN"}
	return NewRuntimeRegistry(engineCfg, llmCfg, nil, nil, nil)
}

func TestRuntimeRegistry_GetOrCreate(t *testing.T) {
	t.Run("同一会议返回同一运行时", func(t *testing.T) {
		r := newTestRegistry(10, 3600)

		rt1 := r.GetOrCreate("m1")
		rt2 := r.GetOrCreate("m1")

		assert.Same(t, rt1, rt2)
		assert.Equal(t, 1, r.Count())
	})

	t.Run("不同会议相互隔离", func(t *testing.T) {
		r := newTestRegistry(10, 3600)

		rt1 := r.GetOrCreate("m1")
		rt2 := r.GetOrCreate("m2")

		rt1.Manager.AddUtterance(makeUtterance("s1", "张三", "只属于 m1", 1))

		assert.Len(t, rt1.Manager.GetL0Utterances(0), 1)
		assert.Empty(t, rt2.Manager.GetL0Utterances(0))
	})

	t.Run("容量满时驱逐最久未访问", func(t *testing.T) {
		r := newTestRegistry(3, 3600)

		base := time.Now()
		clock := base
		r.now = func() time.Time { return clock }

		for i := 1; i <= 3; i++ {
			r.GetOrCreate(fmt.Sprintf("m%d", i))
			clock = clock.Add(time.Minute)
		}
		// 触达 m1，使 m2 成为最久未访问
		r.GetOrCreate("m1")
		clock = clock.Add(time.Minute)

		r.GetOrCreate("m4")

		assert.Equal(t, 3, r.Count())
		assert.Nil(t, r.GetIfExists("m2"), "最久未访问的 m2 应被驱逐")
		assert.NotNil(t, r.GetIfExists("m1"))
		assert.NotNil(t, r.GetIfExists("m4"))
	})
}

func TestRuntimeRegistry_GetIfExists(t *testing.T) {
	t.Run("不存在时返回 nil 且不创建", func(t *testing.T) {
		r := newTestRegistry(10, 3600)

		assert.Nil(t, r.GetIfExists("unknown"))
		assert.Equal(t, 0, r.Count())
	})

	t.Run("访问刷新空闲时间", func(t *testing.T) {
		r := newTestRegistry(10, 60)

		base := time.Now()
		clock := base
		r.now = func() time.Time { return clock }

		r.GetOrCreate("m1")

		// 50 秒后访问一次，再过 50 秒仍未超过 TTL
		clock = base.Add(50 * time.Second)
		require.NotNil(t, r.GetIfExists("m1"))

		clock = base.Add(100 * time.Second)
		r.evictExpired()
		assert.NotNil(t, r.GetIfExists("m1"))
	})
}

func TestRuntimeRegistry_TTLEviction(t *testing.T) {
	t.Run("空闲超过 TTL 被驱逐", func(t *testing.T) {
		r := newTestRegistry(10, 60)

		base := time.Now()
		clock := base
		r.now = func() time.Time { return clock }

		r.GetOrCreate("m1")
		r.GetOrCreate("m2")

		clock = base.Add(30 * time.Second)
		r.GetOrCreate("m2")

		clock = base.Add(70 * time.Second)
		r.evictExpired()

		assert.Nil(t, r.GetIfExists("m1"))
		assert.NotNil(t, r.GetIfExists("m2"))
	})
}

func TestRuntimeRegistry_Remove(t *testing.T) {
	r := newTestRegistry(10, 3600)

	r.GetOrCreate("m1")

	assert.True(t, r.Remove("m1"))
	assert.False(t, r.Remove("m1"))
	assert.Equal(t, 0, r.Count())
}
