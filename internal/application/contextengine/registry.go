package contextengine

import (
	"sync"
	"time"

	"log/slog"

	"github.com/meetflow/backend/internal/domain/events"
	"github.com/meetflow/backend/internal/domain/meeting"
	"github.com/meetflow/backend/internal/infrastructure/config"
	"github.com/meetflow/backend/internal/infrastructure/log"
)

// cleanupInterval 过期运行时扫描周期
const cleanupInterval = 60 * time.Second

// ContextRuntime 会议运行时：引擎 + 话题检测器 + 访问时间
// mu 串行化重放补录，避免与实时摄入交错
type ContextRuntime struct {
	MeetingID string
	Manager   *ContextManager
	Detector  *TopicDetector

	mu         sync.Mutex
	lastAccess time.Time
}

// Lock 获取运行时锁（重放补录期间持有）
func (r *ContextRuntime) Lock() {
	r.mu.Lock()
}

// Unlock 释放运行时锁
func (r *ContextRuntime) Unlock() {
	r.mu.Unlock()
}

// RuntimeRegistry 会议运行时注册表
// 按会议 ID 维护引擎实例：容量满时驱逐最久未访问者，
// 空闲超过 TTL 的运行时由后台清理协程定期驱逐
type RuntimeRegistry struct {
	mu       sync.Mutex
	runtimes map[string]*ContextRuntime

	capacity int
	ttl      time.Duration
	now      func() time.Time

	analyzer  Analyzer
	engineCfg *config.EngineConfig
	llmCfg    *config.LLMConfig
	segments  meeting.SegmentRepository
	eventBus  events.EventBus

	stopCh chan struct{}
	wg     sync.WaitGroup
	logger *slog.Logger
}

// NewRuntimeRegistry 创建会议运行时注册表
func NewRuntimeRegistry(engineCfg *config.EngineConfig, llmCfg *config.LLMConfig, analyzer Analyzer, segments meeting.SegmentRepository, eventBus events.EventBus) *RuntimeRegistry {
	capacity := engineCfg.RegistryCapacity
	if capacity <= 0 {
		capacity = 10
	}
	ttl := time.Duration(engineCfg.RuntimeTTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RuntimeRegistry{
		runtimes:  make(map[string]*ContextRuntime),
		capacity:  capacity,
		ttl:       ttl,
		now:       time.Now,
		analyzer:  analyzer,
		engineCfg: engineCfg,
		llmCfg:    llmCfg,
		segments:  segments,
		eventBus:  eventBus,
		stopCh:    make(chan struct{}),
		logger:    log.NewModuleLogger("contextengine", "registry"),
	}
}

// Start 启动后台清理协程
func (r *RuntimeRegistry) Start() {
	r.wg.Add(1)
	go r.cleanupLoop()
	r.logger.Info("runtime registry started",
		"capacity", r.capacity,
		"ttl", r.ttl.String(),
	)
}

// Stop 停止后台清理协程
func (r *RuntimeRegistry) Stop() {
	close(r.stopCh)
	r.wg.Wait()
	r.logger.Info("runtime registry stopped")
}

// GetOrCreate 获取或创建会议运行时
// 容量已满时先驱逐最久未访问的运行时
func (r *RuntimeRegistry) GetOrCreate(meetingID string) *ContextRuntime {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rt, ok := r.runtimes[meetingID]; ok {
		rt.lastAccess = r.now()
		return rt
	}

	if len(r.runtimes) >= r.capacity {
		r.evictOldestLocked()
	}

	rt := &ContextRuntime{
		MeetingID: meetingID,
		Manager: NewContextManager(meetingID, ManagerConfig{
			L0Size:    r.engineCfg.L0Size,
			ChunkSize: r.engineCfg.ChunkSize,
			Language:  r.llmCfg.Language,
		}, r.analyzer, r.segments, r.publishFeedUpdate),
		Detector:   NewTopicDetector(r.engineCfg, r.analyzer),
		lastAccess: r.now(),
	}
	r.runtimes[meetingID] = rt

	r.logger.Info("meeting runtime created",
		"meeting_id", meetingID,
		"active", len(r.runtimes),
	)
	return rt
}

// GetIfExists 获取已存在的会议运行时，不存在时返回 nil
// 查询路径使用：只读访问不应隐式创建空引擎
func (r *RuntimeRegistry) GetIfExists(meetingID string) *ContextRuntime {
	r.mu.Lock()
	defer r.mu.Unlock()

	rt, ok := r.runtimes[meetingID]
	if !ok {
		return nil
	}
	rt.lastAccess = r.now()
	return rt
}

// Remove 移除指定会议的运行时
func (r *RuntimeRegistry) Remove(meetingID string) bool {
	r.mu.Lock()
	_, ok := r.runtimes[meetingID]
	if ok {
		delete(r.runtimes, meetingID)
	}
	r.mu.Unlock()

	if ok {
		r.notifyEvicted(meetingID)
		r.logger.Info("meeting runtime removed", "meeting_id", meetingID)
	}
	return ok
}

// Count 返回当前活跃运行时数量
func (r *RuntimeRegistry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.runtimes)
}

// ApplyTopicKeywords 将新的话题关键词下发到所有活跃运行时
// 配置热更新入口
func (r *RuntimeRegistry) ApplyTopicKeywords(keywords []string) {
	if len(keywords) == 0 {
		return
	}

	r.mu.Lock()
	runtimes := make([]*ContextRuntime, 0, len(r.runtimes))
	for _, rt := range r.runtimes {
		runtimes = append(runtimes, rt)
	}
	r.mu.Unlock()

	for _, rt := range runtimes {
		rt.Detector.UpdateKeywords(keywords)
	}
	r.engineCfg.TopicKeywords = keywords
	r.logger.Info("topic keywords updated", "count", len(keywords))
}

// Meetings 返回所有活跃会议 ID
func (r *RuntimeRegistry) Meetings() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.runtimes))
	for id := range r.runtimes {
		ids = append(ids, id)
	}
	return ids
}

// evictOldestLocked 驱逐最久未访问的运行时
// 调用方必须持有 r.mu
// 注意：不等待在途固化完成，被驱逐引擎的后台协程自然结束，
// 已固化片段此前已持久化，重建时可从存储重放恢复
func (r *RuntimeRegistry) evictOldestLocked() {
	var oldestID string
	var oldestAt time.Time
	for id, rt := range r.runtimes {
		if oldestID == "" || rt.lastAccess.Before(oldestAt) {
			oldestID = id
			oldestAt = rt.lastAccess
		}
	}
	if oldestID == "" {
		return
	}
	delete(r.runtimes, oldestID)

	go r.notifyEvicted(oldestID)
	r.logger.Info("meeting runtime evicted",
		"meeting_id", oldestID,
		"reason", "capacity",
		"idle", r.now().Sub(oldestAt).String(),
	)
}

// cleanupLoop 定期驱逐空闲超过 TTL 的运行时
func (r *RuntimeRegistry) cleanupLoop() {
	defer r.wg.Done()

	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.evictExpired()
		case <-r.stopCh:
			return
		}
	}
}

// evictExpired 驱逐所有过期运行时
func (r *RuntimeRegistry) evictExpired() {
	now := r.now()

	r.mu.Lock()
	var expired []string
	for id, rt := range r.runtimes {
		if now.Sub(rt.lastAccess) > r.ttl {
			expired = append(expired, id)
		}
	}
	for _, id := range expired {
		delete(r.runtimes, id)
	}
	r.mu.Unlock()

	for _, id := range expired {
		r.notifyEvicted(id)
		r.logger.Info("meeting runtime evicted",
			"meeting_id", id,
			"reason", "ttl",
		)
	}
}

// publishFeedUpdate 固化提交回调：广播话题流更新事件
func (r *RuntimeRegistry) publishFeedUpdate(meetingID, reason string) {
	if r.eventBus == nil {
		return
	}
	r.eventBus.Publish(&events.TopicFeedEvent{
		MeetingID: meetingID,
		Reason:    reason,
		EventTime: r.now(),
	})
}

// notifyEvicted 广播运行时驱逐事件
func (r *RuntimeRegistry) notifyEvicted(meetingID string) {
	if r.eventBus == nil {
		return
	}
	r.eventBus.Publish(&events.TopicFeedEvent{
		MeetingID: meetingID,
		Reason:    "eviction",
		EventTime: r.now(),
	})
}
