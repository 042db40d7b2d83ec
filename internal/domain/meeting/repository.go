package meeting

// UtteranceRepository 话语持久化接口
type UtteranceRepository interface {
	// Save 保存一条话语
	Save(meetingID string, u *Utterance) error

	// FetchSince 按 StartMs 升序返回指定会议中 StartMs 大于 sinceStartMs 的话语
	// cutoff 非 nil 时仅返回 StartMs <= *cutoff 的部分
	FetchSince(meetingID string, sinceStartMs int64, cutoff *int64) ([]*Utterance, error)

	// CountByMeeting 返回指定会议的话语总数
	CountByMeeting(meetingID string) (int, error)
}

// SegmentRepository 话题片段持久化接口
// 固化结果落库后，冷启动的读取方可以不经引擎直接查询历史话题
type SegmentRepository interface {
	// ReplaceForMeeting 用当前片段列表整体覆盖指定会议的片段快照
	// 片段可能被合并，增量写入无法表达"两段变一段"，因此采用整体覆盖
	ReplaceForMeeting(meetingID string, segments []*TopicSegment) error

	// ListByMeeting 按 StartUtteranceID 升序返回指定会议的片段
	ListByMeeting(meetingID string) ([]*TopicSegment, error)
}
