package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/meetflow/backend/internal/domain/meeting"
	"github.com/google/uuid"
)

// segmentRepository 话题片段 SQLite 仓储实现
// 片段列表可能因合并而整段重排，因此每次提交整体覆盖会议快照
type segmentRepository struct {
	db *sql.DB
}

// NewSegmentRepository 创建话题片段仓储实例
func NewSegmentRepository(db *sql.DB) meeting.SegmentRepository {
	if err := initSegmentTable(db); err != nil {
		fmt.Printf("failed to init topic_segments table: %v\n", err)
	}
	return &segmentRepository{db: db}
}

// initSegmentTable 初始化话题片段表
func initSegmentTable(db *sql.DB) error {
	createTableSQL := `
	CREATE TABLE IF NOT EXISTS topic_segments (
		id TEXT PRIMARY KEY,
		meeting_id TEXT NOT NULL,
		name TEXT NOT NULL,
		summary TEXT NOT NULL,
		start_utterance_id INTEGER NOT NULL,
		end_utterance_id INTEGER NOT NULL,
		keywords TEXT NOT NULL,
		key_points TEXT NOT NULL,
		key_decisions TEXT NOT NULL,
		pending_items TEXT NOT NULL,
		participants TEXT NOT NULL
	);`

	if _, err := db.Exec(createTableSQL); err != nil {
		return fmt.Errorf("failed to create topic_segments table: %w", err)
	}

	createIndexSQL := `
	CREATE INDEX IF NOT EXISTS idx_topic_segments_meeting ON topic_segments(meeting_id, start_utterance_id);
	`
	if _, err := db.Exec(createIndexSQL); err != nil {
		return fmt.Errorf("failed to create topic_segments index: %w", err)
	}

	return nil
}

// ReplaceForMeeting 整体覆盖指定会议的片段快照
func (r *segmentRepository) ReplaceForMeeting(meetingID string, segments []*meeting.TopicSegment) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec("DELETE FROM topic_segments WHERE meeting_id = ?", meetingID); err != nil {
		return fmt.Errorf("failed to clear segments: %w", err)
	}

	insertSQL := `
		INSERT INTO topic_segments
		(id, meeting_id, name, summary, start_utterance_id, end_utterance_id, keywords, key_points, key_decisions, pending_items, participants)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	for _, s := range segments {
		id := s.ID
		if id == "" {
			id = uuid.New().String()
		}
		_, err := tx.Exec(insertSQL,
			id,
			meetingID,
			s.Name,
			s.Summary,
			s.StartUtteranceID,
			s.EndUtteranceID,
			marshalStrings(s.Keywords),
			marshalStrings(s.KeyPoints),
			marshalStrings(s.KeyDecisions),
			marshalStrings(s.PendingItems),
			marshalStrings(s.Participants),
		)
		if err != nil {
			return fmt.Errorf("failed to insert segment: %w", err)
		}
	}

	return tx.Commit()
}

// ListByMeeting 按 StartUtteranceID 升序返回指定会议的片段
func (r *segmentRepository) ListByMeeting(meetingID string) ([]*meeting.TopicSegment, error) {
	query := `
		SELECT id, name, summary, start_utterance_id, end_utterance_id, keywords, key_points, key_decisions, pending_items, participants
		FROM topic_segments
		WHERE meeting_id = ?
		ORDER BY start_utterance_id ASC`

	rows, err := r.db.Query(query, meetingID)
	if err != nil {
		return nil, fmt.Errorf("failed to query segments: %w", err)
	}
	defer rows.Close()

	var result []*meeting.TopicSegment
	for rows.Next() {
		var s meeting.TopicSegment
		var keywords, keyPoints, keyDecisions, pendingItems, participants string
		if err := rows.Scan(&s.ID, &s.Name, &s.Summary, &s.StartUtteranceID, &s.EndUtteranceID,
			&keywords, &keyPoints, &keyDecisions, &pendingItems, &participants); err != nil {
			return nil, fmt.Errorf("failed to scan segment: %w", err)
		}
		s.Keywords = unmarshalStrings(keywords)
		s.KeyPoints = unmarshalStrings(keyPoints)
		s.KeyDecisions = unmarshalStrings(keyDecisions)
		s.PendingItems = unmarshalStrings(pendingItems)
		s.Participants = unmarshalStrings(participants)
		result = append(result, &s)
	}
	return result, rows.Err()
}

// marshalStrings 序列化字符串数组为 JSON 文本
func marshalStrings(values []string) string {
	if values == nil {
		values = []string{}
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "[]"
	}
	return string(data)
}

// unmarshalStrings 反序列化 JSON 文本为字符串数组
func unmarshalStrings(data string) []string {
	var values []string
	if err := json.Unmarshal([]byte(data), &values); err != nil {
		return []string{}
	}
	return values
}
