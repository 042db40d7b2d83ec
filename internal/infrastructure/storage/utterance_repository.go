package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/meetflow/backend/internal/domain/meeting"
)

// utteranceRepository 话语 SQLite 仓储实现
type utteranceRepository struct {
	db *sql.DB
}

// NewUtteranceRepository 创建话语仓储实例
func NewUtteranceRepository(db *sql.DB) meeting.UtteranceRepository {
	if err := initUtteranceTable(db); err != nil {
		// 初始化失败时记录错误但不阻止创建
		fmt.Printf("failed to init utterances table: %v\n", err)
	}
	return &utteranceRepository{db: db}
}

// initUtteranceTable 初始化话语表
func initUtteranceTable(db *sql.DB) error {
	createTableSQL := `
	CREATE TABLE IF NOT EXISTS utterances (
		rowid_pk INTEGER PRIMARY KEY AUTOINCREMENT,
		meeting_id TEXT NOT NULL,
		utterance_id INTEGER NOT NULL,
		speaker_id TEXT NOT NULL,
		speaker_name TEXT NOT NULL,
		text TEXT NOT NULL,
		start_ms INTEGER NOT NULL,
		end_ms INTEGER NOT NULL,
		ts INTEGER NOT NULL,
		topic TEXT
	);`

	if _, err := db.Exec(createTableSQL); err != nil {
		return fmt.Errorf("failed to create utterances table: %w", err)
	}

	createIndexSQL := `
	CREATE INDEX IF NOT EXISTS idx_utterances_meeting_start ON utterances(meeting_id, start_ms);
	`
	if _, err := db.Exec(createIndexSQL); err != nil {
		return fmt.Errorf("failed to create utterances index: %w", err)
	}

	return nil
}

// Save 保存一条话语
func (r *utteranceRepository) Save(meetingID string, u *meeting.Utterance) error {
	query := `
		INSERT INTO utterances
		(meeting_id, utterance_id, speaker_id, speaker_name, text, start_ms, end_ms, ts, topic)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.Exec(query,
		meetingID,
		u.ID,
		u.SpeakerID,
		u.SpeakerName,
		u.Text,
		u.StartMs,
		u.EndMs,
		u.Timestamp.UnixMilli(),
		u.Topic,
	)
	if err != nil {
		return fmt.Errorf("failed to save utterance: %w", err)
	}
	return nil
}

// FetchSince 按 StartMs 升序返回 StartMs 大于 sinceStartMs 的话语
func (r *utteranceRepository) FetchSince(meetingID string, sinceStartMs int64, cutoff *int64) ([]*meeting.Utterance, error) {
	query := `
		SELECT utterance_id, speaker_id, speaker_name, text, start_ms, end_ms, ts, COALESCE(topic, '')
		FROM utterances
		WHERE meeting_id = ? AND start_ms > ?`
	args := []any{meetingID, sinceStartMs}

	if cutoff != nil {
		query += " AND start_ms <= ?"
		args = append(args, *cutoff)
	}
	query += " ORDER BY start_ms ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query utterances: %w", err)
	}
	defer rows.Close()

	var result []*meeting.Utterance
	for rows.Next() {
		var u meeting.Utterance
		var tsMillis int64
		if err := rows.Scan(&u.ID, &u.SpeakerID, &u.SpeakerName, &u.Text, &u.StartMs, &u.EndMs, &tsMillis, &u.Topic); err != nil {
			return nil, fmt.Errorf("failed to scan utterance: %w", err)
		}
		u.Timestamp = time.UnixMilli(tsMillis)
		result = append(result, &u)
	}
	return result, rows.Err()
}

// CountByMeeting 返回指定会议的话语总数
func (r *utteranceRepository) CountByMeeting(meetingID string) (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM utterances WHERE meeting_id = ?", meetingID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count utterances: %w", err)
	}
	return count, nil
}
