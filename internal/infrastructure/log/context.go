package log

import (
	"context"
	"log/slog"
)

// 上下文键定义
const (
	// RequestContextID HTTP 请求 ID
	RequestContextID = "request_id"

	// MeetingContextID 会议 ID
	MeetingContextID = "meeting_id"

	// SpeakerContextID 发言人 ID
	SpeakerContextID = "speaker_id"
)

// WithRequestID 在上下文中添加请求 ID
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestContextID, requestID)
}

// WithMeetingID 在上下文中添加会议 ID
func WithMeetingID(ctx context.Context, meetingID string) context.Context {
	return context.WithValue(ctx, MeetingContextID, meetingID)
}

// WithSpeakerID 在上下文中添加发言人 ID
func WithSpeakerID(ctx context.Context, speakerID string) context.Context {
	return context.WithValue(ctx, SpeakerContextID, speakerID)
}

// LogCtxFromContext 从上下文中提取日志字段
func LogCtxFromContext(ctx context.Context) []slog.Attr {
	var attrs []slog.Attr

	if requestID := ctx.Value(RequestContextID); requestID != nil {
		attrs = append(attrs, slog.String("request_id", requestID.(string)))
	}
	if meetingID := ctx.Value(MeetingContextID); meetingID != nil {
		attrs = append(attrs, slog.String("meeting_id", meetingID.(string)))
	}
	if speakerID := ctx.Value(SpeakerContextID); speakerID != nil {
		attrs = append(attrs, slog.String("speaker_id", speakerID.(string)))
	}

	return attrs
}
