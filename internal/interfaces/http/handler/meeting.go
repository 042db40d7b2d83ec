package handler

import (
	"net/http"
	"strconv"

	"github.com/meetflow/backend/internal/application/contextengine"
	"github.com/meetflow/backend/internal/domain/meeting"
	"github.com/meetflow/backend/internal/interfaces/http/response"
	"github.com/gin-gonic/gin"
)

// MeetingHandler 话语摄入与会议运行时处理器
type MeetingHandler struct {
	sync     *contextengine.SyncService
	registry *contextengine.RuntimeRegistry
}

// NewMeetingHandler 创建会议处理器
func NewMeetingHandler(sync *contextengine.SyncService, registry *contextengine.RuntimeRegistry) *MeetingHandler {
	return &MeetingHandler{sync: sync, registry: registry}
}

// IngestUtteranceDTO 话语摄入请求
type IngestUtteranceDTO struct {
	SpeakerID   string `json:"speaker_id" binding:"required"`
	SpeakerName string `json:"speaker_name" binding:"required"`
	Text        string `json:"text" binding:"required"`
	StartMs     int64  `json:"start_ms"`
	EndMs       int64  `json:"end_ms"`
}

// IngestUtterance 摄入一条话语
func (h *MeetingHandler) IngestUtterance(c *gin.Context) {
	meetingID := c.Param("meetingId")

	var dto IngestUtteranceDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.Error(c, http.StatusBadRequest, 200001, "参数错误")
		return
	}

	result, err := h.sync.Ingest(meetingID, meeting.Utterance{
		SpeakerID:   dto.SpeakerID,
		SpeakerName: dto.SpeakerName,
		Text:        dto.Text,
		StartMs:     dto.StartMs,
		EndMs:       dto.EndMs,
	})
	if err != nil {
		response.ErrorWithDetail(c, http.StatusInternalServerError, 200002, "摄入失败", err.Error())
		return
	}

	response.Success(c, result)
}

// Resync 从存储补录缺口话语
// 可选查询参数 cutoff_ms 限制补录上界
func (h *MeetingHandler) Resync(c *gin.Context) {
	meetingID := c.Param("meetingId")

	var cutoff *int64
	if raw := c.Query("cutoff_ms"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			response.Error(c, http.StatusBadRequest, 200003, "cutoff_ms 必须是整数")
			return
		}
		cutoff = &v
	}

	result, err := h.sync.Resync(meetingID, cutoff)
	if err != nil {
		response.ErrorWithDetail(c, http.StatusInternalServerError, 200004, "补录失败", err.Error())
		return
	}

	response.Success(c, result)
}

// SpeakerView 发言人视图
type SpeakerView struct {
	Stats *meeting.SpeakerStats `json:"stats"`
	Role  meeting.Role          `json:"role"`
}

// Speakers 返回发言人统计、角色推断与交互摘要
func (h *MeetingHandler) Speakers(c *gin.Context) {
	meetingID := c.Param("meetingId")

	rt := h.registry.GetIfExists(meetingID)
	if rt == nil {
		response.Error(c, http.StatusNotFound, 200005, "会议不存在或已过期")
		return
	}

	roles := rt.Manager.InferRoles()
	stats := rt.Manager.SpeakerStats()
	views := make([]SpeakerView, 0, len(stats))
	for _, s := range stats {
		views = append(views, SpeakerView{Stats: s, Role: roles[s.UserID]})
	}

	response.Success(c, gin.H{
		"meeting_id":   meetingID,
		"speakers":     views,
		"interactions": rt.Manager.GetInteractionSummary(),
	})
}

// Meetings 返回所有活跃会议运行时
func (h *MeetingHandler) Meetings(c *gin.Context) {
	response.Success(c, gin.H{
		"meetings": h.registry.Meetings(),
		"count":    h.registry.Count(),
	})
}

// RemoveMeeting 主动移除会议运行时
func (h *MeetingHandler) RemoveMeeting(c *gin.Context) {
	meetingID := c.Param("meetingId")

	if !h.registry.Remove(meetingID) {
		response.Error(c, http.StatusNotFound, 200005, "会议不存在或已过期")
		return
	}
	response.Success(c, gin.H{"removed": meetingID})
}
