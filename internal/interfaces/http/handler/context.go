package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/meetflow/backend/internal/application/contextengine"
	"github.com/meetflow/backend/internal/interfaces/http/response"
	"github.com/gin-gonic/gin"
)

// ContextHandler 上下文装配处理器
type ContextHandler struct {
	builder *contextengine.ContextBuilder
}

// NewContextHandler 创建上下文处理器
func NewContextHandler(builder *contextengine.ContextBuilder) *ContextHandler {
	return &ContextHandler{builder: builder}
}

// BuildContext 按任务类型装配上下文
// 查询参数 type 取 immediate_response/summary/action_extraction/search，
// 缺省为 immediate_response；query 为用户问题，format=prompt 时返回系统提示词文本
func (h *ContextHandler) BuildContext(c *gin.Context) {
	meetingID := c.Param("meetingId")

	callType, err := contextengine.ParseCallType(c.Query("type"))
	if err != nil {
		response.Error(c, http.StatusBadRequest, 300001, "不支持的任务类型")
		return
	}

	ctx, err := h.builder.BuildContext(meetingID, callType, c.Query("query"))
	if err != nil {
		h.renderBuildError(c, err)
		return
	}

	if c.Query("format") == "prompt" {
		response.Success(c, gin.H{
			"meeting_id": meetingID,
			"call_type":  callType,
			"prompt":     contextengine.FormatContextAsSystemPrompt(ctx),
		})
		return
	}
	response.Success(c, ctx)
}

// PlanningContext 装配规划输入文本
// 查询参数 query 为用户问题，limit 控制取用的近期话语条数
func (h *ContextHandler) PlanningContext(c *gin.Context) {
	meetingID := c.Param("meetingId")

	limit, _ := strconv.Atoi(c.Query("limit"))

	text, err := h.builder.BuildPlanningInputContext(meetingID, limit, c.Query("query"))
	if err != nil {
		h.renderBuildError(c, err)
		return
	}

	response.Success(c, gin.H{
		"meeting_id": meetingID,
		"context":    text,
	})
}

// RequiredTopics 按名称取指定话题的上下文
// 查询参数 names 为逗号分隔的话题名列表
func (h *ContextHandler) RequiredTopics(c *gin.Context) {
	meetingID := c.Param("meetingId")

	raw := c.Query("names")
	if raw == "" {
		response.Error(c, http.StatusBadRequest, 300002, "names 不能为空")
		return
	}
	var names []string
	for _, name := range strings.Split(raw, ",") {
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}

	result, err := h.builder.BuildRequiredTopicContext(meetingID, names)
	if err != nil {
		h.renderBuildError(c, err)
		return
	}

	response.Success(c, result)
}

func (h *ContextHandler) renderBuildError(c *gin.Context, err error) {
	if errors.Is(err, contextengine.ErrMeetingNotFound) {
		response.Error(c, http.StatusNotFound, 300003, "会议不存在或已过期")
		return
	}
	response.ErrorWithDetail(c, http.StatusInternalServerError, 300004, "上下文装配失败", err.Error())
}
