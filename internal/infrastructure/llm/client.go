package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"log/slog"

	"github.com/meetflow/backend/internal/domain/meeting"
	"github.com/meetflow/backend/internal/infrastructure/log"
)

// Client LLM Chat 客户端
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	language   string
	httpClient *http.Client
	logger     *slog.Logger
}

// ChatRequest Chat API 请求
type ChatRequest struct {
	Messages []Message `json:"messages"`
	Model    string    `json:"model,omitempty"`
}

// Message Chat 消息
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatResponse Chat API 响应
type ChatResponse struct {
	ID      string `json:"id,omitempty"`
	Object  string `json:"object,omitempty"`
	Created int64  `json:"created,omitempty"`
	Model   string `json:"model,omitempty"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// NewClient 创建 LLM 客户端
func NewClient(baseURL, apiKey, model, language string) *Client {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if language == "" {
		language = "zh-CN"
	}

	return &Client{
		baseURL:  baseURL,
		apiKey:   apiKey,
		model:    model,
		language: language,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: log.NewModuleLogger("llm", "client"),
	}
}

// DetectTopicShift 判定最近话语是否越过话题边界
func (c *Client) DetectTopicShift(previousTopicSummary, recentText string) (*meeting.TopicShiftResult, error) {
	content, err := c.chat(c.buildTopicShiftPrompt(previousTopicSummary, recentText))
	if err != nil {
		return nil, err
	}

	var result meeting.TopicShiftResult
	if err := unmarshalLenient(content, &result); err != nil {
		return nil, fmt.Errorf("failed to parse topic shift JSON: %w", err)
	}
	return &result, nil
}

// SummarizeChunk 将一个话语块固化为话题摘要
func (c *Client) SummarizeChunk(chunkText string) (*meeting.ChunkSummary, error) {
	content, err := c.chat(c.buildChunkPrompt(chunkText))
	if err != nil {
		return nil, err
	}

	var summary meeting.ChunkSummary
	if err := unmarshalLenient(content, &summary); err != nil {
		return nil, fmt.Errorf("failed to parse chunk summary JSON: %w", err)
	}
	return &summary, nil
}

// MergeSummaries 合并两个相邻话题片段的名称与摘要
func (c *Client) MergeSummaries(prevName, prevSummary, newName, newSummary string) (*meeting.MergeResult, error) {
	content, err := c.chat(c.buildMergePrompt(prevName, prevSummary, newName, newSummary))
	if err != nil {
		return nil, err
	}

	var result meeting.MergeResult
	if err := unmarshalLenient(content, &result); err != nil {
		return nil, fmt.Errorf("failed to parse merge JSON: %w", err)
	}
	return &result, nil
}

// TestConnection 测试 LLM API 连接
func (c *Client) TestConnection() error {
	testPrompt := "This is a test. Please respond with 'OK' in JSON format: {\"status\": \"OK\"}"
	if _, err := c.chat(testPrompt); err != nil {
		return fmt.Errorf("LLM connection test failed: %w", err)
	}

	c.logger.Info("LLM connection test successful",
		"model", c.model,
	)
	return nil
}

// chat 发送单轮对话请求并返回首个回复文本
func (c *Client) chat(prompt string) (string, error) {
	reqBody := ChatRequest{
		Messages: []Message{
			{
				Role:    "user",
				Content: prompt,
			},
		},
		Model: c.model,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/chat/completions", c.baseURL)
	req, err := http.NewRequest("POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))

	c.logger.Debug("Sending LLM request",
		"url", url,
		"model", c.model,
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("LLM API request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := c.readResponseBody(resp)
		return "", fmt.Errorf("LLM API returned status %d: %s", resp.StatusCode, body)
	}

	var chatResp ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("failed to decode LLM response: %w", err)
	}

	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("LLM API returned no choices")
	}

	c.logger.Debug("LLM request completed",
		"model", c.model,
		"tokens", chatResp.Usage.TotalTokens,
	)

	return chatResp.Choices[0].Message.Content, nil
}

// buildTopicShiftPrompt 构建话题边界判定 Prompt
func (c *Client) buildTopicShiftPrompt(previousTopicSummary, recentText string) string {
	if c.language == "en-US" {
		return fmt.Sprintf(`You are a meeting topic-boundary detector. Decide whether the latest utterances have moved to a new topic.

Previous topic summary:
%s

Recent utterances:
%s

Return pure JSON only, no other text:
{"topic_changed": true/false, "previous_topic": "", "current_topic": "", "confidence": 0.0-1.0, "reason": ""}`, previousTopicSummary, recentText)
	}
	return fmt.Sprintf(`你是会议话题边界判定专家。请判断最近的发言是否已经切换到新话题。

上一个话题的摘要：
%s

最近的发言：
%s

请以纯 JSON 格式返回，不要包含其他文本：
{"topic_changed": true/false, "previous_topic": "", "current_topic": "", "confidence": 0.0-1.0, "reason": ""}`, previousTopicSummary, recentText)
}

// buildChunkPrompt 构建话语块固化 Prompt
func (c *Client) buildChunkPrompt(chunkText string) string {
	if c.language == "en-US" {
		return fmt.Sprintf(`You are a meeting minutes expert. Summarize the following utterances into a structured topic record.

Utterances:
%s

Extract and return pure JSON only:
1. topic_name: short name of the topic being discussed
2. summary: 2-3 sentence summary
3. keywords: 3-8 keywords (array)
4. key_points: key points (array)
5. key_decisions: decisions made (array, [] if none)
6. pending_items: open questions or follow-ups (array, [] if none)

All fields must be present. Empty arrays as [].`, chunkText)
	}
	return fmt.Sprintf(`你是会议纪要专家。请将以下发言固化为一条结构化话题记录。

发言内容：
%s

请提取以下信息并以纯 JSON 格式返回：
1. topic_name: 本段讨论的话题名称（简短）
2. summary: 2-3 句话的摘要
3. keywords: 3-8 个关键词（数组）
4. key_points: 关键要点（数组）
5. key_decisions: 已作出的决定（数组，没有则返回 []）
6. pending_items: 待跟进事项或未决问题（数组，没有则返回 []）

所有字段必须存在，数组为空时返回 []，不要包含 JSON 以外的文本。`, chunkText)
}

// buildMergePrompt 构建相邻片段合并 Prompt
func (c *Client) buildMergePrompt(prevName, prevSummary, newName, newSummary string) string {
	if c.language == "en-US" {
		return fmt.Sprintf(`Two adjacent meeting topic segments discuss the same subject. Merge them into one.

Segment A: %s
%s

Segment B: %s
%s

Return pure JSON only:
{"merged_topic_name": "", "merged_summary": "", "keywords": []}`, prevName, prevSummary, newName, newSummary)
	}
	return fmt.Sprintf(`以下两个相邻的会议话题片段讨论的是同一主题，请将它们合并为一个。

片段 A：%s
%s

片段 B：%s
%s

请以纯 JSON 格式返回，不要包含其他文本：
{"merged_topic_name": "", "merged_summary": "", "keywords": []}`, prevName, prevSummary, newName, newSummary)
}

// unmarshalLenient 宽容解析 LLM 返回的 JSON
// 顶层解析失败时，按第一个 { 到最后一个 } 截取后重试（模型常在 JSON 外包裹说明文字）
func unmarshalLenient(content string, v any) error {
	if err := json.Unmarshal([]byte(content), v); err == nil {
		return nil
	}

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return fmt.Errorf("no JSON object found in response")
	}
	return json.Unmarshal([]byte(content[start:end+1]), v)
}

// readResponseBody 读取响应体
func (c *Client) readResponseBody(resp *http.Response) (string, error) {
	if resp.Body == nil {
		return "", nil
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}
