package websocket

import (
	"encoding/json"
	"sync"
)

// Hub WebSocket 连接管理中心
// 话题流推送按会议分组广播
type Hub struct {
	// 按会议 ID 分组的连接
	meetings map[string]map[*Connection]bool
	// 注册连接
	register chan *Connection
	// 注销连接
	unregister chan *Connection
	// 广播消息
	broadcast chan *Message
	mu        sync.RWMutex
}

// Connection WebSocket 连接
type Connection struct {
	MeetingID string
	Send      chan []byte
}

// Message 消息
type Message struct {
	MeetingID string
	Data      []byte
}

// NewHub 创建 Hub
func NewHub() *Hub {
	return &Hub{
		meetings:   make(map[string]map[*Connection]bool),
		register:   make(chan *Connection),
		unregister: make(chan *Connection),
		broadcast:  make(chan *Message),
	}
}

// Run 运行 Hub（需要在 goroutine 中运行）
func (h *Hub) Run() {
	for {
		select {
		case conn := <-h.register:
			h.mu.Lock()
			if h.meetings[conn.MeetingID] == nil {
				h.meetings[conn.MeetingID] = make(map[*Connection]bool)
			}
			h.meetings[conn.MeetingID][conn] = true
			h.mu.Unlock()

		case conn := <-h.unregister:
			h.mu.Lock()
			if room, ok := h.meetings[conn.MeetingID]; ok {
				if _, ok := room[conn]; ok {
					delete(room, conn)
					close(conn.Send)
					if len(room) == 0 {
						delete(h.meetings, conn.MeetingID)
					}
				}
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.Lock()
			if room, ok := h.meetings[msg.MeetingID]; ok {
				for conn := range room {
					select {
					case conn.Send <- msg.Data:
					default:
						// 消费不动的慢连接直接断开
						close(conn.Send)
						delete(room, conn)
					}
				}
			}
			h.mu.Unlock()
		}
	}
}

// Start 启动 Hub（启动后台 goroutine）
func (h *Hub) Start() {
	go h.Run()
}

// Register 注册连接
func (h *Hub) Register(conn *Connection) {
	h.register <- conn
}

// Unregister 注销连接
func (h *Hub) Unregister(conn *Connection) {
	h.unregister <- conn
}

// BroadcastToMeeting 向指定会议的所有连接广播消息
func (h *Hub) BroadcastToMeeting(meetingID string, data interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}
	h.broadcast <- &Message{
		MeetingID: meetingID,
		Data:      jsonData,
	}
	return nil
}

// ConnectionCount 返回指定会议的连接数
func (h *Hub) ConnectionCount(meetingID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.meetings[meetingID])
}
