package chat

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"SProject/logger"
	usersrv "SProject/module/user/service"
	"SProject/tools/ids"
	jwtlib "SProject/tools/security"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Frame 在线投递的消息帧；不落库（消息持久化不在本服务范围）
type Frame struct {
	To   string `json:"to,omitempty"`
	From string `json:"from,omitempty"`
	Body string `json:"body"`
}

type wsConn struct {
	snowID string
	userID string
	conn   *websocket.Conn
	send   chan []byte // 每连接独立发送队列
	done   chan struct{}
}

// Gateway 实时聊天入口。升级 WebSocket 前先过会话检查：
// 令牌验签 + 缓存条目存活，被踢/被撤销的会话连不上来。
type Gateway struct {
	sessions *usersrv.SessionManager
	jwtOpts  jwtlib.Options

	mu     sync.RWMutex
	byUser map[string]map[string]*wsConn // userID -> (snowID -> conn)
}

func NewGateway(sessions *usersrv.SessionManager, jwtOpts jwtlib.Options) *Gateway {
	return &Gateway{
		sessions: sessions,
		jwtOpts:  jwtOpts,
		byUser:   make(map[string]map[string]*wsConn),
	}
}

// HandleWS e.g. ws://host/chat?token=xxx
func (g *Gateway) HandleWS(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		token = c.GetHeader("authorization")
	}
	claims, err := jwtlib.Verify(g.jwtOpts, token)
	if err != nil {
		c.Status(http.StatusUnauthorized)
		return
	}
	userID, alive, err := g.sessions.LiveUserID(c.Request.Context(), claims.SessionID())
	if err != nil || !alive || userID != claims.UserID() {
		c.Status(http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warnf("ws upgrade failed: %v", err)
		return
	}

	wc := &wsConn{
		snowID: ids.GenerateString(),
		userID: userID,
		conn:   conn,
		send:   make(chan []byte, 64),
		done:   make(chan struct{}),
	}
	g.add(wc)
	defer g.remove(wc)

	go wc.writeLoop()
	g.readLoop(wc)
}

func (g *Gateway) add(wc *wsConn) {
	g.mu.Lock()
	defer g.mu.Unlock()
	m, ok := g.byUser[wc.userID]
	if !ok {
		m = make(map[string]*wsConn)
		g.byUser[wc.userID] = m
	}
	m[wc.snowID] = wc
}

func (g *Gateway) remove(wc *wsConn) {
	g.mu.Lock()
	if m, ok := g.byUser[wc.userID]; ok {
		delete(m, wc.snowID)
		if len(m) == 0 {
			delete(g.byUser, wc.userID)
		}
	}
	g.mu.Unlock()
	close(wc.done)
	_ = wc.conn.Close()
}

func (g *Gateway) readLoop(wc *wsConn) {
	for {
		_, raw, err := wc.conn.ReadMessage()
		if err != nil {
			return
		}
		var f Frame
		if err := json.Unmarshal(raw, &f); err != nil || f.To == "" {
			continue
		}
		f.From = wc.userID
		g.deliver(&f)
	}
}

// deliver 只投在线连接；对方不在线直接丢（无持久化）
func (g *Gateway) deliver(f *Frame) {
	raw, _ := json.Marshal(f)

	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, wc := range g.byUser[f.To] {
		select {
		case wc.send <- raw:
		default:
			// 发送队列满：慢消费者，丢帧不丢连接
		}
	}
}

func (wc *wsConn) writeLoop() {
	for {
		select {
		case <-wc.done:
			return
		case raw := <-wc.send:
			_ = wc.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := wc.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				return
			}
		}
	}
}
