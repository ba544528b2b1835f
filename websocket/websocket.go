package websocket

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"venturelink/backend/utils"

	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	// 將訊息寫入到遠端對等點的最長時間
	writeWait = 10 * time.Second

	// 允許從遠端對等點讀取下一個 pong 訊息的最長時間。
	pongWait = 60 * time.Second

	// 發送 ping 訊息給遠端對等點的週期。
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096
)

// upgrader 用於將 HTTP 連線升級為 WebSocket 連線
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// 設定true:允許所有來源的連線
		return true
	},
}

// Event 是即時通道上往返的事件信封
type Event struct {
	Type    string          `json:"type"`
	Token   string          `json:"token,omitempty"`   // 客戶端 auth 事件攜帶
	Message string          `json:"message,omitempty"` // 錯誤事件的說明文字
	Data    json.RawMessage `json:"data,omitempty"`
}

// 事件類型
const (
	EventAuth      = "auth"
	EventAuthOK    = "auth:ok"
	EventAuthError = "auth:error"
)

// Client 代表一個 WebSocket 客戶端連線
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan Event // 用於發送事件的緩衝通道
	userID primitive.ObjectID
	authed bool
}

// 讀取客戶端傳來的事件。目前唯一接受的客戶端事件是 auth；
// 驗證失敗時回 auth:error 但不關閉連線，客戶端可在同一條連線上重試
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, p, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Println("Client disconnected gracefully.")
			} else {
				log.Printf("Error reading message: %v", err)
			}
			break
		}

		var event Event
		if err := json.Unmarshal(p, &event); err != nil {
			log.Printf("Error unmarshalling event: %v", err)
			continue
		}

		if event.Type == EventAuth {
			c.handleAuth(event.Token)
		}
	}
}

// handleAuth 驗證 token 並將連線登記到即時連線表。
// 同一條連線可以重複送 auth：同一位使用者是 no-op，
// 換了使用者時先從舊身份解除綁定，連線表不會留下指向舊身份的殘項
func (c *Client) handleAuth(token string) {
	token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))
	userID, err := utils.GetUserIDFromToken(token, c.hub.jwtSecret)
	if err != nil {
		c.send <- Event{Type: EventAuthError, Message: "Invalid token"}
		return
	}

	if c.authed {
		if c.userID == userID {
			c.send <- Event{Type: EventAuthOK}
			return
		}
		// unbind 是無緩衝通道，送達即表示舊身份已從連線表移除，
		// 之後才能改寫 userID 重新註冊
		c.hub.unbind <- c
	}

	c.userID = userID
	c.authed = true
	c.hub.register <- c
	c.send <- Event{Type: EventAuthOK}
}

// 接收 Hub 送來的事件，寫給客戶端
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case event, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// 如果這個 channel 被關閉了（ok == false），就送出 CloseMessage
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			payload, err := json.Marshal(event)
			if err != nil {
				log.Printf("Error marshalling event: %v", err)
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				log.Printf("Error writing event: %v", err)
				return
			}

		// 接收定時器以保持連線活躍並檢測客戶端是否仍在線。
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// userEvent 是指定收件者的事件
type userEvent struct {
	userID primitive.ObjectID
	event  Event
}

// Hub 維護使用者 ID 到在線連線的對照表（即時連線表），
// 所有表的變動都在 Run 這一個 goroutine 內處理
type Hub struct {
	clients       map[*Client]bool
	clientsByUser map[primitive.ObjectID]map[*Client]bool
	register      chan *Client
	unregister    chan *Client
	unbind        chan *Client // 重新驗證換使用者時，先解除舊身份的綁定
	emit          chan userEvent
	jwtSecret     string
	bridge        *Bridge // 非 nil 時事件先經過 Redis pub/sub 繞一圈
}

// NewHub 創建並返回一個新的 Hub 實例
func NewHub(jwtSecret string) *Hub {
	return &Hub{
		clients:       make(map[*Client]bool),
		clientsByUser: make(map[primitive.ObjectID]map[*Client]bool),
		register:      make(chan *Client),
		unregister:    make(chan *Client),
		unbind:        make(chan *Client),
		emit:          make(chan userEvent, 64),
		jwtSecret:     jwtSecret,
	}
}

// SetBridge 掛上跨行程的事件橋接器，必須在 Run 之前呼叫
func (h *Hub) SetBridge(b *Bridge) {
	h.bridge = b
}

// Run 啟動 Hub 的運行迴圈
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			if _, ok := h.clientsByUser[client.userID]; !ok {
				h.clientsByUser[client.userID] = make(map[*Client]bool)
			}
			h.clientsByUser[client.userID][client] = true
			log.Printf("Client registered for user %s. Connections: %d", client.userID.Hex(), len(h.clientsByUser[client.userID]))

		case client := <-h.unregister:
			// 連線結束，readPump 已經停止，此時關閉 send 才安全。
			// unregister 每條連線只會送一次，未通過驗證的連線解除綁定是 no-op
			h.detachClient(client)
			close(client.send)

		case client := <-h.unbind:
			// 重新驗證換使用者：只從表裡移除，連線與 send 通道都還活著
			h.detachClient(client)

		case ue := <-h.emit:
			h.deliver(ue.userID, ue.event)
		}
	}
}

// detachClient 將連線從即時連線表移除；最後一條連線移除後該使用者視為離線。
// 不關閉 send 通道，關閉的時機由 unregister 統一掌握
func (h *Hub) detachClient(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	if conns, ok := h.clientsByUser[client.userID]; ok {
		delete(conns, client)
		if len(conns) == 0 {
			delete(h.clientsByUser, client.userID)
		}
	}
	log.Printf("Client detached for user %s.", client.userID.Hex())
}

// deliver 將事件送到該使用者目前所有在線的連線；沒有連線時什麼都不做
func (h *Hub) deliver(userID primitive.ObjectID, event Event) {
	conns, ok := h.clientsByUser[userID]
	if !ok {
		return
	}
	for client := range conns {
		select {
		case client.send <- event:
		default:
			// 寫入通道已滿，視為死連線：移除後關閉底層連線，
			// 讓 readPump 結束並走 unregister 收尾（send 在那裡才關）
			h.detachClient(client)
			client.conn.Close()
			log.Printf("Client channel is full, disconnected a connection of user %s", userID.Hex())
		}
	}
}

// EmitToUser 將事件推送給某位使用者的所有在線連線。
// 推送是盡力而為：沒有確認、沒有重試，持久性由資料庫負責
func (h *Hub) EmitToUser(userID primitive.ObjectID, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("Error marshalling payload for event %s: %v", event, err)
		return
	}

	if h.bridge != nil {
		// 經 Redis 廣播，所有行程（包含自己）由訂閱端送達本地連線
		if err := h.bridge.Publish(userID, event, data); err != nil {
			log.Printf("Error publishing event %s to bridge: %v", event, err)
		}
		return
	}

	h.emit <- userEvent{userID: userID, event: Event{Type: event, Data: data}}
}

// deliverLocal 由橋接器的訂閱端呼叫，把事件交給本行程的連線
func (h *Hub) deliverLocal(userID primitive.ObjectID, event Event) {
	h.emit <- userEvent{userID: userID, event: event}
}

// HandleConnections 處理 WebSocket 連線請求。
// 連線建立時未經驗證，客戶端需在連線上送出 auth 事件
func (h *Hub) HandleConnections(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Failed to upgrade to WebSocket: %v", err)
		return
	}

	client := &Client{
		hub:  h,
		conn: conn,
		send: make(chan Event, 256),
	}

	go client.writePump()
	client.readPump() // readPump 會在連線關閉時自動取消註冊
}
