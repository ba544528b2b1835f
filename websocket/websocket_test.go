package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"venturelink/backend/utils"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const testSecret = "ws-test-secret"

// dialTestHub 啟動 Hub 與測試伺服器，回傳已連上的客戶端連線
func dialTestHub(t *testing.T) (*Hub, *websocket.Conn, func()) {
	t.Helper()

	hub := NewHub(testSecret)
	go hub.Run()

	server := httptest.NewServer(http.HandlerFunc(hub.HandleConnections))
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	assert.NoError(t, err, "應該能建立 WebSocket 連線")

	cleanup := func() {
		conn.Close()
		server.Close()
	}
	return hub, conn, cleanup
}

// readEvent 讀取下一個事件，最多等一秒
func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(time.Second))
	var event Event
	err := conn.ReadJSON(&event)
	assert.NoError(t, err, "應該能在時限內讀到事件")
	return event
}

func TestAuthOK(t *testing.T) {
	_, conn, cleanup := dialTestHub(t)
	defer cleanup()

	userID := primitive.NewObjectID()
	token, err := utils.GenerateJWT(userID, "alice", testSecret)
	assert.NoError(t, err)

	assert.NoError(t, conn.WriteJSON(Event{Type: EventAuth, Token: token}))
	event := readEvent(t, conn)
	assert.Equal(t, EventAuthOK, event.Type, "合法 token 應該收到 auth:ok")
}

func TestAuthErrorKeepsConnectionOpen(t *testing.T) {
	_, conn, cleanup := dialTestHub(t)
	defer cleanup()

	// 壞 token 收到 auth:error，但連線不會被關閉
	assert.NoError(t, conn.WriteJSON(Event{Type: EventAuth, Token: "not-a-token"}))
	event := readEvent(t, conn)
	assert.Equal(t, EventAuthError, event.Type)
	assert.Equal(t, "Invalid token", event.Message)

	// 同一條連線上重試驗證應該成功
	userID := primitive.NewObjectID()
	token, err := utils.GenerateJWT(userID, "alice", testSecret)
	assert.NoError(t, err)
	assert.NoError(t, conn.WriteJSON(Event{Type: EventAuth, Token: token}))
	event = readEvent(t, conn)
	assert.Equal(t, EventAuthOK, event.Type, "重試驗證應該收到 auth:ok")
}

func TestEmitToUserDeliversToAuthedConnection(t *testing.T) {
	hub, conn, cleanup := dialTestHub(t)
	defer cleanup()

	userID := primitive.NewObjectID()
	token, err := utils.GenerateJWT(userID, "bob", testSecret)
	assert.NoError(t, err)
	assert.NoError(t, conn.WriteJSON(Event{Type: EventAuth, Token: "Bearer " + token}))
	event := readEvent(t, conn)
	assert.Equal(t, EventAuthOK, event.Type)

	hub.EmitToUser(userID, "message:new", map[string]string{"content": "hello"})

	event = readEvent(t, conn)
	assert.Equal(t, "message:new", event.Type)

	var payload map[string]string
	assert.NoError(t, json.Unmarshal(event.Data, &payload))
	assert.Equal(t, "hello", payload["content"], "推送的事件應該帶著原始內容")
}

func TestEmitToOfflineUserIsNoop(t *testing.T) {
	hub, conn, cleanup := dialTestHub(t)
	defer cleanup()

	userID := primitive.NewObjectID()
	token, err := utils.GenerateJWT(userID, "bob", testSecret)
	assert.NoError(t, err)
	assert.NoError(t, conn.WriteJSON(Event{Type: EventAuth, Token: token}))
	readEvent(t, conn)

	// 推給另一位不在線的使用者：不是錯誤，已連線的人也不會收到
	hub.EmitToUser(primitive.NewObjectID(), "message:new", map[string]string{"content": "ghost"})

	conn.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	var event Event
	err = conn.ReadJSON(&event)
	assert.Error(t, err, "不該收到不屬於自己的事件")
}

func TestReauthSameUserIsNoop(t *testing.T) {
	hub, conn, cleanup := dialTestHub(t)
	defer cleanup()

	userID := primitive.NewObjectID()
	token, err := utils.GenerateJWT(userID, "alice", testSecret)
	assert.NoError(t, err)

	assert.NoError(t, conn.WriteJSON(Event{Type: EventAuth, Token: token}))
	assert.Equal(t, EventAuthOK, readEvent(t, conn).Type)

	// 用同一個 token 再驗證一次：回 auth:ok，連線表不變
	assert.NoError(t, conn.WriteJSON(Event{Type: EventAuth, Token: token}))
	assert.Equal(t, EventAuthOK, readEvent(t, conn).Type)

	hub.EmitToUser(userID, "message:new", map[string]string{"content": "still here"})
	event := readEvent(t, conn)
	assert.Equal(t, "message:new", event.Type, "重複驗證後仍應收到自己的事件")
}

func TestReauthSwitchesUser(t *testing.T) {
	hub, conn, cleanup := dialTestHub(t)
	defer cleanup()

	userA := primitive.NewObjectID()
	userB := primitive.NewObjectID()
	tokenA, err := utils.GenerateJWT(userA, "alice", testSecret)
	assert.NoError(t, err)
	tokenB, err := utils.GenerateJWT(userB, "bob", testSecret)
	assert.NoError(t, err)

	assert.NoError(t, conn.WriteJSON(Event{Type: EventAuth, Token: tokenA}))
	assert.Equal(t, EventAuthOK, readEvent(t, conn).Type)

	// 換成另一位使用者的 token 重新驗證
	assert.NoError(t, conn.WriteJSON(Event{Type: EventAuth, Token: tokenB}))
	assert.Equal(t, EventAuthOK, readEvent(t, conn).Type)

	// 事件跟著新身份走：B 收得到，舊身份 A 收不到
	hub.EmitToUser(userB, "message:new", map[string]string{"content": "for bob"})
	event := readEvent(t, conn)
	assert.Equal(t, "message:new", event.Type)

	hub.EmitToUser(userA, "message:new", map[string]string{"content": "for alice"})
	conn.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	var stray Event
	err = conn.ReadJSON(&stray)
	assert.Error(t, err, "換身份後不該再收到舊身份的事件")
}

func TestEmitAfterReauthedClientDisconnects(t *testing.T) {
	hub, conn1, cleanup := dialTestHub(t)
	defer cleanup()

	userA := primitive.NewObjectID()
	userB := primitive.NewObjectID()
	tokenA, err := utils.GenerateJWT(userA, "alice", testSecret)
	assert.NoError(t, err)
	tokenB, err := utils.GenerateJWT(userB, "bob", testSecret)
	assert.NoError(t, err)

	// 先以 A 驗證，再換成 B，然後斷線
	assert.NoError(t, conn1.WriteJSON(Event{Type: EventAuth, Token: tokenA}))
	assert.Equal(t, EventAuthOK, readEvent(t, conn1).Type)
	assert.NoError(t, conn1.WriteJSON(Event{Type: EventAuth, Token: tokenB}))
	assert.Equal(t, EventAuthOK, readEvent(t, conn1).Type)
	conn1.Close()

	// 對兩個身份各推一次：連線表不該留下指向已關閉通道的殘項
	hub.EmitToUser(userA, "message:new", map[string]string{"content": "ghost"})
	hub.EmitToUser(userB, "message:new", map[string]string{"content": "ghost"})

	// Hub 的運行迴圈必須還活著：新連線照常驗證並收到事件
	server := httptest.NewServer(http.HandlerFunc(hub.HandleConnections))
	defer server.Close()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn2, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	assert.NoError(t, err)
	defer conn2.Close()

	assert.NoError(t, conn2.WriteJSON(Event{Type: EventAuth, Token: tokenA}))
	assert.Equal(t, EventAuthOK, readEvent(t, conn2).Type)

	hub.EmitToUser(userA, "message:new", map[string]string{"content": "alive"})
	event := readEvent(t, conn2)
	assert.Equal(t, "message:new", event.Type, "斷線後的推送不該弄死整個 Hub")
}
