package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"venturelink/backend/database"
	"venturelink/backend/models"
	"venturelink/backend/utils"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
	conversationScan    = 200 // 對話摘要最多往回看的訊息數
)

// EventSink 將事件推送給某位使用者目前所有在線的連線。
// 以介面注入，讓單機的 WebSocket Hub 可以換成跨行程的 pub/sub
type EventSink interface {
	EmitToUser(userID primitive.ObjectID, event string, payload interface{})
}

var eventSink EventSink

// SetEventSink 設定訊息推送的出口
func SetEventSink(sink EventSink) {
	eventSink = sink
}

// SendMessageRequest 定義發送私訊的請求體
type SendMessageRequest struct {
	Content string `json:"content"`
}

// SendMessage 發送私訊：無條件入庫，收件者在線時盡力推送
func SendMessage(w http.ResponseWriter, r *http.Request) {
	senderID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	recipientID, err := primitive.ObjectIDFromHex(mux.Vars(r)["userId"])
	if err != nil || recipientID == senderID {
		sendJSONError(w, "Invalid recipient", http.StatusBadRequest)
		return
	}

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		sendJSONError(w, "Message content required", http.StatusBadRequest)
		return
	}
	if len(content) > models.MaxMessageContentLength {
		sendJSONError(w, "Message content too long", http.StatusBadRequest)
		return
	}

	recipient, err := database.FindUserByID(recipientID)
	if err != nil {
		sendJSONError(w, "Server error sending message", http.StatusInternalServerError)
		return
	}
	if recipient == nil {
		sendJSONError(w, "Recipient not found", http.StatusNotFound)
		return
	}

	sender, err := database.FindUserByID(senderID)
	if err != nil || sender == nil {
		sendJSONError(w, "Server error sending message", http.StatusInternalServerError)
		return
	}

	// participants 固定存成排序後的無序對，方向無關的查詢靠它
	participants := []primitive.ObjectID{senderID, recipientID}
	utils.SortObjectIDs(participants)

	message, err := database.InsertMessage(models.Message{
		Participants: participants,
		Sender:       senderID,
		Recipient:    recipientID,
		Content:      content,
	})
	if err != nil {
		sendJSONError(w, "Server error sending message", http.StatusInternalServerError)
		return
	}

	message.SenderName = sender.Name
	message.RecipientName = recipient.Name

	// 收件者不在線不是錯誤：訊息已入庫，之後從歷史取得。推送不做重試
	if eventSink != nil {
		eventSink.EmitToUser(recipientID, "message:new", message)
	}

	sendJSONData(w, http.StatusCreated, "", message)
}

// GetChatWithUser 回傳與某位使用者之間的歷史訊息，
// 內部由新到舊查詢再反轉為由舊到新，支援 before 游標分頁
func GetChatWithUser(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	otherID, err := primitive.ObjectIDFromHex(mux.Vars(r)["userId"])
	if err != nil || otherID == userID {
		sendJSONError(w, "Invalid user", http.StatusBadRequest)
		return
	}

	limit := int64(defaultHistoryLimit)
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	var before *time.Time
	if raw := r.URL.Query().Get("before"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			before = &t
		}
	}

	messages, err := database.FindMessagesBetween(userID, otherID, limit, before)
	if err != nil {
		sendJSONError(w, "Server error fetching chat", http.StatusInternalServerError)
		return
	}

	// 由新到舊反轉為由舊到新，供前端顯示
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	if err := populateMessageNames(messages); err != nil {
		sendJSONError(w, "Server error fetching chat", http.StatusInternalServerError)
		return
	}
	sendJSONData(w, http.StatusOK, "", messages)
}

// GetConversations 回傳每位往來對象的最新一則訊息摘要
func GetConversations(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	messages, err := database.FindRecentMessagesFor(userID, conversationScan)
	if err != nil {
		sendJSONError(w, "Server error fetching conversations", http.StatusInternalServerError)
		return
	}

	if err := populateMessageNames(messages); err != nil {
		sendJSONError(w, "Server error fetching conversations", http.StatusInternalServerError)
		return
	}

	// 訊息已由新到舊排序，每位對象第一次出現的就是最新一則
	seen := map[primitive.ObjectID]bool{}
	conversations := []models.Conversation{}
	for _, m := range messages {
		counterpartID := m.Sender
		counterpartName := m.SenderName
		if m.Sender == userID {
			counterpartID = m.Recipient
			counterpartName = m.RecipientName
		}
		if seen[counterpartID] {
			continue
		}
		seen[counterpartID] = true
		conversations = append(conversations, models.Conversation{
			CounterpartID:   counterpartID,
			CounterpartName: counterpartName,
			LastMessage:     m,
		})
	}

	sendJSONData(w, http.StatusOK, "", conversations)
}

// populateMessageNames 批次填充訊息的寄件者與收件者名稱
func populateMessageNames(messages []models.Message) error {
	if len(messages) == 0 {
		return nil
	}
	idSet := map[primitive.ObjectID]bool{}
	for _, m := range messages {
		idSet[m.Sender] = true
		idSet[m.Recipient] = true
	}
	ids := make([]primitive.ObjectID, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id)
	}

	users, err := database.GetUsersByIDs(ids)
	if err != nil {
		return err
	}
	names := map[primitive.ObjectID]string{}
	for _, u := range users {
		names[u.ID] = u.Name
	}

	for i := range messages {
		messages[i].SenderName = names[messages[i].Sender]
		messages[i].RecipientName = names[messages[i].Recipient]
	}
	return nil
}
