package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Message 代表兩個使用者之間的一則私訊
type Message struct {
	ID primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	// Participants 固定為 {sender, recipient} 的無序對，
	// 讓「A 與 B 之間的所有訊息」不分方向都能用同一個查詢取得
	Participants []primitive.ObjectID `bson:"participants" json:"participants"`
	Sender       primitive.ObjectID   `bson:"sender" json:"sender"`
	Recipient    primitive.ObjectID   `bson:"recipient" json:"recipient"`
	Content      string               `bson:"content" json:"content"`
	IsRead       bool                 `bson:"read" json:"read"`
	CreatedAt    time.Time            `bson:"createdAt" json:"createdAt"`

	// 回傳前填充的顯示名稱，不寫入資料庫
	SenderName    string `bson:"-" json:"senderName,omitempty"`
	RecipientName string `bson:"-" json:"recipientName,omitempty"`
}

// MaxMessageContentLength 為訊息內容的長度上限
const MaxMessageContentLength = 2000

// Conversation 代表與某位使用者往來的對話摘要
type Conversation struct {
	CounterpartID   primitive.ObjectID `json:"counterpartId"`
	CounterpartName string             `json:"counterpartName"`
	LastMessage     Message            `json:"lastMessage"`
}
