package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RegisterRequest 結構體用於處理註冊請求
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Notification 是內嵌在使用者文件中的通知紀錄，只增不改
type Notification struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Type      string             `bson:"type" json:"type"`
	FromUser  primitive.ObjectID `bson:"fromUser,omitempty" json:"fromUser,omitempty"`
	Message   string             `bson:"message" json:"message"`
	Meeting   primitive.ObjectID `bson:"meeting,omitempty" json:"meeting,omitempty"`
	IsRead    bool               `bson:"read" json:"read"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}

// 通知類型
const (
	NotificationMeetingRequest  = "meeting_request"
	NotificationMeetingAccepted = "meeting_accepted"
	NotificationMeetingRejected = "meeting_rejected"
)

// User 結構體定義了使用者資料的欄位
type User struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"` // MongoDB 的唯一 ID
	Name          string             `bson:"name" json:"name"`
	Email         string             `bson:"email" json:"email"`
	Password      string             `bson:"password" json:"-"` // 儲存哈希後的密碼，JSON 輸出時忽略
	Notifications []Notification     `bson:"notifications" json:"notifications"`
	CreatedAt     time.Time          `bson:"createdAt" json:"createdAt"`
}

// UserSummary 是填充在回應中的使用者摘要（不含敏感欄位）
type UserSummary struct {
	ID    primitive.ObjectID `json:"id"`
	Name  string             `json:"name"`
	Email string             `json:"email"`
}

// Summary 回傳使用者的摘要資訊
func (u *User) Summary() *UserSummary {
	return &UserSummary{ID: u.ID, Name: u.Name, Email: u.Email}
}
