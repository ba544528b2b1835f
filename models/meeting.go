package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MeetingStatus 定義會議請求的狀態
type MeetingStatus string

const (
	MeetingStatusPending   MeetingStatus = "pending"   // 等待回覆
	MeetingStatusAccepted  MeetingStatus = "accepted"  // 已接受
	MeetingStatusRejected  MeetingStatus = "rejected"  // 已拒絕
	MeetingStatusCancelled MeetingStatus = "cancelled" // 已取消
)

// MeetingType 定義會議形式
type MeetingType string

const (
	MeetingTypeVirtual  MeetingType = "virtual"
	MeetingTypeInPerson MeetingType = "in-person"
)

// Meeting 代表一個針對某篇貼文發出的會議請求
type Meeting struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Post          primitive.ObjectID `bson:"post" json:"post"`
	Requester     primitive.ObjectID `bson:"requester" json:"requester"`
	PostOwner     primitive.ObjectID `bson:"postOwner" json:"postOwner"`
	ScheduledDate time.Time          `bson:"scheduledDate" json:"scheduledDate"` // 僅日期部分有意義（當天零點）
	ScheduledTime string             `bson:"scheduledTime" json:"scheduledTime"` // "HH:MM" 格式的牆上時鐘時間
	Message       string             `bson:"message" json:"message"`
	Status        MeetingStatus      `bson:"status" json:"status"`
	MeetingType   MeetingType        `bson:"meetingType" json:"meetingType"`
	MeetingLink   string             `bson:"meetingLink" json:"meetingLink"`
	AcceptedAt    *time.Time         `bson:"acceptedAt" json:"acceptedAt"` // 只在轉為 accepted 時設定，之後不再清除
	// Reminder5SentAt 在 5 分鐘提醒信寄出後設定，作為「最多提醒一次」的防護
	Reminder5SentAt *time.Time `bson:"reminder5SentAt" json:"reminder5SentAt"`
	CreatedAt       time.Time  `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time  `bson:"updatedAt" json:"updatedAt"`

	// 以下欄位回傳前由使用者資料填充，不寫入資料庫
	RequesterInfo *UserSummary `bson:"-" json:"requesterInfo,omitempty"`
	PostOwnerInfo *UserSummary `bson:"-" json:"postOwnerInfo,omitempty"`
	PostTitle     string       `bson:"-" json:"postTitle,omitempty"`
}

// StartTime 將 scheduledDate 與 scheduledTime ("HH:MM") 合併為完整的開始時間。
// 從資料庫讀回的日期帶的是 UTC，先轉回本地時區再取日期部分，
// 避免伺服器時區不是 UTC 時整個提醒窗偏移。解析失敗時回傳零值與 false
func (m *Meeting) StartTime() (time.Time, bool) {
	hm, err := time.Parse("15:04", m.ScheduledTime)
	if err != nil {
		return time.Time{}, false
	}
	d := m.ScheduledDate.In(time.Local)
	return time.Date(d.Year(), d.Month(), d.Day(), hm.Hour(), hm.Minute(), 0, 0, time.Local), true
}
