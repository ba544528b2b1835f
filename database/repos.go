package database

import (
	"time"

	"venturelink/backend/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MeetingRepo 以方法形式提供會議資料的存取，
// 讓排程器等呼叫端可以透過介面注入並於測試時替換
type MeetingRepo struct{}

func (MeetingRepo) ReminderCandidates(from, to time.Time) ([]models.Meeting, error) {
	return FindReminderCandidates(from, to)
}

func (MeetingRepo) MarkReminderSent(id primitive.ObjectID, at time.Time) error {
	return MarkReminderSent(id, at)
}

func (MeetingRepo) MeetingByID(id primitive.ObjectID) (*models.Meeting, error) {
	return FindMeetingByID(id)
}

// UserRepo 以方法形式提供使用者資料的存取
type UserRepo struct{}

func (UserRepo) UsersByIDs(ids []primitive.ObjectID) ([]models.User, error) {
	return GetUsersByIDs(ids)
}
