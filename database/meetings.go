package database

import (
	"context"
	"errors"
	"log"
	"time"

	"venturelink/backend/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrSlotTaken 表示同一位貼文作者在該時段已有 pending/accepted 會議
var ErrSlotTaken = errors.New("meeting slot already taken")

// InsertMeeting 將新的會議請求插入資料庫。
// 撞到唯一索引（同作者同時段）時回傳 ErrSlotTaken
func InsertMeeting(meeting models.Meeting) (models.Meeting, error) {
	collection := GetCollection("meetings")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	now := time.Now()
	meeting.CreatedAt = now
	meeting.UpdatedAt = now

	result, err := collection.InsertOne(ctx, meeting)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return models.Meeting{}, ErrSlotTaken
		}
		log.Printf("Error inserting meeting: %v", err)
		return models.Meeting{}, err
	}
	meeting.ID = result.InsertedID.(primitive.ObjectID)
	return meeting, nil
}

// FindMeetingByID 依 ID 查詢會議，找不到時回傳 (nil, nil)
func FindMeetingByID(id primitive.ObjectID) (*models.Meeting, error) {
	collection := GetCollection("meetings")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var meeting models.Meeting
	err := collection.FindOne(ctx, bson.M{"_id": id}).Decode(&meeting)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		log.Printf("Error finding meeting %s: %v", id.Hex(), err)
		return nil, err
	}
	return &meeting, nil
}

// HasMeetingAtSlot 檢查貼文作者在同一個 (日期, 時間) 是否已有 pending/accepted 會議
func HasMeetingAtSlot(postOwner primitive.ObjectID, date time.Time, timeStr string) (bool, error) {
	collection := GetCollection("meetings")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	filter := bson.M{
		"postOwner":     postOwner,
		"scheduledDate": date,
		"scheduledTime": timeStr,
		"status": bson.M{"$in": bson.A{
			models.MeetingStatusPending,
			models.MeetingStatusAccepted,
		}},
	}
	count, err := collection.CountDocuments(ctx, filter)
	if err != nil {
		log.Printf("Error checking meeting slot: %v", err)
		return false, err
	}
	return count > 0, nil
}

// HasRecentAcceptedBetween 檢查兩位使用者之間（不分方向）是否有
// acceptedAt 晚於 since 的 accepted 會議，用於 2 小時冷卻的判斷
func HasRecentAcceptedBetween(userA, userB primitive.ObjectID, since time.Time) (bool, error) {
	collection := GetCollection("meetings")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	filter := bson.M{
		"status":     models.MeetingStatusAccepted,
		"acceptedAt": bson.M{"$ne": nil, "$gt": since},
		"$or": bson.A{
			bson.M{"requester": userA, "postOwner": userB},
			bson.M{"requester": userB, "postOwner": userA},
		},
	}
	count, err := collection.CountDocuments(ctx, filter)
	if err != nil {
		log.Printf("Error checking accepted meeting cooldown: %v", err)
		return false, err
	}
	return count > 0, nil
}

// UpdateMeetingStatus 更新會議狀態；acceptedAt 非 nil 時一併寫入
func UpdateMeetingStatus(id primitive.ObjectID, status models.MeetingStatus, acceptedAt *time.Time) error {
	collection := GetCollection("meetings")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	set := bson.M{"status": status, "updatedAt": time.Now()}
	if acceptedAt != nil {
		set["acceptedAt"] = acceptedAt
	}
	_, err := collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		log.Printf("Error updating meeting %s status: %v", id.Hex(), err)
	}
	return err
}

// FindMeetingsByOwner 查詢某人收到的會議請求，依建立時間由新到舊排序
func FindMeetingsByOwner(owner primitive.ObjectID, status models.MeetingStatus) ([]models.Meeting, error) {
	filter := bson.M{"postOwner": owner}
	if status != "" {
		filter["status"] = status
	}
	return findMeetings(filter, bson.D{{Key: "createdAt", Value: -1}})
}

// FindMeetingsByRequester 查詢某人發出的會議請求，依排定日期由近到遠排序
func FindMeetingsByRequester(requester primitive.ObjectID, status models.MeetingStatus) ([]models.Meeting, error) {
	filter := bson.M{"requester": requester}
	if status != "" {
		filter["status"] = status
	}
	return findMeetings(filter, bson.D{{Key: "scheduledDate", Value: 1}})
}

func findMeetings(filter bson.M, sort bson.D) ([]models.Meeting, error) {
	collection := GetCollection("meetings")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cursor, err := collection.Find(ctx, filter, options.Find().SetSort(sort))
	if err != nil {
		log.Printf("Error finding meetings: %v", err)
		return nil, err
	}
	defer cursor.Close(ctx)

	meetings := []models.Meeting{}
	if err = cursor.All(ctx, &meetings); err != nil {
		log.Printf("Error decoding meetings: %v", err)
		return nil, err
	}
	return meetings, nil
}

// FindReminderCandidates 查詢尚未提醒、排定日期落在 [from, to] 的 accepted 會議。
// scheduledDate 只存日期（當天零點），所以候選窗要放寬一天，再由呼叫端比對精確時間
func FindReminderCandidates(from, to time.Time) ([]models.Meeting, error) {
	filter := bson.M{
		"status":          models.MeetingStatusAccepted,
		"reminder5SentAt": nil,
		"scheduledDate":   bson.M{"$gte": from, "$lte": to},
	}
	return findMeetings(filter, bson.D{{Key: "scheduledDate", Value: 1}})
}

// MarkReminderSent 設定 reminder5SentAt，之後的掃描不會再選到這筆會議
func MarkReminderSent(id primitive.ObjectID, at time.Time) error {
	collection := GetCollection("meetings")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := collection.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"reminder5SentAt": at}})
	if err != nil {
		log.Printf("Error marking reminder sent for meeting %s: %v", id.Hex(), err)
	}
	return err
}
