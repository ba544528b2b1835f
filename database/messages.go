package database

import (
	"context"
	"log"
	"time"

	"venturelink/backend/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// InsertMessage 將新的私訊插入到 MongoDB
func InsertMessage(message models.Message) (models.Message, error) {
	collection := GetCollection("messages")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// 確保新訊息的 IsRead 預設為 false
	message.IsRead = false
	message.CreatedAt = time.Now()

	result, err := collection.InsertOne(ctx, message)
	if err != nil {
		log.Printf("Error inserting message: %v", err)
		return models.Message{}, err
	}
	message.ID = result.InsertedID.(primitive.ObjectID)
	return message, nil
}

// FindMessagesBetween 獲取兩位使用者之間的歷史訊息，由新到舊排序。
// before 非 nil 時只回傳 createdAt 早於 before 的訊息（分頁游標）
func FindMessagesBetween(userA, userB primitive.ObjectID, limit int64, before *time.Time) ([]models.Message, error) {
	collection := GetCollection("messages")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	filter := bson.M{"participants": bson.M{"$all": bson.A{userA, userB}}}
	if before != nil {
		filter["createdAt"] = bson.M{"$lt": before}
	}
	findOptions := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(limit)

	cursor, err := collection.Find(ctx, filter, findOptions)
	if err != nil {
		log.Printf("Error finding messages between %s and %s: %v", userA.Hex(), userB.Hex(), err)
		return nil, err
	}
	defer cursor.Close(ctx)

	messages := []models.Message{}
	if err = cursor.All(ctx, &messages); err != nil {
		log.Printf("Error decoding messages: %v", err)
		return nil, err
	}
	return messages, nil
}

// FindRecentMessagesFor 獲取某位使用者參與的最近訊息（對話摘要用），由新到舊排序
func FindRecentMessagesFor(userID primitive.ObjectID, limit int64) ([]models.Message, error) {
	collection := GetCollection("messages")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	filter := bson.M{"participants": userID}
	findOptions := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(limit)

	cursor, err := collection.Find(ctx, filter, findOptions)
	if err != nil {
		log.Printf("Error finding recent messages for %s: %v", userID.Hex(), err)
		return nil, err
	}
	defer cursor.Close(ctx)

	messages := []models.Message{}
	if err = cursor.All(ctx, &messages); err != nil {
		log.Printf("Error decoding recent messages: %v", err)
		return nil, err
	}
	return messages, nil
}
