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

// ErrUserNotFound 表示指定的使用者不存在
var ErrUserNotFound = errors.New("user not found")

// InsertUser 插入新使用者
func InsertUser(user models.User) (models.User, error) {
	collection := GetCollection("users")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	user.CreatedAt = time.Now()
	if user.Notifications == nil {
		user.Notifications = []models.Notification{}
	}

	result, err := collection.InsertOne(ctx, user)
	if err != nil {
		log.Printf("Error inserting user: %v", err)
		return models.User{}, err
	}
	user.ID = result.InsertedID.(primitive.ObjectID)
	return user, nil
}

// FindUserByID 依 ID 查詢使用者，找不到時回傳 (nil, nil)
func FindUserByID(id primitive.ObjectID) (*models.User, error) {
	collection := GetCollection("users")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var user models.User
	err := collection.FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		log.Printf("Error finding user %s: %v", id.Hex(), err)
		return nil, err
	}
	return &user, nil
}

// FindUserByEmail 依 Email 查詢使用者，找不到時回傳 (nil, nil)
func FindUserByEmail(email string) (*models.User, error) {
	collection := GetCollection("users")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var user models.User
	err := collection.FindOne(ctx, bson.M{"email": email}).Decode(&user)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		log.Printf("Error finding user by email: %v", err)
		return nil, err
	}
	return &user, nil
}

// GetUsersByIDs 依 ID 列表批次查詢使用者
func GetUsersByIDs(ids []primitive.ObjectID) ([]models.User, error) {
	if len(ids) == 0 {
		return []models.User{}, nil
	}
	collection := GetCollection("users")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cursor, err := collection.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		log.Printf("Error finding users by IDs: %v", err)
		return nil, err
	}
	defer cursor.Close(ctx)

	users := []models.User{}
	if err = cursor.All(ctx, &users); err != nil {
		log.Printf("Error decoding users: %v", err)
		return nil, err
	}
	return users, nil
}

// GetAllUsers 查詢所有使用者
func GetAllUsers() ([]models.User, error) {
	collection := GetCollection("users")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cursor, err := collection.Find(ctx, bson.M{})
	if err != nil {
		log.Printf("Error finding all users: %v", err)
		return nil, err
	}
	defer cursor.Close(ctx)

	users := []models.User{}
	if err = cursor.All(ctx, &users); err != nil {
		log.Printf("Error decoding users: %v", err)
		return nil, err
	}
	return users, nil
}

// AppendNotification 將通知附加到使用者文件的 notifications 陣列。
// 目標使用者不存在時回傳 ErrUserNotFound，讓外層操作整體失敗，
// 避免生命週期轉移成功但通知默默消失
func AppendNotification(userID primitive.ObjectID, notification models.Notification) error {
	collection := GetCollection("users")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	notification.ID = primitive.NewObjectID()
	notification.CreatedAt = time.Now()

	result, err := collection.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$push": bson.M{"notifications": notification}})
	if err != nil {
		log.Printf("Error appending notification to user %s: %v", userID.Hex(), err)
		return err
	}
	if result.MatchedCount == 0 {
		return ErrUserNotFound
	}
	return nil
}

// FindNotifications 回傳使用者的通知列表，由新到舊排序
func FindNotifications(userID primitive.ObjectID) ([]models.Notification, error) {
	collection := GetCollection("users")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var user models.User
	opts := options.FindOne().SetProjection(bson.M{"notifications": 1})
	err := collection.FindOne(ctx, bson.M{"_id": userID}, opts).Decode(&user)
	if err == mongo.ErrNoDocuments {
		return nil, ErrUserNotFound
	}
	if err != nil {
		log.Printf("Error finding notifications for user %s: %v", userID.Hex(), err)
		return nil, err
	}

	notifications := user.Notifications
	if notifications == nil {
		notifications = []models.Notification{}
	}
	// 內嵌陣列是依附加順序儲存的，反轉成由新到舊
	for i, j := 0, len(notifications)-1; i < j; i, j = i+1, j-1 {
		notifications[i], notifications[j] = notifications[j], notifications[i]
	}
	return notifications, nil
}
