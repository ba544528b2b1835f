package database

import (
	"context"
	"log"
	"time"

	"venturelink/backend/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

var MongoClient *mongo.Client
var dbName string // 儲存資料庫名稱

// ConnectMongoDB 建立並初始化 MongoDB 連線
func ConnectMongoDB(uri, name string) {
	clientOptions := options.Client().ApplyURI(uri)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}

	// Ping the primary to verify connection
	if err = client.Ping(ctx, readpref.Primary()); err != nil {
		log.Fatalf("Failed to ping MongoDB: %v", err)
	}

	log.Println("Connected to MongoDB successfully!")
	MongoClient = client
	dbName = name

	ensureIndexes(ctx)
}

// ensureIndexes 建立各集合需要的索引
func ensureIndexes(ctx context.Context) {
	// 同一位貼文作者在同一個 (日期, 時間) 只允許一個 pending/accepted 會議。
	// 由資料庫層的唯一索引保證，關閉「先查再寫」之間的競態
	meetingSlotIndex := mongo.IndexModel{
		Keys: bson.D{
			{Key: "postOwner", Value: 1},
			{Key: "scheduledDate", Value: 1},
			{Key: "scheduledTime", Value: 1},
		},
		Options: options.Index().
			SetUnique(true).
			SetPartialFilterExpression(bson.M{
				"status": bson.M{"$in": bson.A{
					models.MeetingStatusPending,
					models.MeetingStatusAccepted,
				}},
			}),
	}
	if _, err := GetCollection("meetings").Indexes().CreateOne(ctx, meetingSlotIndex); err != nil {
		log.Fatalf("Failed to create meeting slot index: %v", err)
	}

	// 提醒排程器的候選查詢走這個索引
	meetingDateIndex := mongo.IndexModel{
		Keys: bson.D{{Key: "status", Value: 1}, {Key: "scheduledDate", Value: 1}},
	}
	if _, err := GetCollection("meetings").Indexes().CreateOne(ctx, meetingDateIndex); err != nil {
		log.Fatalf("Failed to create meeting date index: %v", err)
	}

	// 對話查詢：participants 包含兩人 + createdAt 排序
	messageIndex := mongo.IndexModel{
		Keys: bson.D{{Key: "participants", Value: 1}, {Key: "createdAt", Value: -1}},
	}
	if _, err := GetCollection("messages").Indexes().CreateOne(ctx, messageIndex); err != nil {
		log.Fatalf("Failed to create message index: %v", err)
	}

	// Email 唯一
	emailIndex := mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	if _, err := GetCollection("users").Indexes().CreateOne(ctx, emailIndex); err != nil {
		log.Fatalf("Failed to create user email index: %v", err)
	}

	log.Println("MongoDB indexes ensured.")
}

// GetCollection 獲取指定資料庫的集合
func GetCollection(collectionName string) *mongo.Collection {
	if MongoClient == nil {
		log.Fatal("MongoDB client is not initialized. Call ConnectMongoDB first.")
	}
	if dbName == "" { // 額外防護，確保 dbName 已初始化
		log.Fatal("Database name is not set. Call ConnectMongoDB with a valid dbName.")
	}
	return MongoClient.Database(dbName).Collection(collectionName)
}

// DisconnectMongoDB 關閉 MongoDB 連線
func DisconnectMongoDB() {
	if MongoClient == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := MongoClient.Disconnect(ctx); err != nil {
		log.Printf("Error disconnecting from MongoDB: %v", err)
	} else {
		log.Println("Disconnected from MongoDB.")
	}
}
