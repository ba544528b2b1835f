package database

import (
	"context"
	"log"
	"time"

	"venturelink/backend/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// InsertPost 插入新貼文
func InsertPost(post models.Post) (models.Post, error) {
	collection := GetCollection("posts")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	post.CreatedAt = time.Now()

	result, err := collection.InsertOne(ctx, post)
	if err != nil {
		log.Printf("Error inserting post: %v", err)
		return models.Post{}, err
	}
	post.ID = result.InsertedID.(primitive.ObjectID)
	return post, nil
}

// FindPostByID 依 ID 查詢貼文，找不到時回傳 (nil, nil)
func FindPostByID(id primitive.ObjectID) (*models.Post, error) {
	collection := GetCollection("posts")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var post models.Post
	err := collection.FindOne(ctx, bson.M{"_id": id}).Decode(&post)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		log.Printf("Error finding post %s: %v", id.Hex(), err)
		return nil, err
	}
	return &post, nil
}

// GetAllPosts 查詢所有貼文，由新到舊排序
func GetAllPosts() ([]models.Post, error) {
	collection := GetCollection("posts")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	findOptions := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := collection.Find(ctx, bson.M{}, findOptions)
	if err != nil {
		log.Printf("Error finding all posts: %v", err)
		return nil, err
	}
	defer cursor.Close(ctx)

	posts := []models.Post{}
	if err = cursor.All(ctx, &posts); err != nil {
		log.Printf("Error decoding posts: %v", err)
		return nil, err
	}
	return posts, nil
}

// GetPostsByIDs 依 ID 列表批次查詢貼文（填充會議回應用）
func GetPostsByIDs(ids []primitive.ObjectID) ([]models.Post, error) {
	if len(ids) == 0 {
		return []models.Post{}, nil
	}
	collection := GetCollection("posts")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cursor, err := collection.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		log.Printf("Error finding posts by IDs: %v", err)
		return nil, err
	}
	defer cursor.Close(ctx)

	posts := []models.Post{}
	if err = cursor.All(ctx, &posts); err != nil {
		log.Printf("Error decoding posts: %v", err)
		return nil, err
	}
	return posts, nil
}
