package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Post 代表一篇貼文，會議請求以貼文為錨點
type Post struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Author    primitive.ObjectID `bson:"author" json:"author"`
	Title     string             `bson:"title" json:"title"`
	Content   string             `bson:"content" json:"content"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}
