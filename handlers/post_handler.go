package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"venturelink/backend/database"
	"venturelink/backend/models"
	"venturelink/backend/utils"
)

// CreatePostRequest 定義建立貼文的請求體
type CreatePostRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// CreatePost 處理建立貼文的請求
func CreatePost(w http.ResponseWriter, r *http.Request) {
	var req CreatePostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, "Invalid request payload", http.StatusBadRequest)
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	req.Content = strings.TrimSpace(req.Content)
	if req.Title == "" || req.Content == "" {
		sendJSONError(w, "Title and content are required", http.StatusBadRequest)
		return
	}

	authorID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	post, err := database.InsertPost(models.Post{
		Author:  authorID,
		Title:   req.Title,
		Content: req.Content,
	})
	if err != nil {
		sendJSONError(w, "Failed to create post", http.StatusInternalServerError)
		return
	}

	sendJSONData(w, http.StatusCreated, "Post created successfully", post)
}

// GetAllPosts 處理獲取所有貼文的請求
func GetAllPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := database.GetAllPosts()
	if err != nil {
		sendJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	sendJSONData(w, http.StatusOK, "", posts)
}
