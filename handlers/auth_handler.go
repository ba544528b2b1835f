package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"venturelink/backend/database"
	"venturelink/backend/models"
	"venturelink/backend/utils"

	"golang.org/x/crypto/bcrypt" // 用於密碼哈希
)

// jwtSecret 在啟動時由 main 注入，供登入時簽發 token
var jwtSecret string

// SetJWTSecret 設定簽發 JWT 使用的密鑰
func SetJWTSecret(secret string) {
	jwtSecret = secret
}

// RegisterUser 處理使用者註冊請求
func RegisterUser(w http.ResponseWriter, r *http.Request) {
	var registerReq models.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&registerReq); err != nil {
		log.Printf("JSON decode error: %v", err)
		sendJSONError(w, "Invalid request payload", http.StatusBadRequest)
		return
	}

	// 基本的輸入驗證
	registerReq.Name = strings.TrimSpace(registerReq.Name)
	registerReq.Email = strings.TrimSpace(registerReq.Email)
	if registerReq.Name == "" || registerReq.Email == "" || registerReq.Password == "" {
		sendJSONError(w, "Name, email, and password are required", http.StatusBadRequest)
		return
	}

	// 先檢查 Email，如果已存在則直接返回
	existingUser, err := database.FindUserByEmail(registerReq.Email)
	if err != nil {
		sendJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if existingUser != nil {
		sendJSONError(w, "Email already registered", http.StatusConflict)
		return
	}

	// 哈希密碼
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(registerReq.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("Error hashing password: %v", err)
		sendJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	// 創建新使用者
	user := models.User{
		Name:     registerReq.Name,
		Email:    registerReq.Email,
		Password: string(hashedPassword),
	}

	created, err := database.InsertUser(user)
	if err != nil {
		sendJSONError(w, "Failed to register user", http.StatusInternalServerError)
		return
	}

	log.Printf("User registered successfully: %s", created.ID.Hex())
	sendJSONData(w, http.StatusCreated, "User registered successfully", created.Summary())
}

// LoginUser 處理使用者登入請求，成功時回傳 JWT token
func LoginUser(w http.ResponseWriter, r *http.Request) {
	var credentials struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	if err := json.NewDecoder(r.Body).Decode(&credentials); err != nil {
		log.Printf("JSON decode error: %v", err)
		sendJSONError(w, "Invalid request payload", http.StatusBadRequest)
		return
	}

	// 基本的輸入驗證
	if credentials.Email == "" || credentials.Password == "" {
		sendJSONError(w, "Email and password are required", http.StatusBadRequest)
		return
	}

	// 透過 Email 尋找使用者
	user, err := database.FindUserByEmail(credentials.Email)
	if err != nil {
		sendJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if user == nil {
		sendJSONError(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	// 比較哈希後的密碼
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(credentials.Password)); err != nil {
		sendJSONError(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	token, err := utils.GenerateJWT(user.ID, user.Name, jwtSecret)
	if err != nil {
		log.Printf("Error generating JWT: %v", err)
		sendJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	// 登入成功
	log.Printf("User logged in successfully: %s", user.Email)
	sendJSONData(w, http.StatusOK, "Login successful", map[string]interface{}{
		"token": token,
		"user":  user.Summary(),
	})
}

// GetAllUsers 處理獲取所有使用者列表的請求
func GetAllUsers(w http.ResponseWriter, r *http.Request) {
	users, err := database.GetAllUsers()
	if err != nil {
		sendJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	// 為了安全，在返回給前端前，將密碼字段清空 (儘管模型中已經有 `json:"-"`)
	summaries := make([]*models.UserSummary, 0, len(users))
	for i := range users {
		summaries = append(summaries, users[i].Summary())
	}

	sendJSONData(w, http.StatusOK, "", summaries)
}

// GetMyNotifications 回傳目前使用者的通知列表（由新到舊）
func GetMyNotifications(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	notifications, err := database.FindNotifications(userID)
	if err == database.ErrUserNotFound {
		sendJSONError(w, "User not found", http.StatusNotFound)
		return
	}
	if err != nil {
		sendJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	sendJSONData(w, http.StatusOK, "", notifications)
}
