package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv" // 引入這個庫來讀取 .env 檔案
)

// Config 結構體用於儲存應用程式的配置
type Config struct {
	MongoDBURI string
	DBName     string
	Port       string
	JWTSecret  string

	// CORS 允許的前端來源
	ClientOrigin string

	// 寄信相關設定
	EmailAddress string
	EmailPass    string
	SMTPHost     string
	SMTPPort     string

	// 會議提醒排程器的掃描間隔（秒）
	ReminderIntervalSeconds int

	// RedisAddr 為空時不啟用跨行程的訊息廣播
	RedisAddr string
}

// LoadConfig 載入配置，優先從環境變數讀取，其次從 .env 檔案讀取
func LoadConfig() *Config {
	// 嘗試載入 .env 檔案，如果不存在也不會報錯
	err := godotenv.Load()
	if err != nil {
		log.Println("No .env file found, relying on environment variables.")
	}

	cfg := &Config{
		MongoDBURI:              getEnv("MONGODB_URI", "mongodb://localhost:27017"),
		DBName:                  getEnv("DB_NAME", "venturelink_db"),
		Port:                    getEnv("PORT", "5000"),
		JWTSecret:               getEnv("JWT_SECRET", "fallbacksecret"),
		ClientOrigin:            getEnv("CLIENT_ORIGIN", "http://localhost:3000"),
		EmailAddress:            getEnv("EMAIL_ADDRESS", "no-reply@example.com"),
		EmailPass:               getEnv("EMAIL_PASS", ""),
		SMTPHost:                getEnv("SMTP_HOST", "smtp.gmail.com"),
		SMTPPort:                getEnv("SMTP_PORT", "587"),
		ReminderIntervalSeconds: getEnvInt("REMINDER_INTERVAL_SECONDS", 60),
		RedisAddr:               getEnv("REDIS_ADDR", ""),
	}
	return cfg
}

// getEnv 輔助函數，用於從環境變數獲取值，如果不存在則使用預設值
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvInt 同 getEnv，但將值解析為整數，解析失敗時使用預設值
func getEnvInt(key string, defaultValue int) int {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Invalid integer for %s: %q, using default %d", key, value, defaultValue)
		return defaultValue
	}
	return n
}
