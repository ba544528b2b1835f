package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"venturelink/backend/config"
	"venturelink/backend/database"
	"venturelink/backend/handlers"
	"venturelink/backend/mailer"
	"venturelink/backend/middleware"
	"venturelink/backend/scheduler"
	"venturelink/backend/websocket"

	"github.com/gorilla/mux"
	"github.com/rs/cors" // 引入 CORS 庫
)

func main() {
	cfg := config.LoadConfig()

	database.ConnectMongoDB(cfg.MongoDBURI, cfg.DBName)
	defer database.DisconnectMongoDB()

	handlers.SetJWTSecret(cfg.JWTSecret)

	// 背景工作共用的生命週期
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 即時連線 Hub；設定了 REDIS_ADDR 時掛上跨行程的事件橋接器
	hub := websocket.NewHub(cfg.JWTSecret)
	if cfg.RedisAddr != "" {
		bridge, err := websocket.NewBridge(cfg.RedisAddr)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer bridge.Close()
		hub.SetBridge(bridge)
		go bridge.Run(ctx, hub)
		log.Printf("Realtime bridge enabled via Redis at %s", cfg.RedisAddr)
	}
	go hub.Run()
	handlers.SetEventSink(hub)

	// 會議提醒掃描器
	smtpMailer := mailer.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.EmailAddress, cfg.EmailPass)
	scanner := scheduler.NewScanner(
		database.MeetingRepo{},
		database.UserRepo{},
		smtpMailer,
		time.Duration(cfg.ReminderIntervalSeconds)*time.Second,
		nil,
	)
	go scanner.Run(ctx)
	handlers.SetReminderScan(scanner.ScanAndNotify)

	router := mux.NewRouter()

	// 健康檢查路由
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "Backend is running!")
	}).Methods("GET")

	// WebSocket 即時通道（連線後在通道內做 auth）
	router.HandleFunc("/ws", hub.HandleConnections)

	api := router.PathPrefix("/api/v1").Subrouter()

	// 註冊與登入不需要 token
	api.HandleFunc("/userAuth/register", handlers.RegisterUser).Methods("POST")
	api.HandleFunc("/userAuth/login", handlers.LoginUser).Methods("POST")

	// 其餘 API 一律經過 JWT 驗證
	authed := api.NewRoute().Subrouter()
	authed.Use(middleware.JWTMiddleware(cfg.JWTSecret))

	authed.HandleFunc("/users", handlers.GetAllUsers).Methods("GET")
	authed.HandleFunc("/users/notifications", handlers.GetMyNotifications).Methods("GET")

	authed.HandleFunc("/posts", handlers.CreatePost).Methods("POST")
	authed.HandleFunc("/posts", handlers.GetAllPosts).Methods("GET")

	authed.HandleFunc("/meetings/posts/{postId}/meeting", handlers.ScheduleMeeting).Methods("POST")
	authed.HandleFunc("/meetings/requests", handlers.GetMeetingRequests).Methods("GET")
	authed.HandleFunc("/meetings/scheduled", handlers.GetScheduledMeetings).Methods("GET")
	authed.HandleFunc("/meetings/{id}/accept", handlers.AcceptMeeting).Methods("PUT")
	authed.HandleFunc("/meetings/{id}/reject", handlers.RejectMeeting).Methods("PUT")
	authed.HandleFunc("/meetings/{id}/cancel", handlers.CancelMeeting).Methods("PUT")
	authed.HandleFunc("/meetings/reminders/run", handlers.RunReminderScan).Methods("POST")

	authed.HandleFunc("/messages/conversations", handlers.GetConversations).Methods("GET")
	authed.HandleFunc("/messages/with/{userId}", handlers.GetChatWithUser).Methods("GET")
	authed.HandleFunc("/messages/{userId}", handlers.SendMessage).Methods("POST")

	// 設置 CORS 中介軟體
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{cfg.ClientOrigin},
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	handler := c.Handler(router)

	serverAddr := fmt.Sprintf(":%s", cfg.Port)
	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      handler,
		IdleTimeout:  120 * time.Second,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Server starting on %s", serverAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			// 如果錯誤不是因為主動關閉伺服器，就記錄錯誤並結束程式
			log.Fatalf("Could not listen on %s: %v", serverAddr, err)
		}
	}()

	//當按下 Ctrl+C，程式會收到 SIGINT
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Printf("Received signal %s, shutting down server...", sig)

	// 先停掉背景工作
	cancel()

	//最多等30秒關閉，避免資料損壞，請求中斷
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited gracefully.")
}
