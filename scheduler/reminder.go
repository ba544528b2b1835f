package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"venturelink/backend/mailer"
	"venturelink/backend/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	// reminderWindow 是寄出提醒信的時間窗：開始前 (0, 5 分鐘]
	reminderWindow = 5 * time.Minute

	// candidateSpan 是候選查詢的日期寬度。scheduledDate 只存日期，
	// 所以往前後各放寬一天，精確的時間比對交給逐筆處理
	candidateSpan = 24 * time.Hour

	// startupDelay 是行程啟動後首次掃描前的短暫延遲，
	// 讓重啟後馬上到期的提醒不用等完整的一個週期
	startupDelay = 5 * time.Second
)

// MeetingStore 是掃描器需要的會議資料存取介面
type MeetingStore interface {
	ReminderCandidates(from, to time.Time) ([]models.Meeting, error)
	MarkReminderSent(id primitive.ObjectID, at time.Time) error
	MeetingByID(id primitive.ObjectID) (*models.Meeting, error)
}

// UserDirectory 是掃描器需要的使用者查詢介面
type UserDirectory interface {
	UsersByIDs(ids []primitive.ObjectID) ([]models.User, error)
}

// Scanner 定期掃描即將開始的 accepted 會議並寄出提醒信，
// 每筆會議最多提醒一次
type Scanner struct {
	meetings MeetingStore
	users    UserDirectory
	mailer   mailer.Mailer
	interval time.Duration
	now      func() time.Time // 測試時可替換的時鐘
}

// NewScanner 建立提醒掃描器；now 傳 nil 時使用系統時鐘
func NewScanner(meetings MeetingStore, users UserDirectory, m mailer.Mailer, interval time.Duration, now func() time.Time) *Scanner {
	if now == nil {
		now = time.Now
	}
	return &Scanner{
		meetings: meetings,
		users:    users,
		mailer:   m,
		interval: interval,
		now:      now,
	}
}

// Run 以固定間隔執行掃描，啟動後先跑一次，直到 ctx 結束
func (s *Scanner) Run(ctx context.Context) {
	startup := time.NewTimer(startupDelay)
	defer startup.Stop()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	log.Printf("Meeting reminder scanner started (interval %s)", s.interval)
	for {
		select {
		case <-ctx.Done():
			log.Println("Meeting reminder scanner stopped.")
			return
		case <-startup.C:
			if err := s.ScanAndNotify(); err != nil {
				log.Printf("Reminder scan failed: %v", err)
			}
		case <-ticker.C:
			if err := s.ScanAndNotify(); err != nil {
				log.Printf("Reminder scan failed: %v", err)
			}
		}
	}
}

// ScanAndNotify 執行一次掃描。單筆會議的失敗只記錄，
// 不會中斷其餘會議的處理
func (s *Scanner) ScanAndNotify() error {
	now := s.now()
	meetings, err := s.meetings.ReminderCandidates(now.Add(-candidateSpan), now.Add(candidateSpan))
	if err != nil {
		return err
	}

	for i := range meetings {
		s.process(&meetings[i], now)
	}
	return nil
}

// process 處理一筆候選會議
func (s *Scanner) process(m *models.Meeting, now time.Time) {
	when, ok := m.StartTime()
	if !ok {
		log.Printf("[Reminder] Skipping meeting %s because scheduled datetime could not be parsed. Raw date=%s, time=%s",
			m.ID.Hex(), m.ScheduledDate, m.ScheduledTime)
		return
	}

	diff := when.Sub(now)
	// 已開始或還沒進入 5 分鐘窗口的都跳過，且不標記
	if diff <= 0 || diff > reminderWindow {
		return
	}

	// 寄信前重新讀一次：在候選查詢之後被取消或已標記過的不再提醒
	fresh, err := s.meetings.MeetingByID(m.ID)
	if err != nil {
		log.Printf("[Reminder] Failed to re-load meeting %s: %v", m.ID.Hex(), err)
		return
	}
	if fresh == nil || fresh.Status != models.MeetingStatusAccepted || fresh.Reminder5SentAt != nil {
		return
	}

	users, err := s.users.UsersByIDs([]primitive.ObjectID{m.Requester, m.PostOwner})
	if err != nil {
		log.Printf("[Reminder] Failed to load participants for meeting %s: %v", m.ID.Hex(), err)
		return
	}
	recipients := []string{}
	for _, u := range users {
		if u.Email != "" {
			recipients = append(recipients, u.Email)
		}
	}
	// 一個信箱都拿不到就跳過且不標記，之後的掃描還有機會重試
	if len(recipients) == 0 {
		log.Printf("[Reminder] Skipped meeting %s - no recipient emails found.", m.ID.Hex())
		return
	}

	subject := "Meeting Reminder (starts in ~5 minutes)"
	text := fmt.Sprintf("This is a reminder that your meeting is scheduled at %s.",
		when.Format("2006-01-02 15:04"))

	// 寄信失敗不標記，窗口還沒關之前下次掃描會重試
	if err := s.mailer.Send(recipients, subject, text); err != nil {
		log.Printf("Meeting reminder email failed for %s: %v", m.ID.Hex(), err)
		return
	}

	// 寄送呼叫一成功就標記，即使部分收件者其實收不到，
	// 確保每筆會議最多提醒一次
	if err := s.meetings.MarkReminderSent(m.ID, s.now()); err != nil {
		log.Printf("[Reminder] Failed to mark reminder sent for meeting %s: %v", m.ID.Hex(), err)
		return
	}
	log.Printf("[Reminder] Sent 5-min email for meeting %s to %v", m.ID.Hex(), recipients)
}
