package handlers

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"venturelink/backend/database"
	"venturelink/backend/models"
	"venturelink/backend/utils"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// cooldownDuration 是同一對使用者在一次 accepted 會議後，
// 再次發出會議請求前必須等待的最短時間
const cooldownDuration = 2 * time.Hour

// reminderScan 由 main 注入，供開發用的手動掃描端點呼叫
var reminderScan func() error

// SetReminderScan 設定手動觸發提醒掃描的函式
func SetReminderScan(fn func() error) {
	reminderScan = fn
}

// ScheduleMeetingRequest 定義排定會議的請求體
type ScheduleMeetingRequest struct {
	Date        string `json:"date"` // "2006-01-02"
	Time        string `json:"time"` // "15:04"
	Message     string `json:"message"`
	MeetingType string `json:"meetingType"`
}

// ScheduleMeeting 處理針對某篇貼文發出會議請求
func ScheduleMeeting(w http.ResponseWriter, r *http.Request) {
	requesterID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		sendJSONError(w, "Authentication required to schedule a meeting", http.StatusUnauthorized)
		return
	}

	var req ScheduleMeetingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, "Invalid request payload", http.StatusBadRequest)
		return
	}

	req.Message = strings.TrimSpace(req.Message)
	if req.Date == "" || req.Time == "" || req.Message == "" {
		sendJSONError(w, "Date, time, and message are required", http.StatusBadRequest)
		return
	}

	meetingType := models.MeetingType(req.MeetingType)
	if meetingType == "" {
		meetingType = models.MeetingTypeVirtual
	}
	if meetingType != models.MeetingTypeVirtual && meetingType != models.MeetingTypeInPerson {
		sendJSONError(w, "Meeting type must be virtual or in-person", http.StatusBadRequest)
		return
	}

	postID, err := primitive.ObjectIDFromHex(mux.Vars(r)["postId"])
	if err != nil {
		sendJSONError(w, "Invalid post ID format", http.StatusBadRequest)
		return
	}

	post, err := database.FindPostByID(postID)
	if err != nil {
		sendJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if post == nil {
		sendJSONError(w, "Post not found", http.StatusNotFound)
		return
	}

	// 不允許對自己的貼文排會議
	if post.Author == requesterID {
		sendJSONError(w, "Cannot schedule meeting with yourself", http.StatusBadRequest)
		return
	}

	// 解析日期與時間，並要求合併後的時間點嚴格在未來
	scheduledDate, err := time.ParseInLocation("2006-01-02", req.Date, time.Local)
	if err != nil {
		sendJSONError(w, "Invalid date format, expected YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	hm, err := time.Parse("15:04", req.Time)
	if err != nil {
		sendJSONError(w, "Invalid time format, expected HH:MM", http.StatusBadRequest)
		return
	}
	scheduledDateTime := time.Date(scheduledDate.Year(), scheduledDate.Month(), scheduledDate.Day(),
		hm.Hour(), hm.Minute(), 0, 0, time.Local)
	if !scheduledDateTime.After(time.Now()) {
		sendJSONError(w, "Meeting must be scheduled for a future time", http.StatusBadRequest)
		return
	}

	// 先做友善的時段衝突檢查；真正的保證在資料庫的唯一索引
	taken, err := database.HasMeetingAtSlot(post.Author, scheduledDate, req.Time)
	if err != nil {
		sendJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if taken {
		sendJSONError(w, "The post owner already has a meeting scheduled at this time", http.StatusBadRequest)
		return
	}

	// 兩小時冷卻：同一對使用者（不分方向）最近有 accepted 會議就擋下
	recentAccepted, err := database.HasRecentAcceptedBetween(requesterID, post.Author, time.Now().Add(-cooldownDuration))
	if err != nil {
		sendJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if recentAccepted {
		sendJSONError(w, "Please wait 2 hours after the last accepted meeting before sending another meeting request between these users.", http.StatusBadRequest)
		return
	}

	meeting, err := database.InsertMeeting(models.Meeting{
		Post:          postID,
		Requester:     requesterID,
		PostOwner:     post.Author,
		ScheduledDate: scheduledDate,
		ScheduledTime: req.Time,
		Message:       req.Message,
		Status:        models.MeetingStatusPending,
		MeetingType:   meetingType,
	})
	if err == database.ErrSlotTaken {
		// 兩個併發請求同時通過了上面的檢查時，由唯一索引擋下第二個
		sendJSONError(w, "The post owner already has a meeting scheduled at this time", http.StatusBadRequest)
		return
	}
	if err != nil {
		sendJSONError(w, "Server error while scheduling meeting", http.StatusInternalServerError)
		return
	}

	// 通知貼文作者；附加失敗時讓整個操作失敗，通知不會默默消失
	err = database.AppendNotification(post.Author, models.Notification{
		Type:     models.NotificationMeetingRequest,
		FromUser: requesterID,
		Message:  fmt.Sprintf("New meeting request for your post: %s", post.Title),
		Meeting:  meeting.ID,
	})
	if err != nil {
		log.Printf("Failed to notify post owner %s: %v", post.Author.Hex(), err)
		sendJSONError(w, "Server error while scheduling meeting", http.StatusInternalServerError)
		return
	}

	populated := meeting
	if ms, err := populateMeetingSlice([]models.Meeting{meeting}); err == nil && len(ms) == 1 {
		populated = ms[0]
	}

	sendJSONData(w, http.StatusCreated, "Meeting request sent successfully", populated)
}

// GetMeetingRequests 回傳目前使用者收到的會議請求（作為貼文作者）
func GetMeetingRequests(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		sendJSONError(w, "Authentication required to view meeting requests", http.StatusUnauthorized)
		return
	}

	status := models.MeetingStatus(r.URL.Query().Get("status"))
	meetings, err := database.FindMeetingsByOwner(userID, status)
	if err != nil {
		sendJSONError(w, "Server error while fetching meeting requests", http.StatusInternalServerError)
		return
	}

	populated, err := populateMeetingSlice(meetings)
	if err != nil {
		sendJSONError(w, "Server error while fetching meeting requests", http.StatusInternalServerError)
		return
	}
	sendJSONData(w, http.StatusOK, "", populated)
}

// GetScheduledMeetings 回傳目前使用者發出的會議請求
func GetScheduledMeetings(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		sendJSONError(w, "Authentication required to view scheduled meetings", http.StatusUnauthorized)
		return
	}

	status := models.MeetingStatus(r.URL.Query().Get("status"))
	meetings, err := database.FindMeetingsByRequester(userID, status)
	if err != nil {
		sendJSONError(w, "Server error while fetching scheduled meetings", http.StatusInternalServerError)
		return
	}

	populated, err := populateMeetingSlice(meetings)
	if err != nil {
		sendJSONError(w, "Server error while fetching scheduled meetings", http.StatusInternalServerError)
		return
	}
	sendJSONData(w, http.StatusOK, "", populated)
}

// AcceptMeeting 由貼文作者接受 pending 的會議請求
func AcceptMeeting(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		sendJSONError(w, "Authentication required to manage meetings", http.StatusUnauthorized)
		return
	}

	meeting, ok := loadMeeting(w, r)
	if !ok {
		return
	}

	if meeting.PostOwner != userID {
		sendJSONError(w, "Not authorized to accept this meeting", http.StatusForbidden)
		return
	}
	if meeting.Status != models.MeetingStatusPending {
		sendJSONError(w, "Meeting request already processed", http.StatusBadRequest)
		return
	}

	acceptedAt := time.Now()
	if err := database.UpdateMeetingStatus(meeting.ID, models.MeetingStatusAccepted, &acceptedAt); err != nil {
		sendJSONError(w, "Server error while accepting meeting", http.StatusInternalServerError)
		return
	}
	meeting.Status = models.MeetingStatusAccepted
	meeting.AcceptedAt = &acceptedAt

	err = database.AppendNotification(meeting.Requester, models.Notification{
		Type:     models.NotificationMeetingAccepted,
		FromUser: userID,
		Message:  "Your meeting request has been accepted",
		Meeting:  meeting.ID,
	})
	if err != nil {
		log.Printf("Failed to notify requester %s: %v", meeting.Requester.Hex(), err)
		sendJSONError(w, "Server error while accepting meeting", http.StatusInternalServerError)
		return
	}

	sendJSONData(w, http.StatusOK, "Meeting request accepted", meeting)
}

// RejectMeeting 由貼文作者拒絕 pending 的會議請求
func RejectMeeting(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		sendJSONError(w, "Authentication required to manage meetings", http.StatusUnauthorized)
		return
	}

	meeting, ok := loadMeeting(w, r)
	if !ok {
		return
	}

	if meeting.PostOwner != userID {
		sendJSONError(w, "Not authorized to reject this meeting", http.StatusForbidden)
		return
	}
	if meeting.Status != models.MeetingStatusPending {
		sendJSONError(w, "Meeting request already processed", http.StatusBadRequest)
		return
	}

	if err := database.UpdateMeetingStatus(meeting.ID, models.MeetingStatusRejected, nil); err != nil {
		sendJSONError(w, "Server error while rejecting meeting", http.StatusInternalServerError)
		return
	}
	meeting.Status = models.MeetingStatusRejected

	err = database.AppendNotification(meeting.Requester, models.Notification{
		Type:     models.NotificationMeetingRejected,
		FromUser: userID,
		Message:  "Your meeting request has been declined",
		Meeting:  meeting.ID,
	})
	if err != nil {
		log.Printf("Failed to notify requester %s: %v", meeting.Requester.Hex(), err)
		sendJSONError(w, "Server error while rejecting meeting", http.StatusInternalServerError)
		return
	}

	sendJSONData(w, http.StatusOK, "Meeting request rejected", meeting)
}

// CancelMeeting 由請求者或貼文作者取消 pending/accepted 的會議
func CancelMeeting(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		sendJSONError(w, "Authentication required to cancel meetings", http.StatusUnauthorized)
		return
	}

	meeting, ok := loadMeeting(w, r)
	if !ok {
		return
	}

	if meeting.Requester != userID && meeting.PostOwner != userID {
		sendJSONError(w, "Not authorized to cancel this meeting", http.StatusForbidden)
		return
	}
	// rejected/cancelled 是終態，不允許再取消
	if meeting.Status != models.MeetingStatusPending && meeting.Status != models.MeetingStatusAccepted {
		sendJSONError(w, "Meeting request already processed", http.StatusBadRequest)
		return
	}

	if err := database.UpdateMeetingStatus(meeting.ID, models.MeetingStatusCancelled, nil); err != nil {
		sendJSONError(w, "Server error while cancelling meeting", http.StatusInternalServerError)
		return
	}
	meeting.Status = models.MeetingStatusCancelled

	sendJSONData(w, http.StatusOK, "Meeting cancelled successfully", meeting)
}

// RunReminderScan 開發用端點：手動觸發一次提醒掃描
func RunReminderScan(w http.ResponseWriter, r *http.Request) {
	if reminderScan == nil {
		sendJSONError(w, "Reminder scanner is not configured", http.StatusServiceUnavailable)
		return
	}
	if err := reminderScan(); err != nil {
		sendJSONError(w, "Scan failed", http.StatusInternalServerError)
		return
	}
	sendJSONData(w, http.StatusOK, "Reminder scan executed", nil)
}

// loadMeeting 解析路徑中的會議 ID 並讀取會議，處理共同的錯誤情況
func loadMeeting(w http.ResponseWriter, r *http.Request) (*models.Meeting, bool) {
	meetingID, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		sendJSONError(w, "Invalid meeting ID format", http.StatusBadRequest)
		return nil, false
	}

	meeting, err := database.FindMeetingByID(meetingID)
	if err != nil {
		sendJSONError(w, "Internal server error", http.StatusInternalServerError)
		return nil, false
	}
	if meeting == nil {
		sendJSONError(w, "Meeting not found", http.StatusNotFound)
		return nil, false
	}
	return meeting, true
}

// populateMeetingSlice 批次填充會議的使用者摘要與貼文標題
func populateMeetingSlice(meetings []models.Meeting) ([]models.Meeting, error) {
	if len(meetings) == 0 {
		return meetings, nil
	}

	userIDSet := map[primitive.ObjectID]bool{}
	postIDSet := map[primitive.ObjectID]bool{}
	for _, m := range meetings {
		userIDSet[m.Requester] = true
		userIDSet[m.PostOwner] = true
		postIDSet[m.Post] = true
	}
	userIDs := make([]primitive.ObjectID, 0, len(userIDSet))
	for id := range userIDSet {
		userIDs = append(userIDs, id)
	}
	postIDs := make([]primitive.ObjectID, 0, len(postIDSet))
	for id := range postIDSet {
		postIDs = append(postIDs, id)
	}

	users, err := database.GetUsersByIDs(userIDs)
	if err != nil {
		return nil, err
	}
	posts, err := database.GetPostsByIDs(postIDs)
	if err != nil {
		return nil, err
	}

	usersByID := map[primitive.ObjectID]*models.UserSummary{}
	for i := range users {
		usersByID[users[i].ID] = users[i].Summary()
	}
	titlesByID := map[primitive.ObjectID]string{}
	for _, p := range posts {
		titlesByID[p.ID] = p.Title
	}

	for i := range meetings {
		meetings[i].RequesterInfo = usersByID[meetings[i].Requester]
		meetings[i].PostOwnerInfo = usersByID[meetings[i].PostOwner]
		meetings[i].PostTitle = titlesByID[meetings[i].Post]
	}
	return meetings, nil
}
