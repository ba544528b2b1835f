package scheduler

import (
	"testing"
	"time"

	"venturelink/backend/mailer/mailermock"
	"venturelink/backend/models"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/mock/gomock"
)

// fakeMeetingStore 是記憶體版的會議存取，模擬候選查詢與標記
type fakeMeetingStore struct {
	meetings map[primitive.ObjectID]*models.Meeting
}

func newFakeMeetingStore(meetings ...*models.Meeting) *fakeMeetingStore {
	store := &fakeMeetingStore{meetings: map[primitive.ObjectID]*models.Meeting{}}
	for _, m := range meetings {
		store.meetings[m.ID] = m
	}
	return store
}

func (f *fakeMeetingStore) ReminderCandidates(from, to time.Time) ([]models.Meeting, error) {
	candidates := []models.Meeting{}
	for _, m := range f.meetings {
		if m.Status != models.MeetingStatusAccepted || m.Reminder5SentAt != nil {
			continue
		}
		if m.ScheduledDate.Before(from) || m.ScheduledDate.After(to) {
			continue
		}
		candidates = append(candidates, *m)
	}
	return candidates, nil
}

func (f *fakeMeetingStore) MarkReminderSent(id primitive.ObjectID, at time.Time) error {
	if m, ok := f.meetings[id]; ok {
		m.Reminder5SentAt = &at
	}
	return nil
}

func (f *fakeMeetingStore) MeetingByID(id primitive.ObjectID) (*models.Meeting, error) {
	m, ok := f.meetings[id]
	if !ok {
		return nil, nil
	}
	copied := *m
	return &copied, nil
}

// fakeUserDirectory 是記憶體版的使用者查詢
type fakeUserDirectory struct {
	users map[primitive.ObjectID]models.User
}

func (f *fakeUserDirectory) UsersByIDs(ids []primitive.ObjectID) ([]models.User, error) {
	result := []models.User{}
	for _, id := range ids {
		if u, ok := f.users[id]; ok {
			result = append(result, u)
		}
	}
	return result, nil
}

// newAcceptedMeeting 建立一筆 2099-01-01 10:00 的 accepted 會議
func newAcceptedMeeting(requester, owner primitive.ObjectID) *models.Meeting {
	acceptedAt := time.Date(2098, 12, 31, 12, 0, 0, 0, time.Local)
	return &models.Meeting{
		ID:            primitive.NewObjectID(),
		Requester:     requester,
		PostOwner:     owner,
		ScheduledDate: time.Date(2099, 1, 1, 0, 0, 0, 0, time.Local),
		ScheduledTime: "10:00",
		Status:        models.MeetingStatusAccepted,
		AcceptedAt:    &acceptedAt,
	}
}

func newDirectory(requester, owner primitive.ObjectID) *fakeUserDirectory {
	return &fakeUserDirectory{users: map[primitive.ObjectID]models.User{
		requester: {ID: requester, Name: "Alice", Email: "alice@example.com"},
		owner:     {ID: owner, Name: "Bob", Email: "bob@example.com"},
	}}
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestScanSendsWithinWindow(t *testing.T) {
	ctrl := gomock.NewController(t)
	requester, owner := primitive.NewObjectID(), primitive.NewObjectID()
	meeting := newAcceptedMeeting(requester, owner)
	store := newFakeMeetingStore(meeting)

	mockMailer := mailermock.NewMockMailer(ctrl)
	mockMailer.EXPECT().
		Send([]string{"alice@example.com", "bob@example.com"}, gomock.Any(), gomock.Any()).
		Return(nil).
		Times(1)

	// 09:56，距離 10:00 還有 4 分鐘，在 (0, 5m] 窗口內
	now := time.Date(2099, 1, 1, 9, 56, 0, 0, time.Local)
	scanner := NewScanner(store, newDirectory(requester, owner), mockMailer, time.Minute, fixedClock(now))

	assert.NoError(t, scanner.ScanAndNotify())
	assert.NotNil(t, store.meetings[meeting.ID].Reminder5SentAt, "寄出提醒後應該標記 reminder5SentAt")
}

func TestScanWindowBoundaries(t *testing.T) {
	cases := []struct {
		name     string
		now      time.Time
		expected bool
	}{
		// 剛好 5 分鐘前，diff == 5m，仍在窗口內
		{"exactly five minutes before", time.Date(2099, 1, 1, 9, 55, 0, 0, time.Local), true},
		// 5 分 1 秒前，還沒進入窗口
		{"just outside window", time.Date(2099, 1, 1, 9, 54, 59, 0, time.Local), false},
		// 剛好開始時間，diff == 0，不再提醒
		{"at start time", time.Date(2099, 1, 1, 10, 0, 0, 0, time.Local), false},
		// 已經開始過了
		{"after start time", time.Date(2099, 1, 1, 10, 1, 0, 0, time.Local), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			requester, owner := primitive.NewObjectID(), primitive.NewObjectID()
			meeting := newAcceptedMeeting(requester, owner)
			store := newFakeMeetingStore(meeting)

			mockMailer := mailermock.NewMockMailer(ctrl)
			expectedSends := 0
			if tc.expected {
				expectedSends = 1
			}
			mockMailer.EXPECT().Send(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).Times(expectedSends)

			scanner := NewScanner(store, newDirectory(requester, owner), mockMailer, time.Minute, fixedClock(tc.now))
			assert.NoError(t, scanner.ScanAndNotify())

			if tc.expected {
				assert.NotNil(t, store.meetings[meeting.ID].Reminder5SentAt)
			} else {
				assert.Nil(t, store.meetings[meeting.ID].Reminder5SentAt, "窗口外不應該標記")
			}
		})
	}
}

func TestScanIsIdempotent(t *testing.T) {
	ctrl := gomock.NewController(t)
	requester, owner := primitive.NewObjectID(), primitive.NewObjectID()
	meeting := newAcceptedMeeting(requester, owner)
	store := newFakeMeetingStore(meeting)

	mockMailer := mailermock.NewMockMailer(ctrl)
	// 連續掃描兩次也只寄一封
	mockMailer.EXPECT().Send(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).Times(1)

	now := time.Date(2099, 1, 1, 9, 56, 0, 0, time.Local)
	scanner := NewScanner(store, newDirectory(requester, owner), mockMailer, time.Minute, fixedClock(now))

	assert.NoError(t, scanner.ScanAndNotify())
	assert.NoError(t, scanner.ScanAndNotify())

	// 一分鐘後再掃一次也一樣
	scanner.now = fixedClock(time.Date(2099, 1, 1, 9, 57, 0, 0, time.Local))
	assert.NoError(t, scanner.ScanAndNotify())
}

func TestMailFailureRetriesNextScan(t *testing.T) {
	ctrl := gomock.NewController(t)
	requester, owner := primitive.NewObjectID(), primitive.NewObjectID()
	meeting := newAcceptedMeeting(requester, owner)
	store := newFakeMeetingStore(meeting)

	mockMailer := mailermock.NewMockMailer(ctrl)
	gomock.InOrder(
		mockMailer.EXPECT().Send(gomock.Any(), gomock.Any(), gomock.Any()).Return(assert.AnError),
		mockMailer.EXPECT().Send(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil),
	)

	scanner := NewScanner(store, newDirectory(requester, owner), mockMailer, time.Minute,
		fixedClock(time.Date(2099, 1, 1, 9, 56, 0, 0, time.Local)))

	// 第一次寄信失敗：不標記，這筆會議下次掃描還是候選
	assert.NoError(t, scanner.ScanAndNotify())
	assert.Nil(t, store.meetings[meeting.ID].Reminder5SentAt, "寄信失敗不應該標記")

	// 下一個週期重試成功
	scanner.now = fixedClock(time.Date(2099, 1, 1, 9, 57, 0, 0, time.Local))
	assert.NoError(t, scanner.ScanAndNotify())
	assert.NotNil(t, store.meetings[meeting.ID].Reminder5SentAt)
}

func TestCancelledMeetingSkippedAtSendTime(t *testing.T) {
	ctrl := gomock.NewController(t)
	requester, owner := primitive.NewObjectID(), primitive.NewObjectID()
	meeting := newAcceptedMeeting(requester, owner)
	store := newFakeMeetingStore(meeting)

	mockMailer := mailermock.NewMockMailer(ctrl)
	mockMailer.EXPECT().Send(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	scanner := NewScanner(store, newDirectory(requester, owner), mockMailer, time.Minute,
		fixedClock(time.Date(2099, 1, 1, 9, 56, 0, 0, time.Local)))

	// 模擬候選查詢之後、寄信之前，前景請求把會議取消了
	candidates, err := store.ReminderCandidates(
		time.Date(2098, 12, 31, 0, 0, 0, 0, time.Local),
		time.Date(2099, 1, 2, 0, 0, 0, 0, time.Local))
	assert.NoError(t, err)
	assert.Len(t, candidates, 1)
	store.meetings[meeting.ID].Status = models.MeetingStatusCancelled

	assert.NoError(t, scanner.ScanAndNotify())
	assert.Nil(t, store.meetings[meeting.ID].Reminder5SentAt, "已取消的會議不應該提醒也不應該標記")
}

func TestNoRecipientEmailsSkipsWithoutMarking(t *testing.T) {
	ctrl := gomock.NewController(t)
	requester, owner := primitive.NewObjectID(), primitive.NewObjectID()
	meeting := newAcceptedMeeting(requester, owner)
	store := newFakeMeetingStore(meeting)

	// 兩位參與者都沒有信箱
	directory := &fakeUserDirectory{users: map[primitive.ObjectID]models.User{
		requester: {ID: requester, Name: "Alice"},
		owner:     {ID: owner, Name: "Bob"},
	}}

	mockMailer := mailermock.NewMockMailer(ctrl)
	mockMailer.EXPECT().Send(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	scanner := NewScanner(store, directory, mockMailer, time.Minute,
		fixedClock(time.Date(2099, 1, 1, 9, 56, 0, 0, time.Local)))

	assert.NoError(t, scanner.ScanAndNotify())
	assert.Nil(t, store.meetings[meeting.ID].Reminder5SentAt, "沒有收件者時不應該標記")
}

func TestPartialRecipientStillMarksOnce(t *testing.T) {
	ctrl := gomock.NewController(t)
	requester, owner := primitive.NewObjectID(), primitive.NewObjectID()
	meeting := newAcceptedMeeting(requester, owner)
	store := newFakeMeetingStore(meeting)

	// 只有一位參與者有信箱：寄送呼叫成功就標記。
	// 取捨：「絕不重複提醒」優先於「保證兩邊都收到」
	directory := &fakeUserDirectory{users: map[primitive.ObjectID]models.User{
		requester: {ID: requester, Name: "Alice", Email: "alice@example.com"},
		owner:     {ID: owner, Name: "Bob"},
	}}

	mockMailer := mailermock.NewMockMailer(ctrl)
	mockMailer.EXPECT().Send([]string{"alice@example.com"}, gomock.Any(), gomock.Any()).Return(nil).Times(1)

	scanner := NewScanner(store, directory, mockMailer, time.Minute,
		fixedClock(time.Date(2099, 1, 1, 9, 56, 0, 0, time.Local)))

	assert.NoError(t, scanner.ScanAndNotify())
	assert.NotNil(t, store.meetings[meeting.ID].Reminder5SentAt, "部分收件者寄出後仍要標記，避免重複提醒")

	assert.NoError(t, scanner.ScanAndNotify())
}

func TestParseFailureDoesNotAbortScan(t *testing.T) {
	ctrl := gomock.NewController(t)
	requester, owner := primitive.NewObjectID(), primitive.NewObjectID()

	broken := newAcceptedMeeting(requester, owner)
	broken.ScheduledTime = "not-a-time"
	valid := newAcceptedMeeting(requester, owner)
	store := newFakeMeetingStore(broken, valid)

	mockMailer := mailermock.NewMockMailer(ctrl)
	// 壞掉的那筆被跳過，正常的那筆照常提醒
	mockMailer.EXPECT().Send(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).Times(1)

	scanner := NewScanner(store, newDirectory(requester, owner), mockMailer, time.Minute,
		fixedClock(time.Date(2099, 1, 1, 9, 56, 0, 0, time.Local)))

	assert.NoError(t, scanner.ScanAndNotify())
	assert.Nil(t, store.meetings[broken.ID].Reminder5SentAt, "無法解析時間的會議不應該標記")
	assert.NotNil(t, store.meetings[valid.ID].Reminder5SentAt)
}
