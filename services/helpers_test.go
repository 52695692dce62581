package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/icupa/giomessaging/dto"
	"github.com/icupa/giomessaging/model"
	"github.com/icupa/giomessaging/services/repositories"
	"github.com/icupa/giomessaging/shared"
)

type sentMessage struct {
	Phone         string
	PhoneNumberID string
	Payload       *dto.MessagePayload
}

// fakeSender records outbound messages instead of hitting the Graph API.
type fakeSender struct {
	mu       sync.Mutex
	messages []sentMessage
}

func (s *fakeSender) SendMessage(phone string, payload *dto.MessagePayload, phoneNumberID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, sentMessage{Phone: phone, PhoneNumberID: phoneNumberID, Payload: payload})
	return nil
}

func (s *fakeSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

func (s *fakeSender) last(t *testing.T) sentMessage {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.messages) == 0 {
		t.Fatal("no messages sent")
	}
	return s.messages[len(s.messages)-1]
}

// lastTo returns the most recent message sent to phone.
func (s *fakeSender) lastTo(t *testing.T, phone string) sentMessage {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.messages) - 1; i >= 0; i-- {
		if s.messages[i].Phone == phone {
			return s.messages[i]
		}
	}
	t.Fatalf("no messages sent to %s", phone)
	return sentMessage{}
}

func bodyText(t *testing.T, msg sentMessage) string {
	t.Helper()
	p := msg.Payload
	if p.Text != nil {
		return p.Text.Body
	}
	if p.Interactive != nil && p.Interactive.Body != nil {
		return p.Interactive.Body.Text
	}
	t.Fatalf("message has no body: %+v", p)
	return ""
}

// fakeQuestionSource returns a deterministic question set. The correct answer
// is always option index 0.
type fakeQuestionSource struct {
	difficulty string
	err        error
}

func (f *fakeQuestionSource) GenerateWithRetry(_ context.Context, topic string, count int) ([]model.Question, error) {
	if f.err != nil {
		return nil, f.err
	}
	difficulty := f.difficulty
	if difficulty == "" {
		difficulty = shared.DifficultyEasy
	}
	questions := make([]model.Question, 0, count)
	for i := 0; i < count; i++ {
		questions = append(questions, model.Question{
			Question:           fmt.Sprintf("%s question %d", topic, i+1),
			Options:            []string{"right", "wrong", "also wrong"},
			CorrectAnswerIndex: 0,
			Explanation:        "because it is",
			Difficulty:         difficulty,
		})
	}
	return questions, nil
}

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(Models()...); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

func newTestTrivia(t *testing.T) (*TriviaService, *fakeSender, *MemorySessionStore) {
	t.Helper()
	sender := &fakeSender{}
	store := NewMemorySessionStore()
	db := testDB(t)

	svc := &TriviaService{
		sender:      sender,
		questions:   &fakeQuestionSource{},
		store:       store,
		userRepo:    repositories.NewUserRepository(db),
		gameRepo:    repositories.NewGameRepository(db),
		joinBaseURL: "https://example.test",
		nextDelay:   time.Millisecond,
		timers:      map[string]*time.Timer{},
	}
	return svc, sender, store
}

// waitForMessages polls until the sender holds at least n messages.
func waitForMessages(t *testing.T, sender *fakeSender, n int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if sender.count() >= n {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("expected at least %d messages, got %d", n, sender.count())
}

func textMsg(body string) *dto.InboundMessage {
	return &dto.InboundMessage{Type: "text", Text: &dto.TextBody{Body: body}}
}

func buttonReply(id string) *dto.InboundMessage {
	return &dto.InboundMessage{
		Type: "interactive",
		Interactive: &dto.InboundInteractive{
			Type:        "button_reply",
			ButtonReply: &dto.ReplySummary{ID: id},
		},
	}
}

func listReply(id string) *dto.InboundMessage {
	return &dto.InboundMessage{
		Type: "interactive",
		Interactive: &dto.InboundInteractive{
			Type:      "list_reply",
			ListReply: &dto.ReplySummary{ID: id},
		},
	}
}

func mustContain(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected %q to contain %q", haystack, needle)
	}
}

func mustNotContain(t *testing.T, haystack, needle string) {
	t.Helper()
	if strings.Contains(haystack, needle) {
		t.Fatalf("expected %q to not contain %q", haystack, needle)
	}
}
