package services

import (
	"context"
	"testing"
	"time"

	"github.com/icupa/giomessaging/model"
	"github.com/icupa/giomessaging/shared"
)

const (
	testPhone   = "250788000001"
	testPhoneID = "111111111111111"
)

func getContext(t *testing.T, store *MemorySessionStore, phone string) *model.UserContext {
	t.Helper()
	uc, err := store.GetContext(context.Background(), phone)
	if err != nil {
		t.Fatalf("failed to load context: %v", err)
	}
	if uc == nil {
		t.Fatalf("no context stored for %s", phone)
	}
	return uc
}

func TestPlayStartsTopicSelection(t *testing.T) {
	svc, sender, store := newTestTrivia(t)
	ctx := context.Background()

	if err := svc.HandleTextMessage(ctx, textMsg("play"), testPhone, testPhoneID); err != nil {
		t.Fatal(err)
	}

	uc := getContext(t, store, testPhone)
	if uc.State != shared.StateTopicSelection {
		t.Fatalf("expected state %s, got %s", shared.StateTopicSelection, uc.State)
	}

	msg := sender.last(t)
	if msg.Payload.Interactive == nil || msg.Payload.Interactive.Type != "list" {
		t.Fatalf("expected topic list message, got %+v", msg.Payload)
	}
	rows := msg.Payload.Interactive.Action.Sections[0].Rows
	if len(rows) != len(shared.Topics) {
		t.Fatalf("expected %d topic rows, got %d", len(shared.Topics), len(rows))
	}
}

func TestTopicSelectionLeadsToModeButtons(t *testing.T) {
	svc, sender, store := newTestTrivia(t)
	ctx := context.Background()

	if err := svc.HandleTextMessage(ctx, textMsg("play"), testPhone, testPhoneID); err != nil {
		t.Fatal(err)
	}
	if err := svc.HandleInteractiveMessage(ctx, listReply("topic_science"), testPhone, testPhoneID); err != nil {
		t.Fatal(err)
	}

	uc := getContext(t, store, testPhone)
	if uc.State != shared.StateQuestionCount {
		t.Fatalf("expected state %s, got %s", shared.StateQuestionCount, uc.State)
	}
	if uc.Topic != "science" {
		t.Fatalf("expected topic science, got %s", uc.Topic)
	}

	msg := sender.last(t)
	buttons := msg.Payload.Interactive.Action.Buttons
	if len(buttons) != 2 || buttons[0].Reply.ID != "single_player" || buttons[1].Reply.ID != "multiplayer" {
		t.Fatalf("unexpected mode buttons: %+v", buttons)
	}
}

func TestQuestionCountValidation(t *testing.T) {
	svc, sender, store := newTestTrivia(t)
	ctx := context.Background()

	_ = svc.HandleTextMessage(ctx, textMsg("play"), testPhone, testPhoneID)
	_ = svc.HandleInteractiveMessage(ctx, listReply("topic_science"), testPhone, testPhoneID)

	for _, input := range []string{"3", "21", "abc"} {
		if err := svc.HandleTextMessage(ctx, textMsg(input), testPhone, testPhoneID); err != nil {
			t.Fatal(err)
		}
		mustContain(t, bodyText(t, sender.last(t)), "between 5 and 20")

		uc := getContext(t, store, testPhone)
		if uc.State != shared.StateQuestionCount {
			t.Fatalf("state moved to %s on invalid input %q", uc.State, input)
		}
	}
}

func TestValidCountStartsGame(t *testing.T) {
	svc, sender, store := newTestTrivia(t)
	ctx := context.Background()

	_ = svc.HandleTextMessage(ctx, textMsg("play"), testPhone, testPhoneID)
	_ = svc.HandleInteractiveMessage(ctx, listReply("topic_science"), testPhone, testPhoneID)
	if err := svc.HandleTextMessage(ctx, textMsg("7"), testPhone, testPhoneID); err != nil {
		t.Fatal(err)
	}

	uc := getContext(t, store, testPhone)
	if uc.State != shared.StateInGame {
		t.Fatalf("expected state %s, got %s", shared.StateInGame, uc.State)
	}
	if len(uc.Questions) != 7 || uc.CurrentQuestionIndex != 0 || uc.Score != 0 {
		t.Fatalf("unexpected game setup: %+v", uc)
	}

	msg := sender.last(t)
	mustContain(t, bodyText(t, msg), "*Question* 1/7")
	buttons := msg.Payload.Interactive.Action.Buttons
	if len(buttons) != 3 || buttons[0].Reply.ID != "answer_a" {
		t.Fatalf("unexpected answer buttons: %+v", buttons)
	}
}

func TestGenerationFailureKeepsCountState(t *testing.T) {
	svc, sender, store := newTestTrivia(t)
	svc.questions = &fakeQuestionSource{err: context.DeadlineExceeded}
	ctx := context.Background()

	_ = svc.HandleTextMessage(ctx, textMsg("play"), testPhone, testPhoneID)
	_ = svc.HandleInteractiveMessage(ctx, listReply("topic_science"), testPhone, testPhoneID)
	if err := svc.HandleTextMessage(ctx, textMsg("10"), testPhone, testPhoneID); err != nil {
		t.Fatal(err)
	}

	mustContain(t, bodyText(t, sender.last(t)), "error starting the game")

	uc := getContext(t, store, testPhone)
	if uc.State != shared.StateQuestionCount {
		t.Fatalf("state should stay %s after failed generation, got %s", shared.StateQuestionCount, uc.State)
	}
	if len(uc.Questions) != 0 {
		t.Fatalf("no questions should be stored after failed generation")
	}
}

func TestCorrectAnswerScoresAndAdvances(t *testing.T) {
	svc, sender, store := newTestTrivia(t)
	ctx := context.Background()

	_ = svc.HandleTextMessage(ctx, textMsg("play"), testPhone, testPhoneID)
	_ = svc.HandleInteractiveMessage(ctx, listReply("topic_science"), testPhone, testPhoneID)
	_ = svc.HandleTextMessage(ctx, textMsg("5"), testPhone, testPhoneID)

	before := sender.count()
	if err := svc.HandleInteractiveMessage(ctx, buttonReply("answer_a"), testPhone, testPhoneID); err != nil {
		t.Fatal(err)
	}

	mustContain(t, bodyText(t, sender.last(t)), "Correct!")
	mustContain(t, bodyText(t, sender.last(t)), "10 points")

	uc := getContext(t, store, testPhone)
	if uc.Score != 10 || uc.CurrentQuestionIndex != 1 {
		t.Fatalf("expected score 10 at index 1, got score %d index %d", uc.Score, uc.CurrentQuestionIndex)
	}

	// The delayed next question fires after feedback.
	waitForMessages(t, sender, before+2)
	mustContain(t, bodyText(t, sender.last(t)), "*Question* 2/5")
}

func TestWrongAnswerSendsExplanation(t *testing.T) {
	svc, sender, store := newTestTrivia(t)
	ctx := context.Background()

	_ = svc.HandleTextMessage(ctx, textMsg("play"), testPhone, testPhoneID)
	_ = svc.HandleInteractiveMessage(ctx, listReply("topic_science"), testPhone, testPhoneID)
	_ = svc.HandleTextMessage(ctx, textMsg("5"), testPhone, testPhoneID)

	if err := svc.HandleInteractiveMessage(ctx, buttonReply("answer_b"), testPhone, testPhoneID); err != nil {
		t.Fatal(err)
	}

	body := bodyText(t, sender.last(t))
	mustContain(t, body, "Incorrect!")
	mustContain(t, body, "The correct answer was A")
	mustContain(t, body, "because it is")

	if uc := getContext(t, store, testPhone); uc.Score != 0 {
		t.Fatalf("wrong answer must not score, got %d", uc.Score)
	}
}

func TestScoringByDifficulty(t *testing.T) {
	for difficulty, points := range map[string]int{
		shared.DifficultyEasy:   10,
		shared.DifficultyMedium: 20,
		shared.DifficultyHard:   30,
	} {
		svc, _, store := newTestTrivia(t)
		svc.questions = &fakeQuestionSource{difficulty: difficulty}
		ctx := context.Background()

		_ = svc.HandleTextMessage(ctx, textMsg("play"), testPhone, testPhoneID)
		_ = svc.HandleInteractiveMessage(ctx, listReply("topic_science"), testPhone, testPhoneID)
		_ = svc.HandleTextMessage(ctx, textMsg("5"), testPhone, testPhoneID)
		_ = svc.HandleInteractiveMessage(ctx, buttonReply("answer_a"), testPhone, testPhoneID)

		if uc := getContext(t, store, testPhone); uc.Score != points {
			t.Fatalf("%s answer should score %d, got %d", difficulty, points, uc.Score)
		}
	}
}

func TestGameOverAfterLastQuestion(t *testing.T) {
	svc, sender, store := newTestTrivia(t)
	ctx := context.Background()

	_ = svc.HandleTextMessage(ctx, textMsg("play"), testPhone, testPhoneID)
	_ = svc.HandleInteractiveMessage(ctx, listReply("topic_science"), testPhone, testPhoneID)
	_ = svc.HandleTextMessage(ctx, textMsg("5"), testPhone, testPhoneID)

	for i := 0; i < 5; i++ {
		if err := svc.HandleInteractiveMessage(ctx, buttonReply("answer_a"), testPhone, testPhoneID); err != nil {
			t.Fatal(err)
		}
	}

	uc := getContext(t, store, testPhone)
	if uc.State != shared.StateGameOver {
		t.Fatalf("expected state %s, got %s", shared.StateGameOver, uc.State)
	}

	body := bodyText(t, sender.last(t))
	mustContain(t, body, "Game Over! Your final score is 50/50")
	mustContain(t, body, "Type 'play' to start a new game.")
	if uc.Score >= 5*20 {
		t.Fatalf("easy run should not reach achievement threshold")
	}
	mustNotContain(t, body, "Achievement Unlocked")
}

func TestAchievementOnHighScore(t *testing.T) {
	svc, sender, _ := newTestTrivia(t)
	svc.questions = &fakeQuestionSource{difficulty: shared.DifficultyHard}
	ctx := context.Background()

	_ = svc.HandleTextMessage(ctx, textMsg("play"), testPhone, testPhoneID)
	_ = svc.HandleInteractiveMessage(ctx, listReply("topic_science"), testPhone, testPhoneID)
	_ = svc.HandleTextMessage(ctx, textMsg("5"), testPhone, testPhoneID)

	for i := 0; i < 5; i++ {
		_ = svc.HandleInteractiveMessage(ctx, buttonReply("answer_a"), testPhone, testPhoneID)
	}

	body := bodyText(t, sender.last(t))
	mustContain(t, body, "Game Over! Your final score is 150/150")
	mustContain(t, body, "🏆 Achievement Unlocked: Trivia Master!")
}

func TestQuitEndsGame(t *testing.T) {
	svc, sender, store := newTestTrivia(t)
	ctx := context.Background()

	_ = svc.HandleTextMessage(ctx, textMsg("play"), testPhone, testPhoneID)
	if err := svc.HandleTextMessage(ctx, textMsg("quit"), testPhone, testPhoneID); err != nil {
		t.Fatal(err)
	}

	mustContain(t, bodyText(t, sender.last(t)), "Game ended")

	uc, err := store.GetContext(ctx, testPhone)
	if err != nil {
		t.Fatal(err)
	}
	if uc != nil {
		t.Fatalf("context should be deleted on quit, got %+v", uc)
	}
}

func TestNewInboundCancelsPendingQuestion(t *testing.T) {
	svc, sender, _ := newTestTrivia(t)
	ctx := context.Background()

	_ = svc.HandleTextMessage(ctx, textMsg("play"), testPhone, testPhoneID)
	_ = svc.HandleInteractiveMessage(ctx, listReply("topic_science"), testPhone, testPhoneID)
	_ = svc.HandleTextMessage(ctx, textMsg("5"), testPhone, testPhoneID)
	_ = svc.HandleInteractiveMessage(ctx, buttonReply("answer_a"), testPhone, testPhoneID)

	// Quit immediately; the armed timer must not fire afterwards.
	_ = svc.HandleTextMessage(ctx, textMsg("quit"), testPhone, testPhoneID)
	count := sender.count()

	time.Sleep(50 * time.Millisecond)
	if sender.count() != count {
		t.Fatalf("pending question fired after quit")
	}
}
