package services

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	appContext "github.com/alphabatem/common/context"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/icupa/giomessaging/dto"
	"github.com/icupa/giomessaging/model"
	"github.com/icupa/giomessaging/services/repositories"
	"github.com/icupa/giomessaging/shared"
)

// TriviaService drives the per-user conversational state machine:
// IDLE -> TOPIC_SELECTION -> QUESTION_COUNT -> IN_GAME -> GAME_OVER, with
// WAITING_FOR_OPPONENT for multiplayer hosts.
type TriviaService struct {
	appContext.DefaultService

	sender    MessageSender
	questions QuestionSource
	store     SessionStore

	userRepo *repositories.UserRepository
	gameRepo *repositories.GameRepository

	joinBaseURL string
	nextDelay   time.Duration

	timerMu sync.Mutex
	timers  map[string]*time.Timer
}

const TRIVIA_SVC = "trivia_svc"

const multiplayerQuestionCount = 5

var answerIndex = map[string]int{"a": 0, "b": 1, "c": 2}

func (svc TriviaService) Id() string {
	return TRIVIA_SVC
}

func (svc *TriviaService) Configure(ctx *appContext.Context) error {
	svc.joinBaseURL = os.Getenv("JOIN_BASE_URL")
	if svc.joinBaseURL == "" {
		svc.joinBaseURL = "https://triviatrialsmessaging.onrender.com"
	}
	svc.nextDelay = time.Second
	svc.timers = map[string]*time.Timer{}
	return svc.DefaultService.Configure(ctx)
}

func (svc *TriviaService) Start() error {
	svc.sender = svc.Service(WHATSAPP_SVC).(*WhatsAppService)
	svc.questions = svc.Service(QUESTION_SVC).(*QuestionService)
	svc.store = svc.Service(SESSION_SVC).(*SessionService).Store()

	db := DatabaseFor(svc.Service)
	svc.userRepo = repositories.NewUserRepository(db)
	svc.gameRepo = repositories.NewGameRepository(db)
	return nil
}

func (svc *TriviaService) Shutdown() {
	svc.timerMu.Lock()
	defer svc.timerMu.Unlock()
	for phone, timer := range svc.timers {
		timer.Stop()
		delete(svc.timers, phone)
	}
}

// TrackUser records the interaction; a failure here never blocks gameplay.
func (svc *TriviaService) TrackUser(phone string) {
	formatted := shared.FormatPhoneNumber(phone)
	isNew, err := svc.userRepo.Track(formatted)
	if err != nil {
		log.Error().Err(err).Str("phone", formatted).Msg("Error tracking trivia user")
		return
	}
	if isNew {
		log.Info().Str("phone", formatted).Msg("New trivia user tracked")
	}
}

// GetSession exposes live sessions to the join page handler.
func (svc *TriviaService) GetSession(ctx context.Context, gameID string) (*model.GameSession, error) {
	return svc.store.GetSession(ctx, gameID)
}

// HandleTextMessage is the text branch of the state machine.
func (svc *TriviaService) HandleTextMessage(ctx context.Context, msg *dto.InboundMessage, phone, phoneNumberID string) error {
	// Fresh input from the user supersedes any pending delayed question.
	svc.cancelPendingQuestion(phone)

	body := strings.TrimSpace(msg.Text.Body)
	lower := strings.ToLower(body)

	if strings.HasPrefix(lower, "join ") {
		parts := strings.Fields(body)
		if len(parts) >= 2 {
			return svc.handleJoin(ctx, parts[1], phone, phoneNumberID)
		}
	}

	uc, err := svc.store.GetContext(ctx, phone)
	if err != nil {
		return err
	}
	if uc == nil {
		uc = model.NewUserContext(phone)
	}

	switch lower {
	case "play":
		uc.State = shared.StateTopicSelection
		uc.GameID = ""
		if err := svc.saveContext(ctx, uc); err != nil {
			return err
		}
		return svc.sendWelcomeMessage(phone, phoneNumberID)
	case "help":
		return svc.sendHelpMessage(phone, phoneNumberID)
	case "quit":
		if err := svc.store.DeleteContext(ctx, phone); err != nil {
			return err
		}
		return svc.sender.SendMessage(phone,
			dto.TextMessage("Game ended. Send 'play' to start a new game."), phoneNumberID)
	}

	switch uc.State {
	case shared.StateQuestionCount:
		return svc.handleQuestionCountInput(ctx, body, uc, phoneNumberID)
	case shared.StateInGame:
		return svc.handleGameAnswer(ctx, lower, uc, phoneNumberID)
	default:
		return svc.sendDefaultMessage(phone, phoneNumberID)
	}
}

// HandleInteractiveMessage is the list/button-reply branch.
func (svc *TriviaService) HandleInteractiveMessage(ctx context.Context, msg *dto.InboundMessage, phone, phoneNumberID string) error {
	svc.cancelPendingQuestion(phone)

	replyID := msg.Interactive.ReplyID()
	if replyID == "" {
		log.Error().Str("phone", phone).Msg("No valid interactive reply found")
		return nil
	}

	switch {
	case strings.HasPrefix(replyID, "topic_"):
		return svc.handleTopicSelection(ctx, strings.TrimPrefix(replyID, "topic_"), phone, phoneNumberID)
	case replyID == "single_player":
		return svc.sender.SendMessage(phone,
			dto.TextMessage("How many questions would you like? (Enter a number between 5-20)"), phoneNumberID)
	case replyID == "multiplayer":
		return svc.startMultiplayerGame(ctx, phone, phoneNumberID)
	case strings.HasPrefix(replyID, "answer_"):
		uc, err := svc.store.GetContext(ctx, phone)
		if err != nil {
			return err
		}
		if uc == nil {
			uc = model.NewUserContext(phone)
		}
		return svc.handleGameAnswer(ctx, strings.TrimPrefix(replyID, "answer_"), uc, phoneNumberID)
	}

	return nil
}

func (svc *TriviaService) handleTopicSelection(ctx context.Context, topic, phone, phoneNumberID string) error {
	uc, err := svc.store.GetContext(ctx, phone)
	if err != nil {
		return err
	}
	if uc == nil {
		uc = model.NewUserContext(phone)
	}
	uc.Topic = topic
	uc.State = shared.StateQuestionCount
	if err := svc.saveContext(ctx, uc); err != nil {
		return err
	}

	return svc.sender.SendMessage(phone, dto.ButtonMessage(
		"*Game mode*\nChoose an option",
		dto.ButtonReply{ID: "single_player", Title: "Single Player"},
		dto.ButtonReply{ID: "multiplayer", Title: "Multiplayer"},
	), phoneNumberID)
}

func (svc *TriviaService) handleQuestionCountInput(ctx context.Context, input string, uc *model.UserContext, phoneNumberID string) error {
	count, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil || count < 5 || count > 20 {
		return svc.sender.SendMessage(uc.Phone,
			dto.TextMessage("Please enter a number between 5 and 20 for the number of questions."), phoneNumberID)
	}

	questions, err := svc.questions.GenerateWithRetry(ctx, uc.Topic, count)
	if err != nil {
		// State stays at QUESTION_COUNT so the user can retry by sending
		// a count again.
		log.Error().Err(err).Str("phone", uc.Phone).Str("topic", uc.Topic).Msg("Error starting trivia game")
		return svc.sender.SendMessage(uc.Phone,
			dto.TextMessage("Sorry, we encountered an error starting the game. Please try again."), phoneNumberID)
	}

	ShuffleQuestions(questions)

	uc.QuestionCount = count
	uc.Questions = questions
	uc.CurrentQuestionIndex = 0
	uc.Score = 0
	uc.State = shared.StateInGame
	if err := svc.saveContext(ctx, uc); err != nil {
		return err
	}

	gamesActive.Inc()
	return svc.sendQuestion(uc.Phone, phoneNumberID, &questions[0], 1, len(questions))
}

func (svc *TriviaService) handleGameAnswer(ctx context.Context, answer string, uc *model.UserContext, phoneNumberID string) error {
	if uc.State != shared.StateInGame {
		return svc.sendDefaultMessage(uc.Phone, phoneNumberID)
	}

	if uc.GameID != "" {
		return svc.handleMultiplayerAnswer(ctx, answer, uc, phoneNumberID)
	}
	return svc.handleSinglePlayerAnswer(ctx, answer, uc, phoneNumberID)
}

func (svc *TriviaService) handleSinglePlayerAnswer(ctx context.Context, answer string, uc *model.UserContext, phoneNumberID string) error {
	if uc.CurrentQuestionIndex >= len(uc.Questions) {
		return svc.sendDefaultMessage(uc.Phone, phoneNumberID)
	}
	question := uc.Questions[uc.CurrentQuestionIndex]

	selected, ok := answerIndex[strings.TrimSpace(strings.ToLower(answer))]
	if !ok {
		return svc.sender.SendMessage(uc.Phone,
			dto.TextMessage("Please select a valid answer option (A, B, or C)."), phoneNumberID)
	}

	points := 0
	correct := selected == question.CorrectAnswerIndex
	if correct {
		points = shared.PointsForDifficulty(question.Difficulty)
		uc.Score += points
	}

	if err := svc.sender.SendMessage(uc.Phone,
		dto.TextMessage(feedbackMessage(correct, points, &question)), phoneNumberID); err != nil {
		return err
	}

	uc.CurrentQuestionIndex++

	if uc.CurrentQuestionIndex < len(uc.Questions) {
		if err := svc.saveContext(ctx, uc); err != nil {
			return err
		}
		svc.scheduleNextQuestion(uc.Phone, phoneNumberID)
		return nil
	}

	uc.State = shared.StateGameOver
	totalPossible := model.MaxScore(uc.Questions)
	final := fmt.Sprintf("Game Over! Your final score is %d/%d\n", uc.Score, totalPossible)
	if uc.Score >= len(uc.Questions)*20 {
		final += "🏆 Achievement Unlocked: Trivia Master!\n"
	}
	final += "Type 'play' to start a new game."

	if err := svc.saveContext(ctx, uc); err != nil {
		return err
	}
	gamesActive.Dec()

	return svc.sender.SendMessage(uc.Phone, dto.TextMessage(final), phoneNumberID)
}

func (svc *TriviaService) handleMultiplayerAnswer(ctx context.Context, answer string, uc *model.UserContext, phoneNumberID string) error {
	phone := uc.Phone
	session, err := svc.store.GetSession(ctx, uc.GameID)
	if err != nil {
		return err
	}
	if session == nil {
		return svc.sender.SendMessage(phone, dto.TextMessage("Game session not found."), phoneNumberID)
	}

	if session.CurrentTurn != "" && session.CurrentTurn != phone {
		return svc.sender.SendMessage(phone, dto.TextMessage("It's not your turn yet."), phoneNumberID)
	}

	selected, ok := answerIndex[strings.TrimSpace(strings.ToLower(answer))]
	if !ok {
		return svc.sender.SendMessage(phone,
			dto.TextMessage("Please select a valid answer option (A, B, or C)."), phoneNumberID)
	}

	question := session.Questions[session.CurrentQuestionIndex]
	points := 0
	correct := selected == question.CorrectAnswerIndex
	if correct {
		points = shared.PointsForDifficulty(question.Difficulty)
		session.Scores[phone] += points
	}

	if err := svc.sender.SendMessage(phone,
		dto.TextMessage(feedbackMessage(correct, points, &question)), phoneNumberID); err != nil {
		return err
	}

	// The question index advances only once both players have answered:
	// host answers first, guest's answer closes the round.
	if session.HostPlayer == phone {
		session.CurrentTurn = session.GuestPlayer
	} else {
		session.CurrentTurn = session.HostPlayer
		session.CurrentQuestionIndex++
	}

	if session.CurrentQuestionIndex >= len(session.Questions) {
		return svc.finishMultiplayerGame(ctx, session, phoneNumberID)
	}

	if err := svc.store.SaveSession(ctx, session); err != nil {
		return err
	}

	if err := svc.sendQuestion(session.CurrentTurn, phoneNumberID,
		&session.Questions[session.CurrentQuestionIndex],
		session.CurrentQuestionIndex+1, len(session.Questions)); err != nil {
		return err
	}
	return svc.sender.SendMessage(phone,
		dto.TextMessage("Waiting for your opponent to answer..."), phoneNumberID)
}

func (svc *TriviaService) finishMultiplayerGame(ctx context.Context, session *model.GameSession, phoneNumberID string) error {
	session.Status = shared.SessionCompleted
	hostScore := session.Scores[session.HostPlayer]
	guestScore := session.Scores[session.GuestPlayer]

	if err := svc.store.SaveSession(ctx, session); err != nil {
		return err
	}
	if err := svc.gameRepo.Complete(session.GameID, hostScore, guestScore); err != nil {
		log.Error().Err(err).Str("game_id", session.GameID).Msg("Failed to persist game result")
	}
	gamesActive.Dec()

	final := fmt.Sprintf("Game Over!\nFinal Scores:\nHost: %d\nGuest: %d\nType 'play' to start a new game.",
		hostScore, guestScore)

	for _, player := range []string{session.HostPlayer, session.GuestPlayer} {
		if err := svc.sender.SendMessage(player, dto.TextMessage(final), phoneNumberID); err != nil {
			log.Error().Err(err).Str("phone", player).Msg("Failed to send final score")
		}

		uc, err := svc.store.GetContext(ctx, player)
		if err != nil || uc == nil {
			continue
		}
		uc.State = shared.StateGameOver
		uc.GameID = ""
		if err := svc.saveContext(ctx, uc); err != nil {
			log.Error().Err(err).Str("phone", player).Msg("Failed to reset context after game")
		}
	}

	return nil
}

func (svc *TriviaService) startMultiplayerGame(ctx context.Context, phone, phoneNumberID string) error {
	uc, err := svc.store.GetContext(ctx, phone)
	if err != nil {
		return err
	}
	if uc == nil || uc.Topic == "" {
		return svc.sendDefaultMessage(phone, phoneNumberID)
	}

	questions, err := svc.questions.GenerateWithRetry(ctx, uc.Topic, multiplayerQuestionCount)
	if err != nil {
		log.Error().Err(err).Str("phone", phone).Msg("Error starting multiplayer game")
		return svc.sender.SendMessage(phone,
			dto.TextMessage("Sorry, we encountered an error starting the game. Please try again."), phoneNumberID)
	}

	gameID := uuid.New().String()
	session := model.NewGameSession(gameID, phone)
	session.Topic = uc.Topic
	session.QuestionCount = multiplayerQuestionCount
	session.Questions = questions
	session.Scores[phone] = 0
	if err := svc.store.SaveSession(ctx, session); err != nil {
		return err
	}

	if err := svc.gameRepo.Create(&model.GameRecord{
		GameID:     gameID,
		HostPlayer: phone,
		Topic:      uc.Topic,
		Status:     shared.SessionWaiting,
	}); err != nil {
		log.Error().Err(err).Str("game_id", gameID).Msg("Failed to persist game record")
	}

	uc.State = shared.StateWaitingForOpponent
	uc.GameID = gameID
	uc.Questions = questions
	uc.CurrentQuestionIndex = 0
	uc.Score = 0
	if err := svc.saveContext(ctx, uc); err != nil {
		return err
	}

	gameLink := fmt.Sprintf("%s/join/%s", svc.joinBaseURL, gameID)
	return svc.sender.SendMessage(phone,
		dto.TextMessage("Share this link with your opponent to join the game: "+gameLink), phoneNumberID)
}

func (svc *TriviaService) handleJoin(ctx context.Context, gameID, phone, phoneNumberID string) error {
	session, err := svc.store.GetSession(ctx, gameID)
	if err != nil {
		return err
	}
	if session == nil {
		return svc.sender.SendMessage(phone,
			dto.TextMessage("Game session not found. Please check the link and try again."), phoneNumberID)
	}
	if session.GuestPlayer != "" {
		return svc.sender.SendMessage(phone,
			dto.TextMessage("This game session already has a guest player."), phoneNumberID)
	}
	if session.HostPlayer == phone {
		return svc.sender.SendMessage(phone,
			dto.TextMessage("You are the host of this game. Share the link with an opponent."), phoneNumberID)
	}

	session.GuestPlayer = phone
	session.Scores[phone] = 0
	session.CurrentTurn = session.HostPlayer
	session.Status = shared.SessionInProgress
	if err := svc.store.SaveSession(ctx, session); err != nil {
		return err
	}
	if err := svc.gameRepo.SetGuest(gameID, phone); err != nil {
		log.Error().Err(err).Str("game_id", gameID).Msg("Failed to record guest player")
	}

	guestCtx := model.NewUserContext(phone)
	guestCtx.State = shared.StateInGame
	guestCtx.Topic = session.Topic
	guestCtx.Questions = session.Questions
	guestCtx.GameID = gameID
	existing, err := svc.store.GetContext(ctx, phone)
	if err == nil && existing != nil {
		guestCtx.Version = existing.Version
	}
	if err := svc.saveContext(ctx, guestCtx); err != nil {
		return err
	}

	hostCtx, err := svc.store.GetContext(ctx, session.HostPlayer)
	if err == nil && hostCtx != nil {
		hostCtx.State = shared.StateInGame
		hostCtx.GameID = gameID
		if err := svc.saveContext(ctx, hostCtx); err != nil {
			return err
		}
	}

	gamesActive.Inc()

	if err := svc.sender.SendMessage(phone,
		dto.TextMessage("You've joined the game! Wait for your turn."), phoneNumberID); err != nil {
		return err
	}
	if err := svc.sender.SendMessage(session.HostPlayer,
		dto.TextMessage("Your opponent has joined! It's your turn."), phoneNumberID); err != nil {
		return err
	}

	return svc.sendQuestion(session.HostPlayer, phoneNumberID, &session.Questions[0], 1, len(session.Questions))
}

// scheduleNextQuestion arms the single-player pacing delay. The timer is
// cancelled by any new inbound message from the same phone, so an abandoned
// session never mutates state behind the user's back.
func (svc *TriviaService) scheduleNextQuestion(phone, phoneNumberID string) {
	svc.timerMu.Lock()
	defer svc.timerMu.Unlock()

	if timer, ok := svc.timers[phone]; ok {
		timer.Stop()
	}

	svc.timers[phone] = time.AfterFunc(svc.nextDelay, func() {
		svc.timerMu.Lock()
		delete(svc.timers, phone)
		svc.timerMu.Unlock()

		ctx := context.Background()
		uc, err := svc.store.GetContext(ctx, phone)
		if err != nil || uc == nil {
			return
		}
		if uc.State != shared.StateInGame || uc.GameID != "" ||
			uc.CurrentQuestionIndex >= len(uc.Questions) {
			return
		}

		if err := svc.sendQuestion(phone, phoneNumberID,
			&uc.Questions[uc.CurrentQuestionIndex],
			uc.CurrentQuestionIndex+1, len(uc.Questions)); err != nil {
			log.Error().Err(err).Str("phone", phone).Msg("Failed to send next question")
		}
	})
}

func (svc *TriviaService) cancelPendingQuestion(phone string) {
	svc.timerMu.Lock()
	defer svc.timerMu.Unlock()
	if timer, ok := svc.timers[phone]; ok {
		timer.Stop()
		delete(svc.timers, phone)
	}
}

// saveContext retries once on a CAS conflict by replaying onto the fresh
// version; conversational updates are last-writer-wins per field set.
func (svc *TriviaService) saveContext(ctx context.Context, uc *model.UserContext) error {
	err := svc.store.SaveContext(ctx, uc)
	if err == ErrVersionConflict {
		fresh, getErr := svc.store.GetContext(ctx, uc.Phone)
		if getErr != nil {
			return getErr
		}
		if fresh != nil {
			uc.Version = fresh.Version
		}
		err = svc.store.SaveContext(ctx, uc)
	}
	return err
}

func (svc *TriviaService) sendQuestion(phone, phoneNumberID string, question *model.Question, currentNumber, totalQuestions int) error {
	letters := []string{"A", "B", "C"}

	var b strings.Builder
	fmt.Fprintf(&b, "*Question* %d/%d:\n\n%s\n\n", currentNumber, totalQuestions, question.Question)
	for i, option := range question.Options {
		if i >= len(letters) {
			break
		}
		fmt.Fprintf(&b, "%s) %s\n", letters[i], option)
	}

	buttons := make([]dto.ButtonReply, 0, len(letters))
	for i := 0; i < len(question.Options) && i < len(letters); i++ {
		buttons = append(buttons, dto.ButtonReply{
			ID:    "answer_" + strings.ToLower(letters[i]),
			Title: letters[i],
		})
	}

	return svc.sender.SendMessage(phone, dto.ButtonMessage(strings.TrimRight(b.String(), "\n"), buttons...), phoneNumberID)
}

func (svc *TriviaService) sendWelcomeMessage(phone, phoneNumberID string) error {
	rows := make([]dto.SectionRow, 0, len(shared.Topics))
	descriptions := map[string]string{
		"Science":       "Explore scientific wonders",
		"History":       "Dive into the past",
		"Geography":     "Discover world facts",
		"Entertainment": "Test pop culture knowledge",
		"Sports":        "Score with sports trivia",
		"Technology":    "Innovate with tech trivia",
	}
	for _, topic := range shared.Topics {
		rows = append(rows, dto.SectionRow{
			ID:          "topic_" + strings.ToLower(topic),
			Title:       topic,
			Description: descriptions[topic],
		})
	}

	return svc.sender.SendMessage(phone, dto.ListMessage(
		"🎮 Welcome to Trivia trials!",
		"Test your knowledge!",
		"Select a topic",
		"View Topics",
		dto.ActionSection{Title: "Trivia Topics", Rows: rows},
	), phoneNumberID)
}

func (svc *TriviaService) sendHelpMessage(phone, phoneNumberID string) error {
	helpText := `🎮 *How to Play*

1️⃣ Type 'play' to begin a game.
2️⃣ Choose your preferred topic.
3️⃣ Select game mode (Single Player or Multiplayer).
4️⃣ Choose number of questions (5-20).
5️⃣ Answer questions by selecting options.

*Commands:*
• 'play' - Start new game
• 'help' - Show this help message
• 'quit' - Exit current game

*Game Modes:*
• Single Player - Play solo
• Multiplayer - Challenge a friend`

	return svc.sender.SendMessage(phone, dto.TextMessage(helpText), phoneNumberID)
}

func (svc *TriviaService) sendDefaultMessage(phone, phoneNumberID string) error {
	return svc.sender.SendMessage(phone,
		dto.TextMessage("*Start*\nSend 'Play' to start a new game or 'help' for instructions."), phoneNumberID)
}

// SendDefaultMessage is the fallback for unrecognized message types.
func (svc *TriviaService) SendDefaultMessage(phone, phoneNumberID string) error {
	return svc.sendDefaultMessage(phone, phoneNumberID)
}

func feedbackMessage(correct bool, points int, question *model.Question) string {
	if correct {
		return fmt.Sprintf("Correct!\nYou've earned %d points.", points)
	}
	return fmt.Sprintf("Incorrect!\nThe correct answer was %c. %s",
		'A'+rune(question.CorrectAnswerIndex), question.Explanation)
}
