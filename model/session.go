package model

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/icupa/giomessaging/shared"
)

// Question is a generated trivia question. The correct answer's position is
// randomized at generation time and tracked by CorrectAnswerIndex.
type Question struct {
	Question           string   `json:"question"`
	Options            []string `json:"options"`
	CorrectAnswerIndex int      `json:"correctAnswerIndex"`
	Explanation        string   `json:"explanation"`
	Difficulty         string   `json:"difficulty"` // easy, medium, hard
	Subtopic           string   `json:"subtopic,omitempty"`
}

// MaxScore is the best possible total over a question set.
func MaxScore(questions []Question) int {
	total := 0
	for _, q := range questions {
		total += shared.PointsForDifficulty(q.Difficulty)
	}
	return total
}

// PendingOrder is the raw order captured from an inbound "order" webhook
// message, before location and catalog enrichment.
type PendingOrder struct {
	MessageID   string          `json:"message_id"`
	Phone       string          `json:"phone"`
	Receiver    string          `json:"receiver"`
	Items       []PendingItem   `json:"items"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

type PendingItem struct {
	ProductRetailerID string          `json:"product_retailer_id"`
	Quantity          int             `json:"quantity"`
	ItemPrice         decimal.Decimal `json:"item_price"`
	Currency          string          `json:"currency"`
}

// UserContext is the per-phone conversational record. It serves both bots:
// the trivia fields and the Nkundino funnel fields never overlap in practice
// because dispatch is keyword-routed before either bot touches the context.
type UserContext struct {
	Phone                string     `json:"phone"`
	State                string     `json:"state"`
	Topic                string     `json:"topic,omitempty"`
	QuestionCount        int        `json:"question_count,omitempty"`
	Questions            []Question `json:"questions,omitempty"`
	CurrentQuestionIndex int        `json:"current_question_index"`
	Score                int        `json:"score"`
	GameID               string     `json:"game_id,omitempty"`

	Stage        shared.OrderStage `json:"stage,omitempty"`
	Order        *PendingOrder     `json:"order,omitempty"`
	OrderRef     string            `json:"order_ref,omitempty"` // persisted Order.OrderID
	TIN          string            `json:"tin,omitempty"`
	Currency     string            `json:"currency,omitempty"`
	VendorNumber string            `json:"vendor_number,omitempty"`

	// Version backs compare-and-swap in the session store. Zero means the
	// context has never been stored.
	Version int64 `json:"version"`
}

func NewUserContext(phone string) *UserContext {
	return &UserContext{
		Phone: phone,
		State: shared.StateIdle,
	}
}

// GameSession is the shared state of one multiplayer game.
type GameSession struct {
	GameID               string         `json:"game_id"`
	HostPlayer           string         `json:"host_player"`
	GuestPlayer          string         `json:"guest_player,omitempty"`
	Topic                string         `json:"topic,omitempty"`
	QuestionCount        int            `json:"question_count"`
	Questions            []Question     `json:"questions,omitempty"`
	CurrentQuestionIndex int            `json:"current_question_index"`
	Scores               map[string]int `json:"scores"`
	Status               string         `json:"status"` // waiting, in-progress, completed
	CurrentTurn          string         `json:"current_turn,omitempty"`
	CreatedAt            time.Time      `json:"created_at"`

	Version int64 `json:"version"`
}

func NewGameSession(gameID, hostPlayer string) *GameSession {
	return &GameSession{
		GameID:     gameID,
		HostPlayer: hostPlayer,
		Scores:     map[string]int{},
		Status:     shared.SessionWaiting,
		CreatedAt:  time.Now(),
	}
}

// MarshalItems renders order items for the Order.Products JSON column.
func MarshalItems(items interface{}) json.RawMessage {
	b, err := json.Marshal(items)
	if err != nil {
		return json.RawMessage("[]")
	}
	return b
}
