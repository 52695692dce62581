package shared

const (
	AdminID = "admin_id"

	// Trivia conversational states.
	StateIdle               = "IDLE"
	StateTopicSelection     = "TOPIC_SELECTION"
	StateQuestionCount      = "QUESTION_COUNT"
	StateWaitingForOpponent = "WAITING_FOR_OPPONENT"
	StateInGame             = "IN_GAME"
	StateGameOver           = "GAME_OVER"

	// Multiplayer session status.
	SessionWaiting    = "waiting"
	SessionInProgress = "in-progress"
	SessionCompleted  = "completed"

	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

// OrderStage is the Nkundino funnel position. A closed set of values so a
// typo'd stage fails comparison instead of silently matching.
type OrderStage string

const (
	StageExpectingWelcome   OrderStage = "EXPECTING_WELCOME"
	StageSendTinMessage     OrderStage = "SEND_TIN_MESSAGE"
	StageExpectingTin       OrderStage = "EXPECTING_TIN"
	StageExpectingMobilePay OrderStage = "EXPECTING_MTN_AIRTEL"
)

// PointsForDifficulty returns the score value of a correct answer.
func PointsForDifficulty(difficulty string) int {
	switch difficulty {
	case DifficultyEasy:
		return 10
	case DifficultyMedium:
		return 20
	default:
		return 30
	}
}

var Topics = []string{
	"Science",
	"History",
	"Geography",
	"Entertainment",
	"Sports",
	"Technology",
}

var NkundinoKeywords = []string{"shop", "products", "nkundino", "gura", "haha"}

var NkundinoCategories = []string{
	"juice",
	"rice",
	"flour-and-composite-flour",
	"cooking-and-olive-oil",
	"bread-and-bakery-items",
	"vegetables",
	"fruits",
	"mayonaise-ketchup-mustard",
	"body-soaps",
	"lotion",
}
