package model

import (
	"time"
)

// TriviaUser tracks every phone number that has ever messaged the trivia bot.
type TriviaUser struct {
	Phone            string    `json:"phone" gorm:"primaryKey"`
	FirstInteraction time.Time `json:"first_interaction"`
	LastInteraction  time.Time `json:"last_interaction"`
	MessageCount     int       `json:"message_count" gorm:"default:1"`
}

// GameRecord is the durable trace of a multiplayer game. The live session
// state lives in the session store; this row only records who played and how
// it ended.
type GameRecord struct {
	GameID      string    `json:"game_id" gorm:"primaryKey"`
	HostPlayer  string    `json:"host_player" gorm:"not null"`
	GuestPlayer string    `json:"guest_player"`
	Topic       string    `json:"topic"`
	Status      string    `json:"status" gorm:"default:waiting"` // waiting, in-progress, completed
	HostScore   int       `json:"host_score" gorm:"default:0"`
	GuestScore  int       `json:"guest_score" gorm:"default:0"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
