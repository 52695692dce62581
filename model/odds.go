package model

import "time"

// OddsRecord is one fixture's two-way moneyline in decimal odds. American
// odds are rejected at the API boundary; only decimal odds are stored.
type OddsRecord struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	Date      string    `json:"date"`
	Teams     string    `json:"teams" gorm:"not null"`
	Sport     string    `json:"sport"`
	HomeOdds  float64   `json:"home_odds" gorm:"not null"`
	AwayOdds  float64   `json:"away_odds" gorm:"not null"`
	CreatedAt time.Time `json:"created_at"`
}
