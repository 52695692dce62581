package dto

// UploadOddsRequest replaces the stored odds set. Odds must be decimal
// (European) format; values at or below 1.0 are impossible decimal odds and
// American-style inputs like -110 fail the same check.
type UploadOddsRequest struct {
	Odds []OddsEntry `json:"odds" validate:"required,min=1,dive"`
}

func (r UploadOddsRequest) Validate() error {
	return GetValidator().Struct(r)
}

type OddsEntry struct {
	Date     string  `json:"date"`
	Teams    string  `json:"teams" validate:"required"`
	Sport    string  `json:"sport"`
	HomeOdds float64 `json:"home_odds" validate:"required,gt=1"`
	AwayOdds float64 `json:"away_odds" validate:"required,gt=1"`
}

// ArbitrageOpportunity is one fixture whose two-way implied probabilities
// sum below 1 (or within 5% of it, when Promising is set).
type ArbitrageOpportunity struct {
	Date               string  `json:"date,omitempty"`
	Teams              string  `json:"teams"`
	Sport              string  `json:"sport,omitempty"`
	HomeOdds           float64 `json:"home_odds"`
	AwayOdds           float64 `json:"away_odds"`
	ImpliedProbability string  `json:"implied_probability"`
	HomeStake          string  `json:"home_stake"`
	AwayStake          string  `json:"away_stake"`
	GuaranteedReturn   string  `json:"guaranteed_return"`
	Profit             string  `json:"profit"`
	ProfitPercentage   string  `json:"profit_percentage"`
	Promising          bool    `json:"promising,omitempty"`
}
