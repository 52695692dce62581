package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	appContext "github.com/alphabatem/common/context"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/icupa/giomessaging/dto"
	"github.com/icupa/giomessaging/model"
	"github.com/icupa/giomessaging/services/repositories"
)

// ArbitrageService finds two-way betting arbitrage across stored fixtures:
// when the implied probabilities of both outcomes sum below 1, splitting the
// stake proportionally guarantees a profit whichever side wins.
type ArbitrageService struct {
	appContext.DefaultService

	sender   MessageSender
	redisSvc *RedisService
	oddsRepo *repositories.OddsRepository

	refreshInterval time.Duration
	closed          chan struct{}
}

const ARBITRAGE_SVC = "arbitrage_svc"

const arbitrageCacheKey = "arbitrage:opportunities"

// PromisingThreshold marks fixtures within 5% of true arbitrage.
var PromisingThreshold = decimal.NewFromFloat(1.05)

// DefaultTotalStake is the reference bankroll for stake splits.
var DefaultTotalStake = decimal.NewFromInt(100)

func (svc ArbitrageService) Id() string {
	return ARBITRAGE_SVC
}

func (svc *ArbitrageService) Configure(ctx *appContext.Context) error {
	svc.refreshInterval = 2 * time.Hour
	svc.closed = make(chan struct{})
	return svc.DefaultService.Configure(ctx)
}

func (svc *ArbitrageService) Start() error {
	svc.sender = svc.Service(WHATSAPP_SVC).(*WhatsAppService)
	svc.redisSvc = svc.Service(REDIS_SVC).(*RedisService)
	svc.oddsRepo = repositories.NewOddsRepository(DatabaseFor(svc.Service))

	go svc.refreshLoop()
	return nil
}

func (svc *ArbitrageService) Shutdown() {
	close(svc.closed)
}

func (svc *ArbitrageService) refreshLoop() {
	ticker := time.NewTicker(svc.refreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if _, err := svc.Refresh(context.Background()); err != nil {
				log.Error().Err(err).Msg("Scheduled arbitrage refresh failed")
			}
		case <-svc.closed:
			return
		}
	}
}

// UploadOdds replaces the stored fixture set and recomputes opportunities.
func (svc *ArbitrageService) UploadOdds(ctx context.Context, req *dto.UploadOddsRequest) (int, error) {
	records := make([]model.OddsRecord, 0, len(req.Odds))
	for _, entry := range req.Odds {
		records = append(records, model.OddsRecord{
			ID:       uuid.New().String(),
			Date:     entry.Date,
			Teams:    entry.Teams,
			Sport:    entry.Sport,
			HomeOdds: entry.HomeOdds,
			AwayOdds: entry.AwayOdds,
		})
	}
	if err := svc.oddsRepo.Replace(records); err != nil {
		return 0, err
	}
	if _, err := svc.Refresh(ctx); err != nil {
		log.Warn().Err(err).Msg("Arbitrage recompute after upload failed")
	}
	return len(records), nil
}

// Opportunities serves from cache, recomputing when the cache is cold.
func (svc *ArbitrageService) Opportunities(ctx context.Context) ([]dto.ArbitrageOpportunity, error) {
	if svc.redisSvc != nil {
		var cached []dto.ArbitrageOpportunity
		if err := svc.redisSvc.GetJSON(ctx, arbitrageCacheKey, &cached); err == nil && cached != nil {
			return cached, nil
		}
	}
	return svc.Refresh(ctx)
}

// Refresh recomputes opportunities from the stored odds and caches them.
func (svc *ArbitrageService) Refresh(ctx context.Context) ([]dto.ArbitrageOpportunity, error) {
	records, err := svc.oddsRepo.List()
	if err != nil {
		return nil, err
	}

	opportunities := FindOpportunities(records, DefaultTotalStake)

	if svc.redisSvc != nil {
		if err := svc.redisSvc.Set(ctx, arbitrageCacheKey, opportunities, svc.refreshInterval); err != nil {
			log.Warn().Err(err).Msg("Failed to cache arbitrage opportunities")
		}
	}

	log.Info().
		Int("fixtures", len(records)).
		Int("opportunities", len(opportunities)).
		Msg("Arbitrage data updated")
	return opportunities, nil
}

// HandleTextMessage answers the bet keywords on the webhook.
func (svc *ArbitrageService) HandleTextMessage(ctx context.Context, text, phone, phoneNumberID string) error {
	lower := strings.ToLower(strings.TrimSpace(text))

	var (
		opportunities []dto.ArbitrageOpportunity
		err           error
	)
	switch lower {
	case "bet update":
		opportunities, err = svc.Refresh(ctx)
	case "bet":
		opportunities, err = svc.Opportunities(ctx)
	default:
		return nil
	}
	if err != nil {
		log.Error().Err(err).Str("phone", phone).Msg("Failed to load arbitrage data")
		return svc.sender.SendMessage(phone,
			dto.TextMessage("Sorry, betting data is unavailable right now. Please try again later."), phoneNumberID)
	}

	return svc.sender.SendMessage(phone,
		dto.TextMessage(FormatArbitrageMessage(opportunities, time.Now())), phoneNumberID)
}

// FindOpportunities evaluates every fixture. True arbitrage (probability sum
// below 1) is always included; when none exists, fixtures within the
// promising threshold are returned instead, flagged as such.
func FindOpportunities(records []model.OddsRecord, totalStake decimal.Decimal) []dto.ArbitrageOpportunity {
	var arbitrage, promising []dto.ArbitrageOpportunity

	for _, record := range records {
		if record.HomeOdds <= 1 || record.AwayOdds <= 1 {
			continue
		}

		homeOdds := decimal.NewFromFloat(record.HomeOdds)
		awayOdds := decimal.NewFromFloat(record.AwayOdds)
		homeProb := decimal.NewFromInt(1).DivRound(homeOdds, 10)
		awayProb := decimal.NewFromInt(1).DivRound(awayOdds, 10)
		totalProb := homeProb.Add(awayProb)

		isArbitrage := totalProb.LessThan(decimal.NewFromInt(1))
		if !isArbitrage && !totalProb.LessThan(PromisingThreshold) {
			continue
		}

		homeStake := totalStake.Mul(homeProb).DivRound(totalProb, 10)
		awayStake := totalStake.Mul(awayProb).DivRound(totalProb, 10)
		guaranteedReturn := homeOdds.Mul(homeStake)
		profit := guaranteedReturn.Sub(totalStake)
		profitPct := profit.DivRound(totalStake, 10).Mul(decimal.NewFromInt(100))

		opportunity := dto.ArbitrageOpportunity{
			Date:               record.Date,
			Teams:              record.Teams,
			Sport:              record.Sport,
			HomeOdds:           record.HomeOdds,
			AwayOdds:           record.AwayOdds,
			ImpliedProbability: totalProb.Round(4).String(),
			HomeStake:          homeStake.Round(2).String(),
			AwayStake:          awayStake.Round(2).String(),
			GuaranteedReturn:   guaranteedReturn.Round(2).String(),
			Profit:             profit.Round(2).String(),
			ProfitPercentage:   profitPct.Round(2).String(),
			Promising:          !isArbitrage,
		}
		if isArbitrage {
			arbitrage = append(arbitrage, opportunity)
		} else {
			promising = append(promising, opportunity)
		}
	}

	result := arbitrage
	if len(result) == 0 {
		result = promising
	}
	sort.SliceStable(result, func(i, j int) bool {
		pi, _ := decimal.NewFromString(result[i].ProfitPercentage)
		pj, _ := decimal.NewFromString(result[j].ProfitPercentage)
		return pi.GreaterThan(pj)
	})
	return result
}

// FormatArbitrageMessage renders the top opportunities for WhatsApp.
func FormatArbitrageMessage(opportunities []dto.ArbitrageOpportunity, updatedAt time.Time) string {
	if len(opportunities) == 0 {
		return "No arbitrage betting opportunities found at the moment. Check back later."
	}

	var b strings.Builder
	b.WriteString("*🔍 BETTING ARBITRAGE OPPORTUNITIES*\n\n")

	limit := len(opportunities)
	if limit > 5 {
		limit = 5
	}
	for i := 0; i < limit; i++ {
		opp := opportunities[i]
		fmt.Fprintf(&b, "*%d. %s*\n", i+1, opp.Teams)
		if opp.Date != "" {
			fmt.Fprintf(&b, "📅 Date: %s\n", opp.Date)
		}
		fmt.Fprintf(&b, "📊 Odds: Home %.2f, Away %.2f\n", opp.HomeOdds, opp.AwayOdds)
		fmt.Fprintf(&b, "💰 Optimal Stakes: Home $%s, Away $%s\n", opp.HomeStake, opp.AwayStake)
		if opp.Promising {
			fmt.Fprintf(&b, "⚠️ Near-arbitrage: implied probability %s\n\n", opp.ImpliedProbability)
		} else {
			fmt.Fprintf(&b, "✅ Guaranteed Profit: $%s (%s%%)\n\n", opp.Profit, opp.ProfitPercentage)
		}
	}

	fmt.Fprintf(&b, "_Updated: %s_\n", updatedAt.Format("2006-01-02 15:04"))
	b.WriteString("Type 'bet update' to force refresh the data.")
	return b.String()
}
