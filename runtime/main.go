package main

import (
	"os"

	appContext "github.com/alphabatem/common/context"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/icupa/giomessaging/services"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("No .env file found, using environment")
	}

	configureLogging()

	var dbSvc appContext.Service = &services.SqliteService{}
	if os.Getenv("POSTGRES_DB") != "" {
		dbSvc = &services.PostgresService{}
	}

	ctx, err := appContext.NewCtx(
		dbSvc,
		&services.RedisService{},
		&services.JWTService{},
		&services.SessionService{},
		&services.WhatsAppService{},
		&services.QuestionService{},
		&services.CatalogService{},
		&services.TriviaService{},
		&services.OrderService{},
		&services.ArbitrageService{},
		&services.MonitoringService{},

		&services.HttpService{},
	)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build service context")
		return
	}

	if err := ctx.Run(); err != nil {
		log.Fatal().Err(err).Msg("Service context exited")
	}
}

func configureLogging() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	switch os.Getenv("LOG_LEVEL") {
	case "TRACE":
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
	case "DEBUG":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "WARN":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
