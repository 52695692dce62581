package services

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/alphabatem/common/context"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/icupa/giomessaging/model"
	"github.com/icupa/giomessaging/shared"
)

type PostgresService struct {
	context.DefaultService
	db *gorm.DB

	host     string
	port     string
	username string
	password string
	database string
	sslMode  string
}

const POSTGRES_SVC = "postgres_svc"

// Id returns Service ID
func (ds PostgresService) Id() string {
	return POSTGRES_SVC
}

// Db Access to raw PostgresService db
func (ds PostgresService) Db() *gorm.DB {
	return ds.db
}

// Configure the service
func (ds *PostgresService) Configure(ctx *context.Context) error {
	ds.host = os.Getenv("POSTGRES_HOST")
	if ds.host == "" {
		ds.host = "localhost"
	}
	ds.port = os.Getenv("POSTGRES_PORT")
	if ds.port == "" {
		ds.port = "5432"
	}
	ds.username = os.Getenv("POSTGRES_USER")
	ds.password = os.Getenv("POSTGRES_PASS")
	ds.database = os.Getenv("POSTGRES_DB")
	ds.sslMode = os.Getenv("POSTGRES_SSL_MODE")
	if ds.sslMode == "" {
		ds.sslMode = "disable"
	}

	return ds.DefaultService.Configure(ctx)
}

// Start the service and open connection to the database
// Migrate any tables that have changed since last runtime
func (ds *PostgresService) Start() (err error) {
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		ds.host, ds.port, ds.username, ds.password, ds.database, ds.sslMode)

	ds.db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Error),
	})
	if err != nil {
		return err
	}

	err = ds.db.AutoMigrate(Models()...)
	if err != nil {
		log.Error().Err(err).Msg("Failed to migrate database")
		return err
	}

	log.Info().Str("database", ds.database).Msg("Database connected and migrated")
	return nil
}

func (ds *PostgresService) Shutdown() {
}

// Models lists every persisted record for automigration.
func Models() []interface{} {
	return []interface{}{
		&model.TriviaUser{},
		&model.GameRecord{},
		&model.Order{},
		&model.AdminPhone{},
		&model.Product{},
		&model.OddsRecord{},
	}
}

// DatabaseFor resolves the SQL service a consumer should use: Postgres when
// POSTGRES_DB is configured, the SQLite stand-in otherwise. The runtime
// registers the matching service using the same rule.
func DatabaseFor(lookup func(id string) context.Service) *gorm.DB {
	if os.Getenv("POSTGRES_DB") != "" {
		return lookup(POSTGRES_SVC).(*PostgresService).Db()
	}
	return lookup(SQLITE_SVC).(*SqliteService).Db()
}

// HandleError maps gorm errors onto the AppError taxonomy.
func (ds *PostgresService) HandleError(err error) error {
	if err == nil {
		return nil
	}

	var statusCode int
	var errorType string

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		statusCode = http.StatusNotFound
		errorType = "NOT_FOUND"
	case errors.Is(err, gorm.ErrDuplicatedKey):
		statusCode = http.StatusConflict
		errorType = "CONFLICT"
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		statusCode = http.StatusBadRequest
		errorType = "FOREIGN_KEY_VIOLATION"
	case errors.Is(err, gorm.ErrInvalidTransaction):
		statusCode = http.StatusInternalServerError
		errorType = "TRANSACTION_ERROR"
	default:
		if strings.Contains(err.Error(), "duplicate key value") {
			statusCode = http.StatusConflict
			errorType = "UNIQUE_CONSTRAINT"
		} else {
			statusCode = http.StatusInternalServerError
			errorType = "INTERNAL_ERROR"
		}
	}

	logEntry := log.With().
		Int("status_code", statusCode).
		Str("error_type", errorType).
		Err(err).
		Logger()

	if statusCode >= 500 {
		logEntry.Error().Msg("Database error occurred")
	} else {
		logEntry.Warn().Msg("Database operation failed")
	}

	return shared.NewAppError(statusCode, err, errorType)
}
