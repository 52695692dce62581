package services

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	appContext "github.com/alphabatem/common/context"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog/log"

	"github.com/icupa/giomessaging/middleware"
	"github.com/icupa/giomessaging/services/handlers"
	"github.com/icupa/giomessaging/shared"
)

type HttpService struct {
	appContext.DefaultService

	jwtSvc       *JWTService
	redisSvc     *RedisService
	sessionSvc   *SessionService
	triviaSvc    *TriviaService
	orderSvc     *OrderService
	arbitrageSvc *ArbitrageService

	port int
	app  *fiber.App
}

const HTTP_SVC = "http_svc"

func (svc HttpService) Id() string {
	return HTTP_SVC
}

func (svc *HttpService) Configure(ctx *appContext.Context) error {
	if port := os.Getenv("HTTP_PORT"); port != "" {
		var err error
		if svc.port, err = strconv.Atoi(port); err != nil {
			return err
		}
	} else {
		svc.port = 8000
	}

	return svc.DefaultService.Configure(ctx)
}

func (svc *HttpService) Start() error {
	svc.jwtSvc = svc.Service(JWT_SVC).(*JWTService)
	svc.redisSvc = svc.Service(REDIS_SVC).(*RedisService)
	svc.sessionSvc = svc.Service(SESSION_SVC).(*SessionService)
	svc.triviaSvc = svc.Service(TRIVIA_SVC).(*TriviaService)
	svc.orderSvc = svc.Service(ORDER_SVC).(*OrderService)
	svc.arbitrageSvc = svc.Service(ARBITRAGE_SVC).(*ArbitrageService)

	svc.app = fiber.New(fiber.Config{
		JSONEncoder:           shared.JSONAPI.Marshal,
		JSONDecoder:           shared.JSONAPI.Unmarshal,
		ErrorHandler:          svc.handleError,
		DisableStartupMessage: true,
	})

	svc.app.Use(recover.New())
	svc.app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))
	svc.app.Use(HTTPMetricsMiddleware())

	webhookHandler := handlers.NewWebhookHandler(
		svc.triviaSvc, svc.orderSvc, svc.arbitrageSvc,
		svc.sessionSvc.Store(), DedupWindow, CountInboundMessage)
	gameHandler := handlers.NewGameHandler(svc.triviaSvc)
	orderHandler := handlers.NewOrderHandler(svc.orderSvc)
	arbitrageHandler := handlers.NewArbitrageHandler(svc.arbitrageSvc)
	adminHandler := handlers.NewAdminHandler(svc.jwtSvc, svc.orderSvc, svc.arbitrageSvc)

	svc.app.Get("/ping", svc.ping)

	svc.app.Get("/webhook", webhookHandler.Verify)
	svc.app.Post("/webhook", webhookHandler.Receive)
	svc.app.Get("/join/:gameId", gameHandler.JoinPage)

	api := svc.app.Group("/api",
		middleware.RateLimit(svc.redisSvc, "api_general", 1000, time.Hour))
	api.Post("/save-order", orderHandler.SaveOrder)
	api.Post("/send-order-confirmation", orderHandler.SendOrderConfirmation)
	api.Get("/arbitrage", arbitrageHandler.GetOpportunities)

	api.Post("/admin/login",
		middleware.RateLimit(svc.redisSvc, "admin_login", 10, 15*time.Minute),
		adminHandler.Login)

	admin := api.Group("/admin", middleware.RequireAdmin(svc.jwtSvc))
	admin.Get("/orders", adminHandler.ListOrders)
	admin.Post("/odds", adminHandler.UploadOdds)

	svc.app.Use(func(c *fiber.Ctx) error {
		return shared.ResponseNotFound(c)
	})

	log.Info().Int("port", svc.port).Msg("HTTP server started")
	return svc.app.Listen(fmt.Sprintf(":%v", svc.port))
}

func (svc *HttpService) Shutdown() {
	if svc.app != nil {
		_ = svc.app.Shutdown()
	}
}

// @Summary Ping
// @Description This endpoint checks the health of the service
// @Tags health
// @Accept  json
// @Produce json
// @Success 200 {object} shared.Response{data=string}
// @Router /ping [get]
func (svc *HttpService) ping(c *fiber.Ctx) error {
	c.Set("Cache-Control", "max-age=10")
	return shared.ResponseJSON(c, fiber.StatusOK, "Success", "pong")
}

func (svc *HttpService) handleError(c *fiber.Ctx, err error) error {
	if appErr, ok := shared.GetAppError(err); ok {
		return shared.ResponseJSON(c, appErr.StatusCode, appErr.Message, appErr.Data)
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return shared.ResponseJSON(c, fiberErr.Code, fiberErr.Message, nil)
	}

	log.Error().Err(err).Str("path", c.Path()).Msg("Unhandled request error")
	return shared.ResponseInternalError(c, err)
}
