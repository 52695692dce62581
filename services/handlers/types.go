package handlers

import (
	"context"
	"time"

	"github.com/icupa/giomessaging/dto"
	"github.com/icupa/giomessaging/model"
)

type TriviaServiceInterface interface {
	HandleTextMessage(ctx context.Context, msg *dto.InboundMessage, phone, phoneNumberID string) error
	HandleInteractiveMessage(ctx context.Context, msg *dto.InboundMessage, phone, phoneNumberID string) error
	SendDefaultMessage(phone, phoneNumberID string) error
	TrackUser(phone string)
	GetSession(ctx context.Context, gameID string) (*model.GameSession, error)
}

type OrderServiceInterface interface {
	HandleTextMessage(ctx context.Context, msg *dto.InboundMessage, phone, phoneNumberID string) error
	HandleInteractiveMessage(ctx context.Context, msg *dto.InboundMessage, phone, phoneNumberID string) error
	HandleOrder(ctx context.Context, msg *dto.InboundMessage, displayPhoneNumber, phoneNumberID string) error
	HandleLocation(ctx context.Context, location *dto.InboundLocation, phone, phoneNumberID string) error
	SaveOrder(req *dto.SaveOrderRequest) (*model.Order, error)
	SendOrderConfirmation(orderID string) error
	ListOrders(limit int) ([]model.Order, error)
}

type ArbitrageServiceInterface interface {
	HandleTextMessage(ctx context.Context, text, phone, phoneNumberID string) error
	Opportunities(ctx context.Context) ([]dto.ArbitrageOpportunity, error)
	UploadOdds(ctx context.Context, req *dto.UploadOddsRequest) (int, error)
}

type JWTServiceInterface interface {
	GenerateTokenPair(adminID string) (*dto.TokenPair, error)
}

// ContextStore is the slice of the session store the webhook dispatcher
// needs: redelivery suppression and funnel-stage lookups.
type ContextStore interface {
	GetContext(ctx context.Context, phone string) (*model.UserContext, error)
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)
}
