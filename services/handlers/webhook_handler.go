package handlers

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/icupa/giomessaging/dto"
	"github.com/icupa/giomessaging/shared"
)

// WebhookHandler owns the single WhatsApp webhook both bots share. Inbound
// messages are routed by keyword and reply-id prefix: shop keywords and cart
// interactions go to the grocery funnel, bet keywords to arbitrage, and
// everything else to trivia.
type WebhookHandler struct {
	triviaSvc    TriviaServiceInterface
	orderSvc     OrderServiceInterface
	arbitrageSvc ArbitrageServiceInterface
	store        ContextStore

	verifyToken  string
	dedupWindow  time.Duration
	countMessage func(bot, messageType string)
}

func NewWebhookHandler(triviaSvc TriviaServiceInterface, orderSvc OrderServiceInterface,
	arbitrageSvc ArbitrageServiceInterface, store ContextStore,
	dedupWindow time.Duration, countMessage func(bot, messageType string)) *WebhookHandler {
	if countMessage == nil {
		countMessage = func(string, string) {}
	}
	return &WebhookHandler{
		triviaSvc:    triviaSvc,
		orderSvc:     orderSvc,
		arbitrageSvc: arbitrageSvc,
		store:        store,
		verifyToken:  os.Getenv("VERIFY_TOKEN"),
		dedupWindow:  dedupWindow,
		countMessage: countMessage,
	}
}

// Verify answers the platform's subscription handshake.
func (h *WebhookHandler) Verify(c *fiber.Ctx) error {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode == "subscribe" && token == h.verifyToken && h.verifyToken != "" {
		log.Info().Msg("Webhook verified successfully")
		return c.Status(fiber.StatusOK).SendString(challenge)
	}
	return c.Status(fiber.StatusForbidden).SendString("Verification failed!")
}

// Receive ingests one webhook delivery. The platform retries on non-200, so
// handler failures are logged and acknowledged rather than surfaced.
func (h *WebhookHandler) Receive(c *fiber.Ctx) error {
	var envelope dto.WebhookEnvelope
	if err := c.BodyParser(&envelope); err != nil {
		return shared.ResponseBadRequest(c, "Invalid payload")
	}
	if envelope.Object != "whatsapp_business_account" {
		return c.SendStatus(fiber.StatusOK)
	}
	if len(envelope.Entry) == 0 || len(envelope.Entry[0].Changes) == 0 {
		return shared.ResponseBadRequest(c, "Invalid payload")
	}

	value := envelope.Entry[0].Changes[0].Value
	if len(value.Messages) == 0 || value.Metadata.PhoneNumberID == "" {
		// Status callbacks arrive on the same webhook; nothing to do.
		return c.SendStatus(fiber.StatusOK)
	}

	msg := value.Messages[0]
	phone := msg.From
	phoneNumberID := value.Metadata.PhoneNumberID
	ctx := context.Background()

	dedupKey := phoneNumberID + "-" + msg.ID
	first, err := h.store.MarkProcessed(ctx, dedupKey, h.dedupWindow)
	if err != nil {
		log.Error().Err(err).Str("key", dedupKey).Msg("Dedup check failed")
	} else if !first {
		log.Debug().Str("key", dedupKey).Msg("Duplicate message ignored")
		return c.SendStatus(fiber.StatusOK)
	}

	h.triviaSvc.TrackUser(phone)

	if err := h.dispatch(ctx, &msg, &value, phone, phoneNumberID); err != nil {
		log.Error().Err(err).
			Str("phone", phone).
			Str("type", msg.Type).
			Msg("Error processing message")
	}
	return c.SendStatus(fiber.StatusOK)
}

func (h *WebhookHandler) dispatch(ctx context.Context, msg *dto.InboundMessage, value *dto.WebhookValue, phone, phoneNumberID string) error {
	switch msg.Type {
	case "text":
		return h.dispatchText(ctx, msg, phone, phoneNumberID)
	case "interactive":
		return h.dispatchInteractive(ctx, msg, phone, phoneNumberID)
	case "order":
		h.countMessage("nkundino", "order")
		return h.orderSvc.HandleOrder(ctx, msg, value.Metadata.DisplayPhoneNumber, phoneNumberID)
	case "location":
		h.countMessage("nkundino", "location")
		return h.orderSvc.HandleLocation(ctx, msg.Location, phone, phoneNumberID)
	default:
		log.Debug().Str("type", msg.Type).Msg("Unrecognized message type")
		return h.triviaSvc.SendDefaultMessage(phone, phoneNumberID)
	}
}

func (h *WebhookHandler) dispatchText(ctx context.Context, msg *dto.InboundMessage, phone, phoneNumberID string) error {
	if msg.Text == nil {
		return nil
	}
	lower := strings.ToLower(strings.TrimSpace(msg.Text.Body))

	if lower == "bet" || lower == "bet update" {
		h.countMessage("arbitrage", "text")
		return h.arbitrageSvc.HandleTextMessage(ctx, lower, phone, phoneNumberID)
	}

	if isShopKeyword(lower) || lower == "clear" || lower == "adminclear" {
		h.countMessage("nkundino", "text")
		return h.orderSvc.HandleTextMessage(ctx, msg, phone, phoneNumberID)
	}

	// A user mid-funnel typing free text is providing their TIN.
	if uc, err := h.store.GetContext(ctx, phone); err == nil && uc != nil &&
		uc.Stage == shared.StageExpectingTin {
		h.countMessage("nkundino", "text")
		return h.orderSvc.HandleTextMessage(ctx, msg, phone, phoneNumberID)
	}

	h.countMessage("trivia", "text")
	return h.triviaSvc.HandleTextMessage(ctx, msg, phone, phoneNumberID)
}

func (h *WebhookHandler) dispatchInteractive(ctx context.Context, msg *dto.InboundMessage, phone, phoneNumberID string) error {
	if msg.Interactive == nil {
		return nil
	}
	replyID := msg.Interactive.ReplyID()

	switch {
	case strings.HasPrefix(replyID, "topic_"),
		strings.HasPrefix(replyID, "answer_"),
		replyID == "single_player",
		replyID == "multiplayer":
		h.countMessage("trivia", "interactive")
		return h.triviaSvc.HandleInteractiveMessage(ctx, msg, phone, phoneNumberID)
	default:
		h.countMessage("nkundino", "interactive")
		return h.orderSvc.HandleInteractiveMessage(ctx, msg, phone, phoneNumberID)
	}
}

func isShopKeyword(text string) bool {
	for _, keyword := range shared.NkundinoKeywords {
		if text == keyword {
			return true
		}
	}
	return false
}
