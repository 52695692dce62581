package handlers_test

import (
	"bytes"
	"context"
	"io"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/icupa/giomessaging/dto"
	"github.com/icupa/giomessaging/model"
	"github.com/icupa/giomessaging/services"
	"github.com/icupa/giomessaging/services/handlers"
	"github.com/icupa/giomessaging/shared"
)

type call struct {
	Service string
	Method  string
	Phone   string
}

type recorder struct {
	mu    sync.Mutex
	calls []call
}

func (r *recorder) record(service, method, phone string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call{Service: service, Method: method, Phone: phone})
}

func (r *recorder) all() []call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]call(nil), r.calls...)
}

type fakeTrivia struct {
	rec     *recorder
	session *model.GameSession
}

func (f *fakeTrivia) HandleTextMessage(_ context.Context, _ *dto.InboundMessage, phone, _ string) error {
	f.rec.record("trivia", "text", phone)
	return nil
}

func (f *fakeTrivia) HandleInteractiveMessage(_ context.Context, _ *dto.InboundMessage, phone, _ string) error {
	f.rec.record("trivia", "interactive", phone)
	return nil
}

func (f *fakeTrivia) SendDefaultMessage(phone, _ string) error {
	f.rec.record("trivia", "default", phone)
	return nil
}

func (f *fakeTrivia) TrackUser(phone string) {
	f.rec.record("trivia", "track", phone)
}

func (f *fakeTrivia) GetSession(_ context.Context, gameID string) (*model.GameSession, error) {
	if f.session != nil && f.session.GameID == gameID {
		return f.session, nil
	}
	return nil, nil
}

type fakeOrders struct {
	rec       *recorder
	orders    []model.Order
	lastLimit int
}

func (f *fakeOrders) HandleTextMessage(_ context.Context, _ *dto.InboundMessage, phone, _ string) error {
	f.rec.record("orders", "text", phone)
	return nil
}

func (f *fakeOrders) HandleInteractiveMessage(_ context.Context, _ *dto.InboundMessage, phone, _ string) error {
	f.rec.record("orders", "interactive", phone)
	return nil
}

func (f *fakeOrders) HandleOrder(_ context.Context, _ *dto.InboundMessage, _, _ string) error {
	f.rec.record("orders", "order", "")
	return nil
}

func (f *fakeOrders) HandleLocation(_ context.Context, _ *dto.InboundLocation, phone, _ string) error {
	f.rec.record("orders", "location", phone)
	return nil
}

func (f *fakeOrders) SaveOrder(*dto.SaveOrderRequest) (*model.Order, error) { return nil, nil }
func (f *fakeOrders) SendOrderConfirmation(string) error                    { return nil }

func (f *fakeOrders) ListOrders(limit int) ([]model.Order, error) {
	f.lastLimit = limit
	return f.orders, nil
}

type fakeArbitrage struct{ rec *recorder }

func (f *fakeArbitrage) HandleTextMessage(_ context.Context, _, phone, _ string) error {
	f.rec.record("arbitrage", "text", phone)
	return nil
}

func (f *fakeArbitrage) Opportunities(context.Context) ([]dto.ArbitrageOpportunity, error) {
	return nil, nil
}

func (f *fakeArbitrage) UploadOdds(_ context.Context, req *dto.UploadOddsRequest) (int, error) {
	return len(req.Odds), nil
}

func newWebhookApp(t *testing.T) (*fiber.App, *recorder, *services.MemorySessionStore) {
	t.Helper()
	t.Setenv("VERIFY_TOKEN", "secret-token")

	rec := &recorder{}
	store := services.NewMemorySessionStore()
	h := handlers.NewWebhookHandler(
		&fakeTrivia{rec: rec},
		&fakeOrders{rec: rec},
		&fakeArbitrage{rec: rec},
		store,
		services.DedupWindow,
		nil,
	)

	app := fiber.New()
	app.Get("/webhook", h.Verify)
	app.Post("/webhook", h.Receive)
	return app, rec, store
}

func postEnvelope(t *testing.T, app *fiber.App, envelope *dto.WebhookEnvelope) int {
	t.Helper()
	data, err := shared.JSONAPI.Marshal(envelope)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(fiber.MethodPost, "/webhook", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	return resp.StatusCode
}

func envelopeFor(msg dto.InboundMessage) *dto.WebhookEnvelope {
	return &dto.WebhookEnvelope{
		Object: "whatsapp_business_account",
		Entry: []dto.WebhookEntry{{
			ID: "entry-1",
			Changes: []dto.WebhookChange{{
				Field: "messages",
				Value: dto.WebhookValue{
					MessagingProduct: "whatsapp",
					Metadata: dto.WebhookMetadata{
						DisplayPhoneNumber: "250788111111",
						PhoneNumberID:      "111111111111111",
					},
					Messages: []dto.InboundMessage{msg},
				},
			}},
		}},
	}
}

func textEnvelope(id, from, body string) *dto.WebhookEnvelope {
	return envelopeFor(dto.InboundMessage{
		ID:   id,
		From: from,
		Type: "text",
		Text: &dto.TextBody{Body: body},
	})
}

func lastDispatch(t *testing.T, rec *recorder) call {
	t.Helper()
	calls := rec.all()
	for i := len(calls) - 1; i >= 0; i-- {
		if calls[i].Method != "track" {
			return calls[i]
		}
	}
	t.Fatal("no dispatch recorded")
	return call{}
}

func TestVerifyHandshake(t *testing.T) {
	app, _, _ := newWebhookApp(t)

	req := httptest.NewRequest(fiber.MethodGet,
		"/webhook?hub.mode=subscribe&hub.verify_token=secret-token&hub.challenge=12345", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "12345" {
		t.Fatalf("challenge echoed as %q", body)
	}
}

func TestVerifyRejectsBadToken(t *testing.T) {
	app, _, _ := newWebhookApp(t)

	req := httptest.NewRequest(fiber.MethodGet,
		"/webhook?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=12345", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != fiber.StatusForbidden {
		t.Fatalf("status = %d, want 403", resp.StatusCode)
	}
}

func TestTextRoutesToTrivia(t *testing.T) {
	app, rec, _ := newWebhookApp(t)

	if status := postEnvelope(t, app, textEnvelope("wamid.1", "250788000001", "play")); status != fiber.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if got := lastDispatch(t, rec); got.Service != "trivia" || got.Method != "text" {
		t.Fatalf("dispatched to %s/%s, want trivia/text", got.Service, got.Method)
	}
}

func TestShopKeywordRoutesToOrders(t *testing.T) {
	app, rec, _ := newWebhookApp(t)

	postEnvelope(t, app, textEnvelope("wamid.1", "250788000001", "shop"))
	if got := lastDispatch(t, rec); got.Service != "orders" || got.Method != "text" {
		t.Fatalf("dispatched to %s/%s, want orders/text", got.Service, got.Method)
	}
}

func TestBetKeywordRoutesToArbitrage(t *testing.T) {
	app, rec, _ := newWebhookApp(t)

	postEnvelope(t, app, textEnvelope("wamid.1", "250788000001", "Bet Update"))
	if got := lastDispatch(t, rec); got.Service != "arbitrage" {
		t.Fatalf("dispatched to %s/%s, want arbitrage", got.Service, got.Method)
	}
}

func TestTinStageRoutesFreeTextToOrders(t *testing.T) {
	app, rec, store := newWebhookApp(t)

	uc := model.NewUserContext("250788000001")
	uc.Stage = shared.StageExpectingTin
	if err := store.SaveContext(context.Background(), uc); err != nil {
		t.Fatal(err)
	}

	postEnvelope(t, app, textEnvelope("wamid.1", "250788000001", "123456789"))
	if got := lastDispatch(t, rec); got.Service != "orders" || got.Method != "text" {
		t.Fatalf("dispatched to %s/%s, want orders/text", got.Service, got.Method)
	}
}

func TestInteractiveRouting(t *testing.T) {
	app, rec, _ := newWebhookApp(t)

	cases := map[string]string{
		"topic_science": "trivia",
		"answer_a":      "trivia",
		"single_player": "trivia",
		"multiplayer":   "trivia",
		"CHECKOUT":      "orders",
		"confirm_ORD-1": "orders",
	}
	i := 0
	for replyID, want := range cases {
		i++
		postEnvelope(t, app, envelopeFor(dto.InboundMessage{
			ID:   "wamid." + replyID,
			From: "250788000001",
			Type: "interactive",
			Interactive: &dto.InboundInteractive{
				Type:        "button_reply",
				ButtonReply: &dto.ReplySummary{ID: replyID},
			},
		}))
		if got := lastDispatch(t, rec); got.Service != want || got.Method != "interactive" {
			t.Fatalf("%s dispatched to %s/%s, want %s/interactive", replyID, got.Service, got.Method, want)
		}
	}
}

func TestOrderAndLocationRouting(t *testing.T) {
	app, rec, _ := newWebhookApp(t)

	postEnvelope(t, app, envelopeFor(dto.InboundMessage{
		ID:    "wamid.order",
		From:  "250788000001",
		Type:  "order",
		Order: &dto.InboundOrder{},
	}))
	if got := lastDispatch(t, rec); got.Service != "orders" || got.Method != "order" {
		t.Fatalf("order dispatched to %s/%s", got.Service, got.Method)
	}

	postEnvelope(t, app, envelopeFor(dto.InboundMessage{
		ID:       "wamid.loc",
		From:     "250788000001",
		Type:     "location",
		Location: &dto.InboundLocation{Latitude: -1.95, Longitude: 30.06},
	}))
	if got := lastDispatch(t, rec); got.Service != "orders" || got.Method != "location" {
		t.Fatalf("location dispatched to %s/%s", got.Service, got.Method)
	}
}

func TestUnknownTypeFallsBackToDefault(t *testing.T) {
	app, rec, _ := newWebhookApp(t)

	postEnvelope(t, app, envelopeFor(dto.InboundMessage{
		ID:   "wamid.sticker",
		From: "250788000001",
		Type: "sticker",
	}))
	if got := lastDispatch(t, rec); got.Service != "trivia" || got.Method != "default" {
		t.Fatalf("unknown type dispatched to %s/%s", got.Service, got.Method)
	}
}

func TestDuplicateDeliverySuppressed(t *testing.T) {
	app, rec, _ := newWebhookApp(t)

	postEnvelope(t, app, textEnvelope("wamid.same", "250788000001", "play"))
	postEnvelope(t, app, textEnvelope("wamid.same", "250788000001", "play"))

	dispatches := 0
	for _, c := range rec.all() {
		if c.Service == "trivia" && c.Method == "text" {
			dispatches++
		}
	}
	if dispatches != 1 {
		t.Fatalf("redelivery dispatched %d times, want 1", dispatches)
	}
}

func TestMalformedPayloadRejected(t *testing.T) {
	app, _, _ := newWebhookApp(t)

	req := httptest.NewRequest(fiber.MethodPost, "/webhook", bytes.NewReader([]byte("not json")))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestForeignObjectAcknowledged(t *testing.T) {
	app, rec, _ := newWebhookApp(t)

	status := postEnvelope(t, app, &dto.WebhookEnvelope{Object: "instagram"})
	if status != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
	if len(rec.all()) != 0 {
		t.Fatalf("foreign object should not be dispatched: %+v", rec.all())
	}
}

func TestStatusCallbackAcknowledged(t *testing.T) {
	app, rec, _ := newWebhookApp(t)

	envelope := envelopeFor(dto.InboundMessage{})
	envelope.Entry[0].Changes[0].Value.Messages = nil
	if status := postEnvelope(t, app, envelope); status != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
	if len(rec.all()) != 0 {
		t.Fatalf("status callback should not be dispatched: %+v", rec.all())
	}
}
