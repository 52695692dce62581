package handlers_test

import (
	"bytes"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/icupa/giomessaging/dto"
	"github.com/icupa/giomessaging/model"
	"github.com/icupa/giomessaging/services/handlers"
	"github.com/icupa/giomessaging/shared"
)

type fakeJWT struct{}

func (f *fakeJWT) GenerateTokenPair(adminID string) (*dto.TokenPair, error) {
	return &dto.TokenPair{AccessToken: "token-for-" + adminID, ExpiresIn: 3600}, nil
}

func newAdminApp(t *testing.T) (*fiber.App, *fakeOrders) {
	t.Helper()
	t.Setenv("ADMIN_USERNAME", "admin")
	t.Setenv("ADMIN_PASSWORD", "s3cret")

	orders := &fakeOrders{rec: &recorder{}}
	h := handlers.NewAdminHandler(&fakeJWT{}, orders, &fakeArbitrage{rec: &recorder{}})

	app := fiber.New()
	app.Post("/api/admin/login", h.Login)
	app.Get("/api/admin/orders", h.ListOrders)
	app.Post("/api/admin/odds", h.UploadOdds)
	return app, orders
}

func postJSON(t *testing.T, app *fiber.App, path string, body interface{}) (int, []byte) {
	t.Helper()
	data, err := shared.JSONAPI.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(fiber.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, raw
}

func TestAdminLogin(t *testing.T) {
	app, _ := newAdminApp(t)

	status, raw := postJSON(t, app, "/api/admin/login",
		dto.AdminLoginRequest{Username: "admin", Password: "s3cret"})
	if status != fiber.StatusOK {
		t.Fatalf("status = %d, body %s", status, raw)
	}

	var resp struct {
		Data dto.TokenPair `json:"data"`
	}
	if err := shared.JSONAPI.Unmarshal(raw, &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Data.AccessToken != "token-for-admin" {
		t.Fatalf("unexpected token: %+v", resp.Data)
	}
}

func TestAdminLoginRejectsBadCredentials(t *testing.T) {
	app, _ := newAdminApp(t)

	status, _ := postJSON(t, app, "/api/admin/login",
		dto.AdminLoginRequest{Username: "admin", Password: "wrong"})
	if status != fiber.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", status)
	}
}

func TestAdminLoginValidatesBody(t *testing.T) {
	app, _ := newAdminApp(t)

	status, _ := postJSON(t, app, "/api/admin/login", dto.AdminLoginRequest{Username: "admin"})
	if status != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400", status)
	}
}

func TestListOrdersClampsLimit(t *testing.T) {
	app, orders := newAdminApp(t)
	orders.orders = []model.Order{{OrderID: "ORD-20260901-abc123"}}

	req := httptest.NewRequest(fiber.MethodGet, "/api/admin/orders?limit=9999", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if orders.lastLimit != 50 {
		t.Fatalf("out-of-range limit passed through as %d, want the 50 default", orders.lastLimit)
	}

	req = httptest.NewRequest(fiber.MethodGet, "/api/admin/orders?limit=5", nil)
	resp, _ = app.Test(req)
	resp.Body.Close()
	if orders.lastLimit != 5 {
		t.Fatalf("limit = %d, want 5", orders.lastLimit)
	}
}

func TestUploadOddsAcceptsDecimalOdds(t *testing.T) {
	app, _ := newAdminApp(t)

	status, raw := postJSON(t, app, "/api/admin/odds", dto.UploadOddsRequest{
		Odds: []dto.OddsEntry{
			{Teams: "A vs B", HomeOdds: 2.10, AwayOdds: 2.20},
			{Teams: "C vs D", HomeOdds: 1.80, AwayOdds: 2.40},
		},
	})
	if status != fiber.StatusOK {
		t.Fatalf("status = %d, body %s", status, raw)
	}

	var resp struct {
		Data struct {
			Stored int `json:"stored"`
		} `json:"data"`
	}
	if err := shared.JSONAPI.Unmarshal(raw, &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Data.Stored != 2 {
		t.Fatalf("stored = %d, want 2", resp.Data.Stored)
	}
}

func TestUploadOddsRejectsAmericanOdds(t *testing.T) {
	app, _ := newAdminApp(t)

	status, _ := postJSON(t, app, "/api/admin/odds", dto.UploadOddsRequest{
		Odds: []dto.OddsEntry{{Teams: "A vs B", HomeOdds: -110, AwayOdds: 105}},
	})
	if status != fiber.StatusBadRequest {
		t.Fatalf("american odds accepted with status %d, want 400", status)
	}
}

func TestJoinPage(t *testing.T) {
	trivia := &fakeTrivia{rec: &recorder{}, session: model.NewGameSession("game-1", "250788000001")}
	h := handlers.NewGameHandler(trivia)

	app := fiber.New()
	app.Get("/join/:gameId", h.JoinPage)

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/join/game-1", nil))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !bytes.Contains(body, []byte("join game-1")) {
		t.Fatalf("join instructions missing from page: %s", body)
	}

	resp, _ = app.Test(httptest.NewRequest(fiber.MethodGet, "/join/missing", nil))
	resp.Body.Close()
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("missing game served with status %d, want 404", resp.StatusCode)
	}
}
