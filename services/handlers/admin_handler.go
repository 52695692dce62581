package handlers

import (
	"crypto/subtle"
	"os"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/icupa/giomessaging/dto"
	"github.com/icupa/giomessaging/shared"
)

// AdminHandler backs the operator endpoints: login, order review and odds
// uploads. There is a single admin account, configured by environment.
type AdminHandler struct {
	jwtSvc       JWTServiceInterface
	orderSvc     OrderServiceInterface
	arbitrageSvc ArbitrageServiceInterface
}

func NewAdminHandler(jwtSvc JWTServiceInterface, orderSvc OrderServiceInterface,
	arbitrageSvc ArbitrageServiceInterface) *AdminHandler {
	return &AdminHandler{
		jwtSvc:       jwtSvc,
		orderSvc:     orderSvc,
		arbitrageSvc: arbitrageSvc,
	}
}

// @Summary Admin login
// @Description Exchange admin credentials for a bearer token
// @Tags admin
// @Accept json
// @Produce json
// @Param credentials body dto.AdminLoginRequest true "Admin credentials"
// @Success 200 {object} shared.Response{data=dto.TokenPair}
// @Router /api/admin/login [post]
func (h *AdminHandler) Login(c *fiber.Ctx) error {
	var req dto.AdminLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return shared.ResponseBadRequest(c, "Invalid request")
	}
	if err := req.Validate(); err != nil {
		validationResp := dto.CreateValidationErrorResponse(err)
		return c.Status(fiber.StatusBadRequest).JSON(validationResp)
	}

	username := os.Getenv("ADMIN_USERNAME")
	password := os.Getenv("ADMIN_PASSWORD")
	if username == "" || password == "" {
		return shared.ResponseUnauthorized(c)
	}

	userOK := subtle.ConstantTimeCompare([]byte(req.Username), []byte(username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(req.Password), []byte(password)) == 1
	if !userOK || !passOK {
		return shared.ResponseUnauthorized(c)
	}

	tokens, err := h.jwtSvc.GenerateTokenPair(username)
	if err != nil {
		return err
	}
	return shared.ResponseOK(c, tokens)
}

// @Summary List orders (Admin)
// @Description Recent orders, newest first
// @Tags admin
// @Accept json
// @Produce json
// @Security Bearer
// @Param limit query int false "Max rows" default(50)
// @Success 200 {object} shared.Response{data=[]model.Order}
// @Router /api/admin/orders [get]
func (h *AdminHandler) ListOrders(c *fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	if limit < 1 || limit > 500 {
		limit = 50
	}

	orders, err := h.orderSvc.ListOrders(limit)
	if err != nil {
		return err
	}
	return shared.ResponseOK(c, orders)
}

// @Summary Upload odds (Admin)
// @Description Replace the stored fixture odds used for arbitrage analysis
// @Tags admin
// @Accept json
// @Produce json
// @Security Bearer
// @Param odds body dto.UploadOddsRequest true "Fixture odds in decimal format"
// @Success 200 {object} shared.Response
// @Router /api/admin/odds [post]
func (h *AdminHandler) UploadOdds(c *fiber.Ctx) error {
	var req dto.UploadOddsRequest
	if err := c.BodyParser(&req); err != nil {
		return shared.ResponseBadRequest(c, "Invalid request")
	}
	if err := req.Validate(); err != nil {
		validationResp := dto.CreateValidationErrorResponse(err)
		return c.Status(fiber.StatusBadRequest).JSON(validationResp)
	}

	count, err := h.arbitrageSvc.UploadOdds(c.Context(), &req)
	if err != nil {
		return err
	}
	return shared.ResponseOK(c, fiber.Map{"stored": count})
}
