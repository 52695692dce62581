package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/icupa/giomessaging/dto"
	"github.com/icupa/giomessaging/shared"
)

type OrderHandler struct {
	orderSvc OrderServiceInterface
}

func NewOrderHandler(orderSvc OrderServiceInterface) *OrderHandler {
	return &OrderHandler{orderSvc: orderSvc}
}

// @Summary Save order
// @Description Persist an order submitted by a storefront client
// @Tags orders
// @Accept json
// @Produce json
// @Param order body dto.SaveOrderRequest true "Order data"
// @Success 200 {object} shared.Response{data=model.Order}
// @Router /api/save-order [post]
func (h *OrderHandler) SaveOrder(c *fiber.Ctx) error {
	var req dto.SaveOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return shared.ResponseBadRequest(c, "Invalid order data")
	}
	if err := req.Validate(); err != nil {
		validationResp := dto.CreateValidationErrorResponse(err)
		return c.Status(fiber.StatusBadRequest).JSON(validationResp)
	}

	order, err := h.orderSvc.SaveOrder(&req)
	if err != nil {
		return err
	}
	return shared.ResponseJSON(c, fiber.StatusOK, "Order saved successfully", order)
}

// @Summary Send order confirmation
// @Description Send the confirm/cancel prompt for an order to the admin number
// @Tags orders
// @Accept json
// @Produce json
// @Param request body dto.SendOrderConfirmationRequest true "Order reference"
// @Success 200 {object} shared.Response
// @Router /api/send-order-confirmation [post]
func (h *OrderHandler) SendOrderConfirmation(c *fiber.Ctx) error {
	var req dto.SendOrderConfirmationRequest
	if err := c.BodyParser(&req); err != nil {
		return shared.ResponseBadRequest(c, "Order ID is required")
	}
	if err := req.Validate(); err != nil {
		validationResp := dto.CreateValidationErrorResponse(err)
		return c.Status(fiber.StatusBadRequest).JSON(validationResp)
	}

	if err := h.orderSvc.SendOrderConfirmation(req.OrderID); err != nil {
		return err
	}
	return shared.ResponseJSON(c, fiber.StatusOK, "Order confirmation message sent successfully to admin", nil)
}
