package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/icupa/giomessaging/shared"
)

type ArbitrageHandler struct {
	arbitrageSvc ArbitrageServiceInterface
}

func NewArbitrageHandler(arbitrageSvc ArbitrageServiceInterface) *ArbitrageHandler {
	return &ArbitrageHandler{arbitrageSvc: arbitrageSvc}
}

// @Summary Arbitrage opportunities
// @Description Current two-way arbitrage opportunities from stored odds
// @Tags arbitrage
// @Accept json
// @Produce json
// @Success 200 {object} shared.Response{data=[]dto.ArbitrageOpportunity}
// @Router /api/arbitrage [get]
func (h *ArbitrageHandler) GetOpportunities(c *fiber.Ctx) error {
	opportunities, err := h.arbitrageSvc.Opportunities(c.Context())
	if err != nil {
		return err
	}
	return shared.ResponseOK(c, opportunities)
}
