package handlers

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
)

type GameHandler struct {
	triviaSvc TriviaServiceInterface
}

func NewGameHandler(triviaSvc TriviaServiceInterface) *GameHandler {
	return &GameHandler{triviaSvc: triviaSvc}
}

// JoinPage tells an invited opponent how to join from WhatsApp.
func (h *GameHandler) JoinPage(c *fiber.Ctx) error {
	gameID := c.Params("gameId")

	session, err := h.triviaSvc.GetSession(c.Context(), gameID)
	if err != nil {
		return err
	}
	if session == nil {
		return c.Status(fiber.StatusNotFound).SendString("Game session not found.")
	}

	c.Set("Content-Type", "text/html; charset=utf-8")
	return c.SendString(fmt.Sprintf(`<h1>Join Game: %s</h1>
<p>To join this game, send the following message from your WhatsApp:</p>
<code>join %s</code>`, gameID, gameID))
}
