package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/snapcomposer/internal/service"
	"go.uber.org/zap"
)

type PostHandler struct {
	s      service.PublishService
	logger *zap.Logger
}

func NewPostHandler(service service.PublishService, logger *zap.Logger) *PostHandler {
	return &PostHandler{s: service, logger: logger}
}

func (h *PostHandler) ListPosts(c *fiber.Ctx) error {
	posts, err := h.s.History(c.UserContext(), GetAccount(c), c.QueryInt("limit", 20))
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return c.JSON(posts)
}
