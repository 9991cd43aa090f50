package controller

import (
	"strings"

	"ai-triage-be/internal/dto"
	"ai-triage-be/internal/pkg/serverutils"
	"ai-triage-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IChatController interface {
	RegisterRoutes(r fiber.Router)
	SendMessage(ctx *fiber.Ctx) error
	InitSession(ctx *fiber.Ctx) error
	ResetSession(ctx *fiber.Ctx) error
}

type chatController struct {
	triageService service.ITriageService
}

func NewChatController(triageService service.ITriageService) IChatController {
	return &chatController{
		triageService: triageService,
	}
}

func (c *chatController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/chat/v1")
	h.Post("message", c.SendMessage)
	h.Post("init", c.InitSession)
	h.Post("reset", c.ResetSession)
}

func (c *chatController) SendMessage(ctx *fiber.Ctx) error {
	var req dto.SendMessageRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "No message provided"})
	}

	// Rejected before the message reaches the conversation state machine.
	if strings.TrimSpace(req.Message) == "" {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "No message provided"})
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.triageService.SendMessage(ctx.Context(), req.SessionID, req.Message)
	if err != nil {
		return err
	}

	return ctx.JSON(res)
}

func (c *chatController) InitSession(ctx *fiber.Ctx) error {
	var req dto.InitSessionRequest
	// An empty body is fine: the default session id applies.
	_ = ctx.BodyParser(&req)

	res, err := c.triageService.InitSession(ctx.Context(), req.SessionID)
	if err != nil {
		return err
	}

	return ctx.JSON(res)
}

func (c *chatController) ResetSession(ctx *fiber.Ctx) error {
	var req dto.ResetSessionRequest
	_ = ctx.BodyParser(&req)

	if err := c.triageService.ResetSession(ctx.Context(), req.SessionID); err != nil {
		return err
	}

	return ctx.JSON(fiber.Map{"status": "reset"})
}
