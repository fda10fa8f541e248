package controller

import (
	"ai-salescoach-be/internal/pkg/serverutils"
	"ai-salescoach-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type IVoiceController interface {
	RegisterRoutes(r fiber.Router, jwt fiber.Handler)
	GetActivity(ctx *fiber.Ctx) error
	ShowActivity(ctx *fiber.Ctx) error
	ActiveSessions(ctx *fiber.Ctx) error
	ShowSession(ctx *fiber.Ctx) error
}

type voiceController struct {
	activity  service.IActivityService
	lifecycle service.ISessionLifecycleService
}

func NewVoiceController(activity service.IActivityService, lifecycle service.ISessionLifecycleService) IVoiceController {
	return &voiceController{activity: activity, lifecycle: lifecycle}
}

func (c *voiceController) RegisterRoutes(r fiber.Router, jwt fiber.Handler) {
	h := r.Group("/voice")
	h.Get("/activity", jwt, c.GetActivity)
	h.Get("/activity/:agentId", jwt, c.ShowActivity)
	h.Get("/sessions/active", jwt, c.ActiveSessions)
	h.Get("/sessions/:sessionId", jwt, c.ShowSession)
}

func currentUser(ctx *fiber.Ctx) (uuid.UUID, error) {
	userIdStr, _ := ctx.Locals("user_id").(string)
	userId, err := uuid.Parse(userIdStr)
	if err != nil {
		return uuid.Nil, serverutils.NewUnauthorized("Invalid user ID")
	}
	return userId, nil
}

func (c *voiceController) GetActivity(ctx *fiber.Ctx) error {
	userId, err := currentUser(ctx)
	if err != nil {
		return err
	}

	res, err := c.activity.GetSummaries(ctx.UserContext(), userId)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get coach activity", res))
}

func (c *voiceController) ShowActivity(ctx *fiber.Ctx) error {
	userId, err := currentUser(ctx)
	if err != nil {
		return err
	}

	res, err := c.activity.GetSummary(ctx.UserContext(), userId, ctx.Params("agentId"))
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get coach activity", res))
}

func (c *voiceController) ActiveSessions(ctx *fiber.Ctx) error {
	res, err := c.lifecycle.ActiveSessions(ctx.UserContext())
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get active sessions", res))
}

func (c *voiceController) ShowSession(ctx *fiber.Ctx) error {
	res, err := c.lifecycle.LocateSession(ctx.UserContext(), ctx.Params("sessionId"))
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get session", res))
}
