package controller

import (
	"errors"

	"ai-notetaking-agent/internal/dto"
	"ai-notetaking-agent/internal/pkg/serverutils"
	"ai-notetaking-agent/internal/service"
	"ai-notetaking-agent/pkg/agent/plan"
	"ai-notetaking-agent/pkg/agent/session"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type IAgentController interface {
	RegisterRoutes(r fiber.Router)
	SendMessage(ctx *fiber.Ctx) error
	GetPlan(ctx *fiber.Ctx) error
	ApproveGroup(ctx *fiber.Ctx) error
	SkipGroup(ctx *fiber.Ctx) error
	ExecutePlan(ctx *fiber.Ctx) error
	CancelPlan(ctx *fiber.Ctx) error
	GetHistory(ctx *fiber.Ctx) error
}

type agentController struct {
	agentService service.IAgentService
}

func NewAgentController(agentService service.IAgentService) IAgentController {
	return &agentController{
		agentService: agentService,
	}
}

func (c *agentController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/agent/v1")
	h.Use(serverutils.JwtMiddleware)
	h.Post("message", c.SendMessage)
	h.Get("sessions/:sessionId/plan", c.GetPlan)
	h.Post("sessions/:sessionId/plan/groups/:index/approve", c.ApproveGroup)
	h.Post("sessions/:sessionId/plan/groups/:index/skip", c.SkipGroup)
	h.Post("sessions/:sessionId/plan/execute", c.ExecutePlan)
	h.Post("sessions/:sessionId/plan/cancel", c.CancelPlan)
	h.Get("sessions/:sessionId/history", c.GetHistory)
}

func (c *agentController) SendMessage(ctx *fiber.Ctx) error {
	userId, err := serverutils.UserID(ctx)
	if err != nil {
		return err
	}

	var req dto.SendAgentMessageRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "Invalid request body"))
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.agentService.SendMessage(ctx.UserContext(), userId, &req)
	if err != nil {
		return agentError(err)
	}
	return ctx.JSON(serverutils.SuccessResponse("Success", res))
}

func (c *agentController) GetPlan(ctx *fiber.Ctx) error {
	userId, sessionId, err := sessionParams(ctx)
	if err != nil {
		return err
	}
	res, err := c.agentService.GetPlan(ctx.UserContext(), userId, sessionId)
	if err != nil {
		return agentError(err)
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get plan", res))
}

func (c *agentController) ApproveGroup(ctx *fiber.Ctx) error {
	userId, sessionId, err := sessionParams(ctx)
	if err != nil {
		return err
	}
	index, err := ctx.ParamsInt("index")
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "Invalid group index"))
	}
	res, err := c.agentService.ApproveGroup(ctx.UserContext(), userId, sessionId, index)
	if err != nil {
		return agentError(err)
	}
	return ctx.JSON(serverutils.SuccessResponse("Group approved", res))
}

func (c *agentController) SkipGroup(ctx *fiber.Ctx) error {
	userId, sessionId, err := sessionParams(ctx)
	if err != nil {
		return err
	}
	index, err := ctx.ParamsInt("index")
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "Invalid group index"))
	}
	res, err := c.agentService.SkipGroup(ctx.UserContext(), userId, sessionId, index)
	if err != nil {
		return agentError(err)
	}
	return ctx.JSON(serverutils.SuccessResponse("Group skipped", res))
}

func (c *agentController) ExecutePlan(ctx *fiber.Ctx) error {
	userId, sessionId, err := sessionParams(ctx)
	if err != nil {
		return err
	}
	res, err := c.agentService.ExecutePlan(ctx.UserContext(), userId, sessionId)
	if err != nil {
		return agentError(err)
	}
	return ctx.JSON(serverutils.SuccessResponse(res.Summary, res))
}

func (c *agentController) CancelPlan(ctx *fiber.Ctx) error {
	userId, sessionId, err := sessionParams(ctx)
	if err != nil {
		return err
	}
	res, err := c.agentService.CancelPlan(ctx.UserContext(), userId, sessionId)
	if err != nil {
		return agentError(err)
	}
	return ctx.JSON(serverutils.SuccessResponse("Plan cancelled", res))
}

func (c *agentController) GetHistory(ctx *fiber.Ctx) error {
	userId, sessionId, err := sessionParams(ctx)
	if err != nil {
		return err
	}
	res, err := c.agentService.GetHistory(ctx.UserContext(), userId, sessionId, ctx.QueryInt("limit", 50))
	if err != nil {
		return agentError(err)
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get history", res))
}

func sessionParams(ctx *fiber.Ctx) (uuid.UUID, uuid.UUID, error) {
	userId, err := serverutils.UserID(ctx)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	sessionId, err := uuid.Parse(ctx.Params("sessionId"))
	if err != nil {
		return uuid.Nil, uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "Invalid session ID")
	}
	return userId, sessionId, nil
}

// agentError attaches HTTP statuses to the agent's domain errors.
func agentError(err error) error {
	switch {
	case errors.Is(err, plan.ErrGroupOutOfRange):
		return serverutils.WithStatus(fiber.StatusBadRequest, err)
	case errors.Is(err, plan.ErrInvalidTransition), errors.Is(err, plan.ErrNoApprovedGroups):
		return serverutils.WithStatus(fiber.StatusConflict, err)
	case errors.Is(err, session.ErrQueueClosed):
		return serverutils.WithStatus(fiber.StatusServiceUnavailable, err)
	}
	return err
}
