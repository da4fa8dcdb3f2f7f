package report

import (
	"errors"
	"fmt"
	"time"

	"go-helpdesk/internal/features/presenter"
	"go-helpdesk/internal/upstream"
	"go-helpdesk/pkg/utils"

	"github.com/gofiber/fiber/v2"
)

type ReportController struct {
	ReportService ReportService
}

func NewReportController(reportService ReportService) *ReportController {
	return &ReportController{ReportService: reportService}
}

func actorFromCtx(ctx *fiber.Ctx) (Actor, bool) {
	claims, ok := ctx.Locals(utils.UserClaimsKey).(*utils.UserClaims)
	if !ok {
		return Actor{}, false
	}
	return Actor{
		ID:           claims.UserID,
		Name:         claims.Name,
		Role:         claims.Role,
		DepartmentID: claims.DepartmentID,
	}, true
}

// List godoc
func (c *ReportController) List(ctx *fiber.Ctx) error {
	actor, ok := actorFromCtx(ctx)
	if !ok {
		return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "User claims not found"})
	}

	filter := Filter{
		Type:   ctx.Query("type", "all"),
		Status: ctx.Query("status", "all"),
	}
	if from := ctx.Query("from"); from != "" {
		t, err := time.Parse("2006-01-02", from)
		if err != nil {
			return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid from date"})
		}
		filter.From = t
	}
	if to := ctx.Query("to"); to != "" {
		t, err := time.Parse("2006-01-02", to)
		if err != nil {
			return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid to date"})
		}
		filter.To = t
	}

	reports := c.ReportService.Reports(actor, Tab(ctx.Query("tab", string(TabAll))), filter)
	decorated := make([]presenter.DisplayReport, 0, len(reports))
	for _, r := range reports {
		decorated = append(decorated, presenter.Decorate(r))
	}
	return ctx.JSON(decorated)
}

// Status godoc
func (c *ReportController) Status(ctx *fiber.Ctx) error {
	return ctx.JSON(c.ReportService.Status())
}

// Refresh godoc
func (c *ReportController) Refresh(ctx *fiber.Ctx) error {
	if err := c.ReportService.Load(ctx.Context()); err != nil {
		return ctx.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
	}
	return ctx.JSON(c.ReportService.Status())
}

// Get godoc
func (c *ReportController) Get(ctx *fiber.Ctx) error {
	id := ctx.Params("id")
	rep, err := c.ReportService.View(ctx.Context(), id)
	if err != nil {
		// Only an upstream 404 means the record is missing; anything
		// else is the backend misbehaving.
		status := fiber.StatusBadGateway
		var apiErr *upstream.APIError
		if errors.As(err, &apiErr) && apiErr.Status == fiber.StatusNotFound {
			status = fiber.StatusNotFound
		}
		return ctx.Status(status).JSON(fiber.Map{"error": err.Error()})
	}
	return ctx.JSON(presenter.BuildDetail(rep))
}

// Create godoc
func (c *ReportController) Create(ctx *fiber.Ctx) error {
	actor, ok := actorFromCtx(ctx)
	if !ok {
		return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "User claims not found"})
	}

	var input CreateInput
	if err := ctx.BodyParser(&input); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	if err := c.ReportService.Create(ctx.Context(), actor, input); err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": verr.Msg, "field": verr.Field})
		}
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return ctx.SendStatus(fiber.StatusCreated)
}

// Delete godoc
func (c *ReportController) Delete(ctx *fiber.Ctx) error {
	id := ctx.Params("id")
	if err := c.ReportService.Delete(ctx.Context(), id); err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return ctx.SendStatus(fiber.StatusNoContent)
}

// Export godoc
func (c *ReportController) Export(ctx *fiber.Ctx) error {
	id := ctx.Params("id")
	format := ctx.Query("format", "pdf")
	filename := ctx.Query("filename")
	local := ctx.QueryBool("local")

	data, name, contentType, err := c.ReportService.Export(ctx.Context(), id, filename, format, local)
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	ctx.Set("Content-Type", contentType)
	ctx.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", name))
	return ctx.Send(data)
}
