package report

import (
	"go-helpdesk/internal/config"
	"go-helpdesk/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type ReportApi struct {
	ReportController *ReportController
	Config           *config.Config
}

func NewReportApi(reportController *ReportController, config *config.Config) *ReportApi {
	return &ReportApi{
		ReportController: reportController,
		Config:           config,
	}
}

func (api *ReportApi) Setup(app *fiber.App) {
	group := app.Group("/api/reports", middleware.AuthMiddleware(api.Config.SkipAuth))

	group.Get("/", api.ReportController.List)
	group.Get("/status", api.ReportController.Status)
	group.Post("/refresh", api.ReportController.Refresh)
	group.Post("/", api.ReportController.Create)
	group.Get("/:id", api.ReportController.Get)
	group.Delete("/:id", api.ReportController.Delete)
	group.Get("/:id/export", api.ReportController.Export)
}
