package main

import (
	"strings"

	"fintrack-backend/internal/account"
	"fintrack-backend/internal/auth"
	"fintrack-backend/internal/budget"
	"fintrack-backend/internal/category"
	"fintrack-backend/internal/config"
	"fintrack-backend/internal/conflict"
	"fintrack-backend/internal/database"
	"fintrack-backend/internal/events"
	"fintrack-backend/internal/logger"
	"fintrack-backend/internal/payee"
	"fintrack-backend/internal/transaction"
	"fintrack-backend/internal/workspace"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

func main() {
	cfg := config.Load()
	log := logger.New()

	db, err := database.Open(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("database init failed")
	}

	bus := events.NewBus()
	// Events fire post-commit; this is where cache invalidation and live
	// update delivery hook in.
	bus.Subscribe(func(evt events.Event) {
		log.Info().
			Str("event", evt.Name).
			Uint("workspace_id", evt.WorkspaceID).
			Msg("domain event")
	})

	uow := database.NewUnitOfWork(db, bus, log)

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if e, ok := err.(*fiber.Error); ok {
				return c.Status(e.Code).JSON(fiber.Map{"error": e.Message})
			}
			log.Error().Err(err).Msg("unexpected error")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "unexpected server error",
			})
		},
	})

	corsOrigins := strings.Split(cfg.CORSOrigins, ",")
	for i := range corsOrigins {
		corsOrigins[i] = strings.TrimSpace(corsOrigins[i])
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(corsOrigins, ","),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
	}))

	api := app.Group("/api")

	// Public auth
	api.Post("/auth/register", auth.RegisterHandler(db))
	api.Post("/auth/login", auth.LoginHandler(cfg, db))

	// Protected
	protected := api.Group("")
	protected.Use(auth.JWTMiddleware(cfg))

	protected.Get("/auth/me", auth.MeHandler(db))

	protected.Post("/workspaces", workspace.CreateWorkspaceHandler(uow))
	protected.Get("/workspaces", workspace.ListWorkspacesHandler(db))

	// Workspace-scoped resources; membership checked once here.
	ws := protected.Group("/workspaces/:workspaceID")
	ws.Use(auth.RequireMembership(db))

	ws.Post("/members", workspace.AddMemberHandler(db))

	ws.Post("/accounts", account.CreateAccountHandler(db))
	ws.Get("/accounts", account.ListAccountsHandler(db))
	ws.Get("/accounts/:id", account.GetAccountHandler(db))
	ws.Put("/accounts/:id", account.UpdateAccountHandler(uow))
	ws.Post("/accounts/:id/recalculate", account.RecalculateAccountHandler(uow))

	ws.Post("/categories", category.CreateCategoryHandler(db))
	ws.Get("/categories", category.ListCategoriesHandler(db))
	ws.Put("/categories/:id", category.UpdateCategoryHandler(uow))
	ws.Delete("/categories/:id", category.DeleteCategoryHandler(db))

	ws.Post("/payees", payee.CreatePayeeHandler(db))
	ws.Get("/payees", payee.ListPayeesHandler(db))
	ws.Put("/payees/:id", payee.UpdatePayeeHandler(uow))
	ws.Delete("/payees/:id", payee.DeletePayeeHandler(db))

	ws.Post("/transactions", transaction.CreateTransactionHandler(uow, log))
	ws.Get("/transactions", transaction.ListTransactionsHandler(db))
	ws.Put("/transactions/:id", transaction.UpdateTransactionHandler(uow, log))
	ws.Delete("/transactions/:id", transaction.DeleteTransactionHandler(uow, log))

	ws.Post("/budgets", budget.CreateBudgetHandler(uow, log))
	ws.Get("/budgets", budget.ListBudgetsHandler(db))
	ws.Put("/budgets/:id", budget.UpdateBudgetHandler(uow, log))
	ws.Post("/budgets/:id/recalculate", budget.RecalculateBudgetHandler(uow, log))
	ws.Get("/budgets/:id/notifications", budget.ListNotificationsHandler(db))

	ws.Get("/conflicts", conflict.ListConflictsHandler(db))
	ws.Post("/conflicts/:id/resolve", conflict.ResolveConflictHandler(uow))
	ws.Get("/versions/:entityType/:id", conflict.EntityVersionsHandler(db))

	log.Info().Str("port", cfg.HTTPPort).Msg("server listening")
	if err := app.Listen(":" + cfg.HTTPPort); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
