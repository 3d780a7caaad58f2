package router

import (
	"crew-import/internal/config"
	"crew-import/internal/handler"
	"crew-import/internal/repository"
	"crew-import/internal/service"
	"crew-import/internal/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

type dependencies struct {
	cfg             *config.Config
	registry        *service.Registry
	importService   *service.ImportService
	templateService *service.TemplateService
	csvService      *service.CSVService
	excelService    *service.ExcelService
	history         *repository.ImportRepository
	state           *repository.StateRepository
	queue           handler.Enqueuer
}

func newDependencies(db *sqlx.DB, redis *redis.Client, cfg *config.Config) *dependencies {
	logger := utils.GetLogger()
	deps := &dependencies{cfg: cfg}

	// Optional stores. The service gets untyped nils when a store is absent.
	var (
		history service.HistoryStore
		state   service.StateStore
	)
	if db != nil {
		deps.history = repository.NewImportRepository(db)
		if err := deps.history.EnsureSchema(); err != nil {
			logger.WithError(err).Warn("Failed to ensure import_runs table")
		}
		history = deps.history
	}
	if redis != nil {
		deps.state = repository.NewStateRepository(redis, cfg.ResultTTL)
		state = deps.state

		// Initialize Asynq client (optional - only if Redis is available)
		deps.queue = asynq.NewClient(asynq.RedisClientOpt{
			Addr:     cfg.AsynqRedisAddr,
			Password: cfg.AsynqRedisPassword,
			DB:       cfg.AsynqRedisDB,
		})
	}

	// Initialize services
	summarizer := service.NewSummarizer(nil)
	deps.registry = service.NewRegistry(service.DefaultsFromConfig(cfg), summarizer)
	deps.csvService = service.NewCSVService(cfg.ImportTitleRows)
	deps.excelService = service.NewExcelService(cfg.ImportTitleRows)
	deps.templateService = service.NewTemplateService(deps.registry, deps.excelService, cfg.ImportTitleRows)
	deps.importService = service.NewImportService(cfg, deps.registry, summarizer, history, state)

	return deps
}

func SetupAPIRoutes(router fiber.Router, deps *dependencies) {
	// Initialize handlers
	importHandler := handler.NewImportHandler(deps.importService, deps.csvService, deps.excelService, deps.queue, deps.cfg)
	templateHandler := handler.NewTemplateHandler(deps.templateService)
	queryHandler := handler.NewImportQueryHandler(deps.registry, deps.history, deps.state, deps.excelService)

	// Import routes
	crew := router.Group("/crew")
	crew.Post("/:entity/upload", importHandler.Upload)
	crew.Post("/:entity", importHandler.Import)

	// Template routes
	router.Get("/templates/:entity", templateHandler.Download)
	router.Get("/imports/template", templateHandler.DownloadByQuery)

	// Query routes
	v1 := router.Group("/v1")
	v1.Get("/entities", queryHandler.GetEntities)

	imports := v1.Group("/imports")
	imports.Get("/", queryHandler.GetHistory)
	imports.Get("/export", queryHandler.ExportHistory)
	imports.Get("/state/:entity", queryHandler.GetState)
	imports.Get("/:batch_id", queryHandler.GetResult)
	imports.Get("/:batch_id/progress", queryHandler.GetProgress)
	imports.Get("/:batch_id/report", queryHandler.DownloadReport)
}
