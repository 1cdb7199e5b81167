package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	config "github.com/maheshrc27/snapcomposer/configs"
	"github.com/maheshrc27/snapcomposer/internal/api/handlers"
	"github.com/maheshrc27/snapcomposer/internal/api/middleware"
	"github.com/maheshrc27/snapcomposer/internal/events"
	job "github.com/maheshrc27/snapcomposer/internal/jobs"
	"github.com/maheshrc27/snapcomposer/internal/ledger"
	"github.com/maheshrc27/snapcomposer/internal/repository"
	"github.com/maheshrc27/snapcomposer/internal/retry"
	"github.com/maheshrc27/snapcomposer/internal/service"
	"github.com/maheshrc27/snapcomposer/internal/thumbnail"
	"github.com/maheshrc27/snapcomposer/internal/upload"
	"github.com/maheshrc27/snapcomposer/internal/video"
	apperrors "github.com/maheshrc27/snapcomposer/pkg/errors"
	"github.com/robfig/cron"
	"go.uber.org/zap"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Failed to load environment variables", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zlog, err := newLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zlog.Sync()

	db, err := sql.Open("postgres", cfg.PostgresURI)
	if err != nil {
		zlog.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer closeDB(db, zlog)

	if err := db.Ping(); err != nil {
		zlog.Fatal("Database is unreachable", zap.Error(err))
	}

	publishedPostRepo := repository.NewPublishedPostRepository(db)
	if err := publishedPostRepo.EnsureSchema(context.Background()); err != nil {
		zlog.Fatal("Failed to prepare database schema", zap.Error(err))
	}

	// Uploads wait on the transport; only the ledger API gets a deadline.
	uploadClient := &http.Client{}
	ledgerClient := &http.Client{Timeout: 30 * time.Second}

	observer := events.NewZapObserver(zlog)

	images, err := newImageDestination(cfg, uploadClient)
	if err != nil {
		zlog.Fatal("Failed to set up image host", zap.String("provider", cfg.ImageHost.Provider), zap.Error(err))
	}
	contentStore := upload.NewContentStore(cfg.IPFS.UploadURL, cfg.IPFS.GatewayDomain, uploadClient)
	uploadService := upload.NewClient(observer, zlog)

	if cfg.Video.APIKey == "" {
		zlog.Warn("VIDEO_API_KEY is not set, video attachments are disabled")
	}
	videoUploader := video.NewUploader(video.Options{
		Endpoint:    cfg.Video.UploadURL,
		APIKey:      cfg.Video.APIKey,
		FrontendApp: cfg.Video.FrontendApp,
		ChunkSize:   cfg.Video.ChunkSize,
	}, uploadClient, retry.VideoUploadPolicy(), observer, zlog)
	thumbnailAssigner := video.NewThumbnailAssigner(cfg.Video.ThumbnailURL, cfg.Video.APIKey, uploadClient)
	extractor := thumbnail.NewExtractor(
		thumbnail.NewFFmpegDecoder(cfg.Video.FFmpegPath, cfg.Video.FFprobePath),
		os.TempDir(), observer, zlog)

	rpcClient := ledger.NewRPCClient(cfg.Ledger.RPCURL, ledgerClient)
	containers := ledger.NewContainerLookup(rpcClient, cfg.Ledger.ContainerAccount)
	broadcaster := ledger.NewBroadcaster(cfg.Ledger.BroadcastURL, ledgerClient, zlog)

	thumbnailPublisher := service.NewThumbnailPublisher(uploadService, images, contentStore, observer, zlog)
	orchestrator := service.NewUploadOrchestrator(videoUploader, extractor, thumbnailPublisher, thumbnailAssigner, observer, zlog)
	assembler := service.NewPostAssembler(containers, service.AssemblerConfig{
		ContainerAccount: cfg.Ledger.ContainerAccount,
		ReservedTag:      cfg.Ledger.ReservedTag,
		CommunityTag:     cfg.Ledger.CommunityTag,
		App:              cfg.AppName,
	})
	publishService := service.NewPublishService(broadcaster, publishedPostRepo, service.PublishConfig{
		Beneficiary:       cfg.Ledger.Beneficiary,
		BeneficiaryWeight: cfg.Ledger.BeneficiaryWeight,
		MaxAcceptedPayout: cfg.Ledger.MaxAcceptedPayout,
	}, observer, zlog)
	composerService := service.NewComposerService(
		repository.NewDraftRepository(),
		uploadService,
		images,
		orchestrator,
		assembler,
		publishService,
		service.ComposerConfig{TempDir: os.TempDir(), VideoEnabled: cfg.Video.APIKey != ""},
		observer,
		zlog)

	app := fiber.New(fiber.Config{
		ReadTimeout:  10 * time.Minute,
		WriteTimeout: 10 * time.Minute,
		BodyLimit:    512 * 1024 * 1024, // 512 MB
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			message := apperrors.GetMessage(err)
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
				message = e.Message
			}
			zlog.Error("Unhandled error", zap.String("trace_id", middleware.GetTraceID(c)), zap.Error(err))
			return c.Status(code).JSON(fiber.Map{"error": message})
		},
	})

	app.Use(middleware.TraceID())
	app.Use(logger.New(logger.Config{
		Format: "${time} ${locals:trace_id} ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.FrontendURL,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Trace-ID",
		ExposeHeaders:    "X-Trace-ID",
		AllowCredentials: true,
		MaxAge:           3600,
	}))

	authMiddleware := middleware.NewAuthMiddleware(*cfg, zlog)
	submitLimiter := middleware.NewSubmitLimiter(cfg.SubmitRatePer, 1)

	api := app.Group("/api")
	api.Use(authMiddleware.AuthMiddleware())

	drafts := handlers.NewDraftHandler(composerService, zlog)
	posts := handlers.NewPostHandler(publishService, zlog)
	handlers.RegisterRoutes(api, drafts, posts, submitLimiter.Handler())

	// cron jobs
	draftExpiryJob := job.NewDraftExpiryJob(composerService, cfg.DraftTTL, zlog)

	c := cron.New()
	if err := c.AddFunc(job.ExpirySchedule, draftExpiryJob.ExpireDrafts); err != nil {
		zlog.Fatal("Failed to schedule draft expiry", zap.Error(err))
	}
	if err := c.AddFunc(job.ExpirySchedule, func() { submitLimiter.Prune() }); err != nil {
		zlog.Fatal("Failed to schedule rate limiter pruning", zap.Error(err))
	}
	c.Start()

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			zlog.Fatal("Failed to start server", zap.Error(err))
		}
	}()
	zlog.Info("Server is running", zap.String("port", cfg.Port), zap.String("env", cfg.Env))

	gracefulShutdown(app, c, composerService, zlog)
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "development" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func newImageDestination(cfg *config.Config, client *http.Client) (upload.Destination, error) {
	switch cfg.ImageHost.Provider {
	case "r2":
		r2Client, err := upload.NewR2Client(context.Background(), cfg.R2)
		if err != nil {
			return nil, err
		}
		return upload.NewR2Destination(r2Client, cfg.R2.BucketName, cfg.R2.PublicURL), nil
	default:
		signer := upload.NewRemoteSigner(cfg.ImageHost.SignerURL, client)
		return upload.NewHiveImageHost(cfg.ImageHost.URL, signer, client), nil
	}
}

func closeDB(db *sql.DB, zlog *zap.Logger) {
	if err := db.Close(); err != nil {
		zlog.Error("Failed to close database", zap.Error(err))
		return
	}
	zlog.Info("Database connection closed")
}

func gracefulShutdown(app *fiber.App, c *cron.Cron, composer service.ComposerService, zlog *zap.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	zlog.Info("Shutting down server...")

	if err := app.Shutdown(); err != nil {
		zlog.Error("Failed to shut down server", zap.Error(err))
	}
	c.Stop()

	// Cancel in-flight uploads and wait for their temp files to be released.
	composer.ExpireDrafts(context.Background(), -time.Second)
	composer.Wait()

	zlog.Info("Server shutdown complete.")
}
