package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"underwriting-service/internal/ai/gemini"
	"underwriting-service/internal/config"
	miniodb "underwriting-service/internal/database/minio"
	"underwriting-service/internal/database/postgres"
	redisdb "underwriting-service/internal/database/redis"
	"underwriting-service/internal/event"
	"underwriting-service/internal/handlers"
	"underwriting-service/internal/repository"
	"underwriting-service/internal/services"
	"underwriting-service/internal/store"
	"underwriting-service/internal/workflow"

	"github.com/gofiber/fiber/v3"
	"github.com/jmoiron/sqlx"
)

func setupLogging() (*os.File, error) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Printf("Recovered from panic: %v\n", r)
		}
	}()

	logDir := filepath.Join("/underwriting", "log", "underwriting_service")
	fmt.Println("Log directory:", logDir)
	err := os.MkdirAll(logDir, 0o755)
	if err != nil {
		return nil, fmt.Errorf("failed to create log directory: %v", err)
	}

	currentTime := time.Now()
	logFileName := fmt.Sprintf("log_%s.log", currentTime.Format("2006-01-02"))
	logFile := filepath.Join(logDir, logFileName)

	file, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %v", err)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(io.MultiWriter(os.Stdout, file), nil)))
	return file, nil
}

func main() {
	logFile, err := setupLogging()
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer logFile.Close()

	cfg := config.New()

	slog.Info("Connecting to PostgreSQL",
		"host", cfg.PostgresCfg.Host, "port", cfg.PostgresCfg.Port,
		"user", cfg.PostgresCfg.Username, "dbname", cfg.PostgresCfg.DBname)
	db, err := postgres.Connect(cfg.PostgresCfg)
	if err != nil {
		slog.Error("PostgreSQL unavailable, collections start mirrored", "error", err)
		db = nil
	}
	if db != nil {
		defer db.Close()
	}

	ctx := context.Background()
	gateway, err := store.NewGateway(ctx, db, repository.Collections())
	if err != nil {
		log.Fatalf("Failed to initialize persistence gateway: %v", err)
	}

	var cache *redisdb.Client
	if c, err := redisdb.NewRedisClient(cfg.RedisCfg); err != nil {
		slog.Warn("Redis unavailable, checkpoint cache disabled", "error", err)
	} else {
		cache = c
		defer cache.Close()
	}

	var archiver workflow.DocumentArchiver
	if mc, err := miniodb.NewMinioClient(cfg.MinioCfg); err != nil {
		slog.Warn("MinIO unavailable, policy documents will not be archived", "error", err)
	} else {
		archiver = mc
	}

	rabbitConn, err := event.ConnectRabbitMQ(cfg.RabbitMQCfg)
	if err != nil {
		slog.Warn("RabbitMQ unavailable, lifecycle events disabled", "error", err)
	} else {
		defer rabbitConn.Close()
	}
	publisher := event.NewLifecyclePublisher(rabbitConn)

	selector, err := buildGeminiSelector(cfg.GeminiAPICfg)
	if err != nil {
		log.Fatalf("Failed to initialize Gemini clients: %v", err)
	}

	// repositories
	checkpointRepo := repository.NewCheckpointRepository(gateway, cache, cfg.WorkflowCfg)
	questionRepo := repository.NewQuestionRepository(gateway)

	// engine and services
	engine := workflow.NewEngine(
		cfg.WorkflowCfg,
		&workflow.GeminiGenerator{Selector: selector},
		&workflow.GeminiDocumentGenerator{Selector: selector},
		checkpointRepo,
		questionRepo,
		archiver,
		publisher,
	)
	workflowService := services.NewWorkflowService(engine, checkpointRepo, questionRepo, cfg.WorkflowCfg)
	if err := workflowService.StartSweeper(); err != nil {
		log.Fatalf("Failed to start checkpoint sweeper: %v", err)
	}
	defer workflowService.StopSweeper()

	// handlers
	app := fiber.New()
	workflowHandler := handlers.NewWorkflowHandler(workflowService, publisher)
	workflowHandler.Register(app)

	// when the database comes up later, promote the mirrored collections
	if db == nil {
		go postgres.RetryConnect(30*time.Second, cfg.PostgresCfg, func(connected *sqlx.DB) {
			gateway.Adopt(context.Background(), connected)
		})
	}

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("Starting underwriting-service", "port", cfg.Port)
		if err := app.Listen(fmt.Sprintf("0.0.0.0:%s", cfg.Port)); err != nil {
			log.Fatalf("Error starting server: %v", err)
		}
	}()

	<-shutdownChan
	slog.Info("Shutting down underwriting-service")
	if err := app.Shutdown(); err != nil {
		slog.Error("Server shutdown failed", "error", err)
	}
}

// buildGeminiSelector accepts one or more comma-separated API keys and
// builds the round-robin client pool.
func buildGeminiSelector(cfg config.GeminiAPIConfig) (*gemini.GeminiClientSelector, error) {
	var clients []gemini.GeminiClient
	for _, key := range strings.Split(cfg.APIKey, ",") {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		client, err := gemini.NewGenAIClient(key, cfg.FlashName, cfg.ProName)
		if err != nil {
			return nil, err
		}
		clients = append(clients, *client)
	}
	if len(clients) == 0 {
		return nil, fmt.Errorf("no Gemini API keys configured")
	}
	return gemini.NewGeminiClientSelector(clients), nil
}
