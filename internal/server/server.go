package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"autoinvoice/internal/auth"
	"autoinvoice/internal/counter"
	"autoinvoice/internal/database"
	"autoinvoice/internal/invoice"
	"autoinvoice/internal/storage"
)

type Server struct {
	port     int
	db       database.Service
	storage  *storage.Service
	counters counter.Store
	workflow *invoice.Workflow
	log      *zap.Logger
}

func (s *Server) GetDB() database.Service {
	return s.db
}

func (s *Server) GetStorage() *storage.Service {
	return s.storage
}

func (s *Server) GetWorkflow() *invoice.Workflow {
	return s.workflow
}

func (s *Server) Logger() *zap.Logger {
	return s.log
}

// NewServer wires the process-scoped singletons (credentials, Drive client,
// counter store, ledger, workflow) once and returns the configured listener.
func NewServer() *http.Server {
	port, _ := strconv.Atoi(os.Getenv("PORT"))
	if port == 0 {
		port = 5000
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	ctx := context.Background()

	client, err := auth.NewProvider(logger).Client(ctx)
	if err != nil {
		logger.Fatal("failed to load storage credentials", zap.Error(err))
	}

	driveService, err := storage.NewService(ctx, logger, option.WithHTTPClient(client))
	if err != nil {
		logger.Fatal("failed to initialize drive service", zap.Error(err))
	}

	counters, err := counter.NewFirestoreStore(ctx, logger)
	if err != nil {
		logger.Fatal("failed to initialize counter store", zap.Error(err))
	}

	db := database.New()

	workflow := invoice.NewWorkflow(counters, driveService, db,
		os.Getenv("TEMPLATE_DIR"), os.Getenv("WORK_DIR"), logger)

	NewServer := &Server{
		port:     port,
		db:       db,
		storage:  driveService,
		counters: counters,
		workflow: workflow,
		log:      logger,
	}

	// Declare Server config
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", NewServer.port),
		Handler:      NewServer.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return server
}
