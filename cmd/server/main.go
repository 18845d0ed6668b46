// Command server runs the GOES historic-file retrieval HTTP service: the
// chi router in internal/httpapi backed by the orchestration engine in
// internal/engine, following the teacher's cli.App + signal-driven
// graceful-shutdown shape.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"goesretrieval/internal/config"
	"goesretrieval/internal/engine"
	"goesretrieval/internal/httpapi"
	"goesretrieval/internal/logger"
	"goesretrieval/internal/remotestore"
	"goesretrieval/internal/store"
)

func main() {
	config.LoadDotEnv(".env")

	app := &cli.App{
		Name:    "goes-retrieval-server",
		Usage:   "Historic GOES satellite file retrieval service",
		Version: "0.1.0",
		Commands: []*cli.Command{
			{
				Name:   "server",
				Usage:  "Start the retrieval HTTP service",
				Flags:  config.Flags(),
				Action: runServer,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func runServer(c *cli.Context) error {
	cfg, err := config.FromCLI(c)
	if err != nil {
		return fmt.Errorf("resolving configuration: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctx = logger.WithLogger(ctx, logger.NewLoggerFromEnv())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("shutdown signal received, cleaning up...")
		cancel()
	}()

	st, err := store.Open(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("opening query store: %w", err)
	}
	defer st.Close()

	var remote *remotestore.Client
	if cfg.S3FallbackEnabled {
		remote, err = remotestore.NewClient(remotestore.Options{
			CutoverDate:    cfg.GOES19OperationalDate,
			ConnectTimeout: cfg.S3ConnectTimeout,
			ReadTimeout:    cfg.S3ReadTimeout,
			RetryAttempts:  cfg.S3RetryAttempts,
			RetryBackoff:   cfg.S3RetryBackoffSeconds,
			ProgressStep:   cfg.S3ProgressStep,
		})
		if err != nil {
			return fmt.Errorf("building S3 client: %w", err)
		}
	}

	engineCfg := engine.DefaultConfig()
	engineCfg.SourcePath = cfg.SourcePath
	engineCfg.DownloadPath = cfg.DownloadPath
	engineCfg.MaxWorkers = cfg.MaxWorkers
	engineCfg.LustreEnabled = cfg.LustreEnabled
	engineCfg.S3FallbackEnabled = cfg.S3FallbackEnabled
	engineCfg.FileProcessingTimeout = cfg.FileProcessingTimeout
	engineCfg.MaxFilesPerQuery = cfg.MaxFilesPerQuery
	engineCfg.MaxSizeMBPerQuery = cfg.MaxSizeMBPerQuery
	engineCfg.MinFreeSpaceGBBuffer = cfg.MinFreeSpaceGBBuffer
	engineCfg.S3RetryAttempts = cfg.S3RetryAttempts
	engineCfg.S3RetryBackoffSeconds = cfg.S3RetryBackoffSeconds
	engineCfg.S3ConnectTimeout = cfg.S3ConnectTimeout
	engineCfg.S3ReadTimeout = cfg.S3ReadTimeout
	engineCfg.S3ProgressStep = cfg.S3ProgressStep
	engineCfg.S3OnlyProducts = cfg.S3OnlyProducts
	engineCfg.GOES19OperationalDate = cfg.GOES19OperationalDate

	eng := engine.New(engineCfg, st, remote)
	api := httpapi.New(eng, st, cfg.APIKey)

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      api.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Println("GOES Historic Retrieval Service")
	log.Println("===============================")
	log.Printf("store: %s\n", cfg.DBPath)
	log.Printf("source path: %s\n", cfg.SourcePath)
	log.Printf("download path: %s\n", cfg.DownloadPath)
	log.Printf("lustre enabled: %v, s3 fallback enabled: %v\n", cfg.LustreEnabled, cfg.S3FallbackEnabled)
	log.Printf("listening at http://%s\n", addr)

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()

	log.Println("shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}

	log.Println("server stopped")
	return nil
}
