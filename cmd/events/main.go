// Command events applies SES delivery-outcome notifications read from SQS.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/ignite/listflow/internal/app"
	"github.com/ignite/listflow/internal/config"
	"github.com/ignite/listflow/internal/pkg/logger"
	"github.com/ignite/listflow/internal/tracking"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	app.ConfigureLogger(cfg.Log)
	if cfg.Events.QueueURL == "" {
		logger.Error("events queue URL is required (LISTFLOW_EVENTS_QUEUE_URL)")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(ctx, cfg)
	if err != nil {
		logger.Error("failed to build services", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	consumer := tracking.NewConsumer(sqs.NewFromConfig(a.AWS), a.Interaction, cfg.Events)
	consumer.Start(ctx)

	<-ctx.Done()
	logger.Info("shutting down")
	consumer.Stop()
}
