package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

// handler names, matched against the Lambda function's configured handler
const (
	handlerBatchWriter   = "batch-writer"
	handlerQueueProducer = "queue-producer"
	handlerQueueConsumer = "queue-consumer"
)

func main() {
	// inside Lambda keep plain json lines for CloudWatch
	if os.Getenv("AWS_LAMBDA_FUNCTION_NAME") == "" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	_ = godotenv.Load()

	app := &cli.App{
		Name:   "dynamodb-slammer",
		Usage:  "Compare batched and queued writes to DynamoDB",
		Flags:  globalFlags(),
		Before: setLogLevel,
		Action: runLambda,
		Commands: []*cli.Command{
			{
				Name:   "batch-write",
				Usage:  "Write the dataset to the batch table once",
				Action: runBatchWrite,
			},
			{
				Name:   "produce",
				Usage:  "Enqueue the dataset once, spread across the distribution window",
				Action: runProduce,
			},
			{
				Name:  "consume",
				Usage: "Poll the queue and write message batches to the queue table",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "batch-size",
						Usage:   "Messages per batch (1-10)",
						Value:   5,
						EnvVars: []string{"CONSUMER_BATCH_SIZE"},
					},
					&cli.IntFlag{
						Name:  "wait-seconds",
						Usage: "Long polling wait time",
						Value: 20,
					},
					&cli.DurationFlag{
						Name:  "stats-interval",
						Usage: "How often to log queue stats, 0 disables",
						Value: 10 * time.Second,
					},
					metricsAddrFlag(),
				},
				Action: runConsume,
			},
			{
				Name:  "schedule",
				Usage: "Run a producer on a cron schedule",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "target",
						Usage:   "Which producer to run (batch, queue)",
						Value:   pipelineQueue,
						EnvVars: []string{"SCHEDULE_TARGET"},
					},
					&cli.StringFlag{
						Name:    "cron",
						Usage:   "Cron expression for runs",
						Value:   DefaultSchedule,
						EnvVars: []string{"SCHEDULE_CRON"},
					},
					&cli.BoolFlag{
						Name:  "run-on-start",
						Usage: "Run once immediately before waiting for the first tick",
					},
					metricsAddrFlag(),
				},
				Action: runSchedule,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("Application failed")
	}
}

func metricsAddrFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "metrics-addr",
		Usage:   "Serve /metrics and /healthz on this address, empty disables",
		EnvVars: []string{"METRICS_ADDR"},
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "handler",
			Usage:   "Lambda handler to serve (batch-writer, queue-producer, queue-consumer)",
			EnvVars: []string{"PIPELINE_HANDLER", "_HANDLER"},
		},
		&cli.StringFlag{
			Name:    "data-file",
			Usage:   "CSV dataset with a header row",
			Value:   "./MOCK_DATA.csv",
			EnvVars: []string{"DATA_FILE"},
		},
		&cli.StringFlag{
			Name:    "table-name",
			Usage:   "DynamoDB table to write to",
			EnvVars: []string{"TABLE_NAME"},
		},
		&cli.StringFlag{
			Name:    "queue-url",
			Usage:   "AWS SQS queue URL",
			EnvVars: []string{"QUEUE_URL"},
		},
		// a string so a malformed value falls back to the default instead of failing startup
		&cli.StringFlag{
			Name:    "distribution-window",
			Usage:   "Seconds to spread queued messages across (0-900)",
			EnvVars: []string{"DISTRIBUTION_WINDOW"},
		},
		&cli.BoolFlag{
			Name:    "rekey",
			Usage:   "Generate fresh keys on every run instead of once per process",
			EnvVars: []string{"REKEY_PER_INVOCATION"},
		},
		&cli.StringFlag{
			Name:    "region",
			Usage:   "AWS region, defaults to the SDK's resolution",
			EnvVars: []string{"AWS_REGION"},
		},
		&cli.StringFlag{
			Name:    "dynamodb-endpoint",
			Usage:   "Override the DynamoDB endpoint (e.g. LocalStack)",
			EnvVars: []string{"DYNAMODB_ENDPOINT"},
		},
		&cli.StringFlag{
			Name:    "sqs-endpoint",
			Usage:   "Override the SQS endpoint (e.g. LocalStack)",
			EnvVars: []string{"SQS_ENDPOINT"},
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "Log level (debug, info, warn, error)",
			Value:   "info",
			EnvVars: []string{"LOG_LEVEL"},
		},
	}
}

func setLogLevel(c *cli.Context) error {
	switch c.String("log-level") {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	return nil
}

func runLambda(c *cli.Context) error {
	cfg := loadConfig(c)
	metrics := NewMetrics(prometheus.NewRegistry())
	name := c.String("handler")

	log.Info().Str("handler", name).Msg("Starting lambda handler")

	switch name {
	case handlerBatchWriter:
		h, err := newBatchWriteHandler(c.Context, cfg, metrics)
		if err != nil {
			return err
		}
		// the scheduled event payload carries nothing we need
		lambda.Start(func(ctx context.Context, _ events.CloudWatchEvent) error {
			return h.Handle(ctx)
		})
	case handlerQueueProducer:
		h, err := newQueueProducerHandler(c.Context, cfg, metrics)
		if err != nil {
			return err
		}
		lambda.Start(func(ctx context.Context, _ events.CloudWatchEvent) error {
			return h.Handle(ctx)
		})
	case handlerQueueConsumer:
		h, err := newQueueConsumerHandler(c.Context, cfg, metrics)
		if err != nil {
			return err
		}
		lambda.Start(h.Handle)
	default:
		return fmt.Errorf("unknown handler %q, expected %s, %s or %s",
			name, handlerBatchWriter, handlerQueueProducer, handlerQueueConsumer)
	}
	return nil
}

func runBatchWrite(c *cli.Context) error {
	h, err := newBatchWriteHandler(c.Context, loadConfig(c), NewMetrics(prometheus.NewRegistry()))
	if err != nil {
		return err
	}
	return h.Handle(c.Context)
}

func runProduce(c *cli.Context) error {
	h, err := newQueueProducerHandler(c.Context, loadConfig(c), NewMetrics(prometheus.NewRegistry()))
	if err != nil {
		return err
	}
	return h.Handle(c.Context)
}

func runConsume(c *cli.Context) error {
	cfg := loadConfig(c)
	if err := cfg.require("queue-url"); err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	h, err := newQueueConsumerHandler(c.Context, cfg, NewMetrics(registry))
	if err != nil {
		return err
	}
	awsCFG, err := newAWSConfig(c.Context, cfg)
	if err != nil {
		return err
	}

	poller := NewPoller(newSQSClient(awsCFG, cfg.SQSEndpoint), h, PollerConfig{
		QueueURL:    cfg.QueueURL,
		BatchSize:   int32(c.Int("batch-size")),
		WaitSeconds: int32(c.Int("wait-seconds")),
		StatsEvery:  c.Duration("stats-interval"),
	})

	// ctrl-c or sigterm, which is what docker sends
	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if addr := c.String("metrics-addr"); addr != "" {
		defer serveMetrics(addr, registry)()
	}

	poller.Run(ctx)
	log.Info().Msg("Shutting down...")
	return nil
}

func runSchedule(c *cli.Context) error {
	cfg := loadConfig(c)
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	var job Job
	switch target := c.String("target"); target {
	case pipelineBatch:
		h, err := newBatchWriteHandler(c.Context, cfg, metrics)
		if err != nil {
			return err
		}
		job = h.Handle
	case pipelineQueue:
		h, err := newQueueProducerHandler(c.Context, cfg, metrics)
		if err != nil {
			return err
		}
		job = h.Handle
	default:
		return fmt.Errorf("invalid target: %s", target)
	}

	scheduler, err := NewScheduler(c.String("target"), c.String("cron"), job, c.Bool("run-on-start"))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if addr := c.String("metrics-addr"); addr != "" {
		defer serveMetrics(addr, registry)()
	}

	return scheduler.Run(ctx)
}

// serveMetrics starts the metrics server in the background and returns its
// shutdown func
func serveMetrics(addr string, registry *prometheus.Registry) func() {
	srv := &http.Server{Addr: addr, Handler: newMetricsRouter(registry)}
	go func() {
		log.Info().Str("addr", addr).Msg("Serving metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Metrics server failed")
		}
	}()
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}
}

func newMetricsRouter(registry *prometheus.Registry) http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	return r
}

func newBatchWriteHandler(ctx context.Context, cfg Config, metrics *Metrics) (*BatchWriteHandler, error) {
	if err := cfg.require("data-file", "table-name"); err != nil {
		return nil, err
	}
	ds, err := cfg.loadDataset()
	if err != nil {
		return nil, err
	}
	awsCFG, err := newAWSConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	store := NewDynamoStore(newDynamoClient(awsCFG, cfg.DynamoEndpoint), cfg.TableName, pipelineBatch, metrics)
	return NewBatchWriteHandler(ds, store), nil
}

func newQueueProducerHandler(ctx context.Context, cfg Config, metrics *Metrics) (*QueueProducerHandler, error) {
	if err := cfg.require("data-file", "queue-url"); err != nil {
		return nil, err
	}
	ds, err := cfg.loadDataset()
	if err != nil {
		return nil, err
	}
	awsCFG, err := newAWSConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	queue := NewSQSQueue(newSQSClient(awsCFG, cfg.SQSEndpoint), cfg.QueueURL, metrics)
	return NewQueueProducerHandler(ds, queue, cfg.DistributionWindow), nil
}

func newQueueConsumerHandler(ctx context.Context, cfg Config, metrics *Metrics) (*QueueConsumerHandler, error) {
	if err := cfg.require("table-name"); err != nil {
		return nil, err
	}
	awsCFG, err := newAWSConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	store := NewDynamoStore(newDynamoClient(awsCFG, cfg.DynamoEndpoint), cfg.TableName, pipelineQueue, metrics)
	return NewQueueConsumerHandler(store), nil
}
