package main

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

type Config struct {
	DataFile           string
	TableName          string
	QueueURL           string
	DistributionWindow int
	Rekey              bool

	Region         string
	DynamoEndpoint string
	SQSEndpoint    string
}

func loadConfig(c *cli.Context) Config {
	rawWindow := c.String("distribution-window")
	window, ok := ParseDistributionWindow(rawWindow)
	if !ok {
		log.Warn().
			Str("distribution_window", rawWindow).
			Int("using", window).
			Msg("Distribution window out of range or not a number")
	}

	return Config{
		DataFile:           c.String("data-file"),
		TableName:          c.String("table-name"),
		QueueURL:           c.String("queue-url"),
		DistributionWindow: window,
		Rekey:              c.Bool("rekey"),
		Region:             c.String("region"),
		DynamoEndpoint:     c.String("dynamodb-endpoint"),
		SQSEndpoint:        c.String("sqs-endpoint"),
	}
}

func (cfg Config) require(names ...string) error {
	values := map[string]string{
		"data-file":  cfg.DataFile,
		"table-name": cfg.TableName,
		"queue-url":  cfg.QueueURL,
	}
	for _, n := range names {
		if values[n] == "" {
			return fmt.Errorf("--%s is required", n)
		}
	}
	return nil
}

func (cfg Config) loadDataset() (*Dataset, error) {
	ds, err := LoadDataset(cfg.DataFile, WithRekey(cfg.Rekey))
	if err != nil {
		return nil, err
	}
	log.Info().Str("file", cfg.DataFile).Int("records", ds.Len()).Bool("rekey", cfg.Rekey).Msg("Dataset ready")
	return ds, nil
}

func newAWSConfig(ctx context.Context, cfg Config) (aws.Config, error) {
	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	awsCFG, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return awsCFG, nil
}

func newDynamoClient(awsCFG aws.Config, endpoint string) *dynamodb.Client {
	return dynamodb.NewFromConfig(awsCFG, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
}

func newSQSClient(awsCFG aws.Config, endpoint string) *sqs.Client {
	return sqs.NewFromConfig(awsCFG, func(o *sqs.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
}
