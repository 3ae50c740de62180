package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog"
)

// kvItem is the DynamoDB item layout of one key
type kvItem struct {
	Key   string `dynamodbav:"Key"`
	Value string `dynamodbav:"Value"`
}

// DynamoDBStore implements KV on a single DynamoDB table keyed by "Key"
type DynamoDBStore struct {
	client *dynamodb.Client
	table  string
	logger zerolog.Logger
}

// NewDynamoDBStore creates a new DynamoDB store
func NewDynamoDBStore(ctx context.Context, cfg Config, logger zerolog.Logger) (*DynamoDBStore, error) {
	var client *dynamodb.Client

	if cfg.Mode == ModeDynamoLocal {
		// For local mode, build the client directly without LoadDefaultConfig.
		// LoadDefaultConfig probes the EC2 IMDS endpoint which hangs on EC2
		// instances when static credentials are intended.
		client = dynamodb.New(dynamodb.Options{
			Region:       cfg.Region,
			BaseEndpoint: aws.String(cfg.Endpoint),
			Credentials:  credentials.NewStaticCredentialsProvider("local", "local", ""),
		})
	} else {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		client = dynamodb.NewFromConfig(awsCfg)
	}

	store := &DynamoDBStore{
		client: client,
		table:  cfg.DynamoTable,
		logger: logger,
	}

	if cfg.Mode == ModeDynamoLocal {
		if err := CreateTableIfNotExist(ctx, client, cfg.DynamoTable, logger); err != nil {
			return nil, err
		}
	}

	logger.Info().
		Str("mode", string(cfg.Mode)).
		Str("region", cfg.Region).
		Str("table", cfg.DynamoTable).
		Msg("DynamoDB store initialized")

	return store, nil
}

func (s *DynamoDBStore) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.table),
		Key:            map[string]dbtypes.AttributeValue{"Key": &dbtypes.AttributeValueMemberS{Value: key}},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}
	if len(out.Item) == 0 {
		return nil, ErrNotFound
	}

	var item kvItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return []byte(item.Value), nil
}

func (s *DynamoDBStore) Set(ctx context.Context, key string, value []byte) error {
	item, err := attributevalue.MarshalMap(kvItem{Key: key, Value: string(value)})
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to save %s: %w", key, err)
	}
	return nil
}

func (s *DynamoDBStore) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.table),
		Key:       map[string]dbtypes.AttributeValue{"Key": &dbtypes.AttributeValueMemberS{Value: key}},
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// ListKeys scans the table for keys starting with prefix. The table only
// holds a handful of weekly keys, a scan is fine here.
func (s *DynamoDBStore) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	builder := expression.NewBuilder().WithProjection(expression.NamesList(expression.Name("Key")))
	if prefix != "" {
		builder = builder.WithFilter(expression.Name("Key").BeginsWith(prefix))
	}
	expr, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build expression: %w", err)
	}

	var keys []string
	var lastKey map[string]dbtypes.AttributeValue
	for {
		input := &dynamodb.ScanInput{
			TableName:                 aws.String(s.table),
			ProjectionExpression:      expr.Projection(),
			FilterExpression:          expr.Filter(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
		}
		if lastKey != nil {
			input.ExclusiveStartKey = lastKey
		}

		result, err := s.client.Scan(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed to scan keys: %w", err)
		}

		var items []kvItem
		if err := attributevalue.UnmarshalListOfMaps(result.Items, &items); err != nil {
			return nil, fmt.Errorf("failed to unmarshal keys: %w", err)
		}
		for _, item := range items {
			keys = append(keys, item.Key)
		}

		lastKey = result.LastEvaluatedKey
		if lastKey == nil {
			break
		}
	}

	sort.Strings(keys)
	return keys, nil
}

// NewStore creates the appropriate store based on configuration
func NewStore(ctx context.Context, cfg Config, logger zerolog.Logger) (KV, error) {
	switch cfg.Mode {
	case ModeDynamoLocal, ModeDynamoAWS:
		return NewDynamoDBStore(ctx, cfg, logger)
	case ModePostgres:
		if cfg.PostgresDSN == "" {
			return nil, errors.New("DATABASE_URL is required for STORE_MODE=postgres")
		}
		return NewPostgresStore(ctx, cfg, logger)
	case ModeFile:
		logger.Info().Str("path", cfg.FilePath).Msg("file store initialized")
		return NewFileStore(cfg.FilePath)
	default:
		logger.Info().Msg("weekly counters kept in memory (STORE_MODE=memory)")
		return NewMemoryStore(), nil
	}
}
