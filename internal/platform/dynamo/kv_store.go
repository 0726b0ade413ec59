package dynamo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/englishprint/papergen/internal/config"
	"github.com/englishprint/papergen/internal/platform/logger"
	"github.com/englishprint/papergen/internal/store"
)

// MaxItemSize is the DynamoDB limit on the size of one item.
const MaxItemSize = 400 * 1024

// updatedAtSize bounds the encoded size of the updated_at number.
const updatedAtSize = 21

var (
	// ErrMissingTable is returned when no table name is configured.
	ErrMissingTable = errors.New("dynamo table name is required")

	// ErrItemTooLarge is returned by Set when the item would exceed MaxItemSize.
	ErrItemTooLarge = errors.New("item exceeds the DynamoDB item size limit")
)

// API is the subset of *dynamodb.Client used by KVStore.
type API interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

type item struct {
	Key       string `dynamodbav:"key"`
	Value     []byte `dynamodbav:"value"`
	UpdatedAt int64  `dynamodbav:"updated_at"`
}

// KVStore implements store.KVStore on a DynamoDB table.
type KVStore struct {
	api    API
	table  string
	logger *slog.Logger
	now    func() time.Time
}

var _ store.KVStore = (*KVStore)(nil)

// NewClient builds a DynamoDB client from the default AWS credential chain.
// A non-empty cfg.Endpoint overrides the service endpoint, which is how
// DynamoDB Local is reached.
func NewClient(ctx context.Context, cfg config.DynamoConfig) (*dynamodb.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	}), nil
}

// NewKVStore creates a KVStore. If logger is nil, the default logger is used.
func NewKVStore(api API, table string, logger *slog.Logger) (*KVStore, error) {
	if api == nil {
		panic("dynamo api cannot be nil")
	}
	if table == "" {
		return nil, ErrMissingTable
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &KVStore{
		api:    api,
		table:  table,
		logger: logger.With(slog.String("component", "dynamo_kv_store")),
		now:    time.Now,
	}, nil
}

func keyAttr(key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"key": &types.AttributeValueMemberS{Value: key},
	}
}

// Get implements store.KVStore.
func (s *KVStore) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.table),
		Key:            keyAttr(key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to read key",
			slog.String("key", key),
			slog.String("error", err.Error()))
		return nil, store.NewStoreError("kv", "get", "failed to read key", err)
	}
	if len(out.Item) == 0 {
		return nil, store.ErrKeyNotFound
	}

	var it item
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return nil, store.NewStoreError("kv", "get", "failed to decode item", err)
	}
	return it.Value, nil
}

// itemSize approximates the DynamoDB size of an item: attribute names plus
// attribute values.
func itemSize(key string, value []byte) int {
	return len("key") + len(key) + len("value") + len(value) + len("updated_at") + updatedAtSize
}

// Set implements store.KVStore. Values that would not fit in one item are
// rejected without calling DynamoDB.
func (s *KVStore) Set(ctx context.Context, key string, value []byte) error {
	if size := itemSize(key, value); size > MaxItemSize {
		return store.NewStoreError("kv", "set", fmt.Sprintf("item for key %q is %d bytes", key, size), ErrItemTooLarge)
	}

	av, err := attributevalue.MarshalMap(item{Key: key, Value: value, UpdatedAt: s.now().UnixMilli()})
	if err != nil {
		return store.NewStoreError("kv", "set", "failed to encode item", err)
	}

	if _, err := s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      av,
	}); err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to write key",
			slog.String("key", key),
			slog.Int("size", len(value)),
			slog.String("error", err.Error()))
		return store.NewStoreError("kv", "set", "failed to write key", err)
	}
	return nil
}

// Remove implements store.KVStore.
func (s *KVStore) Remove(ctx context.Context, key string) error {
	if _, err := s.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.table),
		Key:       keyAttr(key),
	}); err != nil {
		return store.NewStoreError("kv", "remove", "failed to delete key", err)
	}
	return nil
}
