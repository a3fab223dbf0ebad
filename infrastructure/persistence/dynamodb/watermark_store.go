package dynamodb

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"engram-backend/application/ports"
	apperrors "engram-backend/pkg/errors"
)

// watermarkRecord is the DynamoDB shape of a task watermark
type watermarkRecord struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	EntityType string `dynamodbav:"EntityType"`
	Task       string `dynamodbav:"Task"`
	LastRunAt  string `dynamodbav:"LastRunAt"`
}

// WatermarkStore implements ports.WatermarkStore on DynamoDB
type WatermarkStore struct {
	client *dynamodb.Client
	config TableConfig
}

// NewWatermarkStore creates a DynamoDB-backed watermark store
func NewWatermarkStore(client *dynamodb.Client, config TableConfig) *WatermarkStore {
	return &WatermarkStore{client: client, config: config}
}

var _ ports.WatermarkStore = (*WatermarkStore)(nil)

// Get returns the stored watermark for a task, zero time when unset
func (s *WatermarkStore) Get(ctx context.Context, task string) (time.Time, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.config.TableName),
		Key:       watermarkKey(task),
	})
	if err != nil {
		return time.Time{}, mapAPIError(err, "failed to get watermark")
	}
	if result.Item == nil {
		return time.Time{}, nil
	}

	var rec watermarkRecord
	if err := attributevalue.UnmarshalMap(result.Item, &rec); err != nil {
		return time.Time{}, apperrors.Wrap(err, "failed to unmarshal watermark")
	}
	return parseTime(rec.LastRunAt), nil
}

// Set stores the watermark for a task
func (s *WatermarkStore) Set(ctx context.Context, task string, at time.Time) error {
	item, err := attributevalue.MarshalMap(watermarkRecord{
		PK:         "WATERMARK",
		SK:         fmt.Sprintf("TASK#%s", task),
		EntityType: entityWatermark,
		Task:       task,
		LastRunAt:  formatTime(at),
	})
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal watermark")
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.config.TableName),
		Item:      item,
	})
	if err != nil {
		return apperrors.Wrap(err, "failed to store watermark")
	}
	return nil
}

func watermarkKey(task string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: "WATERMARK"},
		"SK": &types.AttributeValueMemberS{Value: fmt.Sprintf("TASK#%s", task)},
	}
}
