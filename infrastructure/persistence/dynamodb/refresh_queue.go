package dynamodb

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"engram-backend/application/ports"
	"engram-backend/domain/core/valueobjects"
	apperrors "engram-backend/pkg/errors"
)

// refreshRecord is the DynamoDB shape of an embedding refresh job.
//
//	PK:     REFRESH               SK:     JOB#<id>
//	GSI1PK: REFRESH#<status>      GSI1SK: ENQUEUED#<enqueuedAt>
//	GSI2PK: REFRESHMEM#<memoryID> (pending and processing only)
type refreshRecord struct {
	PK     string `dynamodbav:"PK"`
	SK     string `dynamodbav:"SK"`
	GSI1PK string `dynamodbav:"GSI1PK"`
	GSI1SK string `dynamodbav:"GSI1SK"`
	GSI2PK string `dynamodbav:"GSI2PK,omitempty"`
	GSI2SK string `dynamodbav:"GSI2SK,omitempty"`

	EntityType string `dynamodbav:"EntityType"`
	JobID      string `dynamodbav:"JobID"`
	TenantID   string `dynamodbav:"TenantID"`
	MemoryID   string `dynamodbav:"MemoryID"`
	Content    string `dynamodbav:"Content"`
	Status     string `dynamodbav:"Status"`
	Attempts   int    `dynamodbav:"Attempts"`
	LastError  string `dynamodbav:"LastError,omitempty"`
	EnqueuedAt string `dynamodbav:"EnqueuedAt"`
	UpdatedAt  string `dynamodbav:"UpdatedAt"`
}

// RefreshQueue implements ports.EmbeddingQueue on DynamoDB. Claiming uses a
// conditional status flip, so concurrent workers never process the same job.
type RefreshQueue struct {
	client      *dynamodb.Client
	config      TableConfig
	maxAttempts int
	logger      *zap.Logger
}

// NewRefreshQueue creates a DynamoDB-backed refresh queue
func NewRefreshQueue(client *dynamodb.Client, config TableConfig, maxAttempts int, logger *zap.Logger) *RefreshQueue {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &RefreshQueue{client: client, config: config, maxAttempts: maxAttempts, logger: logger}
}

var _ ports.EmbeddingQueue = (*RefreshQueue)(nil)

// Enqueue adds a pending refresh job
func (q *RefreshQueue) Enqueue(ctx context.Context, job ports.RefreshJob) error {
	if job.ID == "" {
		return apperrors.NewValidation("refresh job requires an ID")
	}

	now := time.Now()
	enqueuedAt := job.EnqueuedAt
	if enqueuedAt.IsZero() {
		enqueuedAt = now
	}

	item, err := attributevalue.MarshalMap(refreshRecord{
		PK:         "REFRESH",
		SK:         fmt.Sprintf("JOB#%s", job.ID),
		GSI1PK:     statusPK(ports.RefreshPending),
		GSI1SK:     fmt.Sprintf("ENQUEUED#%s", formatTime(enqueuedAt)),
		GSI2PK:     fmt.Sprintf("REFRESHMEM#%s", job.MemoryID.String()),
		GSI2SK:     fmt.Sprintf("JOB#%s", job.ID),
		EntityType: entityRefresh,
		JobID:      job.ID,
		TenantID:   job.TenantID,
		MemoryID:   job.MemoryID.String(),
		Content:    job.Content,
		Status:     string(ports.RefreshPending),
		Attempts:   job.Attempts,
		EnqueuedAt: formatTime(enqueuedAt),
		UpdatedAt:  formatTime(now),
	})
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal refresh job")
	}

	_, err = q.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(q.config.TableName),
		Item:      item,
	})
	if err != nil {
		return apperrors.Wrap(err, "failed to enqueue refresh job")
	}
	return nil
}

// Dequeue claims up to limit pending jobs, oldest first
func (q *RefreshQueue) Dequeue(ctx context.Context, limit int) ([]ports.RefreshJob, error) {
	keyExpr := expression.Key("GSI1PK").Equal(expression.Value(statusPK(ports.RefreshPending)))
	expr, err := expression.NewBuilder().WithKeyCondition(keyExpr).Build()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to build pending-jobs query")
	}

	result, err := q.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(q.config.TableName),
		IndexName:                 aws.String(q.config.LineageIndexName),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ScanIndexForward:          aws.Bool(true),
		Limit:                     aws.Int32(int32(limit)),
	})
	if err != nil {
		return nil, mapAPIError(err, "failed to query pending jobs")
	}

	var claimed []ports.RefreshJob
	for _, item := range result.Items {
		var rec refreshRecord
		if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
			q.logger.Warn("failed to unmarshal refresh job", zap.Error(err))
			continue
		}

		job, err := q.claim(ctx, rec)
		if err != nil {
			// Another worker claimed it first; skip
			if apperrors.IsConflict(err) {
				continue
			}
			return nil, err
		}
		claimed = append(claimed, job)
	}
	return claimed, nil
}

// claim flips a job to processing, conditional on it still being pending
func (q *RefreshQueue) claim(ctx context.Context, rec refreshRecord) (ports.RefreshJob, error) {
	now := time.Now()
	update := expression.Set(expression.Name("Status"), expression.Value(string(ports.RefreshProcessing))).
		Set(expression.Name("GSI1PK"), expression.Value(statusPK(ports.RefreshProcessing))).
		Set(expression.Name("Attempts"), expression.Value(rec.Attempts+1)).
		Set(expression.Name("UpdatedAt"), expression.Value(formatTime(now)))
	condition := expression.Name("Status").Equal(expression.Value(string(ports.RefreshPending)))

	expr, err := expression.NewBuilder().WithUpdate(update).WithCondition(condition).Build()
	if err != nil {
		return ports.RefreshJob{}, apperrors.Wrap(err, "failed to build claim expression")
	}

	_, err = q.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(q.config.TableName),
		Key:                       q.jobKey(rec.JobID),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		return ports.RefreshJob{}, mapConditionFailure(err, "refresh job already claimed")
	}

	memoryID, err := valueobjects.NewMemoryIDFromString(rec.MemoryID)
	if err != nil {
		return ports.RefreshJob{}, apperrors.Wrap(err, "invalid stored memory ID")
	}
	return ports.RefreshJob{
		ID:         rec.JobID,
		TenantID:   rec.TenantID,
		MemoryID:   memoryID,
		Content:    rec.Content,
		Status:     ports.RefreshProcessing,
		Attempts:   rec.Attempts + 1,
		LastError:  rec.LastError,
		EnqueuedAt: parseTime(rec.EnqueuedAt),
		UpdatedAt:  now,
	}, nil
}

// Complete marks a job done and drops it from the memory-pending index
func (q *RefreshQueue) Complete(ctx context.Context, jobID string) error {
	update := expression.Set(expression.Name("Status"), expression.Value(string(ports.RefreshCompleted))).
		Set(expression.Name("GSI1PK"), expression.Value(statusPK(ports.RefreshCompleted))).
		Set(expression.Name("UpdatedAt"), expression.Value(formatTime(time.Now()))).
		Remove(expression.Name("GSI2PK")).
		Remove(expression.Name("GSI2SK"))
	condition := expression.Name("PK").AttributeExists()

	return q.updateJob(ctx, jobID, update, condition)
}

// Fail records a failed attempt, parking the job once attempts run out
func (q *RefreshQueue) Fail(ctx context.Context, jobID string, cause string) error {
	result, err := q.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(q.config.TableName),
		Key:       q.jobKey(jobID),
	})
	if err != nil {
		return mapAPIError(err, "failed to get refresh job")
	}
	if result.Item == nil {
		return apperrors.NewNotFound("refresh job not found")
	}

	var rec refreshRecord
	if err := attributevalue.UnmarshalMap(result.Item, &rec); err != nil {
		return apperrors.Wrap(err, "failed to unmarshal refresh job")
	}

	next := ports.RefreshPending
	if rec.Attempts >= q.maxAttempts {
		next = ports.RefreshFailed
	}

	update := expression.Set(expression.Name("Status"), expression.Value(string(next))).
		Set(expression.Name("GSI1PK"), expression.Value(statusPK(next))).
		Set(expression.Name("LastError"), expression.Value(cause)).
		Set(expression.Name("UpdatedAt"), expression.Value(formatTime(time.Now())))
	if next == ports.RefreshFailed {
		update = update.Remove(expression.Name("GSI2PK")).Remove(expression.Name("GSI2SK"))
	}
	condition := expression.Name("PK").AttributeExists()

	return q.updateJob(ctx, jobID, update, condition)
}

// HasPending reports whether a memory still has an unfinished job
func (q *RefreshQueue) HasPending(ctx context.Context, memoryID valueobjects.MemoryID) (bool, error) {
	keyExpr := expression.Key("GSI2PK").Equal(expression.Value(fmt.Sprintf("REFRESHMEM#%s", memoryID.String())))
	expr, err := expression.NewBuilder().WithKeyCondition(keyExpr).Build()
	if err != nil {
		return false, apperrors.Wrap(err, "failed to build pending-check query")
	}

	result, err := q.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(q.config.TableName),
		IndexName:                 aws.String(q.config.ScopeIndexName),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		Limit:                     aws.Int32(1),
	})
	if err != nil {
		return false, mapAPIError(err, "failed to query pending jobs for memory")
	}
	return len(result.Items) > 0, nil
}

func (q *RefreshQueue) updateJob(ctx context.Context, jobID string, update expression.UpdateBuilder, condition expression.ConditionBuilder) error {
	expr, err := expression.NewBuilder().WithUpdate(update).WithCondition(condition).Build()
	if err != nil {
		return apperrors.Wrap(err, "failed to build job update expression")
	}

	_, err = q.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(q.config.TableName),
		Key:                       q.jobKey(jobID),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		if apperrors.IsConflict(mapConditionFailure(err, "job update failed")) {
			return apperrors.NewNotFound("refresh job not found")
		}
		return apperrors.Wrap(err, "failed to update refresh job")
	}
	return nil
}

func (q *RefreshQueue) jobKey(jobID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: "REFRESH"},
		"SK": &types.AttributeValueMemberS{Value: fmt.Sprintf("JOB#%s", jobID)},
	}
}

func statusPK(status ports.RefreshJobStatus) string {
	return fmt.Sprintf("REFRESH#%s", status)
}
