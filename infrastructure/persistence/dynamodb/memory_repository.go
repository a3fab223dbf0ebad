package dynamodb

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"engram-backend/application/ports"
	"engram-backend/domain/core/entities"
	"engram-backend/domain/core/valueobjects"
	domainservices "engram-backend/domain/services"
	apperrors "engram-backend/pkg/errors"
	"engram-backend/pkg/observability"
)

// MemoryRepository implements ports.MemoryRepository on DynamoDB. Candidate
// ranking for the fusion legs happens in process: DynamoDB narrows to the
// tenant's current rows, the scorer and the embedding distance do the rest.
type MemoryRepository struct {
	client  *dynamodb.Client
	config  TableConfig
	scorer  domainservices.RelevanceScorer
	metrics *observability.Collector
	logger  *zap.Logger
}

// NewMemoryRepository creates a DynamoDB-backed memory repository
func NewMemoryRepository(client *dynamodb.Client, config TableConfig, scorer domainservices.RelevanceScorer, metrics *observability.Collector, logger *zap.Logger) *MemoryRepository {
	if scorer == nil {
		scorer = domainservices.NewDefaultRelevanceScorer(nil, nil)
	}
	return &MemoryRepository{
		client:  client,
		config:  config,
		scorer:  scorer,
		metrics: metrics,
		logger:  logger,
	}
}

var _ ports.MemoryRepository = (*MemoryRepository)(nil)

// Save persists a row with optimistic locking
func (r *MemoryRepository) Save(ctx context.Context, m *entities.Memory) error {
	start := time.Now()
	defer r.observe("save_memory", start)

	item, err := attributevalue.MarshalMap(toMemoryRecord(m))
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal memory item")
	}

	var condition expression.ConditionBuilder
	if m.Version() > 1 {
		condition = expression.Name("Version").Equal(expression.Value(m.Version() - 1))
	} else {
		condition = expression.Name("PK").AttributeNotExists()
	}
	expr, err := expression.NewBuilder().WithCondition(condition).Build()
	if err != nil {
		return apperrors.Wrap(err, "failed to build condition expression")
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                 aws.String(r.config.TableName),
		Item:                      item,
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		return mapConditionFailure(err, "memory version conflict")
	}

	r.logger.Debug("memory saved",
		zap.String("memory_id", m.ID().String()),
		zap.Int("version", m.Version()))
	return nil
}

// GetByID retrieves a row within a tenant
func (r *MemoryRepository) GetByID(ctx context.Context, tenantID string, id valueobjects.MemoryID) (*entities.Memory, error) {
	start := time.Now()
	defer r.observe("get_memory", start)

	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.config.TableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: tenantPK(tenantID)},
			"SK": &types.AttributeValueMemberS{Value: fmt.Sprintf("MEMORY#%s", id.String())},
		},
	})
	if err != nil {
		return nil, mapAPIError(err, "failed to get memory item")
	}
	if result.Item == nil {
		return nil, apperrors.NewNotFound("memory not found")
	}

	var rec memoryRecord
	if err := attributevalue.UnmarshalMap(result.Item, &rec); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal memory item")
	}
	return rec.toEntity()
}

// GetCurrent retrieves the current row of a lineage via the lineage index
func (r *MemoryRepository) GetCurrent(ctx context.Context, tenantID string, lineageID valueobjects.LineageID) (*entities.Memory, error) {
	rows, err := r.GetLineage(ctx, tenantID, lineageID)
	if err != nil {
		return nil, err
	}
	for _, m := range rows {
		if m.IsCurrent() {
			return m, nil
		}
	}
	return nil, apperrors.NewNotFound("memory not found")
}

// GetLineage retrieves every row of a lineage ordered by valid-from
func (r *MemoryRepository) GetLineage(ctx context.Context, tenantID string, lineageID valueobjects.LineageID) ([]*entities.Memory, error) {
	start := time.Now()
	defer r.observe("get_lineage", start)

	keyExpr := expression.Key("GSI1PK").Equal(expression.Value(fmt.Sprintf("LINEAGE#%s", lineageID.String())))
	filterExpr := expression.Name("TenantID").Equal(expression.Value(tenantID))
	expr, err := expression.NewBuilder().WithKeyCondition(keyExpr).WithFilter(filterExpr).Build()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to build lineage query")
	}

	var out []*entities.Memory
	var lastKey map[string]types.AttributeValue
	for {
		result, err := r.client.Query(ctx, &dynamodb.QueryInput{
			TableName:                 aws.String(r.config.TableName),
			IndexName:                 aws.String(r.config.LineageIndexName),
			KeyConditionExpression:    expr.KeyCondition(),
			FilterExpression:          expr.Filter(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
			ScanIndexForward:          aws.Bool(true),
			ExclusiveStartKey:         lastKey,
		})
		if err != nil {
			return nil, mapAPIError(err, "failed to query lineage")
		}

		for _, item := range result.Items {
			var rec memoryRecord
			if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
				r.logger.Warn("failed to unmarshal memory item", zap.Error(err))
				continue
			}
			m, err := rec.toEntity()
			if err != nil {
				r.logger.Warn("failed to reconstruct memory", zap.Error(err))
				continue
			}
			out = append(out, m)
		}

		lastKey = result.LastEvaluatedKey
		if lastKey == nil {
			break
		}
	}
	return out, nil
}

// SaveVersionPair writes the closed row and its successor in one transaction,
// conditional on the closed row's read version
func (r *MemoryRepository) SaveVersionPair(ctx context.Context, closed, successor *entities.Memory) error {
	start := time.Now()
	defer r.observe("save_version_pair", start)

	closedItem, err := attributevalue.MarshalMap(toMemoryRecord(closed))
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal closed memory item")
	}
	successorItem, err := attributevalue.MarshalMap(toMemoryRecord(successor))
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal successor memory item")
	}

	closedExpr, err := expression.NewBuilder().
		WithCondition(expression.Name("Version").Equal(expression.Value(closed.Version() - 1))).
		Build()
	if err != nil {
		return apperrors.Wrap(err, "failed to build supersede condition")
	}
	successorExpr, err := expression.NewBuilder().
		WithCondition(expression.Name("PK").AttributeNotExists()).
		Build()
	if err != nil {
		return apperrors.Wrap(err, "failed to build successor condition")
	}

	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{
				TableName:                 aws.String(r.config.TableName),
				Item:                      closedItem,
				ConditionExpression:       closedExpr.Condition(),
				ExpressionAttributeNames:  closedExpr.Names(),
				ExpressionAttributeValues: closedExpr.Values(),
			}},
			{Put: &types.Put{
				TableName:                 aws.String(r.config.TableName),
				Item:                      successorItem,
				ConditionExpression:       successorExpr.Condition(),
				ExpressionAttributeNames:  successorExpr.Names(),
				ExpressionAttributeValues: successorExpr.Values(),
			}},
		},
	})
	if err != nil {
		return mapConditionFailure(err, "memory version conflict")
	}

	r.logger.Debug("memory superseded",
		zap.String("lineage_id", closed.LineageID().String()),
		zap.String("old_id", closed.ID().String()),
		zap.String("new_id", successor.ID().String()))
	return nil
}

// Delete removes a row permanently
func (r *MemoryRepository) Delete(ctx context.Context, tenantID string, id valueobjects.MemoryID) error {
	start := time.Now()
	defer r.observe("delete_memory", start)

	expr, err := expression.NewBuilder().
		WithCondition(expression.Name("PK").AttributeExists()).
		Build()
	if err != nil {
		return apperrors.Wrap(err, "failed to build delete condition")
	}

	_, err = r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.config.TableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: tenantPK(tenantID)},
			"SK": &types.AttributeValueMemberS{Value: fmt.Sprintf("MEMORY#%s", id.String())},
		},
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		// The existence condition failing means there was nothing to delete
		if apperrors.IsConflict(mapConditionFailure(err, "delete failed")) {
			return apperrors.NewNotFound("memory not found")
		}
		return apperrors.Wrap(err, "failed to delete memory item")
	}
	return nil
}

// VectorTopK ranks the tenant's current rows by cosine distance in process
func (r *MemoryRepository) VectorTopK(ctx context.Context, filter valueobjects.Filter, query valueobjects.Embedding, k int) ([]ports.RankedMemory, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()
	defer r.observe("vector_topk", start)

	rows, err := r.queryCurrent(ctx, filter.TenantID)
	if err != nil {
		return nil, err
	}

	var ranked []ports.RankedMemory
	for _, m := range rows {
		if m.IsArchived() || m.Embedding().IsStale() {
			continue
		}
		if !filter.Matches(m.Attributes()) {
			continue
		}
		ranked = append(ranked, ports.RankedMemory{Memory: m, Score: m.Embedding().Distance(query)})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score < ranked[j].Score
		}
		return ranked[i].Memory.ID().String() < ranked[j].Memory.ID().String()
	})
	if len(ranked) > k {
		ranked = ranked[:k]
	}
	return ranked, nil
}

// KeywordTopK ranks the tenant's current rows by keyword relevance in process
func (r *MemoryRepository) KeywordTopK(ctx context.Context, filter valueobjects.Filter, queryText string, k int) ([]ports.RankedMemory, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()
	defer r.observe("keyword_topk", start)

	rows, err := r.queryCurrent(ctx, filter.TenantID)
	if err != nil {
		return nil, err
	}

	terms := r.scorer.QueryTerms(queryText)
	var ranked []ports.RankedMemory
	for _, m := range rows {
		if m.IsArchived() {
			continue
		}
		if !filter.Matches(m.Attributes()) {
			continue
		}
		score := r.scorer.Score(terms, m.Keywords())
		if score <= 0 {
			continue
		}
		ranked = append(ranked, ports.RankedMemory{Memory: m, Score: score})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Memory.ID().String() < ranked[j].Memory.ID().String()
	})
	if len(ranked) > k {
		ranked = ranked[:k]
	}
	return ranked, nil
}

// ListAsOf scans the tenant partition for rows whose interval contains t
func (r *MemoryRepository) ListAsOf(ctx context.Context, filter valueobjects.Filter, t time.Time) ([]*entities.Memory, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()
	defer r.observe("list_as_of", start)

	rows, err := r.queryTenant(ctx, filter.TenantID)
	if err != nil {
		return nil, err
	}

	var out []*entities.Memory
	for _, m := range rows {
		if !filter.Matches(m.Attributes()) {
			continue
		}
		if m.Interval().Contains(t) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID().String() < out[j].ID().String()
	})
	return out, nil
}

// ListByValidFrom scans the tenant partition for rows whose validity started
// inside [start, end), superseded ones included
func (r *MemoryRepository) ListByValidFrom(ctx context.Context, filter valueobjects.Filter, start, end time.Time) ([]*entities.Memory, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	begin := time.Now()
	defer r.observe("list_by_valid_from", begin)

	rows, err := r.queryTenant(ctx, filter.TenantID)
	if err != nil {
		return nil, err
	}

	var out []*entities.Memory
	for _, m := range rows {
		if !filter.Matches(m.Attributes()) {
			continue
		}
		from := m.Interval().From()
		if from.Before(start) || !from.Before(end) {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Interval().From().Equal(out[j].Interval().From()) {
			return out[i].Interval().From().Before(out[j].Interval().From())
		}
		return out[i].ID().String() < out[j].ID().String()
	})
	return out, nil
}

// ListCurrent returns current rows matching the filter
func (r *MemoryRepository) ListCurrent(ctx context.Context, filter valueobjects.Filter, includeArchived bool) ([]*entities.Memory, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()
	defer r.observe("list_current", start)

	rows, err := r.queryCurrent(ctx, filter.TenantID)
	if err != nil {
		return nil, err
	}

	var out []*entities.Memory
	for _, m := range rows {
		if m.IsArchived() && !includeArchived {
			continue
		}
		if !filter.Matches(m.Attributes()) {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID().String() < out[j].ID().String()
	})
	return out, nil
}

// ListDecayCandidates returns unarchived current rows idle past the cutoff
func (r *MemoryRepository) ListDecayCandidates(ctx context.Context, tenantID string, cutoff time.Time, floor float64) ([]*entities.Memory, error) {
	start := time.Now()
	defer r.observe("list_decay_candidates", start)

	rows, err := r.queryCurrent(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	var out []*entities.Memory
	for _, m := range rows {
		if m.IsArchived() || m.LastAccessedAt().After(cutoff) || m.Importance() <= floor {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID().String() < out[j].ID().String()
	})
	return out, nil
}

// ListTenants scans for distinct tenants. Only the background maintenance
// scheduler calls this, never a request path.
func (r *MemoryRepository) ListTenants(ctx context.Context) ([]string, error) {
	start := time.Now()
	defer r.observe("list_tenants", start)

	expr, err := expression.NewBuilder().
		WithFilter(expression.Name("EntityType").Equal(expression.Value(entityMemory))).
		WithProjection(expression.NamesList(expression.Name("TenantID"))).
		Build()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to build tenant scan")
	}

	seen := make(map[string]bool)
	var tenants []string
	var lastKey map[string]types.AttributeValue
	for {
		result, err := r.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:                 aws.String(r.config.TableName),
			FilterExpression:          expr.Filter(),
			ProjectionExpression:      expr.Projection(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
			ExclusiveStartKey:         lastKey,
		})
		if err != nil {
			return nil, mapAPIError(err, "failed to scan tenants")
		}

		for _, item := range result.Items {
			if v, ok := item["TenantID"].(*types.AttributeValueMemberS); ok && !seen[v.Value] {
				seen[v.Value] = true
				tenants = append(tenants, v.Value)
			}
		}

		lastKey = result.LastEvaluatedKey
		if lastKey == nil {
			break
		}
	}
	sort.Strings(tenants)
	return tenants, nil
}

// queryCurrent pages the tenant's current rows from the scope index
func (r *MemoryRepository) queryCurrent(ctx context.Context, tenantID string) ([]*entities.Memory, error) {
	keyExpr := expression.Key("GSI2PK").Equal(expression.Value(fmt.Sprintf("%s#CURRENT", tenantPK(tenantID))))
	expr, err := expression.NewBuilder().WithKeyCondition(keyExpr).Build()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to build current-rows query")
	}
	return r.pageQuery(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.config.TableName),
		IndexName:                 aws.String(r.config.ScopeIndexName),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
}

// queryTenant pages every memory row in the tenant partition
func (r *MemoryRepository) queryTenant(ctx context.Context, tenantID string) ([]*entities.Memory, error) {
	keyExpr := expression.Key("PK").Equal(expression.Value(tenantPK(tenantID))).
		And(expression.Key("SK").BeginsWith("MEMORY#"))
	expr, err := expression.NewBuilder().WithKeyCondition(keyExpr).Build()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to build tenant query")
	}
	return r.pageQuery(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.config.TableName),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
}

func (r *MemoryRepository) pageQuery(ctx context.Context, input *dynamodb.QueryInput) ([]*entities.Memory, error) {
	var out []*entities.Memory
	var lastKey map[string]types.AttributeValue
	for {
		input.ExclusiveStartKey = lastKey
		result, err := r.client.Query(ctx, input)
		if err != nil {
			return nil, mapAPIError(err, "failed to query memory rows")
		}

		for _, item := range result.Items {
			var rec memoryRecord
			if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
				r.logger.Warn("failed to unmarshal memory item", zap.Error(err))
				continue
			}
			m, err := rec.toEntity()
			if err != nil {
				r.logger.Warn("failed to reconstruct memory", zap.Error(err))
				continue
			}
			out = append(out, m)
		}

		lastKey = result.LastEvaluatedKey
		if lastKey == nil {
			break
		}
	}
	return out, nil
}

func (r *MemoryRepository) observe(op string, start time.Time) {
	if r.metrics == nil {
		return
	}
	r.metrics.DBOperations.WithLabelValues(op).Inc()
	r.metrics.DBDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
