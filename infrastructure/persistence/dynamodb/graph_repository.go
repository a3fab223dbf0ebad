package dynamodb

import (
	"context"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"engram-backend/application/ports"
	"engram-backend/domain/core/entities"
	apperrors "engram-backend/pkg/errors"
)

// nodeRecord is the DynamoDB shape of a graph node.
//
//	PK: TENANT#<tenant>  SK: GNODE#<name>#<label>
type nodeRecord struct {
	PK         string            `dynamodbav:"PK"`
	SK         string            `dynamodbav:"SK"`
	EntityType string            `dynamodbav:"EntityType"`
	NodeID     string            `dynamodbav:"NodeID"`
	TenantID   string            `dynamodbav:"TenantID"`
	Name       string            `dynamodbav:"Name"`
	Label      string            `dynamodbav:"Label"`
	Properties map[string]string `dynamodbav:"Properties,omitempty"`
	CreatedAt  string            `dynamodbav:"CreatedAt"`
	UpdatedAt  string            `dynamodbav:"UpdatedAt"`
}

// edgeRecord is the DynamoDB shape of a graph edge.
//
//	PK: TENANT#<tenant>  SK: GEDGE#<source>#<target>#<relation>
type edgeRecord struct {
	PK         string            `dynamodbav:"PK"`
	SK         string            `dynamodbav:"SK"`
	EntityType string            `dynamodbav:"EntityType"`
	EdgeID     string            `dynamodbav:"EdgeID"`
	TenantID   string            `dynamodbav:"TenantID"`
	SourceName string            `dynamodbav:"SourceName"`
	TargetName string            `dynamodbav:"TargetName"`
	Relation   string            `dynamodbav:"Relation"`
	Properties map[string]string `dynamodbav:"Properties,omitempty"`
	CreatedAt  string            `dynamodbav:"CreatedAt"`
	UpdatedAt  string            `dynamodbav:"UpdatedAt"`
}

// GraphRepository implements ports.GraphRepository on DynamoDB
type GraphRepository struct {
	client *dynamodb.Client
	config TableConfig
	logger *zap.Logger
}

// NewGraphRepository creates a DynamoDB-backed graph repository
func NewGraphRepository(client *dynamodb.Client, config TableConfig, logger *zap.Logger) *GraphRepository {
	return &GraphRepository{client: client, config: config, logger: logger}
}

var _ ports.GraphRepository = (*GraphRepository)(nil)

func nodeSK(name, label string) string {
	return fmt.Sprintf("GNODE#%s#%s", name, label)
}

func edgeSK(source, target, relation string) string {
	return fmt.Sprintf("GEDGE#%s#%s#%s", source, target, relation)
}

// SaveNode persists a node under its (name, label) identity
func (r *GraphRepository) SaveNode(ctx context.Context, node *entities.GraphNode) error {
	item, err := attributevalue.MarshalMap(nodeRecord{
		PK:         tenantPK(node.TenantID()),
		SK:         nodeSK(node.Name(), node.Label()),
		EntityType: entityGraphNode,
		NodeID:     node.ID(),
		TenantID:   node.TenantID(),
		Name:       node.Name(),
		Label:      node.Label(),
		Properties: node.Properties(),
		CreatedAt:  formatTime(node.CreatedAt()),
		UpdatedAt:  formatTime(node.UpdatedAt()),
	})
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal graph node")
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.config.TableName),
		Item:      item,
	})
	if err != nil {
		return apperrors.Wrap(err, "failed to save graph node")
	}
	return nil
}

// FindNode retrieves a node by its (name, label) identity
func (r *GraphRepository) FindNode(ctx context.Context, tenantID, name, label string) (*entities.GraphNode, error) {
	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.config.TableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: tenantPK(tenantID)},
			"SK": &types.AttributeValueMemberS{Value: nodeSK(name, label)},
		},
	})
	if err != nil {
		return nil, mapAPIError(err, "failed to get graph node")
	}
	if result.Item == nil {
		return nil, apperrors.NewNotFound("graph node not found")
	}

	var rec nodeRecord
	if err := attributevalue.UnmarshalMap(result.Item, &rec); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal graph node")
	}
	return rec.toEntity(), nil
}

// FindNodesByName retrieves all nodes with the given name regardless of label
func (r *GraphRepository) FindNodesByName(ctx context.Context, tenantID, name string) ([]*entities.GraphNode, error) {
	keyExpr := expression.Key("PK").Equal(expression.Value(tenantPK(tenantID))).
		And(expression.Key("SK").BeginsWith(fmt.Sprintf("GNODE#%s#", name)))
	expr, err := expression.NewBuilder().WithKeyCondition(keyExpr).Build()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to build node query")
	}

	var out []*entities.GraphNode
	var lastKey map[string]types.AttributeValue
	for {
		result, err := r.client.Query(ctx, &dynamodb.QueryInput{
			TableName:                 aws.String(r.config.TableName),
			KeyConditionExpression:    expr.KeyCondition(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
			ExclusiveStartKey:         lastKey,
		})
		if err != nil {
			return nil, mapAPIError(err, "failed to query graph nodes")
		}

		for _, item := range result.Items {
			var rec nodeRecord
			if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
				r.logger.Warn("failed to unmarshal graph node", zap.Error(err))
				continue
			}
			// The SK prefix also matches longer names sharing the prefix
			if rec.Name != name {
				continue
			}
			out = append(out, rec.toEntity())
		}

		lastKey = result.LastEvaluatedKey
		if lastKey == nil {
			break
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Label() < out[j].Label()
	})
	return out, nil
}

// SaveEdge persists an edge under its (source, target, relation) identity
func (r *GraphRepository) SaveEdge(ctx context.Context, edge *entities.GraphEdge) error {
	item, err := attributevalue.MarshalMap(edgeRecord{
		PK:         tenantPK(edge.TenantID()),
		SK:         edgeSK(edge.SourceName(), edge.TargetName(), edge.Relation()),
		EntityType: entityGraphEdge,
		EdgeID:     edge.ID(),
		TenantID:   edge.TenantID(),
		SourceName: edge.SourceName(),
		TargetName: edge.TargetName(),
		Relation:   edge.Relation(),
		Properties: edge.Properties(),
		CreatedAt:  formatTime(edge.CreatedAt()),
		UpdatedAt:  formatTime(edge.UpdatedAt()),
	})
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal graph edge")
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.config.TableName),
		Item:      item,
	})
	if err != nil {
		return apperrors.Wrap(err, "failed to save graph edge")
	}
	return nil
}

// FindEdge retrieves an edge by its (source, target, relation) identity
func (r *GraphRepository) FindEdge(ctx context.Context, tenantID, sourceName, targetName, relation string) (*entities.GraphEdge, error) {
	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.config.TableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: tenantPK(tenantID)},
			"SK": &types.AttributeValueMemberS{Value: edgeSK(sourceName, targetName, relation)},
		},
	})
	if err != nil {
		return nil, mapAPIError(err, "failed to get graph edge")
	}
	if result.Item == nil {
		return nil, apperrors.NewNotFound("graph edge not found")
	}

	var rec edgeRecord
	if err := attributevalue.UnmarshalMap(result.Item, &rec); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal graph edge")
	}
	return rec.toEntity(), nil
}

// EdgesTouching returns every edge with the named node on either side
func (r *GraphRepository) EdgesTouching(ctx context.Context, tenantID, name string) ([]*entities.GraphEdge, error) {
	keyExpr := expression.Key("PK").Equal(expression.Value(tenantPK(tenantID))).
		And(expression.Key("SK").BeginsWith("GEDGE#"))
	filterExpr := expression.Name("SourceName").Equal(expression.Value(name)).
		Or(expression.Name("TargetName").Equal(expression.Value(name)))
	expr, err := expression.NewBuilder().WithKeyCondition(keyExpr).WithFilter(filterExpr).Build()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to build edge query")
	}

	var out []*entities.GraphEdge
	var lastKey map[string]types.AttributeValue
	for {
		result, err := r.client.Query(ctx, &dynamodb.QueryInput{
			TableName:                 aws.String(r.config.TableName),
			KeyConditionExpression:    expr.KeyCondition(),
			FilterExpression:          expr.Filter(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
			ExclusiveStartKey:         lastKey,
		})
		if err != nil {
			return nil, mapAPIError(err, "failed to query graph edges")
		}

		for _, item := range result.Items {
			var rec edgeRecord
			if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
				r.logger.Warn("failed to unmarshal graph edge", zap.Error(err))
				continue
			}
			out = append(out, rec.toEntity())
		}

		lastKey = result.LastEvaluatedKey
		if lastKey == nil {
			break
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].SourceName() != out[j].SourceName() {
			return out[i].SourceName() < out[j].SourceName()
		}
		if out[i].Relation() != out[j].Relation() {
			return out[i].Relation() < out[j].Relation()
		}
		return out[i].TargetName() < out[j].TargetName()
	})
	return out, nil
}

func (rec nodeRecord) toEntity() *entities.GraphNode {
	return entities.ReconstructGraphNode(
		rec.NodeID, rec.TenantID, rec.Name, rec.Label,
		rec.Properties, parseTime(rec.CreatedAt), parseTime(rec.UpdatedAt),
	)
}

func (rec edgeRecord) toEntity() *entities.GraphEdge {
	return entities.ReconstructGraphEdge(
		rec.EdgeID, rec.TenantID, rec.SourceName, rec.TargetName, rec.Relation,
		rec.Properties, parseTime(rec.CreatedAt), parseTime(rec.UpdatedAt),
	)
}
