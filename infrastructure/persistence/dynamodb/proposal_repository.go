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
	"engram-backend/domain/core/valueobjects"
	apperrors "engram-backend/pkg/errors"
)

// proposalRecord is the DynamoDB shape of a promotion proposal.
//
//	PK:     PROPOSAL#<id>          SK:     META
//	GSI1PK: ORG#<orgID>#PROPOSAL   GSI1SK: CREATED#<createdAt>
//	GSI2PK: PROPMEM#<memoryID>     GSI2SK: TARGET#<target> (pending only)
type proposalRecord struct {
	PK     string `dynamodbav:"PK"`
	SK     string `dynamodbav:"SK"`
	GSI1PK string `dynamodbav:"GSI1PK"`
	GSI1SK string `dynamodbav:"GSI1SK"`
	GSI2PK string `dynamodbav:"GSI2PK,omitempty"`
	GSI2SK string `dynamodbav:"GSI2SK,omitempty"`

	EntityType string `dynamodbav:"EntityType"`
	ProposalID string `dynamodbav:"ProposalID"`
	MemoryID   string `dynamodbav:"MemoryID"`
	TenantID   string `dynamodbav:"TenantID"`
	OrgID      string `dynamodbav:"OrgID,omitempty"`
	ProposerID string `dynamodbav:"ProposerID"`
	Target     string `dynamodbav:"Target"`
	Status     string `dynamodbav:"Status"`
	ReviewerID string `dynamodbav:"ReviewerID,omitempty"`
	CreatedAt  string `dynamodbav:"CreatedAt"`
	DecidedAt  string `dynamodbav:"DecidedAt,omitempty"`
	Version    int    `dynamodbav:"Version"`
}

// ProposalRepository implements ports.ProposalRepository on DynamoDB
type ProposalRepository struct {
	client *dynamodb.Client
	config TableConfig
	logger *zap.Logger
}

// NewProposalRepository creates a DynamoDB-backed proposal repository
func NewProposalRepository(client *dynamodb.Client, config TableConfig, logger *zap.Logger) *ProposalRepository {
	return &ProposalRepository{client: client, config: config, logger: logger}
}

var _ ports.ProposalRepository = (*ProposalRepository)(nil)

// Save persists a proposal with optimistic locking
func (r *ProposalRepository) Save(ctx context.Context, proposal *entities.Proposal) error {
	rec := proposalRecord{
		PK:         fmt.Sprintf("PROPOSAL#%s", proposal.ID().String()),
		SK:         "META",
		GSI1PK:     fmt.Sprintf("ORG#%s#PROPOSAL", proposal.OrgID()),
		GSI1SK:     fmt.Sprintf("CREATED#%s", formatTime(proposal.CreatedAt())),
		EntityType: entityProposal,
		ProposalID: proposal.ID().String(),
		MemoryID:   proposal.MemoryID().String(),
		TenantID:   proposal.TenantID(),
		OrgID:      proposal.OrgID(),
		ProposerID: proposal.ProposerID(),
		Target:     proposal.Target().String(),
		Status:     string(proposal.Status()),
		ReviewerID: proposal.ReviewerID(),
		CreatedAt:  formatTime(proposal.CreatedAt()),
		DecidedAt:  formatTime(proposal.DecidedAt()),
		Version:    proposal.Version(),
	}
	// Only pending proposals stay findable by memory, so repeat submissions
	// after a decision open a fresh proposal
	if proposal.IsPending() {
		rec.GSI2PK = fmt.Sprintf("PROPMEM#%s", proposal.MemoryID().String())
		rec.GSI2SK = fmt.Sprintf("TARGET#%s", proposal.Target().String())
	}

	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal proposal item")
	}

	var condition expression.ConditionBuilder
	if proposal.Version() > 1 {
		condition = expression.Name("Version").Equal(expression.Value(proposal.Version() - 1))
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
		return mapConditionFailure(err, "proposal version conflict")
	}
	return nil
}

// GetByID retrieves a proposal by ID
func (r *ProposalRepository) GetByID(ctx context.Context, id valueobjects.ProposalID) (*entities.Proposal, error) {
	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.config.TableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: fmt.Sprintf("PROPOSAL#%s", id.String())},
			"SK": &types.AttributeValueMemberS{Value: "META"},
		},
	})
	if err != nil {
		return nil, mapAPIError(err, "failed to get proposal item")
	}
	if result.Item == nil {
		return nil, apperrors.NewNotFound("proposal not found")
	}

	var rec proposalRecord
	if err := attributevalue.UnmarshalMap(result.Item, &rec); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal proposal item")
	}
	return rec.toEntity()
}

// FindPendingFor returns the pending proposal for a memory and target tier
func (r *ProposalRepository) FindPendingFor(ctx context.Context, memoryID valueobjects.MemoryID, target valueobjects.Visibility) (*entities.Proposal, error) {
	keyExpr := expression.Key("GSI2PK").Equal(expression.Value(fmt.Sprintf("PROPMEM#%s", memoryID.String()))).
		And(expression.Key("GSI2SK").Equal(expression.Value(fmt.Sprintf("TARGET#%s", target.String()))))
	expr, err := expression.NewBuilder().WithKeyCondition(keyExpr).Build()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to build pending-proposal query")
	}

	result, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.config.TableName),
		IndexName:                 aws.String(r.config.ScopeIndexName),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		Limit:                     aws.Int32(1),
	})
	if err != nil {
		return nil, mapAPIError(err, "failed to query pending proposal")
	}
	if len(result.Items) == 0 {
		return nil, apperrors.NewNotFound("no pending proposal")
	}

	var rec proposalRecord
	if err := attributevalue.UnmarshalMap(result.Items[0], &rec); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal proposal item")
	}
	return rec.toEntity()
}

// ListPending returns all pending proposals for an organization, oldest first
func (r *ProposalRepository) ListPending(ctx context.Context, orgID string) ([]*entities.Proposal, error) {
	keyExpr := expression.Key("GSI1PK").Equal(expression.Value(fmt.Sprintf("ORG#%s#PROPOSAL", orgID)))
	filterExpr := expression.Name("Status").Equal(expression.Value(string(entities.ProposalPending)))
	expr, err := expression.NewBuilder().WithKeyCondition(keyExpr).WithFilter(filterExpr).Build()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to build pending-list query")
	}

	var out []*entities.Proposal
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
			return nil, mapAPIError(err, "failed to query pending proposals")
		}

		for _, item := range result.Items {
			var rec proposalRecord
			if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
				r.logger.Warn("failed to unmarshal proposal item", zap.Error(err))
				continue
			}
			p, err := rec.toEntity()
			if err != nil {
				r.logger.Warn("failed to reconstruct proposal", zap.Error(err))
				continue
			}
			out = append(out, p)
		}

		lastKey = result.LastEvaluatedKey
		if lastKey == nil {
			break
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt().Equal(out[j].CreatedAt()) {
			return out[i].CreatedAt().Before(out[j].CreatedAt())
		}
		return out[i].ID().String() < out[j].ID().String()
	})
	return out, nil
}

func (rec proposalRecord) toEntity() (*entities.Proposal, error) {
	id, err := valueobjects.NewProposalIDFromString(rec.ProposalID)
	if err != nil {
		return nil, apperrors.Wrap(err, "invalid stored proposal ID")
	}
	memoryID, err := valueobjects.NewMemoryIDFromString(rec.MemoryID)
	if err != nil {
		return nil, apperrors.Wrap(err, "invalid stored memory ID")
	}

	return entities.ReconstructProposal(
		id, memoryID, rec.TenantID, rec.OrgID, rec.ProposerID,
		valueobjects.Visibility(rec.Target),
		entities.ProposalStatus(rec.Status),
		rec.ReviewerID,
		parseTime(rec.CreatedAt), parseTime(rec.DecidedAt),
		rec.Version,
	), nil
}
