// Package dynamodb implements the persistence ports on AWS DynamoDB using a
// single-table layout. Memory rows, graph nodes and edges, proposals, refresh
// jobs, and task watermarks all share one table keyed by tenant.
package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"

	apperrors "engram-backend/pkg/errors"
)

// TableConfig names the table and its indexes
type TableConfig struct {
	TableName        string
	LineageIndexName string // GSI1: lineage chains ordered by valid-from
	ScopeIndexName   string // GSI2: current rows per tenant
}

// NewClient builds a DynamoDB client for the given region
func NewClient(ctx context.Context, region string) (*dynamodb.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return dynamodb.NewFromConfig(cfg), nil
}

const (
	timeFormat = time.RFC3339Nano

	entityMemory    = "MEMORY"
	entityGraphNode = "GNODE"
	entityGraphEdge = "GEDGE"
	entityProposal  = "PROPOSAL"
	entityRefresh   = "REFRESH"
	entityWatermark = "WATERMARK"
)

func tenantPK(tenantID string) string {
	return fmt.Sprintf("TENANT#%s", tenantID)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeFormat)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(timeFormat, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// mapConditionFailure converts conditional-write failures into conflicts so
// the optimistic retry layer can recognize them
func mapConditionFailure(err error, msg string) error {
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return apperrors.NewConflict(msg)
	}
	var tcx *types.TransactionCanceledException
	if errors.As(err, &tcx) {
		for _, reason := range tcx.CancellationReasons {
			if aws.ToString(reason.Code) == "ConditionalCheckFailed" {
				return apperrors.NewConflict(msg)
			}
		}
	}
	return mapAPIError(err, msg)
}

// mapAPIError classifies throttling as transient so callers back off instead
// of surfacing an internal error
func mapAPIError(err error, msg string) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "ProvisionedThroughputExceededException", "ThrottlingException", "RequestLimitExceeded":
			return apperrors.NewTransient(msg, err)
		}
	}
	return apperrors.Wrap(err, msg)
}
