package services

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"engram-backend/application/ports"
	"engram-backend/domain/core/entities"
	"engram-backend/pkg/errors"
)

// GraphService maintains the directed, labeled association multigraph.
type GraphService struct {
	repo       ports.GraphRepository
	authorizer ports.Authorizer
	clock      Clock
	logger     *zap.Logger
}

// NewGraphService creates a graph service
func NewGraphService(repo ports.GraphRepository, authorizer ports.Authorizer, clock Clock, logger *zap.Logger) *GraphService {
	if clock == nil {
		clock = SystemClock{}
	}
	return &GraphService{
		repo:       repo,
		authorizer: authorizer,
		clock:      clock,
		logger:     logger,
	}
}

// UpsertNode creates the node or merges properties into the existing one.
// Identity is (name, label); repeating the call never duplicates.
func (s *GraphService) UpsertNode(ctx context.Context, caller ports.Caller, name, label string, properties map[string]string) (*entities.GraphNode, error) {
	if err := s.authorize(ctx, caller, caller.TenantID); err != nil {
		return nil, err
	}

	existing, err := s.repo.FindNode(ctx, caller.TenantID, name, label)
	if err != nil && !errors.IsNotFound(err) {
		return nil, err
	}

	now := s.clock.Now()
	if existing != nil {
		existing.MergeProperties(properties, now)
		if err := s.repo.SaveNode(ctx, existing); err != nil {
			return nil, err
		}
		return existing, nil
	}

	node, err := entities.NewGraphNode(caller.TenantID, name, label, properties, now)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SaveNode(ctx, node); err != nil {
		return nil, err
	}

	s.logger.Debug("graph node created",
		zap.String("name", name), zap.String("label", label))
	return node, nil
}

// UpsertEdge connects two existing nodes. Both endpoints must already exist;
// edges never auto-create nodes. Identity is (source, target, relation).
func (s *GraphService) UpsertEdge(ctx context.Context, caller ports.Caller, sourceName, targetName, relation string, properties map[string]string) (*entities.GraphEdge, error) {
	if err := s.authorize(ctx, caller, caller.TenantID); err != nil {
		return nil, err
	}

	sources, err := s.repo.FindNodesByName(ctx, caller.TenantID, sourceName)
	if err != nil {
		return nil, err
	}
	if len(sources) == 0 {
		return nil, errors.NewNotFound("source node does not exist")
	}
	targets, err := s.repo.FindNodesByName(ctx, caller.TenantID, targetName)
	if err != nil {
		return nil, err
	}
	if len(targets) == 0 {
		return nil, errors.NewNotFound("target node does not exist")
	}

	now := s.clock.Now()
	existing, err := s.repo.FindEdge(ctx, caller.TenantID, sourceName, targetName, relation)
	if err != nil && !errors.IsNotFound(err) {
		return nil, err
	}
	if existing != nil {
		existing.MergeProperties(properties, now)
		if err := s.repo.SaveEdge(ctx, existing); err != nil {
			return nil, err
		}
		return existing, nil
	}

	edge, err := entities.NewGraphEdge(caller.TenantID, sourceName, targetName, relation, properties, now)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SaveEdge(ctx, edge); err != nil {
		return nil, err
	}
	return edge, nil
}

// Traverse returns every edge touching the named node, rendered in natural
// source -> target order no matter which side matched. Single hop only.
func (s *GraphService) Traverse(ctx context.Context, caller ports.Caller, nodeName string) ([]entities.Triple, error) {
	if err := s.authorize(ctx, caller, caller.TenantID); err != nil {
		return nil, err
	}

	edges, err := s.repo.EdgesTouching(ctx, caller.TenantID, nodeName)
	if err != nil {
		return nil, err
	}

	triples := make([]entities.Triple, 0, len(edges))
	for _, edge := range edges {
		triples = append(triples, edge.Triple())
	}

	sort.Slice(triples, func(i, j int) bool {
		if triples[i].Source != triples[j].Source {
			return triples[i].Source < triples[j].Source
		}
		if triples[i].Relation != triples[j].Relation {
			return triples[i].Relation < triples[j].Relation
		}
		return triples[i].Target < triples[j].Target
	})

	return triples, nil
}

func (s *GraphService) authorize(ctx context.Context, caller ports.Caller, tenantID string) error {
	ok, err := s.authorizer.CanAccess(ctx, caller, tenantID)
	if err != nil {
		return err
	}
	if !ok {
		return errors.NewUnauthorized("caller may not access this tenant")
	}
	return nil
}
