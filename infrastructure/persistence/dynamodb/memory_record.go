package dynamodb

import (
	"fmt"

	"engram-backend/domain/core/entities"
	"engram-backend/domain/core/valueobjects"
	apperrors "engram-backend/pkg/errors"
)

// memoryRecord is the DynamoDB shape of one memory version row.
//
//	PK:     TENANT#<tenant>        SK:     MEMORY#<memoryID>
//	GSI1PK: LINEAGE#<lineageID>    GSI1SK: FROM#<validFrom>
//	GSI2PK: TENANT#<tenant>#CURRENT (current rows only)
type memoryRecord struct {
	PK     string `dynamodbav:"PK"`
	SK     string `dynamodbav:"SK"`
	GSI1PK string `dynamodbav:"GSI1PK"`
	GSI1SK string `dynamodbav:"GSI1SK"`
	GSI2PK string `dynamodbav:"GSI2PK,omitempty"`
	GSI2SK string `dynamodbav:"GSI2SK,omitempty"`

	EntityType     string            `dynamodbav:"EntityType"`
	MemoryID       string            `dynamodbav:"MemoryID"`
	LineageID      string            `dynamodbav:"LineageID"`
	TenantID       string            `dynamodbav:"TenantID"`
	OrgID          string            `dynamodbav:"OrgID,omitempty"`
	TeamID         string            `dynamodbav:"TeamID,omitempty"`
	Visibility     string            `dynamodbav:"Visibility"`
	Kind           string            `dynamodbav:"Kind"`
	Extra          map[string]string `dynamodbav:"Extra,omitempty"`
	Content        string            `dynamodbav:"Content"`
	Embedding      []float32         `dynamodbav:"Embedding,omitempty"`
	Keywords       []string          `dynamodbav:"Keywords,omitempty"`
	Importance     float64           `dynamodbav:"Importance"`
	Reinforcement  int               `dynamodbav:"Reinforcement"`
	Flashbulb      bool              `dynamodbav:"Flashbulb"`
	Verified       bool              `dynamodbav:"Verified"`
	Archived       bool              `dynamodbav:"Archived"`
	ValidFrom      string            `dynamodbav:"ValidFrom"`
	ValidTo        string            `dynamodbav:"ValidTo,omitempty"`
	IsCurrent      bool              `dynamodbav:"IsCurrent"`
	LastAccessedAt string            `dynamodbav:"LastAccessedAt"`
	CreatedAt      string            `dynamodbav:"CreatedAt"`
	Version        int               `dynamodbav:"Version"`
}

func toMemoryRecord(m *entities.Memory) memoryRecord {
	scope := m.Attributes().Scope()
	rec := memoryRecord{
		PK:     tenantPK(scope.TenantID()),
		SK:     fmt.Sprintf("MEMORY#%s", m.ID().String()),
		GSI1PK: fmt.Sprintf("LINEAGE#%s", m.LineageID().String()),
		GSI1SK: fmt.Sprintf("FROM#%s", formatTime(m.Interval().From())),

		EntityType:     entityMemory,
		MemoryID:       m.ID().String(),
		LineageID:      m.LineageID().String(),
		TenantID:       scope.TenantID(),
		OrgID:          scope.OrgID(),
		TeamID:         scope.TeamID(),
		Visibility:     m.Attributes().Visibility().String(),
		Kind:           m.Attributes().Kind().String(),
		Extra:          m.Attributes().Extra(),
		Content:        m.Content(),
		Embedding:      m.Embedding(),
		Keywords:       m.Keywords(),
		Importance:     m.Importance(),
		Reinforcement:  m.Reinforcement(),
		Flashbulb:      m.IsFlashbulb(),
		Verified:       m.IsVerified(),
		Archived:       m.IsArchived(),
		ValidFrom:      formatTime(m.Interval().From()),
		ValidTo:        formatTime(m.Interval().To()),
		IsCurrent:      m.IsCurrent(),
		LastAccessedAt: formatTime(m.LastAccessedAt()),
		CreatedAt:      formatTime(m.CreatedAt()),
		Version:        m.Version(),
	}

	// Only current rows carry the scope index keys, so closed versions fall
	// out of the current-rows partition automatically
	if m.IsCurrent() {
		rec.GSI2PK = fmt.Sprintf("%s#CURRENT", tenantPK(scope.TenantID()))
		rec.GSI2SK = rec.SK
	}
	return rec
}

func (rec memoryRecord) toEntity() (*entities.Memory, error) {
	id, err := valueobjects.NewMemoryIDFromString(rec.MemoryID)
	if err != nil {
		return nil, apperrors.Wrap(err, "invalid stored memory ID")
	}
	lineageID, err := valueobjects.NewLineageIDFromString(rec.LineageID)
	if err != nil {
		return nil, apperrors.Wrap(err, "invalid stored lineage ID")
	}

	scope, err := valueobjects.NewScope(rec.TenantID, rec.OrgID, rec.TeamID)
	if err != nil {
		return nil, apperrors.Wrap(err, "invalid stored scope")
	}
	attrs, err := valueobjects.NewAttributes(
		scope,
		valueobjects.Visibility(rec.Visibility),
		valueobjects.MemoryKind(rec.Kind),
		rec.Extra,
	)
	if err != nil {
		return nil, apperrors.Wrap(err, "invalid stored attributes")
	}

	var interval valueobjects.ValidInterval
	if rec.ValidTo == "" {
		interval = valueobjects.NewOpenInterval(parseTime(rec.ValidFrom))
	} else {
		interval, err = valueobjects.NewValidInterval(parseTime(rec.ValidFrom), parseTime(rec.ValidTo))
		if err != nil {
			return nil, apperrors.Wrap(err, "invalid stored validity interval")
		}
	}

	return entities.ReconstructMemory(
		id, lineageID, rec.Content, rec.Embedding, attrs,
		rec.Keywords, rec.Importance, rec.Reinforcement,
		rec.Flashbulb, rec.Verified, rec.Archived,
		interval, rec.IsCurrent,
		parseTime(rec.LastAccessedAt), parseTime(rec.CreatedAt), rec.Version,
	)
}
