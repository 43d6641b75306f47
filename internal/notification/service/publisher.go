package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/homeaccess/internal/notification/domain"
	"github.com/smallbiznis/homeaccess/pkg/telemetry/correlation"
	"gorm.io/datatypes"
)

type outboxPublisher struct {
	repo  domain.Repository
	genID *snowflake.Node
}

// NewOutboxPublisher writes events to the access_events outbox.
func NewOutboxPublisher(repo domain.Repository, genID *snowflake.Node) domain.Publisher {
	return &outboxPublisher{repo: repo, genID: genID}
}

type accessGrantedPayload struct {
	ResidenceID string         `json:"residence_id"`
	UserID      string         `json:"user_id"`
	UnitID      string         `json:"unit_id,omitempty"`
	Flow        string         `json:"flow"`
	Role        string         `json:"role"`
	Kind        string         `json:"occupancy_kind,omitempty"`
	GrantedAt   string         `json:"granted_at"`
	Metadata    map[string]any `json:"metadata"`
}

func (p *outboxPublisher) PublishAccessGranted(ctx context.Context, evt domain.AccessGranted) error {
	payload := accessGrantedPayload{
		ResidenceID: evt.ResidenceID.String(),
		UserID:      evt.UserID.String(),
		Flow:        evt.Flow,
		Role:        evt.Role,
		Kind:        evt.Kind,
		GrantedAt:   evt.GrantedAt.UTC().Format(time.RFC3339),
		Metadata:    correlation.InjectTraceIntoMetadata(ctx, nil),
	}
	if evt.UnitID != nil {
		payload.UnitID = evt.UnitID.String()
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	return p.repo.Insert(ctx, domain.AccessEvent{
		ID:          p.genID.Generate(),
		ResidenceID: evt.ResidenceID,
		UserID:      evt.UserID,
		EventType:   domain.EventAccessGranted,
		Payload:     datatypes.JSON(data),
		CreatedAt:   evt.GrantedAt.UTC(),
	})
}
