package service

import (
	"context"
	"encoding/json"
	"log"

	"costcompass/internal/model"
	"costcompass/internal/repository"

	"github.com/google/uuid"
)

type AuditLogResponse struct {
	ID         string `json:"id"`
	ActorID    string `json:"actor_id"`
	ActorName  string `json:"actor_name"`
	Action     string `json:"action"`
	Resource   string `json:"resource"`
	ResourceID string `json:"resource_id"`
	Details    string `json:"details"`
	CreatedAt  string `json:"created_at"`
}

// AuditService records and lists the audit trail. Record is a side-effect
// sink: failures are logged and swallowed so an audit write can never roll
// back the mutation it describes.
type AuditService interface {
	Record(ctx context.Context, actorID *uuid.UUID, action, resource, resourceID string, details any)
	GetAuditLogs(ctx context.Context, page, limit int) ([]AuditLogResponse, int64, error)
}

type auditService struct {
	repo repository.AuditRepository
}

// NewAuditService creates a new AuditService instance
func NewAuditService(repo repository.AuditRepository) AuditService {
	return &auditService{repo: repo}
}

func (s *auditService) Record(ctx context.Context, actorID *uuid.UUID, action, resource, resourceID string, details any) {
	payload := "{}"
	if details != nil {
		if raw, err := json.Marshal(details); err == nil {
			payload = string(raw)
		}
	}

	entry := &model.AuditLog{
		ActorID:    actorID,
		Action:     action,
		Resource:   resource,
		ResourceID: resourceID,
		Details:    payload,
	}
	if err := s.repo.Log(ctx, entry); err != nil {
		log.Printf("audit: failed to record %s on %s/%s: %v", action, resource, resourceID, err)
	}
}

// GetAuditLogs retrieves strictly paginated records with actors pre-loaded
func (s *auditService) GetAuditLogs(ctx context.Context, page, limit int) ([]AuditLogResponse, int64, error) {
	logs, total, err := s.repo.List(ctx, page, limit)
	if err != nil {
		return nil, 0, err
	}

	res := make([]AuditLogResponse, 0, len(logs))
	for _, l := range logs {
		actorName := "System"
		actorID := ""
		if l.Actor != nil {
			actorName = l.Actor.Username
		}
		if l.ActorID != nil {
			actorID = l.ActorID.String()
		}

		res = append(res, AuditLogResponse{
			ID:         l.ID.String(),
			ActorID:    actorID,
			ActorName:  actorName,
			Action:     l.Action,
			Resource:   l.Resource,
			ResourceID: l.ResourceID,
			Details:    l.Details,
			CreatedAt:  l.CreatedAt.Format("2006-01-02 15:04:05"),
		})
	}

	return res, total, nil
}
