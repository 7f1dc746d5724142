package activitylog

import (
	"context"
	"encoding/json"
	"log"
	"math"
)

type Service interface {
	// Record writes one audit row. It never returns an error: audit writes
	// are best-effort and must not fail the primary operation.
	Record(ctx context.Context, actorID uint, actorKind, module, action string, ok bool, payload map[string]interface{}, opErr error, ip string)
	List(ctx context.Context, filter Filter) (*PaginatedLogs, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) Record(ctx context.Context, actorID uint, actorKind, module, action string, ok bool, payload map[string]interface{}, opErr error, ip string) {
	if payload == nil {
		payload = map[string]interface{}{}
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		payloadJSON = []byte("{}")
	}

	var result int16 = 1
	errText := ""
	if !ok {
		result = 0
	}
	if opErr != nil {
		errText = opErr.Error()
	}

	entry := &ActivityLog{
		ActorID:   actorID,
		ActorKind: actorKind,
		Module:    module,
		Action:    action,
		Result:    result,
		Payload:   payloadJSON,
		Error:     errText,
		IPAddress: ip,
	}

	if err := s.repo.Create(ctx, entry); err != nil {
		log.Printf("⚠️ activity log write failed (%s/%s): %v", module, action, err)
	}
}

func (s *service) List(ctx context.Context, filter Filter) (*PaginatedLogs, error) {
	logs, total, err := s.repo.GetByFilter(ctx, filter)
	if err != nil {
		return nil, err
	}

	totalPages := 0
	if filter.Limit > 0 {
		totalPages = int(math.Ceil(float64(total) / float64(filter.Limit)))
	}

	return &PaginatedLogs{
		Data:       logs,
		Total:      total,
		Page:       filter.Page,
		Limit:      filter.Limit,
		TotalPages: totalPages,
	}, nil
}
