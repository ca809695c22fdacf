package engine

import (
	"context"

	"leadline/internal/domain"
	"leadline/internal/engine/auth"
)

// ListEvents returns the newest audit events, optionally filtered by type.
func (e Engine) ListEvents(ctx context.Context, limit int, evtType string, actor auth.Actor) ([]domain.Event, error) {
	if err := actor.Require(domain.RoleManager); err != nil {
		return nil, err
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	evts, err := e.Repo.LatestEvents(ctx, limit, evtType, "", "")
	if err != nil {
		return nil, err
	}
	if evts == nil {
		evts = []domain.Event{}
	}
	return evts, nil
}
