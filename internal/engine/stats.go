package engine

import (
	"context"
	"time"

	"leadline/internal/domain"
	"leadline/internal/engine/auth"
)

// AssociateStats aggregates one associate's activity since the given time.
// A zero since defaults to the start of the current business day.
func (e Engine) AssociateStats(ctx context.Context, associateID string, since time.Time, actor auth.Actor) (domain.AssociateStats, error) {
	if associateID == "" {
		return domain.AssociateStats{}, invalid("userId is required")
	}
	if !actor.CanActFor(associateID) {
		return domain.AssociateStats{}, auth.ForbiddenError{Role: domain.RoleManager}
	}
	if since.IsZero() {
		local := e.now().In(e.Config.Location())
		since = time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, local.Location())
	}
	from := domain.FormatTime(since)
	totals, err := e.Repo.TimerTotals(ctx, associateID, from, GoodConversationSeconds)
	if err != nil {
		return domain.AssociateStats{}, err
	}
	bookings, err := e.Repo.CountBookings(ctx, associateID, from)
	if err != nil {
		return domain.AssociateStats{}, err
	}
	sessionSeconds, err := e.Repo.SessionSeconds(ctx, associateID, from)
	if err != nil {
		return domain.AssociateStats{}, err
	}
	return domain.AssociateStats{
		AssociateID:       associateID,
		Since:             from,
		Dials:             totals.Dials,
		TalkSeconds:       totals.TalkSeconds,
		GoodConversations: totals.GoodConversations,
		Bookings:          bookings,
		SessionSeconds:    sessionSeconds,
	}, nil
}
