package audit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/crewdesk/crewdesk/pkg/authz"
	"github.com/crewdesk/crewdesk/pkg/observability"
)

// DenialObserver returns an engine observer that records denied decisions in
// the audit trail. Allowed decisions are skipped; the successful mutation
// paths write their own data events, and recording every allowed read would
// swamp the table. The write runs on a fresh goroutine so a slow audit insert
// never extends an authorization check, and it deliberately detaches from the
// request context so an aborted request still leaves its denial on record.
func DenialObserver(logger Logger, log *observability.Logger) authz.DecisionObserver {
	return func(identity string, resource authz.Resource, op authz.Operation, target authz.Target, decision authz.Decision) {
		if decision.Allowed {
			return
		}

		event := &Event{
			Timestamp:    decision.CheckedAt,
			EventType:    EventTypeAuthzAccessDenied,
			Status:       EventStatusDenied,
			UserID:       identity,
			Role:         string(decision.Role),
			ResourceType: ResourceType(resource),
			ResourceID:   targetID(resource, target),
			Message:      fmt.Sprintf("%s %s denied: %s", op, resource, decision.Reason),
		}

		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := logger.Log(ctx, event); err != nil {
				log.WithError(err).Warn("failed to record denied decision")
			}
		}()
	}
}

// targetID picks the identifying field for the denied target
func targetID(resource authz.Resource, target authz.Target) string {
	switch resource {
	case authz.ResourceProfile:
		return target.ProfileID
	case authz.ResourceObject:
		if target.ObjectKey != "" {
			return target.ObjectKey
		}
		return strconv.FormatInt(target.ProjectID, 10)
	default:
		return strconv.FormatInt(target.ProjectID, 10)
	}
}
