package audit

import (
	"strings"

	telemetrydomain "saas-core/backend/internal/telemetry/domain"
)

// ActionResource holds the audit action and resource derived from an auth event type.
type ActionResource struct {
	Action   string
	Resource string
}

var eventOverrides = map[string]ActionResource{
	telemetrydomain.EventLoginSucceeded:       {Action: "login_success", Resource: "authentication"},
	telemetrydomain.EventLoginFailed:          {Action: "login_failure", Resource: "authentication"},
	telemetrydomain.EventRefreshRotated:       {Action: "token_refreshed", Resource: "session"},
	telemetrydomain.EventRefreshReuseDetected: {Action: "sessions_revoked", Resource: "session"},
	telemetrydomain.EventLogout:               {Action: "logout", Resource: "session"},
}

// ParseEventType returns action and resource for a dotted event type (e.g. auth.refresh.rotated).
// Known auth events map to fixed pairs. Others use the second segment as resource and the
// remaining segments joined by "_" as action.
func ParseEventType(eventType string) ActionResource {
	if ar, ok := eventOverrides[eventType]; ok {
		return ar
	}
	parts := strings.Split(eventType, ".")
	switch len(parts) {
	case 0, 1:
		if eventType == "" {
			return ActionResource{Action: "unknown", Resource: "unknown"}
		}
		return ActionResource{Action: strings.ToLower(eventType), Resource: "unknown"}
	case 2:
		return ActionResource{Action: strings.ToLower(parts[1]), Resource: strings.ToLower(parts[0])}
	default:
		return ActionResource{Action: strings.ToLower(strings.Join(parts[2:], "_")), Resource: strings.ToLower(parts[1])}
	}
}
