package syncqueue

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/bazasystems/madaris/internal/models"
)

// Intent is one request recorded by a client while offline.
type Intent struct {
	URL    string         `json:"url"`
	Method string         `json:"method"`
	Data   map[string]any `json:"data"`
}

// classification is the tagged form an intent is reduced to at submission
// time. The payload is never reinterpreted afterwards.
type classification struct {
	Entity     string
	Action     string
	TargetID   uint64
	BulkDelete bool
}

// classify maps a recorded URL/method pair onto an entity kind and action.
// Unrecognized shapes are rejected up front rather than stored.
func classify(in Intent) (*classification, error) {
	urlPath := strings.ToLower(strings.TrimSpace(in.URL))
	method := strings.ToUpper(strings.TrimSpace(in.Method))
	if method == "" {
		method = http.MethodPost
	}

	out := &classification{Action: models.UpdateActionCreate}
	switch {
	case strings.Contains(urlPath, "students"):
		out.Entity = models.EntityStudent
		switch {
		case strings.Contains(urlPath, "bulk_delete"):
			out.Action = models.UpdateActionDelete
			out.BulkDelete = true
		case method == http.MethodPut || method == http.MethodPatch:
			out.Action = models.UpdateActionUpdate
			out.TargetID = trailingID(urlPath)
		case method == http.MethodDelete:
			out.Action = models.UpdateActionDelete
			out.TargetID = trailingID(urlPath)
		}
	case strings.Contains(urlPath, "scan_card"), strings.Contains(urlPath, "manual_attendance"):
		out.Entity = models.EntityCanteen
	case strings.Contains(urlPath, "loan"):
		out.Entity = models.EntityLibrary
	default:
		return nil, fmt.Errorf("syncqueue: unrecognized intent url %q", in.URL)
	}

	if out.Action != models.UpdateActionCreate && !out.BulkDelete && out.TargetID == 0 {
		return nil, fmt.Errorf("syncqueue: %s intent without target id: %q", out.Action, in.URL)
	}
	return out, nil
}

// trailingID extracts a numeric id from the last path segment, 0 if absent.
func trailingID(urlPath string) uint64 {
	trimmed := strings.TrimRight(urlPath, "/")
	if idx := strings.Index(trimmed, "?"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	segments := strings.Split(trimmed, "/")
	if len(segments) == 0 {
		return 0
	}
	id, errParse := strconv.ParseUint(segments[len(segments)-1], 10, 64)
	if errParse != nil {
		return 0
	}
	return id
}
