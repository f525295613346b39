package syncqueue

import (
	"testing"

	"github.com/bazasystems/madaris/internal/models"
)

func TestClassifyRecognizedIntents(t *testing.T) {
	cases := []struct {
		name       string
		intent     Intent
		entity     string
		action     string
		targetID   uint64
		bulkDelete bool
	}{
		{
			name:   "student create",
			intent: Intent{URL: "/api/students", Method: "POST"},
			entity: models.EntityStudent,
			action: models.UpdateActionCreate,
		},
		{
			name:     "student update",
			intent:   Intent{URL: "/api/students/42", Method: "PUT"},
			entity:   models.EntityStudent,
			action:   models.UpdateActionUpdate,
			targetID: 42,
		},
		{
			name:     "student patch",
			intent:   Intent{URL: "/api/students/7/", Method: "PATCH"},
			entity:   models.EntityStudent,
			action:   models.UpdateActionUpdate,
			targetID: 7,
		},
		{
			name:     "student delete",
			intent:   Intent{URL: "/api/students/9", Method: "DELETE"},
			entity:   models.EntityStudent,
			action:   models.UpdateActionDelete,
			targetID: 9,
		},
		{
			name:       "student bulk delete",
			intent:     Intent{URL: "/api/students/bulk_delete", Method: "POST"},
			entity:     models.EntityStudent,
			action:     models.UpdateActionDelete,
			bulkDelete: true,
		},
		{
			name:   "canteen scan",
			intent: Intent{URL: "/api/canteen/scan_card", Method: "POST"},
			entity: models.EntityCanteen,
			action: models.UpdateActionCreate,
		},
		{
			name:   "canteen manual",
			intent: Intent{URL: "/api/canteen/manual_attendance"},
			entity: models.EntityCanteen,
			action: models.UpdateActionCreate,
		},
		{
			name:   "library loan",
			intent: Intent{URL: "/api/library/loan", Method: "post"},
			entity: models.EntityLibrary,
			action: models.UpdateActionCreate,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, errClassify := classify(tc.intent)
			if errClassify != nil {
				t.Fatalf("classify: %v", errClassify)
			}
			if got.Entity != tc.entity || got.Action != tc.action {
				t.Fatalf("expected %s/%s, got %s/%s", tc.entity, tc.action, got.Entity, got.Action)
			}
			if got.TargetID != tc.targetID {
				t.Fatalf("expected target %d, got %d", tc.targetID, got.TargetID)
			}
			if got.BulkDelete != tc.bulkDelete {
				t.Fatalf("expected bulk=%v, got %v", tc.bulkDelete, got.BulkDelete)
			}
		})
	}
}

func TestClassifyRejectsUnknownAndMalformed(t *testing.T) {
	cases := []Intent{
		{URL: "/api/unknown_thing", Method: "POST"},
		{URL: "/api/students/abc", Method: "DELETE"},
		{URL: "/api/students", Method: "PUT"},
	}
	for _, intent := range cases {
		if _, errClassify := classify(intent); errClassify == nil {
			t.Fatalf("expected rejection for %q %s", intent.URL, intent.Method)
		}
	}
}
