package syncqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bazasystems/madaris/internal/models"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Service persists offline intents and replays them under reviewer control.
type Service struct {
	db *gorm.DB
}

// NewService constructs the sync queue service.
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Submit classifies and enqueues a batch of recorded intents. Nothing is
// applied here; every accepted intent becomes a pending update awaiting
// review. The queued count and per-item rejection reasons are returned.
func (s *Service) Submit(ctx context.Context, accountID uint64, intents []Intent) (int, []string) {
	queued := 0
	var rejected []string
	for i, intent := range intents {
		tagged, errClassify := classify(intent)
		if errClassify != nil {
			rejected = append(rejected, fmt.Sprintf("item %d: %v", i, errClassify))
			continue
		}

		payload, errMarshal := json.Marshal(intent.Data)
		if errMarshal != nil {
			rejected = append(rejected, fmt.Sprintf("item %d: encode payload: %v", i, errMarshal))
			continue
		}

		update := models.PendingUpdate{
			Entity:   tagged.Entity,
			Action:   tagged.Action,
			Status:   models.UpdateStatusPending,
			TargetID: tagged.TargetID,
			Payload:  payload,
		}
		if accountID != 0 {
			update.AccountID = &accountID
		}
		if tagged.BulkDelete {
			// Preserve the bulk marker so apply knows to read the id list.
			update.TargetID = 0
		}
		if errCreate := s.db.WithContext(ctx).Create(&update).Error; errCreate != nil {
			rejected = append(rejected, fmt.Sprintf("item %d: store: %v", i, errCreate))
			continue
		}
		queued++
	}
	return queued, rejected
}

// List returns the queue, newest first.
func (s *Service) List(ctx context.Context) ([]models.PendingUpdate, error) {
	var updates []models.PendingUpdate
	if errFind := s.db.WithContext(ctx).
		Order("timestamp DESC").
		Find(&updates).Error; errFind != nil {
		return nil, errFind
	}
	return updates, nil
}

// Count returns the number of queued updates.
func (s *Service) Count(ctx context.Context) (int64, error) {
	var count int64
	if errCount := s.db.WithContext(ctx).
		Model(&models.PendingUpdate{}).
		Count(&count).Error; errCount != nil {
		return 0, errCount
	}
	return count, nil
}

// Approve applies one pending update and removes it from the queue. A
// failed application leaves the record queued so it can be retried or
// rejected; application plus removal run in one transaction, so an update
// is applied at most once.
func (s *Service) Approve(ctx context.Context, id uint64) error {
	var update models.PendingUpdate
	if errFind := s.db.WithContext(ctx).First(&update, id).Error; errFind != nil {
		return errFind
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if errApply := s.apply(tx, &update); errApply != nil {
			return errApply
		}
		return tx.Delete(&models.PendingUpdate{}, update.ID).Error
	})
}

// ApproveAllResult reports the outcome of a batch approval.
type ApproveAllResult struct {
	Applied int
	Errors  []string
}

// ApproveAll applies every queued update, collecting per-item errors
// instead of aborting. Partial success is a normal outcome.
func (s *Service) ApproveAll(ctx context.Context) (*ApproveAllResult, error) {
	var updates []models.PendingUpdate
	if errFind := s.db.WithContext(ctx).
		Order("timestamp ASC").
		Find(&updates).Error; errFind != nil {
		return nil, errFind
	}

	result := &ApproveAllResult{}
	for _, update := range updates {
		errApprove := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if errApply := s.apply(tx, &update); errApply != nil {
				return errApply
			}
			return tx.Delete(&models.PendingUpdate{}, update.ID).Error
		})
		if errApprove != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("id %d: %v", update.ID, errApprove))
			continue
		}
		result.Applied++
	}
	if len(result.Errors) > 0 {
		log.WithField("errors", len(result.Errors)).Warn("batch approval finished with failures")
	}
	return result, nil
}

// Reject discards one pending update without applying it.
func (s *Service) Reject(ctx context.Context, id uint64) error {
	res := s.db.WithContext(ctx).Delete(&models.PendingUpdate{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// RejectAll discards the whole queue without applying anything.
func (s *Service) RejectAll(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).Where("1 = 1").Delete(&models.PendingUpdate{})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

// ErrUnknownEntity is returned when a stored update references an entity
// kind this build does not know how to apply.
var ErrUnknownEntity = errors.New("syncqueue: unknown entity kind")
