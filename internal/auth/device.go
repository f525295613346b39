package auth

import (
	"context"
	"strings"

	"github.com/bazasystems/madaris/internal/models"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// enforceDeviceBinding applies the device policy after password success.
// Privileged roles are never device-locked: any stale binding is cleared so
// a director cannot lock themselves out. Everyone else is bound to the
// first device they sign in from, with a one-time rebind window while a
// pending sentinel is set.
func (s *Service) enforceDeviceBinding(ctx context.Context, profile *models.Profile, deviceID string) error {
	deviceID = strings.TrimSpace(deviceID)

	if profile.Privileged() {
		if profile.DeviceID != "" {
			if errClear := s.db.WithContext(ctx).Model(profile).Update("device_id", "").Error; errClear != nil {
				return errClear
			}
			profile.DeviceID = ""
		}
		return nil
	}

	switch {
	case profile.DeviceID == "" || profile.DevicePending():
		// First-use binding, or the one-time rebind window opened by
		// an administrator's activate_device.
		if deviceID == "" {
			return errNoDeviceID()
		}
		if errBind := s.db.WithContext(ctx).Model(profile).Update("device_id", deviceID).Error; errBind != nil {
			return errBind
		}
		profile.DeviceID = deviceID
		log.WithFields(log.Fields{"profile_id": profile.ID, "device_id": deviceID}).Info("device bound")
		return nil
	case profile.DeviceID == deviceID:
		return nil
	default:
		return errDeviceLocked()
	}
}

// ActivateDevice sets a fresh pending sentinel so the account rebinds to
// whatever device it signs in from next.
func (s *Service) ActivateDevice(ctx context.Context, accountID uint64) (string, error) {
	sentinel := models.DevicePendingPrefix + uuid.NewString()
	if errUpdate := s.db.WithContext(ctx).Model(&models.Profile{}).
		Where("account_id = ?", accountID).
		Update("device_id", sentinel).Error; errUpdate != nil {
		return "", errUpdate
	}
	return sentinel, nil
}

// ResetDevice clears the binding entirely, returning the account to the
// unbound state.
func (s *Service) ResetDevice(ctx context.Context, accountID uint64) error {
	return s.db.WithContext(ctx).Model(&models.Profile{}).
		Where("account_id = ?", accountID).
		Update("device_id", "").Error
}
