package store

import (
	"errors"
	"time"

	"github.com/gmsas95/medremind/internal/reminder"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CreateHistory inserts a history row
func (s *Store) CreateHistory(h *reminder.DoseHistory) error {
	row := utcHistory(*h)
	if err := s.db.Create(&row).Error; err != nil {
		return storeErr("failed to create history", err)
	}
	h.ID = row.ID
	h.CreatedAt, h.UpdatedAt = row.CreatedAt, row.UpdatedAt
	return nil
}

// UpdateHistory saves all columns of h
func (s *Store) UpdateHistory(h *reminder.DoseHistory) error {
	row := utcHistory(*h)
	if err := s.db.Save(&row).Error; err != nil {
		return storeErr("failed to update history", err)
	}
	return nil
}

// DeleteHistory removes one history row
func (s *Store) DeleteHistory(id int64) error {
	if err := s.db.Delete(&reminder.DoseHistory{}, id).Error; err != nil {
		return storeErr("failed to delete history", err)
	}
	return nil
}

// HistoryForReminder returns nil, nil when the reminder has no row yet
func (s *Store) HistoryForReminder(reminderID int64) (*reminder.DoseHistory, error) {
	h, err := historyForReminder(s.db, reminderID)
	if err != nil {
		return nil, storeErr("failed to get history", err)
	}
	if h != nil {
		s.localHistory(h)
	}
	return h, nil
}

func historyForReminder(tx *gorm.DB, reminderID int64) (*reminder.DoseHistory, error) {
	var h reminder.DoseHistory
	err := tx.Where("reminder_id = ?", reminderID).First(&h).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &h, nil
}

// ListHistory returns rows scheduled within [start, end], oldest first
func (s *Store) ListHistory(start, end time.Time) ([]reminder.DoseHistory, error) {
	var rows []reminder.DoseHistory
	err := s.db.Where("scheduled_time >= ? AND scheduled_time <= ?", start.UTC(), end.UTC()).
		Order("scheduled_time ASC").
		Find(&rows).Error
	if err != nil {
		return nil, storeErr("failed to list history", err)
	}
	for i := range rows {
		s.localHistory(&rows[i])
	}
	return rows, nil
}

// RecordDue creates the PENDING history row for a reminder that just became
// due. A reminder that already has a row (after a snooze) keeps it.
func (s *Store) RecordDue(r reminder.Reminder) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		existing, err := historyForReminder(tx, r.ID)
		if err != nil || existing != nil {
			return err
		}
		row := utcHistory(newHistory(r))
		return tx.Create(&row).Error
	})
	if err != nil {
		return storeErr("failed to record due dose", err)
	}
	return nil
}

// RecordOutcome stores the final status of a reminder's dose. A TAKEN dose
// also takes one unit off the medicine's supply.
func (s *Store) RecordOutcome(r reminder.Reminder, status reminder.Status, at time.Time) error {
	var supply int
	decremented := false

	err := s.db.Transaction(func(tx *gorm.DB) error {
		h, err := historyForReminder(tx, r.ID)
		if err != nil {
			return err
		}
		if h == nil {
			fresh := newHistory(r)
			h = &fresh
		}

		h.Status = status
		h.TakenTime = nil
		if status == reminder.StatusTaken {
			taken := at.UTC()
			h.TakenTime = &taken
		}
		row := utcHistory(*h)
		if err := tx.Save(&row).Error; err != nil {
			return err
		}

		if status == reminder.StatusTaken && r.MedicineID > 0 {
			if err := adjustSupply(tx, r.MedicineID, -1, &supply); err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return nil
				}
				return err
			}
			decremented = true
		}
		return nil
	})
	if err != nil {
		return storeErr("failed to record outcome", err)
	}

	if decremented {
		s.logger.Debug("Supply decremented",
			zap.Int64("medicine_id", r.MedicineID),
			zap.Int("supply", supply),
		)
	}
	return nil
}

func newHistory(r reminder.Reminder) reminder.DoseHistory {
	return reminder.DoseHistory{
		ReminderID:    r.ID,
		MedicineID:    r.MedicineID,
		MedicineName:  r.MedicineName,
		ScheduledTime: r.ScheduledTime,
		Status:        reminder.StatusPending,
		Notes:         r.Notes,
	}
}

func utcHistory(h reminder.DoseHistory) reminder.DoseHistory {
	h.ScheduledTime = h.ScheduledTime.UTC()
	if h.TakenTime != nil {
		t := h.TakenTime.UTC()
		h.TakenTime = &t
	}
	return h
}

func (s *Store) localHistory(h *reminder.DoseHistory) {
	h.ScheduledTime = s.local(h.ScheduledTime)
	if h.TakenTime != nil {
		t := s.local(*h.TakenTime)
		h.TakenTime = &t
	}
}
