package store

import (
	"errors"
	"strings"

	"github.com/gmsas95/medremind/internal/medicine"
	"gorm.io/gorm"
)

// CreateMedicine inserts m together with its schedule entries
func (s *Store) CreateMedicine(m *medicine.Medicine) error {
	m.Name = strings.TrimSpace(m.Name)
	if err := s.db.Create(m).Error; err != nil {
		return storeErr("failed to create medicine", err)
	}
	return nil
}

// GetMedicine returns nil, nil when id is unknown
func (s *Store) GetMedicine(id int64) (*medicine.Medicine, error) {
	var m medicine.Medicine
	err := s.db.Preload("Schedules").Where("id = ?", id).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("failed to get medicine", err)
	}
	return &m, nil
}

// GetMedicineByName matches case-insensitively; nil, nil when absent
func (s *Store) GetMedicineByName(name string) (*medicine.Medicine, error) {
	var m medicine.Medicine
	err := s.db.Preload("Schedules").
		Where("LOWER(name) = ?", strings.ToLower(strings.TrimSpace(name))).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("failed to get medicine", err)
	}
	return &m, nil
}

// ListMedicines returns all medicines with schedules, by name
func (s *Store) ListMedicines() ([]medicine.Medicine, error) {
	var meds []medicine.Medicine
	if err := s.db.Preload("Schedules").Order("name ASC").Find(&meds).Error; err != nil {
		return nil, storeErr("failed to list medicines", err)
	}
	return meds, nil
}

// UpdateMedicine saves m's own columns and replaces its schedule
func (s *Store) UpdateMedicine(m *medicine.Medicine) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Schedules").Save(m).Error; err != nil {
			return err
		}
		return replaceSchedules(tx, m)
	})
	if err != nil {
		return storeErr("failed to update medicine", err)
	}
	return nil
}

// DeleteMedicine removes a medicine and its schedule entries
func (s *Store) DeleteMedicine(id int64) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("medicine_id = ?", id).Delete(&medicine.Entry{}).Error; err != nil {
			return err
		}
		return tx.Delete(&medicine.Medicine{}, id).Error
	})
	if err != nil {
		return storeErr("failed to delete medicine", err)
	}
	return nil
}

// ImportMedicines upserts by name. Existing medicines keep their id and
// get the imported fields and schedule. Returns the number written.
func (s *Store) ImportMedicines(meds []medicine.Medicine) (int, error) {
	written := 0
	err := s.db.Transaction(func(tx *gorm.DB) error {
		for i := range meds {
			m := &meds[i]
			var existing medicine.Medicine
			err := tx.Where("LOWER(name) = ?", strings.ToLower(m.Name)).First(&existing).Error
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
				if err := tx.Create(m).Error; err != nil {
					return err
				}
			case err != nil:
				return err
			default:
				m.ID = existing.ID
				m.CreatedAt = existing.CreatedAt
				if err := tx.Omit("Schedules").Save(m).Error; err != nil {
					return err
				}
				if err := replaceSchedules(tx, m); err != nil {
					return err
				}
			}
			written++
		}
		return nil
	})
	if err != nil {
		return 0, storeErr("failed to import medicines", err)
	}
	return written, nil
}

func replaceSchedules(tx *gorm.DB, m *medicine.Medicine) error {
	if err := tx.Where("medicine_id = ?", m.ID).Delete(&medicine.Entry{}).Error; err != nil {
		return err
	}
	for i := range m.Schedules {
		m.Schedules[i].ID = 0
		m.Schedules[i].MedicineID = m.ID
	}
	if len(m.Schedules) == 0 {
		return nil
	}
	return tx.Create(&m.Schedules).Error
}

// AdjustSupply adds delta to a medicine's supply, never going below zero,
// and returns the new value.
func (s *Store) AdjustSupply(medicineID int64, delta int) (int, error) {
	var supply int
	err := s.db.Transaction(func(tx *gorm.DB) error {
		return adjustSupply(tx, medicineID, delta, &supply)
	})
	if err != nil {
		return 0, storeErr("failed to adjust supply", err)
	}
	return supply, nil
}

func adjustSupply(tx *gorm.DB, medicineID int64, delta int, out *int) error {
	res := tx.Model(&medicine.Medicine{}).Where("id = ?", medicineID).
		Update("current_supply", gorm.Expr("MAX(current_supply + ?, 0)", delta))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	if out == nil {
		return nil
	}
	var m medicine.Medicine
	if err := tx.Select("id", "current_supply").Where("id = ?", medicineID).First(&m).Error; err != nil {
		return err
	}
	*out = m.CurrentSupply
	return nil
}
