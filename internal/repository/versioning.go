package repository

import (
	"gorm.io/gorm"
)

// nextVersionNumber returns max(number)+1 among the rows of model owned by ownerID.
func nextVersionNumber(tx *gorm.DB, model interface{}, ownerColumn string, ownerID uint) (int, error) {
	var latest int
	err := tx.Model(model).
		Where(ownerColumn+" = ?", ownerID).
		Select("COALESCE(MAX(number), 0)").
		Scan(&latest).Error
	if err != nil {
		return 0, err
	}
	return latest + 1, nil
}

// clearDefault unsets is_default on every row of model owned by ownerID.
func clearDefault(tx *gorm.DB, model interface{}, ownerColumn string, ownerID uint) error {
	return tx.Model(model).
		Where(ownerColumn+" = ? AND is_default = ?", ownerID, true).
		Update("is_default", false).Error
}

// setDefault makes the row addressed by slug the only default of its owner.
// Returns false when no such row exists.
func setDefault(tx *gorm.DB, model interface{}, ownerColumn string, ownerID uint, slug string) (bool, error) {
	if err := clearDefault(tx, model, ownerColumn, ownerID); err != nil {
		return false, err
	}

	result := tx.Model(model).
		Where(ownerColumn+" = ? AND slug = ?", ownerID, slug).
		Update("is_default", true)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
