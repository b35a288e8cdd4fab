package auth

import (
	"errors"

	"github.com/barterly/trade-engine/internal/types"
	"gorm.io/gorm"
)

// Credential stores the API secret issued to a user at registration.
type Credential struct {
	gorm.Model
	UserID    string `gorm:"uniqueIndex" json:"user_id"`
	APISecret string `json:"-"`
}

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

// CreateUserWithCredential creates a user and its credential in a transaction
func (d *Database) CreateUserWithCredential(user *types.User, secret string) error {
	tx := d.db.Begin()
	if err := tx.Error; err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	if err := tx.Create(user).Error; err != nil {
		tx.Rollback()
		return err
	}

	cred := Credential{
		UserID:    user.UserID,
		APISecret: secret,
	}
	if err := tx.Create(&cred).Error; err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit().Error
}

// EnsureCredential creates the credential if no record exists for the user
func (d *Database) EnsureCredential(userID, secret string) error {
	var cred Credential
	err := d.db.Where("user_id = ?", userID).First(&cred).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return d.db.Create(&Credential{UserID: userID, APISecret: secret}).Error
}

// ValidateCredential reports whether the given user id and secret match
func (d *Database) ValidateCredential(userID, secret string) (bool, error) {
	var cred Credential
	if err := d.db.Where("user_id = ?", userID).First(&cred).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return cred.APISecret == secret, nil
}
