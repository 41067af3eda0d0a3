package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	customerrors "github.com/axellelanca/acortador/internal/errors"
	"github.com/axellelanca/acortador/internal/models"
)

// RateLimitRepository est une interface qui définit les méthodes d'accès aux enregistrements
// de création par IP. Un since nul signifie « sans borne inférieure de temps ».
type RateLimitRepository interface {
	CreateRecord(ctx context.Context, record *models.RateLimitRecord) error
	CountSince(ctx context.Context, ip string, since time.Time) (int64, error)
	AcquireSlot(ctx context.Context, ip string, since time.Time, limit int64, now time.Time) (bool, error)
	ReleaseSlot(ctx context.Context, ip string) error
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// GormRateLimitRepository est l'implémentation de RateLimitRepository utilisant GORM.
type GormRateLimitRepository struct {
	db *gorm.DB
}

// NewRateLimitRepository crée et retourne une nouvelle instance de GormRateLimitRepository.
func NewRateLimitRepository(db *gorm.DB) *GormRateLimitRepository {
	return &GormRateLimitRepository{db: db}
}

// CreateRecord insère un nouvel enregistrement sans vérifier le quota.
func (r *GormRateLimitRepository) CreateRecord(ctx context.Context, record *models.RateLimitRecord) error {
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return customerrors.Persistence("create rate limit record", err)
	}
	return nil
}

// CountSince compte les enregistrements d'une IP créés à partir de since.
func (r *GormRateLimitRepository) CountSince(ctx context.Context, ip string, since time.Time) (int64, error) {
	count, err := countSince(r.db.WithContext(ctx), ip, since)
	if err != nil {
		return 0, customerrors.Persistence("count rate limit records", err)
	}
	return count, nil
}

// AcquireSlot compte puis insère dans une seule transaction : l'enregistrement n'est écrit
// que si l'IP possède moins de limit enregistrements depuis since.
// Retourne true quand la place a été prise.
func (r *GormRateLimitRepository) AcquireSlot(ctx context.Context, ip string, since time.Time, limit int64, now time.Time) (bool, error) {
	acquired := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		count, err := countSince(tx, ip, since)
		if err != nil {
			return err
		}
		// Quota atteint : on ne consomme rien.
		if count >= limit {
			return nil
		}
		if err := tx.Create(&models.RateLimitRecord{IP: ip, CreatedAt: now}).Error; err != nil {
			return err
		}
		acquired = true
		return nil
	})
	if err != nil {
		return false, customerrors.Persistence("acquire rate limit slot", err)
	}
	return acquired, nil
}

// ReleaseSlot supprime l'enregistrement le plus récent d'une IP, pour rendre une place
// prise par AcquireSlot quand la création qui suivait a échoué.
// Une IP sans enregistrement n'est pas une erreur.
func (r *GormRateLimitRepository) ReleaseSlot(ctx context.Context, ip string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var record models.RateLimitRecord
		if err := tx.Where("ip = ?", ip).Order("created_at DESC, id DESC").First(&record).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		return tx.Delete(&record).Error
	})
	if err != nil {
		return customerrors.Persistence("release rate limit slot", err)
	}
	return nil
}

// PurgeOlderThan supprime les enregistrements créés avant cutoff et retourne leur nombre.
func (r *GormRateLimitRepository) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&models.RateLimitRecord{})
	if res.Error != nil {
		return 0, customerrors.Persistence("purge rate limit records", res.Error)
	}
	return res.RowsAffected, nil
}

// countSince est partagé par CountSince et AcquireSlot (db peut être une transaction).
func countSince(db *gorm.DB, ip string, since time.Time) (int64, error) {
	var count int64
	q := db.Model(&models.RateLimitRecord{}).Where("ip = ?", ip)
	if !since.IsZero() {
		q = q.Where("created_at >= ?", since)
	}
	err := q.Count(&count).Error
	return count, err
}
