package repository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	customerrors "github.com/axellelanca/acortador/internal/errors"
	"github.com/axellelanca/acortador/internal/models"
)

var (
	// ErrNotFound is returned by lookups that match no row.
	ErrNotFound = errors.New("record not found")
	// ErrShortCodeExists is returned when an insert hits the unique index on short_code.
	ErrShortCodeExists = errors.New("short code exists")
)

// URLRepository est une interface qui définit les méthodes d'accès aux mappings.
type URLRepository interface {
	CreateMapping(ctx context.Context, mapping *models.URLMapping) error
	FindByShortCode(ctx context.Context, shortCode string) (*models.URLMapping, error)
	FindByLongURL(ctx context.Context, longURL string) (*models.URLMapping, error)
}

// GormURLRepository est l'implémentation de URLRepository utilisant GORM.
type GormURLRepository struct {
	db *gorm.DB
}

// NewURLRepository crée et retourne une nouvelle instance de GormURLRepository.
func NewURLRepository(db *gorm.DB) *GormURLRepository {
	return &GormURLRepository{db: db}
}

// CreateMapping insère un nouveau mapping dans la base de données.
func (r *GormURLRepository) CreateMapping(ctx context.Context, mapping *models.URLMapping) error {
	if err := r.db.WithContext(ctx).Create(mapping).Error; err != nil {
		if isDuplicate(err) {
			return ErrShortCodeExists
		}
		return customerrors.Persistence("create mapping", err)
	}
	return nil
}

// FindByShortCode récupère un mapping à partir de son code court.
func (r *GormURLRepository) FindByShortCode(ctx context.Context, shortCode string) (*models.URLMapping, error) {
	return r.findOne(ctx, "short_code = ?", shortCode)
}

// FindByLongURL récupère le mapping le plus ancien pour une URL longue exacte.
func (r *GormURLRepository) FindByLongURL(ctx context.Context, longURL string) (*models.URLMapping, error) {
	return r.findOne(ctx, "long_url = ?", longURL)
}

func (r *GormURLRepository) findOne(ctx context.Context, query string, arg string) (*models.URLMapping, error) {
	var mapping models.URLMapping
	err := r.db.WithContext(ctx).Where(query, arg).Order("id").First(&mapping).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, customerrors.Persistence("find mapping", err)
	}
	return &mapping, nil
}

// isDuplicate reports a unique constraint violation. The SQLite dialector translates it to
// gorm.ErrDuplicatedKey; the message check covers drivers that do not.
func isDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "UNIQUE constraint failed")
}
