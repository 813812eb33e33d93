package repository

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"mediadrop/portal/internal/model"
)

// Distinct rejection reasons for token validation, surfaced verbatim to the
// calling protocol layer.
var (
	ErrLinkNotFound  = errors.New("upload link not found")
	ErrLinkExpired   = errors.New("upload link has expired")
	ErrLinkExhausted = errors.New("upload link has reached maximum uses")
)

type UploadLinkRepository interface {
	Create(link *model.UploadLink) error
	FindByToken(token string) (*model.UploadLink, error)
	// ValidateToken resolves a token and checks expiry and the usage-count
	// ceiling, returning one of the sentinel errors above on rejection.
	ValidateToken(token string) (*model.UploadLink, error)
	IncrementUsedCount(id uint) error
}

type uploadLinkRepository struct {
	db *gorm.DB
}

func NewUploadLinkRepository(db *gorm.DB) UploadLinkRepository {
	return &uploadLinkRepository{db: db}
}

func (r *uploadLinkRepository) Create(link *model.UploadLink) error {
	return r.db.Create(link).Error
}

func (r *uploadLinkRepository) FindByToken(token string) (*model.UploadLink, error) {
	var link model.UploadLink
	err := r.db.Preload("Project").Preload("Project.Client").
		Where("token = ?", token).First(&link).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLinkNotFound
		}
		return nil, err
	}
	return &link, nil
}

func (r *uploadLinkRepository) ValidateToken(token string) (*model.UploadLink, error) {
	link, err := r.FindByToken(token)
	if err != nil {
		return nil, err
	}

	if link.Expired(time.Now()) {
		return nil, ErrLinkExpired
	}

	if link.Exhausted() {
		return nil, ErrLinkExhausted
	}

	return link, nil
}

func (r *uploadLinkRepository) IncrementUsedCount(id uint) error {
	return r.db.Model(&model.UploadLink{}).
		Where("id = ?", id).
		UpdateColumn("used_count", gorm.Expr("used_count + 1")).Error
}
