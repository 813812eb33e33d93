package repository

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"mediadrop/portal/internal/model"
)

type FileRepository interface {
	// Upsert inserts or updates the record keyed by upload id. The record
	// may already exist in uploading/processing status from an earlier
	// ingest event.
	Upsert(file *model.UploadedFile) error
	FindByID(id string) (*model.UploadedFile, error)
	// FindByPath resolves a record by its current storage key.
	FindByPath(path string) (*model.UploadedFile, error)
	// FindLatestByNameContains returns the most recently created record
	// whose name contains the fragment. Used to recover client/project
	// context for orphaned storage keys.
	FindLatestByNameContains(fragment string) (*model.UploadedFile, error)
	// FindByProjectAndHash locates a record carrying the same content
	// fingerprint inside one project, for dedup.
	FindByProjectAndHash(projectID uint, hash string) (*model.UploadedFile, error)
	FindByProject(projectID uint) ([]model.UploadedFile, error)
	UpdatePath(id, path string) error
	// MarkFailed transitions the record to failed with an explanatory path
	// string when one is given.
	MarkFailed(id, reason string) error
	MarkCancelled(id string) error
}

type fileRepository struct {
	db *gorm.DB
}

func NewFileRepository(db *gorm.DB) FileRepository {
	return &fileRepository{db: db}
}

func (r *fileRepository) Upsert(file *model.UploadedFile) error {
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "path", "url", "size", "mime_type", "hash",
			"status", "storage", "project_id", "completed_at", "updated_at",
		}),
	}).Create(file).Error
}

func (r *fileRepository) FindByID(id string) (*model.UploadedFile, error) {
	var file model.UploadedFile
	err := r.db.Preload("Project").Preload("Project.Client").
		Where("id = ?", id).First(&file).Error
	if err != nil {
		return nil, err
	}
	return &file, nil
}

func (r *fileRepository) FindByPath(path string) (*model.UploadedFile, error) {
	var file model.UploadedFile
	err := r.db.Preload("Project").Preload("Project.Client").
		Where("path = ?", path).First(&file).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &file, nil
}

func (r *fileRepository) FindLatestByNameContains(fragment string) (*model.UploadedFile, error) {
	var file model.UploadedFile
	err := r.db.Preload("Project").Preload("Project.Client").
		Where("name LIKE ?", "%"+fragment+"%").
		Order("created_at DESC").
		First(&file).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &file, nil
}

func (r *fileRepository) FindByProjectAndHash(projectID uint, hash string) (*model.UploadedFile, error) {
	var file model.UploadedFile
	err := r.db.Where("project_id = ? AND hash = ?", projectID, hash).
		First(&file).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &file, nil
}

func (r *fileRepository) FindByProject(projectID uint) ([]model.UploadedFile, error) {
	var files []model.UploadedFile
	err := r.db.Where("project_id = ?", projectID).Find(&files).Error
	if err != nil {
		return nil, err
	}
	return files, nil
}

func (r *fileRepository) UpdatePath(id, path string) error {
	return r.db.Model(&model.UploadedFile{}).
		Where("id = ?", id).
		Updates(map[string]any{"path": path, "updated_at": time.Now()}).Error
}

func (r *fileRepository) MarkFailed(id, reason string) error {
	updates := map[string]any{
		"status":     model.StatusFailed,
		"updated_at": time.Now(),
	}
	if reason != "" {
		updates["path"] = reason
	}
	return r.db.Model(&model.UploadedFile{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *fileRepository) MarkCancelled(id string) error {
	return r.db.Model(&model.UploadedFile{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     model.StatusCancelled,
			"updated_at": time.Now(),
		}).Error
}
