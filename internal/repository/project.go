package repository

import (
	"gorm.io/gorm"

	"mediadrop/portal/internal/model"
)

type ProjectRepository interface {
	Create(project *model.Project) error
	FindByID(id uint) (*model.Project, error)
	FindAll() ([]model.Project, error)
}

type projectRepository struct {
	db *gorm.DB
}

func NewProjectRepository(db *gorm.DB) ProjectRepository {
	return &projectRepository{db: db}
}

func (r *projectRepository) Create(project *model.Project) error {
	return r.db.Create(project).Error
}

func (r *projectRepository) FindByID(id uint) (*model.Project, error) {
	var project model.Project
	if err := r.db.Preload("Client").First(&project, id).Error; err != nil {
		return nil, err
	}
	return &project, nil
}

func (r *projectRepository) FindAll() ([]model.Project, error) {
	var projects []model.Project
	if err := r.db.Preload("Client").Find(&projects).Error; err != nil {
		return nil, err
	}
	return projects, nil
}
