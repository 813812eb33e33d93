package repository

import (
	"gorm.io/gorm"

	"mediadrop/portal/internal/model"
)

type ClientRepository interface {
	Create(client *model.Client) error
	FindByID(id uint) (*model.Client, error)
	FindByCode(code string) (*model.Client, error)
	FindAll() ([]model.Client, error)
}

type clientRepository struct {
	db *gorm.DB
}

func NewClientRepository(db *gorm.DB) ClientRepository {
	return &clientRepository{db: db}
}

func (r *clientRepository) Create(client *model.Client) error {
	return r.db.Create(client).Error
}

func (r *clientRepository) FindByID(id uint) (*model.Client, error) {
	var client model.Client
	if err := r.db.Preload("Projects").First(&client, id).Error; err != nil {
		return nil, err
	}
	return &client, nil
}

func (r *clientRepository) FindByCode(code string) (*model.Client, error) {
	var client model.Client
	if err := r.db.Where("code = ?", code).First(&client).Error; err != nil {
		return nil, err
	}
	return &client, nil
}

func (r *clientRepository) FindAll() ([]model.Client, error) {
	var clients []model.Client
	if err := r.db.Find(&clients).Error; err != nil {
		return nil, err
	}
	return clients, nil
}
