package model

import "gorm.io/gorm"

// Client is an organisation that receives upload links. Code is the short
// uppercase identifier used as the first segment of canonical storage keys.
type Client struct {
	gorm.Model
	Name     string    `json:"name"`
	Code     string    `json:"code" gorm:"uniqueIndex"`
	Projects []Project `json:"projects,omitempty"`
}
