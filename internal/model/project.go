package model

import "gorm.io/gorm"

type Project struct {
	gorm.Model
	Name        string         `json:"name"`
	Description string         `json:"description"`
	ClientID    uint           `json:"client_id"`
	Client      *Client        `json:"client,omitempty"`
	UploadLinks []UploadLink   `json:"upload_links,omitempty"`
	Files       []UploadedFile `json:"files,omitempty"`
}
