package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Coach is a row of the coach directory. AgentId is the upstream voice agent bound to it.
type Coach struct {
	Id        uuid.UUID      `gorm:"type:uuid;primaryKey"`
	Name      string         `gorm:"type:varchar(255);not null"`
	Slug      *string        `gorm:"type:varchar(255);uniqueIndex"`
	AgentId   *string        `gorm:"type:varchar(255)"`
	VoiceId   *string        `gorm:"type:varchar(255)"`
	CreatedAt time.Time      `gorm:"autoCreateTime"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

func (Coach) TableName() string {
	return "coaches"
}

func (c *Coach) BeforeCreate(tx *gorm.DB) error {
	if c.Id == uuid.Nil {
		c.Id = uuid.New()
	}
	return nil
}
