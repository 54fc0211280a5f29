package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type Product struct {
	ID         snowflake.ID    `json:"id" gorm:"primaryKey"`
	Name       string          `json:"name" gorm:"type:varchar(100);not null"`
	HSN        string          `json:"hsn" gorm:"column:hsn;type:varchar(20);not null"`
	GSTPercent decimal.Decimal `json:"gst_percent" gorm:"column:gst_percent;type:numeric(24,8);not null"`
	Price      decimal.Decimal `json:"price" gorm:"type:numeric(24,8);not null"`
	CreatedAt  time.Time       `json:"created_at" gorm:"not null"`
	UpdatedAt  time.Time       `json:"updated_at" gorm:"not null"`
}

func (Product) TableName() string { return "products" }
