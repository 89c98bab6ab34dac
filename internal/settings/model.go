package settings

import "time"

// Setting is one key-value row of runtime configuration editable by admins.
type Setting struct {
	Key       string    `json:"key" gorm:"primaryKey;type:text"`
	Value     string    `json:"value" gorm:"type:text;not null"`
	UpdatedAt time.Time `json:"updated_at" gorm:"not null"`
}

func (Setting) TableName() string { return "settings" }

const (
	KeyTaxPercent = "tax_percent"
	KeyStoreName  = "store_name"
	KeyStoreOpen  = "store_open"
)
