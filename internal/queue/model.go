package queue

import "time"

// Counter holds the last issued queue number for one calendar date.
// Keying by date makes the daily reset implicit.
type Counter struct {
	Date       string    `json:"date" gorm:"primaryKey;type:text"`
	LastNumber int       `json:"last_number" gorm:"not null;default:0"`
	UpdatedAt  time.Time `json:"updated_at" gorm:"not null"`
}

func (Counter) TableName() string { return "queue_counters" }

// DateKey formats t as the counter's calendar-day key.
func DateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
