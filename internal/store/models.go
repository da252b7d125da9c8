package store

import "time"

// Setting is a small key/value row for state the app learns at runtime,
// such as the Telegram chat to alarm.
type Setting struct {
	Key       string    `gorm:"primaryKey" json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

const (
	SettingTelegramChat   = "telegram.chat_id"
	SettingLastReminderID = "reminder.last_id"
)
