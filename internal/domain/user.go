package domain

import "time"

// User represents an application user stored in the database.
type User struct {
	ID           int64
	TelegramID   int64
	FirstName    string
	LastName     string
	Username     string
	LastActiveAt time.Time
	CreatedAt    time.Time
}

// GasPriority selects one of the gas oracle fee tiers.
type GasPriority string

const (
	GasPriorityLow    GasPriority = "low"
	GasPriorityMedium GasPriority = "medium"
	GasPriorityHigh   GasPriority = "high"
)

// UserSettings holds trading preferences that persist across flows.
type UserSettings struct {
	SlippagePercent float64
	GasPriority     GasPriority
}

// DefaultSettings returns the preferences applied to users who never
// touched /settings.
func DefaultSettings() *UserSettings {
	return &UserSettings{
		SlippagePercent: 1.0,
		GasPriority:     GasPriorityMedium,
	}
}
