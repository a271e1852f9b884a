package models

import "time"

const (
	DefaultDailyLimitMinutes   = 30
	DefaultRestReminderMinutes = 15
	MaxLimitMinutes            = 24 * 60
)

func SettingsKey(userID string) string {
	return "user_settings_" + userID
}

// UserSettings is the server-held copy of a member's quota and profile settings.
type UserSettings struct {
	DailyLimitMinutes   int       `json:"dailyLimitMinutes"`
	WeekendLimitMinutes int       `json:"weekendLimitMinutes,omitempty"`
	RestReminderMinutes *int      `json:"restReminderMinutes,omitempty"`
	DisplayName         string    `json:"displayName,omitempty"`
	AvatarURL           string    `json:"avatarUrl,omitempty"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

// SettingsPatch carries a client-submitted update. Nil fields keep the stored value.
type SettingsPatch struct {
	DailyLimitMinutes   *int    `json:"dailyLimitMinutes"`
	WeekendLimitMinutes *int    `json:"weekendLimitMinutes,omitempty"`
	RestReminderMinutes *int    `json:"restReminderMinutes,omitempty"`
	DisplayName         *string `json:"displayName,omitempty"`
	AvatarURL           *string `json:"avatarUrl,omitempty"`
}

// Apply merges the patch into s and stamps UpdatedAt.
func (p *SettingsPatch) Apply(s *UserSettings, now time.Time) {
	if p.DailyLimitMinutes != nil {
		s.DailyLimitMinutes = *p.DailyLimitMinutes
	}
	if p.WeekendLimitMinutes != nil {
		s.WeekendLimitMinutes = *p.WeekendLimitMinutes
	}
	if p.RestReminderMinutes != nil {
		v := *p.RestReminderMinutes
		s.RestReminderMinutes = &v
	}
	if p.DisplayName != nil {
		s.DisplayName = *p.DisplayName
	}
	if p.AvatarURL != nil {
		s.AvatarURL = *p.AvatarURL
	}
	s.UpdatedAt = now
}
