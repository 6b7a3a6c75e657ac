package models

// Setting keys
const (
	SettingDefaultTimezone     = "default_timezone"
	SettingDefaultDurationMin  = "default_duration_min"
	SettingReminderLeadMinutes = "reminder_lead_minutes"
)

// SettingKeys lists every key the settings endpoint accepts.
var SettingKeys = []string{
	SettingDefaultTimezone,
	SettingDefaultDurationMin,
	SettingReminderLeadMinutes,
}
