package handlers

import (
	"net/http"
	"strconv"

	"github.com/kaiboard/backend/internal/api/middleware"
	"github.com/kaiboard/backend/internal/storage"
	"github.com/kaiboard/backend/internal/storage/models"
)

// SettingsResponse represents settings in API responses. Unset values are
// empty strings; the server then uses its configured defaults.
type SettingsResponse struct {
	DefaultTimezone     string `json:"default_timezone"`
	DefaultDurationMin  string `json:"default_duration_min"`
	ReminderLeadMinutes string `json:"reminder_lead_minutes"`
}

// GetSettings returns all settings.
func GetSettings(settings *storage.SettingsRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		all, err := settings.All(r.Context())
		if err != nil {
			writeFailure(w, r, err, "Failed to query settings")
			return
		}

		writeJSON(w, http.StatusOK, SettingsResponse{
			DefaultTimezone:     all[models.SettingDefaultTimezone],
			DefaultDurationMin:  all[models.SettingDefaultDurationMin],
			ReminderLeadMinutes: all[models.SettingReminderLeadMinutes],
		})
	}
}

// UpdateSettings saves the non-empty fields of the body. The default
// timezone is stored in its normalized form; numeric settings must be
// whole minutes between 1 and 1440.
func UpdateSettings(settings *storage.SettingsRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SettingsResponse
		if !decodeJSON(w, r, &req) {
			return
		}

		updates := map[string]string{}
		if req.DefaultTimezone != "" {
			zone, err := parseZone(req.DefaultTimezone)
			if err != nil {
				writeFailure(w, r, err, "Invalid default timezone")
				return
			}
			req.DefaultTimezone = zone.String()
			updates[models.SettingDefaultTimezone] = req.DefaultTimezone
		}
		for key, value := range map[string]string{
			models.SettingDefaultDurationMin:  req.DefaultDurationMin,
			models.SettingReminderLeadMinutes: req.ReminderLeadMinutes,
		} {
			if value == "" {
				continue
			}
			n, err := strconv.Atoi(value)
			if err != nil || n < 1 || n > 1440 {
				middleware.WriteErrorWithDetails(w, http.StatusBadRequest, middleware.ErrValidation,
					"Value must be a whole number of minutes between 1 and 1440", map[string]string{"key": key})
				return
			}
			updates[key] = strconv.Itoa(n)
		}

		for key, value := range updates {
			if err := settings.Set(r.Context(), key, value); err != nil {
				writeFailure(w, r, err, "Failed to update settings")
				return
			}
		}

		all, err := settings.All(r.Context())
		if err != nil {
			writeFailure(w, r, err, "Failed to query settings")
			return
		}
		writeJSON(w, http.StatusOK, SettingsResponse{
			DefaultTimezone:     all[models.SettingDefaultTimezone],
			DefaultDurationMin:  all[models.SettingDefaultDurationMin],
			ReminderLeadMinutes: all[models.SettingReminderLeadMinutes],
		})
	}
}
