package controllers

import (
	"fmt"
	"moriportal/internal/models"
	"moriportal/internal/providers"
	"moriportal/internal/services"
	"net/http"
	"strconv"

	json "github.com/goccy/go-json"
	"github.com/gookit/validate"
)

type SettingsController struct {
	logger   providers.Logger
	service  services.EngagementServiceInterface
	identity providers.IdentityProviderInterface
	metrics  providers.MetricsProviderInterface
}

func NewSettingsController(
	logger providers.Logger,
	service services.EngagementServiceInterface,
	identity providers.IdentityProviderInterface,
	metrics providers.MetricsProviderInterface,
) *SettingsController {
	return &SettingsController{
		logger:   logger,
		service:  service,
		identity: identity,
		metrics:  metrics,
	}
}

type settingsResponse struct {
	Settings *models.UserSettings `json:"settings"`
}

func (sc *SettingsController) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFor(err)
	switch {
	case status == http.StatusUnauthorized:
		sc.logger.Debugf(providers.TypeAuth, "%s %s: %s", r.Method, r.URL.Path, err)
	case status >= http.StatusInternalServerError:
		sc.metrics.IncStoreErrors("settings")
		sc.logger.Errorf(providers.GetLogTypeByRequestType(r.Method), "settings failed: %s", err)
	}
	writeError(w, status, msg)
}

func (sc *SettingsController) GetSettings(w http.ResponseWriter, r *http.Request) {
	ident, err := resolveIdentity(r.Context(), r, sc.identity)
	if err != nil {
		sc.fail(w, r, err)
		return
	}
	s, err := sc.service.GetSettings(r.Context(), ident.UserID)
	if err != nil {
		sc.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settingsResponse{Settings: s})
}

func (sc *SettingsController) SaveSettings(w http.ResponseWriter, r *http.Request) {
	ident, err := resolveIdentity(r.Context(), r, sc.identity)
	if err != nil {
		sc.fail(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	var patch models.SettingsPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "Bad Request")
		return
	}
	if err := validatePatch(&patch); err != nil {
		sc.fail(w, r, err)
		return
	}

	s, err := sc.service.SaveSettings(r.Context(), ident.UserID, &patch)
	if err != nil {
		sc.fail(w, r, err)
		return
	}
	sc.logger.Debugf(providers.TypePost, "Settings saved for %s: limit=%d", ident.UserID, s.DailyLimitMinutes)
	writeJSON(w, http.StatusOK, settingsResponse{Settings: s})
}

func validatePatch(p *models.SettingsPatch) error {
	limitRule := "int|min:0|max:" + strconv.Itoa(models.MaxLimitMinutes)

	data := map[string]any{}
	if p.DailyLimitMinutes != nil {
		data["dailyLimitMinutes"] = *p.DailyLimitMinutes
	}
	if p.WeekendLimitMinutes != nil {
		data["weekendLimitMinutes"] = *p.WeekendLimitMinutes
	}
	if p.RestReminderMinutes != nil {
		data["restReminderMinutes"] = *p.RestReminderMinutes
	}
	if p.DisplayName != nil {
		data["displayName"] = *p.DisplayName
	}
	if p.AvatarURL != nil && *p.AvatarURL != "" {
		data["avatarUrl"] = *p.AvatarURL
	}

	v := validate.Map(data)
	v.StringRule("dailyLimitMinutes", "required|"+limitRule)
	v.StringRule("weekendLimitMinutes", limitRule)
	v.StringRule("restReminderMinutes", limitRule)
	v.StringRule("displayName", "maxLen:64")
	v.StringRule("avatarUrl", "fullUrl")
	if !v.Validate() {
		return fmt.Errorf("%w: %s", models.ErrValidation, v.Errors.One())
	}
	return nil
}
