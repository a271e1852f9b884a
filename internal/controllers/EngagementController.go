package controllers

import (
	"errors"
	"moriportal/internal/models"
	"moriportal/internal/providers"
	"moriportal/internal/services"
	"net/http"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
)

type EngagementController struct {
	logger   providers.Logger
	service  services.EngagementServiceInterface
	cache    providers.CacheProviderInterface
	identity providers.IdentityProviderInterface
	metrics  providers.MetricsProviderInterface
}

func NewEngagementController(
	logger providers.Logger,
	service services.EngagementServiceInterface,
	cache providers.CacheProviderInterface,
	identity providers.IdentityProviderInterface,
	metrics providers.MetricsProviderInterface,
) *EngagementController {
	return &EngagementController{
		logger:   logger,
		service:  service,
		cache:    cache,
		identity: identity,
		metrics:  metrics,
	}
}

type countResponse struct {
	Count int `json:"count"`
}

type countsResponse struct {
	Counts map[string]int `json:"counts"`
}

type likeResponse struct {
	Liked bool `json:"liked"`
	Count int  `json:"count"`
}

type collectResponse struct {
	Collected bool `json:"collected"`
	Count     int  `json:"count"`
}

func countsCacheKey(kind models.Kind) string {
	return "counts:" + string(kind)
}

func (ec *EngagementController) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, msg := statusFor(err)
	logType := providers.GetLogTypeByRequestType(r.Method)
	switch {
	case status == http.StatusUnauthorized:
		ec.logger.Debugf(providers.TypeAuth, "%s %s: %s", r.Method, r.URL.Path, err)
	case status >= http.StatusInternalServerError:
		if errors.Is(err, models.ErrStore) {
			ec.metrics.IncStoreErrors(op)
		}
		ec.logger.Errorf(logType, "%s failed: %s", op, err)
	default:
		ec.logger.Warnf(logType, "%s rejected: %s", op, err)
	}
	writeError(w, status, msg)
}

func (ec *EngagementController) serveFromCacheOrCompute(w http.ResponseWriter, r *http.Request, cacheKey string, compute func() (any, error)) {
	if data, ok := ec.cache.Get(cacheKey); ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
		return
	}

	result, err := compute()
	if err != nil {
		ec.fail(w, r, cacheKey, err)
		return
	}

	gson, err := json.Marshal(result)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	ec.cache.Set(cacheKey, gson)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(gson)
}

func (ec *EngagementController) serveCounts(w http.ResponseWriter, r *http.Request, kind models.Kind) {
	ec.serveFromCacheOrCompute(w, r, countsCacheKey(kind), func() (any, error) {
		counts, err := ec.service.GetCounts(r.Context(), kind)
		if err != nil {
			return nil, err
		}
		return countsResponse{Counts: counts}, nil
	})
}

func (ec *EngagementController) GetViewCounts(w http.ResponseWriter, r *http.Request) {
	ec.serveCounts(w, r, models.KindView)
}

func (ec *EngagementController) GetLikeCounts(w http.ResponseWriter, r *http.Request) {
	ec.serveCounts(w, r, models.KindLike)
}

func (ec *EngagementController) GetCollectionCounts(w http.ResponseWriter, r *http.Request) {
	ec.serveCounts(w, r, models.KindCollect)
}

func (ec *EngagementController) View(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	count, err := ec.service.Increment(r.Context(), id, models.KindView)
	if err != nil {
		ec.fail(w, r, "view", err)
		return
	}
	ec.cache.Del(countsCacheKey(models.KindView))
	ec.metrics.IncViews()
	writeJSON(w, http.StatusOK, countResponse{Count: count})
}

func (ec *EngagementController) toggle(w http.ResponseWriter, r *http.Request, kind models.Kind) (models.ToggleResult, bool) {
	ident, err := resolveIdentity(r.Context(), r, ec.identity)
	if err != nil {
		ec.fail(w, r, string(kind), err)
		return models.ToggleResult{}, false
	}

	res, err := ec.service.Toggle(r.Context(), ident.UserID, chi.URLParam(r, "id"), kind)
	if err != nil {
		ec.fail(w, r, string(kind), err)
		return models.ToggleResult{}, false
	}
	ec.cache.Del(countsCacheKey(kind))
	ec.metrics.IncToggles(string(kind), res.IsOn)
	return res, true
}

func (ec *EngagementController) Like(w http.ResponseWriter, r *http.Request) {
	if res, ok := ec.toggle(w, r, models.KindLike); ok {
		writeJSON(w, http.StatusOK, likeResponse{Liked: res.IsOn, Count: res.Count})
	}
}

func (ec *EngagementController) Collect(w http.ResponseWriter, r *http.Request) {
	if res, ok := ec.toggle(w, r, models.KindCollect); ok {
		writeJSON(w, http.StatusOK, collectResponse{Collected: res.IsOn, Count: res.Count})
	}
}

func (ec *EngagementController) userToggles(w http.ResponseWriter, r *http.Request, kind models.Kind, field string) {
	ident, err := resolveIdentity(r.Context(), r, ec.identity)
	if err != nil {
		ec.fail(w, r, "user "+string(kind), err)
		return
	}
	ids, err := ec.service.GetUserToggles(r.Context(), ident.UserID, kind)
	if err != nil {
		ec.fail(w, r, "user "+string(kind), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{field: ids})
}

func (ec *EngagementController) GetUserLikes(w http.ResponseWriter, r *http.Request) {
	ec.userToggles(w, r, models.KindLike, "likes")
}

func (ec *EngagementController) GetUserCollections(w http.ResponseWriter, r *http.Request) {
	ec.userToggles(w, r, models.KindCollect, "collections")
}

func (ec *EngagementController) VisitCount(w http.ResponseWriter, r *http.Request) {
	count, err := ec.service.IncrementVisits(r.Context())
	if err != nil {
		ec.fail(w, r, "visit", err)
		return
	}
	writeJSON(w, http.StatusOK, countResponse{Count: count})
}
