package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"moriportal/internal/models"
	"moriportal/internal/services"
	"moriportal/internal/storage"
	"moriportal/internal/testutil"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAnonKey = "anon-key"

// --- local mocks (scoped to controller tests) ---

// brokenService fails every store-backed call.
type brokenService struct{}

var errBroken = errors.New("broken")

func wrapStore(err error) error { return errors.Join(models.ErrStore, err) }

func (brokenService) Increment(context.Context, string, models.Kind) (int, error) {
	return 0, wrapStore(errBroken)
}
func (brokenService) Toggle(context.Context, string, string, models.Kind) (models.ToggleResult, error) {
	return models.ToggleResult{}, wrapStore(errBroken)
}
func (brokenService) GetCounts(context.Context, models.Kind) (map[string]int, error) {
	return nil, wrapStore(errBroken)
}
func (brokenService) GetUserToggles(context.Context, string, models.Kind) ([]string, error) {
	return nil, wrapStore(errBroken)
}
func (brokenService) IncrementVisits(context.Context) (int, error) { return 0, wrapStore(errBroken) }
func (brokenService) GetSettings(context.Context, string) (*models.UserSettings, error) {
	return nil, wrapStore(errBroken)
}
func (brokenService) SaveSettings(context.Context, string, *models.SettingsPatch) (*models.UserSettings, error) {
	return nil, wrapStore(errBroken)
}
func (brokenService) Ping(context.Context) error { return errBroken }

// --- helpers ---

type fixture struct {
	ctrl     *EngagementController
	cache    *testutil.MockCache
	metrics  *testutil.MockMetrics
	identity *testutil.MockIdentity
	logger   *testutil.MockLogger
}

func newFixture(svc services.EngagementServiceInterface) *fixture {
	f := &fixture{
		cache:   testutil.NewMockCache(),
		metrics: &testutil.MockMetrics{},
		identity: &testutil.MockIdentity{
			Key:    testAnonKey,
			Tokens: map[string]string{"tok-a": "alice", "tok-b": "bob"},
		},
		logger: &testutil.MockLogger{},
	}
	if svc == nil {
		svc = services.NewEngagementService(storage.NewMemoryStore())
	}
	f.ctrl = NewEngagementController(f.logger, svc, f.cache, f.identity, f.metrics)
	return f
}

func withID(req *http.Request, id string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func authed(req *http.Request, token string) *http.Request {
	req.Header.Set("Authorization", "Bearer "+testAnonKey)
	if token != "" {
		req.Header.Set("X-Access-Token", token)
	}
	return req
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	return out
}

func (f *fixture) view(id string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	f.ctrl.View(rr, withID(httptest.NewRequest(http.MethodPost, "/articles/"+id+"/view", nil), id))
	return rr
}

func (f *fixture) like(id, token string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	req := authed(httptest.NewRequest(http.MethodPost, "/articles/"+id+"/like", nil), token)
	f.ctrl.Like(rr, withID(req, id))
	return rr
}

// --- view / counts ---

func TestView_ThreeAnonymousViewsReported(t *testing.T) {
	f := newFixture(nil)

	for i := 0; i < 3; i++ {
		rr := f.view("42")
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, float64(i+1), decode(t, rr)["count"])
	}

	rr := httptest.NewRecorder()
	f.ctrl.GetViewCounts(rr, httptest.NewRequest(http.MethodGet, "/articles/counts", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"counts":{"42":3}}`, rr.Body.String())
	assert.Equal(t, 3, f.metrics.Views)
}

func TestCounts_ServedFromCacheUntilWrite(t *testing.T) {
	f := newFixture(nil)
	f.view("1")

	rr := httptest.NewRecorder()
	f.ctrl.GetViewCounts(rr, httptest.NewRequest(http.MethodGet, "/articles/counts", nil))
	assert.JSONEq(t, `{"counts":{"1":1}}`, rr.Body.String())
	_, cached := f.cache.Get("counts:view")
	assert.True(t, cached)

	f.view("1")
	_, cached = f.cache.Get("counts:view")
	assert.False(t, cached, "a view must invalidate the cached counts")

	rr = httptest.NewRecorder()
	f.ctrl.GetViewCounts(rr, httptest.NewRequest(http.MethodGet, "/articles/counts", nil))
	assert.JSONEq(t, `{"counts":{"1":2}}`, rr.Body.String())
}

func TestCounts_EmptyStore(t *testing.T) {
	f := newFixture(nil)

	rr := httptest.NewRecorder()
	f.ctrl.GetCollectionCounts(rr, httptest.NewRequest(http.MethodGet, "/articles/collection-counts", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"counts":{}}`, rr.Body.String())
}

// --- toggles ---

func TestLike_ToggleTwiceRestoresCount(t *testing.T) {
	f := newFixture(nil)

	rr := f.like("7", "tok-a")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"liked":true,"count":1}`, rr.Body.String())

	rr = f.like("7", "tok-a")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"liked":false,"count":0}`, rr.Body.String())

	rr = httptest.NewRecorder()
	f.ctrl.GetUserLikes(rr, authed(httptest.NewRequest(http.MethodGet, "/articles/user-likes", nil), "tok-a"))
	assert.JSONEq(t, `{"likes":[]}`, rr.Body.String())
	assert.Equal(t, 2, f.metrics.Toggles["like"])
}

func TestLike_TwoUsers(t *testing.T) {
	f := newFixture(nil)

	require.Equal(t, http.StatusOK, f.like("7", "tok-a").Code)
	rr := f.like("7", "tok-b")
	assert.JSONEq(t, `{"liked":true,"count":2}`, rr.Body.String())

	for _, tok := range []string{"tok-a", "tok-b"} {
		rr := httptest.NewRecorder()
		f.ctrl.GetUserLikes(rr, authed(httptest.NewRequest(http.MethodGet, "/articles/user-likes", nil), tok))
		assert.JSONEq(t, `{"likes":["7"]}`, rr.Body.String())
	}

	rr = httptest.NewRecorder()
	f.ctrl.GetLikeCounts(rr, httptest.NewRequest(http.MethodGet, "/articles/likes", nil))
	assert.JSONEq(t, `{"counts":{"7":2}}`, rr.Body.String())
}

func TestCollect_ResponseShape(t *testing.T) {
	f := newFixture(nil)

	rr := httptest.NewRecorder()
	req := authed(httptest.NewRequest(http.MethodPost, "/articles/3/collect", nil), "tok-b")
	f.ctrl.Collect(rr, withID(req, "3"))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"collected":true,"count":1}`, rr.Body.String())

	rr = httptest.NewRecorder()
	f.ctrl.GetUserCollections(rr, authed(httptest.NewRequest(http.MethodGet, "/articles/user-collections", nil), "tok-b"))
	assert.JSONEq(t, `{"collections":["3"]}`, rr.Body.String())
}

func TestLike_AuthErrorsAreDistinct(t *testing.T) {
	f := newFixture(nil)

	missing := f.like("7", "")
	assert.Equal(t, http.StatusUnauthorized, missing.Code)
	assert.Equal(t, models.ErrAuthMissing.Error(), decode(t, missing)["error"])

	invalid := f.like("7", "nope")
	assert.Equal(t, http.StatusUnauthorized, invalid.Code)
	assert.Equal(t, models.ErrAuthInvalid.Error(), decode(t, invalid)["error"])

	rr := httptest.NewRecorder()
	f.ctrl.GetLikeCounts(rr, httptest.NewRequest(http.MethodGet, "/articles/likes", nil))
	assert.JSONEq(t, `{"counts":{}}`, rr.Body.String(), "rejected toggles must not touch counts")
}

func TestLike_BearerUserTokenAccepted(t *testing.T) {
	f := newFixture(nil)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/articles/7/like", nil)
	req.Header.Set("Authorization", "Bearer tok-a")
	f.ctrl.Like(rr, withID(req, "7"))

	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestLike_IdentityUnavailable(t *testing.T) {
	f := newFixture(nil)
	f.identity.Err = models.ErrIdentityUnavailable

	rr := f.like("7", "tok-a")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestUserLikes_RequiresIdentity(t *testing.T) {
	f := newFixture(nil)

	rr := httptest.NewRecorder()
	f.ctrl.GetUserLikes(rr, authed(httptest.NewRequest(http.MethodGet, "/articles/user-likes", nil), ""))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

// --- visit counter ---

func TestVisitCount_Increments(t *testing.T) {
	f := newFixture(nil)

	for i := 1; i <= 2; i++ {
		rr := httptest.NewRecorder()
		f.ctrl.VisitCount(rr, httptest.NewRequest(http.MethodGet, "/visit-count", nil))
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, float64(i), decode(t, rr)["count"])
	}
}

// --- store failures ---

func TestStoreFailures_Return500(t *testing.T) {
	f := newFixture(brokenService{})

	cases := map[string]func() *httptest.ResponseRecorder{
		"view": func() *httptest.ResponseRecorder { return f.view("1") },
		"like": func() *httptest.ResponseRecorder { return f.like("1", "tok-a") },
		"counts": func() *httptest.ResponseRecorder {
			rr := httptest.NewRecorder()
			f.ctrl.GetViewCounts(rr, httptest.NewRequest(http.MethodGet, "/articles/counts", nil))
			return rr
		},
		"visit": func() *httptest.ResponseRecorder {
			rr := httptest.NewRecorder()
			f.ctrl.VisitCount(rr, httptest.NewRequest(http.MethodGet, "/visit-count", nil))
			return rr
		},
	}
	for name, call := range cases {
		t.Run(name, func(t *testing.T) {
			rr := call()
			assert.Equal(t, http.StatusInternalServerError, rr.Code)
			assert.Equal(t, "Internal Server Error", decode(t, rr)["error"])
		})
	}

	assert.Empty(t, f.cache.Data, "failed reads must not be cached")
	assert.Equal(t, 1, f.metrics.StoreErrors["view"])
	assert.Equal(t, 4, f.logger.Count("error"))
}
