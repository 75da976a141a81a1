package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rainlog/internal/auth"
	masterdata "rainlog/internal/masterdata/domain"
	rainapp "rainlog/internal/rainfall/application"
	rainfall "rainlog/internal/rainfall/domain"
)

func newTestRenderer(t *testing.T) *Renderer {
	t.Helper()
	r, err := NewRenderer(time.UTC, nil)
	require.NoError(t, err)
	return r
}

func signedInRequest(path string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	ctx := auth.WithIdentity(req.Context(), auth.Identity{UserID: 7, Username: "ali", Role: auth.RoleUser})
	ctx = auth.WithCSRFToken(ctx, "tok-123")
	return req.WithContext(ctx)
}

func TestNewRendererRejectsNilLocation(t *testing.T) {
	_, err := NewRenderer(nil, nil)
	assert.Error(t, err)
}

func TestRenderDashboard(t *testing.T) {
	renderer := newTestRenderer(t)
	req := signedInRequest("/dashboard")
	data := &rainapp.Dashboard{
		Filter: rainapp.Filter{
			Input:   rainapp.FilterInput{Station: "2"},
			Notices: []string{"تاریخ \"1403/13/01\" معتبر نیست و فیلتر آن اعمال نشد"},
		},
		Stations: []masterdata.Station{{ID: 1, Name: "بستک"}, {ID: 2, Name: "میناب"}},
		Records: []rainfall.ObservationView{{
			Observation: rainfall.Observation{
				ID:         41,
				Timestamp:  time.Date(2024, 10, 16, 3, 0, 0, 0, time.UTC),
				RainfallMM: 12.5,
				TimeBucket: rainfall.Bucket0306,
			},
			StationName: "میناب",
		}},
	}

	rec := httptest.NewRecorder()
	renderer.Render(rec, http.StatusOK, PageDashboard, NewPage(req, "داشبورد", data))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, body, `dir="rtl"`)
	assert.Contains(t, body, `content="tok-123"`)
	assert.Contains(t, body, "1403/07/25")
	assert.Contains(t, body, "03:00")
	assert.Contains(t, body, "12.5")
	assert.Contains(t, body, `<option value="2" selected>`)
	assert.Contains(t, body, "فیلتر آن اعمال نشد")
	assert.Contains(t, body, "/records/41/edit")
	assert.NotContains(t, body, "scope=all")
}

func TestRenderEntryFormEchoesInput(t *testing.T) {
	renderer := newTestRenderer(t)
	req := signedInRequest("/enter")
	view := EntryView{
		Form:     rainfall.EntryForm{Station: "1", Date: "1403/07/31", TimeRange: "06-09", Rainfall: "abc"},
		Errors:   map[string]string{"date": `تاریخ "1403/07/31" معتبر نیست (YYYY/MM/DD)`},
		Stations: []masterdata.Station{{ID: 1, Name: "بستک"}},
	}

	rec := httptest.NewRecorder()
	renderer.Render(rec, http.StatusBadRequest, PageEnter, NewPage(req, "ثبت", view))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `value="1403/07/31"`)
	assert.Contains(t, body, `value="abc"`)
	assert.Contains(t, body, `<option value="06-09" selected>`)
	assert.Contains(t, body, `name="csrf_token" value="tok-123"`)
}

func TestRenderAnonymousPages(t *testing.T) {
	renderer := newTestRenderer(t)
	req := httptest.NewRequest(http.MethodGet, "/login", nil)
	req = req.WithContext(auth.WithCSRFToken(context.Background(), "anon"))

	rec := httptest.NewRecorder()
	renderer.Render(rec, http.StatusOK, PageLogin, NewPage(req, "ورود", LoginView{Next: "/dashboard", Error: "نام کاربری یا رمز عبور اشتباه است"}))
	body := rec.Body.String()
	assert.Contains(t, body, `name="next" value="/dashboard"`)
	assert.Contains(t, body, "اشتباه است")
	assert.Contains(t, body, `href="/register"`)
	assert.NotContains(t, body, "/logout")

	for _, page := range []string{PageIndex, PageRegister, PageError} {
		var data any
		if page == PageRegister {
			data = RegisterView{}
		}
		rec := httptest.NewRecorder()
		renderer.Render(rec, http.StatusOK, page, NewPage(req, "", data))
		assert.Equal(t, http.StatusOK, rec.Code, page)
	}
}

func TestRenderUnknownPage(t *testing.T) {
	renderer := newTestRenderer(t)
	rec := httptest.NewRecorder()
	renderer.Render(rec, http.StatusOK, "missing", Page{})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestFlashRoundTrip(t *testing.T) {
	rec := httptest.NewRecorder()
	SetFlash(rec, "داده با موفقیت ثبت شد")

	req := httptest.NewRequest(http.MethodGet, "/enter", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	out := httptest.NewRecorder()
	assert.Equal(t, "داده با موفقیت ثبت شد", PopFlash(out, req))

	cleared := out.Result().Cookies()
	require.Len(t, cleared, 1)
	assert.Equal(t, FlashCookieName, cleared[0].Name)
	assert.True(t, cleared[0].MaxAge < 0)

	assert.Equal(t, "", PopFlash(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil)))
	assert.False(t, strings.Contains(rec.Header().Get("Set-Cookie"), "داده"))
}
