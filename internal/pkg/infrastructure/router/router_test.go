package router

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/matryer/is"
)

type fakeHealth struct {
	loaded   bool
	lastTick time.Time
}

func (f fakeHealth) IsMappingLoaded() bool { return f.loaded }
func (f fakeHealth) LastTick() time.Time   { return f.lastTick }

func TestHealthzStalledLoop(t *testing.T) {
	is := is.New(t)
	r := New("nut-agent", fakeHealth{loaded: true, lastTick: time.Now().Add(-3 * time.Minute)})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	is.Equal(rec.Code, http.StatusServiceUnavailable)
}

func TestHealthzFreshLoop(t *testing.T) {
	is := is.New(t)
	r := New("nut-agent", fakeHealth{loaded: true, lastTick: time.Now()})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	is.Equal(rec.Code, http.StatusOK)
}

func TestReadyzMappingNotLoaded(t *testing.T) {
	is := is.New(t)
	r := New("nut-agent", fakeHealth{loaded: false})

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	is.Equal(rec.Code, http.StatusServiceUnavailable)
}
