package service_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/set-night/batchtxt/internal/config"
	"github.com/set-night/batchtxt/internal/domain"
	"github.com/set-night/batchtxt/internal/platform"
	"github.com/set-night/batchtxt/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// kgsUpstream fakes the handful of KGS endpoints the extractor walks.
func kgsUpstream(t *testing.T, courses string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/login-with-password" {
			assert.NoError(t, r.ParseForm())
			if r.PostForm.Get("phone") == "9876543210" && r.PostForm.Get("password") == "s3cret*x" {
				fmt.Fprint(w, `{"token":"kgs-token"}`)
				return
			}
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		if r.Header.Get("authorization") != "Bearer kgs-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/api/user/v2/courses":
			fmt.Fprint(w, courses)
		case "/api/user/courses/42/v2-lessons":
			fmt.Fprint(w, `[{"id":1}]`)
		case "/api/lessons/1":
			fmt.Fprint(w, `{"videos":[{"name":"Polity: Part 1","video_url":"https://v.example/p1.m3u8"}]}`)
		case "/api/user/courses/43/v2-lessons":
			fmt.Fprint(w, `[]`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newExtractor(t *testing.T, srv *httptest.Server) (*service.ExtractorService, *service.Metrics) {
	t.Helper()
	reg := platform.NewRegistry(&config.Config{}, map[string]config.PlatformOverride{
		"kgs": {BaseURL: srv.URL},
	})
	m := service.NewMetrics()
	return service.NewExtractorService(reg, srv.Client(), m), m
}

const oneCourse = `[{"id":42,"title":"UPSC Foundation"},{"id":43,"title":"Empty Course"}]`

func TestExtractor_LoginAndExtract(t *testing.T) {
	srv := kgsUpstream(t, oneCourse)
	ex, m := newExtractor(t, srv)
	ctx := context.Background()

	token, err := ex.Authenticate(ctx, "kgs", platform.ParseCredential("9876543210*s3cret*x"))
	require.NoError(t, err)
	assert.Equal(t, "kgs-token", token)

	batches, err := ex.Batches(ctx, "kgs", token)
	require.NoError(t, err)
	require.Len(t, batches, 2)
	assert.Equal(t, "42", batches[0].ID)

	subjects, err := ex.Subjects(ctx, "kgs", token, "42")
	require.NoError(t, err)
	assert.Nil(t, subjects)

	res, err := ex.Extract(ctx, "kgs", token, platform.ExtractRequest{Batch: batches[0]})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Items)
	assert.Equal(t, "=== Subject: UPSC Foundation ===\n\nPolity Part 1: https://v.example/p1.m3u8\n", res.Report.String())

	assert.Equal(t, 1.0, counterValue(t, m, "batchtxt_extractions_total", map[string]string{"platform": "kgs", "outcome": "ok"}))
	assert.Equal(t, 4.0, counterValue(t, m, "batchtxt_upstream_requests_total", map[string]string{"platform": "kgs", "status": "200"}))
}

func TestExtractor_TokenPassthrough(t *testing.T) {
	srv := kgsUpstream(t, oneCourse)
	ex, _ := newExtractor(t, srv)

	token, err := ex.Authenticate(context.Background(), "kgs", platform.ParseCredential("  raw-token "))
	require.NoError(t, err)
	assert.Equal(t, "raw-token", token)

	_, err = ex.Authenticate(context.Background(), "kgs", platform.ParseCredential(""))
	require.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestExtractor_BadPassword(t *testing.T) {
	srv := kgsUpstream(t, oneCourse)
	ex, _ := newExtractor(t, srv)

	_, err := ex.Authenticate(context.Background(), "kgs", platform.ParseCredential("9876543210*wrong"))
	require.ErrorIs(t, err, domain.ErrLoginFailed)
	assert.Equal(t, domain.KindAuthFailure, domain.KindOf(err))
}

func TestExtractor_InvalidToken(t *testing.T) {
	srv := kgsUpstream(t, oneCourse)
	ex, _ := newExtractor(t, srv)

	_, err := ex.Batches(context.Background(), "kgs", "expired")
	require.ErrorIs(t, err, domain.ErrInvalidToken)
	assert.Equal(t, domain.KindAuthFailure, domain.KindOf(err))
}

func TestExtractor_NoBatches(t *testing.T) {
	srv := kgsUpstream(t, `[]`)
	ex, _ := newExtractor(t, srv)

	_, err := ex.Batches(context.Background(), "kgs", "kgs-token")
	require.ErrorIs(t, err, domain.ErrNoBatches)
	assert.Equal(t, domain.KindEmptyResult, domain.KindOf(err))
}

func TestExtractor_NoContent(t *testing.T) {
	srv := kgsUpstream(t, oneCourse)
	ex, m := newExtractor(t, srv)

	_, err := ex.Extract(context.Background(), "kgs", "kgs-token", platform.ExtractRequest{
		Batch: domain.BatchSummary{ID: "43", Name: "Empty Course"},
	})
	require.ErrorIs(t, err, domain.ErrNoContent)
	assert.Equal(t, domain.KindEmptyResult, domain.KindOf(err))
	assert.Equal(t, 1.0, counterValue(t, m, "batchtxt_extractions_total", map[string]string{"platform": "kgs", "outcome": "empty"}))
}

func TestExtractor_DisabledPlatform(t *testing.T) {
	reg := platform.NewRegistry(&config.Config{}, map[string]config.PlatformOverride{
		"ak": {Disabled: true},
	})
	ex := service.NewExtractorService(reg, http.DefaultClient, nil)

	_, err := ex.Batches(context.Background(), "ak", "tok")
	require.ErrorIs(t, err, domain.ErrPlatformOff)
}

func TestExtractor_NoSubjects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/batches/B1/details", r.URL.Path)
		fmt.Fprint(w, `{"data":{"subjects":[]}}`)
	}))
	defer srv.Close()

	reg := platform.NewRegistry(&config.Config{}, map[string]config.PlatformOverride{
		"pw": {BaseURL: srv.URL},
	})
	ex := service.NewExtractorService(reg, srv.Client(), nil)

	_, err := ex.Subjects(context.Background(), "pw", "tok", "B1")
	require.ErrorIs(t, err, domain.ErrNoSubjects)
	assert.Equal(t, domain.KindEmptyResult, domain.KindOf(err))
}

func TestMetrics_Handler(t *testing.T) {
	m := service.NewMetrics()
	m.SessionStarted("pw")
	m.ObserveUpstream("pw", 0)
	m.Converted()

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	text := string(body)
	assert.True(t, strings.Contains(text, `batchtxt_sessions_started_total{platform="pw"} 1`))
	assert.True(t, strings.Contains(text, `batchtxt_upstream_requests_total{platform="pw",status="0"} 1`))
	assert.True(t, strings.Contains(text, `batchtxt_html_conversions_total 1`))
}

func counterValue(t *testing.T, m *service.Metrics, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)

	for _, f := range families {
		if f.GetName() != name {
			continue
		}
	metrics:
		for _, metric := range f.GetMetric() {
			for _, lp := range metric.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					continue metrics
				}
			}
			return metric.GetCounter().GetValue()
		}
	}
	return 0
}
