package moderation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGatewayNoEndpointUsesHeuristic(t *testing.T) {
	g := NewGateway("")
	in := Input{Title: "A decent title", Description: "short", ImageURLs: []string{"a", "b"}}

	got := g.RunCheck(context.Background(), in)

	assert.Equal(t, Evaluate(in.Title, in.Description, in.ImageURLs), got)
	assert.Equal(t, "local_heuristic", got.Details["mode"])
}

func TestGatewayRemoteSuccess(t *testing.T) {
	var received map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"title_status":       "GREEN",
			"description_status": "RED",
			"images_status":      "ORANGE",
			"score":              0.62,
			"details":            map[string]interface{}{"mode": "remote", "model": "v3"},
		})
	}))
	defer srv.Close()

	g := NewGateway(srv.URL)
	got := g.RunCheck(context.Background(), Input{
		Title:       "Brass pocket watch",
		Description: "bad",
		ImageURLs:   []string{"a"},
	})

	assert.Equal(t, "Brass pocket watch", received["title"])
	assert.Equal(t, "bad", received["description"])
	assert.Equal(t, []interface{}{"a"}, received["images"])

	assert.Equal(t, Green, got.TitleStatus)
	assert.Equal(t, Red, got.DescriptionStatus)
	assert.Equal(t, Orange, got.ImagesStatus)
	assert.InDelta(t, 0.62, got.Score, 1e-9)
	assert.Equal(t, "remote", got.Details["mode"])
}

func TestGatewayRemoteSendsEmptyImagesArray(t *testing.T) {
	var received map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		json.NewEncoder(w).Encode(map[string]interface{}{"score": 0.5})
	}))
	defer srv.Close()

	NewGateway(srv.URL).RunCheck(context.Background(), Input{Title: "t", Description: "d"})

	assert.Equal(t, []interface{}{}, received["images"])
}

func TestGatewayRemoteMissingLightsDefaultOrange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"score": 2.5})
	}))
	defer srv.Close()

	got := NewGateway(srv.URL).RunCheck(context.Background(), Input{})

	assert.Equal(t, Orange, got.TitleStatus)
	assert.Equal(t, Orange, got.DescriptionStatus)
	assert.Equal(t, Orange, got.ImagesStatus)
	assert.InDelta(t, 1.0, got.Score, 1e-9)
}

func TestGatewayRemoteDetailsFallBackToBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"title_status": "GREEN",
			"score":        0.9,
			"verdict":      "clean",
		})
	}))
	defer srv.Close()

	got := NewGateway(srv.URL).RunCheck(context.Background(), Input{})

	assert.Equal(t, "clean", got.Details["verdict"])
}

func TestGatewayFallsBackOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	in := Input{Title: "A nice long title", Description: "too short", ImageURLs: []string{"a", "b"}}
	got := NewGateway(srv.URL).RunCheck(context.Background(), in)

	local := Evaluate(in.Title, in.Description, in.ImageURLs)
	assert.Equal(t, local.TitleStatus, got.TitleStatus)
	assert.Equal(t, local.DescriptionStatus, got.DescriptionStatus)
	assert.Equal(t, local.ImagesStatus, got.ImagesStatus)
	assert.InDelta(t, local.Score, got.Score, 1e-9)
	assert.Equal(t, "fallback_after_error", got.Details["mode"])
	assert.NotEmpty(t, got.Details["error"])
}

func TestGatewayFallsBackOnMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json at all"))
	}))
	defer srv.Close()

	got := NewGateway(srv.URL).RunCheck(context.Background(), Input{Title: "x"})

	assert.Equal(t, "fallback_after_error", got.Details["mode"])
}

func TestGatewayFallsBackOnUnreachableService(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	got := NewGateway(srv.URL).RunCheck(context.Background(), Input{Title: "x"})

	assert.Equal(t, "fallback_after_error", got.Details["mode"])
}
