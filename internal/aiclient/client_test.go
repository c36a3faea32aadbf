package aiclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecommendPostsPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/audience-recommendations", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer s3cret", r.Header.Get("Authorization"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "slow onboarding", body["problem_statement"])

		w.Write([]byte(`{"audiences":["internal"]}`))
	}))
	defer srv.Close()

	c := New(srv.URL+"/", WithToken("s3cret"))
	raw, err := c.Recommend(context.Background(), "audience-recommendations", map[string]string{
		"problem_statement": "slow onboarding",
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"audiences":["internal"]}`, string(raw))
}

func TestRecommendStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := New(srv.URL).Recommend(context.Background(), "recommendations", nil)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusServiceUnavailable, se.StatusCode)
	assert.Equal(t, "recommendations", se.Endpoint)
	assert.Equal(t, "model overloaded", se.Body)
}

func TestRecommendEmptyEndpoint(t *testing.T) {
	_, err := New("").Recommend(context.Background(), "", nil)
	assert.True(t, errors.Is(err, ErrEmptyEndpoint))
}

func TestValidateWarnings(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []string
	}{
		{"warnings", `{"warnings":["Budget missing"]}`, []string{"Budget missing"}},
		{"absent", `{}`, []string{}},
		{"null", `{"warnings":null}`, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/validate-challenge", r.URL.Path)
				var req map[string]json.RawMessage
				require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
				assert.Contains(t, req, "challenge_data")
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			got, err := New(srv.URL).Validate(context.Background(), map[string]any{"challenge-type": map[string]any{}})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestImpactPreview(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req impactRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "rtp", req.ChallengeType)
		json.NewEncoder(w).Encode(impactResponse{ImpactPreview: "Working demos in 8 weeks"})
	}))
	defer srv.Close()

	got, err := New(srv.URL).ImpactPreview(context.Background(), "p", "rtp")
	require.NoError(t, err)
	assert.Equal(t, "Working demos in 8 weeks", got)
}

func TestContextCancellation(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := New(srv.URL).Recommend(ctx, "recommendations", nil)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	_, err := New(srv.URL).Validate(context.Background(), nil)
	assert.Error(t, err)
}
