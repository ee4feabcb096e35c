package capability

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reqflow/internal/domain"
)

func TestInvoke_OutputEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req invokeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "analyze this", req.Input)
		assert.Equal(t, "s1", req.SessionID)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"output": "functional requirement: login"}`))
	}))
	defer srv.Close()

	c := NewHTTPCapability("analyzer", srv.URL, time.Second)
	out, err := c.Invoke(context.Background(), "analyze this", "s1")
	require.NoError(t, err)
	assert.Equal(t, "functional requirement: login", out)
}

func TestInvoke_MessagePartsEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"message": {"parts": [{"text": "part one "}, {"text": "part two"}]}}`))
	}))
	defer srv.Close()

	c := NewHTTPCapability("analyzer", srv.URL, time.Second)
	out, err := c.Invoke(context.Background(), "x", "s1")
	require.NoError(t, err)
	assert.Equal(t, "part one part two", out)
}

func TestInvoke_TextEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"text": "plain answer"}`))
	}))
	defer srv.Close()

	c := NewHTTPCapability("generator", srv.URL, time.Second)
	out, err := c.Invoke(context.Background(), "x", "s1")
	require.NoError(t, err)
	assert.Equal(t, "plain answer", out)
}

func TestInvoke_RawBodyFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json at all"))
	}))
	defer srv.Close()

	c := NewHTTPCapability("analyzer", srv.URL, time.Second)
	out, err := c.Invoke(context.Background(), "x", "s1")
	require.NoError(t, err)
	assert.Equal(t, "not json at all", out)
}

func TestInvoke_EmptyResponseIsMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"output": ""}`))
	}))
	defer srv.Close()

	c := NewHTTPCapability("analyzer", srv.URL, time.Second)
	_, err := c.Invoke(context.Background(), "x", "s1")
	assert.ErrorIs(t, err, domain.ErrMalformedResponse)
}

func TestInvoke_ServerErrorIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewHTTPCapability("generator", srv.URL, time.Second)
	_, err := c.Invoke(context.Background(), "x", "s1")
	assert.ErrorIs(t, err, domain.ErrCapabilityUnavailable)
}

func TestInvoke_ConnectionRefusedIsUnavailable(t *testing.T) {
	c := NewHTTPCapability("analyzer", "http://127.0.0.1:1", time.Second)
	_, err := c.Invoke(context.Background(), "x", "s1")
	assert.ErrorIs(t, err, domain.ErrCapabilityUnavailable)
}

func TestInvoke_TimeoutClassification(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(`{"output": "late"}`))
	}))
	defer srv.Close()

	c := NewHTTPCapability("analyzer", srv.URL, 50*time.Millisecond)
	_, err := c.Invoke(context.Background(), "x", "s1")
	assert.ErrorIs(t, err, domain.ErrCapabilityTimeout)
}
