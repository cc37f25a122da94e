package assistant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	apperr "jibber/pkg/errors"
)

func TestGenerate_Success(t *testing.T) {
	var got chatReq
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(chatResp{Message: Turn{Role: "assistant", Content: "hello there"}})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-model", time.Second)
	out, err := c.Generate(context.Background(), []Turn{{Role: "user", Content: "hi"}})
	require.NoError(t, err)
	require.Equal(t, "hello there", out)

	require.Equal(t, "test-model", got.Model)
	require.False(t, got.Stream)
	require.Len(t, got.Messages, 1)
	require.Equal(t, "hi", got.Messages[0].Content)
}

func TestGenerate_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-model", time.Second)
	_, err := c.Generate(context.Background(), []Turn{{Role: "user", Content: "hi"}})
	require.Error(t, err)
	require.Equal(t, apperr.CodeExternalService, apperr.CodeOf(err))
}

func TestGenerate_ServiceReportedError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(chatResp{Error: "model overloaded"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-model", time.Second)
	_, err := c.Generate(context.Background(), []Turn{{Role: "user", Content: "hi"}})
	require.Error(t, err)
	require.ErrorContains(t, err, "model overloaded")
}

func TestGenerate_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse connections

	c := NewClient(srv.URL, "test-model", time.Second)
	_, err := c.Generate(context.Background(), []Turn{{Role: "user", Content: "hi"}})
	require.Error(t, err)
	require.Equal(t, apperr.CodeExternalService, apperr.CodeOf(err))
}

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient("", "", 0)
	require.Equal(t, "http://localhost:11434", c.BaseURL)
	require.NotEmpty(t, c.Model)
	require.Equal(t, DefaultTimeout, c.httpc.Timeout)
}
