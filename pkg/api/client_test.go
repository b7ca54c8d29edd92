package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/models", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"models":["gpt-a","gpt-b"],"default_model":"gpt-a"}`))
	})
	mux.HandleFunc("POST /api/sessions", func(w http.ResponseWriter, r *http.Request) {
		var req CreateSessionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.Topic == "boom" {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"detail":"Failed to create session: boom"}`))
			return
		}
		if req.AgentCount > MaxAgents {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"detail":[{"msg":"Input should be less than or equal to 5"}]}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"session_id": "s1",
			"topic":      req.Topic,
			"agents": []map[string]any{
				{"id": "a1", "nickname": "Ava", "persona": "p", "style": "s", "model_name": req.AgentConfigs[0].ModelName},
			},
		})
	})
	mux.HandleFunc("POST /api/sessions/{id}/end", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "s1" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"detail":"Session not found"}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"ended","session_id":"s1"}`))
	})
	mux.HandleFunc("GET /api/sessions/{id}/export", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Disposition", `attachment; filename="brainstorm_s1.json"`)
		_, _ = w.Write([]byte(`{"session_id":"s1","topic":"tides","title":null,"status":"ended",
			"created_at":"2025-03-01T10:00:00.123456","ended_at":null,
			"agents":[{"id":"a1","nickname":"Ava","persona":"p","style":"s"}],
			"messages":[{"id":"m1","session_id":"s1","author_type":"user","author_name":"用户","content":"hi","created_at":"2025-03-01T10:00:01"},
			{"id":"m2","session_id":"s1","author_type":"ai","author_id":"a1","author_name":"Ava","target_message_id":"m1","content":"hello","created_at":"2025-03-01T10:00:02+00:00"}]}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_ListModels(t *testing.T) {
	srv := newTestServer(t)
	c, err := NewClient(srv.URL + "/api/")
	require.NoError(t, err)

	models, err := c.ListModels(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"gpt-a", "gpt-b"}, models.Models)
	require.Equal(t, "gpt-a", models.DefaultModel)
}

func TestClient_CreateSession(t *testing.T) {
	srv := newTestServer(t)
	c, err := NewClient(srv.URL + "/api")
	require.NoError(t, err)

	resp, err := c.CreateSession(context.Background(), CreateSessionRequest{
		Topic:        "tides",
		AgentCount:   1,
		AgentConfigs: []AgentConfig{{ModelName: "gpt-b"}},
	})
	require.NoError(t, err)
	require.Equal(t, "s1", resp.SessionID)
	require.Len(t, resp.Agents, 1)
	require.Equal(t, "gpt-b", resp.Agents[0].ModelName)

	_, err = c.CreateSession(context.Background(), CreateSessionRequest{Topic: "boom", AgentCount: 1})
	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	require.Equal(t, http.StatusInternalServerError, httpErr.StatusCode)
	require.Equal(t, "Failed to create session: boom", httpErr.Detail)

	_, err = c.CreateSession(context.Background(), CreateSessionRequest{Topic: "x", AgentCount: 9})
	require.True(t, errors.As(err, &httpErr))
	require.Contains(t, httpErr.Detail, "less than or equal to 5")
}

func TestClient_EndSession(t *testing.T) {
	srv := newTestServer(t)
	c, err := NewClient(srv.URL + "/api")
	require.NoError(t, err)

	require.NoError(t, c.EndSession(context.Background(), "s1"))
	err = c.EndSession(context.Background(), "missing")
	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	require.Equal(t, http.StatusNotFound, httpErr.StatusCode)
	require.Equal(t, "Session not found", httpErr.Detail)
}

func TestClient_ExportSession(t *testing.T) {
	srv := newTestServer(t)
	c, err := NewClient(srv.URL + "/api")
	require.NoError(t, err)

	exp, err := c.ExportSession(context.Background(), "s1")
	require.NoError(t, err)
	require.Equal(t, "brainstorm_s1.json", exp.Filename)
	require.NotEmpty(t, exp.Raw)
	require.Equal(t, "tides", exp.Session.Topic)
	require.Nil(t, exp.Session.EndedAt)
	require.Len(t, exp.Session.Messages, 2)
	require.Equal(t, 2025, exp.Session.CreatedAt.Year())
	require.Equal(t, "m1", exp.Session.Messages[1].TargetMessageID)
	require.True(t, exp.Session.Messages[0].CreatedAt.Before(exp.Session.Messages[1].CreatedAt.Time))
}

func TestStreamURL(t *testing.T) {
	u, err := StreamURL("http://localhost:8000/", "/ws/sessions/{id}", "s 1")
	require.NoError(t, err)
	require.Equal(t, "ws://localhost:8000/ws/sessions/s%201", u)

	u, err = StreamURL("https://example.com", "", "abc")
	require.NoError(t, err)
	require.Equal(t, "wss://example.com/ws/sessions/abc", u)

	_, err = StreamURL("ftp://x", "", "abc")
	require.Error(t, err)
}

func TestNewClient_RejectsBadScheme(t *testing.T) {
	_, err := NewClient("localhost:8000")
	require.Error(t, err)
}
