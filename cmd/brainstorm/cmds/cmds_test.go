package cmds

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/T-X-R/BrainstormAI/pkg/api"
	"github.com/T-X-R/BrainstormAI/pkg/events"
	"github.com/T-X-R/BrainstormAI/pkg/persistence/transcriptstore"
	"github.com/T-X-R/BrainstormAI/pkg/transcript"
	"github.com/stretchr/testify/require"
)

const exportBody = `{"session_id":"s1","topic":"tides","status":"ended",
"created_at":"2025-03-01T10:00:00","agents":[{"id":"a1","nickname":"Ava"}],
"messages":[{"id":"m1","session_id":"s1","author_type":"user","author_name":"User","content":"what about tides?","created_at":"2025-03-01T10:00:01"},
{"id":"m2","session_id":"s1","author_type":"ai","author_name":"Ava","content":"Hello there","created_at":"2025-03-01T10:00:02"}]}`

type testServer struct {
	*httptest.Server
	ended atomic.Int32
}

func newServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/models", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"models":["gpt-a","gpt-b"],"default_model":"gpt-b"}`))
	})
	mux.HandleFunc("GET /api/sessions/{id}/export", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Disposition", `attachment; filename="brainstorm_s1.json"`)
		_, _ = w.Write([]byte(exportBody))
	})
	mux.HandleFunc("POST /api/sessions/{id}/end", func(w http.ResponseWriter, r *http.Request) {
		ts.ended.Add(1)
		_, _ = w.Write([]byte(`{"status":"ended","session_id":"` + r.PathValue("id") + `"}`))
	})
	ts.Server = httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	root, _ := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append(args, "--log-level", "error"))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestModelsCommand(t *testing.T) {
	srv := newServer(t)
	out, err := execute(t, "models", "--server-url", srv.URL)
	require.NoError(t, err)
	require.Contains(t, out, "  gpt-a\n")
	require.Contains(t, out, "* gpt-b\n")
}

func TestExportCommandKeepsServerJSON(t *testing.T) {
	srv := newServer(t)
	dir := t.TempDir()
	target := filepath.Join(dir, "out", "t.json")
	_, err := execute(t, "export", "s1", "--server-url", srv.URL, "--out", target)
	require.NoError(t, err)

	b, err := os.ReadFile(target)
	require.NoError(t, err)
	require.Equal(t, exportBody, string(b))
}

func TestExportCommandMarkdownToStdout(t *testing.T) {
	srv := newServer(t)
	out, err := execute(t, "export", "s1", "--server-url", srv.URL, "--format", "markdown", "--out", "-")
	require.NoError(t, err)
	require.Contains(t, out, "tides")
	require.Contains(t, out, "Hello there")
}

func TestExportCommandRejectsUnknownFormat(t *testing.T) {
	srv := newServer(t)
	_, err := execute(t, "export", "s1", "--server-url", srv.URL, "--format", "pdf")
	require.Error(t, err)
}

func TestEndCommand(t *testing.T) {
	srv := newServer(t)
	out, err := execute(t, "end", "s1", "--yes", "--server-url", srv.URL)
	require.NoError(t, err)
	require.Equal(t, int32(1), srv.ended.Load())
	require.Contains(t, out, "Session s1 ended")
}

func seedStore(t *testing.T, path string) {
	t.Helper()
	dsn, err := transcriptstore.SQLiteDSNForFile(path)
	require.NoError(t, err)
	st, err := transcriptstore.NewSQLiteStore(dsn)
	require.NoError(t, err)
	defer func() { _ = st.Close() }()
	ctx := context.Background()
	require.NoError(t, st.UpsertSession(ctx, transcriptstore.SessionRecord{
		SessionID: "s1",
		Topic:     "ocean tides",
		Status:    transcriptstore.StatusEnded,
		Agents:    []events.Agent{{ID: "a1", Nickname: "Ava"}},
	}))
	require.NoError(t, st.AppendMessage(ctx, transcriptstore.MessageRecord{SessionID: "s1", MessageID: "m1", AuthorType: "user", AuthorName: "User", Content: "what about tides?"}))
	require.NoError(t, st.AppendMessage(ctx, transcriptstore.MessageRecord{SessionID: "s1", MessageID: "m2", AuthorType: "ai", AuthorName: "Ava", Content: "Hello there"}))
}

func TestHistoryCommands(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	seedStore(t, path)

	_, err := execute(t, "history", "--store", path, "--since", "24h")
	require.NoError(t, err)

	out, err := execute(t, "history", "show", "s1", "--store", path, "--raw")
	require.NoError(t, err)
	require.Contains(t, out, "Hello there")
	require.Contains(t, out, "what about tides?")
}

func TestSessionRow(t *testing.T) {
	row := sessionRow(transcriptstore.SessionRecord{
		SessionID:    "s1",
		Topic:        "ocean tides",
		Status:       transcriptstore.StatusEnded,
		Agents:       []events.Agent{{ID: "a1", Nickname: "Ava"}},
		MessageCount: 2,
	})
	v, ok := row.Get("topic")
	require.True(t, ok)
	require.Equal(t, "ocean tides", v)
	v, _ = row.Get("messages")
	require.Equal(t, 2, v)
	v, _ = row.Get("agents")
	require.Equal(t, 1, v)
}

func TestSinceMillis(t *testing.T) {
	now := time.UnixMilli(10_000_000)
	ms, err := sinceMillis("", now)
	require.NoError(t, err)
	require.Zero(t, ms)

	ms, err = sinceMillis("1h", now)
	require.NoError(t, err)
	require.Equal(t, int64(10_000_000-3_600_000), ms)

	_, err = sinceMillis("soon", now)
	require.Error(t, err)
}

func TestSpeakerRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	seedStore(t, path)
	dsn, err := transcriptstore.SQLiteDSNForFile(path)
	require.NoError(t, err)
	st, err := transcriptstore.NewSQLiteStore(dsn)
	require.NoError(t, err)
	defer func() { _ = st.Close() }()

	tr, err := transcript.FromStore(context.Background(), st, "s1")
	require.NoError(t, err)
	rows := speakerRows("s1", transcript.ComputeStats(tr, nil))
	require.Len(t, rows, 2)

	speakers := map[string]bool{}
	for _, row := range rows {
		v, ok := row.Get("speaker")
		require.True(t, ok)
		speakers[v.(string)] = true
		share, _ := row.Get("token_share")
		require.Equal(t, 0.0, share)
	}
	require.Equal(t, map[string]bool{"Ava": true, "User": true}, speakers)
}

func TestDefaultExportName(t *testing.T) {
	require.Equal(t, "brainstorm_s1.json", defaultExportName("s1", "brainstorm_s1.json", transcript.FormatJSON))
	require.Equal(t, "brainstorm_s1.html", defaultExportName("s1", "brainstorm_s1.json", transcript.FormatHTML))
	require.Equal(t, "brainstorm_x.yaml", defaultExportName("x", "", transcript.FormatYAML))
	require.Equal(t, "report.md", defaultExportName("x", "../../report.json", transcript.FormatMarkdown))
}

func TestAskConfirm(t *testing.T) {
	var out bytes.Buffer
	ok, err := askConfirm(strings.NewReader("y\n"), &out, "End?")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = askConfirm(strings.NewReader("\n"), &out, "End?")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestExportToDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")
	loc, err := exportToDir(dir)(context.Background(), &api.Export{Filename: "../brainstorm_s1.json", Raw: []byte("{}")})
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "brainstorm_s1.json"), loc)
	b, err := os.ReadFile(loc)
	require.NoError(t, err)
	require.Equal(t, "{}", string(b))
}
