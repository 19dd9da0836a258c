package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shelf/api/internal/apiclient"
	"shelf/api/internal/wire"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "shelfctl", cmd.Use)
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"list", "ls", "watch", "move", "add", "rm", "suggest", "analytics"}

	for _, name := range commands {
		t.Run(name, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{name})
			require.NoError(t, err, "command %s should exist", name)
			require.NotNil(t, subCmd)
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	serverFlag := cmd.PersistentFlags().Lookup("server")
	require.NotNil(t, serverFlag)
	assert.Equal(t, "s", serverFlag.Shorthand)
}

func TestLoadProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: http://shelf.test\ncategory: reading\ntimeout: 3s\n"), 0o600))

	profile, err := LoadProfile(path, true)
	require.NoError(t, err)
	assert.Equal(t, "http://shelf.test", profile.Server)
	assert.Equal(t, "reading", profile.Category)
	assert.Equal(t, 3*time.Second, profile.Timeout.Duration)
}

func TestLoadProfileRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sever: http://typo.test\n"), 0o600))

	_, err := LoadProfile(path, true)
	assert.Error(t, err)
}

func TestLoadProfileMissing(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.yaml")

	profile, err := LoadProfile(missing, false)
	require.NoError(t, err)
	assert.Equal(t, Profile{}, profile)

	_, err = LoadProfile(missing, true)
	assert.Error(t, err)
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitFailure, GetExitCode(&apiclient.Error{Status: 404, Code: "NOT_FOUND"}))
	assert.Equal(t, ExitCommandError, GetExitCode(errors.New("dial tcp: refused")))
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad")))
}

// fakeAPI serves just enough of the bookmark API for the commands.
type fakeAPI struct {
	mu       sync.Mutex
	records  []wire.Record
	reorders []wire.ReorderRequest
	reject   bool
}

func (f *fakeAPI) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/bookmarks", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(f.records)
	})
	mux.HandleFunc("POST /api/bookmarks/reorder", func(w http.ResponseWriter, r *http.Request) {
		var req wire.ReorderRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		f.mu.Lock()
		defer f.mu.Unlock()
		f.reorders = append(f.reorders, req)
		if f.reject {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"code":"NOT_FOUND","error":"Bookmark not found"}`))
			return
		}
		for i := range f.records {
			if f.records[i].ID == req.BookmarkID {
				f.records[i].Position = req.NewPosition
				_ = json.NewEncoder(w).Encode(f.records[i])
				return
			}
		}
	})
	mux.HandleFunc("DELETE /api/bookmarks/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"code":"NOT_FOUND","error":"Bookmark not found"}`))
	})
	return mux
}

func (f *fakeAPI) sent() []wire.ReorderRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]wire.ReorderRequest(nil), f.reorders...)
}

func runCLI(t *testing.T, api *fakeAPI, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())

	server := httptest.NewServer(api.handler(t))
	t.Cleanup(server.Close)

	cmd := NewRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--server", server.URL}, args...))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := cmd.ExecuteContext(ctx)
	return stdout.String(), stderr.String(), err
}

func threeRecords() []wire.Record {
	return []wire.Record{
		{ID: 1, URL: "https://a.test", Title: "Alpha", Position: 1},
		{ID: 2, URL: "https://b.test", Title: "Beta", Position: 2},
		{ID: 3, URL: "https://c.test", Title: "Gamma", Position: 3},
	}
}

func TestListCommandPrintsInOrder(t *testing.T) {
	api := &fakeAPI{records: threeRecords()}

	stdout, _, err := runCLI(t, api, "ls")
	require.NoError(t, err)
	assert.Less(t, bytes.Index([]byte(stdout), []byte("Alpha")), bytes.Index([]byte(stdout), []byte("Gamma")))
}

func TestListCommandJSON(t *testing.T) {
	api := &fakeAPI{records: threeRecords()}

	stdout, _, err := runCLI(t, api, "ls", "--format", "json")
	require.NoError(t, err)

	var response struct {
		Status string        `json:"status"`
		Data   []wire.Record `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &response))
	assert.Equal(t, "ok", response.Status)
	assert.Len(t, response.Data, 3)
}

func TestMoveCommandSendsNewPosition(t *testing.T) {
	api := &fakeAPI{records: threeRecords()}

	stdout, _, err := runCLI(t, api, "move", "2", "0", "--format", "json")
	require.NoError(t, err)

	sent := api.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, int64(3), sent[0].BookmarkID)
	assert.Equal(t, 1.0, sent[0].NewPosition)

	var response struct {
		Data []wire.Record `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &response))
	ids := []int64{}
	for _, record := range response.Data {
		ids = append(ids, record.ID)
	}
	assert.Equal(t, []int64{3, 1, 2}, ids)
}

func TestMoveCommandRejected(t *testing.T) {
	api := &fakeAPI{records: threeRecords(), reject: true}

	_, stderr, err := runCLI(t, api, "move", "0", "2")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.True(t, Reported(err))
	assert.Contains(t, stderr, "NOT_FOUND")
	assert.Contains(t, stderr, "Alpha")
}

func TestMoveCommandNoop(t *testing.T) {
	api := &fakeAPI{records: threeRecords()}

	_, _, err := runCLI(t, api, "move", "1", "1")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Empty(t, api.sent())
}

func TestMoveCommandRejectsBadIndex(t *testing.T) {
	_, _, err := runCLI(t, &fakeAPI{}, "move", "x", "0")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRemoveCommandNotFound(t *testing.T) {
	api := &fakeAPI{records: threeRecords()}

	_, _, err := runCLI(t, api, "rm", "99")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestInvalidFormat(t *testing.T) {
	_, _, err := runCLI(t, &fakeAPI{}, "ls", "--format", "yaml")
	assert.Error(t, err)
}
