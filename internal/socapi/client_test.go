package socapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ahmethakanbesel/socpanel/internal/apperror"
	"github.com/ahmethakanbesel/socpanel/internal/config"
)

func writeResult(w http.ResponseWriter, result any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"error": "", "result": result})
}

func newTestClient(t *testing.T, mux *http.ServeMux) *Client {
	t.Helper()
	mux.HandleFunc("POST /api/login", func(w http.ResponseWriter, r *http.Request) {
		writeResult(w, map[string]string{"session_token": "tok"})
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	cfg := config.Default()
	cfg.BaseURL = ts.URL
	cfg.Login = "user"
	cfg.Password = "pass"
	cfg.RetryInterval = time.Millisecond
	if err := cfg.Resolve(); err != nil {
		t.Fatal(err)
	}
	return New(cfg, WithHTTPClient(ts.Client()))
}

func decodeBody(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		t.Errorf("decode body: %v", err)
	}
	return body
}

func TestSubmitExport_Payload(t *testing.T) {
	mux := http.NewServeMux()
	var got map[string]any
	mux.HandleFunc("POST /api/poll/stat/export", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		got = decodeBody(t, r)
		writeResult(w, nil)
	})
	c := newTestClient(t, mux)

	err := c.SubmitExport(context.Background(), ExportRequest{
		PollID:   10,
		FormatID: 2,
		Filter:   map[string]any{"domain_ids": []int{1}, "is_poll_complete": true},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if got["poll_id"] != float64(10) || got["format_id"] != float64(2) {
		t.Errorf("unexpected payload %v", got)
	}
	filter, _ := got["filter"].(map[string]any)
	if filter["is_poll_complete"] != true {
		t.Errorf("unexpected filter %v", filter)
	}
}

func TestExportProgress_Decodes(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/poll/stat/export/progress", func(w http.ResponseWriter, r *http.Request) {
		writeResult(w, []map[string]any{
			{"uuid": "a", "status": "done", "params": map[string]int{"poll_id": 10}},
			{"uuid": "b", "status": "in_progress", "params": map[string]int{"poll_id": 11}},
		})
	})
	c := newTestClient(t, mux)

	tasks, err := c.ExportProgress(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 2 || tasks[0].UUID != "a" || tasks[0].Params.PollID != 10 || tasks[1].Status != "in_progress" {
		t.Errorf("unexpected tasks %+v", tasks)
	}
}

func TestDoneExport_SendsUUID(t *testing.T) {
	mux := http.NewServeMux()
	var uuid atomic.Value
	mux.HandleFunc("POST /api/poll/stat/export/progress/done", func(w http.ResponseWriter, r *http.Request) {
		uuid.Store(decodeBody(t, r)["uuid"])
		writeResult(w, nil)
	})
	c := newTestClient(t, mux)

	if err := c.DoneExport(context.Background(), "abc"); err != nil {
		t.Fatal(err)
	}
	if uuid.Load() != "abc" {
		t.Errorf("expected uuid abc, got %v", uuid.Load())
	}
}

func TestDownloadExport_WritesFile(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /storage/export/abc.sav", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write([]byte("spss-bytes"))
	})
	c := newTestClient(t, mux)

	dest := filepath.Join(t.TempDir(), "nested", "dir", "poll_10.sav")
	n, err := c.DownloadExport(context.Background(), "abc.sav", dest)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "spss-bytes" || n != int64(len(data)) {
		t.Errorf("unexpected file content %q (%d bytes)", data, n)
	}
	if _, err := os.Stat(dest + ".part"); !os.IsNotExist(err) {
		t.Error("expected partial file to be gone")
	}
}

func TestDownloadExport_FailureLeavesNoFile(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /storage/export/abc.sav", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	c := newTestClient(t, mux)

	dest := filepath.Join(t.TempDir(), "poll_10.sav")
	_, err := c.DownloadExport(context.Background(), "abc.sav", dest)
	if !apperror.Is(err, apperror.Protocol) {
		t.Fatalf("expected protocol error, got %v", err)
	}
	for _, p := range []string{dest, dest + ".part"} {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("expected %s to not exist", p)
		}
	}
}

func TestClient_RecoversExpiredToken(t *testing.T) {
	var logins, progress atomic.Int64
	handler := http.NewServeMux()
	handler.HandleFunc("POST /api/login", func(w http.ResponseWriter, r *http.Request) {
		n := logins.Add(1)
		writeResult(w, map[string]string{"session_token": fmt.Sprintf("tok-%d", n)})
	})
	handler.HandleFunc("POST /api/poll/stat/export/progress", func(w http.ResponseWriter, r *http.Request) {
		progress.Add(1)
		if r.Header.Get("Authorization") != "tok-2" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		writeResult(w, []any{})
	})
	ts := httptest.NewServer(handler)
	defer ts.Close()

	cfg := config.Default()
	cfg.BaseURL = ts.URL
	cfg.Login = "user"
	cfg.Password = "pass"
	if err := cfg.Resolve(); err != nil {
		t.Fatal(err)
	}
	c := New(cfg, WithHTTPClient(ts.Client()))

	if err := c.Login(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := c.ExportProgress(context.Background()); err != nil {
		t.Fatalf("expected recovery, got %v", err)
	}
	if logins.Load() != 2 || progress.Load() != 2 {
		t.Errorf("expected 2 logins and 2 progress calls, got %d and %d", logins.Load(), progress.Load())
	}
	if c.Token() != "tok-2" {
		t.Errorf("expected tok-2, got %q", c.Token())
	}
}

func TestClient_LockedCredentials(t *testing.T) {
	handler := http.NewServeMux()
	handler.HandleFunc("POST /api/login", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusLocked)
	})
	ts := httptest.NewServer(handler)
	defer ts.Close()

	cfg := config.Default()
	cfg.BaseURL = ts.URL
	cfg.Login = "user"
	cfg.Password = "wrong"
	if err := cfg.Resolve(); err != nil {
		t.Fatal(err)
	}
	c := New(cfg, WithHTTPClient(ts.Client()))

	if _, err := c.ExportProgress(context.Background()); !apperror.Is(err, apperror.AuthInvalid) {
		t.Fatalf("expected auth invalid, got %v", err)
	}
}
