package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ahmethakanbesel/socpanel/internal/apperror"
	"github.com/ahmethakanbesel/socpanel/internal/transport"
)

type fakeDoer struct {
	logins atomic.Int64
	do     func(req transport.Request) (json.RawMessage, error)
}

func (f *fakeDoer) Do(_ context.Context, req transport.Request) (json.RawMessage, error) {
	if req.Endpoint == loginEndpoint {
		f.logins.Add(1)
	}
	return f.do(req)
}

func tokenDoer(tokens ...string) *fakeDoer {
	var n atomic.Int64
	return &fakeDoer{do: func(req transport.Request) (json.RawMessage, error) {
		i := int(n.Add(1)) - 1
		if i >= len(tokens) {
			i = len(tokens) - 1
		}
		return json.RawMessage(`{"session_token":"` + tokens[i] + `"}`), nil
	}}
}

func TestLogin_StoresToken(t *testing.T) {
	d := tokenDoer("tok-1")
	s := New(d, Credentials{Login: "user", Password: "pass"})

	if err := s.Login(context.Background()); err != nil {
		t.Fatalf("login: %v", err)
	}
	if s.Token() != "tok-1" {
		t.Errorf("expected tok-1, got %q", s.Token())
	}
	if got := s.Headers().Get("Authorization"); got != "tok-1" {
		t.Errorf("expected header tok-1, got %q", got)
	}
}

func TestLogin_MissingCredentials(t *testing.T) {
	d := tokenDoer("unused")
	s := New(d, Credentials{Login: "user"})

	err := s.Login(context.Background())
	if !apperror.Is(err, apperror.CredentialsMissing) {
		t.Fatalf("expected credentials missing, got %v", err)
	}
	if d.logins.Load() != 0 {
		t.Error("expected no request without credentials")
	}
}

func TestLogin_Locked(t *testing.T) {
	d := &fakeDoer{do: func(transport.Request) (json.RawMessage, error) {
		return nil, apperror.New(apperror.AuthInvalid, "wrong login credentials")
	}}
	s := New(d, Credentials{Login: "user", Password: "bad"})

	if err := s.Login(context.Background()); !apperror.Is(err, apperror.AuthInvalid) {
		t.Fatalf("expected auth invalid, got %v", err)
	}
	if s.Token() != "" {
		t.Error("expected no token after failed login")
	}
}

func TestLogin_MissingTokenIsProtocolError(t *testing.T) {
	d := &fakeDoer{do: func(transport.Request) (json.RawMessage, error) {
		return json.RawMessage(`{"user_id":1}`), nil
	}}
	s := New(d, Credentials{Login: "user", Password: "pass"})

	if err := s.Login(context.Background()); !apperror.Is(err, apperror.Protocol) {
		t.Fatalf("expected protocol error, got %v", err)
	}
}

func TestWithAuth_LogsInWhenNoToken(t *testing.T) {
	d := tokenDoer("tok-1")
	s := New(d, Credentials{Login: "user", Password: "pass"})

	var seen string
	err := s.WithAuth(context.Background(), func(context.Context) error {
		seen = s.Token()
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if seen != "tok-1" {
		t.Errorf("expected op to run with fresh token, got %q", seen)
	}
}

func TestWithAuth_RefreshesOnce(t *testing.T) {
	d := tokenDoer("tok-2")
	s := New(d, Credentials{Login: "user", Password: "pass"}, WithToken("tok-1"))

	var calls int
	err := s.WithAuth(context.Background(), func(context.Context) error {
		calls++
		if s.Token() == "tok-1" {
			return apperror.New(apperror.TokenInvalid, "wrong token")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected recovery, got %v", err)
	}
	if calls != 2 {
		t.Errorf("expected 2 op calls, got %d", calls)
	}
	if d.logins.Load() != 1 {
		t.Errorf("expected 1 login, got %d", d.logins.Load())
	}
}

func TestWithAuth_SecondRejectionEscalates(t *testing.T) {
	d := tokenDoer("tok-2", "tok-3")
	s := New(d, Credentials{Login: "user", Password: "pass"}, WithToken("tok-1"))

	var calls int
	err := s.WithAuth(context.Background(), func(context.Context) error {
		calls++
		return apperror.New(apperror.TokenInvalid, "wrong token")
	})
	if !apperror.Is(err, apperror.TokenInvalid) {
		t.Fatalf("expected token invalid, got %v", err)
	}
	if calls != 2 {
		t.Errorf("expected exactly 2 op calls, got %d", calls)
	}
	if d.logins.Load() != 1 {
		t.Errorf("expected exactly 1 login, got %d", d.logins.Load())
	}
}

func TestWithAuth_OtherErrorsPassThrough(t *testing.T) {
	d := tokenDoer("tok")
	s := New(d, Credentials{Login: "user", Password: "pass"}, WithToken("tok"))

	var calls int
	err := s.WithAuth(context.Background(), func(context.Context) error {
		calls++
		return apperror.New(apperror.Protocol, "boom")
	})
	if !apperror.Is(err, apperror.Protocol) || calls != 1 {
		t.Fatalf("expected single protocol failure, got %v after %d calls", err, calls)
	}
	if d.logins.Load() != 0 {
		t.Error("expected no login")
	}
}

func TestWithAuth_TokenOnlySessionCannotRefresh(t *testing.T) {
	d := tokenDoer("unused")
	s := FromToken(d, "tok-1")

	err := s.WithAuth(context.Background(), func(context.Context) error {
		return apperror.New(apperror.TokenInvalid, "wrong token")
	})
	if !apperror.Is(err, apperror.CredentialsMissing) {
		t.Fatalf("expected credentials missing, got %v", err)
	}
}

func TestWithAuth_ConcurrentRejectionsShareOneLogin(t *testing.T) {
	const workers = 8
	var failed sync.WaitGroup
	failed.Add(workers)

	d := &fakeDoer{}
	d.do = func(transport.Request) (json.RawMessage, error) {
		failed.Wait()
		return json.RawMessage(`{"session_token":"tok-2"}`), nil
	}
	s := New(d, Credentials{Login: "user", Password: "pass"}, WithToken("tok-1"))

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			first := true
			err := s.WithAuth(context.Background(), func(context.Context) error {
				if first {
					first = false
					failed.Done()
					return apperror.New(apperror.TokenInvalid, "wrong token")
				}
				return nil
			})
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if d.logins.Load() != 1 {
		t.Errorf("expected 1 login for %d rejections, got %d", workers, d.logins.Load())
	}
}

func TestSession_ExecutorPicksUpRefreshedToken(t *testing.T) {
	var seen []string
	var mu sync.Mutex
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/api/login" {
			_, _ = w.Write([]byte(`{"error":"","result":{"session_token":"fresh"}}`))
			return
		}
		auth := r.Header.Get("Authorization")
		mu.Lock()
		seen = append(seen, auth)
		mu.Unlock()
		if auth != "fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"error":"","result":[]}`))
	}))
	defer ts.Close()

	exec := transport.New(ts.URL, transport.WithClient(ts.Client()), transport.WithRetry(1, time.Millisecond))
	s := New(exec, Credentials{Login: "user", Password: "pass"}, WithToken("expired"))
	exec.SetHeaderSource(s.Headers)

	err := s.WithAuth(context.Background(), func(ctx context.Context) error {
		_, err := exec.Do(ctx, transport.Request{Name: "Progress", Endpoint: "api/poll/stat/export/progress", ExtractResult: true})
		return err
	})
	if err != nil {
		t.Fatalf("expected recovery, got %v", err)
	}
	if len(seen) != 2 || seen[0] != "expired" || seen[1] != "fresh" {
		t.Errorf("unexpected auth headers %v", seen)
	}
}
