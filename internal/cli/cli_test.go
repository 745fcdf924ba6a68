package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/gotempsh/temps-cli/pkg/api/client"
	"github.com/gotempsh/temps-cli/pkg/config"
	"github.com/gotempsh/temps-cli/pkg/jwt"
	"github.com/gotempsh/temps-cli/pkg/logger"
)

type harness struct {
	t       *testing.T
	app     *App
	out     *bytes.Buffer
	errOut  *bytes.Buffer
	logs    *bytes.Buffer
	creds   *config.MemoryStore
	url     string
	confirm []string

	mu       sync.Mutex
	requests []string
}

// newHarness points an App at handler with in-memory stores. A nil handler
// answers every request with 500 so unexpected calls are visible.
func newHarness(t *testing.T, handler http.Handler, token string) *harness {
	t.Helper()
	for _, env := range []string{
		"TEMPS_API_URL", "TEMPS_API_TOKEN", "TEMPS_OUTPUT_FORMAT", "TEMPS_COLOR_ENABLED",
		"TEMPS_PROJECT", "TEMPS_CACHE_REDIS_URL", "TEMPS_ERROR_TRACKING_DSN",
	} {
		t.Setenv(env, "")
	}
	if handler == nil {
		handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "unexpected request", http.StatusInternalServerError)
		})
	}

	h := &harness{t: t, out: &bytes.Buffer{}, errOut: &bytes.Buffer{}, logs: &bytes.Buffer{}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.mu.Lock()
		h.requests = append(h.requests, r.Method+" "+r.URL.Path)
		h.mu.Unlock()
		handler.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)
	h.url = srv.URL + "/api"

	credValues := map[string]string{"apiUrl": h.url}
	if token != "" {
		credValues["token"] = token
	}
	h.creds = config.NewMemoryStore("credentials", credValues)
	h.app = &App{
		In:              strings.NewReader(""),
		Out:             h.out,
		Err:             h.errOut,
		ConfigStore:     config.NewMemoryStore("config", map[string]string{"colorEnabled": "false"}),
		CredentialStore: h.creds,
		Logger:          logger.NewWriter("temps-cli", h.logs, zapcore.DebugLevel),
		Confirm: func(title string) (bool, error) {
			h.confirm = append(h.confirm, title)
			return true, nil
		},
	}
	t.Cleanup(h.app.teardown)
	return h
}

func (h *harness) run(args ...string) error {
	h.out.Reset()
	h.errOut.Reset()
	cmd := NewRootCmd(h.app)
	cmd.SetArgs(args)
	return cmd.ExecuteContext(context.Background())
}

func (h *harness) seen() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.requests...)
}

func (h *harness) sawMethod(method string) bool {
	for _, r := range h.seen() {
		if strings.HasPrefix(r, method+" ") {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// sequence answers with payload(statuses[i]) on the i-th call and keeps
// repeating the last status.
func sequence(payload func(status string) any, statuses ...string) http.HandlerFunc {
	var calls atomic.Int32
	return func(w http.ResponseWriter, r *http.Request) {
		n := min(int(calls.Add(1)), len(statuses))
		writeJSON(w, payload(statuses[n-1]))
	}
}

func deploymentJSON(id int, status string) any {
	return map[string]any{
		"id": id, "project_id": 1, "environment_id": 2,
		"environment": map[string]any{"id": 2, "name": "production", "slug": "production", "domains": []string{}},
		"status":      status, "url": "https://web.example", "created_at": 1760271347609, "is_current": false,
	}
}

func (h *harness) count(request string) int {
	n := 0
	for _, r := range h.seen() {
		if r == request {
			n++
		}
	}
	return n
}

func projectRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/projects/by-slug/web", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"id": 1, "slug": "web", "name": "Web", "main_branch": "main"})
	})
}

func TestCommandsRequireLogin(t *testing.T) {
	h := newHarness(t, nil, "")

	for _, args := range [][]string{
		{"projects", "list"},
		{"deployments", "list", "-p", "web"},
		{"domains", "show", "example.com"},
		{"whoami"},
	} {
		err := h.run(args...)
		require.ErrorIs(t, err, ErrNotLoggedIn, "args %v", args)
	}
	assert.Empty(t, h.seen())
}

func TestExpiredTokenIsRejectedLocally(t *testing.T) {
	token, err := jwt.GenerateToken("1", "ada@example.test", "secret", -time.Hour)
	require.NoError(t, err)
	h := newHarness(t, nil, token)

	err = h.run("projects", "list")
	require.ErrorIs(t, err, ErrTokenExpired)
	assert.Empty(t, h.seen())
}

func TestProductionEnvironmentCannotBeDeleted(t *testing.T) {
	for _, args := range [][]string{
		{"environments", "delete", "-p", "web", "production"},
		{"environments", "delete", "-p", "web", "production", "--force"},
		{"environments", "delete", "-p", "web", "-f", "production"},
	} {
		h := newHarness(t, nil, "opaque-token")
		err := h.run(args...)
		require.ErrorIs(t, err, ErrValidation, "args %v", args)
		assert.Empty(t, h.seen(), "args %v", args)
		assert.Empty(t, h.confirm)
	}
}

func TestProductionEnvironmentLookedUpByID(t *testing.T) {
	mux := http.NewServeMux()
	projectRoutes(mux)
	mux.HandleFunc("GET /api/projects/1/environments/3", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"id": 3, "project_id": 1, "name": "production", "slug": "prod"})
	})
	h := newHarness(t, mux, "opaque-token")

	err := h.run("environments", "delete", "-p", "web", "3", "--force")
	require.ErrorIs(t, err, ErrValidation)
	assert.False(t, h.sawMethod(http.MethodDelete))
	assert.Equal(t, []string{"GET /api/projects/by-slug/web", "GET /api/projects/1/environments/3"}, h.seen())
}

func TestEnvironmentDeleteAsksForConfirmation(t *testing.T) {
	mux := http.NewServeMux()
	projectRoutes(mux)
	mux.HandleFunc("GET /api/projects/1/environments/staging", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"id": 4, "project_id": 1, "name": "staging", "slug": "staging"})
	})
	mux.HandleFunc("DELETE /api/projects/1/environments/4", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	t.Run("declined", func(t *testing.T) {
		h := newHarness(t, mux, "opaque-token")
		h.app.Confirm = func(string) (bool, error) { return false, nil }
		require.NoError(t, h.run("environments", "delete", "-p", "web", "staging"))
		assert.False(t, h.sawMethod(http.MethodDelete))
		assert.Contains(t, h.out.String(), "Aborted")
	})

	t.Run("accepted", func(t *testing.T) {
		h := newHarness(t, mux, "opaque-token")
		require.NoError(t, h.run("environments", "delete", "-p", "web", "staging"))
		require.Len(t, h.confirm, 1)
		assert.Contains(t, h.confirm[0], "staging")
		assert.Contains(t, h.seen(), "DELETE /api/projects/1/environments/4")
	})
}

func TestEnvVarSetUpdatesExistingKey(t *testing.T) {
	mux := http.NewServeMux()
	projectRoutes(mux)
	mux.HandleFunc("GET /api/projects/1/environments/staging", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"id": 4, "name": "staging", "slug": "staging"})
	})
	mux.HandleFunc("GET /api/projects/1/env-vars", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, []map[string]any{{"id": 9, "key": "FOO", "value": "old", "environments": []any{}}})
	})
	var body client.EnvVarInput
	mux.HandleFunc("PUT /api/projects/1/env-vars/9", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&body)
		writeJSON(w, map[string]any{"id": 9, "key": "FOO", "value": body.Value})
	})
	h := newHarness(t, mux, "opaque-token")

	require.NoError(t, h.run("environments", "vars", "set", "-p", "web", "FOO", "bar", "-e", "staging"))
	assert.Equal(t, client.EnvVarInput{Key: "FOO", Value: "bar", EnvironmentIDs: []int{4}}, body)
	assert.False(t, h.sawMethod(http.MethodPost))
}

func TestConfigureColorEnabled(t *testing.T) {
	h := newHarness(t, nil, "")

	for input, want := range map[string]string{"true": "true", "1": "true", "no": "false"} {
		require.NoError(t, h.run("configure", "set", "colorEnabled", input))
		require.NoError(t, h.run("configure", "get", "colorEnabled"))
		assert.Equal(t, want+"\n", h.out.String(), "input %q", input)
	}
	assert.Empty(t, h.seen())
}

func TestConfigureUnknownKey(t *testing.T) {
	h := newHarness(t, nil, "")

	err := h.run("configure", "set", "colour", "true")
	require.ErrorIs(t, err, ErrValidation)
	require.ErrorIs(t, err, config.ErrUnknownKey)
	assert.True(t, isUserError(err))

	err = h.run("configure", "get", "colour")
	require.ErrorIs(t, err, config.ErrUnknownKey)
}

func TestJSONOutput(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/projects", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer opaque-token", r.Header.Get("Authorization"))
		writeJSON(w, map[string]any{
			"projects": []map[string]any{{"id": 1, "slug": "web", "name": "Web", "main_branch": "main"}},
			"total":    1, "page": 1, "per_page": 20,
		})
	})
	h := newHarness(t, mux, "opaque-token")

	require.NoError(t, h.run("--json", "projects", "list"))
	var got client.ProjectList
	require.NoError(t, json.Unmarshal(h.out.Bytes(), &got))
	require.Len(t, got.Projects, 1)
	assert.Equal(t, "web", got.Projects[0].Slug)
	assert.EqualValues(t, 1, got.Total)

	assert.Contains(t, h.logs.String(), `"msg":"api request"`)
	assert.NotContains(t, h.logs.String(), "opaque-token")
}

func TestDomainShowReportsStage(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/domains/example.com", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"id": 5, "domain": "example.com", "status": "pending_dns",
			"dns_challenge_token": "tok", "verification_method": "dns-01",
		})
	})
	mux.HandleFunc("GET /api/domains/5/order", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"id": 1, "domain_id": 5, "status": "pending", "identifiers": []any{}})
	})
	mux.HandleFunc("GET /api/domains/example.com/challenge", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"domain":      "example.com",
			"status":      "pending",
			"txt_records": []map[string]string{{"name": "_acme-challenge.example.com", "value": "abc"}},
		})
	})
	h := newHarness(t, mux, "opaque-token")

	require.NoError(t, h.run("--json", "domains", "show", "Example.com"))
	var got struct {
		Stage     string `json:"stage"`
		Challenge struct {
			TXTRecords []client.TXTRecord `json:"txt_records"`
		} `json:"challenge"`
	}
	require.NoError(t, json.Unmarshal(h.out.Bytes(), &got))
	assert.Equal(t, "challenge_ready", got.Stage)
	assert.Equal(t, []client.TXTRecord{{Name: "_acme-challenge.example.com", Value: "abc"}}, got.Challenge.TXTRecords)
}

func TestDeployImageValidatesInputBeforeRequests(t *testing.T) {
	h := newHarness(t, nil, "opaque-token")

	cases := [][]string{
		{"deployments", "deploy-image", "-p", "web", "-e", "prod", "--image", "Not A/Ref"},
		{"deployments", "deploy-image", "-p", "web", "-e", "prod"},
		{"deployments", "deploy-image", "-p", "web", "-e", "prod", "--image", "nginx", "--metadata", "{broken"},
	}
	for _, args := range cases {
		require.ErrorIs(t, h.run(args...), ErrValidation, "args %v", args)
	}
	assert.Empty(t, h.seen())
}

func TestNormalizeImage(t *testing.T) {
	got, err := normalizeImage("nginx:1.27")
	require.NoError(t, err)
	assert.Equal(t, "docker.io/library/nginx:1.27", got)

	got, err = normalizeImage("ghcr.io/acme/web@sha256:" + strings.Repeat("a", 64))
	require.NoError(t, err)
	assert.Equal(t, "ghcr.io/acme/web@sha256:"+strings.Repeat("a", 64), got)
}

func TestLoginStoresCredentials(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/user/me", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer fresh-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		writeJSON(w, map[string]any{"id": 7, "username": "ada", "email": "ada@example.test"})
	})
	h := newHarness(t, mux, "")

	require.NoError(t, h.run("login", "--token", "fresh-token", "--api-url", h.url))
	assert.Contains(t, h.out.String(), "login successful")

	stored, err := h.creds.Load()
	require.NoError(t, err)
	assert.Equal(t, "fresh-token", stored["token"])
	assert.Equal(t, "ada@example.test", stored["email"])
}

func TestServiceCreateRejectsUnknownType(t *testing.T) {
	h := newHarness(t, nil, "opaque-token")
	err := h.run("services", "create", "--name", "db", "--type", "mysql")
	require.ErrorIs(t, err, ErrValidation)
	assert.Empty(t, h.seen())
}

func TestParseParams(t *testing.T) {
	got, err := parseParams([]string{"port=5432", "password=a=b"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"port": "5432", "password": "a=b"}, got)

	_, err = parseParams([]string{"novalue"})
	require.ErrorIs(t, err, ErrValidation)
}

func TestVersion(t *testing.T) {
	h := newHarness(t, nil, "")
	require.NoError(t, h.run("version"))
	out, _ := io.ReadAll(h.out)
	assert.Equal(t, buildVersion+"\n", string(out))
}

func TestDeploymentsWatch(t *testing.T) {
	cases := []struct {
		name     string
		statuses []string
		extra    []string
		wantErr  error
		gaveUp   bool
	}{
		{name: "completes", statuses: []string{"running", "completed"}},
		{name: "fails", statuses: []string{"pending", "running", "failed"}, wantErr: ErrFailedState},
		{name: "cancelled", statuses: []string{"cancelled"}, wantErr: ErrFailedState},
		{name: "gives up", statuses: []string{"running"}, extra: []string{"--timeout", "30ms"}, gaveUp: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mux := http.NewServeMux()
			projectRoutes(mux)
			mux.HandleFunc("GET /api/projects/1/deployments/5", sequence(func(s string) any { return deploymentJSON(5, s) }, tc.statuses...))
			h := newHarness(t, mux, "opaque-token")

			args := append([]string{"deployments", "watch", "-p", "web", "5", "--interval", "5ms"}, tc.extra...)
			err := h.run(args...)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				assert.Contains(t, err.Error(), tc.statuses[len(tc.statuses)-1])
				assert.True(t, isUserError(err))
				assert.Empty(t, h.out.String())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.gaveUp, strings.Contains(h.errOut.String(), "stopped watching"))
			assert.Contains(t, h.out.String(), tc.statuses[len(tc.statuses)-1])
		})
	}
}

func TestDeployImage(t *testing.T) {
	routes := func(statuses ...string) *http.ServeMux {
		mux := http.NewServeMux()
		projectRoutes(mux)
		mux.HandleFunc("GET /api/projects/1/environments/production", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, map[string]any{"id": 2, "project_id": 1, "name": "production", "slug": "production"})
		})
		mux.HandleFunc("POST /api/projects/1/environments/2/deploy/image", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"id":9,"project_id":1,"environment_id":2,"slug":"web-9","state":"pending",` +
				`"source_type":"docker_image","created_at":"2025-10-12T12:15:47.609192Z"}`))
		})
		mux.HandleFunc("GET /api/projects/1/deployments/9", sequence(func(s string) any { return deploymentJSON(9, s) }, statuses...))
		return mux
	}
	base := []string{"deployments", "deploy-image", "-p", "web", "-e", "production", "--image", "nginx:1.27"}

	t.Run("returns the acknowledgement", func(t *testing.T) {
		h := newHarness(t, routes("running"), "opaque-token")
		require.NoError(t, h.run(append([]string{"--json"}, base...)...))
		var got client.DeployImageResult
		require.NoError(t, json.Unmarshal(h.out.Bytes(), &got))
		assert.Equal(t, 9, got.ID)
		assert.Equal(t, client.DeploymentPending, got.State)
		assert.Zero(t, h.count("GET /api/projects/1/deployments/9"))
	})

	t.Run("waits for completion", func(t *testing.T) {
		h := newHarness(t, routes("running", "completed"), "opaque-token")
		require.NoError(t, h.run(append(base, "--wait", "--interval", "5ms")...))
		assert.Contains(t, h.out.String(), "deployment 9 of docker.io/library/nginx:1.27 to production: completed")
		assert.Equal(t, 2, h.count("GET /api/projects/1/deployments/9"))
	})

	t.Run("fails when the deployment fails", func(t *testing.T) {
		h := newHarness(t, routes("running", "failed"), "opaque-token")
		err := h.run(append(base, "--wait", "--interval", "5ms")...)
		require.ErrorIs(t, err, ErrFailedState)
		assert.NotContains(t, h.out.String(), "✔")
	})
}

func TestWatchedDeploymentIsServedFromCache(t *testing.T) {
	mux := http.NewServeMux()
	projectRoutes(mux)
	mux.HandleFunc("GET /api/projects/1/deployments/5", sequence(func(s string) any { return deploymentJSON(5, s) }, "running", "completed"))
	h := newHarness(t, mux, "opaque-token")

	require.NoError(t, h.run("deployments", "watch", "-p", "web", "5", "--interval", "5ms"))
	fetched := h.count("GET /api/projects/1/deployments/5")

	require.NoError(t, h.run("--json", "deployments", "show", "-p", "web", "5", "--cached"))
	var got client.Deployment
	require.NoError(t, json.Unmarshal(h.out.Bytes(), &got))
	assert.Equal(t, client.DeploymentCompleted, got.Status)
	assert.Equal(t, fetched, h.count("GET /api/projects/1/deployments/5"))

	require.NoError(t, h.run("deployments", "show", "-p", "web", "5"))
	assert.Equal(t, fetched+1, h.count("GET /api/projects/1/deployments/5"))
}

func TestCachedShowFallsBackToLiveFetch(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/backups/3", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"id": 3, "name": "nightly", "state": "completed", "started_at": 1760271347609})
	})
	h := newHarness(t, mux, "opaque-token")

	require.NoError(t, h.run("backups", "show", "3", "--cached"))
	assert.Equal(t, 1, h.count("GET /api/backups/3"))
	assert.Contains(t, h.out.String(), "nightly")
}

func TestDeploymentsLast(t *testing.T) {
	mux := http.NewServeMux()
	projectRoutes(mux)
	mux.HandleFunc("GET /api/projects/1/last-deployment", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, deploymentJSON(12, "deployed"))
	})
	h := newHarness(t, mux, "opaque-token")

	require.NoError(t, h.run("--json", "deployments", "last", "-p", "web"))
	var got client.Deployment
	require.NoError(t, json.Unmarshal(h.out.Bytes(), &got))
	assert.Equal(t, 12, got.ID)
	assert.Equal(t, client.DeploymentDeployed, got.Status)
}

func TestBackupRunWait(t *testing.T) {
	backup := func(state string) any {
		return map[string]any{"id": 3, "name": "nightly", "backup_type": "full", "state": state, "started_at": 1760271347609}
	}
	for final, wantErr := range map[string]error{"completed": nil, "failed": ErrFailedState} {
		t.Run(final, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("POST /api/backups/s3-sources/2/run", func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, backup("running"))
			})
			mux.HandleFunc("GET /api/backups/3", sequence(backup, "running", final))
			h := newHarness(t, mux, "opaque-token")

			err := h.run("backups", "run", "2", "--wait", "--interval", "5ms")
			if wantErr != nil {
				require.ErrorIs(t, err, wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 2, h.count("GET /api/backups/3"))
			assert.Contains(t, h.out.String(), "completed")
		})
	}
}

func TestEmailDomainVerifyWait(t *testing.T) {
	domain := func(status string) map[string]any {
		return map[string]any{"id": 4, "provider_id": 1, "domain": "mail.example", "status": status}
	}
	cases := []struct {
		name     string
		statuses []string
		wantErr  error
	}{
		{"verified", []string{"not_started", "pending", "verified"}, nil},
		{"temporary failure", []string{"pending", "temporary_failure"}, ErrFailedState},
		{"failed", []string{"failed"}, ErrFailedState},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("POST /api/email-domains/4/verify", func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, domain("pending"))
			})
			mux.HandleFunc("GET /api/email-domains/4", sequence(func(s string) any {
				return map[string]any{"domain": domain(s), "dns_records": []any{}}
			}, tc.statuses...))
			h := newHarness(t, mux, "opaque-token")

			err := h.run("email", "domains", "verify", "4", "--wait", "--interval", "5ms")
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, len(tc.statuses), h.count("GET /api/email-domains/4"))
			assert.Contains(t, h.out.String(), "verified")
		})
	}
}

func TestServiceStartWait(t *testing.T) {
	service := func(status string) map[string]any {
		return map[string]any{"id": 6, "name": "db", "service_type": "postgres", "status": status}
	}
	for final, wantErr := range map[string]error{"running": nil, "failed": ErrFailedState} {
		t.Run(final, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("POST /api/external-services/6/start", func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, service("pending"))
			})
			mux.HandleFunc("GET /api/external-services/6", sequence(func(s string) any {
				return map[string]any{"service": service(s), "parameters": []any{}}
			}, "pending", final))
			h := newHarness(t, mux, "opaque-token")

			err := h.run("services", "start", "6", "--wait", "--interval", "5ms")
			if wantErr != nil {
				require.ErrorIs(t, err, wantErr)
				return
			}
			require.NoError(t, err)
			assert.Contains(t, h.out.String(), "service db is running")
		})
	}
}

func TestDomainsWatch(t *testing.T) {
	domainRoutes := func(statuses ...string) *http.ServeMux {
		mux := http.NewServeMux()
		mux.HandleFunc("GET /api/domains/example.com", sequence(func(s string) any {
			d := map[string]any{"id": 5, "domain": "example.com", "status": s, "verification_method": "http-01"}
			if s == "failed" {
				d["last_error"] = "challenge rejected"
			}
			return d
		}, statuses...))
		mux.HandleFunc("GET /api/domains/5/order", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, map[string]any{"id": 1, "domain_id": 5, "status": "processing", "identifiers": []any{}})
		})
		return mux
	}

	t.Run("active", func(t *testing.T) {
		h := newHarness(t, domainRoutes("pending_validation", "active"), "opaque-token")
		require.NoError(t, h.run("domains", "watch", "example.com", "--interval", "5ms"))
		assert.Contains(t, h.out.String(), "active")

		require.NoError(t, h.run("--json", "domains", "show", "example.com", "--cached"))
		assert.Equal(t, 2, h.count("GET /api/domains/example.com"))
		assert.Contains(t, h.out.String(), `"stage": "active"`)
	})

	t.Run("failed", func(t *testing.T) {
		h := newHarness(t, domainRoutes("pending_validation", "failed"), "opaque-token")
		err := h.run("domains", "watch", "example.com", "--interval", "5ms")
		require.ErrorIs(t, err, ErrFailedState)
		assert.Contains(t, err.Error(), "challenge rejected")
	})

	t.Run("gives up", func(t *testing.T) {
		h := newHarness(t, domainRoutes("pending_validation"), "opaque-token")
		require.NoError(t, h.run("domains", "watch", "example.com", "--interval", "5ms", "--timeout", "30ms"))
		assert.Contains(t, h.errOut.String(), "stopped watching")
	})
}

func TestConfigureRepairsInvalidStoredValue(t *testing.T) {
	h := newHarness(t, nil, "")
	h.app.ConfigStore = config.NewMemoryStore("config", map[string]string{"colorEnabled": "false", "pollInterval": "0s"})

	require.NoError(t, h.run("configure", "set", "pollInterval", "10s"))
	assert.Contains(t, h.errOut.String(), "pollInterval")
	require.NoError(t, h.run("configure", "get", "pollInterval"))
	assert.Equal(t, "10s\n", h.out.String())
	assert.NotContains(t, h.errOut.String(), "pollInterval")

	h.app.ConfigStore = config.NewMemoryStore("config", map[string]string{"pollInterval": "0s"})
	require.NoError(t, h.run("configure", "reset", "-y"))
	assert.Empty(t, h.seen())
}
