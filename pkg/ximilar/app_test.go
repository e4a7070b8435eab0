package ximilar

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/Sternrassler/ximilar-client/internal/testutil"
	"github.com/Sternrassler/ximilar-client/pkg/cache"
	"github.com/Sternrassler/ximilar-client/pkg/endpoint"
)

const workspaceList = `[
	{"id": "id1", "name": "name1", "created": "date1", "owner": "user1", "meta_data": null, "is_default": true},
	{"id": "id2", "name": "name2", "created": "date2", "owner": "user2", "meta_data": null, "is_default": false}
]`

// newTestApp creates an app talking to a fresh mock server.
func newTestApp(t *testing.T, opts Options) (*App, *testutil.MockServer) {
	t.Helper()

	mock := testutil.NewMockServer()
	t.Cleanup(mock.Close)

	if opts.Token == "" && opts.JWT == "" {
		opts.Token = "tok"
	}
	opts.BaseURL = mock.URL()

	app, err := New(opts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return app, mock
}

// bodyOf decodes the JSON body of a recorded request.
func bodyOf(t *testing.T, req testutil.RecordedRequest) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(req.Body, &body); err != nil {
		t.Fatalf("request body %q is not JSON: %v", req.Body, err)
	}
	return body
}

func TestNew_RequiresCredentials(t *testing.T) {
	_, err := New(Options{BaseURL: "http://localhost/"})
	if !errors.Is(err, endpoint.ErrTokenMissing) {
		t.Errorf("New() error = %v, want ErrTokenMissing", err)
	}
}

func TestWorkspaces_ReturnsMap(t *testing.T) {
	app, mock := newTestApp(t, Options{})
	mock.SetResponse("/account/v2/workspace/", testutil.NewJSONResponse(workspaceList))

	got, err := app.Workspaces(context.Background())
	if err != nil {
		t.Fatalf("Workspaces() error = %v", err)
	}

	if len(got) != 2 || got["name1"] != "id1" || got["name2"] != "id2" {
		t.Errorf("Workspaces() = %v", got)
	}

	req, ok := mock.LastRequest()
	if !ok {
		t.Fatal("no request recorded")
	}
	if req.Method != http.MethodGet {
		t.Errorf("method = %s, want GET", req.Method)
	}
	if got := req.Header.Get("Authorization"); got != "Token tok" {
		t.Errorf("Authorization = %q, want %q", got, "Token tok")
	}
	if req.Header.Get(endpoint.RequestIDHeader) == "" {
		t.Error("request id header missing")
	}
}

func TestWorkspaces_Cached(t *testing.T) {
	app, mock := newTestApp(t, Options{})
	mock.SetResponse("/account/v2/workspace/", testutil.NewJSONResponse(workspaceList))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := app.Workspaces(ctx); err != nil {
			t.Fatalf("Workspaces() error = %v", err)
		}
	}
	if mock.RequestCount() != 1 {
		t.Errorf("requests = %d, want 1", mock.RequestCount())
	}

	// Scoped apps share the cache.
	if _, err := app.WorkspaceByID("id1").Workspaces(ctx); err != nil {
		t.Fatalf("scoped Workspaces() error = %v", err)
	}
	if mock.RequestCount() != 1 {
		t.Errorf("requests after scoped call = %d, want 1", mock.RequestCount())
	}

	if err := app.Invalidate(ctx); err != nil {
		t.Fatalf("Invalidate() error = %v", err)
	}
	if _, err := app.Workspaces(ctx); err != nil {
		t.Fatalf("Workspaces() error = %v", err)
	}
	if mock.RequestCount() != 2 {
		t.Errorf("requests after Invalidate = %d, want 2", mock.RequestCount())
	}
}

func TestWorkspaces_Paginated(t *testing.T) {
	app, mock := newTestApp(t, Options{})
	path := "/account/v2/workspace/"
	mock.SetHandler(path, mock.NewPageHandler(path,
		[]string{`{"id": "id1", "name": "name1"}`},
		[]string{`{"id": "id2", "name": "name2"}`, `{"id": "id3", "name": "name3"}`},
	))

	got, err := app.Workspaces(context.Background())
	if err != nil {
		t.Fatalf("Workspaces() error = %v", err)
	}
	if len(got) != 3 || got["name3"] != "id3" {
		t.Errorf("Workspaces() = %v", got)
	}
	if mock.RequestCount() != 2 {
		t.Errorf("requests = %d, want 2", mock.RequestCount())
	}
}

func TestWorkspaces_ErrorPassesThrough(t *testing.T) {
	app, mock := newTestApp(t, Options{})
	mock.SetResponse("/account/v2/workspace/", testutil.NewDetailResponse(http.StatusInternalServerError, "boom"))
	ctx := context.Background()

	_, err := app.Workspaces(ctx)
	var epErr *endpoint.EndpointError
	if !errors.As(err, &epErr) {
		t.Fatalf("Workspaces() error = %v, want *EndpointError", err)
	}
	if epErr.Code != http.StatusInternalServerError {
		t.Errorf("Code = %d, want 500", epErr.Code)
	}

	// Failures are not cached.
	if _, err := app.Workspaces(ctx); err == nil {
		t.Error("second Workspaces() should fail again")
	}
	if mock.RequestCount() != 2 {
		t.Errorf("requests = %d, want 2", mock.RequestCount())
	}
}

func TestWorkspaceByName(t *testing.T) {
	app, mock := newTestApp(t, Options{})
	mock.SetResponse("/account/v2/workspace/", testutil.NewJSONResponse(workspaceList))
	ctx := context.Background()

	scoped, err := app.WorkspaceByName(ctx, "name2")
	if err != nil {
		t.Fatalf("WorkspaceByName() error = %v", err)
	}
	if scoped.Workspace() != "id2" {
		t.Errorf("Workspace() = %q, want id2", scoped.Workspace())
	}
	if app.Workspace() != "" {
		t.Errorf("parent Workspace() = %q, want empty", app.Workspace())
	}

	if _, err := scoped.IsResourceAccessible(ctx, "resource"); err != nil {
		t.Fatalf("IsResourceAccessible() error = %v", err)
	}

	req, _ := mock.LastRequest()
	if req.Path != "/authorization/v2/authorize" {
		t.Errorf("path = %s", req.Path)
	}
	body := bodyOf(t, req)
	if body["service"] != "resource" || body["workspace"] != "id2" {
		t.Errorf("body = %v, want service=resource workspace=id2", body)
	}
}

func TestWorkspaceByName_NotFound(t *testing.T) {
	app, mock := newTestApp(t, Options{})
	mock.SetResponse("/account/v2/workspace/", testutil.NewJSONResponse(workspaceList))

	_, err := app.WorkspaceByName(context.Background(), "name3")
	if !errors.Is(err, ErrWorkspaceNotFound) {
		t.Fatalf("WorkspaceByName() error = %v, want ErrWorkspaceNotFound", err)
	}
	if !strings.Contains(err.Error(), "name3") {
		t.Errorf("error %q should name the workspace", err)
	}
}

func TestWorkspaceByID_GetIsScoped(t *testing.T) {
	app, mock := newTestApp(t, Options{})

	scoped := app.WorkspaceByID("ws-7")
	if _, err := scoped.Endpoint().Get(context.Background(), "recognition/v2/task/", nil); err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	req, _ := mock.LastRequest()
	if req.RawQuery != "workspace=ws-7" {
		t.Errorf("query = %q, want workspace=ws-7", req.RawQuery)
	}
}

func TestIsResourceAccessible(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		want    bool
		wantErr bool
	}{
		{name: "accessible", status: http.StatusOK, want: true},
		{name: "unauthorized", status: http.StatusUnauthorized, want: false},
		{name: "forbidden", status: http.StatusForbidden, wantErr: true},
		{name: "server error", status: http.StatusInternalServerError, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app, mock := newTestApp(t, Options{})
			resp := testutil.NewJSONResponse(`{}`)
			if tt.status != http.StatusOK {
				resp = testutil.NewDetailResponse(tt.status, "nope")
			}
			mock.SetResponse("/authorization/v2/authorize", resp)

			got, err := app.IsResourceAccessible(context.Background(), "recognition")
			if (err != nil) != tt.wantErr {
				t.Fatalf("IsResourceAccessible() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("IsResourceAccessible() = %v, want %v", got, tt.want)
			}

			req, _ := mock.LastRequest()
			if req.Method != http.MethodPost {
				t.Errorf("method = %s, want POST", req.Method)
			}
			if body := bodyOf(t, req); body["service"] != "recognition" {
				t.Errorf("body = %v", body)
			}
		})
	}
}

func TestCredentialScope(t *testing.T) {
	a := credentialScope("https://api.ximilar.com/", "secret-token", "")
	b := credentialScope("https://api.ximilar.com/", "secret-token", "")
	c := credentialScope("https://api.ximilar.com/", "other-token", "")

	if a != b {
		t.Errorf("scope not stable: %q vs %q", a, b)
	}
	if a == c {
		t.Error("different tokens share a scope")
	}
	if strings.Contains(a, "secret") {
		t.Errorf("scope %q leaks the token", a)
	}
}

func TestNewWithEndpoint_Defaults(t *testing.T) {
	mock := testutil.NewMockServer()
	defer mock.Close()

	ep, err := endpoint.NewDefault(endpoint.NewHTTP(mock.URL()), endpoint.Credentials{Token: "tok"})
	if err != nil {
		t.Fatalf("NewDefault() error = %v", err)
	}

	store := cache.NewMemoryStore()
	app := NewWithEndpoint(ep, WithCache(store))

	if app.scope != mock.URL() {
		t.Errorf("scope = %q, want endpoint url", app.scope)
	}
	if app.cache != store {
		t.Error("cache option ignored")
	}
	if app.encoder == nil {
		t.Error("encoder not set")
	}
	if app.ttl != DefaultCacheTTL {
		t.Errorf("ttl = %v, want %v", app.ttl, DefaultCacheTTL)
	}
}
