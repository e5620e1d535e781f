package easygoogle

import (
	"context"
	"slices"
	"testing"

	eggcommand "github.com/goliatone/go-easygoogle/command"
	"github.com/goliatone/go-easygoogle/core"
	eggquery "github.com/goliatone/go-easygoogle/query"
	gocmd "github.com/goliatone/go-command"
	discoveryv1 "google.golang.org/api/discovery/v1"
)

func newTestFacade(t *testing.T, extra ...Option) (*Facade, *core.MemoryCredentialStore, *stubFlow) {
	t.Helper()
	store := core.NewMemoryCredentialStore()
	flow := newStubFlow()
	server, _ := newTokenServer(t, "refreshed-access")
	opts := append([]Option{WithCredentialStore(store), WithFlow(flow)}, extra...)
	service, err := NewService(context.Background(), testClientSecrets(t, server.URL), baseOptions(t, opts...)...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	facade, err := NewFacade(service)
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}
	return facade, store, flow
}

func TestNewFacade_RequiresService(t *testing.T) {
	if _, err := NewFacade(nil); err == nil {
		t.Fatalf("expected error without service")
	}
}

func TestFacade_AuthorizeStatusAndForget(t *testing.T) {
	ctx := context.Background()
	facade, store, flow := newTestFacade(t)

	collector := gocmd.NewResult[core.AuthorizeResult]()
	err := facade.Commands().Authorize.Execute(gocmd.ContextWithResult(ctx, collector), eggcommand.AuthorizeMessage{
		Request: core.AuthorizeRequest{User: "alice", Scopes: []string{"spreadsheets"}},
	})
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	result, ok := collector.Load()
	if !ok {
		t.Fatalf("expected authorize result")
	}
	if result.User != "alice" || !slices.Equal(result.APIs, []string{"drive", "sheets"}) {
		t.Fatalf("unexpected result %#v", result)
	}
	if flow.calls() != 1 || store.Len() != 1 {
		t.Fatalf("expected one flow and one stored credential, got %d / %d", flow.calls(), store.Len())
	}

	status, err := facade.Queries().LoadCredential.Query(ctx, eggquery.LoadCredentialMessage{
		Lookup: core.CredentialLookup{User: "alice", Scopes: []string{"spreadsheets"}},
	})
	if err != nil {
		t.Fatalf("load credential: %v", err)
	}
	if !status.Found || !status.Covered || !status.HasRefreshToken || status.StorageKey != result.StorageKey {
		t.Fatalf("unexpected status %#v", status)
	}

	wider, err := facade.Queries().LoadCredential.Query(ctx, eggquery.LoadCredentialMessage{
		Lookup: core.CredentialLookup{User: "alice", Scopes: []string{"spreadsheets", "drive"}},
	})
	if err != nil {
		t.Fatalf("load credential: %v", err)
	}
	if wider.Covered {
		t.Fatalf("expected wider scope set to be uncovered")
	}

	if err := facade.Commands().Forget.Execute(ctx, eggcommand.ForgetMessage{Request: core.ForgetRequest{User: "alice"}}); err != nil {
		t.Fatalf("forget: %v", err)
	}
	if store.Len() != 0 {
		t.Fatalf("expected credential removed")
	}
}

func TestFacade_UsersDoNotShareCredentials(t *testing.T) {
	ctx := context.Background()
	facade, store, flow := newTestFacade(t)
	for _, user := range []string{"alice", "bob", "alice"} {
		if err := facade.Commands().Authorize.Execute(ctx, eggcommand.AuthorizeMessage{
			Request: core.AuthorizeRequest{User: user, Scopes: []string{"drive"}},
		}); err != nil {
			t.Fatalf("authorize %s: %v", user, err)
		}
	}
	if store.Len() != 2 {
		t.Fatalf("expected one credential per user, got %d", store.Len())
	}
	if flow.calls() != 2 {
		t.Fatalf("expected the second alice request to reuse her credential, got %d flows", flow.calls())
	}
}

func TestFacade_ResolveScopes(t *testing.T) {
	facade, _, _ := newTestFacade(t)
	out, err := facade.Queries().ResolveScopes.Query(context.Background(), eggquery.ResolveScopesMessage{
		Request: core.ResolveScopesRequest{Scopes: []string{"spreadsheets", "drive", "nope"}},
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !slices.Equal(out.Scopes, []string{driveScope, sheetsScope}) {
		t.Fatalf("unexpected scopes %v", out.Scopes)
	}
	if !slices.Equal(out.Unresolved, []string{"nope"}) {
		t.Fatalf("unexpected unresolved %v", out.Unresolved)
	}
	if len(out.APIs) != 2 || out.APIs[0].Tag != "drive" || out.APIs[0].Preferred != "v3" {
		t.Fatalf("unexpected apis %#v", out.APIs)
	}
	if !slices.Equal(out.APIs[0].Versions, []string{"v3", "v2"}) {
		t.Fatalf("expected preferred version first, got %v", out.APIs[0].Versions)
	}
}

type describeFetcher struct {
	recordingFetcher
}

func (f *describeFetcher) GetRest(ctx context.Context, name string, version string, fields ...string) (*discoveryv1.RestDescription, error) {
	description, err := f.recordingFetcher.GetRest(ctx, name, version, fields...)
	if err != nil {
		return nil, err
	}
	description.Title = "Drive API"
	description.Auth = &discoveryv1.RestDescriptionAuth{Oauth2: &discoveryv1.RestDescriptionAuthOauth2{
		Scopes: map[string]discoveryv1.RestDescriptionAuthOauth2Scopes{
			sheetsScope: {},
			driveScope:  {},
		},
	}}
	return description, nil
}

func TestFacade_DescribeAPIUsesPreferredVersion(t *testing.T) {
	fetcher := &describeFetcher{}
	facade, _, _ := newTestFacade(t, WithDiscoveryFetcher(fetcher))

	out, err := facade.Queries().DescribeAPI.Query(context.Background(), eggquery.DescribeAPIMessage{
		Request: core.DescribeAPIRequest{Name: "drive"},
	})
	if err != nil {
		t.Fatalf("describe: %v", err)
	}
	if out.Version != "v3" || out.Title != "Drive API" {
		t.Fatalf("unexpected description %#v", out)
	}
	if !slices.Equal(out.Scopes, []string{driveScope, sheetsScope}) {
		t.Fatalf("unexpected scopes %v", out.Scopes)
	}

	_, err = facade.Queries().DescribeAPI.Query(context.Background(), eggquery.DescribeAPIMessage{
		Request: core.DescribeAPIRequest{Name: "gmail"},
	})
	assertTextCode(t, err, core.ErrorUnknownPreferredVersion)
}

func TestService_CredentialCommandsRequireSecrets(t *testing.T) {
	service, err := NewService(context.Background(), nil, baseOptions(t)...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	_, err = service.Authorize(context.Background(), core.AuthorizeRequest{Scopes: []string{"drive"}})
	assertTextCode(t, err, core.ErrorBadInput)

	if _, err := service.ResolveScopes(context.Background(), core.ResolveScopesRequest{Scopes: []string{"drive"}}); err != nil {
		t.Fatalf("resolve without secrets: %v", err)
	}
}

func TestService_ReusesConfiguredStoreAcrossRequests(t *testing.T) {
	ctx := context.Background()
	flow := newStubFlow()
	server, _ := newTokenServer(t, "refreshed-access")
	service, err := NewService(ctx, testClientSecrets(t, server.URL), baseOptions(t,
		WithConfig(core.Config{Store: core.StoreConfig{Driver: core.StoreDriverMemory}}),
		WithFlow(flow),
	)...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	t.Cleanup(func() { _ = service.Close() })

	request := core.AuthorizeRequest{User: "alice", Scopes: []string{"drive"}}
	if _, err := service.Authorize(ctx, request); err != nil {
		t.Fatalf("authorize: %v", err)
	}
	status, err := service.LoadCredential(ctx, core.CredentialLookup{User: "alice", Scopes: []string{"drive"}})
	if err != nil {
		t.Fatalf("load credential: %v", err)
	}
	if !status.Found || !status.Covered {
		t.Fatalf("expected credential saved by authorize, got %#v", status)
	}
	if _, err := service.Authorize(ctx, request); err != nil {
		t.Fatalf("second authorize: %v", err)
	}
	if flow.calls() != 1 {
		t.Fatalf("expected cached credential on second authorize, got %d flows", flow.calls())
	}
}

func TestService_WithConfigKeepsEarlierOverrides(t *testing.T) {
	service, err := NewService(context.Background(), nil, baseOptions(t,
		WithUser("alice"),
		WithAuthMode(core.AuthModeConsole),
		WithConfig(core.Config{AppName: "Reports"}),
	)...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	cfg := service.Config()
	if cfg.User != "alice" || cfg.AuthMode != core.AuthModeConsole {
		t.Fatalf("expected user and mode to survive WithConfig, got %#v", cfg)
	}
	if cfg.AppName != "Reports" {
		t.Fatalf("expected app name from WithConfig, got %q", cfg.AppName)
	}
}
