package mirror

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/bianoble/repo-mirror/internal/catalog"
	"github.com/bianoble/repo-mirror/internal/store/storetest"
	"github.com/google/go-cmp/cmp"
)

// mockFetcher serves catalogs from memory.
type mockFetcher struct {
	catalogs map[string][]catalog.Component
	errs     map[string]error
}

func (m *mockFetcher) Fetch(ctx context.Context, url string) ([]catalog.Component, error) {
	if err := m.errs[url]; err != nil {
		return nil, err
	}
	return m.catalogs[url], nil
}

func appComponent(id, runtime string) catalog.Component {
	return catalog.Component{
		Type:  "desktop-application",
		ID:    id,
		Names: []catalog.Text{{Value: id}},
		Bundles: []catalog.Bundle{{
			Kind:    catalog.BundleFlatpak,
			Ref:     "app/" + id + "/x86_64/stable",
			Runtime: runtime,
			SDK:     "org.example.Sdk/x86_64/1",
		}},
	}
}

func newOrchestrator(fake *storetest.Fake, fetcher CatalogFetcher) *Orchestrator {
	return &Orchestrator{
		Store:    fake,
		Resolver: &Resolver{Store: fake},
		Promoter: &Promoter{Store: fake},
		Fetcher:  fetcher,
		Writer:   &sync.Mutex{},
	}
}

func componentIDs(cs []catalog.Component) []string {
	ids := make([]string, 0, len(cs))
	for _, c := range cs {
		ids = append(ids, c.ID)
	}
	return ids
}

func TestRunScenarioAppPullFailure(t *testing.T) {
	fake := storetest.New(t.TempDir())
	a := appComponent("org.example.A", "")
	b := appComponent("org.example.B", "org.example.Platform/x86_64/stable")

	fake.Publish("R", "app/org.example.A/x86_64/stable", storetest.Commit("A"))
	fake.Publish("R", "app/org.example.B/x86_64/stable", storetest.Commit("B"))
	fake.Publish("R", "runtime/org.example.Platform/x86_64/stable", storetest.Commit("P"))
	fake.PullErr["app/org.example.B/x86_64/stable"] = errors.New("connection reset")

	fetcher := &mockFetcher{catalogs: map[string][]catalog.Component{"cat://R": {a, b}}}
	o := newOrchestrator(fake, fetcher)

	res, err := o.Run(context.Background(), []Remote{{Name: "R", CatalogURL: "cat://R"}}, Options{Arch: "x86_64", Concurrency: 2})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	var got []string
	for _, r := range res.Results {
		got = append(got, fmt.Sprintf("%s %s", r.Ref, r.Outcome))
	}
	want := []string{
		"app/org.example.A/x86_64/stable promoted",
		"app/org.example.B/x86_64/stable pull-failed",
		"runtime/org.example.Platform/x86_64/stable promoted",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("results mismatch (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff([]string{"org.example.A"}, componentIDs(res.Mirrored)); diff != "" {
		t.Errorf("mirrored mismatch (-want +got):\n%s", diff)
	}

	wantRefs := []string{"app/org.example.A/x86_64/stable", "runtime/org.example.Platform/x86_64/stable"}
	if diff := cmp.Diff(wantRefs, fake.Refs()); diff != "" {
		t.Errorf("local refs mismatch (-want +got):\n%s", diff)
	}
}

func TestRunIsolatesPullFailure(t *testing.T) {
	fake := storetest.New(t.TempDir())
	var components []catalog.Component
	for i := 0; i < 6; i++ {
		id := fmt.Sprintf("org.example.App%d", i)
		components = append(components, appComponent(id, ""))
		fake.Publish("R", "app/"+id+"/x86_64/stable", storetest.Commit(id))
	}
	const k = 3
	fake.PullErr["app/org.example.App3/x86_64/stable"] = errors.New("404")

	o := newOrchestrator(fake, &mockFetcher{catalogs: map[string][]catalog.Component{"u": components}})
	res, err := o.Run(context.Background(), []Remote{{Name: "R", CatalogURL: "u"}}, Options{Arch: "x86_64", Concurrency: 4})
	if err != nil {
		t.Fatal(err)
	}

	if len(res.Results) != 6 {
		t.Fatalf("results = %d, want 6", len(res.Results))
	}
	for i, r := range res.Results {
		if i == k {
			if r.Outcome != PullFailed || r.Err == nil {
				t.Errorf("result %d = %s, want pull-failed with error", i, r.Outcome)
			}
			continue
		}
		if r.Outcome != Promoted {
			t.Errorf("result %d = %s (%v), want promoted", i, r.Outcome, r.Err)
		}
		if r.Commit != storetest.Commit(r.Component) {
			t.Errorf("result %d commit = %q", i, r.Commit)
		}
	}

	counts := Count(res.Results)
	if counts.Promoted != 5 || counts.PullFailed != 1 || counts.Failed() != 1 {
		t.Errorf("counts = %+v", counts)
	}
	if len(res.Mirrored) != 5 {
		t.Errorf("mirrored = %d, want 5", len(res.Mirrored))
	}
}

func TestRunRecordsResolutionAndPromotionFailures(t *testing.T) {
	fake := storetest.New(t.TempDir())
	fake.Publish("R", "app/org.example.Bad/x86_64/stable", "garbage")
	fake.Publish("R", "app/org.example.Locked/x86_64/stable", storetest.Commit("locked"))
	fake.Publish("R", "app/org.example.Good/x86_64/stable", storetest.Commit("good"))
	fake.CreateRefErr["app/org.example.Locked/x86_64/stable"] = errors.New("permission denied")

	components := []catalog.Component{
		appComponent("org.example.Bad", ""),
		appComponent("org.example.Locked", ""),
		appComponent("org.example.Good", ""),
	}
	o := newOrchestrator(fake, &mockFetcher{catalogs: map[string][]catalog.Component{"u": components}})
	res, err := o.Run(context.Background(), []Remote{{Name: "R", CatalogURL: "u"}}, Options{Arch: "x86_64"})
	if err != nil {
		t.Fatal(err)
	}

	outcomes := []Outcome{res.Results[0].Outcome, res.Results[1].Outcome, res.Results[2].Outcome}
	if diff := cmp.Diff([]Outcome{ResolutionFailed, PromotionFailed, Promoted}, outcomes); diff != "" {
		t.Errorf("outcomes mismatch (-want +got):\n%s", diff)
	}
	if !errors.Is(res.Results[0].Err, ErrCommitNotFound) {
		t.Errorf("resolution error = %v", res.Results[0].Err)
	}
	if diff := cmp.Diff([]string{"org.example.Good"}, componentIDs(res.Mirrored)); diff != "" {
		t.Errorf("mirrored mismatch (-want +got):\n%s", diff)
	}
}

func TestRunRuntimeOnlySuccessDoesNotMirror(t *testing.T) {
	fake := storetest.New(t.TempDir())
	fake.Publish("R", "runtime/org.example.Platform/x86_64/stable", storetest.Commit("P"))
	// The app ref is not published upstream, so its pull fails.

	c := appComponent("org.example.Missing", "org.example.Platform/x86_64/stable")
	o := newOrchestrator(fake, &mockFetcher{catalogs: map[string][]catalog.Component{"u": {c}}})
	res, err := o.Run(context.Background(), []Remote{{Name: "R", CatalogURL: "u"}}, Options{Arch: "x86_64"})
	if err != nil {
		t.Fatal(err)
	}

	if len(res.Mirrored) != 0 {
		t.Errorf("mirrored = %v, want none", componentIDs(res.Mirrored))
	}
	if _, ok := fake.Ref("runtime/org.example.Platform/x86_64/stable"); !ok {
		t.Error("runtime should still be promoted")
	}
}

func TestRunNeverPullsSDK(t *testing.T) {
	fake := storetest.New(t.TempDir())
	fake.Publish("R", "app/org.example.A/x86_64/stable", storetest.Commit("A"))

	o := newOrchestrator(fake, &mockFetcher{catalogs: map[string][]catalog.Component{"u": {appComponent("org.example.A", "")}}})
	if _, err := o.Run(context.Background(), []Remote{{Name: "R", CatalogURL: "u"}}, Options{Arch: "x86_64"}); err != nil {
		t.Fatal(err)
	}

	for _, call := range fake.Calls() {
		if strings.Contains(call, "Sdk") {
			t.Errorf("sdk should never be pulled: %q", call)
		}
	}
}

func TestRunCapsComponentsPerRemote(t *testing.T) {
	fake := storetest.New(t.TempDir())
	var components []catalog.Component
	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("org.example.App%d", i)
		components = append(components, appComponent(id, ""))
		fake.Publish("R", "app/"+id+"/x86_64/stable", storetest.Commit(id))
	}

	o := newOrchestrator(fake, &mockFetcher{catalogs: map[string][]catalog.Component{"u": components}})
	res, err := o.Run(context.Background(), []Remote{{Name: "R", CatalogURL: "u"}}, Options{Arch: "x86_64", MaxPerRemote: 2})
	if err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff([]string{"org.example.App0", "org.example.App1"}, componentIDs(res.Mirrored)); diff != "" {
		t.Errorf("mirrored mismatch (-want +got):\n%s", diff)
	}
}

func TestRunContinuesAfterCatalogFailure(t *testing.T) {
	fake := storetest.New(t.TempDir())
	fake.Publish("good", "app/org.example.A/x86_64/stable", storetest.Commit("A"))

	fetcher := &mockFetcher{
		catalogs: map[string][]catalog.Component{"good-url": {appComponent("org.example.A", "")}},
		errs:     map[string]error{"bad-url": errors.New("HTTP 500")},
	}
	o := newOrchestrator(fake, fetcher)
	remotes := []Remote{{Name: "bad", CatalogURL: "bad-url"}, {Name: "good", CatalogURL: "good-url"}}

	res, err := o.Run(context.Background(), remotes, Options{Arch: "x86_64"})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.RemoteErrors) != 1 || res.RemoteErrors[0].Remote != "bad" {
		t.Errorf("remote errors = %v", res.RemoteErrors)
	}
	if len(res.Mirrored) != 1 {
		t.Errorf("mirrored = %d, want 1", len(res.Mirrored))
	}
}

func TestRunCleansTransientState(t *testing.T) {
	root := t.TempDir()
	fake := storetest.New(root)
	fake.Publish("R", "app/org.example.A/x86_64/stable", storetest.Commit("A"))

	o := newOrchestrator(fake, &mockFetcher{catalogs: map[string][]catalog.Component{"u": {appComponent("org.example.A", "")}}})
	res, err := o.Run(context.Background(), []Remote{{Name: "R", CatalogURL: "u"}}, Options{Arch: "x86_64"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Results[0].Outcome != Promoted {
		t.Fatalf("outcome = %s", res.Results[0].Outcome)
	}

	_, found := scanMirrors(root+"/refs/mirrors", res.Results[0].Ref)
	if found {
		t.Error("transient deposit should be removed after promotion")
	}
}

func TestRunCancelled(t *testing.T) {
	fake := storetest.New(t.TempDir())
	fake.Publish("R", "app/org.example.A/x86_64/stable", storetest.Commit("A"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	o := newOrchestrator(fake, &mockFetcher{catalogs: map[string][]catalog.Component{"u": {appComponent("org.example.A", "")}}})
	res, err := o.Run(ctx, []Remote{{Name: "R", CatalogURL: "u"}}, Options{Arch: "x86_64"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(res.Results) != 1 || res.Results[0].Outcome != PullFailed {
		t.Errorf("results = %+v", res.Results)
	}
	if len(fake.Refs()) != 0 {
		t.Errorf("no refs should be promoted, got %v", fake.Refs())
	}
}
