package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"

	"github.com/metis-project/metis-sync/internal/testutil"
	"github.com/metis-project/metis-sync/pkg/config"
)

// seedCentral creates a bare remote with one document owned by the "docs"
// prefix, committed on its default branch.
func seedCentral(t *testing.T) string {
	t.Helper()
	bare := testutil.TempBareRepo(t)
	working := testutil.TempWorkingRepo(t)
	testutil.CommitFile(t, working, "docs/DOC-V-0001.md", "---\nshort_code: DOC-V-0001\n---\nbody\n", "seed")
	testutil.AddRemote(t, working, "origin", "file://"+bare)

	repo, err := git.PlainOpen(working)
	if err != nil {
		t.Fatalf("PlainOpen: %v", err)
	}
	err = repo.Push(&git.PushOptions{
		RemoteName: "origin",
		RefSpecs:   []gitconfig.RefSpec{"refs/heads/master:refs/heads/master"},
	})
	if err != nil && err != git.NoErrAlreadyUpToDate {
		t.Fatalf("seed push: %v", err)
	}
	return bare
}

func newWorkspace(t *testing.T, upstreamURL, prefix string) (string, *config.Store) {
	t.Helper()
	root := t.TempDir()
	store := config.NewStore(root)
	err := store.Save(config.WorkspaceConfig{
		Workspace: config.Workspace{Prefix: prefix},
		Sync:      config.Sync{UpstreamURL: upstreamURL},
	})
	if err != nil {
		t.Fatalf("Save config: %v", err)
	}
	return root, store
}

func TestEngineRunNoUpstreamIsNoop(t *testing.T) {
	root, store := newWorkspace(t, "", "team-api")
	eng := New(store, root)

	result, err := eng.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.NoUpstream {
		t.Error("expected NoUpstream result when upstream_url is empty")
	}
}

func TestEngineRunPublishesNewDocument(t *testing.T) {
	bare := seedCentral(t)
	root, store := newWorkspace(t, "file://"+bare, "web")

	webDir := filepath.Join(root, "web")
	if err := os.MkdirAll(webDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	content := "---\nshort_code: WEB-V-0001\n---\nnew doc\n"
	if err := os.WriteFile(filepath.Join(webDir, "WEB-V-0001.md"), []byte(content), 0o644); err != nil {
		t.Fatalf("write doc: %v", err)
	}

	eng := New(store, root)
	result, err := eng.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.NoChange || result.Commit == "" {
		t.Fatalf("expected a pushed commit, got %+v", result)
	}

	cfg, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Sync.LastSyncedCommit != result.Commit {
		t.Errorf("last_synced_commit = %q, want %q", cfg.Sync.LastSyncedCommit, result.Commit)
	}

	docsDir := filepath.Join(root, "docs")
	if _, err := os.Stat(filepath.Join(docsDir, "DOC-V-0001.md")); err != nil {
		t.Errorf("expected hydrated docs/ workspace, stat failed: %v", err)
	}
}

func TestEngineRunHydratesOtherWorkspacesWithNothingToPush(t *testing.T) {
	bare := seedCentral(t)
	root, store := newWorkspace(t, "file://"+bare, "web")

	eng := New(store, root)
	result, err := eng.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.NoChange {
		t.Errorf("expected no-op push when web/ has no local documents, got %+v", result)
	}

	if _, err := os.Stat(filepath.Join(root, "docs", "DOC-V-0001.md")); err != nil {
		t.Errorf("expected docs/ to be hydrated: %v", err)
	}
}

func TestEnginePullOnlyNoUpstreamIsNoop(t *testing.T) {
	root, store := newWorkspace(t, "", "team-api")
	eng := New(store, root)

	result, err := eng.PullOnly(context.Background())
	if err != nil {
		t.Fatalf("PullOnly: %v", err)
	}
	if !result.NoUpstream {
		t.Error("expected NoUpstream result when upstream_url is empty")
	}
}

func TestEnginePullOnlyHydratesWithoutPushing(t *testing.T) {
	bare := seedCentral(t)
	root, store := newWorkspace(t, "file://"+bare, "web")

	eng := New(store, root)
	if _, err := eng.PullOnly(context.Background()); err != nil {
		t.Fatalf("PullOnly: %v", err)
	}

	if _, err := os.Stat(filepath.Join(root, "docs", "DOC-V-0001.md")); err != nil {
		t.Errorf("expected docs/ to be hydrated: %v", err)
	}

	// No .metis/config.yaml mutation should have occurred: last_synced_commit
	// stays empty since PullOnly never pushes.
	cfg, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Sync.LastSyncedCommit != "" {
		t.Errorf("expected last_synced_commit to remain empty after PullOnly, got %q", cfg.Sync.LastSyncedCommit)
	}
}
