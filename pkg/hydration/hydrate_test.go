package hydration

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"

	"github.com/metis-project/metis-sync/internal/testutil"
	"github.com/metis-project/metis-sync/pkg/gitsync"
)

var alwaysValidPrefix IsValidPrefixFunc = func(name string) bool { return name == "api" || name == "frontend" }

func seedCentral(t *testing.T) string {
	t.Helper()
	bare := testutil.TempBareRepo(t)
	working := testutil.TempWorkingRepo(t)
	testutil.CommitFile(t, working, "api/API-V-0001.md", "---\nshort_code: API-V-0001\n---\nbody\n", "seed api")
	testutil.CommitFile(t, working, "frontend/FE-V-0001.md", "---\nshort_code: FE-V-0001\n---\nbody\n", "seed frontend")
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

func TestHydrateMirrorsNonOwnedWorkspaces(t *testing.T) {
	bare := seedCentral(t)
	metisRoot := t.TempDir()

	sc, err := gitsync.NewSyncContext("file://"+bare, gitsync.AuthToken{})
	if err != nil {
		t.Fatalf("NewSyncContext: %v", err)
	}
	defer sc.Close()

	head, ok, err := sc.Fetch(context.Background())
	if err != nil || !ok {
		t.Fatalf("Fetch: ok=%v err=%v", ok, err)
	}

	result, err := Hydrate(context.Background(), sc, head, "api", metisRoot, alwaysValidPrefix)
	if err != nil {
		t.Fatalf("Hydrate: %v", err)
	}

	if _, err := os.Stat(filepath.Join(metisRoot, "api")); !os.IsNotExist(err) {
		t.Error("owned prefix 'api' should never be hydrated")
	}
	if _, err := os.Stat(filepath.Join(metisRoot, "frontend", "FE-V-0001.md")); err != nil {
		t.Errorf("expected frontend doc to be hydrated: %v", err)
	}

	stats, ok := result.PerWorkspace["frontend"]
	if !ok || stats.FilesWritten != 1 {
		t.Errorf("PerWorkspace[frontend] = %+v", stats)
	}

	ignoreContent, err := os.ReadFile(filepath.Join(metisRoot, ".metisignore"))
	if err != nil {
		t.Fatalf("read .metisignore: %v", err)
	}
	if string(ignoreContent) != "frontend/\n" {
		t.Errorf(".metisignore = %q, want \"frontend/\\n\"", string(ignoreContent))
	}
}

func TestHydratePreservesPriorIgnoreEntries(t *testing.T) {
	bare := seedCentral(t)
	metisRoot := t.TempDir()
	if err := os.WriteFile(filepath.Join(metisRoot, ".metisignore"), []byte("legacy/\n"), 0o644); err != nil {
		t.Fatalf("seed .metisignore: %v", err)
	}

	sc, err := gitsync.NewSyncContext("file://"+bare, gitsync.AuthToken{})
	if err != nil {
		t.Fatalf("NewSyncContext: %v", err)
	}
	defer sc.Close()

	head, ok, err := sc.Fetch(context.Background())
	if err != nil || !ok {
		t.Fatalf("Fetch: ok=%v err=%v", ok, err)
	}

	if _, err := Hydrate(context.Background(), sc, head, "api", metisRoot, alwaysValidPrefix); err != nil {
		t.Fatalf("Hydrate: %v", err)
	}

	content, err := os.ReadFile(filepath.Join(metisRoot, ".metisignore"))
	if err != nil {
		t.Fatalf("read .metisignore: %v", err)
	}
	if string(content) != "frontend/\nlegacy/\n" {
		t.Errorf(".metisignore = %q, want union of legacy/ and frontend/", string(content))
	}
}
