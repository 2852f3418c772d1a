package dehydration

import (
	"context"
	"testing"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"

	"github.com/metis-project/metis-sync/internal/testutil"
	"github.com/metis-project/metis-sync/pkg/gitsync"
)

func seedCentral(t *testing.T) string {
	t.Helper()
	bare := testutil.TempBareRepo(t)
	working := testutil.TempWorkingRepo(t)
	testutil.CommitFile(t, working, "api/API-V-0001.md", "---\nshort_code: API-V-0001\n---\nbody\n", "seed")
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

func TestDehydrateNoChangeShortCircuits(t *testing.T) {
	bare := seedCentral(t)
	sc, err := gitsync.NewSyncContext("file://"+bare, gitsync.AuthToken{})
	if err != nil {
		t.Fatalf("NewSyncContext: %v", err)
	}
	defer sc.Close()

	head, ok, err := sc.Fetch(context.Background())
	if err != nil || !ok {
		t.Fatalf("Fetch: ok=%v err=%v", ok, err)
	}

	local := map[string][]byte{
		"API-V-0001": []byte("---\nshort_code: API-V-0001\n---\nbody\n"),
	}

	outcome, err := Dehydrate(sc, head, "api", local)
	if err != nil {
		t.Fatalf("Dehydrate: %v", err)
	}
	if outcome.Changed {
		t.Error("expected no-op when local matches central exactly")
	}
}

func TestDehydrateDetectsAdditionAndRemoval(t *testing.T) {
	bare := seedCentral(t)
	sc, err := gitsync.NewSyncContext("file://"+bare, gitsync.AuthToken{})
	if err != nil {
		t.Fatalf("NewSyncContext: %v", err)
	}
	defer sc.Close()

	head, ok, err := sc.Fetch(context.Background())
	if err != nil || !ok {
		t.Fatalf("Fetch: ok=%v err=%v", ok, err)
	}

	local := map[string][]byte{
		"API-V-0002": []byte("---\nshort_code: API-V-0002\n---\nnew body\n"),
	}

	outcome, err := Dehydrate(sc, head, "api", local)
	if err != nil {
		t.Fatalf("Dehydrate: %v", err)
	}
	if !outcome.Changed || outcome.Commit.IsZero() {
		t.Fatalf("expected a commit for addition+removal, got %+v", outcome)
	}

	if err := sc.Push(context.Background()); err != nil {
		t.Fatalf("Push: %v", err)
	}

	verify, err := gitsync.NewSyncContext("file://"+bare, gitsync.AuthToken{})
	if err != nil {
		t.Fatalf("NewSyncContext(verify): %v", err)
	}
	defer verify.Close()

	newHead, ok, err := verify.Fetch(context.Background())
	if err != nil || !ok {
		t.Fatalf("verify Fetch: ok=%v err=%v", ok, err)
	}

	docs, err := verify.ReadFlatUnderPrefix(newHead, "api")
	if err != nil {
		t.Fatalf("ReadFlatUnderPrefix: %v", err)
	}
	if _, present := docs["API-V-0001"]; present {
		t.Error("API-V-0001 should have been removed from central")
	}
	if _, present := docs["API-V-0002"]; !present {
		t.Error("API-V-0002 should be present in central")
	}
}
