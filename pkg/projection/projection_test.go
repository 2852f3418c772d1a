package projection

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeDoc(t *testing.T, dir, shortCode, content string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	path := filepath.Join(dir, shortCode+".md")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestBuildIndexesChildrenBlocksAndWorkspaceMembers(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, filepath.Join(root, "strat"), "STRAT-I-0001",
		"---\nshort_code: STRAT-I-0001\nlevel: initiative\ntags: [\"#phase/active\"]\n---\n# Initiative One\n")
	writeDoc(t, filepath.Join(root, "api"), "API-T-0001",
		"---\nshort_code: API-T-0001\nlevel: task\nparent: STRAT-I-0001\ntags: [\"#phase/done\"]\n---\n# Task One\n")
	writeDoc(t, filepath.Join(root, "api"), "API-T-0002",
		"---\nshort_code: API-T-0002\nlevel: task\nparent: STRAT-I-0001\nblocked_by: [\"API-T-0001\"]\ntags: [\"#phase/todo\"]\n---\n# Task Two\n")

	cache, err := Build(context.Background(), root, "api", []string{"strat", "api"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	doc, ok := cache.Get("API-T-0001")
	if !ok {
		t.Fatal("expected API-T-0001 in cache")
	}
	if doc.Title != "Task One" {
		t.Errorf("Title = %q, want %q", doc.Title, "Task One")
	}
	if !doc.Owned {
		t.Error("expected API-T-0001 to be owned (api is the owned prefix)")
	}

	strat, ok := cache.Get("STRAT-I-0001")
	if !ok || strat.Owned {
		t.Errorf("expected STRAT-I-0001 present and not owned, got %+v ok=%v", strat, ok)
	}

	children := cache.ChildrenOf("STRAT-I-0001")
	if len(children) != 2 {
		t.Fatalf("expected 2 children of STRAT-I-0001, got %d", len(children))
	}

	blockedDocs := cache.Blocks("API-T-0001")
	if len(blockedDocs) != 1 || blockedDocs[0].ShortCode != "API-T-0002" {
		t.Errorf("Blocks(API-T-0001) = %+v, want [API-T-0002]", blockedDocs)
	}

	progress := cache.Progress("STRAT-I-0001")
	if progress.Completed != 1 || progress.Todo != 1 {
		t.Errorf("Progress = %+v, want Completed=1 Todo=1", progress)
	}

	members := cache.WorkspaceDocuments("api")
	if len(members) != 2 {
		t.Errorf("expected 2 members of api workspace, got %d", len(members))
	}
}

func TestBuildIgnoresSelfReferentialParent(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, filepath.Join(root, "api"), "API-T-0001",
		"---\nshort_code: API-T-0001\nlevel: task\nparent: API-T-0001\n---\nbody\n")

	cache, err := Build(context.Background(), root, "api", []string{"api"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if children := cache.ChildrenOf("API-T-0001"); len(children) != 0 {
		t.Errorf("expected self-reference to be ignored, got children %+v", children)
	}
}

func TestBuildToleratesDuplicateShortCodesAndOrphanedParents(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, filepath.Join(root, "api"), "API-T-0001",
		"---\nshort_code: API-T-0001\nlevel: task\nparent: NOT-A-REAL-CODE\n---\nbody one\n")
	writeDoc(t, filepath.Join(root, "web"), "API-T-0001",
		"---\nshort_code: API-T-0001\nlevel: task\n---\nbody two (duplicate short code)\n")

	cache, err := Build(context.Background(), root, "api", []string{"api", "web"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if _, ok := cache.Get("API-T-0001"); !ok {
		t.Fatal("expected one canonical entry for duplicate short code")
	}
	if len(cache.WorkspaceDocuments("api")) != 1 || len(cache.WorkspaceDocuments("web")) != 1 {
		t.Error("expected workspace_members to record both copies despite the duplicate short_code")
	}
	if children := cache.ChildrenOf("NOT-A-REAL-CODE"); len(children) != 0 {
		t.Errorf("orphaned parent reference should not resolve to any children, got %+v", children)
	}
}

func TestBuildSkipsUnparseableFrontmatter(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, filepath.Join(root, "api"), "not-a-doc", "no frontmatter at all\n")

	cache, err := Build(context.Background(), root, "api", []string{"api"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(cache.Warnings) != 1 {
		t.Fatalf("expected one warning for unparseable file, got %d: %+v", len(cache.Warnings), cache.Warnings)
	}
}

func TestUpstreamContextStopsAtFirstOutOfWorkspaceAncestor(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, filepath.Join(root, "strat"), "STRAT-V-0001",
		"---\nshort_code: STRAT-V-0001\nlevel: vision\n---\nbody\n")
	writeDoc(t, filepath.Join(root, "strat"), "STRAT-I-0001",
		"---\nshort_code: STRAT-I-0001\nlevel: initiative\nparent: STRAT-V-0001\n---\nbody\n")
	writeDoc(t, filepath.Join(root, "api"), "API-T-0001",
		"---\nshort_code: API-T-0001\nlevel: task\nparent: STRAT-I-0001\n---\nbody\n")

	cache, err := Build(context.Background(), root, "api", []string{"strat", "api"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	ancestors := cache.UpstreamContext("api")
	if len(ancestors) != 1 || ancestors[0].ShortCode != "STRAT-I-0001" {
		t.Errorf("UpstreamContext(api) = %+v, want [STRAT-I-0001]", ancestors)
	}
}
