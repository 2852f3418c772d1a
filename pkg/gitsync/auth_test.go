package gitsync

import (
	"testing"

	"github.com/go-git/go-git/v5/plumbing/transport"
)

func TestAuthCandidatesFileURLIsAnonymous(t *testing.T) {
	candidates := authCandidates("file:///tmp/central.git", AuthToken{Token: "ignored"})
	if len(candidates) != 1 || candidates[0] != nil {
		t.Fatalf("file:// should yield a single nil (anonymous) candidate, got %v", candidates)
	}
}

func TestAuthCandidatesHTTPSWithToken(t *testing.T) {
	candidates := authCandidates("https://github.com/acme/central.git", AuthToken{Host: "github.com", Token: "tok"})
	if len(candidates) != 2 {
		t.Fatalf("expected token candidate plus anonymous fallback, got %d", len(candidates))
	}
	if candidates[0] == nil {
		t.Fatal("first candidate should be the token-based BasicAuth")
	}
	if candidates[1] != nil {
		t.Fatal("last candidate should be nil (anonymous fallback)")
	}
}

func TestAuthCandidatesHTTPSNoToken(t *testing.T) {
	candidates := authCandidates("https://example.com/central.git", AuthToken{})
	if len(candidates) != 1 || candidates[0] != nil {
		t.Fatalf("no token configured should yield only anonymous, got %v", candidates)
	}
}

func TestHTTPUsernameConvention(t *testing.T) {
	if got := httpUsername("github.com"); got != "x-access-token" {
		t.Errorf("httpUsername(github.com) = %q", got)
	}
	if got := httpUsername("gitlab.example.com"); got != "oauth2" {
		t.Errorf("httpUsername(gitlab.example.com) = %q", got)
	}
}

func TestIsSSHURL(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"git@github.com:acme/central.git", true},
		{"ssh://git@github.com/acme/central.git", true},
		{"https://github.com/acme/central.git", false},
		{"file:///tmp/central.git", false},
	}
	for _, tt := range tests {
		if got := isSSHURL(tt.url); got != tt.want {
			t.Errorf("isSSHURL(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}

func TestBoundedAuthIteratorStopsAtAttemptCap(t *testing.T) {
	candidates := make([]transport.AuthMethod, maxAuthAttempts+5)

	iter := newBoundedAuthIterator(candidates)
	count := 0
	for {
		if _, ok := iter.next(); !ok {
			break
		}
		count++
	}
	if count != maxAuthAttempts {
		t.Errorf("iterated %d times, want cap of %d", count, maxAuthAttempts)
	}
}

func TestBoundedAuthIteratorStopsWhenCandidatesExhausted(t *testing.T) {
	candidates := make([]transport.AuthMethod, 2)

	iter := newBoundedAuthIterator(candidates)
	count := 0
	for {
		if _, ok := iter.next(); !ok {
			break
		}
		count++
	}
	if count != 2 {
		t.Errorf("iterated %d times, want 2", count)
	}
}
