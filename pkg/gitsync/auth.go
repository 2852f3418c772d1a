// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

package gitsync

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	gitssh "github.com/go-git/go-git/v5/plumbing/transport/ssh"
	"golang.org/x/crypto/ssh"
)

// maxAuthAttempts caps how many auth candidates a single Fetch or Push will
// try, preventing an endless retry loop against a remote that keeps
// rejecting every method.
const maxAuthAttempts = 10

// AuthToken carries an HTTPS credential resolved from config or environment.
// Empty means no token is configured; the chain falls through to SSH/anonymous.
type AuthToken struct {
	Host  string
	Token string
}

// authCandidates builds the ordered list of auth methods to try for url,
// per SPEC_FULL.md §4.3: ssh-agent, then standard key files, then an HTTPS
// token if one is configured, then nil (anonymous, for file:// and public
// http remotes).
func authCandidates(url string, token AuthToken) []transport.AuthMethod {
	var candidates []transport.AuthMethod

	if strings.HasPrefix(url, "file://") {
		return []transport.AuthMethod{nil}
	}

	if isSSHURL(url) {
		if agentAuth := sshAgentAuth(); agentAuth != nil {
			candidates = append(candidates, agentAuth)
		}
		for _, keyFile := range []string{"id_ed25519", "id_rsa", "id_ecdsa"} {
			if keyAuth := sshKeyFileAuth(keyFile); keyAuth != nil {
				candidates = append(candidates, keyAuth)
			}
		}
		return candidates
	}

	if token.Token != "" {
		candidates = append(candidates, &githttp.BasicAuth{
			Username: httpUsername(token.Host),
			Password: token.Token,
		})
	}
	candidates = append(candidates, nil)

	return candidates
}

// httpUsername returns the conventional HTTPS Basic-Auth username for a
// given remote host: "x-access-token" for GitHub-style hosts, "oauth2" as
// the generic default used by GitLab and others.
func httpUsername(host string) string {
	if strings.Contains(host, "github") {
		return "x-access-token"
	}
	return "oauth2"
}

func isSSHURL(url string) bool {
	if strings.HasPrefix(url, "ssh://") {
		return true
	}
	return strings.HasPrefix(url, "git@") || (strings.Contains(url, "@") && strings.Contains(url, ":") &&
		!strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://"))
}

// sshAgentAuth resolves credentials from a running ssh-agent, if SSH_AUTH_SOCK
// is set and reachable. Returns nil if no agent is available.
func sshAgentAuth() transport.AuthMethod {
	if os.Getenv("SSH_AUTH_SOCK") == "" {
		return nil
	}
	auth, err := gitssh.NewSSHAgentAuth("git")
	if err != nil {
		return nil
	}
	return auth
}

// sshKeyFileAuth loads a private key from ~/.ssh/<name>. Returns nil if the
// file doesn't exist or can't be parsed (e.g. it's encrypted and we have no
// passphrase to offer).
func sshKeyFileAuth(name string) transport.AuthMethod {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	path := filepath.Join(home, ".ssh", name)
	if _, err := os.Stat(path); err != nil {
		return nil
	}

	auth, err := gitssh.NewPublicKeysFromFile("git", path, "")
	if err != nil {
		return nil
	}
	auth.HostKeyCallback = ssh.InsecureIgnoreHostKey()
	return auth
}

// boundedAuthIterator hands out the resolved auth candidates in order, at
// most maxAuthAttempts times, then reports exhaustion. Fetch and Push walk
// it themselves, moving on to the next candidate only after an auth
// failure, so a misbehaving remote cannot keep them looping forever.
type boundedAuthIterator struct {
	candidates []transport.AuthMethod
	attempts   int
}

func newBoundedAuthIterator(candidates []transport.AuthMethod) *boundedAuthIterator {
	return &boundedAuthIterator{candidates: candidates}
}

// next returns the next candidate to try, or (nil, false) once the method
// list or the attempt cap is exhausted.
func (b *boundedAuthIterator) next() (transport.AuthMethod, bool) {
	if b.attempts >= maxAuthAttempts || b.attempts >= len(b.candidates) {
		return nil, false
	}
	candidate := b.candidates[b.attempts]
	b.attempts++
	return candidate, true
}
