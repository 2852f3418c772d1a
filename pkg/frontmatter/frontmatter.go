// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

// Package frontmatter splits and parses the YAML frontmatter block that
// precedes every Metis document's markdown body. It is the only place in
// the sync engine that knows the frontmatter wire format; the layout mapper
// and projection cache both build on it.
package frontmatter

import (
	"bytes"
	"strings"

	"gopkg.in/yaml.v3"
)

const delimiter = "---"

// Document is the subset of frontmatter fields the sync engine reads. See
// SPEC_FULL.md §6 "Frontmatter schema".
type Document struct {
	ShortCode string   `yaml:"short_code"`
	Level     string   `yaml:"level"`
	Parent    string   `yaml:"parent"`
	BlockedBy []string `yaml:"blocked_by"`
	Archived  bool     `yaml:"archived"`
	Tags      []string `yaml:"tags"`
}

// Phase derives the document's phase from its tags, taking the value after
// the first "#phase/<name>" tag found. Returns "" if no such tag exists.
func (d Document) Phase() string {
	const prefix = "#phase/"
	for _, tag := range d.Tags {
		if strings.HasPrefix(tag, prefix) {
			return strings.TrimPrefix(tag, prefix)
		}
	}
	return ""
}

// Parse splits raw document bytes into its frontmatter and body, and
// unmarshals the frontmatter block. Content with no frontmatter block (no
// leading "---" delimiter) yields a zero-value Document and ok=false; this
// is not itself an error, since the caller decides whether a missing
// short_code disqualifies the file.
func Parse(raw []byte) (doc Document, body []byte, ok bool, err error) {
	fm, rest, found := split(raw)
	if !found {
		return Document{}, raw, false, nil
	}

	if err := yaml.Unmarshal(fm, &doc); err != nil {
		return Document{}, raw, false, err
	}

	return doc, rest, true, nil
}

// HasShortCode reports whether raw has a parseable frontmatter block with a
// non-empty short_code.
func HasShortCode(raw []byte) (string, bool) {
	doc, _, ok, err := Parse(raw)
	if err != nil || !ok {
		return "", false
	}
	return doc.ShortCode, doc.ShortCode != ""
}

// split extracts the frontmatter block bounded by "---\n" lines at the very
// start of raw, returning the frontmatter YAML, the remaining body, and
// whether a frontmatter block was found at all.
func split(raw []byte) (frontmatter, body []byte, found bool) {
	trimmed := bytes.TrimPrefix(raw, []byte("﻿")) // tolerate a BOM

	lines := bytes.SplitAfter(trimmed, []byte("\n"))
	if len(lines) == 0 || strings.TrimSpace(string(lines[0])) != delimiter {
		return nil, raw, false
	}

	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(string(lines[i])) == delimiter {
			fm := bytes.Join(lines[1:i], nil)
			rest := bytes.Join(lines[i+1:], nil)
			return fm, rest, true
		}
	}

	return nil, raw, false
}
