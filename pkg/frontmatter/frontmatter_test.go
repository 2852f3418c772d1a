package frontmatter

import "testing"

func TestParse(t *testing.T) {
	raw := []byte("---\nshort_code: API-T-0001\nlevel: task\nparent: API-I-0001\ntags:\n  - \"#phase/active\"\n---\n# Title\n\nbody text\n")

	doc, body, ok, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if !ok {
		t.Fatal("expected frontmatter block to be found")
	}
	if doc.ShortCode != "API-T-0001" {
		t.Errorf("ShortCode = %q, want API-T-0001", doc.ShortCode)
	}
	if doc.Level != "task" {
		t.Errorf("Level = %q, want task", doc.Level)
	}
	if doc.Phase() != "active" {
		t.Errorf("Phase() = %q, want active", doc.Phase())
	}
	if string(body) != "# Title\n\nbody text\n" {
		t.Errorf("body = %q", string(body))
	}
}

func TestParseNoFrontmatter(t *testing.T) {
	raw := []byte("# Title\n\njust a markdown file\n")

	_, body, ok, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if ok {
		t.Fatal("expected no frontmatter block to be found")
	}
	if string(body) != string(raw) {
		t.Errorf("body should equal raw input when no frontmatter present")
	}
}

func TestHasShortCode(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
		ok   bool
	}{
		{"valid", "---\nshort_code: API-V-0001\n---\nbody", "API-V-0001", true},
		{"missing field", "---\nlevel: vision\n---\nbody", "", false},
		{"no frontmatter", "plain markdown", "", false},
		{"malformed yaml", "---\nshort_code: [unterminated\n---\nbody", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := HasShortCode([]byte(tt.raw))
			if got != tt.want || ok != tt.ok {
				t.Errorf("HasShortCode() = (%q, %v), want (%q, %v)", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestPhaseEmptyWithoutTag(t *testing.T) {
	doc := Document{Tags: []string{"#team/api", "#priority/high"}}
	if doc.Phase() != "" {
		t.Errorf("Phase() = %q, want empty", doc.Phase())
	}
}
