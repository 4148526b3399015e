package git

import (
	"context"
	"testing"
)

func TestProjectNameFromURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{in: "", want: ""},
		{in: "git@github.com:org/repo.git", want: "repo"},
		{in: "https://github.com/org/repo.git", want: "repo"},
		{in: "https://gitlab.com/group/sub/project", want: "project"},
		{in: "https://example.com/org/repo/", want: "repo"},
		{in: "git@host:repo.git", want: "repo"},
		{in: "/srv/git/local.git", want: "local"},
		{in: "https://host/org/my.git.tools.git", want: "my.git.tools"},
	}
	for _, tt := range tests {
		if got := ProjectNameFromURL(tt.in); got != tt.want {
			t.Fatalf("ProjectNameFromURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIsBrowsable(t *testing.T) {
	t.Parallel()

	tests := map[string]bool{
		"https://github.com/org/repo": true,
		"HTTP://example.com/repo":     true,
		"git@github.com:org/repo.git": false,
		"ssh://git@host/repo.git":     false,
		"":                            false,
	}
	for in, want := range tests {
		if got := IsBrowsable(in); got != want {
			t.Fatalf("IsBrowsable(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLabelAndProject(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		remote      string
		wantLabel   string
		wantProject bool
		wantBrowse  bool
	}{
		{name: "ssh_remote", remote: "git@github.com:org/nautilus.git", wantLabel: "nautilus/dev", wantProject: true},
		{name: "https_remote", remote: "https://github.com/org/nautilus", wantLabel: "nautilus/dev", wantProject: true, wantBrowse: true},
		{name: "no_remote", remote: "", wantLabel: "dev"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fb := &fakeBackend{
				repoPath:      "/repo",
				headStateFunc: onBranch("dev"),
				remoteURLFunc: func(string) (string, error) { return tt.remote, nil },
			}
			r := NewWithBackend(fb)
			ctx := context.Background()

			label, err := r.Label(ctx)
			if err != nil {
				t.Fatalf("Label: %v", err)
			}
			if label != tt.wantLabel {
				t.Fatalf("Label() = %q, want %q", label, tt.wantLabel)
			}
			if fb.lastRemote != "origin" {
				t.Fatalf("remote queried = %q, want origin", fb.lastRemote)
			}
			if _, ok, err := r.ProjectName(ctx); err != nil || ok != tt.wantProject {
				t.Fatalf("ProjectName() ok = %v, err = %v; want %v", ok, err, tt.wantProject)
			}
			u, ok, err := r.BrowsableRemoteURL(ctx)
			if err != nil || ok != tt.wantBrowse {
				t.Fatalf("BrowsableRemoteURL() = %q, %v, %v; want ok %v", u, ok, err, tt.wantBrowse)
			}
		})
	}
}
