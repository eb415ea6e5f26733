package walker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"slices"
	"strings"
	"testing"

	"github.com/thoreinstein/bax/internal/ignore"
	"github.com/thoreinstein/bax/internal/logging"
	"github.com/thoreinstein/bax/internal/progress"
)

type recordingSink struct {
	discovered []string
	excluded   []string
	warned     []string
}

func (s *recordingSink) FileDiscovered(path string) { s.discovered = append(s.discovered, path) }

func (s *recordingSink) FileExcluded(path string) { s.excluded = append(s.excluded, path) }

func (s *recordingSink) FileWritten(string, int64) {}

func (s *recordingSink) Warning(path string, _ error) { s.warned = append(s.warned, path) }

func (s *recordingSink) Done(progress.Summary) {}

func mustWrite(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("creating %s parent: %v", rel, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", rel, err)
	}
}

func mustSymlink(t *testing.T, target, link string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("symlinks require privileges on windows")
	}
	if err := os.Symlink(target, link); err != nil {
		t.Fatalf("creating symlink %s: %v", link, err)
	}
}

func collect(t *testing.T, root string, opts ...Option) ([]string, *recordingSink) {
	t.Helper()
	sink := &recordingSink{}
	opts = append(opts, WithSink(sink), WithLogger(logging.NewDiscard()))
	var got []string
	err := New(opts...).Walk(t.Context(), root, func(e Entry) error {
		got = append(got, e.Path)
		return nil
	})
	if err != nil {
		t.Fatalf("Walk() error = %v", err)
	}
	return got, sink
}

func TestWalk_DeterministicDepthFirstOrder(t *testing.T) {
	root := t.TempDir()
	for _, rel := range []string{"zeta.txt", "mid/deep/leaf.txt", "mid/b.txt", "alpha.txt", "mid/a.txt"} {
		mustWrite(t, root, rel, rel)
	}

	want := []string{"alpha.txt", "mid/a.txt", "mid/b.txt", "mid/deep/leaf.txt", "zeta.txt"}

	for range 3 {
		got, _ := collect(t, root)
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("Walk() order = %v, want %v", got, want)
		}
	}
}

func TestWalk_GitMetadataExcluded(t *testing.T) {
	root := t.TempDir()
	mustWrite(t, root, "a.txt", "a")
	mustWrite(t, root, ".git/HEAD", "ref: refs/heads/main")
	mustWrite(t, root, ".git/objects/ab/cdef", "blob")
	mustWrite(t, root, "sub/.git/config", "[core]")
	mustWrite(t, root, "sub/b.txt", "b")
	mustWrite(t, root, ".gitignore", "")

	got, sink := collect(t, root)

	want := []string{".gitignore", "a.txt", "sub/b.txt"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Walk() = %v, want %v", got, want)
	}
	wantExcluded := []string{".git", "sub/.git"}
	if !reflect.DeepEqual(sink.excluded, wantExcluded) {
		t.Errorf("excluded = %v, want %v", sink.excluded, wantExcluded)
	}
}

func TestWalk_GitExclusionCannotBeNegated(t *testing.T) {
	root := t.TempDir()
	mustWrite(t, root, ".gitignore", "!.git\n")
	mustWrite(t, root, ".git/HEAD", "ref")
	mustWrite(t, root, "a.txt", "a")

	got, _ := collect(t, root)

	want := []string{".gitignore", "a.txt"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Walk() = %v, want %v", got, want)
	}
}

func TestWalk_IgnoreRules(t *testing.T) {
	tests := []struct {
		name   string
		ignore string
		files  []string
		want   []string
	}{
		{
			name:   "directory pattern prunes subtree",
			ignore: "build/\n",
			files:  []string{"a.txt", "build/out.o", "build/deep/cache.bin"},
			want:   []string{".gitignore", "a.txt"},
		},
		{
			name:   "negation reincludes",
			ignore: "*.log\n!important.log\n",
			files:  []string{"debug.log", "important.log", "sub/trace.log", "sub/important.log"},
			want:   []string{".gitignore", "important.log", "sub/important.log"},
		},
		{
			name:   "anchored pattern matches only root",
			ignore: "/secret.txt\n",
			files:  []string{"secret.txt", "sub/secret.txt"},
			want:   []string{".gitignore", "sub/secret.txt"},
		},
		{
			name:   "double star crosses directories",
			ignore: "**/cache/**\n",
			files:  []string{"a/cache/x.bin", "cache/y.bin", "a/keep.txt"},
			want:   []string{".gitignore", "a/keep.txt"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			mustWrite(t, root, ".gitignore", tt.ignore)
			for _, rel := range tt.files {
				mustWrite(t, root, rel, rel)
			}

			got, _ := collect(t, root)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Walk() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWalk_DeeperRulesOverrideParent(t *testing.T) {
	root := t.TempDir()
	mustWrite(t, root, ".gitignore", "*.log\n")
	mustWrite(t, root, "top.log", "x")
	mustWrite(t, root, "sub/.gitignore", "!keep.log\n")
	mustWrite(t, root, "sub/keep.log", "x")
	mustWrite(t, root, "sub/drop.log", "x")

	got, _ := collect(t, root)

	want := []string{".gitignore", "sub/.gitignore", "sub/keep.log"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Walk() = %v, want %v", got, want)
	}
}

func TestWalk_ChildRulesDoNotLeakToSiblings(t *testing.T) {
	root := t.TempDir()
	mustWrite(t, root, "a/.gitignore", "*.tmp\n")
	mustWrite(t, root, "a/x.tmp", "x")
	mustWrite(t, root, "b/y.tmp", "y")

	got, _ := collect(t, root)

	want := []string{"a/.gitignore", "b/y.tmp"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Walk() = %v, want %v", got, want)
	}
}

func TestWalk_ReinclusionReason(t *testing.T) {
	root := t.TempDir()
	mustWrite(t, root, ".gitignore", "*.log\n!important.log\n")
	mustWrite(t, root, "important.log", "keep")
	mustWrite(t, root, "a.txt", "a")

	reasons := make(map[string]string)
	err := New(WithLogger(logging.NewDiscard())).Walk(t.Context(), root, func(e Entry) error {
		reasons[e.Path] = e.Reason
		return nil
	})
	if err != nil {
		t.Fatalf("Walk() error = %v", err)
	}

	if got := reasons["important.log"]; !strings.HasSuffix(got, ".gitignore:2") {
		t.Errorf("Reason for re-included file = %q, want rule at .gitignore:2", got)
	}
	if got := reasons["a.txt"]; got != "" {
		t.Errorf("Reason for ordinary file = %q, want empty", got)
	}
}

func TestWalk_PrunedDirectoryIsNotEntered(t *testing.T) {
	root := t.TempDir()
	mustWrite(t, root, ".gitignore", "build/\n!build/keep.txt\n")
	mustWrite(t, root, "build/keep.txt", "x")
	mustWrite(t, root, "build/drop.txt", "x")
	mustWrite(t, root, "a.txt", "a")

	got, sink := collect(t, root)

	// Negation cannot reach inside a pruned directory, matching git.
	want := []string{".gitignore", "a.txt"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Walk() = %v, want %v", got, want)
	}
	if !slices.Contains(sink.excluded, "build") {
		t.Errorf("excluded = %v, want to contain %q", sink.excluded, "build")
	}
	for _, path := range sink.excluded {
		if path == "build/keep.txt" || path == "build/drop.txt" {
			t.Errorf("pruned directory contents were visited: %v", sink.excluded)
		}
	}
}

func TestWalk_MalformedPatternWarnsAndContinues(t *testing.T) {
	root := t.TempDir()
	mustWrite(t, root, ".gitignore", "[ab].txt\n*.log\n")
	mustWrite(t, root, "a.txt", "a")
	mustWrite(t, root, "debug.log", "x")

	got, sink := collect(t, root)

	want := []string{".gitignore", "a.txt"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Walk() = %v, want %v", got, want)
	}
	if len(sink.warned) != 1 || sink.warned[0] != ".gitignore" {
		t.Errorf("warned = %v, want [.gitignore]", sink.warned)
	}
}

func TestWalk_ExtraRulesLayerUnderRuleFiles(t *testing.T) {
	root := t.TempDir()
	mustWrite(t, root, "a.bak", "x")
	mustWrite(t, root, "b.txt", "x")
	mustWrite(t, root, "sub/.gitignore", "!*.bak\n")
	mustWrite(t, root, "sub/c.bak", "x")

	extra, warnings := ignore.FromPatterns([]string{"*.bak"}, "--ignore")
	if len(warnings) != 0 {
		t.Fatalf("FromPatterns() warnings = %v", warnings)
	}

	got, _ := collect(t, root, WithExtraRules(extra))

	want := []string{"b.txt", "sub/.gitignore", "sub/c.bak"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Walk() = %v, want %v", got, want)
	}
}

func TestWalk_CustomIgnoreFileName(t *testing.T) {
	root := t.TempDir()
	mustWrite(t, root, ".baxignore", "*.tmp\n")
	mustWrite(t, root, ".gitignore", "*.txt\n")
	mustWrite(t, root, "a.txt", "a")
	mustWrite(t, root, "b.tmp", "b")

	got, _ := collect(t, root, WithIgnoreFile(".baxignore"))

	want := []string{".baxignore", ".gitignore", "a.txt"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Walk() = %v, want %v", got, want)
	}
}

func TestWalk_EmptyIgnoreFileNameDisablesRuleFiles(t *testing.T) {
	root := t.TempDir()
	mustWrite(t, root, ".gitignore", "*.txt\n")
	mustWrite(t, root, "a.txt", "a")

	got, _ := collect(t, root, WithIgnoreFile(""))

	want := []string{".gitignore", "a.txt"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Walk() = %v, want %v", got, want)
	}
}

func TestWalk_SkipPaths(t *testing.T) {
	root := t.TempDir()
	mustWrite(t, root, "a.txt", "a")
	mustWrite(t, root, "backup.tar.gz", "not really an archive")

	got, sink := collect(t, root, WithSkipPaths(filepath.Join(root, "backup.tar.gz")))

	want := []string{"a.txt"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Walk() = %v, want %v", got, want)
	}
	if len(sink.excluded) != 0 {
		t.Errorf("skip paths should not count as exclusions, got %v", sink.excluded)
	}
}

func TestWalk_SymlinkToFileInsideRoot(t *testing.T) {
	root := t.TempDir()
	mustWrite(t, root, "real.txt", "content")
	mustSymlink(t, filepath.Join(root, "real.txt"), filepath.Join(root, "alias.txt"))

	got, sink := collect(t, root)

	want := []string{"alias.txt", "real.txt"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Walk() = %v, want %v", got, want)
	}
	if len(sink.warned) != 0 {
		t.Errorf("warned = %v, want none", sink.warned)
	}
}

func TestWalk_SymlinkEscapingRootIsSkipped(t *testing.T) {
	outside := t.TempDir()
	mustWrite(t, outside, "secret.txt", "secret")

	root := t.TempDir()
	mustWrite(t, root, "a.txt", "a")
	mustSymlink(t, filepath.Join(outside, "secret.txt"), filepath.Join(root, "leak.txt"))
	mustSymlink(t, outside, filepath.Join(root, "leakdir"))

	got, sink := collect(t, root)

	want := []string{"a.txt"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Walk() = %v, want %v", got, want)
	}
	wantWarned := []string{"leak.txt", "leakdir"}
	if !reflect.DeepEqual(sink.warned, wantWarned) {
		t.Errorf("warned = %v, want %v", sink.warned, wantWarned)
	}
}

func TestWalk_BrokenSymlinkIsSkipped(t *testing.T) {
	root := t.TempDir()
	mustWrite(t, root, "a.txt", "a")
	mustSymlink(t, filepath.Join(root, "gone.txt"), filepath.Join(root, "dangling.txt"))

	got, sink := collect(t, root)

	want := []string{"a.txt"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Walk() = %v, want %v", got, want)
	}
	if len(sink.warned) != 1 || sink.warned[0] != "dangling.txt" {
		t.Errorf("warned = %v, want [dangling.txt]", sink.warned)
	}
}

func TestWalk_SymlinkCycleIsSkipped(t *testing.T) {
	root := t.TempDir()
	mustWrite(t, root, "sub/a.txt", "a")
	mustSymlink(t, root, filepath.Join(root, "sub", "loop"))

	got, sink := collect(t, root)

	want := []string{"sub/a.txt"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Walk() = %v, want %v", got, want)
	}
	if len(sink.warned) != 1 || sink.warned[0] != "sub/loop" {
		t.Errorf("warned = %v, want [sub/loop]", sink.warned)
	}
}

func TestWalk_SymlinkedDirectoryInsideRoot(t *testing.T) {
	t.Run("followed when target not yet walked", func(t *testing.T) {
		root := t.TempDir()
		mustWrite(t, root, "data/real.txt", "x")
		mustSymlink(t, filepath.Join(root, "data"), filepath.Join(root, "aalias"))

		got, _ := collect(t, root)

		want := []string{"aalias/real.txt", "data/real.txt"}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("Walk() = %v, want %v", got, want)
		}
	})

	t.Run("skipped when target already walked", func(t *testing.T) {
		root := t.TempDir()
		mustWrite(t, root, "data/real.txt", "x")
		mustSymlink(t, filepath.Join(root, "data"), filepath.Join(root, "zalias"))

		got, sink := collect(t, root)

		want := []string{"data/real.txt"}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("Walk() = %v, want %v", got, want)
		}
		if len(sink.warned) != 1 || sink.warned[0] != "zalias" {
			t.Errorf("warned = %v, want [zalias]", sink.warned)
		}
	})
}

func TestWalk_UnreadableDirectoryWarnsAndContinues(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("running as root, permission bits are not enforced")
	}

	root := t.TempDir()
	mustWrite(t, root, "a.txt", "a")
	mustWrite(t, root, "locked/hidden.txt", "x")
	if err := os.Chmod(filepath.Join(root, "locked"), 0o000); err != nil {
		t.Fatalf("chmod: %v", err)
	}
	t.Cleanup(func() {
		_ = os.Chmod(filepath.Join(root, "locked"), 0o755)
	})

	got, sink := collect(t, root)

	want := []string{"a.txt"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Walk() = %v, want %v", got, want)
	}
	if len(sink.warned) != 1 || sink.warned[0] != "locked" {
		t.Errorf("warned = %v, want [locked]", sink.warned)
	}
}

func TestWalk_RootErrors(t *testing.T) {
	tests := []struct {
		name string
		root func(t *testing.T) string
	}{
		{
			name: "missing root",
			root: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "absent")
			},
		},
		{
			name: "root is a file",
			root: func(t *testing.T) string {
				dir := t.TempDir()
				mustWrite(t, dir, "file.txt", "x")
				return filepath.Join(dir, "file.txt")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := New(WithLogger(logging.NewDiscard()))
			err := w.Walk(t.Context(), tt.root(t), func(Entry) error { return nil })
			if err == nil {
				t.Fatal("Walk() error = nil, want non-nil")
			}
		})
	}
}

func TestWalk_CallbackErrorAborts(t *testing.T) {
	root := t.TempDir()
	mustWrite(t, root, "a.txt", "a")
	mustWrite(t, root, "b.txt", "b")

	sentinel := errors.New("stop here")
	var calls int
	err := New(WithLogger(logging.NewDiscard())).Walk(t.Context(), root, func(Entry) error {
		calls++
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("Walk() error = %v, want %v", err, sentinel)
	}
	if calls != 1 {
		t.Fatalf("callback calls = %d, want 1", calls)
	}
}

func TestWalk_HonorsCancellation(t *testing.T) {
	root := t.TempDir()
	mustWrite(t, root, "a.txt", "a")
	mustWrite(t, root, "b.txt", "b")

	ctx, cancel := context.WithCancel(t.Context())
	var calls int
	err := New(WithLogger(logging.NewDiscard())).Walk(ctx, root, func(Entry) error {
		calls++
		cancel()
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Walk() error = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Fatalf("callback calls = %d, want 1", calls)
	}
}

func TestWalk_SinkEvents(t *testing.T) {
	root := t.TempDir()
	mustWrite(t, root, ".gitignore", "*.log\n")
	mustWrite(t, root, "a.txt", "a")
	mustWrite(t, root, "debug.log", "x")

	got, sink := collect(t, root)

	if !reflect.DeepEqual(sink.discovered, got) {
		t.Errorf("discovered = %v, want %v", sink.discovered, got)
	}
	if !reflect.DeepEqual(sink.excluded, []string{"debug.log"}) {
		t.Errorf("excluded = %v, want [debug.log]", sink.excluded)
	}
}
