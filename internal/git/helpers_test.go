package git

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/thiagokokada/gitrelay/internal/git/backend"
	"github.com/thiagokokada/gitrelay/internal/repopath"
)

var testEnv = []string{
	"GIT_AUTHOR_NAME=Test User",
	"GIT_AUTHOR_EMAIL=test@example.com",
	"GIT_COMMITTER_NAME=Test User",
	"GIT_COMMITTER_EMAIL=test@example.com",
	"GIT_CONFIG_NOSYSTEM=1",
	"GIT_CONFIG_GLOBAL=" + os.DevNull,
}

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
}

func runGit(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), testEnv...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return string(out)
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func readFile(t *testing.T, dir, name string) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("read %s: %v", name, err)
	}
	return string(b)
}

// initTestRepo creates an empty repository whose HEAD points at main.
func initTestRepo(t *testing.T) string {
	t.Helper()
	requireGit(t)
	dir := t.TempDir()
	runGit(t, dir, "init", "-q")
	runGit(t, dir, "symbolic-ref", "HEAD", "refs/heads/main")
	return dir
}

// createTestRepo creates a repository with a single commit of a.txt.
func createTestRepo(t *testing.T) string {
	t.Helper()
	dir := initTestRepo(t)
	writeFile(t, dir, "a.txt", "one\n")
	runGit(t, dir, "add", "a.txt")
	runGit(t, dir, "commit", "-q", "-m", "initial")
	return dir
}

func newTestService(opts ...Option) *Service {
	return New(append([]Option{WithRunner(backend.NewRunner("", testEnv...))}, opts...)...)
}

func repoKey(t *testing.T, dir string) string {
	t.Helper()
	key, err := repopath.Key(dir)
	if err != nil {
		t.Fatalf("repopath.Key: %v", err)
	}
	return key
}

type fakeNotifier struct {
	mu          sync.Mutex
	workingTree []string
	gitDir      []string
}

func (f *fakeNotifier) WorkingTreeChanged(path string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.workingTree = append(f.workingTree, path)
}

func (f *fakeNotifier) GitDirectoryChanged(path string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gitDir = append(f.gitDir, path)
}

func (f *fakeNotifier) counts() (workingTree, gitDir int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.workingTree), len(f.gitDir)
}
