package logging

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestPruneRemovesOldMatchingFiles(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "dubber-20200101.log")
	fresh := filepath.Join(dir, "dubber-20991231.log")
	other := filepath.Join(dir, "notes.txt")
	for _, p := range []string{old, fresh, other} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	past := time.Now().AddDate(0, 0, -40)
	for _, p := range []string{old, other} {
		if err := os.Chtimes(p, past, past); err != nil {
			t.Fatal(err)
		}
	}

	removed := Prune(NewNop(), 30, RetentionTarget{Dir: dir, Pattern: LogFilePattern})
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Fatalf("expected old log removed, stat err=%v", err)
	}
	for _, p := range []string{fresh, other} {
		if _, err := os.Stat(p); err != nil {
			t.Fatalf("expected %s kept: %v", p, err)
		}
	}
}

func TestPruneDirectoriesHonorsExclude(t *testing.T) {
	dir := t.TempDir()
	stale := filepath.Join(dir, "dubber-aaa")
	active := filepath.Join(dir, "dubber-bbb")
	for _, p := range []string{stale, active} {
		if err := os.MkdirAll(filepath.Join(p, "clips"), 0o755); err != nil {
			t.Fatal(err)
		}
		past := time.Now().AddDate(0, 0, -3)
		if err := os.Chtimes(p, past, past); err != nil {
			t.Fatal(err)
		}
	}

	removed := Prune(nil, 1, RetentionTarget{Dir: dir, Pattern: "dubber-*", Dirs: true, Exclude: []string{active}})
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatalf("expected stale workspace removed, stat err=%v", err)
	}
	if _, err := os.Stat(active); err != nil {
		t.Fatalf("expected excluded workspace kept: %v", err)
	}
}

func TestPruneDisabled(t *testing.T) {
	if got := Prune(nil, 0, RetentionTarget{Dir: t.TempDir()}); got != 0 {
		t.Fatalf("expected disabled pruning, removed %d", got)
	}
}
