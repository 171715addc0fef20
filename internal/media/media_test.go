package media

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := NewStore(t.TempDir(), 10)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return st
}

func TestStageAndPromote(t *testing.T) {
	st := newTestStore(t)

	ref, err := st.Stage([]byte("jpeg-bytes"), ".jpg")
	if err != nil {
		t.Fatalf("stage: %v", err)
	}
	if !strings.HasPrefix(ref, "temp_") || !strings.HasSuffix(ref, ".jpg") {
		t.Errorf("staged ref = %q", ref)
	}
	if _, err := os.Stat(filepath.Join(st.Root(), "temp", ref)); err != nil {
		t.Fatalf("staged file missing: %v", err)
	}

	name, public, err := st.Promote(ref, "RSP123456001", "photo")
	if err != nil {
		t.Fatalf("promote: %v", err)
	}
	if !strings.HasPrefix(name, "photo_") || !strings.HasSuffix(name, ".jpg") {
		t.Errorf("promoted name = %q", name)
	}
	if public != "/uploads/RSP123456001/"+name {
		t.Errorf("public path = %q", public)
	}

	// Moved, not copied.
	if _, err := os.Stat(filepath.Join(st.Root(), "temp", ref)); !os.IsNotExist(err) {
		t.Error("staged file still present after promote")
	}
	data, err := os.ReadFile(filepath.Join(st.Root(), "RSP123456001", name))
	if err != nil {
		t.Fatalf("read promoted file: %v", err)
	}
	if string(data) != "jpeg-bytes" {
		t.Errorf("promoted contents = %q", data)
	}
}

func TestDemoteRestoresStagedFile(t *testing.T) {
	st := newTestStore(t)
	ref, err := st.Stage([]byte("jpeg-bytes"), ".jpg")
	if err != nil {
		t.Fatalf("stage: %v", err)
	}
	name, _, err := st.Promote(ref, "RSP123456002", "photo")
	if err != nil {
		t.Fatalf("promote: %v", err)
	}

	if err := st.Demote("RSP123456002", name, ref); err != nil {
		t.Fatalf("demote: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(st.Root(), "temp", ref))
	if err != nil {
		t.Fatalf("demoted file missing from staging: %v", err)
	}
	if string(data) != "jpeg-bytes" {
		t.Errorf("demoted contents = %q", data)
	}
	if _, err := os.Stat(filepath.Join(st.Root(), "RSP123456002", name)); !os.IsNotExist(err) {
		t.Error("promoted file still present after demote")
	}

	// The same reference promotes again cleanly.
	if _, _, err := st.Promote(ref, "RSP123456003", "photo"); err != nil {
		t.Errorf("re-promote after demote: %v", err)
	}
}

func TestStage_SizeLimit(t *testing.T) {
	st, err := NewStore(t.TempDir(), 1) // 1 MB
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if _, err := st.Stage(make([]byte, 2*1024*1024), ".jpg"); err == nil {
		t.Fatal("expected error for oversized file")
	}
}

func TestPromote_MissingStagedFile(t *testing.T) {
	st := newTestStore(t)
	if _, _, err := st.Promote("temp_nope.jpg", "RSP1", "photo"); err == nil {
		t.Fatal("expected error for missing staged file")
	}
}

func TestDiscard(t *testing.T) {
	st := newTestStore(t)
	ref, err := st.Stage([]byte("x"), ".ogg")
	if err != nil {
		t.Fatalf("stage: %v", err)
	}
	st.Discard(ref)
	if _, err := os.Stat(filepath.Join(st.Root(), "temp", ref)); !os.IsNotExist(err) {
		t.Error("discarded file still present")
	}
}

func TestSweepTemp(t *testing.T) {
	st := newTestStore(t)
	oldRef, err := st.Stage([]byte("old"), ".jpg")
	if err != nil {
		t.Fatalf("stage: %v", err)
	}
	// Backdate the old file.
	oldPath := filepath.Join(st.Root(), "temp", oldRef)
	past := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(oldPath, past, past); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	freshRef, err := st.Stage([]byte("fresh"), ".jpg")
	if err != nil {
		t.Fatalf("stage: %v", err)
	}

	removed, err := st.SweepTemp(time.Hour)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if _, err := os.Stat(oldPath); !os.IsNotExist(err) {
		t.Error("stale file survived sweep")
	}
	if _, err := os.Stat(filepath.Join(st.Root(), "temp", freshRef)); err != nil {
		t.Error("fresh file removed by sweep")
	}
}
