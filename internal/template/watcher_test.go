package template

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, d time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out: %s", msg)
}

func startWatcher(t *testing.T, dir string, r *Registry) *Watcher {
	t.Helper()
	w, err := NewWatcher(dir, r)
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(w.Stop)
	return w
}

func TestWatcherLoadsExistingOnStart(t *testing.T) {
	dir := t.TempDir()
	writeTemplateYAML(t, dir, "preexisting.yaml", `id: preexisting
system_prompt: "Was here before the watcher."
`)

	r := NewRegistry()
	w := startWatcher(t, dir, r)

	if !r.Has("preexisting") {
		t.Fatal("existing file not loaded on start")
	}
	if !w.IsWatching() {
		t.Error("watcher should report running")
	}
	stats := w.Stats()
	if stats.FilesLoaded != 1 || stats.TemplatesLoaded != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestWatcherHotReload(t *testing.T) {
	dir := t.TempDir()
	r := NewRegistry()
	startWatcher(t, dir, r)

	// Create.
	path := writeTemplateYAML(t, dir, "hot.yaml", `id: hot
system_prompt: "First version."
`)
	waitFor(t, 3*time.Second, func() bool { return r.Has("hot") }, "template not loaded after create")

	// Modify.
	writeTemplateYAML(t, dir, "hot.yaml", `id: hot
system_prompt: "Second version."
`)
	waitFor(t, 3*time.Second, func() bool {
		tpl, err := r.Get("hot")
		return err == nil && tpl.SystemPrompt == "Second version."
	}, "template not updated after write")

	// Delete.
	if err := os.Remove(path); err != nil {
		t.Fatalf("remove: %v", err)
	}
	waitFor(t, 3*time.Second, func() bool { return !r.Has("hot") }, "template not unloaded after delete")
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	r := NewRegistry()
	w := startWatcher(t, dir, r)
	before := len(r.All())

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("id: sneaky"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	time.Sleep(800 * time.Millisecond)

	if len(r.All()) != before {
		t.Error("non-YAML file changed the registry")
	}
	if stats := w.Stats(); stats.FilesLoaded != 0 {
		t.Errorf("stats = %+v", stats)
	}
}
