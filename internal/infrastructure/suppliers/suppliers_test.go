package suppliers

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"orderbot/internal/domain/order"
)

func writeFile(t *testing.T, path string, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "suppliers.toml")
	writeFile(t, path, "suppliers = [\"Сити ООО\", \"  \", 'ООО \"Юнилевер Русь\"']\n")

	names, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(names) != 2 || names[1] != `ООО "Юнилевер Русь"` {
		t.Fatalf("Load() = %q", names)
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.toml")
	writeFile(t, empty, "suppliers = []\n")
	broken := filepath.Join(dir, "broken.toml")
	writeFile(t, broken, "suppliers = [\n")

	for _, path := range []string{"", filepath.Join(dir, "missing.toml"), empty, broken} {
		if _, err := Load(path); err == nil {
			t.Fatalf("Load(%q) expected error", path)
		}
	}
}

func TestWatcherReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "suppliers.toml")
	writeFile(t, path, "suppliers = [\"Сити ООО\"]\n")

	catalog := order.NewSupplierCatalog(nil)
	watcher := NewWatcher(path, catalog)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := watcher.Reload(ctx); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if catalog.Len() != 1 {
		t.Fatalf("catalog len = %d", catalog.Len())
	}

	done := make(chan error, 1)
	go func() { done <- watcher.Run(ctx) }()
	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)

	writeFile(t, path, "suppliers = [\"Сити ООО\", \"Хаванагрупп ООО\"]\n")

	deadline := time.Now().Add(5 * time.Second)
	for catalog.Len() != 2 {
		if time.Now().After(deadline) {
			t.Fatalf("catalog not reloaded, names = %q", catalog.Names())
		}
		time.Sleep(20 * time.Millisecond)
	}
	if name, ok := catalog.Match("поставщик Хаванагрупп ООО"); !ok || name != "Хаванагрупп ООО" {
		t.Fatalf("Match() = %q, %v", name, ok)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run() error = %v", err)
	}
}
