package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"axmed/internal/config"
)

func TestSetupWritesJSONFile(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Config{LogDir: dir, LogLevel: "debug", LogMaxSizeMB: 1, LogMaxBackups: 1}
	if err := Setup(cfg, "axmed-test"); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { log = newFallback() })

	WithFields(map[string]any{"upload": "u-1"}).Info("upload applied")

	blob, err := os.ReadFile(filepath.Join(dir, "axmed-test.log"))
	if err != nil {
		t.Fatal(err)
	}
	text := string(blob)
	if !strings.Contains(text, `"msg":"upload applied"`) || !strings.Contains(text, `"upload":"u-1"`) {
		t.Fatalf("log=%s", text)
	}
}
