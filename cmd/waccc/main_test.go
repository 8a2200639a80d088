package main

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeProgram(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunAllTargets(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out")
	a := writeProgram(t, dir, "a.yaml", "body:\n  - println: {string: hi}\n")
	b := writeProgram(t, dir, "b.yaml", "body:\n  - exit: {int: 3}\n")

	if code := run([]string{"--target=all", "-O", "-o", out, a, b}); code != 0 {
		t.Fatalf("run returned %d", code)
	}
	for _, arch := range []string{"arm", "x86_64"} {
		for _, name := range []string{"a.s", "b.s"} {
			data, err := os.ReadFile(filepath.Join(out, arch, name))
			if err != nil {
				t.Errorf("%s/%s: %v", arch, name, err)
				continue
			}
			if !strings.Contains(string(data), "main:") {
				t.Errorf("%s/%s has no main", arch, name)
			}
		}
	}
}

func TestRunRejectsBadProgram(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out")
	bad := writeProgram(t, dir, "bad.yaml", "body:\n  - print: {ident: nope}\n")
	if code := run([]string{"-o", out, bad}); code == 0 {
		t.Error("expected failure for an unbound name")
	}
	if _, err := os.Stat(out); err == nil {
		t.Error("no output should be written when binding fails")
	}
}

func TestRunUsage(t *testing.T) {
	if code := run(nil); code != 1 {
		t.Errorf("run with no inputs = %d, want 1", code)
	}
	if code := run([]string{"--target=sparc", "x.yaml"}); code != 1 {
		t.Errorf("unknown target = %d, want 1", code)
	}
}

func TestLoadLogsTreeInDebug(t *testing.T) {
	dir := t.TempDir()
	path := writeProgram(t, dir, "p.yaml", "body:\n  - print: {int: 7}\n")

	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	if _, ok := load(log, path); !ok {
		t.Fatal("load failed")
	}
	out := buf.String()
	if !strings.Contains(out, "msg=ast") || !strings.Contains(out, "dump=") {
		t.Errorf("no tree dump in debug log:\n%s", out)
	}
}
