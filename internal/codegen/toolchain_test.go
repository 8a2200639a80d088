package codegen

import (
	"os"
	"path/filepath"
	"testing"
)

func TestToolchainWriteAssembly(t *testing.T) {
	dir := t.TempDir()
	tc := NewToolchain(NewTarget(ArchX86_64), dir, "hello")
	want := filepath.Join(dir, "x86_64", "hello.s")
	if tc.AsmFile != want {
		t.Fatalf("AsmFile = %s, want %s", tc.AsmFile, want)
	}
	if err := tc.WriteAssembly(".text\n"); err != nil {
		t.Fatalf("WriteAssembly: %v", err)
	}
	got, err := os.ReadFile(want)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != ".text\n" {
		t.Errorf("file contents = %q", got)
	}
}
