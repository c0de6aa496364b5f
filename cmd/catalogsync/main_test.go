package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := &cobra.Command{Use: "catalogsync", SilenceUsage: true, SilenceErrors: true}
	root.AddCommand(newSyncCmd(), newVersionCmd())

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version error = %v", err)
	}
	if !strings.HasPrefix(out, "catalogsync ") {
		t.Errorf("version output = %q", out)
	}
}

func TestSyncRejectsUnknownStore(t *testing.T) {
	t.Setenv("CATALOG_LOG_LEVEL", "error")
	_, err := execute(t, "sync", "--env-file", "", "--store", "sqlite")
	if err == nil || !strings.Contains(err.Error(), "CATALOG_STORE") {
		t.Errorf("sync error = %v, want a CATALOG_STORE validation error", err)
	}
}

func TestSyncRejectsArguments(t *testing.T) {
	if _, err := execute(t, "sync", "extra"); err == nil {
		t.Error("sync should not accept positional arguments")
	}
}
