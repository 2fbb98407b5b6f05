package svcctl

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"wgprov/internal/errs"
)

func fakeSystemctl(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell fixtures")
	}
	bin := filepath.Join(t.TempDir(), "systemctl")
	if err := os.WriteFile(bin, []byte(script), 0o755); err != nil {
		t.Fatalf("write fake systemctl: %v", err)
	}
	return bin
}

func TestStopStart(t *testing.T) {
	callsFile := filepath.Join(t.TempDir(), "calls")
	t.Setenv("SYSTEMCTL_CALLS", callsFile)

	bin := fakeSystemctl(t, `#!/bin/sh
echo "$1 $2" >> "$SYSTEMCTL_CALLS"
`)
	c := NewController(bin, "wg-quick@wg0")

	if err := c.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	b, err := os.ReadFile(callsFile)
	if err != nil {
		t.Fatal(err)
	}
	want := "stop wg-quick@wg0\nstart wg-quick@wg0\n"
	if string(b) != want {
		t.Fatalf("calls = %q, want %q", b, want)
	}
}

func TestStopFailure(t *testing.T) {
	bin := fakeSystemctl(t, `#!/bin/sh
echo "Failed to stop wg-quick@wg0.service: Access denied" >&2
exit 1
`)
	err := NewController(bin, "wg-quick@wg0").Stop(context.Background())
	if err == nil {
		t.Fatal("Stop succeeded with a failing systemctl")
	}
	if errs.KindOf(err) != errs.KindServiceControl {
		t.Fatalf("kind = %q, want servicecontrol", errs.KindOf(err))
	}
	if !strings.Contains(err.Error(), "Access denied") {
		t.Fatalf("error does not carry systemctl stderr: %v", err)
	}
}

func TestMissingBinary(t *testing.T) {
	c := NewController(filepath.Join(t.TempDir(), "no-such-systemctl"), "wg-quick@wg0")
	if err := c.Start(context.Background()); err == nil {
		t.Fatal("Start succeeded without systemctl installed")
	}
}
