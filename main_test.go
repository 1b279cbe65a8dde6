package main

import (
	"context"
	"strings"
	"testing"
)

func noEnv(string) string { return "" }

func TestRunVersion(t *testing.T) {
	var out, errOut strings.Builder
	err := run(context.Background(), []string{"version"}, strings.NewReader(""), &out, &errOut, noEnv)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out.String(), "pipedrive-cli version") {
		t.Errorf("version output = %q", out.String())
	}
}

func TestRunUnknownCommand(t *testing.T) {
	var out, errOut strings.Builder
	err := run(context.Background(), []string{"frobnicate"}, strings.NewReader(""), &out, &errOut, noEnv)
	if err == nil || !strings.Contains(err.Error(), "unknown command") {
		t.Errorf("err = %v, want unknown command", err)
	}
}

func TestRunNoArgsPrintsUsage(t *testing.T) {
	var out, errOut strings.Builder
	if err := run(context.Background(), nil, strings.NewReader(""), &out, &errOut, noEnv); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out.String(), "Usage:") {
		t.Errorf("usage output = %q", out.String())
	}
}
