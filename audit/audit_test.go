package audit

import (
	"path/filepath"
	"testing"
)

func openTestLog(t *testing.T) *Log {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func TestAppendAndRecent(t *testing.T) {
	l := openTestLog(t)

	runs := []Run{
		{Command: "update", Entity: "persons", Expression: "name = upper(name)", Updated: 3},
		{Command: "convert", Entity: "deals", Updated: 10, Failed: 1},
		{Command: "update", Entity: "persons", Expression: "phone = strip(phone)", DryRun: true},
	}
	for _, r := range runs {
		if err := l.Append(r); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	got, err := l.Recent(2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(got))
	}
	// Newest first
	if got[0].Expression != "phone = strip(phone)" || !got[0].DryRun {
		t.Errorf("unexpected newest run: %+v", got[0])
	}
	if got[0].Timestamp == "" {
		t.Error("timestamp should default on append")
	}
}

func TestGet(t *testing.T) {
	l := openTestLog(t)
	if err := l.Append(Run{Command: "restore", Entity: "deals", Updated: 5}); err != nil {
		t.Fatal(err)
	}

	recent, err := l.Recent(1)
	if err != nil {
		t.Fatal(err)
	}
	run, err := l.Get(recent[0].ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if run.Command != "restore" || run.Updated != 5 {
		t.Errorf("unexpected run: %+v", run)
	}

	if _, err := l.Get(99999); err == nil {
		t.Error("expected error for missing id")
	}
}
