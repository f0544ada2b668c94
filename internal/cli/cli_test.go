package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/me/slotwise/internal/config"
	"github.com/me/slotwise/internal/engine"
	"github.com/me/slotwise/internal/server"
	"github.com/me/slotwise/internal/store"
	"github.com/me/slotwise/pkg/model"
)

const requestYAML = `time_range:
  start: 2024-03-04T00:00:00Z
  end: 2024-03-05T00:00:00Z
options:
  algorithm: greedy
resources:
  - id: ann
    capacity: 1
  - id: room
    capacity: 1
    unavailable:
      - start: 2024-03-04T09:00:00Z
        end: 2024-03-04T10:00:00Z
tasks:
  - id: draft
    title: Draft the report
    duration: 60
    priority: 8
    required_resources: [ann]
  - id: review
    duration: 30
    priority: 5
    required_resources: [ann, room]
    dependencies:
      - task_id: draft
        kind: after
constraints:
  - id: order
    kind: hard
    category: dependency
  - id: mornings
    kind: soft
    category: time_preferences
    weight: 0.5
    params:
      preferred_start: "09:00"
      preferred_end: "12:00"
`

const cyclicYAML = `time_range:
  start: 2024-03-04T00:00:00Z
  end: 2024-03-05T00:00:00Z
tasks:
  - id: a
    duration: 30
    dependencies: [{task_id: b, kind: after}]
  - id: b
    duration: 30
    dependencies: [{task_id: a, kind: after}]
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	root := NewRootCmd()

	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs(append([]string{"--log-level", "error"}, args...))

	err := root.ExecuteContext(context.Background())
	return buf.String(), err
}

// startTestServer starts a server with an in-memory SQLite store and returns the URL.
func startTestServer(t *testing.T) string {
	t.Helper()
	srvLogger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError}))
	st, err := store.NewSQLiteStore(":memory:", srvLogger)
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	eng := engine.New(srvLogger, engine.WithSeed(3), engine.WithWorkers(1))
	srv := server.New(config.DefaultServerConfig(), st, eng, srvLogger)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts.URL
}

func TestPlanCommandText(t *testing.T) {
	req := writeFile(t, "req.yaml", requestYAML)

	out, err := runCLI(t, "plan", "-f", req, "--seed", "1", "--workers", "1")
	if err != nil {
		t.Fatalf("plan error: %v\noutput: %s", err, out)
	}
	for _, want := range []string{"Schedule sch_", "Placed 2 of 2 tasks", "draft", "review", "into range"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output, got:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Unscheduled:") {
		t.Errorf("no task should be unscheduled:\n%s", out)
	}
}

func TestPlanValidateMetricsRoundTrip(t *testing.T) {
	req := writeFile(t, "req.yaml", requestYAML)

	out, err := runCLI(t, "plan", "-f", req, "-o", "json", "--algorithm", "optimal", "--iterations", "30", "--seed", "9")
	if err != nil {
		t.Fatalf("plan error: %v\noutput: %s", err, out)
	}
	var sched model.Schedule
	if err := json.Unmarshal([]byte(out), &sched); err != nil {
		t.Fatalf("plan output is not a schedule: %v\n%s", err, out)
	}
	if sched.Metadata.Algorithm != model.AlgorithmOptimal || sched.Metadata.IterationsPerformed == 0 {
		t.Errorf("metadata = %+v", sched.Metadata)
	}
	draft, review := sched.SlotFor("draft"), sched.SlotFor("review")
	if draft == nil || review == nil {
		t.Fatalf("slots = %+v", sched.Slots)
	}
	if review.Start.Before(draft.End) {
		t.Errorf("review %s starts before draft ends %s", review.Start, draft.End)
	}
	if review.Start.Before(time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("review %s placed during the room blackout", review.Start)
	}

	schedFile := writeFile(t, "schedule.json", out)
	out, err = runCLI(t, "validate", "-f", schedFile)
	if err != nil {
		t.Fatalf("validate error: %v\noutput: %s", err, out)
	}
	if !strings.HasPrefix(out, "Valid") {
		t.Errorf("expected Valid, got: %s", out)
	}

	out, err = runCLI(t, "metrics", "-f", schedFile, "-o", "json")
	if err != nil {
		t.Fatalf("metrics error: %v\noutput: %s", err, out)
	}
	var m model.ScheduleMetrics
	if err := json.Unmarshal([]byte(out), &m); err != nil {
		t.Fatalf("metrics output: %v\n%s", err, out)
	}
	if m.ScheduledTasks != 2 || m.TotalDuration != 90 {
		t.Errorf("metrics = %+v", m)
	}

	out, err = runCLI(t, "metrics", "-f", schedFile)
	if err != nil {
		t.Fatalf("metrics text error: %v", err)
	}
	if !strings.Contains(out, "Completion:") || !strings.Contains(out, "1h30m0s") {
		t.Errorf("metrics text = %s", out)
	}
}

func TestValidateReportsOverlap(t *testing.T) {
	overlapping := `{"id":"sch_x","slots":[
		{"task_id":"a","resource_ids":["ann"],"start":"2024-03-04T09:00:00Z","end":"2024-03-04T10:00:00Z","actual_duration":60},
		{"task_id":"b","resource_ids":["ann"],"start":"2024-03-04T09:30:00Z","end":"2024-03-04T10:30:00Z","actual_duration":60}]}`
	path := writeFile(t, "schedule.json", overlapping)

	out, err := runCLI(t, "validate", "-f", path)
	if err == nil {
		t.Fatalf("expected error for overlapping schedule, output: %s", out)
	}
	if !strings.Contains(out, "overlap") {
		t.Errorf("expected overlap violation, got: %s", out)
	}
}

func TestPlanCommandErrors(t *testing.T) {
	req := writeFile(t, "req.yaml", requestYAML)
	cyclic := writeFile(t, "cyclic.yaml", cyclicYAML)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing file flag", []string{"plan"}, "required flag"},
		{"unreadable file", []string{"plan", "-f", filepath.Join(t.TempDir(), "absent.yaml")}, "read"},
		{"bad output", []string{"plan", "-f", req, "-o", "xml"}, "unknown output format"},
		{"bad algorithm", []string{"plan", "-f", req, "--algorithm", "genetic"}, "invalid options"},
		{"cycle", []string{"plan", "-f", cyclic}, "circular dependency"},
		{"bad log format", []string{"--log-format", "xml", "plan", "-f", req}, "unknown log format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCLI(t, tt.args...)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestSlotsCommand(t *testing.T) {
	req := writeFile(t, "req.yaml", requestYAML)

	out, err := runCLI(t, "slots", "-f", req, "--resource", "room", "--duration", "30", "--count", "2", "-o", "json")
	if err != nil {
		t.Fatalf("slots error: %v\noutput: %s", err, out)
	}
	var slots []model.AvailableSlot
	if err := json.Unmarshal([]byte(out), &slots); err != nil {
		t.Fatalf("slots output: %v\n%s", err, out)
	}
	if len(slots) != 2 {
		t.Fatalf("got %d slots, want 2", len(slots))
	}
	for _, s := range slots {
		if s.Start.Before(time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)) && s.End.After(time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)) {
			t.Errorf("slot %s overlaps the blackout", s.Start)
		}
	}

	out, err = runCLI(t, "slots", "-f", req, "--resource", "room", "--duration", "30", "--count", "2")
	if err != nil {
		t.Fatalf("slots text error: %v", err)
	}
	if !strings.Contains(out, "1st") || !strings.Contains(out, "2nd") {
		t.Errorf("expected ordinal ranks in output, got: %s", out)
	}

	if _, err := runCLI(t, "slots", "-f", req, "--resource", "ghost"); err == nil {
		t.Error("expected error for unknown resource")
	}
}

func TestSubmitListStatus(t *testing.T) {
	url := startTestServer(t)
	req := writeFile(t, "req.yaml", requestYAML)

	out, err := runCLI(t, "--server", url, "submit", "-f", req)
	if err != nil {
		t.Fatalf("submit error: %v\noutput: %s", err, out)
	}
	if !strings.Contains(out, "Stored 2 tasks, 2 resources, 2 constraints") {
		t.Errorf("unexpected submit output: %s", out)
	}
	if !strings.Contains(out, "Schedule created: sch_") {
		t.Fatalf("expected 'Schedule created: sch_' in output, got: %s", out)
	}
	line := out[strings.Index(out, "sch_"):]
	id := strings.TrimSpace(strings.SplitN(line, "\n", 2)[0])

	out, err = runCLI(t, "--server", url, "list")
	if err != nil {
		t.Fatalf("list error: %v", err)
	}
	if !strings.Contains(out, id) || !strings.Contains(out, "greedy") {
		t.Errorf("expected %s in list output, got: %s", id, out)
	}

	out, err = runCLI(t, "--server", url, "status", id, "--validate")
	if err != nil {
		t.Fatalf("status error: %v", err)
	}
	if !strings.Contains(out, "Schedule: "+id) || !strings.Contains(out, "Valid") {
		t.Errorf("unexpected status output: %s", out)
	}

	if _, err := runCLI(t, "--server", url, "status", "sch_missing"); err == nil {
		t.Error("expected error for unknown schedule")
	}
}

func TestListCommandEmpty(t *testing.T) {
	url := startTestServer(t)
	out, err := runCLI(t, "--server", url, "list")
	if err != nil {
		t.Fatalf("list error: %v", err)
	}
	if !strings.Contains(out, "No schedules found.") {
		t.Errorf("expected empty message, got: %s", out)
	}
}
