package maintenance

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"tgcast/internal/queue"
	logx "tgcast/pkg/logx"
)

func TestNormalizeSchedule(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "@every 30s", want: "@every 30s"},
		{in: "@hourly", want: "@hourly"},
		{in: "*/5 * * * *", want: "*/5 * * * *"},
		{in: "cron: 0 3 * * *", want: "0 3 * * *"},
		{in: "45s", want: "@every 45s"},
		{in: "every:2m", want: "@every 2m0s"},
		{in: "00:05", want: "@every 5m0s"},
		{in: "01:30", want: "@every 1h30m0s"},
		{in: "", wantErr: true},
		{in: "00:75", wantErr: true},
		{in: "00:00", wantErr: true},
		{in: "-5s", wantErr: true},
		{in: "soon", wantErr: true},
		{in: "* * *", wantErr: true},
	}
	for _, tt := range tests {
		got, err := NormalizeSchedule(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("NormalizeSchedule(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Fatalf("NormalizeSchedule(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func newQueue(t *testing.T) *queue.Queue {
	t.Helper()
	q := queue.New("jobs", queue.NewMemoryBackend(), queue.Options{})
	t.Cleanup(func() { _ = q.Close() })
	return q
}

func TestSweepRecoversExpiredLease(t *testing.T) {
	ctx := context.Background()
	q := newQueue(t)
	if _, err := q.Enqueue(ctx, map[string]int{"userId": 1}, queue.Options{}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if _, ok, err := q.Backend().Reserve(ctx, time.Now().Add(-time.Second)); !ok || err != nil {
		t.Fatalf("Reserve ok=%v err=%v", ok, err)
	}

	j := New(q, Config{Enabled: true}, logx.Nop())
	if err := j.Sweep(ctx); err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	st, _ := q.Stats(ctx)
	if st.Active != 0 || st.Waiting != 1 {
		t.Fatalf("stats after sweep = %+v", st)
	}
	if j.Sweeps() != 1 {
		t.Fatalf("sweeps = %d", j.Sweeps())
	}
}

func TestReportLogsDepth(t *testing.T) {
	ctx := context.Background()
	q := newQueue(t)
	for i := 0; i < 3; i++ {
		_, _ = q.Enqueue(ctx, i, queue.Options{})
	}
	var buf bytes.Buffer
	j := New(q, Config{Enabled: true}, logx.NewWriter(&buf, "info"))
	if err := j.Report(ctx); err != nil {
		t.Fatalf("Report: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "queue stats") || !strings.Contains(out, `"waiting":3`) {
		t.Fatalf("log = %s", out)
	}
}

func TestCronTriggersSweep(t *testing.T) {
	q := newQueue(t)
	j := New(q, Config{Enabled: true, Sweep: "1s", Report: "@hourly"}, logx.Nop())
	if err := j.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer j.Stop(context.Background())

	deadline := time.Now().Add(3 * time.Second)
	for j.Sweeps() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("sweep never ran")
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestStartLogsNextRuns(t *testing.T) {
	q := newQueue(t)
	var buf bytes.Buffer
	j := New(q, Config{Enabled: true, Sweep: "@every 1h", Report: "@daily"}, logx.NewWriter(&buf, "info"))
	if err := j.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	j.Stop(context.Background())
	out := buf.String()
	for _, want := range []string{"maintenance started", `"next_sweep":`, `"next_report":`} {
		if !strings.Contains(out, want) {
			t.Fatalf("log missing %s: %s", want, out)
		}
	}
}

func TestDisabledAndApply(t *testing.T) {
	q := newQueue(t)
	j := New(q, Config{Enabled: false}, logx.Nop())
	if err := j.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if j.c != nil {
		t.Fatalf("disabled janitor started cron")
	}

	if err := j.Apply(Config{Enabled: true, Sweep: "bogus"}); err == nil {
		t.Fatalf("Apply accepted invalid schedule")
	}
	if err := j.Apply(Config{Enabled: true, Sweep: "@every 1h"}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if j.c == nil {
		t.Fatalf("Apply did not start cron")
	}
	j.Stop(context.Background())
	if j.c != nil {
		t.Fatalf("Stop left cron running")
	}
}

func TestStartRejectsInvalidSchedule(t *testing.T) {
	j := New(newQueue(t), Config{Enabled: true, Report: "never"}, logx.Nop())
	if err := j.Start(context.Background()); err == nil {
		t.Fatalf("Start accepted invalid schedule")
	}
}
