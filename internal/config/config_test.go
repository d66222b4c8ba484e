package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func loadFromString(t *testing.T, yaml string) *Config {
	t.Helper()
	cfg, err := loadString(t, yaml)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return cfg
}

func loadString(t *testing.T, yaml string) (*Config, error) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "varwatch.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return Load(path)
}

func TestLoad_Valid(t *testing.T) {
	yaml := `
mode:
  task: 2
points:
  path: points.tsv
output:
  nsq_mode: true
  nsq_with_file_mode: true
  nsq_with_file_name: out.jsonl
nsq:
  ip: 10.0.0.5
  port: 4150
  topic: varcollect
  name: svc-a
  limit: 50
  shake_topic: varcollect_shake
  shake_msg: shake
  wrong_limit: 5
`
	cfg := loadFromString(t, yaml)

	if cfg.Mode.Task != TaskCollect {
		t.Errorf("mode.task: got %d", cfg.Mode.Task)
	}
	if cfg.Nsq.Address() != "10.0.0.5:4150" {
		t.Errorf("nsq address: got %q", cfg.Nsq.Address())
	}
	if cfg.Nsq.Limit != 50 {
		t.Errorf("nsq.limit: got %d", cfg.Nsq.Limit)
	}
	if cfg.Nsq.WrongLimit != 5 {
		t.Errorf("nsq.wrong_limit: got %d", cfg.Nsq.WrongLimit)
	}
	if !cfg.Output.NsqWithFileMode || cfg.Output.NsqWithFileName != "out.jsonl" {
		t.Errorf("output file mode: got %+v", cfg.Output)
	}
}

func TestLoad_Defaults(t *testing.T) {
	yaml := `
mode:
  task: 2
points:
  path: points.tsv
output:
  nsq_with_file_mode: true
  nsq_with_file_name: out.jsonl
`
	cfg := loadFromString(t, yaml)

	if cfg.Nsq.Limit != DefaultLimit {
		t.Errorf("default nsq.limit: got %d, want %d", cfg.Nsq.Limit, DefaultLimit)
	}
	if cfg.Nsq.FlushInterval != DefaultFlushInterval {
		t.Errorf("default flush_interval: got %v, want %v", cfg.Nsq.FlushInterval, DefaultFlushInterval)
	}
	if cfg.Process.Num != DefaultProcessNum {
		t.Errorf("default process.num: got %d, want %d", cfg.Process.Num, DefaultProcessNum)
	}
	if cfg.Process.QueueSize != DefaultQueueSize {
		t.Errorf("default process.queue_size: got %d, want %d", cfg.Process.QueueSize, DefaultQueueSize)
	}
	if cfg.Shutdown.Grace != DefaultShutdownGrace {
		t.Errorf("default shutdown.grace: got %v, want %v", cfg.Shutdown.Grace, DefaultShutdownGrace)
	}
	if cfg.Log.SlogLevel().String() != "INFO" {
		t.Errorf("default log level: got %v", cfg.Log.SlogLevel())
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("VARWATCH_NSQ_IP", "192.168.1.9")
	t.Setenv("VARWATCH_LOG_LEVEL", "debug")

	yaml := `
mode:
  task: 2
points:
  path: points.tsv
output:
  nsq_mode: true
nsq:
  ip: 10.0.0.5
  topic: varcollect
  shake_topic: s
  shake_msg: m
`
	cfg := loadFromString(t, yaml)

	if cfg.Nsq.Ip != "192.168.1.9" {
		t.Errorf("env override nsq.ip: got %q", cfg.Nsq.Ip)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("env override log.level: got %q", cfg.Log.Level)
	}
}

func TestLoad_DisabledSkipsPipelineChecks(t *testing.T) {
	// Task 0 needs no points path or outputs.
	if _, err := loadString(t, "mode:\n  task: 0\n"); err != nil {
		t.Fatalf("disabled config should load: %v", err)
	}
}

func TestLoad_Invalid(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"bad task", "mode:\n  task: 7\n"},
		{"missing points", "mode:\n  task: 2\noutput:\n  nsq_with_file_mode: true\n  nsq_with_file_name: f\n"},
		{"file mode without name", "mode:\n  task: 2\npoints:\n  path: p\noutput:\n  nsq_with_file_mode: true\n"},
		{"no output", "mode:\n  task: 2\npoints:\n  path: p\n"},
		{"nsq mode without topic", "mode:\n  task: 2\npoints:\n  path: p\noutput:\n  nsq_mode: true\nnsq:\n  shake_topic: s\n  shake_msg: m\n  topic: \"\"\n"},
		{"bad log level", "mode:\n  task: 0\nlog:\n  level: verbose\n"},
		{"zero limit", "mode:\n  task: 2\npoints:\n  path: p\noutput:\n  nsq_with_file_mode: true\n  nsq_with_file_name: f\nnsq:\n  limit: 0\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := loadString(t, tc.yaml); err == nil {
				t.Errorf("expected error for %s", tc.name)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestWatch_ReportsChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "varwatch.yaml")
	if err := os.WriteFile(path, []byte("mode:\n  task: 0\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	changed := make(chan string, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	go func() {
		_ = Watch(ctx, []string{path}, func(p string) {
			select {
			case changed <- p:
			default:
			}
		})
	}()

	// Give the watcher a moment to register, then touch the file.
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(path, []byte("mode:\n  task: 2\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case p := <-changed:
		if p != path {
			t.Errorf("changed path: got %q, want %q", p, path)
		}
	case <-ctx.Done():
		t.Fatal("no change reported before timeout")
	}
}
