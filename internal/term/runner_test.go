package term

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestRunCapturesOutput(t *testing.T) {
	r := NewRunner()

	result, err := r.Run(context.Background(), "echo", []string{"hello"}, "")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if strings.TrimSpace(result.Stdout) != "hello" {
		t.Errorf("stdout = %q", result.Stdout)
	}
	if result.ExitCode != 0 {
		t.Errorf("exit code = %d", result.ExitCode)
	}
}

func TestRunNonZeroExit(t *testing.T) {
	r := NewRunner()

	result, err := r.Run(context.Background(), "sh", []string{"-c", "exit 3"}, "")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.ExitCode != 3 {
		t.Errorf("exit code = %d, want 3", result.ExitCode)
	}
}

func TestRunEmptyCommand(t *testing.T) {
	r := NewRunner()

	if _, err := r.Run(context.Background(), "", nil, ""); !errors.Is(err, ErrEmptyCommand) {
		t.Errorf("error = %v, want ErrEmptyCommand", err)
	}
}

func TestRunMissingBinary(t *testing.T) {
	r := NewRunner()

	if _, err := r.Run(context.Background(), "definitely-not-a-binary-xyz", nil, ""); err == nil {
		t.Error("expected start error for missing binary")
	}
}

func TestRunTimeoutKillsProcess(t *testing.T) {
	r := NewRunner(WithTimeout(100 * time.Millisecond))

	start := time.Now()
	_, _ = r.Run(context.Background(), "sleep", []string{"5"}, "")
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("command not killed by timeout, took %v", elapsed)
	}
}

func TestRunOutputCap(t *testing.T) {
	r := NewRunner(WithMaxOutput(16))

	result, err := r.Run(context.Background(), "sh", []string{"-c", "printf 'aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa'"}, "")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(result.Stdout) != 16 {
		t.Errorf("stdout length = %d, want 16", len(result.Stdout))
	}
	if result.ExitCode != 0 {
		t.Errorf("truncation must not fail the command, exit = %d", result.ExitCode)
	}
}

func TestRunWorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	r := NewRunner()

	result, err := r.Run(context.Background(), "pwd", nil, dir)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !strings.Contains(strings.TrimSpace(result.Stdout), dir[strings.LastIndex(dir, "/")+1:]) {
		t.Errorf("pwd = %q, want suffix of %q", result.Stdout, dir)
	}
}
