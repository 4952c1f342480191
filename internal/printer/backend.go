package printer

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Backend sends a document to a printer using one OS mechanism.
type Backend interface {
	Name() string
	// Available reports whether the mechanism exists on this host.
	Available() bool
	// Print prints path on printerName, or the default printer when empty.
	Print(ctx context.Context, path, printerName string) error
}

var (
	lookPath   = exec.LookPath
	fileExists = func(path string) bool {
		info, err := os.Stat(path)
		return err == nil && !info.IsDir()
	}
)

type sumatraBackend struct {
	exe     string
	runner  CommandRunner
	timeout time.Duration
}

// NewSumatraBackend prints silently through SumatraPDF.
func NewSumatraBackend(exe string, runner CommandRunner, timeout time.Duration) Backend {
	return &sumatraBackend{exe: exe, runner: runner, timeout: timeout}
}

func (b *sumatraBackend) Name() string { return "sumatra" }

func (b *sumatraBackend) Available() bool { return b.exe != "" && fileExists(b.exe) }

func (b *sumatraBackend) Print(ctx context.Context, path, printerName string) error {
	args := []string{"-print-to-default"}
	if printerName != "" {
		args = []string{"-print-to", printerName}
	}
	args = append(args, "-silent", path)
	_, err := b.runner.Run(ctx, b.timeout, b.exe, args...)
	return err
}

type powershellBackend struct {
	switchScript string
	runner       CommandRunner
	timeout      time.Duration
}

// NewPowerShellBackend prints with the Windows shell "Print" verb. A named
// printer is made the default for the duration of the job by switchScript.
func NewPowerShellBackend(switchScript string, runner CommandRunner, timeout time.Duration) Backend {
	return &powershellBackend{switchScript: switchScript, runner: runner, timeout: timeout}
}

func (b *powershellBackend) Name() string { return "powershell" }

func (b *powershellBackend) Available() bool {
	_, err := lookPath("powershell")
	return err == nil
}

func (b *powershellBackend) Print(ctx context.Context, path, printerName string) error {
	if printerName != "" {
		if !fileExists(b.switchScript) {
			return fmt.Errorf("printer switch script %s not found", b.switchScript)
		}
		_, err := b.runner.Run(ctx, b.timeout, "powershell",
			"-ExecutionPolicy", "Bypass",
			"-File", b.switchScript,
			"-FilePath", path,
			"-PrinterName", printerName,
		)
		return err
	}
	cmd := fmt.Sprintf("Start-Process -FilePath '%s' -Verb Print", strings.ReplaceAll(path, "'", "''"))
	_, err := b.runner.Run(ctx, b.timeout, "powershell", "-NoProfile", "-Command", cmd)
	return err
}

type lpBackend struct {
	runner  CommandRunner
	timeout time.Duration
}

// NewLPBackend submits the job to CUPS.
func NewLPBackend(runner CommandRunner, timeout time.Duration) Backend {
	return &lpBackend{runner: runner, timeout: timeout}
}

func (b *lpBackend) Name() string { return "lp" }

func (b *lpBackend) Available() bool {
	_, err := lookPath("lp")
	return err == nil
}

func (b *lpBackend) Print(ctx context.Context, path, printerName string) error {
	var args []string
	if printerName != "" {
		args = append(args, "-d", printerName)
	}
	args = append(args, path)
	_, err := b.runner.Run(ctx, b.timeout, "lp", args...)
	return err
}
