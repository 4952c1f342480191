// Package printer sends rendered ticket sheets to a printer, trying an
// ordered list of OS print mechanisms until one accepts the job.
package printer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"wifiticket/guestpass/internal/tracing"
)

var (
	ErrFileNotFound = errors.New("file to print not found")
	ErrNoBackend    = errors.New("no print backend available")
	ErrPrintFailed  = errors.New("all print backends failed")
)

type Dispatcher interface {
	// Print returns the name of the backend that accepted the job.
	Print(ctx context.Context, path, printerName string) (string, error)
}

type Options struct {
	Backends     []string
	SumatraPath  string
	SwitchScript string
	Timeout      time.Duration
}

// NewBackends builds the configured backends in order.
func NewBackends(opts Options, runner CommandRunner) ([]Backend, error) {
	backends := make([]Backend, 0, len(opts.Backends))
	for _, name := range opts.Backends {
		switch name {
		case "sumatra":
			backends = append(backends, NewSumatraBackend(opts.SumatraPath, runner, opts.Timeout))
		case "powershell":
			backends = append(backends, NewPowerShellBackend(opts.SwitchScript, runner, opts.Timeout))
		case "lp":
			backends = append(backends, NewLPBackend(runner, opts.Timeout))
		default:
			return nil, fmt.Errorf("unknown print backend %q", name)
		}
	}
	return backends, nil
}

var _ Dispatcher = (*dispatcher)(nil)

type dispatcher struct {
	backends []Backend
	logger   *zap.Logger
}

func NewDispatcher(backends []Backend, logger *zap.Logger) Dispatcher {
	return &dispatcher{backends: backends, logger: logger}
}

func (d *dispatcher) Print(ctx context.Context, path, printerName string) (_ string, err error) {
	ctx, span := tracing.StartSpan(ctx, "printer.print")
	span.WithAttributes(map[string]string{"print.file": path, "print.printer": printerName})
	defer func() { tracing.EndSpan(span, err) }()

	if !fileExists(path) {
		return "", fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}

	var (
		errs  []error
		tried int
	)
	for _, b := range d.backends {
		if !b.Available() {
			d.logger.Debug("print backend unavailable", zap.String("backend", b.Name()))
			continue
		}
		tried++
		if err := b.Print(ctx, path, printerName); err != nil {
			d.logger.Warn("print backend failed",
				zap.String("backend", b.Name()), zap.String("printer", printerName), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", b.Name(), err))
			continue
		}
		d.logger.Info("print job sent",
			zap.String("backend", b.Name()), zap.String("file", path), zap.String("printer", printerName))
		return b.Name(), nil
	}

	if tried == 0 {
		return "", ErrNoBackend
	}
	return "", fmt.Errorf("%w: %w", ErrPrintFailed, errors.Join(errs...))
}
