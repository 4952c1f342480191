package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"wifiticket/guestpass/internal/printer"
	"wifiticket/guestpass/internal/render"
	"wifiticket/guestpass/internal/repository"
	"wifiticket/guestpass/internal/tracing"
)

type IssueOptions struct {
	Count int
	// Print queues the rendered sheet for server-side printing.
	Print   bool
	Printer string
}

type IssueResult struct {
	Batch    *Batch
	PDF      []byte
	Filename string
	JSONPath string
	CSVPath  string
	PDFPath  string
	// PrintQueued is false when printing was requested but no stored PDF
	// was available to print.
	PrintQueued bool
}

type PrintResult struct {
	Filename string `json:"filename"`
	Backend  string `json:"backend"`
	Printer  string `json:"printer,omitempty"`
}

type TicketService interface {
	Issue(ctx context.Context, opts IssueOptions) (*IssueResult, error)
	Latest(ctx context.Context) (*repository.Document, []byte, error)
	PrintLatest(ctx context.Context, printerName string) (*PrintResult, error)
	// Wait blocks until queued print jobs have finished.
	Wait()
}

type ticketService struct {
	generator    GeneratorService
	artifacts    repository.ArtifactStore
	renderer     render.Renderer
	dispatcher   printer.Dispatcher
	printTimeout time.Duration
	logger       *zap.Logger

	printing sync.WaitGroup
}

func NewTicketService(
	generator GeneratorService,
	artifacts repository.ArtifactStore,
	renderer render.Renderer,
	dispatcher printer.Dispatcher,
	printTimeout time.Duration,
	logger *zap.Logger,
) TicketService {
	if printTimeout <= 0 {
		printTimeout = time.Minute
	}
	return &ticketService{
		generator:    generator,
		artifacts:    artifacts,
		renderer:     renderer,
		dispatcher:   dispatcher,
		printTimeout: printTimeout,
		logger:       logger,
	}
}

// Issue generates a batch, stores its JSON and CSV records, renders and
// stores the sheet, and optionally queues it for printing. The JSON record
// and the rendered sheet are required; the CSV export, stored PDF copy and
// print job are best effort.
func (s *ticketService) Issue(ctx context.Context, opts IssueOptions) (_ *IssueResult, err error) {
	ctx, span := tracing.StartSpan(ctx, "tickets.issue")
	defer func() { tracing.EndSpan(span, err) }()

	batch, err := s.generator.GenerateBatch(ctx, opts.Count)
	if err != nil {
		return nil, err
	}
	span.WithAttributes(map[string]string{"batch.id": batch.ID.String()})

	result := &IssueResult{
		Batch:    batch,
		Filename: repository.DisplayFilename(batch.IssuedAt, "pdf"),
	}

	if result.JSONPath, err = s.artifacts.SaveJSON(ctx, batch.Records, batch.IssuedAt); err != nil {
		return nil, fmt.Errorf("%w: json: %w", ErrArtifactWrite, err)
	}

	if result.CSVPath, err = s.artifacts.SaveCSV(ctx, batch.Records, batch.IssuedAt); err != nil {
		s.logger.Warn("csv export failed, continuing",
			zap.String("batch_id", batch.ID.String()), zap.Error(err))
	}

	if result.PDF, err = s.renderer.Render(ctx, batch.Records, batch.IssuedAt); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRender, err)
	}

	if result.PDFPath, err = s.artifacts.SavePDF(ctx, result.PDF, batch.IssuedAt); err != nil {
		s.logger.Warn("storing rendered sheet failed",
			zap.String("batch_id", batch.ID.String()), zap.Error(err))
	}

	if opts.Print {
		if result.PDFPath == "" {
			s.logger.Warn("print requested but the sheet was not stored",
				zap.String("batch_id", batch.ID.String()))
		} else {
			s.queuePrint(ctx, result.PDFPath, opts.Printer)
			result.PrintQueued = true
		}
	}

	s.logger.Info("tickets issued",
		zap.String("batch_id", batch.ID.String()),
		zap.Int("count", len(batch.Records)),
		zap.String("pdf", result.PDFPath),
		zap.Bool("print", result.PrintQueued),
	)
	return result, nil
}

// queuePrint prints in the background so the caller is not held up by the
// spooler. The job outlives the request context.
func (s *ticketService) queuePrint(ctx context.Context, path, printerName string) {
	s.printing.Add(1)
	go func() {
		defer s.printing.Done()

		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.printTimeout)
		defer cancel()
		if _, err := s.dispatcher.Print(pctx, path, printerName); err != nil {
			s.logger.Error("background print failed",
				zap.String("file", path), zap.String("printer", printerName), zap.Error(err))
		}
	}()
}

func (s *ticketService) Wait() {
	s.printing.Wait()
}

func (s *ticketService) Latest(ctx context.Context) (*repository.Document, []byte, error) {
	doc, err := s.artifacts.LatestPDF(ctx)
	if errors.Is(err, repository.ErrDocumentNotFound) {
		return nil, nil, ErrNoDocument
	}
	if err != nil {
		return nil, nil, fmt.Errorf("find latest sheet: %w", err)
	}

	data, err := s.artifacts.ReadDocument(ctx, doc.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("read latest sheet: %w", err)
	}
	return doc, data, nil
}

func (s *ticketService) PrintLatest(ctx context.Context, printerName string) (_ *PrintResult, err error) {
	ctx, span := tracing.StartSpan(ctx, "tickets.print_latest")
	defer func() { tracing.EndSpan(span, err) }()

	doc, err := s.artifacts.LatestPDF(ctx)
	if errors.Is(err, repository.ErrDocumentNotFound) {
		return nil, ErrNoDocument
	}
	if err != nil {
		return nil, fmt.Errorf("find latest sheet: %w", err)
	}

	pctx, cancel := context.WithTimeout(ctx, s.printTimeout)
	defer cancel()
	backend, err := s.dispatcher.Print(pctx, doc.Path, printerName)
	if errors.Is(err, printer.ErrFileNotFound) {
		return nil, ErrNoDocument
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPrint, err)
	}
	return &PrintResult{Filename: doc.Filename, Backend: backend, Printer: printerName}, nil
}
