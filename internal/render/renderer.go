// Package render lays credential batches out as printable A4 card sheets.
package render

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-pdf/fpdf"
	"go.uber.org/zap"

	"wifiticket/guestpass/internal/model"
	"wifiticket/guestpass/internal/tracing"
)

const (
	marginTop    = 45.0
	marginBottom = 45.0
	marginLeft   = 40.0
	marginRight  = 40.0

	columns     = 2
	rows        = 10
	perPage     = columns * rows
	columnGap   = 8.0
	rowGap      = 4.0
	padding     = 6.0
	lineWidth   = 0.5
	brandSize   = 11.0
	detailSize  = 8.0
	logoWidth   = 50.0
	logoHeight  = 16.0
	brandHeight = 15.0
)

type Renderer interface {
	Render(ctx context.Context, records []model.CredentialRecord, issuedAt time.Time) ([]byte, error)
}

type Options struct {
	Brand  string
	Author string
	// LogoPath is drawn in place of the brand text when set.
	LogoPath string
}

type pdfRenderer struct {
	opts   Options
	logger *zap.Logger
}

func NewPDFRenderer(opts Options, logger *zap.Logger) Renderer {
	return &pdfRenderer{opts: opts, logger: logger}
}

// FindLogo returns the first candidate present in dir, or "" when none is.
func FindLogo(dir string, candidates []string) string {
	for _, name := range candidates {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}

func (r *pdfRenderer) Render(ctx context.Context, records []model.CredentialRecord, issuedAt time.Time) (_ []byte, err error) {
	_, span := tracing.StartSpan(ctx, "render.pdf")
	span.WithInt("render.records", len(records))
	defer func() { tracing.EndSpan(span, err) }()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pdf := r.build(records, issuedAt)
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// build draws one page per twenty records. Each page puts the first half of
// its records in the left column and the rest in the right.
func (r *pdfRenderer) build(records []model.CredentialRecord, issuedAt time.Time) *fpdf.Fpdf {
	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.SetMargins(marginLeft, marginTop, marginRight)
	pdf.SetAutoPageBreak(false, marginBottom)
	pdf.SetTitle("Wi-Fi Credentials", true)
	pdf.SetAuthor(r.opts.Author, true)
	pdf.SetSubject("Guest Wi-Fi Access Credentials", true)
	pdf.SetKeywords("Wi-Fi, Guest, Credentials", true)
	pdf.SetCreator(r.opts.Brand, true)
	pdf.SetCreationDate(issuedAt)

	logo := r.registerLogo(pdf)

	pageW, pageH := pdf.GetPageSize()
	l := layout{
		cardW: (pageW - marginLeft - marginRight - columnGap) / columns,
		cardH: (pageH - marginTop - marginBottom - rowGap*(rows-1)) / rows,
	}

	if len(records) == 0 {
		pdf.AddPage()
		return pdf
	}
	for start := 0; start < len(records); start += perPage {
		end := min(start+perPage, len(records))
		left, right := model.SplitColumns(records[start:end])

		pdf.AddPage()
		pdf.SetDrawColor(0, 0, 0)
		pdf.SetTextColor(0, 0, 0)
		pdf.SetLineWidth(lineWidth)

		dividerX := marginLeft + l.cardW
		pdf.Line(dividerX, marginTop, dividerX, marginTop+l.cardH*rows+rowGap*(rows-1))

		for i, rec := range left {
			r.drawCard(pdf, l, logo, marginLeft, marginTop+float64(i)*(l.cardH+rowGap), rec)
		}
		for i, rec := range right {
			r.drawCard(pdf, l, logo, marginLeft+l.cardW+columnGap, marginTop+float64(i)*(l.cardH+rowGap), rec)
		}
	}
	return pdf
}

type layout struct {
	cardW, cardH float64
}

// registerLogo loads the logo once per document. A logo fpdf cannot decode
// falls back to the brand text.
func (r *pdfRenderer) registerLogo(pdf *fpdf.Fpdf) string {
	if r.opts.LogoPath == "" {
		return ""
	}
	pdf.RegisterImageOptions(r.opts.LogoPath, fpdf.ImageOptions{ReadDpi: false})
	if !pdf.Ok() {
		r.logger.Warn("logo not usable, falling back to brand text",
			zap.String("logo", r.opts.LogoPath), zap.Error(pdf.Error()))
		pdf.ClearError()
		return ""
	}
	return r.opts.LogoPath
}

func (r *pdfRenderer) drawCard(pdf *fpdf.Fpdf, l layout, logo string, x, y float64, rec model.CredentialRecord) {
	pdf.Rect(x, y, l.cardW, l.cardH, "D")

	header := brandHeight
	if logo != "" {
		pdf.ImageOptions(logo, x+padding, y+padding, logoWidth, logoHeight, false, fpdf.ImageOptions{}, 0, "")
		header = logoHeight + 3
	} else {
		pdf.SetFont("Helvetica", "B", brandSize)
		text(pdf, x+padding, y+padding, brandSize, r.opts.Brand)
	}

	pdf.SetFont("Helvetica", "", detailSize)
	text(pdf, x+padding, y+padding+header, detailSize, "SSID: "+rec.SSID)
	text(pdf, x+padding, y+padding+header+10, detailSize, "Username: "+rec.GuestID)
	text(pdf, x+padding, y+padding+header+20, detailSize, "Password: "+rec.Password)

	exp := "Exp: " + rec.Expiration
	text(pdf, x+l.cardW-padding-pdf.GetStringWidth(exp), y+l.cardH-padding-detailSize, detailSize, exp)
}

// text places s with its top edge at y; fpdf positions text by baseline.
func text(pdf *fpdf.Fpdf, x, y, size float64, s string) {
	pdf.Text(x, y+size*0.8, s)
}
