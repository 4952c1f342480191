package repository

import (
	"context"
	"errors"
	"time"

	"wifiticket/guestpass/internal/model"
)

// ErrDocumentNotFound is returned when no rendered document has been stored yet.
var ErrDocumentNotFound = errors.New("document not found")

// Document describes a stored rendered ticket sheet.
type Document struct {
	Filename   string    `json:"filename"`
	Path       string    `json:"path"`
	ModifiedAt time.Time `json:"modified_at"`
}

// ArtifactStore persists generated batches and rendered documents.
// File names derive from the issuance date, so a later batch on the same day
// replaces the earlier one.
type ArtifactStore interface {
	SaveJSON(ctx context.Context, records []model.CredentialRecord, at time.Time) (string, error)
	SaveCSV(ctx context.Context, records []model.CredentialRecord, at time.Time) (string, error)
	SavePDF(ctx context.Context, data []byte, at time.Time) (string, error)
	LatestPDF(ctx context.Context) (*Document, error)
	ReadDocument(ctx context.Context, path string) ([]byte, error)
}

// DataFilename names JSON and CSV batch files: YYYYMMDD.<ext>.
func DataFilename(at time.Time, ext string) string {
	return at.Format("20060102") + "." + ext
}

// DisplayFilename names PDF documents and downloads: DD-MM-YYYY.<ext>.
func DisplayFilename(at time.Time, ext string) string {
	return at.Format("02-01-2006") + "." + ext
}
