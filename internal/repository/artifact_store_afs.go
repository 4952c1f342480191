package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/viant/afs"
	"github.com/viant/afs/file"

	"wifiticket/guestpass/internal/model"
)

// csvRow is one line of the controller's guest import sheet; the tags are
// its column headers.
type csvRow struct {
	FirstName        string `csv:"Guest's First Name (Required)"`
	LastName         string `csv:"Guest's Last Name (Required)"`
	Email            string `csv:"Guest's Email"`
	Phone            string `csv:"Guest' Phone Number"`
	GuestID          string `csv:"Guest's ID"`
	Password         string `csv:"Guest's password"`
	SponsorFirstName string `csv:"Sponsor's First Name"`
	SponsorLastName  string `csv:"Sponsor's Last Name"`
	SponsorEmail     string `csv:"Sponsor's Email"`
}

// ArtifactDirs locates each artifact kind.
type ArtifactDirs struct {
	JSON string
	CSV  string
	PDF  string
}

type afsArtifactStore struct {
	fs            afs.Service
	dirs          ArtifactDirs
	csvRetries    int
	csvRetryDelay time.Duration
}

// NewAfsArtifactStore stores artifacts under dirs. CSV writes are retried up
// to csvRetries times while the target is busy, e.g. open in a spreadsheet.
func NewAfsArtifactStore(fs afs.Service, dirs ArtifactDirs, csvRetries int, csvRetryDelay time.Duration) (ArtifactStore, error) {
	abs := func(p string) (string, error) {
		v, err := filepath.Abs(p)
		if err != nil {
			return "", fmt.Errorf("artifact dir %s: %w", p, err)
		}
		return v, nil
	}
	var err error
	if dirs.JSON, err = abs(dirs.JSON); err != nil {
		return nil, err
	}
	if dirs.CSV, err = abs(dirs.CSV); err != nil {
		return nil, err
	}
	if dirs.PDF, err = abs(dirs.PDF); err != nil {
		return nil, err
	}
	if csvRetries < 1 {
		csvRetries = 1
	}
	return &afsArtifactStore{
		fs:            fs,
		dirs:          dirs,
		csvRetries:    csvRetries,
		csvRetryDelay: csvRetryDelay,
	}, nil
}

func (s *afsArtifactStore) ensureDir(ctx context.Context, dir string) error {
	exists, err := s.fs.Exists(ctx, dir)
	if err != nil {
		return fmt.Errorf("check dir %s: %w", dir, err)
	}
	if exists {
		return nil
	}
	if err := s.fs.Create(ctx, dir, file.DefaultDirOsMode, true); err != nil {
		return fmt.Errorf("create dir %s: %w", dir, err)
	}
	return nil
}

func (s *afsArtifactStore) write(ctx context.Context, dir, name string, data []byte) (string, error) {
	if err := s.ensureDir(ctx, dir); err != nil {
		return "", err
	}
	path := filepath.Join(dir, name)
	if err := s.fs.Upload(ctx, path, file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

func (s *afsArtifactStore) SaveJSON(ctx context.Context, records []model.CredentialRecord, at time.Time) (string, error) {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode batch json: %w", err)
	}
	return s.write(ctx, s.dirs.JSON, DataFilename(at, "json"), data)
}

func (s *afsArtifactStore) SaveCSV(ctx context.Context, records []model.CredentialRecord, at time.Time) (string, error) {
	data, err := encodeCSV(records)
	if err != nil {
		return "", err
	}

	var lastErr error
	for attempt := 1; attempt <= s.csvRetries; attempt++ {
		path, err := s.write(ctx, s.dirs.CSV, DataFilename(at, "csv"), data)
		if err == nil {
			return path, nil
		}
		lastErr = err
		if !isBusy(err) || attempt == s.csvRetries {
			break
		}

		timer := time.NewTimer(s.csvRetryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", ctx.Err()
		case <-timer.C:
		}
	}
	return "", lastErr
}

func (s *afsArtifactStore) SavePDF(ctx context.Context, data []byte, at time.Time) (string, error) {
	return s.write(ctx, s.dirs.PDF, DisplayFilename(at, "pdf"), data)
}

func (s *afsArtifactStore) LatestPDF(ctx context.Context) (*Document, error) {
	if err := s.ensureDir(ctx, s.dirs.PDF); err != nil {
		return nil, err
	}
	objects, err := s.fs.List(ctx, s.dirs.PDF)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", s.dirs.PDF, err)
	}

	var latest *Document
	for _, obj := range objects {
		if obj.IsDir() || !strings.HasSuffix(strings.ToLower(obj.Name()), ".pdf") {
			continue
		}
		if latest == nil || obj.ModTime().After(latest.ModifiedAt) {
			latest = &Document{
				Filename:   obj.Name(),
				Path:       filepath.Join(s.dirs.PDF, obj.Name()),
				ModifiedAt: obj.ModTime(),
			}
		}
	}
	if latest == nil {
		return nil, ErrDocumentNotFound
	}
	return latest, nil
}

func (s *afsArtifactStore) ReadDocument(ctx context.Context, path string) ([]byte, error) {
	data, err := s.fs.DownloadWithURL(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("read document %s: %w", path, err)
	}
	return data, nil
}

func encodeCSV(records []model.CredentialRecord) ([]byte, error) {
	rows := make([]csvRow, len(records))
	for i, r := range records {
		rows[i] = csvRow{
			FirstName:        r.GuestFirstName,
			LastName:         r.GuestLastName,
			Email:            r.GuestEmail,
			Phone:            r.GuestPhone,
			GuestID:          r.GuestID,
			Password:         r.Password,
			SponsorFirstName: r.SponsorName,
			SponsorEmail:     r.SponsorEmail,
		}
	}
	data, err := gocsv.MarshalBytes(rows)
	if err != nil {
		return nil, fmt.Errorf("encode csv: %w", err)
	}
	return data, nil
}

func isBusy(err error) bool {
	if errors.Is(err, syscall.EBUSY) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "locked") || strings.Contains(msg, "busy") ||
		strings.Contains(msg, "being used by another process")
}
