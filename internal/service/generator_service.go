package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"wifiticket/guestpass/internal/clock"
	"wifiticket/guestpass/internal/model"
	"wifiticket/guestpass/internal/repository"
	"wifiticket/guestpass/internal/tracing"
)

// Batch is one generated sheet of credentials. Records are in print order:
// the first half fills the left column, the second half the right.
type Batch struct {
	ID       uuid.UUID
	IssuedAt time.Time
	Records  []model.CredentialRecord

	// HistoryReadErr is set when the history existed but could not be read
	// and the batch was generated against an empty history.
	HistoryReadErr error
	// HistoryWriteErr is set when the updated history could not be persisted.
	HistoryWriteErr error
	// LockErr is set when the history lock expired or was taken over before
	// the batch was saved, so another writer may have run concurrently.
	LockErr error
}

// HistoryRecorded reports whether the batch's identifiers were durably added
// to the history while the lock was still held.
func (b *Batch) HistoryRecorded() bool {
	return b.HistoryWriteErr == nil && b.LockErr == nil
}

// HistoryLoaded reports whether the batch was checked against the history.
func (b *Batch) HistoryLoaded() bool {
	return b.HistoryReadErr == nil
}

// GuestIDs returns the batch's identifiers in order.
func (b *Batch) GuestIDs() []string {
	ids := make([]string, len(b.Records))
	for i, r := range b.Records {
		ids[i] = r.GuestID
	}
	return ids
}

// CapacityReport describes how much of the identifier space is used.
type CapacityReport struct {
	Capacity  int `json:"capacity"`
	Issued    int `json:"issued"`
	Remaining int `json:"remaining"`
}

type GeneratorOptions struct {
	Prefix                string
	SSID                  string
	FirstName             string
	ValidityDays          int
	PasswordLength        int
	PasswordAlphabet      string
	Token                 TokenSpec
	MaxIdentifierAttempts int
	MaxPasswordAttempts   int
	LockKey               string
}

type GeneratorService interface {
	GenerateBatch(ctx context.Context, count int) (*Batch, error)
	Capacity() int
	Remaining(ctx context.Context) (*CapacityReport, error)
}

type generatorService struct {
	history repository.HistoryStore
	locker  repository.Locker
	opts    GeneratorOptions
	rnd     RandSource
	logger  *zap.Logger
}

// NewGeneratorService builds the credential generator. A nil rnd uses the
// shared math/rand/v2 source.
func NewGeneratorService(
	history repository.HistoryStore,
	locker repository.Locker,
	opts GeneratorOptions,
	rnd RandSource,
	logger *zap.Logger,
) GeneratorService {
	if rnd == nil {
		rnd = globalRand{}
	}
	if opts.MaxIdentifierAttempts <= 0 {
		opts.MaxIdentifierAttempts = 1000
	}
	if opts.MaxPasswordAttempts <= 0 {
		opts.MaxPasswordAttempts = 1000
	}
	if opts.LockKey == "" {
		opts.LockKey = "guestpass:history:lock"
	}
	return &generatorService{
		history: history,
		locker:  locker,
		opts:    opts,
		rnd:     rnd,
		logger:  logger,
	}
}

// GenerateBatch issues count credentials whose identifiers have never been
// issued before. The history lock is held from load until save so concurrent
// callers never hand out the same identifier.
func (s *generatorService) GenerateBatch(ctx context.Context, count int) (_ *Batch, err error) {
	if count <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidCount, count)
	}

	ctx, span := tracing.StartSpan(ctx, "generator.generate_batch")
	span.WithInt("batch.count", count)
	defer func() { tracing.EndSpan(span, err) }()

	unlock, err := s.locker.Lock(ctx, s.opts.LockKey)
	if err != nil {
		return nil, fmt.Errorf("acquire history lock: %w", err)
	}
	released := false
	defer func() {
		if released {
			return
		}
		if uerr := unlock(context.WithoutCancel(ctx)); uerr != nil {
			s.logger.Warn("release history lock", zap.Error(uerr))
		}
	}()

	batch := &Batch{ID: uuid.New(), IssuedAt: clock.Now()}

	history, readErr := s.loadHistory(ctx)
	batch.HistoryReadErr = readErr

	expiresAt := batch.IssuedAt.AddDate(0, 0, s.opts.ValidityDays)
	expiration := expiresAt.Format(model.ExpirationLayout)

	seenIDs := make(map[string]struct{}, count)
	seenPasswords := make(map[string]struct{}, count)
	issued := make([]string, 0, count)
	records := make([]model.CredentialRecord, 0, count)

	for i := range count {
		guestID, token, err := s.allocateGuestIdentifier(history, seenIDs)
		if err != nil {
			s.logger.Error("identifier allocation failed",
				zap.Int("index", i), zap.Int("history", len(history)), zap.Error(err))
			return nil, err
		}
		password, err := s.allocatePassword(seenPasswords)
		if err != nil {
			s.logger.Error("password allocation failed", zap.Int("index", i), zap.Error(err))
			return nil, err
		}

		issued = append(issued, guestID)
		records = append(records, model.CredentialRecord{
			GuestFirstName: s.opts.FirstName,
			GuestLastName:  token,
			GuestID:        guestID,
			Password:       password,
			SSID:           s.opts.SSID,
			Expiration:     expiration,
			ExpiresAt:      expiresAt,
		})
	}
	batch.Records = records

	all := make([]string, 0, len(history))
	for id := range history {
		all = append(all, id)
	}
	if werr := s.history.Save(ctx, all, issued); werr != nil {
		batch.HistoryWriteErr = fmt.Errorf("%w: %w", ErrHistoryWrite, werr)
		s.logger.Error("identifier history not saved; batch is not durably recorded",
			zap.String("batch_id", batch.ID.String()), zap.Error(werr))
	}

	released = true
	if uerr := unlock(context.WithoutCancel(ctx)); uerr != nil {
		batch.LockErr = fmt.Errorf("%w: %w", ErrLockLost, uerr)
		s.logger.Error("history lock lost during generation; identifiers may collide with a concurrent batch",
			zap.String("batch_id", batch.ID.String()), zap.Error(uerr))
	}

	s.logger.Info("batch generated",
		zap.String("batch_id", batch.ID.String()),
		zap.Int("count", count),
		zap.Int("history", len(history)),
		zap.Bool("history_recorded", batch.HistoryRecorded()),
	)
	return batch, nil
}

// loadHistory returns the issued identifiers as a set. A missing history is a
// first run; an unreadable one is reported but generation continues empty.
func (s *generatorService) loadHistory(ctx context.Context) (map[string]struct{}, error) {
	ids, err := s.history.Load(ctx)
	switch {
	case errors.Is(err, repository.ErrHistoryNotFound):
		s.logger.Info("no identifier history found, starting a new one")
		return map[string]struct{}{}, nil
	case err != nil:
		s.logger.Warn("identifier history unreadable, generating against an empty history", zap.Error(err))
		return map[string]struct{}{}, fmt.Errorf("%w: %w", ErrHistoryRead, err)
	}

	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

func (s *generatorService) guestID(token string) string {
	return s.opts.Prefix + "-" + token
}

// allocateGuestIdentifier returns an identifier absent from both the history
// and the current batch, and records it in both.
func (s *generatorService) allocateGuestIdentifier(history, batchSeen map[string]struct{}) (string, string, error) {
	for range s.opts.MaxIdentifierAttempts {
		token := s.opts.Token.generate(s.rnd)
		id := s.guestID(token)
		if _, dup := batchSeen[id]; dup {
			continue
		}
		if _, dup := history[id]; dup {
			continue
		}
		batchSeen[id] = struct{}{}
		history[id] = struct{}{}
		return id, token, nil
	}
	return "", "", fmt.Errorf("%w after %d attempts", ErrPoolExhausted, s.opts.MaxIdentifierAttempts)
}

// allocatePassword returns a password not yet used in this batch.
func (s *generatorService) allocatePassword(batchSeen map[string]struct{}) (string, error) {
	for range s.opts.MaxPasswordAttempts {
		pw := randomToken(s.rnd, s.opts.PasswordLength, s.opts.PasswordAlphabet)
		if _, dup := batchSeen[pw]; dup {
			continue
		}
		batchSeen[pw] = struct{}{}
		return pw, nil
	}
	return "", fmt.Errorf("%w after %d attempts", ErrPasswordExhausted, s.opts.MaxPasswordAttempts)
}

// Capacity is the total number of identifiers the configured token can form.
func (s *generatorService) Capacity() int {
	return s.opts.Token.Size()
}

// Remaining counts history entries that belong to the current identifier
// space and reports what is left of it.
func (s *generatorService) Remaining(ctx context.Context) (*CapacityReport, error) {
	ids, err := s.history.Load(ctx)
	if err != nil && !errors.Is(err, repository.ErrHistoryNotFound) {
		return nil, fmt.Errorf("%w: %w", ErrHistoryRead, err)
	}

	prefix := s.opts.Prefix + "-"
	issued := 0
	for _, id := range ids {
		token, ok := strings.CutPrefix(id, prefix)
		if ok && s.opts.Token.matches(token) {
			issued++
		}
	}

	report := &CapacityReport{Capacity: s.Capacity(), Issued: issued}
	report.Remaining = max(report.Capacity-issued, 0)
	return report, nil
}
