package service

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"wifiticket/guestpass/internal/model"
	"wifiticket/guestpass/internal/repository"
)

// MockHistoryStore is a mock type for the repository.HistoryStore interface
type MockHistoryStore struct {
	mock.Mock
}

func (m *MockHistoryStore) Load(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockHistoryStore) Save(ctx context.Context, history []string, issued []string) error {
	args := m.Called(ctx, history, issued)
	return args.Error(0)
}

// MockArtifactStore is a mock type for the repository.ArtifactStore interface
type MockArtifactStore struct {
	mock.Mock
}

func (m *MockArtifactStore) SaveJSON(ctx context.Context, records []model.CredentialRecord, at time.Time) (string, error) {
	args := m.Called(ctx, records, at)
	return args.String(0), args.Error(1)
}

func (m *MockArtifactStore) SaveCSV(ctx context.Context, records []model.CredentialRecord, at time.Time) (string, error) {
	args := m.Called(ctx, records, at)
	return args.String(0), args.Error(1)
}

func (m *MockArtifactStore) SavePDF(ctx context.Context, data []byte, at time.Time) (string, error) {
	args := m.Called(ctx, data, at)
	return args.String(0), args.Error(1)
}

func (m *MockArtifactStore) LatestPDF(ctx context.Context) (*repository.Document, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.Document), args.Error(1)
}

func (m *MockArtifactStore) ReadDocument(ctx context.Context, path string) ([]byte, error) {
	args := m.Called(ctx, path)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// MockRenderer is a mock type for the render.Renderer interface
type MockRenderer struct {
	mock.Mock
}

func (m *MockRenderer) Render(ctx context.Context, records []model.CredentialRecord, issuedAt time.Time) ([]byte, error) {
	args := m.Called(ctx, records, issuedAt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// MockDispatcher is a mock type for the printer.Dispatcher interface
type MockDispatcher struct {
	mock.Mock
}

func (m *MockDispatcher) Print(ctx context.Context, path, printerName string) (string, error) {
	args := m.Called(ctx, path, printerName)
	return args.String(0), args.Error(1)
}
