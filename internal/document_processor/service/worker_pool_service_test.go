package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/taxdocs-pipeline/internal/domain/shared"
)

type MockBaseProcessingService struct {
	mock.Mock
}

func (m *MockBaseProcessingService) ProcessExtraction(ctx context.Context, request *shared.ExtractionRequest) error {
	args := m.Called(ctx, request)
	return args.Error(0)
}

func newWorkerPoolFixture(t *testing.T, size int) (*MockBaseProcessingService, *WorkerPoolProcessingService) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	base := &MockBaseProcessingService{}
	pool, err := NewWorkerPoolProcessingService(base, WorkerPoolConfig{Size: size}, logger)
	require.NoError(t, err)
	t.Cleanup(pool.Shutdown)
	return base, pool
}

func TestWorkerPoolProcessingService_ProcessExtraction(t *testing.T) {
	ctx := context.Background()

	t.Run("result from the base service is returned to the caller", func(t *testing.T) {
		base, pool := newWorkerPoolFixture(t, 2)
		request := &shared.ExtractionRequest{DocumentID: uuid.New(), BlobKey: "k"}

		base.On("ProcessExtraction", mock.Anything, mock.MatchedBy(func(r *shared.ExtractionRequest) bool {
			return r.DocumentID == request.DocumentID
		})).Return(nil)

		assert.NoError(t, pool.ProcessExtraction(ctx, request))
		base.AssertExpectations(t)
	})

	t.Run("base service failure propagates", func(t *testing.T) {
		base, pool := newWorkerPoolFixture(t, 2)
		procErr := errors.New("extraction failed")

		base.On("ProcessExtraction", mock.Anything, mock.Anything).Return(procErr)

		err := pool.ProcessExtraction(ctx, &shared.ExtractionRequest{DocumentID: uuid.New()})
		assert.ErrorIs(t, err, procErr)
	})

	t.Run("concurrent submissions all complete", func(t *testing.T) {
		base, pool := newWorkerPoolFixture(t, 4)

		base.On("ProcessExtraction", mock.Anything, mock.Anything).Return(nil)

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := pool.ProcessExtraction(ctx, &shared.ExtractionRequest{DocumentID: uuid.New()})
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		base.AssertNumberOfCalls(t, "ProcessExtraction", 10)
	})

	t.Run("capacity reflects the configured size", func(t *testing.T) {
		_, pool := newWorkerPoolFixture(t, 3)
		assert.Equal(t, 3, pool.Capacity())
	})
}
