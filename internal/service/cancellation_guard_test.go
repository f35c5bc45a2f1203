package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestCancellationGuard_CheckLimit(t *testing.T) {
	tests := []struct {
		name          string
		count         int64
		countErr      error
		wantAllowed   bool
		wantRemaining int
	}{
		{"no cancellations yet", 0, nil, true, 3},
		{"under the limit", 2, nil, true, 1},
		{"at the limit", 3, nil, false, 0},
		{"over the limit", 5, nil, false, 0},
		{"store down fails open", 0, errors.New("redis down"), true, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := new(mockCancellationStore)
			store.On("Count", mock.Anything, "+252611234567").Return(tt.count, tt.countErr)
			guard := NewCancellationGuard(store, 3, 24*time.Hour)

			allowed, remaining, err := guard.CheckLimit(context.Background(), "+252611234567")

			assert.NoError(t, err)
			assert.Equal(t, tt.wantAllowed, allowed)
			assert.Equal(t, tt.wantRemaining, remaining)
		})
	}
}

func TestCancellationGuard_EmptyIdentifierAlwaysAllowed(t *testing.T) {
	store := new(mockCancellationStore)
	guard := NewCancellationGuard(store, 3, 24*time.Hour)

	allowed, remaining, err := guard.CheckLimit(context.Background(), "")

	assert.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, 3, remaining)
	store.AssertNotCalled(t, "Count", mock.Anything, mock.Anything)
}

func TestCancellationGuard_RecordCancellation(t *testing.T) {
	store := new(mockCancellationStore)
	store.On("Increment", mock.Anything, "+252611234567", 24*time.Hour).Return(int64(1), nil)
	guard := NewCancellationGuard(store, 3, 24*time.Hour)

	err := guard.RecordCancellation(context.Background(), "+252611234567")

	assert.NoError(t, err)
	store.AssertExpectations(t)
}

func TestCancellationGuard_RecordSkipsEmptyIdentifier(t *testing.T) {
	store := new(mockCancellationStore)
	guard := NewCancellationGuard(store, 3, 24*time.Hour)

	err := guard.RecordCancellation(context.Background(), "")

	assert.NoError(t, err)
	store.AssertNotCalled(t, "Increment", mock.Anything, mock.Anything, mock.Anything)
}
