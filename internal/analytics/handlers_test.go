package analytics_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/serroba/shortlinks/internal/analytics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingStore struct {
	created []*analytics.LinkCreatedEvent
	clicked []*analytics.LinkClickedEvent
}

func (r *recordingStore) SaveLinkCreated(_ context.Context, e *analytics.LinkCreatedEvent) error {
	r.created = append(r.created, e)

	return nil
}

func (r *recordingStore) SaveLinkClicked(_ context.Context, e *analytics.LinkClickedEvent) error {
	r.clicked = append(r.clicked, e)

	return nil
}

func TestClickHandler(t *testing.T) {
	t.Run("counts then records the click", func(t *testing.T) {
		store := &recordingStore{}

		var counted []string

		handler := analytics.NewClickHandler(func(_ context.Context, code string) error {
			counted = append(counted, code)

			return nil
		}, store)

		err := handler(context.Background(), &analytics.LinkClickedEvent{Code: "abc123", AccessedAt: time.Now()})

		require.NoError(t, err)
		assert.Equal(t, []string{"abc123"}, counted)
		require.Len(t, store.clicked, 1)
	})

	t.Run("does not record when counting fails", func(t *testing.T) {
		store := &recordingStore{}
		handler := analytics.NewClickHandler(func(_ context.Context, _ string) error {
			return errors.New("db down")
		}, store)

		err := handler(context.Background(), &analytics.LinkClickedEvent{Code: "abc123"})

		require.Error(t, err)
		assert.Empty(t, store.clicked)
	})
}

func TestCreatedHandler(t *testing.T) {
	store := &recordingStore{}
	handler := analytics.NewCreatedHandler(store)

	err := handler(context.Background(), &analytics.LinkCreatedEvent{Code: "abc123"})

	require.NoError(t, err)
	require.Len(t, store.created, 1)
	assert.Equal(t, "abc123", store.created[0].Code)
}
