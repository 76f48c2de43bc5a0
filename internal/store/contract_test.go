package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runContract exercises the behaviour every Store backend must share.
func runContract(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("Get missing path", func(t *testing.T) {
		s := newStore(t)

		_, err := s.Get(context.Background(), "carts/none")

		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("Put then Get", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.Put(ctx, "carts/u1/b1", []byte(`{"items":[]}`)))
		require.NoError(t, s.Put(ctx, "carts/u1/b1", []byte(`{"items":[1]}`)))

		value, err := s.Get(ctx, "carts/u1/b1")
		require.NoError(t, err)
		assert.JSONEq(t, `{"items":[1]}`, string(value))
	})

	t.Run("Update creates and modifies", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		value, err := s.Update(ctx, "orders/o001", func(current []byte) ([]byte, error) {
			assert.Nil(t, current)
			return []byte(`{"n":1}`), nil
		})
		require.NoError(t, err)
		assert.JSONEq(t, `{"n":1}`, string(value))

		value, err = s.Update(ctx, "orders/o001", func(current []byte) ([]byte, error) {
			assert.JSONEq(t, `{"n":1}`, string(current))
			return []byte(`{"n":2}`), nil
		})
		require.NoError(t, err)
		assert.JSONEq(t, `{"n":2}`, string(value))
	})

	t.Run("Update error leaves value unchanged", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.Put(ctx, "orders/o002", []byte(`{"n":1}`)))

		rejected := errors.New("rejected")
		_, err := s.Update(ctx, "orders/o002", func(current []byte) ([]byte, error) {
			return nil, rejected
		})
		assert.ErrorIs(t, err, rejected)

		value, err := s.Get(ctx, "orders/o002")
		require.NoError(t, err)
		assert.JSONEq(t, `{"n":1}`, string(value))
	})

	t.Run("Update nil result is a no-op", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		value, err := s.Update(ctx, "orders/o003", func(current []byte) ([]byte, error) {
			return nil, nil
		})
		require.NoError(t, err)
		assert.Nil(t, value)

		_, err = s.Get(ctx, "orders/o003")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("Concurrent updates do not lose writes", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.Put(ctx, "counter/doc", []byte(`{"n":0}`)))

		const workers = 10
		var wg sync.WaitGroup
		errs := make(chan error, workers)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for {
					_, err := s.Update(ctx, "counter/doc", func(current []byte) ([]byte, error) {
						var doc struct{ N int }
						if err := json.Unmarshal(current, &doc); err != nil {
							return nil, err
						}
						doc.N++
						return json.Marshal(map[string]int{"n": doc.N})
					})
					if errors.Is(err, ErrConflict) {
						continue
					}
					errs <- err
					return
				}
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		value, err := s.Get(ctx, "counter/doc")
		require.NoError(t, err)
		assert.JSONEq(t, `{"n":`+strconv.Itoa(workers)+`}`, string(value))
	})

	t.Run("Concurrent increments are unique", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		const workers = 20
		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			seen = make(map[int64]bool)
		)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				n, err := s.Increment(ctx, "orders")
				assert.NoError(t, err)
				mu.Lock()
				seen[n] = true
				mu.Unlock()
			}()
		}
		wg.Wait()

		assert.Len(t, seen, workers)
		for i := int64(1); i <= workers; i++ {
			assert.True(t, seen[i], "missing counter value %d", i)
		}
	})

	t.Run("List by prefix", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.Put(ctx, "orders/o002", []byte(`{}`)))
		require.NoError(t, s.Put(ctx, "orders/o001", []byte(`{}`)))
		require.NoError(t, s.Put(ctx, "carts/u1/b1", []byte(`{}`)))

		entries, err := s.List(ctx, "orders/")
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, "orders/o001", entries[0].Path)
		assert.Equal(t, "orders/o002", entries[1].Path)

		entries, err = s.List(ctx, "missing/")
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("Subscribe receives matching changes", func(t *testing.T) {
		s := newStore(t)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		events, err := s.Subscribe(ctx, "orders/o001")
		require.NoError(t, err)

		require.NoError(t, s.Put(context.Background(), "orders/o999", []byte(`{"skip":true}`)))
		require.NoError(t, s.Put(context.Background(), "orders/o001", []byte(`{"n":1}`)))

		select {
		case ev := <-events:
			assert.Equal(t, "orders/o001", ev.Path)
			assert.JSONEq(t, `{"n":1}`, string(ev.Value))
		case <-time.After(10 * time.Second):
			t.Fatal("timed out waiting for change event")
		}

		cancel()
		for range events {
		}
	})
}
