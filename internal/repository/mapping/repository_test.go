package mapping

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Additional-Code/erpsync/internal/database/dbtest"
	"github.com/Additional-Code/erpsync/internal/entity"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	db := dbtest.New(t, (*entity.SyncMapping)(nil))
	return newRepository(db, db)
}

func TestGet_NotFound(t *testing.T) {
	repo := newTestRepository(t)

	_, err := repo.Get(context.Background(), 42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBeginProcessing_CreatesMapping(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	won, err := repo.BeginProcessing(ctx, 7, "manual")
	require.NoError(t, err)
	assert.True(t, won)

	m, err := repo.Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, entity.SyncStatusProcessing, m.Status)
	assert.Equal(t, "manual", m.Trigger)
	assert.Nil(t, m.RemoteOrderID)
}

func TestBeginProcessing_Transitions(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(t *testing.T, repo *Repository)
		want    bool
	}{
		{
			name: "already processing",
			prepare: func(t *testing.T, repo *Repository) {
				_, err := repo.BeginProcessing(context.Background(), 1, "first")
				require.NoError(t, err)
			},
			want: false,
		},
		{
			name: "retry after failure",
			prepare: func(t *testing.T, repo *Repository) {
				ctx := context.Background()
				_, err := repo.BeginProcessing(ctx, 1, "first")
				require.NoError(t, err)
				require.NoError(t, repo.MarkFailed(ctx, 1, 0, "boom"))
			},
			want: true,
		},
		{
			name: "completed sync",
			prepare: func(t *testing.T, repo *Repository) {
				ctx := context.Background()
				_, err := repo.BeginProcessing(ctx, 1, "first")
				require.NoError(t, err)
				require.NoError(t, repo.MarkSuccess(ctx, 1, 10, 20))
			},
			want: false,
		},
		{
			name: "success without remote order",
			prepare: func(t *testing.T, repo *Repository) {
				ctx := context.Background()
				_, err := repo.writer.NewInsert().Model(&entity.SyncMapping{
					SourceOrderID: 1,
					Status:        entity.SyncStatusSuccess,
					CreatedAt:     repo.now(),
					UpdatedAt:     repo.now(),
				}).Exec(ctx)
				require.NoError(t, err)
			},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newTestRepository(t)
			tt.prepare(t, repo)

			won, err := repo.BeginProcessing(context.Background(), 1, "second")
			require.NoError(t, err)
			assert.Equal(t, tt.want, won)
		})
	}
}

func TestBeginProcessing_SingleWinnerUnderContention(t *testing.T) {
	repo := newTestRepository(t)

	const callers = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			won, err := repo.BeginProcessing(context.Background(), 99, "event")
			assert.NoError(t, err)
			if won {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
}

func TestMarkFailed_KeepsCustomer(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	_, err := repo.BeginProcessing(ctx, 5, "manual")
	require.NoError(t, err)
	require.NoError(t, repo.RecordCustomer(ctx, 5, 314))
	require.NoError(t, repo.MarkFailed(ctx, 5, 0, "Failed to create order in ERP: rejected"))

	m, err := repo.Get(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, entity.SyncStatusFailed, m.Status)
	require.NotNil(t, m.RemoteCustomerID)
	assert.EqualValues(t, 314, *m.RemoteCustomerID)
	require.NotNil(t, m.ErrorMessage)
	assert.Equal(t, "Failed to create order in ERP: rejected", *m.ErrorMessage)
}

func TestMarkFailed_StoresCustomerID(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	_, err := repo.BeginProcessing(ctx, 6, "manual")
	require.NoError(t, err)
	require.NoError(t, repo.MarkFailed(ctx, 6, 271, "Failed to create order in ERP: rejected"))

	m, err := repo.Get(ctx, 6)
	require.NoError(t, err)
	assert.Equal(t, entity.SyncStatusFailed, m.Status)
	require.NotNil(t, m.RemoteCustomerID)
	assert.EqualValues(t, 271, *m.RemoteCustomerID)
}

func TestMarkSuccess_ClearsError(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	_, err := repo.BeginProcessing(ctx, 5, "manual")
	require.NoError(t, err)
	require.NoError(t, repo.MarkFailed(ctx, 5, 0, "boom"))
	_, err = repo.BeginProcessing(ctx, 5, "manual")
	require.NoError(t, err)
	require.NoError(t, repo.MarkSuccess(ctx, 5, 11, 22))

	m, err := repo.Get(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, entity.SyncStatusSuccess, m.Status)
	assert.Nil(t, m.ErrorMessage)
	assert.True(t, m.HasRemoteOrder())
	assert.EqualValues(t, 22, *m.RemoteOrderID)
}

func TestSetInvoice_RequiresRemoteOrder(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	_, err := repo.BeginProcessing(ctx, 3, "manual")
	require.NoError(t, err)

	updated, err := repo.SetInvoice(ctx, 3, 77)
	require.NoError(t, err)
	assert.False(t, updated)

	require.NoError(t, repo.MarkSuccess(ctx, 3, 1, 2))
	updated, err = repo.SetInvoice(ctx, 3, 77)
	require.NoError(t, err)
	assert.True(t, updated)

	m, err := repo.Get(ctx, 3)
	require.NoError(t, err)
	require.NotNil(t, m.RemoteInvoiceID)
	assert.EqualValues(t, 77, *m.RemoteInvoiceID)
}

func TestListAndCount(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	for id := int64(1); id <= 4; id++ {
		_, err := repo.BeginProcessing(ctx, id, "manual")
		require.NoError(t, err)
	}
	require.NoError(t, repo.MarkFailed(ctx, 2, 0, "x"))
	require.NoError(t, repo.MarkSuccess(ctx, 3, 1, 1))

	all, err := repo.List(ctx, ListFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 4)
	assert.EqualValues(t, 4, all[0].SourceOrderID)

	failed, err := repo.List(ctx, ListFilter{Status: entity.SyncStatusFailed})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.EqualValues(t, 2, failed[0].SourceOrderID)

	page, err := repo.List(ctx, ListFilter{Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Len(t, page, 2)

	n, err := repo.Count(ctx, entity.SyncStatusProcessing)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	byStatus, err := repo.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, byStatus[entity.SyncStatusProcessing])
	assert.Equal(t, 1, byStatus[entity.SyncStatusFailed])
	assert.Equal(t, 1, byStatus[entity.SyncStatusSuccess])
	assert.Equal(t, 0, byStatus[entity.SyncStatusPending])
}
