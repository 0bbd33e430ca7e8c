package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"creditstore/internal/types"
)

func testSubscription() *types.UserSubscription {
	return &types.UserSubscription{
		ID:                   "us_1",
		UserID:               "user_1",
		PlanID:               "prod_monthly",
		StripeSubscriptionID: "sub_1",
		Status:               types.SubStatusActive,
		StartDate:            time.Now().UTC(),
	}
}

func TestSubscriptionRepository_Insert_Created(t *testing.T) {
	db := new(mockDBTX)
	repo := NewSubscriptionRepository(db)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("INSERT 0 1"), nil)

	created, err := repo.Insert(context.Background(), testSubscription())
	require.NoError(t, err)
	assert.True(t, created)
}

func TestSubscriptionRepository_Insert_ReplaySwallowedByConflict(t *testing.T) {
	db := new(mockDBTX)
	repo := NewSubscriptionRepository(db)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("INSERT 0 0"), nil)

	created, err := repo.Insert(context.Background(), testSubscription())
	require.NoError(t, err)
	assert.False(t, created)
}

func TestSubscriptionRepository_GetByStripeSubscriptionID_Untracked(t *testing.T) {
	db := new(mockDBTX)
	repo := NewSubscriptionRepository(db)

	row := &mockRow{scanErr: pgx.ErrNoRows}
	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).Return(row)

	sub, err := repo.GetByStripeSubscriptionID(context.Background(), "sub_unknown")
	require.NoError(t, err)
	assert.Nil(t, sub)
}

func TestSubscriptionRepository_UpdateStatusByStripeID_Touched(t *testing.T) {
	db := new(mockDBTX)
	repo := NewSubscriptionRepository(db)

	endDate := time.Now().UTC()
	db.On("Exec", mock.Anything, mock.AnythingOfType("string"),
		[]any{types.SubStatusCanceled, &endDate, "sub_1"}).
		Return(pgconn.NewCommandTag("UPDATE 1"), nil)

	updated, err := repo.UpdateStatusByStripeID(context.Background(), "sub_1", types.SubStatusCanceled, &endDate)
	require.NoError(t, err)
	assert.True(t, updated)
	db.AssertExpectations(t)
}

func TestSubscriptionRepository_UpdateStatusByStripeID_Untracked(t *testing.T) {
	db := new(mockDBTX)
	repo := NewSubscriptionRepository(db)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("UPDATE 0"), nil)

	updated, err := repo.UpdateStatusByStripeID(context.Background(), "sub_unknown", types.SubStatusPastDue, nil)
	require.NoError(t, err)
	assert.False(t, updated)
}

func TestSubscriptionRepository_HasBlocking(t *testing.T) {
	tests := []struct {
		name   string
		exists bool
	}{
		{"blocking subscription present", true},
		{"no blocking subscription", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := new(mockDBTX)
			repo := NewSubscriptionRepository(db)

			row := &mockRow{
				scanFn: func(dest ...any) error {
					*dest[0].(*bool) = tt.exists
					return nil
				},
			}
			db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).Return(row)

			blocked, err := repo.HasBlocking(context.Background(), "user_1", "prod_monthly")
			require.NoError(t, err)
			assert.Equal(t, tt.exists, blocked)
		})
	}
}

func TestSubscriptionRepository_HasBlocking_BindsStatusStrings(t *testing.T) {
	db := new(mockDBTX)
	repo := NewSubscriptionRepository(db)

	row := &mockRow{
		scanFn: func(dest ...any) error {
			*dest[0].(*bool) = false
			return nil
		},
	}
	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"),
		mock.MatchedBy(func(args []any) bool {
			statuses, ok := args[2].([]string)
			return ok && len(statuses) == len(types.ActiveSubscriptionStatuses)
		})).Return(row)

	_, err := repo.HasBlocking(context.Background(), "user_1", "prod_monthly")
	require.NoError(t, err)
	db.AssertExpectations(t)
}

func TestSubscriptionRepository_HasBlocking_DBError(t *testing.T) {
	db := new(mockDBTX)
	repo := NewSubscriptionRepository(db)

	row := &mockRow{scanErr: errors.New("connection refused")}
	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).Return(row)

	_, err := repo.HasBlocking(context.Background(), "user_1", "prod_monthly")
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
}

// --- Mock Rows for list queries ---

// subMockRows implements pgx.Rows over a fixed set of subscription records.
type subMockRows struct {
	data    []*types.UserSubscription
	idx     int
	closed  bool
	scanErr error
	errVal  error
}

func (r *subMockRows) Next() bool {
	if r.closed {
		return false
	}
	r.idx++
	return r.idx < len(r.data)
}

func (r *subMockRows) Scan(dest ...any) error {
	if r.scanErr != nil {
		return r.scanErr
	}
	if r.idx < 0 || r.idx >= len(r.data) {
		return errors.New("no current row")
	}
	s := r.data[r.idx]
	*dest[0].(*string) = s.ID
	*dest[1].(*string) = s.UserID
	*dest[2].(*string) = s.PlanID
	*dest[3].(*string) = s.StripeSubscriptionID
	*dest[4].(*types.SubscriptionStatus) = s.Status
	*dest[5].(*time.Time) = s.StartDate
	*dest[6].(**time.Time) = s.EndDate
	*dest[7].(*time.Time) = s.CreatedAt
	*dest[8].(**time.Time) = s.UpdatedAt
	return nil
}

func (r *subMockRows) Close()                                       { r.closed = true }
func (r *subMockRows) Err() error                                   { return r.errVal }
func (r *subMockRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *subMockRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *subMockRows) RawValues() [][]byte                          { return nil }
func (r *subMockRows) Values() ([]any, error)                       { return nil, nil }
func (r *subMockRows) Conn() *pgx.Conn                              { return nil }

func TestSubscriptionRepository_ListByUser(t *testing.T) {
	db := new(mockDBTX)
	repo := NewSubscriptionRepository(db)

	rows := &subMockRows{
		data: []*types.UserSubscription{
			testSubscription(),
			{ID: "us_2", UserID: "user_1", PlanID: "prod_monthly", StripeSubscriptionID: "sub_2", Status: types.SubStatusCanceled},
		},
		idx: -1,
	}
	db.On("Query", mock.Anything, mock.AnythingOfType("string"), mock.Anything).Return(rows, nil)

	subs, err := repo.ListByUser(context.Background(), "user_1")
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, "us_1", subs[0].ID)
	assert.Equal(t, types.SubStatusCanceled, subs[1].Status)
}
