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

func TestPlanRepository_GetByID_Success(t *testing.T) {
	db := new(mockDBTX)
	repo := NewPlanRepository(db)

	now := time.Now().UTC()
	row := &mockRow{
		scanFn: func(dest ...any) error {
			*dest[0].(*string) = "prod_monthly"
			*dest[1].(*string) = "Pro Monthly"
			*dest[2].(*string) = "Monthly subscription"
			*dest[3].(*int64) = 1500
			*dest[4].(*string) = "eur"
			*dest[5].(*string) = "month"
			*dest[6].(*string) = "price_monthly"
			*dest[7].(*bool) = true
			*dest[8].(*time.Time) = now
			return nil
		},
	}
	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).Return(row)

	plan, err := repo.GetByID(context.Background(), "prod_monthly")
	require.NoError(t, err)
	assert.Equal(t, "prod_monthly", plan.ID)
	assert.Equal(t, int64(1500), plan.Price)
	assert.True(t, plan.Recurring())
}

func TestPlanRepository_GetByID_NotFound(t *testing.T) {
	db := new(mockDBTX)
	repo := NewPlanRepository(db)

	row := &mockRow{scanErr: pgx.ErrNoRows}
	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).Return(row)

	_, err := repo.GetByID(context.Background(), "prod_missing")
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeNotFoundPlan, appErr.Code)
}

// --- Mock Rows for catalog listing ---

type planMockRows struct {
	data    []*types.Plan
	idx     int
	closed  bool
	scanErr error
	errVal  error
}

func (r *planMockRows) Next() bool {
	if r.closed {
		return false
	}
	r.idx++
	return r.idx < len(r.data)
}

func (r *planMockRows) Scan(dest ...any) error {
	if r.scanErr != nil {
		return r.scanErr
	}
	if r.idx < 0 || r.idx >= len(r.data) {
		return errors.New("no current row")
	}
	p := r.data[r.idx]
	*dest[0].(*string) = p.ID
	*dest[1].(*string) = p.Name
	*dest[2].(*string) = p.Description
	*dest[3].(*int64) = p.Price
	*dest[4].(*string) = p.Currency
	*dest[5].(*string) = p.Interval
	*dest[6].(*string) = p.StripePriceID
	*dest[7].(*bool) = p.Active
	*dest[8].(*time.Time) = p.CreatedAt
	return nil
}

func (r *planMockRows) Close()                                       { r.closed = true }
func (r *planMockRows) Err() error                                   { return r.errVal }
func (r *planMockRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *planMockRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *planMockRows) RawValues() [][]byte                          { return nil }
func (r *planMockRows) Values() ([]any, error)                       { return nil, nil }
func (r *planMockRows) Conn() *pgx.Conn                              { return nil }

func TestPlanRepository_ListActive(t *testing.T) {
	db := new(mockDBTX)
	repo := NewPlanRepository(db)

	rows := &planMockRows{
		data: []*types.Plan{
			{ID: "prod_starter", Name: "Starter Pack", Price: 500, Currency: "eur", StripePriceID: "price_s", Active: true},
			{ID: "prod_monthly", Name: "Pro Monthly", Price: 1500, Currency: "eur", Interval: "month", StripePriceID: "price_m", Active: true},
		},
		idx: -1,
	}
	db.On("Query", mock.Anything, mock.AnythingOfType("string"), mock.Anything).Return(rows, nil)

	plans, err := repo.ListActive(context.Background())
	require.NoError(t, err)
	require.Len(t, plans, 2)
	assert.Equal(t, "prod_starter", plans[0].ID)
	assert.True(t, plans[1].Recurring())
}

func TestPlanRepository_ListActive_RowsError(t *testing.T) {
	db := new(mockDBTX)
	repo := NewPlanRepository(db)

	rows := &planMockRows{idx: -1, errVal: errors.New("connection reset")}
	db.On("Query", mock.Anything, mock.AnythingOfType("string"), mock.Anything).Return(rows, nil)

	_, err := repo.ListActive(context.Background())
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
}

func TestPlanRepository_Upsert_Success(t *testing.T) {
	db := new(mockDBTX)
	repo := NewPlanRepository(db)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("INSERT 0 1"), nil)

	err := repo.Upsert(context.Background(), &types.Plan{
		ID:            "prod_starter",
		Name:          "Starter Pack",
		Price:         500,
		Currency:      "eur",
		StripePriceID: "price_s",
		Active:        true,
	})
	require.NoError(t, err)
	db.AssertExpectations(t)
}
