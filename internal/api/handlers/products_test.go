package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"creditstore/internal/types"
)

type mockPlanLister struct {
	plans []*types.Plan
	err   error
}

func (m *mockPlanLister) ListActive(ctx context.Context) ([]*types.Plan, error) {
	return m.plans, m.err
}

func TestProductList_ReturnsCatalog(t *testing.T) {
	h := NewProductHandler(&mockPlanLister{
		plans: []*types.Plan{
			{ID: "prod_starter", Name: "Starter Pack", Price: 500, Currency: "eur"},
			{ID: "prod_monthly", Name: "Pro Monthly", Price: 1500, Currency: "eur", Interval: "month"},
		},
	}, nil)

	req := httptest.NewRequest(http.MethodGet, "/products", nil)
	rec := httptest.NewRecorder()
	h.HandleList(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Success bool          `json:"success"`
		Data    []*types.Plan `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	require.Len(t, resp.Data, 2)
	assert.Equal(t, "prod_starter", resp.Data[0].ID)
	assert.Equal(t, "month", resp.Data[1].Interval)
}

func TestProductList_DBError(t *testing.T) {
	h := NewProductHandler(&mockPlanLister{
		err: types.NewAppError(types.ErrCodeInternalDB, "failed to list plans", nil),
	}, nil)

	req := httptest.NewRequest(http.MethodGet, "/products", nil)
	rec := httptest.NewRecorder()
	h.HandleList(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decodeErrorResponse(t, rec)
	assert.Equal(t, "INTERNAL_DATABASE_ERROR", resp.Error.Code)
}
