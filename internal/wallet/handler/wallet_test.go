package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"investex.com/internal/wallet/domain"
	"investex.com/pkg/common"
	"investex.com/pkg/logger"
	"investex.com/pkg/xerr"
)

func init() {
	gin.SetMode(gin.TestMode)
	logger.Init("deposit-handler-test", "info")
}

type fakeAllocator struct {
	wallet *domain.UserWallet
	err    error
}

func (f *fakeAllocator) Allocate(ctx context.Context, uid int64) (*domain.UserWallet, error) {
	return f.wallet, f.err
}

type fakeSyncer struct {
	report *domain.SyncReport
	err    error
}

func (f *fakeSyncer) SyncDeposits(ctx context.Context, uid int64) (*domain.SyncReport, error) {
	return f.report, f.err
}

type fakeBalance struct {
	balance     decimal.Decimal
	list        []*domain.LedgerTransaction
	invalidated int
}

func (f *fakeBalance) GetDepositBalance(ctx context.Context, uid int64) (decimal.Decimal, error) {
	return f.balance, nil
}

func (f *fakeBalance) Invalidate(ctx context.Context, uid int64) {
	f.invalidated++
}

func (f *fakeBalance) ListDeposits(ctx context.Context, uid int64, page, limit int) ([]*domain.LedgerTransaction, error) {
	return f.list, nil
}

// 模拟认证中间件写入的 uid
func testRouter(h *WalletHandler, uid int64) *gin.Engine {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if uid > 0 {
			c.Set(common.CtxKeyUserID, uid)
		}
	})
	r.POST("/address", h.AllocateAddress)
	r.POST("/sync", h.SyncDeposits)
	r.GET("/balance", h.GetBalance)
	r.GET("/deposits", h.ListDeposits)
	return r
}

func doReq(t *testing.T, r *gin.Engine, method, path string) (*httptest.ResponseRecorder, common.Response) {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	r.ServeHTTP(w, req)

	var resp common.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w, resp
}

func TestAllocateAddress(t *testing.T) {
	h := NewWalletHandler(&fakeAllocator{wallet: &domain.UserWallet{
		UserID:          1001,
		DepositAddress:  "0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B",
		DerivationIndex: 7,
	}}, &fakeSyncer{}, &fakeBalance{})

	w, resp := doReq(t, testRouter(h, 1001), http.MethodPost, "/address")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, http.StatusOK, resp.Code)

	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B", data["deposit_address"])
	assert.Equal(t, float64(7), data["derivation_index"])
}

func TestSyncDeposits_InvalidatesCacheOnNewCredits(t *testing.T) {
	bal := &fakeBalance{}
	h := NewWalletHandler(&fakeAllocator{},
		&fakeSyncer{report: &domain.SyncReport{SyncedCount: 2, LastSyncedBlock: 42}}, bal)

	w, resp := doReq(t, testRouter(h, 1001), http.MethodPost, "/sync")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, bal.invalidated, "入了新账要删余额缓存")

	data := resp.Data.(map[string]interface{})
	assert.Equal(t, float64(2), data["synced_count"])
	assert.Equal(t, float64(42), data["last_synced_block"])
}

func TestSyncDeposits_NoCreditsKeepsCache(t *testing.T) {
	bal := &fakeBalance{}
	h := NewWalletHandler(&fakeAllocator{},
		&fakeSyncer{report: &domain.SyncReport{SyncedCount: 0, LastSyncedBlock: 42}}, bal)

	w, _ := doReq(t, testRouter(h, 1001), http.MethodPost, "/sync")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, bal.invalidated)
}

func TestSyncDeposits_NoWalletIs412(t *testing.T) {
	h := NewWalletHandler(&fakeAllocator{},
		&fakeSyncer{err: xerr.NewErrCode(xerr.WalletNotProvisioned)}, &fakeBalance{})

	w, resp := doReq(t, testRouter(h, 1001), http.MethodPost, "/sync")
	assert.Equal(t, http.StatusPreconditionFailed, w.Code)
	assert.Equal(t, xerr.WalletNotProvisioned, resp.Code)
}

func TestSyncDeposits_UpstreamIs503(t *testing.T) {
	h := NewWalletHandler(&fakeAllocator{},
		&fakeSyncer{err: xerr.NewErrCode(xerr.UpstreamUnavailable)}, &fakeBalance{})

	w, _ := doReq(t, testRouter(h, 1001), http.MethodPost, "/sync")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestGetBalance(t *testing.T) {
	h := NewWalletHandler(&fakeAllocator{}, &fakeSyncer{},
		&fakeBalance{balance: decimal.RequireFromString("50.000001")})

	w, resp := doReq(t, testRouter(h, 1001), http.MethodGet, "/balance")
	assert.Equal(t, http.StatusOK, w.Code)

	data := resp.Data.(map[string]interface{})
	// 金额走字符串，避免 JSON number 精度问题
	assert.Equal(t, "50.000001", data["deposit_balance"])
}

func TestGetBalance_Unauthenticated(t *testing.T) {
	h := NewWalletHandler(&fakeAllocator{}, &fakeSyncer{}, &fakeBalance{})

	w, _ := doReq(t, testRouter(h, 0), http.MethodGet, "/balance")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestListDeposits(t *testing.T) {
	h := NewWalletHandler(&fakeAllocator{}, &fakeSyncer{}, &fakeBalance{
		list: []*domain.LedgerTransaction{
			{TxHash: "0x02", Amount: decimal.NewFromInt(2)},
			{TxHash: "0x01", Amount: decimal.NewFromInt(1)},
		},
	})

	w, resp := doReq(t, testRouter(h, 1001), http.MethodGet, "/deposits?page=1&limit=2")
	assert.Equal(t, http.StatusOK, w.Code)

	data := resp.Data.(map[string]interface{})
	assert.Equal(t, float64(2), data["count"])
	list := data["list"].([]interface{})
	first := list[0].(map[string]interface{})
	assert.Equal(t, "0x02", first["tx_hash"])
	assert.Equal(t, "2", first["amount"])
}
