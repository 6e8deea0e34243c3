package handler

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"investex.com/internal/wallet/domain"
	"investex.com/pkg/common"
	"investex.com/pkg/xerr"
)

// handler 只依赖收窄后的接口，方便测试替身
type addressAllocator interface {
	Allocate(ctx context.Context, uid int64) (*domain.UserWallet, error)
}

type depositSyncer interface {
	SyncDeposits(ctx context.Context, uid int64) (*domain.SyncReport, error)
}

type balanceReader interface {
	GetDepositBalance(ctx context.Context, uid int64) (decimal.Decimal, error)
	Invalidate(ctx context.Context, uid int64)
	ListDeposits(ctx context.Context, uid int64, page, limit int) ([]*domain.LedgerTransaction, error)
}

type WalletHandler struct {
	address addressAllocator
	syncer  depositSyncer
	balance balanceReader
}

func NewWalletHandler(address addressAllocator, syncer depositSyncer, balance balanceReader) *WalletHandler {
	return &WalletHandler{
		address: address,
		syncer:  syncer,
		balance: balance,
	}
}

type walletResp struct {
	DepositAddress  string `json:"deposit_address"`
	DerivationIndex uint32 `json:"derivation_index"`
}

// AllocateAddress 开通充值地址（幂等）
// POST /api/wallet/address
func (h *WalletHandler) AllocateAddress(c *gin.Context) {
	uid := common.UserIDFromGin(c)
	w, err := h.address.Allocate(c.Request.Context(), uid)
	if err != nil {
		common.FailFromErr(c, err)
		return
	}
	common.Success(c, walletResp{
		DepositAddress:  w.DepositAddress,
		DerivationIndex: w.DerivationIndex,
	})
}

// SyncDeposits 手动触发一次充值同步 pass
// POST /api/wallet/sync
func (h *WalletHandler) SyncDeposits(c *gin.Context) {
	uid := common.UserIDFromGin(c)
	report, err := h.syncer.SyncDeposits(c.Request.Context(), uid)
	if err != nil {
		common.FailFromErr(c, err)
		return
	}
	if report.SyncedCount > 0 {
		h.balance.Invalidate(c.Request.Context(), uid)
	}
	common.Success(c, report)
}

type balanceResp struct {
	DepositBalance string `json:"deposit_balance"`
}

// GetBalance 充值余额
// GET /api/wallet/balance
func (h *WalletHandler) GetBalance(c *gin.Context) {
	uid := common.UserIDFromGin(c)
	if uid <= 0 {
		common.FailFromErr(c, xerr.NewErrCode(xerr.Unauthorized))
		return
	}
	bal, err := h.balance.GetDepositBalance(c.Request.Context(), uid)
	if err != nil {
		common.FailFromErr(c, err)
		return
	}
	common.Success(c, balanceResp{DepositBalance: bal.String()})
}

type depositItem struct {
	TxHash    string `json:"tx_hash"`
	Amount    string `json:"amount"`
	CreatedAt int64  `json:"created_at"`
}

// ListDeposits 充值流水分页
// GET /api/wallet/deposits?page=1&limit=20
func (h *WalletHandler) ListDeposits(c *gin.Context) {
	uid := common.UserIDFromGin(c)
	if uid <= 0 {
		common.FailFromErr(c, xerr.NewErrCode(xerr.Unauthorized))
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	list, err := h.balance.ListDeposits(c.Request.Context(), uid, page, limit)
	if err != nil {
		common.FailFromErr(c, err)
		return
	}

	items := make([]depositItem, 0, len(list))
	for _, tx := range list {
		items = append(items, depositItem{
			TxHash:    tx.TxHash,
			Amount:    tx.Amount.String(),
			CreatedAt: tx.CreatedAt.Unix(),
		})
	}
	common.Success(c, gin.H{
		"page":  page,
		"list":  items,
		"count": len(items),
	})
}
