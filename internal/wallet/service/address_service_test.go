package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"investex.com/internal/wallet/domain"
	"investex.com/internal/wallet/repo"
	"investex.com/pkg/hdwallet"
	"investex.com/pkg/logger"
	"investex.com/pkg/xerr"
)

func init() {
	// 初始化 logger，避免测试时 panic
	logger.Init("deposit-service-test", "info")
}

const testMnemonic = "test test test test test test test test test test test junk"

func newTestAddressService(t *testing.T) (*AddressService, *repo.Repo) {
	t.Helper()
	wallet, err := hdwallet.NewFromMnemonic(testMnemonic)
	require.NoError(t, err)

	// 使用 SQLite 内存数据库进行测试
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, repo.AutoMigrate(db))

	r := repo.New(db)
	return NewAddressService(r, wallet), r
}

func TestAllocate(t *testing.T) {
	svc, r := newTestAddressService(t)
	ctx := context.Background()

	w, err := svc.Allocate(ctx, 1001)
	require.NoError(t, err)
	assert.Equal(t, int64(1001), w.UserID)
	assert.Equal(t, uint32(0), w.DerivationIndex, "第一个用户拿 0 号下标")
	assert.Len(t, w.DepositAddress, 42)
	assert.Equal(t, "account/0/0", w.DerivationPath)

	// 落库了
	saved, err := r.GetByUserID(ctx, 1001)
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, w.DepositAddress, saved.DepositAddress)
}

func TestAllocate_Idempotent(t *testing.T) {
	svc, _ := newTestAddressService(t)
	ctx := context.Background()

	first, err := svc.Allocate(ctx, 1001)
	require.NoError(t, err)

	// 重复开户返回已有行，不烧新下标
	second, err := svc.Allocate(ctx, 1001)
	require.NoError(t, err)
	assert.Equal(t, first.DepositAddress, second.DepositAddress)
	assert.Equal(t, first.DerivationIndex, second.DerivationIndex)
}

func TestAllocate_DistinctUsers(t *testing.T) {
	svc, _ := newTestAddressService(t)
	ctx := context.Background()

	seenAddr := make(map[string]bool)
	seenIndex := make(map[uint32]bool)
	for uid := int64(1); uid <= 20; uid++ {
		w, err := svc.Allocate(ctx, uid)
		require.NoError(t, err)
		assert.False(t, seenAddr[w.DepositAddress], "地址 %s 被重复分配", w.DepositAddress)
		assert.False(t, seenIndex[w.DerivationIndex], "下标 %d 被重复分配", w.DerivationIndex)
		seenAddr[w.DepositAddress] = true
		seenIndex[w.DerivationIndex] = true
	}
}

func TestAllocate_Unauthorized(t *testing.T) {
	svc, _ := newTestAddressService(t)

	_, err := svc.Allocate(context.Background(), 0)
	assert.True(t, xerr.IsCode(err, xerr.Unauthorized))

	_, err = svc.Allocate(context.Background(), -5)
	assert.True(t, xerr.IsCode(err, xerr.Unauthorized))
}

// conflictRepo 前 N 次 Create 撞唯一索引，驱动重试路径
type conflictRepo struct {
	domain.WalletRepo
	conflicts int
	created   []*domain.UserWallet
	nextIndex uint32
}

func (f *conflictRepo) GetByUserID(ctx context.Context, userID int64) (*domain.UserWallet, error) {
	for _, w := range f.created {
		if w.UserID == userID {
			return w, nil
		}
	}
	return nil, nil
}

func (f *conflictRepo) AllocateIndex(ctx context.Context) (uint32, error) {
	idx := f.nextIndex
	f.nextIndex++
	return idx, nil
}

func (f *conflictRepo) Create(ctx context.Context, wallet *domain.UserWallet) error {
	if f.conflicts > 0 {
		f.conflicts--
		return gorm.ErrDuplicatedKey
	}
	f.created = append(f.created, wallet)
	return nil
}

func TestAllocate_RetryOnIndexConflict(t *testing.T) {
	wallet, err := hdwallet.NewFromMnemonic(testMnemonic)
	require.NoError(t, err)

	// 前两次撞下标冲突，第三次成功
	fake := &conflictRepo{conflicts: 2}
	svc := NewAddressService(fake, wallet)

	w, err := svc.Allocate(context.Background(), 1001)
	require.NoError(t, err)
	// 烧掉 0、1 两个下标，成功那次拿的是 2
	assert.Equal(t, uint32(2), w.DerivationIndex)
}

func TestAllocate_RetryExhausted(t *testing.T) {
	wallet, err := hdwallet.NewFromMnemonic(testMnemonic)
	require.NoError(t, err)

	fake := &conflictRepo{conflicts: 100}
	svc := NewAddressService(fake, wallet)

	_, err = svc.Allocate(context.Background(), 1001)
	assert.True(t, xerr.IsCode(err, xerr.DbError))
}
