package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"investex.com/internal/wallet/domain"
	"investex.com/pkg/hdwallet"
	"investex.com/pkg/logger"
	"investex.com/pkg/xerr"
)

// 撞唯一索引后的重试次数
const allocateRetry = 3

// AddressService 负责用户开户时的充值地址分配
// 只在开户时调用一次，已有钱包的用户直接返回已有行。
type AddressService struct {
	repo   domain.WalletRepo
	wallet *hdwallet.XpubWallet
}

func NewAddressService(repo domain.WalletRepo, wallet *hdwallet.XpubWallet) *AddressService {
	return &AddressService{
		repo:   repo,
		wallet: wallet,
	}
}

// Allocate 为用户分配充值地址
// 幂等：重复调用返回已有钱包。下标领取走计数器行锁，
// 唯一索引只是兜底；撞了就换个新下标重试，绝不复用。
func (s *AddressService) Allocate(ctx context.Context, uid int64) (*domain.UserWallet, error) {
	if uid <= 0 {
		return nil, xerr.NewErrCode(xerr.Unauthorized)
	}

	existing, err := s.repo.GetByUserID(ctx, uid)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	var lastErr error
	for i := 0; i < allocateRetry; i++ {
		index, err := s.repo.AllocateIndex(ctx)
		if err != nil {
			return nil, err
		}

		address, path, err := s.wallet.DeriveAddress(index)
		if err != nil {
			// 派生失败属于配置级问题 (比如下标越界到强化区)，不重试
			return nil, xerr.New(xerr.ServerCommonError, fmt.Sprintf("derive address failed: %v", err))
		}

		w := &domain.UserWallet{
			UserID:          uid,
			DepositAddress:  address,
			DerivationIndex: index,
			DerivationPath:  path,
		}
		err = s.repo.Create(ctx, w)
		if err == nil {
			logger.Info(ctx, "充值地址分配成功",
				zap.Int64("uid", uid),
				zap.Uint32("index", index),
				zap.String("address", address))
			return w, nil
		}

		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// 两种撞法：同一用户并发开户，或下标被并发占用。
			// 先看用户是否已经有钱包了；有就直接复用那一行。
			existing, gerr := s.repo.GetByUserID(ctx, uid)
			if gerr == nil && existing != nil {
				return existing, nil
			}
			// 下标冲突：换个新领的下标重试，废弃的下标不回收
			logger.Warn(ctx, "derivation index conflict, retrying",
				zap.Int64("uid", uid), zap.Uint32("index", index))
			lastErr = err
			continue
		}
		return nil, err
	}

	return nil, xerr.New(xerr.DbError, fmt.Sprintf("allocate wallet failed after retries: %v", lastErr))
}
