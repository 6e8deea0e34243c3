package eth

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"investex.com/internal/wallet/domain"
	"investex.com/pkg/logger"
	"investex.com/pkg/ratelimit"
	"investex.com/pkg/xerr"
)

// ERC-20 Transfer(address,address,uint256) 事件签名
var transferTopic = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))

var errMalformedLog = errors.New("malformed transfer log")

// Adapter 以太坊节点适配器，实现 domain.ChainGateway
// 所有 RPC 调用带超时 + 熔断，节点不健康时快速失败而不是排队等超时。
type Adapter struct {
	client   *ethclient.Client
	token    common.Address
	breakers *ratelimit.BreakerManager
	timeout  time.Duration
}

func NewAdapter(rpcURL string, tokenContract string, breakers *ratelimit.BreakerManager, timeout time.Duration) (*Adapter, error) {
	if !common.IsHexAddress(tokenContract) {
		return nil, fmt.Errorf("invalid token contract address: %s", tokenContract)
	}
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial eth node failed: %w", err)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Adapter{
		client:   client,
		token:    common.HexToAddress(tokenContract),
		breakers: breakers,
		timeout:  timeout,
	}, nil
}

func (a *Adapter) Close() {
	a.client.Close()
}

// CurrentHeight 当前链上最新区块号
func (a *Adapter) CurrentHeight(ctx context.Context) (int64, error) {
	v, err := a.breakers.Get("eth_blockNumber").Execute(func() (any, error) {
		callCtx, cancel := context.WithTimeout(ctx, a.timeout)
		defer cancel()
		return a.client.BlockNumber(callCtx)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			logger.Warn(ctx, "eth node breaker open", zap.Error(err))
		}
		return 0, xerr.New(xerr.UpstreamUnavailable, fmt.Sprintf("eth_blockNumber failed: %v", err))
	}
	return int64(v.(uint64)), nil
}

// IncomingTransfers 拉取 fromBlock (含) 起打到 address 的代币转账
// 服务端三重过滤：合约地址、Transfer topic、收款人 topic。
// 返回按区块号升序，同区块按日志序。
func (a *Adapter) IncomingTransfers(ctx context.Context, address string, fromBlock int64) ([]domain.TokenTransfer, error) {
	if !common.IsHexAddress(address) {
		return nil, xerr.New(xerr.RequestParamsError, fmt.Sprintf("invalid recipient address: %s", address))
	}
	recipient := common.HexToAddress(address)

	query := ethereum.FilterQuery{
		FromBlock: big.NewInt(fromBlock),
		Addresses: []common.Address{a.token},
		Topics: [][]common.Hash{
			{transferTopic},
			nil, // from 不限
			{common.BytesToHash(recipient.Bytes())},
		},
	}

	v, err := a.breakers.Get("eth_getLogs").Execute(func() (any, error) {
		callCtx, cancel := context.WithTimeout(ctx, a.timeout)
		defer cancel()
		return a.client.FilterLogs(callCtx, query)
	})
	if err != nil {
		return nil, xerr.New(xerr.UpstreamUnavailable, fmt.Sprintf("eth_getLogs failed: %v", err))
	}

	logs := v.([]types.Log)
	transfers := make([]domain.TokenTransfer, 0, len(logs))
	for _, l := range logs {
		t, err := parseTransferLog(l)
		if err != nil {
			// 按理过滤条件已经保证了日志形状，留个日志防节点返回脏数据
			logger.Warn(ctx, "skip malformed transfer log",
				zap.String("tx_hash", l.TxHash.Hex()), zap.Error(err))
			continue
		}
		transfers = append(transfers, t)
	}

	sort.SliceStable(transfers, func(i, j int) bool {
		return transfers[i].BlockNumber < transfers[j].BlockNumber
	})
	return transfers, nil
}

// parseTransferLog 解析一条 ERC-20 Transfer 日志
// topics[1]=from topics[2]=to，金额在 data 里，最小单位整数
func parseTransferLog(l types.Log) (domain.TokenTransfer, error) {
	if len(l.Topics) != 3 || l.Topics[0] != transferTopic {
		return domain.TokenTransfer{}, errMalformedLog
	}
	return domain.TokenTransfer{
		TxHash:        l.TxHash.Hex(),
		FromAddress:   common.BytesToAddress(l.Topics[1].Bytes()).Hex(),
		ToAddress:     common.BytesToAddress(l.Topics[2].Bytes()).Hex(),
		TokenContract: l.Address.Hex(),
		RawAmount:     new(big.Int).SetBytes(l.Data),
		BlockNumber:   int64(l.BlockNumber),
	}, nil
}
