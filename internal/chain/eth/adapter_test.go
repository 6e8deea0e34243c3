package eth

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func transferLog(from, to common.Address, amount *big.Int) types.Log {
	return types.Log{
		Address: common.HexToAddress("0x7169D38820dfd117C3FA1f22a697dBA58d90BA06"),
		Topics: []common.Hash{
			transferTopic,
			common.BytesToHash(from.Bytes()),
			common.BytesToHash(to.Bytes()),
		},
		Data:        common.LeftPadBytes(amount.Bytes(), 32),
		BlockNumber: 12345,
		TxHash:      common.HexToHash("0xabcdef"),
	}
}

func TestParseTransferLog(t *testing.T) {
	from := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	to := common.HexToAddress("0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B")
	amount, _ := new(big.Int).SetString("50000000000000000000", 10)

	got, err := parseTransferLog(transferLog(from, to, amount))
	require.NoError(t, err)

	assert.Equal(t, from.Hex(), got.FromAddress)
	assert.Equal(t, to.Hex(), got.ToAddress)
	assert.Equal(t, "0x7169D38820dfd117C3FA1f22a697dBA58d90BA06", got.TokenContract)
	assert.Equal(t, int64(12345), got.BlockNumber)
	// 金额是 data 里的 256 位整数，最小单位
	assert.Equal(t, 0, got.RawAmount.Cmp(amount))
}

func TestParseTransferLog_ZeroAmount(t *testing.T) {
	from := common.HexToAddress("0xaa")
	to := common.HexToAddress("0xbb")

	got, err := parseTransferLog(transferLog(from, to, big.NewInt(0)))
	require.NoError(t, err)
	assert.True(t, got.RawAmount.Sign() == 0)
}

func TestParseTransferLog_Malformed(t *testing.T) {
	// topic 数量不对 (比如 ERC-721 的 Transfer 有 4 个 topic)
	l := transferLog(common.HexToAddress("0xaa"), common.HexToAddress("0xbb"), big.NewInt(1))
	l.Topics = append(l.Topics, common.HexToHash("0x01"))
	_, err := parseTransferLog(l)
	assert.Error(t, err)

	// 签名不是 Transfer
	l2 := transferLog(common.HexToAddress("0xaa"), common.HexToAddress("0xbb"), big.NewInt(1))
	l2.Topics[0] = common.HexToHash("0xdead")
	_, err = parseTransferLog(l2)
	assert.Error(t, err)
}
