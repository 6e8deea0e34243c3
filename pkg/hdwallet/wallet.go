// 充值地址派生
package hdwallet

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/tyler-smith/go-bip39"
)

// 账户级扩展公钥的深度: m/44'/60'/0'
const accountKeyDepth = 3

var (
	ErrPrivateKey    = errors.New("expected extended public key, got private")
	ErrHardenedIndex = errors.New("hardened derivation is not possible from xpub")
	ErrWrongDepth    = errors.New("master key is not an account-level xpub (depth != 3)")
)

// XpubWallet 只持有账户级扩展公钥 (m/44'/60'/0' 的 neutered key)。
// 私钥在离线签名侧，本服务只做收款地址派生。
type XpubWallet struct {
	accountKey *hdkeychain.ExtendedKey
}

// NewFromXpub 解析账户级 xpub 并实例化
// 解析失败/传入私钥/深度不对 都属于配置错误，调用方应在启动时 Fatal
func NewFromXpub(xpub string) (*XpubWallet, error) {
	key, err := hdkeychain.NewKeyFromString(xpub)
	if err != nil {
		return nil, fmt.Errorf("parse xpub failed: %w", err)
	}
	if key.IsPrivate() {
		return nil, ErrPrivateKey
	}
	if key.Depth() != accountKeyDepth {
		return nil, ErrWrongDepth
	}
	return &XpubWallet{accountKey: key}, nil
}

// NewFromMnemonic 本地开发用：从助记词推出账户级 xpub 再实例化
// 生产环境只配置 xpub，私钥和助记词不进服务
func NewFromMnemonic(mnemonic string) (*XpubWallet, error) {
	if mnemonic == "" {
		return nil, errors.New("mnemonic cannot empty")
	}
	seed := bip39.NewSeed(mnemonic, "")
	masterKey, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, err
	}

	// BIP44 账户路径: m / 44' / 60' / 0'
	path := []uint32{
		44 + hdkeychain.HardenedKeyStart, // Purpose
		60 + hdkeychain.HardenedKeyStart, // CoinType: ETH
		0 + hdkeychain.HardenedKeyStart,  // Account (平台总账户)
	}
	key := masterKey
	for _, idx := range path {
		key, err = key.Derive(idx)
		if err != nil {
			return nil, err
		}
	}
	// 去掉私钥部分，后续派生和生产路径完全一致
	accountKey, err := key.Neuter()
	if err != nil {
		return nil, err
	}
	return &XpubWallet{accountKey: accountKey}, nil
}

// DeriveAddress 派生第 index 个收款地址
// 纯函数：同一个 (xpub, index) 永远得到同一个地址，充值归属全靠这一条性质。
// 外部链路径: account / 0 / index（只能非强化派生）
func (w *XpubWallet) DeriveAddress(index uint32) (string, string, error) {
	if index >= hdkeychain.HardenedKeyStart {
		return "", "", ErrHardenedIndex
	}

	// external chain: account/0
	changeKey, err := w.accountKey.Derive(0)
	if err != nil {
		return "", "", fmt.Errorf("derive change key failed: %w", err)
	}
	child, err := changeKey.Derive(index)
	if err != nil {
		return "", "", fmt.Errorf("derive child %d failed: %w", index, err)
	}

	pubKey, err := child.ECPubKey()
	if err != nil {
		return "", "", err
	}
	address := crypto.PubkeyToAddress(*pubKey.ToECDSA())
	path := fmt.Sprintf("account/0/%d", index)
	return address.Hex(), path, nil
}
