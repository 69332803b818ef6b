package etherman

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/crypto"
)

const bridgeABIJSON = `[{"anonymous":false,"inputs":[
{"indexed":true,"name":"nonce","type":"string"},
{"indexed":true,"name":"from","type":"address"},
{"indexed":true,"name":"tokenFrom","type":"address"},
{"indexed":false,"name":"amount","type":"int64"},
{"indexed":false,"name":"to","type":"address"},
{"indexed":false,"name":"tokenTo","type":"address"},
{"indexed":false,"name":"poolAddress","type":"address"},
{"indexed":false,"name":"desChain","type":"uint64"}],
"name":"BridgeDeposit","type":"event"}]`

const erc20ABIJSON = `[
{"constant":true,"inputs":[{"name":"account","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
{"constant":true,"inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"name":"allowance","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"stateMutability":"view","type":"function"},
{"constant":false,"inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"}]`

const routerABIJSON = `[
{"inputs":[{"name":"amountIn","type":"uint256"},{"name":"path","type":"address[]"}],"name":"getAmountsOut","outputs":[{"name":"amounts","type":"uint256[]"}],"stateMutability":"view","type":"function"},
{"inputs":[{"name":"amountOutMin","type":"uint256"},{"name":"path","type":"address[]"},{"name":"to","type":"address"},{"name":"deadline","type":"uint256"}],"name":"swapExactETHForTokens","outputs":[{"name":"amounts","type":"uint256[]"}],"stateMutability":"payable","type":"function"}]`

const bridgeDepositEvent = "BridgeDeposit"

var (
	// BridgeDepositSignatureHash is the topic 0 of the deposit event emitted by the bridge contract
	BridgeDepositSignatureHash = crypto.Keccak256Hash([]byte("BridgeDeposit(string,address,address,int64,address,address,address,uint64)"))

	bridgeABI = mustParseABI(bridgeABIJSON)
	erc20ABI  = mustParseABI(erc20ABIJSON)
	routerABI = mustParseABI(routerABIJSON)
)

func mustParseABI(s string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic(err)
	}
	return parsed
}
