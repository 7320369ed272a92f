package chain

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// contractABIJSON is the combined ERC-20 + prediction market interface.
const contractABIJSON = `[
{"type":"function","name":"name","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
{"type":"function","name":"symbol","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
{"type":"function","name":"decimals","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]},
{"type":"function","name":"totalSupply","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"transfer","stateMutability":"nonpayable","inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
{"type":"function","name":"deposit","stateMutability":"payable","inputs":[],"outputs":[]},
{"type":"function","name":"withdraw","stateMutability":"nonpayable","inputs":[{"name":"predictAmount","type":"uint256"}],"outputs":[]},
{"type":"function","name":"createMarket","stateMutability":"nonpayable","inputs":[{"name":"question","type":"string"},{"name":"resolveTime","type":"uint256"},{"name":"oracle","type":"address"},{"name":"isBinary","type":"bool"}],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"bet","stateMutability":"nonpayable","inputs":[{"name":"marketId","type":"uint256"},{"name":"outcome","type":"uint8"},{"name":"amount","type":"uint256"}],"outputs":[]},
{"type":"function","name":"resolveMarket","stateMutability":"nonpayable","inputs":[{"name":"marketId","type":"uint256"},{"name":"winningOutcome","type":"uint8"}],"outputs":[]},
{"type":"function","name":"claim","stateMutability":"nonpayable","inputs":[{"name":"marketId","type":"uint256"}],"outputs":[]},
{"type":"function","name":"dailyClaim","stateMutability":"nonpayable","inputs":[],"outputs":[]},
{"type":"function","name":"createQuiz","stateMutability":"nonpayable","inputs":[{"name":"question","type":"string"},{"name":"answerHash","type":"bytes32"},{"name":"reward","type":"uint256"},{"name":"deadline","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"answerQuiz","stateMutability":"nonpayable","inputs":[{"name":"quizId","type":"uint256"},{"name":"answer","type":"string"}],"outputs":[]},
{"type":"function","name":"getMarket","stateMutability":"view","inputs":[{"name":"marketId","type":"uint256"}],"outputs":[{"name":"question","type":"string"},{"name":"resolveTime","type":"uint256"},{"name":"oracle","type":"address"},{"name":"isResolved","type":"bool"},{"name":"winningOutcome","type":"uint8"},{"name":"totalPool","type":"uint256"},{"name":"isBinary","type":"bool"},{"name":"createdAt","type":"uint256"},{"name":"creator","type":"address"}]},
{"type":"function","name":"getMarketPool","stateMutability":"view","inputs":[{"name":"marketId","type":"uint256"},{"name":"outcome","type":"uint8"}],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"getUserBet","stateMutability":"view","inputs":[{"name":"marketId","type":"uint256"},{"name":"user","type":"address"},{"name":"outcome","type":"uint8"}],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"quotePayout","stateMutability":"view","inputs":[{"name":"marketId","type":"uint256"},{"name":"outcome","type":"uint8"},{"name":"stake","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"canClaim","stateMutability":"view","inputs":[{"name":"user","type":"address"}],"outputs":[{"name":"","type":"bool"}]},
{"type":"function","name":"userStats","stateMutability":"view","inputs":[{"name":"","type":"address"}],"outputs":[{"name":"lastClaimTime","type":"uint256"},{"name":"streak","type":"uint256"},{"name":"totalClaims","type":"uint256"},{"name":"totalEarnings","type":"uint256"}]},
{"type":"function","name":"marketCounter","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"quizCounter","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"quizzes","stateMutability":"view","inputs":[{"name":"","type":"uint256"}],"outputs":[{"name":"question","type":"string"},{"name":"answerHash","type":"bytes32"},{"name":"reward","type":"uint256"},{"name":"deadline","type":"uint256"},{"name":"active","type":"bool"}]},
{"type":"function","name":"depositRate","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"withdrawFee","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"dailyReward","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"owner","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
{"type":"event","name":"MarketCreated","anonymous":false,"inputs":[{"name":"marketId","type":"uint256","indexed":true},{"name":"question","type":"string","indexed":false},{"name":"resolveTime","type":"uint256","indexed":false}]},
{"type":"event","name":"BetPlaced","anonymous":false,"inputs":[{"name":"marketId","type":"uint256","indexed":true},{"name":"user","type":"address","indexed":true},{"name":"outcome","type":"uint8","indexed":false},{"name":"amount","type":"uint256","indexed":false}]},
{"type":"event","name":"MarketResolved","anonymous":false,"inputs":[{"name":"marketId","type":"uint256","indexed":true},{"name":"winningOutcome","type":"uint8","indexed":false}]},
{"type":"event","name":"Claimed","anonymous":false,"inputs":[{"name":"marketId","type":"uint256","indexed":true},{"name":"user","type":"address","indexed":true},{"name":"amount","type":"uint256","indexed":false}]},
{"type":"event","name":"DailyClaimed","anonymous":false,"inputs":[{"name":"user","type":"address","indexed":true},{"name":"amount","type":"uint256","indexed":false},{"name":"streak","type":"uint256","indexed":false}]},
{"type":"event","name":"Deposited","anonymous":false,"inputs":[{"name":"user","type":"address","indexed":true},{"name":"flowAmount","type":"uint256","indexed":false},{"name":"predictAmount","type":"uint256","indexed":false}]},
{"type":"event","name":"Withdrawn","anonymous":false,"inputs":[{"name":"user","type":"address","indexed":true},{"name":"predictAmount","type":"uint256","indexed":false},{"name":"flowAmount","type":"uint256","indexed":false}]}
]`

var contractABI abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(contractABIJSON))
	if err != nil {
		panic(fmt.Sprintf("chain: parse contract abi: %v", err))
	}
	contractABI = parsed
}

// ABI returns the parsed contract interface.
func ABI() abi.ABI { return contractABI }
