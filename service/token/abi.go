package token

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/pandodao/generic"
)

const tokenABIJSON = `[
  {"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"decimals","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]},
  {"type":"function","name":"mint","stateMutability":"nonpayable","inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"burn","stateMutability":"nonpayable","inputs":[{"name":"from","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"verifyUser","stateMutability":"nonpayable","inputs":[{"name":"user","type":"address"}],"outputs":[]}
]`

var tokenABI = generic.Must(abi.JSON(strings.NewReader(tokenABIJSON)))
