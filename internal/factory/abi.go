package factory

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Current factory ABI: six-argument TokenCreated plus the trade and halt
// events. This is the schema the deployed factory emits today.
const factoryABIJSON = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "tokenAddress", "type": "address"},
      {"indexed": false, "internalType": "string", "name": "name", "type": "string"},
      {"indexed": false, "internalType": "string", "name": "symbol", "type": "string"},
      {"indexed": false, "internalType": "string", "name": "imageUrl", "type": "string"},
      {"indexed": false, "internalType": "address", "name": "creator", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "fundingGoal", "type": "uint256"}
    ],
    "name": "TokenCreated",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "token", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "buyer", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "amount", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "price", "type": "uint256"}
    ],
    "name": "TokensPurchased",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "token", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "seller", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "tokenAmount", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "ethAmount", "type": "uint256"}
    ],
    "name": "TokensSold",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "token", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "collateral", "type": "uint256"}
    ],
    "name": "TradingHalted",
    "type": "event"
  }
]`

// Legacy factory ABI: the original four-argument TokenCreated. Historical
// deployments still emit this signature.
const legacyFactoryABIJSON = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "tokenAddress", "type": "address"},
      {"indexed": false, "internalType": "string", "name": "name", "type": "string"},
      {"indexed": false, "internalType": "string", "name": "ticker", "type": "string"},
      {"indexed": false, "internalType": "address", "name": "creator", "type": "address"}
    ],
    "name": "TokenCreated",
    "type": "event"
  }
]`

// Extended factory ABI: seven-argument TokenCreated with a burn manager.
const extendedFactoryABIJSON = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "tokenAddress", "type": "address"},
      {"indexed": false, "internalType": "string", "name": "name", "type": "string"},
      {"indexed": false, "internalType": "string", "name": "symbol", "type": "string"},
      {"indexed": false, "internalType": "string", "name": "imageUrl", "type": "string"},
      {"indexed": false, "internalType": "address", "name": "creator", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "fundingGoal", "type": "uint256"},
      {"indexed": false, "internalType": "address", "name": "burnManager", "type": "address"}
    ],
    "name": "TokenCreated",
    "type": "event"
  }
]`

var (
	factoryABI     abi.ABI
	legacyABI      abi.ABI
	extendedABI    abi.ABI
	factoryABIOnce sync.Once
	factoryABIErr  error
)

// FactoryABI returns the parsed current factory ABI.
func FactoryABI() (abi.ABI, error) {
	parseFactoryABIs()
	return factoryABI, factoryABIErr
}

// LegacyFactoryABI returns the parsed legacy factory ABI.
func LegacyFactoryABI() (abi.ABI, error) {
	parseFactoryABIs()
	return legacyABI, factoryABIErr
}

// ExtendedFactoryABI returns the parsed extended factory ABI.
func ExtendedFactoryABI() (abi.ABI, error) {
	parseFactoryABIs()
	return extendedABI, factoryABIErr
}

func parseFactoryABIs() {
	factoryABIOnce.Do(func() {
		factoryABI, factoryABIErr = abi.JSON(strings.NewReader(factoryABIJSON))
		if factoryABIErr != nil {
			return
		}
		legacyABI, factoryABIErr = abi.JSON(strings.NewReader(legacyFactoryABIJSON))
		if factoryABIErr != nil {
			return
		}
		extendedABI, factoryABIErr = abi.JSON(strings.NewReader(extendedFactoryABIJSON))
	})
}
