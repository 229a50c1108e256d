package ethereum

// ERC20ABI is the subset of the ERC-20 ABI used for balance reads.
const ERC20ABI = `[
	{
		"constant": true,
		"inputs": [
			{"internalType": "address", "name": "account", "type": "address"}
		],
		"name": "balanceOf",
		"outputs": [
			{"internalType": "uint256", "name": "", "type": "uint256"}
		],
		"stateMutability": "view",
		"type": "function"
	}
]`
