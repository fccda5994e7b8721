package chains

var defaultChains = []Chain{
	{ID: 1, Name: "Ethereum", Symbol: "ETH", RPCURL: "https://eth.merkle.io", ExplorerURL: "https://etherscan.io"},
	{ID: 137, Name: "Polygon", Symbol: "POL", RPCURL: "https://polygon-rpc.com", ExplorerURL: "https://polygonscan.com"},
	{ID: 42161, Name: "Arbitrum", Symbol: "ETH", RPCURL: "https://arb1.arbitrum.io/rpc", ExplorerURL: "https://arbiscan.io"},
	{ID: 10, Name: "Optimism", Symbol: "ETH", RPCURL: "https://mainnet.optimism.io", ExplorerURL: "https://optimistic.etherscan.io"},
	{ID: 8453, Name: "Base", Symbol: "ETH", RPCURL: "https://mainnet.base.org", ExplorerURL: "https://basescan.org"},
	{ID: 56, Name: "BNB Chain", Symbol: "BNB", RPCURL: "https://bsc-dataseed1.binance.org", ExplorerURL: "https://bscscan.com"},
	{ID: 43114, Name: "Avalanche", Symbol: "AVAX", RPCURL: "https://api.avax.network/ext/bc/C/rpc", ExplorerURL: "https://snowtrace.io"},
	{ID: 250, Name: "Fantom", Symbol: "FTM", RPCURL: "https://rpc.ankr.com/fantom", ExplorerURL: "https://ftmscan.com"},
	{ID: 100, Name: "Gnosis", Symbol: "xDAI", RPCURL: "https://rpc.gnosischain.com", ExplorerURL: "https://gnosisscan.io"},
	{ID: 42220, Name: "Celo", Symbol: "CELO", RPCURL: "https://forno.celo.org", ExplorerURL: "https://celoscan.io"},
	{ID: 1284, Name: "Moonbeam", Symbol: "GLMR", RPCURL: "https://rpc.api.moonbeam.network", ExplorerURL: "https://moonscan.io"},
	{ID: 1313161554, Name: "Aurora", Symbol: "ETH", RPCURL: "https://mainnet.aurora.dev", ExplorerURL: "https://aurorascan.dev"},
	{ID: 25, Name: "Cronos", Symbol: "CRO", RPCURL: "https://evm.cronos.org", ExplorerURL: "https://explorer.cronos.org"},
	{ID: 324, Name: "zkSync", Symbol: "ETH", RPCURL: "https://mainnet.era.zksync.io", ExplorerURL: "https://era.zksync.network"},
	{ID: 1101, Name: "Polygon zkEVM", Symbol: "ETH", RPCURL: "https://zkevm-rpc.com", ExplorerURL: "https://zkevm.polygonscan.com"},
	{ID: 59144, Name: "Linea", Symbol: "ETH", RPCURL: "https://rpc.linea.build", ExplorerURL: "https://lineascan.build"},
	{ID: 534352, Name: "Scroll", Symbol: "ETH", RPCURL: "https://rpc.scroll.io", ExplorerURL: "https://scrollscan.com"},
	{ID: 5000, Name: "Mantle", Symbol: "MNT", RPCURL: "https://rpc.mantle.xyz", ExplorerURL: "https://mantlescan.xyz"},
}

// Default returns the built-in chain table.
func Default() *Registry {
	r, err := New(defaultChains)
	if err != nil {
		panic(err)
	}
	return r
}
