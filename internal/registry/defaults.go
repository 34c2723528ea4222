package registry

// Network identifiers shipped with the default table.
const (
	BaseMainnet     = "base-mainnet"
	EthereumMainnet = "ethereum-mainnet"
)

// Backing classifications.
const (
	CryptoBacked = "Crypto-backed"
	FiatBacked   = "Fiat-backed"
	StableBacked = "Stable-backed"
)

var defaultEntries = []NetworkEntry{
	{
		Network: Network{ID: BaseMainnet, Label: "Base"},
		Contracts: []TokenContract{
			{Address: "0x820c137fa70c8691f0e44dc420a5e53c168921dc", Symbol: "USDS", Type: CryptoBacked, Decimals: 18},
			{Address: "0x833589fcd6edb6e08f4c7c32d4f71b54bda02913", Symbol: "USDC", Type: FiatBacked, Decimals: 6},
			{Address: "0xd9aaec86b65d86f6a7b5b1b0c42ffa531710b6ca", Symbol: "USDbC", Type: StableBacked, Decimals: 6},
			{Address: "0xfde4c96c8593536e31f229ea8f37b2ada2699bb2", Symbol: "USDT", Type: StableBacked, Decimals: 6},
			{Address: "0x60a3e35cc302bfa44cb288bc5a4f316fdb1adb42", Symbol: "EURC", Type: FiatBacked, Decimals: 6},
			{Address: "0xb79dd08ea68a908a97220c76d19a6aa9cbde4376", Symbol: "USD+", Type: CryptoBacked, Decimals: 6},
			{Address: "0x4621b7a9c75199271f773ebd9a499dbd165c3191", Symbol: "DOLA", Type: CryptoBacked, Decimals: 18},
			{Address: "0xcfa3ef56d303ae4faaba0592388f19d7c3399fb4", Symbol: "eUSD", Type: CryptoBacked, Decimals: 18},
			{Address: "0xeb466342c4d449bc9f53a865d5cb90586f405215", Symbol: "axlUSDC", Type: CryptoBacked, Decimals: 6},
		},
	},
	{
		Network: Network{ID: EthereumMainnet, Label: "Eth"},
		Contracts: []TokenContract{
			{Address: "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48", Symbol: "USDC", Type: FiatBacked, Decimals: 6},
			{Address: "0xdac17f958d2ee523a2206206994597c13d831ec7", Symbol: "USDT", Type: FiatBacked, Decimals: 6},
			{Address: "0x6b175474e89094c44da98b954eedeac495271d0f", Symbol: "DAI", Type: CryptoBacked, Decimals: 18},
		},
	},
}

// Default returns the built-in stablecoin registry.
func Default() *Registry {
	r, err := New(defaultEntries)
	if err != nil {
		panic("registry: invalid default table: " + err.Error())
	}
	return r
}
