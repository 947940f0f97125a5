package domain

// NativeTokenAddress is the pseudo-address flows use for the chain's
// native asset, matching the aggregator API convention.
const NativeTokenAddress = "0xeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee"

// Token describes an ERC-20 token as read from the chain.
type Token struct {
	Address  string
	Symbol   string
	Decimals uint8
}

// IsNative reports whether the token stands for the chain's native asset.
func (t Token) IsNative() bool {
	return t.Address == NativeTokenAddress
}
