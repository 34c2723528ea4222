package main

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"stablestream/internal/erc20"
	"stablestream/internal/registry"
)

type tokenStub struct {
	symbol   string
	decimals uint8
}

// stubCaller answers decimals/symbol/name calls per token address.
type stubCaller struct {
	t      *testing.T
	tokens map[common.Address]tokenStub
}

func (s *stubCaller) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	parsed, err := erc20.ABI()
	if err != nil {
		s.t.Fatalf("abi: %v", err)
	}
	token, ok := s.tokens[*msg.To]
	if !ok {
		return nil, fmt.Errorf("execution reverted")
	}

	method, err := parsed.MethodById(msg.Data[:4])
	if err != nil {
		return nil, err
	}
	switch method.Name {
	case "decimals":
		return method.Outputs.Pack(token.decimals)
	case "symbol", "name":
		return method.Outputs.Pack(token.symbol)
	default:
		return nil, fmt.Errorf("unexpected method %s", method.Name)
	}
}

func TestVerifyContracts(t *testing.T) {
	usdc := common.HexToAddress("0x833589fcd6edb6e08f4c7c32d4f71b54bda02913")
	dola := common.HexToAddress("0x4621b7a9c75199271f773ebd9a499dbd165c3191")
	gone := common.HexToAddress("0x000000000000000000000000000000000000dead")

	caller := &stubCaller{t: t, tokens: map[common.Address]tokenStub{
		usdc: {symbol: "USDC", decimals: 6},
		dola: {symbol: "DOLA", decimals: 6},
	}}
	contracts := []registry.TokenContract{
		{Address: strings.ToLower(usdc.Hex()), Symbol: "USDC", Decimals: 6},
		{Address: strings.ToLower(dola.Hex()), Symbol: "DOLA", Decimals: 18},
		{Address: strings.ToLower(gone.Hex()), Symbol: "GONE", Decimals: 6},
	}

	var out bytes.Buffer
	mismatches := verifyContracts(context.Background(), &out, caller, "base-mainnet", contracts, zap.NewNop())
	if mismatches != 2 {
		t.Fatalf("mismatches = %d, want 2\n%s", mismatches, out.String())
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(lines))
	}
	if !strings.HasSuffix(lines[0], "\tok") {
		t.Fatalf("usdc row should be ok: %q", lines[0])
	}
	if !strings.Contains(lines[1], "decimals 18 != 6") {
		t.Fatalf("dola row should report decimals: %q", lines[1])
	}
	if !strings.Contains(lines[2], "ERROR") {
		t.Fatalf("missing token row should report error: %q", lines[2])
	}
}

func TestCompareMeta(t *testing.T) {
	contract := registry.TokenContract{Symbol: "USDbC", Decimals: 6}

	if got := compareMeta(contract, erc20.TokenMeta{Symbol: "usdbc", Decimals: 6}); len(got) != 0 {
		t.Fatalf("case-insensitive symbol should match: %v", got)
	}
	if got := compareMeta(contract, erc20.TokenMeta{Decimals: 6}); len(got) != 0 {
		t.Fatalf("empty on-chain symbol should be ignored: %v", got)
	}
	if got := compareMeta(contract, erc20.TokenMeta{Symbol: "USDT", Decimals: 18}); len(got) != 2 {
		t.Fatalf("expected two problems, got %v", got)
	}
}
