package model

import (
	"encoding/json"
	"math/big"
	"regexp"
	"testing"
)

var decimalPattern = regexp.MustCompile(`^[0-9]+$`)

func TestTransferEventValueIsDecimalString(t *testing.T) {
	huge, _ := new(big.Int).SetString("115792089237316195423570985008687907853269984665640564039457584007913129639935", 10)
	values := []*big.Int{
		big.NewInt(0),
		big.NewInt(1),
		new(big.Int).SetUint64(^uint64(0)),
		huge,
		nil,
	}

	for _, v := range values {
		data, err := json.Marshal(TransferEvent{Value: v, Network: "n1"})
		if err != nil {
			t.Fatalf("marshal failed: %v", err)
		}

		var decoded map[string]interface{}
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("unmarshal failed: %v", err)
		}
		value, ok := decoded["value"].(string)
		if !ok {
			t.Fatalf("value should be string: %s", data)
		}
		if !decimalPattern.MatchString(value) {
			t.Fatalf("value %q is not a decimal string", value)
		}
		if v != nil && value != v.String() {
			t.Fatalf("value mismatch: %s != %s", value, v.String())
		}
	}
}

func TestTransferEventJSONFields(t *testing.T) {
	event := TransferEvent{
		From:            "0x1111111111111111111111111111111111111111",
		To:              "0x2222222222222222222222222222222222222222",
		Value:           big.NewInt(1500000),
		Network:         "base-mainnet",
		ContractAddress: "0x833589fcd6edb6e08f4c7c32d4f71b54bda02913",
		Symbol:          "USDC",
		Decimals:        6,
		Block:           BlockMeta{Number: 100, Hash: "0xabc", Timestamp: 1700000000},
		TxHash:          "0xdef",
		LogIndex:        3,
	}

	data, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if decoded["network"] != "base-mainnet" {
		t.Fatalf("network mismatch: %v", decoded["network"])
	}
	if decoded["amount"] != "1.500000" {
		t.Fatalf("amount mismatch: %v", decoded["amount"])
	}
	block, ok := decoded["block"].(map[string]interface{})
	if !ok || block["number"].(float64) != 100 {
		t.Fatalf("block mismatch: %v", decoded["block"])
	}
}

func TestTagSetsNetwork(t *testing.T) {
	original := TransferEvent{Value: big.NewInt(5), Network: "other"}
	tagged := Tag(original, "n2")
	if tagged.Network != "n2" {
		t.Fatalf("network not tagged: %s", tagged.Network)
	}
	if original.Network != "other" {
		t.Fatalf("tag must not mutate its input")
	}
}

func TestFormatAmount(t *testing.T) {
	cases := []struct {
		value    *big.Int
		decimals uint8
		want     string
	}{
		{big.NewInt(0), 6, "0.000000"},
		{big.NewInt(1500000), 6, "1.500000"},
		{big.NewInt(42), 0, "42"},
		{big.NewInt(-25), 1, "-2.5"},
		{nil, 18, "0"},
	}
	for _, tc := range cases {
		if got := FormatAmount(tc.value, tc.decimals); got != tc.want {
			t.Fatalf("FormatAmount(%v, %d) = %s, want %s", tc.value, tc.decimals, got, tc.want)
		}
	}
}
