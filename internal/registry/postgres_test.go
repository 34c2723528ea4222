package registry

import (
	"context"
	"strings"
	"testing"
)

func TestBuildEntriesGroupsByNetwork(t *testing.T) {
	networks := []Network{{ID: "n1", Label: "One"}, {ID: "n2", Label: "Two"}}
	coins := []stablecoinRow{
		{networkID: "n2", address: "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb", symbol: "BBB", kind: "fiat", decimals: 18},
		{networkID: "n1", address: "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", symbol: "AAA", kind: "fiat", decimals: 6},
		{networkID: "n2", address: "0xcccccccccccccccccccccccccccccccccccccccc", symbol: "CCC", kind: "crypto", decimals: 0},
	}

	entries, err := buildEntries(networks, coins)
	if err != nil {
		t.Fatalf("build entries: %v", err)
	}
	if len(entries) != 2 || entries[0].ID != "n1" || entries[1].ID != "n2" {
		t.Fatalf("unexpected networks: %+v", entries)
	}
	if len(entries[0].Contracts) != 1 || entries[0].Contracts[0].Decimals != 6 {
		t.Fatalf("n1 contracts: %+v", entries[0].Contracts)
	}
	if len(entries[1].Contracts) != 2 || entries[1].Contracts[1].Type != "crypto" {
		t.Fatalf("n2 contracts: %+v", entries[1].Contracts)
	}

	r, err := New(entries)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if c, ok := r.Lookup("n2", "0xBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBB"); !ok || c.Decimals != 18 {
		t.Fatalf("lookup: %+v %v", c, ok)
	}
}

func TestBuildEntriesKeepsNetworkWithoutContracts(t *testing.T) {
	entries, err := buildEntries([]Network{{ID: "n1"}}, nil)
	if err != nil {
		t.Fatalf("build entries: %v", err)
	}
	if len(entries) != 1 || len(entries[0].Contracts) != 0 {
		t.Fatalf("unexpected entries: %+v", entries)
	}
}

func TestBuildEntriesInvalid(t *testing.T) {
	networks := []Network{{ID: "n1"}}
	cases := map[string]struct {
		row  stablecoinRow
		want string
	}{
		"unknown network": {
			row:  stablecoinRow{networkID: "n9", address: "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", decimals: 6},
			want: "unknown network n9",
		},
		"negative decimals": {
			row:  stablecoinRow{networkID: "n1", address: "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", decimals: -1},
			want: "decimals out of range: -1",
		},
		"decimals above uint8": {
			row:  stablecoinRow{networkID: "n1", address: "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", decimals: 256},
			want: "decimals out of range: 256",
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := buildEntries(networks, []stablecoinRow{tc.row})
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err = %v, want %q", err, tc.want)
			}
		})
	}
}

func TestBuildEntriesAcceptsDecimalBounds(t *testing.T) {
	entries, err := buildEntries([]Network{{ID: "n1"}}, []stablecoinRow{
		{networkID: "n1", address: "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", decimals: 0},
		{networkID: "n1", address: "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb", decimals: 255},
	})
	if err != nil {
		t.Fatalf("build entries: %v", err)
	}
	if entries[0].Contracts[1].Decimals != 255 {
		t.Fatalf("decimals = %d", entries[0].Contracts[1].Decimals)
	}
}

func TestLoadPostgresRequiresDSN(t *testing.T) {
	if _, err := LoadPostgres(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty dsn")
	}
}
