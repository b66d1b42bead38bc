package allocation_test

import (
	"errors"
	"testing"

	"VaultLedger/internal/allocation"
)

func TestEncodeDecode_RoundTrip(t *testing.T) {
	weights := []uint16{6000, 2500, 1000, 400, 100}
	words := allocation.Encode(weights)

	if len(words) != 2 {
		t.Fatalf("5 weights should pack into 2 words, got %d", len(words))
	}

	decoded, err := allocation.Decode(words, len(weights))
	if err != nil {
		t.Fatal(err)
	}
	for i, w := range weights {
		if decoded[i] != w {
			t.Errorf("weight %d: got %d, want %d", i, decoded[i], w)
		}
	}
}

func TestEncode_FieldOrder(t *testing.T) {
	// First weight occupies the most significant 16 bits.
	words := allocation.Encode([]uint16{0xABCD})
	if words[0] != 0xABCD000000000000 {
		t.Errorf("got %016x, want abcd000000000000", words[0])
	}
}

func TestEncode_Empty(t *testing.T) {
	if words := allocation.Encode(nil); words != nil {
		t.Errorf("empty input should encode to nil, got %v", words)
	}
}

func TestDecode_Truncated(t *testing.T) {
	words := allocation.Encode([]uint16{1000, 2000, 3000, 4000})
	_, err := allocation.Decode(words, 5)
	if !errors.Is(err, allocation.ErrTruncatedEncoding) {
		t.Errorf("got %v, want ErrTruncatedEncoding", err)
	}
}

func TestValidateTotal_Exact(t *testing.T) {
	if err := allocation.ValidateTotal([]uint16{6000, 4000}); err != nil {
		t.Errorf("6000+4000 should validate: %v", err)
	}
	if err := allocation.ValidateTotal([]uint16{10_000}); err != nil {
		t.Errorf("single full share should validate: %v", err)
	}
}

func TestValidateTotal_Mismatch(t *testing.T) {
	cases := [][]uint16{
		{6000, 3999},
		{6000, 4001},
		{},
		{10_000, 1},
	}
	for _, weights := range cases {
		if err := allocation.ValidateTotal(weights); !errors.Is(err, allocation.ErrInvalidCumulativeAllocation) {
			t.Errorf("weights %v: got %v, want ErrInvalidCumulativeAllocation", weights, err)
		}
	}
}
