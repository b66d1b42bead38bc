package allocation

import (
	"errors"
	"fmt"
)

// Liquidity shares are basis points of Total, one weight per instrument in
// market order. The engine works on the plain ordered slice; the packed
// uint64 form exists only at the wire boundary, where each word carries four
// 16-bit weights, most-significant field first.

const (
	// Total is the required sum of all instrument weights in a market.
	Total uint16 = 10_000

	// WeightBits is the width of one packed weight field.
	WeightBits = 16

	// WeightsPerWord is how many weights fit one packed word.
	WeightsPerWord = 64 / WeightBits
)

var (
	ErrInvalidCumulativeAllocation = errors.New("allocation: weights do not sum to total")
	ErrTruncatedEncoding           = errors.New("allocation: packed words too short for instrument count")
)

// Share pairs an instrument ticker with its liquidity weight.
type Share struct {
	Ticker string
	Weight uint16
}

// Encode packs weights into uint64 words in order, four per word.
// The final word is zero-padded in its low fields.
func Encode(weights []uint16) []uint64 {
	if len(weights) == 0 {
		return nil
	}
	words := make([]uint64, (len(weights)+WeightsPerWord-1)/WeightsPerWord)
	for i, w := range weights {
		word := i / WeightsPerWord
		shift := uint(64 - WeightBits*(i%WeightsPerWord+1))
		words[word] |= uint64(w) << shift
	}
	return words
}

// Decode extracts count weights from packed words in order.
func Decode(words []uint64, count int) ([]uint16, error) {
	if count < 0 || (count+WeightsPerWord-1)/WeightsPerWord > len(words) {
		return nil, fmt.Errorf("%w: have %d words, need %d weights", ErrTruncatedEncoding, len(words), count)
	}
	weights := make([]uint16, count)
	for i := range weights {
		word := words[i/WeightsPerWord]
		shift := uint(64 - WeightBits*(i%WeightsPerWord+1))
		weights[i] = uint16(word >> shift)
	}
	return weights, nil
}

// ValidateTotal checks the weights sum to exactly Total.
func ValidateTotal(weights []uint16) error {
	var sum uint32
	for _, w := range weights {
		sum += uint32(w)
	}
	if sum != uint32(Total) {
		return fmt.Errorf("%w: sum=%d, want %d", ErrInvalidCumulativeAllocation, sum, Total)
	}
	return nil
}
