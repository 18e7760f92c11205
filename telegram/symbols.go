package telegram

import "math/bits"

// EncodeByte returns the symbols of one byte frame in transmission order.
func EncodeByte(b byte) [FrameSymbols]bool {
	var result [FrameSymbols]bool
	result[0] = false
	for i := 0; i < 8; i++ {
		result[1+i] = (b>>i)&1 == 1
	}
	result[1+parityBit] = bits.OnesCount8(b)%2 == 1
	result[1+stopBit] = true
	return result
}

// Symbols returns the symbols of all byte frames of the given bytes, back to back.
func Symbols(frame []byte) []bool {
	result := make([]bool, 0, len(frame)*FrameSymbols)
	for _, b := range frame {
		symbols := EncodeByte(b)
		result = append(result, symbols[:]...)
	}
	return result
}

// Chips stretches each symbol to width chips.
func Chips(symbols []bool, width int) []bool {
	result := make([]bool, 0, len(symbols)*width)
	for _, symbol := range symbols {
		for i := 0; i < width; i++ {
			result = append(result, symbol)
		}
	}
	return result
}

// IdleChips returns n mark chips, the line state between telegrams.
func IdleChips(n int) []bool {
	result := make([]bool, n)
	for i := range result {
		result[i] = true
	}
	return result
}
