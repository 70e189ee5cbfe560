package crinex

import (
	"bytes"
	"fmt"
	"io"
)

// clockFormat holds the receiver clock offset's difference history, split
// into a high part (upper) and a low 8-digit part (lower) to keep
// successive additions from overflowing an int64 while folding forward.
type clockFormat struct {
	upper [maxDiffOrder + 1]int64
	lower [maxDiffOrder + 1]int64
}

// readClock parses the clock difference line (C6, clock variant: width-8
// low part). An empty line means "no clock value this epoch." Anything
// after the first space (a trailing receiver clock event flag in some
// encoders) is discarded; no SPEC_FULL component interprets it.
func readClock(lineSb []byte, clkArcOrder, clkOrder *int, clk *clockFormat) (clkSb []byte, err error) {
	clkSb, _, _ = bytes.Cut(lineSb, []byte{' '})
	clkStr := string(clkSb)

	if len(clkSb) == 0 {
		*clkOrder = -1
		return clkSb, nil
	}

	idx0 := 0

	if len(clkSb) >= 2 && clkSb[1] == '&' {
		fmt.Sscanf(clkStr, "%d&", clkArcOrder)

		if *clkArcOrder > maxDiffOrder {
			return clkSb, fmt.Errorf("%w: clock arc order %d exceeds %d", ErrLimits, *clkArcOrder, maxDiffOrder)
		}

		*clkOrder = -1
		idx0 += 2
	}

	idx := idx0
	if clkStr[idx0] == '-' {
		idx++
	}

	if len(clkStr[idx:]) < 9 {
		clk.upper[0] = 0
		fmt.Sscanf(clkStr[idx0:], "%d", &clk.lower[0])
	} else {
		fmt.Sscanf(clkStr[len(clkStr)-8:], "%d", &clk.lower[0])
		fmt.Sscanf(clkStr[idx0:len(clkStr)-8], "%d", &clk.upper[0])

		if clk.upper[0] < 0 {
			clk.lower[0] *= -1
		}
	}

	return clkSb, nil
}

// repairClock folds the newly parsed difference forward through the
// previous epoch's clock history and promotes order, mirroring the
// observable difference engine but with an 8-digit low part.
func repairClock(clkArcOrder int, clkOrder *int, clk0, clk *clockFormat) {
	if *clkOrder < clkArcOrder {
		*clkOrder++

		for i, j := 0, 1; i < *clkOrder; i, j = i+1, j+1 {
			clk.upper[j] = clk.upper[i] + clk0.upper[i]
			clk.lower[j] = clk.lower[i] + clk0.lower[i]
			clk.upper[j] += clk.lower[j] / 100000000
			clk.lower[j] %= 100000000
		}
	} else {
		for i, j := 0, 1; i < *clkOrder; i, j = i+1, j+1 {
			clk.upper[j] = clk.upper[i] + clk0.upper[j]
			clk.lower[j] = clk.lower[i] + clk0.lower[j]
			clk.upper[j] += clk.lower[j] / 100000000
			clk.lower[j] %= 100000000
		}
	}
}

// printClock renders the reconstructed clock offset in the column-exact
// "  .<digits><8-digit low part>" form (§4.7 emission rules).
func printClock(writer io.Writer, upper, lower int64, shift int) error {
	if upper < 0 && lower > 0 {
		upper++
		lower -= 100000000
	} else if upper > 0 && lower < 0 {
		upper--
		lower += 100000000
	}

	var line string

	if lower < 0 {
		line = fmt.Sprintf("%.*d", shift+1, upper*10-1)
	} else {
		line = fmt.Sprintf("%.*d", shift+1, upper*10+1)
	}

	n := len(line) - 1
	idx := n - shift
	var bs []byte

	bs = fmt.Appendf(bs, "  .%s", line[idx:n])

	if n > shift {
		idx--
		idx1 := len(bs) - shift - 2
		bs[idx1] = line[idx]

		if n > shift+1 {
			bs[idx1-1] = line[idx-1]

			if n > shift+2 {
				return fmt.Errorf("%w: clock offset out of range", ErrLimits)
			}
		}
	}

	writer.Write(bs)

	if lower < 0 {
		fmt.Fprintf(writer, "%8.8d\n", -lower)
	} else {
		fmt.Fprintf(writer, "%8.8d\n", lower)
	}

	return nil
}
