package crinex

import (
	"bytes"
	"fmt"
	"io"
	"strings"
)

// dataFormat holds one observable's difference history for one satellite,
// split into a high part (upper) and a low 5-digit part (lower). order is
// the current position within the arc; arcOrder < 0 means the slot is
// blank (no arc has been initialized).
type dataFormat struct {
	upper    [maxDiffOrder + 1]int64
	lower    [maxDiffOrder + 1]int64
	order    int
	arcOrder int
}

// ErrUninitializedArc reports a difference token referencing an arc that was
// never initialized (§7 case 4: "uninitialized arc referenced").
var ErrUninitializedArc = fmt.Errorf("crinex: uninitialized arc referenced")

// readData parses one satellite's difference line: one token per
// observable (blank, arc-init "N&value", or a plain difference), followed
// by a trailing flag string (C6/C7).
func readData(line string, info satInfo, data0 [][]dataFormat, data *[]dataFormat) (flag []byte, err error) {
	idx := 0
	var idx1, length int

	if len(*data) < info.typeNum {
		*data = make([]dataFormat, info.typeNum)
	}

	for i := 0; i < info.typeNum; i++ {
		if idx >= len(line) || line[idx] == ' ' {
			(*data)[i].order = -1
			(*data)[i].arcOrder = -1
			idx++
			continue
		}

		if idx+1 < len(line) && line[idx+1] == '&' {
			(*data)[i].order = -1
			fmt.Sscanf(line[idx:], "%d&", &(*data)[i].arcOrder)
			idx += 2

			if (*data)[i].arcOrder > maxDiffOrder {
				return nil, fmt.Errorf("%w: difference order %d exceeds %d", ErrLimits, (*data)[i].arcOrder, maxDiffOrder)
			}
		} else if info.oldIdx < 0 {
			return nil, fmt.Errorf("%w: new satellite slot has no arc-init token", ErrUninitializedArc)
		} else if data0[info.oldIdx][i].arcOrder < 0 {
			return nil, fmt.Errorf("%w: observable %d", ErrUninitializedArc, i)
		} else {
			(*data)[i].order = data0[info.oldIdx][i].order
			(*data)[i].arcOrder = data0[info.oldIdx][i].arcOrder
		}

		length = strings.IndexByte(line[idx:], ' ')
		if length < 0 {
			length = len(line[idx:])
		}

		idx1 = idx + length

		if line[idx] == '-' {
			length--
		}

		if length < 6 {
			(*data)[i].upper[0] = 0
			fmt.Sscanf(line[idx:], "%d", &(*data)[i].lower[0])
		} else {
			fmt.Sscanf(line[idx:idx1-5], "%d", &(*data)[i].upper[0])
			fmt.Sscanf(line[idx1-5:idx1], "%d", &(*data)[i].lower[0])

			if (*data)[i].upper[0] < 0 {
				(*data)[i].lower[0] *= -1
			}
		}

		idx = idx1 + 1
	}

	if idx > len(line) {
		idx = len(line)
	}

	if idx < 0 {
		idx = 0
	}

	flag = append(flag, line[idx:]...)
	return flag, nil
}

// repairData folds the per-observable differences forward and canonicalizes
// the sign of upper/lower (Property 5).
func repairData(rnxVer int, info satInfo, dflag []byte, flag0 [][]byte, flag *[]byte,
	data0 [][]dataFormat, data *[]dataFormat) {
	if info.oldIdx < 0 {
		if rnxVer < 3 {
			*flag = append(*flag, fmt.Sprintf("%-*s", 2*info.typeNum, dflag)...)
		}
	} else {
		*flag = append(*flag, flag0[info.oldIdx]...)
	}

	repairLine(dflag, flag)

	for i := 0; i < info.typeNum; i++ {
		if (*data)[i].arcOrder < 0 {
			continue
		}

		if (*data)[i].order < (*data)[i].arcOrder {
			(*data)[i].order++

			for k1, k2 := 0, 1; k1 < (*data)[i].order; k1, k2 = k1+1, k2+1 {
				(*data)[i].upper[k2] = (*data)[i].upper[k1] + data0[info.oldIdx][i].upper[k1]
				(*data)[i].lower[k2] = (*data)[i].lower[k1] + data0[info.oldIdx][i].lower[k1]
				(*data)[i].upper[k2] += (*data)[i].lower[k2] / 100000
				(*data)[i].lower[k2] %= 100000
			}
		} else {
			for k1, k2 := 0, 1; k1 < (*data)[i].order; k1, k2 = k1+1, k2+1 {
				(*data)[i].upper[k2] = (*data)[i].upper[k1] + data0[info.oldIdx][i].upper[k2]
				(*data)[i].lower[k2] = (*data)[i].lower[k1] + data0[info.oldIdx][i].lower[k2]
				(*data)[i].upper[k2] += (*data)[i].lower[k2] / 100000
				(*data)[i].lower[k2] %= 100000
			}
		}

		odr := (*data)[i].order

		if (*data)[i].upper[odr] < 0 && (*data)[i].lower[odr] > 0 {
			(*data)[i].upper[odr]++
			(*data)[i].lower[odr] -= 100000
		} else if (*data)[i].upper[odr] > 0 && (*data)[i].lower[odr] < 0 {
			(*data)[i].upper[odr]--
			(*data)[i].lower[odr] += 100000
		}
	}
}

// printData renders one satellite's observation line (C8).
func printData(writer io.Writer, crxVer, rnxVer int, prn typePRN, typeNum int, flag []byte, data []dataFormat) error {
	var idx int
	var bs []byte

	if rnxVer >= 3 {
		writer.Write(prn[:])
	}

	for i := 0; i < typeNum; i++ {
		if i*2 >= len(flag) {
			flag = append(flag, ' ')
		}

		if i*2+1 >= len(flag) {
			flag = append(flag, ' ')
		}

		if data[i].arcOrder >= 0 {
			odr := data[i].order

			if data[i].upper[odr] != 0 {
				if data[i].lower[odr] < 0 {
					bs = fmt.Appendf(bs, "%8d %5.5d%c%c", data[i].upper[odr], -data[i].lower[odr], flag[2*i], flag[2*i+1])
				} else {
					bs = fmt.Appendf(bs, "%8d %5.5d%c%c", data[i].upper[odr], data[i].lower[odr], flag[2*i], flag[2*i+1])
				}

				idx = len(bs)
				bs[idx-8] = bs[idx-7]
				bs[idx-7] = bs[idx-6]

				if data[i].upper[odr] > 99999999 || data[i].upper[odr] < -9999999 {
					return fmt.Errorf("%w: observation data out of range", ErrLimits)
				}
			} else {
				if data[i].lower[odr] < 0 {
					bs = fmt.Appendf(bs, "         %5.5d%c%c", -data[i].lower[odr], flag[2*i], flag[2*i+1])
				} else {
					bs = fmt.Appendf(bs, "         %5.5d%c%c", data[i].lower[odr], flag[2*i], flag[2*i+1])
				}

				idx = len(bs)

				if bs[idx-7] != '0' {
					bs[idx-8] = bs[idx-7]
					bs[idx-7] = bs[idx-6]

					if data[i].lower[odr] < 0 {
						bs[idx-9] = '-'
					}
				} else if bs[idx-6] != '0' {
					bs[idx-7] = bs[idx-6]

					if data[i].lower[odr] < 0 {
						bs[idx-8] = '-'
					} else {
						bs[idx-8] = ' '
					}
				} else {
					if data[i].lower[odr] < 0 {
						bs[idx-7] = '-'
					} else {
						bs[idx-7] = ' '
					}
				}
			}

			bs[idx-6] = '.'
		} else {
			if crxVer == 1 {
				bs = append(bs, bytes.Repeat([]byte{' '}, 16)...)
				flag[i*2] = ' '
				flag[i*2+1] = ' '
			} else {
				bs = append(bs, bytes.Repeat([]byte{' '}, 14)...)
				bs = append(bs, flag[i*2], flag[i*2+1])
			}
		}

		if i+1 == typeNum || (rnxVer == 2 && (i+1)%5 == 0) {
			bs = bytes.TrimRight(bs, " ")
			writer.Write(bs)
			writer.Write([]byte{'\n'})
			bs = bs[:0]
		}
	}

	return nil
}
