package crinex

import (
	"fmt"
	"io"
	"slices"
	"strings"
)

// decodeNextEpoch performs body-loop iterations until it either writes at
// least one line to out or the underlying stream reaches a clean EOF. A
// fatal error is recorded on z.err; lines already written to out for the
// failing group (an event header, part of an epoch) stay there and are
// delivered before the error. This mirrors the single `outer:` loop of a batch decoder, but
// broken into resumable steps so Read can interleave it with draining out.
func (z *Reader) decodeNextEpoch() {
	for {
		wrote, done := z.decodeOneLineGroup()

		if z.err != nil {
			return
		}

		if done {
			z.err = io.EOF
			return
		}

		if wrote {
			return
		}
		// otherwise: a "continue outer" case (skipped line, event record,
		// or a satellite with no data this epoch) — loop again.
	}
}

// decodeOneLineGroup processes exactly one pass of the original batch
// decoder's outer loop body. wrote reports whether RINEX output was
// appended to z.out; done reports clean EOF.
func (z *Reader) decodeOneLineGroup() (wrote, done bool) {
	line, lineSb, ok := z.nextLine()
	if !ok {
		return false, true
	}

	if z.crxVer == 3 && len(line) > 0 && line[0] == '&' {
		return false, false
	}

	if z.mustInit && len(line) > 0 && line[0] != z.crxEpochSym {
		z.recoverToNextEpoch()
		return false, false
	}

	if len(line) > 0 && line[0] == z.crxEpochSym {
		lineSb[0] = z.rnxEpochSym

		if len(line) > z.eventFlagIdx && line[z.eventFlagIdx] != '0' && line[z.eventFlagIdx] != '1' {
			if err := z.handleEvent(lineSb, line); err != nil {
				z.err = err
			}

			z.mustInit = true
			return z.err == nil, false
		}

		z.lineSbAll = z.lineSbAll[:0]
		z.mustInit = false
	}

	repairLine(lineSb, &z.lineSbAll)

	if len(z.lineSbAll) <= z.satNumIdx || z.lineSbAll[0] != z.rnxEpochSym ||
		z.lineSbAll[z.yearMonIdx+23] != ' ' || z.lineSbAll[z.yearMonIdx+24] != ' ' ||
		z.lineSbAll[z.yearMonIdx+25] < '0' || z.lineSbAll[z.yearMonIdx+25] > '9' {
		z.recoverToNextEpoch()
		return false, false
	}

	var satNum int
	if _, err := fmt.Sscanf(string(z.lineSbAll[z.satNumIdx:]), "%d", &satNum); err != nil || satNum < 0 {
		z.err = fmt.Errorf("line %d: %q: invalid satellite count", z.nl, line)
		return false, false
	}

	if satNum > maxSat {
		z.err = fmt.Errorf("%w: %d satellites exceeds limit of %d", ErrLimits, satNum, maxSat)
		return false, false
	}

	if len(z.lineSbAll) <= z.satListIdx {
		z.err = fmt.Errorf("line %d: %q: invalid satellite list", z.nl, line)
		return false, false
	}

	var satList []typePRN
	var satInfoList []satInfo
	if err := setSatInfo(z.rnxVer, z.typeNumGNSS, z.lineSbAll[z.satListIdx:], satNum, z.satList0, &satList, &satInfoList); err != nil {
		z.err = fmt.Errorf("line %d: %q: %w", z.nl, line, err)
		return false, false
	}

	clockLine, clockLineSb, ok := z.nextLine()
	if !ok {
		z.err = fmt.Errorf("line %d: %w: truncated before clock line", z.nl, io.ErrUnexpectedEOF)
		return false, false
	}

	clkSb, err := readClock(clockLineSb, &z.clkArcOrder, &z.clkOrder, &z.clk)
	if err != nil {
		z.err = fmt.Errorf("line %d: %q: %w", z.nl, clockLine, err)
		return false, false
	}

	if len(clkSb) > 0 {
		repairClock(z.clkArcOrder, &z.clkOrder, &z.clk0, &z.clk)
	}

	data := make([][]dataFormat, satNum)
	dataFlag := make([][]byte, satNum)

	for i := 0; i < satNum; i++ {
		dline, _, ok := z.nextLine()
		if !ok {
			z.err = fmt.Errorf("line %d: %q: invalid data line", z.nl, line)
			return false, false
		}

		if satInfoList[i].typeNum > maxType {
			z.err = fmt.Errorf("%w: %d observable types exceeds limit of %d", ErrLimits, satInfoList[i].typeNum, maxType)
			return false, false
		}

		flag, err := readData(dline, satInfoList[i], z.data0, &data[i])
		if err != nil {
			z.err = fmt.Errorf("line %d: %q: %w", z.nl, dline, err)
			return false, false
		}

		dataFlag[i] = flag
		repairData(z.rnxVer, satInfoList[i], dataFlag[i], z.dataFlag0, &dataFlag[i], z.data0, &data[i])
	}

	z.emitEpoch(satList, satInfoList, satNum, data, dataFlag)

	z.clk0 = z.clk
	z.satList0 = append(z.satList0[:0], satList...)
	z.data0 = data
	z.dataFlag0 = dataFlag

	return true, false
}

func (z *Reader) emitEpoch(satList []typePRN, satInfoList []satInfo, satNum int, data [][]dataFormat, dataFlag [][]byte) {
	if z.rnxVer == 2 {
		if z.clkOrder >= 0 {
			fmt.Fprintf(&z.out, "%-68.68s", z.lineSbAll)

			if err := printClock(&z.out, z.clk.upper[z.clkOrder], z.clk.lower[z.clkOrder], z.clkShift); err != nil {
				z.err = err
				return
			}
		} else {
			fmt.Fprintf(&z.out, "%.68s\n", z.lineSbAll)
		}

		for i, idx := satNum-12, 68; i > 0; i, idx = i-12, idx+36 {
			tmpStr := fmt.Sprintf("%32s%.36s", " ", z.lineSbAll[idx:])
			fmt.Fprintln(&z.out, strings.TrimRight(tmpStr, " "))
		}
	} else {
		if z.clkOrder >= 0 {
			fmt.Fprintf(&z.out, "%.41s", z.lineSbAll)

			if err := printClock(&z.out, z.clk.upper[z.clkOrder], z.clk.lower[z.clkOrder], z.clkShift); err != nil {
				z.err = err
				return
			}
		} else {
			tmpStr := fmt.Sprintf("%.41s", z.lineSbAll)
			fmt.Fprintln(&z.out, strings.TrimRight(tmpStr, " "))
		}
	}

	for i := 0; i < satNum; i++ {
		if err := printData(&z.out, z.crxVer, z.rnxVer, satList[i], satInfoList[i].typeNum, dataFlag[i], data[i]); err != nil {
			z.err = err
			return
		}
	}
}

// handleEvent forwards an event record's auxiliary lines verbatim,
// updating observable-type counts from any "# / TYPES OF OBSERV" /
// "SYS / # / OBS TYPES" lines among them (§4.7 "Event records").
func (z *Reader) handleEvent(lineSb []byte, line string) error {
	z.out.Write(lineSb)
	z.out.WriteByte('\n')

	if len(line) <= z.satNumIdx {
		return nil
	}

	var count int
	fmt.Sscanf(line[z.satNumIdx:], "%d", &count)

	for i := 0; i < count; i++ {
		aline, alineSb, ok := z.nextLine()
		if !ok {
			return fmt.Errorf("line %d: truncated event record", z.nl)
		}

		z.out.Write(alineSb)
		z.out.WriteByte('\n')

		if len(aline) > 78 && aline[60:] == "# / TYPES OF OBSERV" && aline[5] != ' ' {
			var num int
			fmt.Sscanf(aline, "%d", &num)

			if num <= 0 {
				return fmt.Errorf("line %d: %q: invalid observable count", z.nl, aline)
			}

			z.typeNumGNSS[0] = num
		} else if len(aline) > 78 && aline[60:79] == "SYS / # / OBS TYPES" && aline[0] != ' ' {
			var num int
			fmt.Sscanf(aline[3:], "%d", &num)

			if num <= 0 {
				return fmt.Errorf("line %d: %q: invalid observable count", z.nl, aline)
			}

			if num > maxType {
				return fmt.Errorf("%w: %d observable types exceeds limit of %d", ErrLimits, num, maxType)
			}

			z.typeNumGNSS[aline[0]] = num
		}
	}

	return nil
}

// recoverToNextEpoch implements the supplemented skip-to-next-good-epoch
// behavior: scan forward, discarding lines, until one passes the epoch-line
// shape test (CRINEX epoch symbol first, blank or '&' at offset+23 and
// offset+24, a digit at offset+25), then stash it as a pending line and emit
// exactly one COMMENT covering the whole skipped run (spec.md Property 6,
// gpstk's CRinexStreamBuf::skip_to_next()).
func (z *Reader) recoverToNextEpoch() {
	n := z.yearMonIdx

	for {
		line, lineSb, ok := z.nextLine()
		if !ok {
			comment(&z.out, z.rnxVer, "  *** Some epochs are skipped by CRX2RNX ***")
			return
		}

		if len(line) > n+25 && line[0] == z.crxEpochSym &&
			(line[n+23] == ' ' || line[n+23] == '&') && (line[n+24] == ' ' || line[n+24] == '&') &&
			line[n+25] >= '0' && line[n+25] <= '9' {
			comment(&z.out, z.rnxVer, "  *** Some epochs are skipped by CRX2RNX ***")
			z.pending = lineSb
			z.mustInit = true
			return
		}
	}
}

func setSatInfo(rnxVer int, typeNumGNSS map[byte]int, lineSbAll []byte, satNum int,
	satList0 []typePRN, satList *[]typePRN, satInfoList *[]satInfo) error {
	*satInfoList = make([]satInfo, satNum)
	*satList = make([]typePRN, satNum)

	var prn typePRN

	for i := 0; i < satNum; i++ {
		if 3*i+2 >= len(lineSbAll) {
			return fmt.Errorf("the satellite list seems to be truncated in the middle")
		}

		prn[0] = lineSbAll[3*i]
		prn[1] = lineSbAll[3*i+1]
		prn[2] = lineSbAll[3*i+2]

		if rnxVer == 2 {
			(*satInfoList)[i].typeNum = typeNumGNSS[0]
		} else {
			num, ok := typeNumGNSS[prn[0]]
			if !ok {
				return fmt.Errorf("%w: GNSS system %q not defined in header", ErrFraming, string(prn[0]))
			}

			(*satInfoList)[i].typeNum = num
		}

		(*satInfoList)[i].oldIdx = slices.Index(satList0, prn)
		(*satList)[i] = prn
	}

	return nil
}
