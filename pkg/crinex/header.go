package crinex

import (
	"fmt"
)

// decodePreambleAndHeader reads the two-line CRINEX preamble (C4) followed
// by the wrapped RINEX header (C5), writing every header line verbatim to
// out. It stops after "END OF HEADER".
func (z *Reader) decodePreambleAndHeader() error {
	line, _, ok := z.nextLine()
	if !ok {
		return fmt.Errorf("%w: empty input, no CRINEX VERS / TYPE line", ErrFraming)
	}

	if len(line) < 80 || line[60:80] != "CRINEX VERS   / TYPE" {
		return fmt.Errorf("%w: not a compressed RINEX file", ErrFraming)
	}

	switch line[0:3] {
	case "1.0":
		z.crxVer = 1
	case "3.0", "3.1":
		z.crxVer = 3
	default:
		return fmt.Errorf("%w: unsupported CRINEX version %q", ErrFraming, line[0:3])
	}

	if _, _, ok = z.nextLine(); !ok {
		return fmt.Errorf("%w: truncated after CRINEX VERS / TYPE", ErrFraming)
	}

	for first := true; ; first = false {
		line, _, ok := z.nextLine()
		if !ok {
			return fmt.Errorf("%w: no END OF HEADER", ErrFraming)
		}

		if len(line) <= 60 {
			return fmt.Errorf("%w: header line %d truncated", ErrFraming, z.nl)
		}

		kw := line[60:]

		if first && kw != "RINEX VERSION / TYPE" {
			return fmt.Errorf("%w: first header line must be RINEX VERSION / TYPE", ErrFraming)
		}

		switch {
		case kw == "RINEX VERSION / TYPE":
			if len(line) < 6 {
				return fmt.Errorf("%w: malformed RINEX VERSION / TYPE line", ErrFraming)
			}

			z.rnxVer = int(line[5] - '0')
			if z.rnxVer != 2 && z.rnxVer != 3 && z.rnxVer != 4 {
				return fmt.Errorf("%w: unsupported RINEX version %q", ErrFraming, line[5:6])
			}
		case kw == "# / TYPES OF OBSERV" && line[5] != ' ':
			var num int
			fmt.Sscanf(line, "%d", &num)

			if num <= 0 {
				return fmt.Errorf("%w: invalid observable count on line %d", ErrFraming, z.nl)
			}

			z.typeNumGNSS[0] = num
		case len(kw) >= 19 && kw[:19] == "SYS / # / OBS TYPES" && line[0] != ' ':
			var num int
			fmt.Sscanf(line[3:], "%d", &num)

			if num <= 0 {
				return fmt.Errorf("%w: invalid observable count on line %d", ErrFraming, z.nl)
			}

			if num > maxType {
				return fmt.Errorf("%w: %d observable types exceeds limit of %d", ErrLimits, num, maxType)
			}

			z.typeNumGNSS[line[0]] = num
		}

		z.out.WriteString(line)
		z.out.WriteByte('\n')

		if kw == "END OF HEADER" {
			break
		}
	}

	return nil
}
