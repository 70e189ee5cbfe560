// Package source composes the LZW and CRINEX decoders over an arbitrary
// byte source, auto-detecting which (if either) wraps the underlying
// stream.
//
// Reference: the teacher's unzip.UnzipGZ/UnzipZ pattern of picking a
// decompressor by file shape, generalized to signature-sniffing over a
// buffered peek instead of a file extension.
package source

import (
	"bufio"
	"fmt"
	"io"

	"github.com/rumkex/crxgo/pkg/crinex"
	"github.com/rumkex/crxgo/pkg/lzw"
)

const crinexSignature = "CRINEX VERS   / TYPE"

// Open wraps r with an lzw.Reader if the stream begins with the .Z magic
// bytes, then wraps the result with a crinex.Reader if the (possibly
// decompressed) first line carries the CRINEX preamble signature at column
// 60. If neither signature is present, r is returned unwrapped, buffered
// only enough to have performed the peek.
func Open(r io.Reader) (io.Reader, error) {
	br := bufio.NewReaderSize(r, 1<<16)

	magic, err := br.Peek(2)
	if err == nil && len(magic) == 2 && magic[0] == 0x1F && magic[1] == 0x9D {
		lz, err := lzw.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("source: .Z signature matched but header invalid: %w", err)
		}

		return openCRINEX(bufio.NewReaderSize(lz, 1<<16))
	}

	return openCRINEX(br)
}

// openCRINEX peeks the first line of br for the CRINEX preamble signature,
// without consuming it if absent, so the plain-RINEX passthrough case never
// loses bytes.
func openCRINEX(br *bufio.Reader) (io.Reader, error) {
	line, err := br.Peek(80)
	if err != nil {
		// A short read (e.g. a short plain-RINEX file) just means the
		// signature cannot be present; fall through to passthrough.
		line, _ = br.Peek(br.Buffered())
	}

	if len(line) >= 80 && string(line[60:80]) == crinexSignature {
		return crinex.NewReader(br)
	}

	return br, nil
}
