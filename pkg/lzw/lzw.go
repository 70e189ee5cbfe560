// Package lzw decodes the variable-width, block-mode LZW stream produced by
// the classic Unix compress(1) utility (the ".Z" format).
//
// Reference:
//  1. GNU Gzip 1.13, ncompress's decompress.c
//  2. gpstk's ZStreamBuf (HSIZE sizing, htab/codetab layout)
package lzw

import (
	"errors"
	"io"
)

const (
	magicByte1 = 0x1F
	magicByte2 = 0x9D
	reservedBitsMask = 0x60
	codeBitsMask     = 0x1F

	// MinBits and MaxBits bound the code width the header may declare.
	MinBits = 9
	MaxBits = 16

	blockModeFlag = 0x80

	// HSIZE is the size of the string tables. The original C decoder sizes
	// htab/codetab to 1<<17 even though codes never exceed 1<<MaxBits; this
	// module keeps that sizing for literal fidelity (see DESIGN.md).
	HSIZE = 1 << 17

	clearCode = 256
	firstFreeBlockMode   = 257
	firstFreeNoBlockMode = 256

	inBufSize   = 1 << 18
	inBufExtra  = 64
	outBufSize  = 1 << 18
	outBufExtra = 2048
)

// ErrCorrupt reports that the LZW code stream did not satisfy the invariants
// described in spec.md §4.3/§7. A malformed .Z header is reported by
// NewReader with its own error, not ErrCorrupt.
var ErrCorrupt = errors.New("lzw: corrupt compressed stream")

// Reader is a pull-based, resumable LZW (compress/.Z) decoder. It implements
// io.Reader: any number of upstream reads may occur inside a single call to
// Read, but the state needed to resume before the next code, or immediately
// after a code-width change, always survives across calls (Property 2).
type Reader struct {
	src io.Reader
	err error

	// MaxBits and BlockMode are read from the 3-byte .Z header.
	MaxBits   byte
	BlockMode bool

	// input side: a byte-addressed buffer with a running bit offset.
	inBuf     [inBufSize + inBufExtra]byte
	inLen     int32
	posBit    int32 // bit offset of the next code to decode
	bitsValid int32 // posBit may advance up to this bit offset before refill

	// output side: bytes decoded but not yet delivered to Read.
	outBuf [outBufSize + outBufExtra]byte
	outLen int32
	outPos int32

	// string tables. prefix[c] is the code whose string, followed by
	// suffix[c], forms the string for code c (c >= firstFree).
	prefix [HSIZE]uint16
	suffix [HSIZE]byte

	nBits      uint32
	mask       uint32
	maxCode    int64
	maxMaxCode int64
	freeEnt    int64

	oldCode int64 // code emitted on the previous iteration, -1 if none yet
	final   int64 // first byte of oldCode's string (the KwKwK byte)

	needRefill bool
}

// NewReader constructs a decoder reading the .Z-framed stream from r. The
// 3-byte header is consumed immediately; a malformed header is a fatal
// framing error (spec.md §7 case 1).
func NewReader(r io.Reader) (*Reader, error) {
	z := &Reader{src: r, oldCode: -1, needRefill: true}

	if err := z.readHeader(); err != nil {
		return nil, err
	}

	for i := 0; i < 256; i++ {
		z.suffix[i] = byte(i)
	}

	z.nBits = MinBits
	z.mask = (1 << z.nBits) - 1
	z.maxCode = (1 << z.nBits) - 1
	z.maxMaxCode = 1 << z.MaxBits

	if z.BlockMode {
		z.freeEnt = firstFreeBlockMode
	} else {
		z.freeEnt = firstFreeNoBlockMode
	}

	return z, nil
}

// readHeader fills inBuf with as much of the stream as is immediately
// available (not just the 3 header bytes) and leaves posBit pointing just
// past the header, inside that same buffer. unlzw's normal slide-and-refill
// logic then picks up from there — mirroring the original C decoder, which
// never discards bytes it has already read.
func (z *Reader) readHeader() error {
	n, err := io.ReadFull(z.src, z.inBuf[:inBufSize])
	if n < 3 || (err != nil && err != io.EOF && err != io.ErrUnexpectedEOF) {
		return errors.New("lzw: truncated .Z header")
	}

	if z.inBuf[0] != magicByte1 || z.inBuf[1] != magicByte2 {
		return errors.New("lzw: bad magic bytes, not a .Z stream")
	}

	if z.inBuf[2]&reservedBitsMask != 0 {
		return errors.New("lzw: reserved flag bits set in .Z header")
	}

	z.MaxBits = z.inBuf[2] & codeBitsMask
	if z.MaxBits < MinBits || z.MaxBits > MaxBits {
		return errors.New("lzw: maxbits out of range in .Z header")
	}

	z.BlockMode = z.inBuf[2]&blockModeFlag != 0
	z.inLen, z.posBit = int32(n), 3<<3
	return nil
}

func (z *Reader) clearTable() {
	for i := 0; i < 256; i++ {
		z.prefix[i] = 0
	}
}

// Read implements io.Reader. It drains the decoded buffer, refilling it with
// unlzw as necessary, and never blocks except on reads from the upstream
// source (spec.md §5).
func (z *Reader) Read(p []byte) (int, error) {
	if z.err != nil && z.err != io.EOF {
		return 0, z.err
	}

	n := 0
	for n < len(p) {
		for z.outPos < z.outLen && n < len(p) {
			p[n] = z.outBuf[z.outPos]
			n++
			z.outPos++
		}

		if (z.err != nil && z.err != io.EOF) || (z.err == io.EOF && z.posBit >= z.bitsValid) {
			break
		}

		if n < len(p) {
			z.outLen, z.outPos = 0, 0
			z.unlzw()
		}
	}

	if z.outLen-z.outPos > 0 && z.err == io.EOF {
		return n, nil
	}

	return n, z.err
}

// unlzw decodes as much as fits into outBuf, then returns. It is re-entrant:
// on the next call it resumes exactly where it left off, whether that is
// mid-code-stream or immediately after a width change/clear code. The
// stack-pop loop always runs to completion within one call: a string that
// would not fit in outBuf is undone and decoded again on the next call, so
// the only resume points are "before the next code" and "before the next
// refill".
func (z *Reader) unlzw() {
	var code, rawCode, prevFinal int64
	var stack []byte

refill:
	for n := int(z.inLen); n > 0; {
		if z.needRefill {
			// slide unread tail bytes to the front, then top up.
			consumed := z.posBit >> 3
			var remain int32
			if consumed <= z.inLen {
				remain = z.inLen - consumed
			}

			for i := int32(0); i < remain; i++ {
				z.inBuf[i] = z.inBuf[i+consumed]
			}

			z.inLen = remain
			z.posBit = 0

			if z.inLen < inBufExtra {
				var readErr error
				n, readErr = z.src.Read(z.inBuf[z.inLen : z.inLen+inBufSize])
				z.inLen += int32(n)

				if readErr != nil && readErr != io.EOF {
					z.err = readErr
					return
				}

				if readErr == io.EOF {
					z.err = io.EOF
				}
			}

			if n != 0 {
				z.bitsValid = (z.inLen - z.inLen%int32(z.nBits)) << 3
			} else {
				z.bitsValid = (z.inLen << 3) - int32(z.nBits-1)
			}
		}

		for z.posBit < z.bitsValid {
			if z.freeEnt > z.maxCode {
				z.alignToCodeBoundary()
				z.nBits++

				if z.nBits == uint32(z.MaxBits) {
					z.maxCode = z.maxMaxCode
				} else {
					z.maxCode = (1 << z.nBits) - 1
				}

				z.mask = (1 << z.nBits) - 1
				z.needRefill = true
				continue refill
			}

			byteOff := z.posBit >> 3
			code = ((int64(z.inBuf[byteOff]) | int64(z.inBuf[byteOff+1])<<8 | int64(z.inBuf[byteOff+2])<<16) >>
				int64(z.posBit&0x7)) & int64(z.mask)
			z.posBit += int32(z.nBits)

			if z.oldCode == -1 {
				if code >= 256 {
					z.err = ErrCorrupt
					return
				}

				z.oldCode, z.final = code, code
				z.outBuf[z.outLen] = byte(code)
				z.outLen++
				continue
			}

			if code == clearCode && z.BlockMode {
				z.clearTable()
				z.freeEnt = firstFreeBlockMode - 1
				z.alignToCodeBoundary()
				z.nBits = MinBits
				z.mask = (1 << z.nBits) - 1
				z.maxCode = (1 << z.nBits) - 1
				z.needRefill = true
				continue refill
			}

			rawCode = code
			stack = stack[:0]

			// KwKwK special case: the code names a string that has not yet
			// been linked into the table (it is being defined right now).
			if code >= z.freeEnt {
				if code > z.freeEnt {
					z.err = ErrCorrupt
					return
				}

				stack = append(stack, byte(z.final))
				code = z.oldCode
			}

			for code >= 256 {
				stack = append(stack, z.suffix[code])
				code = int64(z.prefix[code])
			}

			prevFinal = z.final
			z.final = int64(z.suffix[code])
			stack = append(stack, byte(z.final))

			if z.outLen+int32(len(stack)) >= outBufSize {
				z.posBit -= int32(z.nBits)
				z.final = prevFinal
				z.needRefill = false
				return
			}

			if z.freeEnt < z.maxMaxCode {
				z.prefix[z.freeEnt] = uint16(z.oldCode)
				z.suffix[z.freeEnt] = byte(z.final)
				z.freeEnt++
			}

			z.oldCode = rawCode

			for i := len(stack) - 1; i >= 0; i-- {
				z.outBuf[z.outLen] = stack[i]
				z.outLen++
			}
		}

		z.needRefill = true
	}
}

func (z *Reader) alignToCodeBoundary() {
	width := int32(z.nBits) << 3
	z.posBit = (z.posBit - 1) + width - (z.posBit-1+width)%width
}
