package main

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Options carries the resolved, validated command-line configuration for
// one decode run.
type Options struct {
	InFile  string `validate:"required"`
	OutFile string `validate:"required"`
}

func validateOptions(opts *Options) error {
	v := validator.New()

	if err := v.Struct(opts); err != nil {
		var msgs []string

		for _, fe := range err.(validator.ValidationErrors) {
			msgs = append(msgs, fmt.Sprintf("%s failed on %q", fe.Field(), fe.Tag()))
		}

		return fmt.Errorf("invalid options: %s", strings.Join(msgs, "; "))
	}

	return nil
}

// outFileFor derives the default output path the way CRX2RNX does: swap
// the last byte of a .??d/.??D extension to 'o'/'O', or .crx/.CRX to
// .rnx/.RNX.
func outFileFor(inFile string) (string, error) {
	idx := strings.LastIndexByte(inFile, '.')

	if idx < 0 || len(inFile)-1-idx != 3 {
		return "", fmt.Errorf("invalid extension of input file name, expected [.??d], [.??D], [.crx] or [.CRX]")
	}

	switch {
	case inFile[idx+3] == 'd':
		return inFile[:idx+3] + "o", nil
	case inFile[idx+3] == 'D':
		return inFile[:idx+3] + "O", nil
	case inFile[idx+1:] == "crx":
		return inFile[:idx+1] + "rnx", nil
	case inFile[idx+1:] == "CRX":
		return inFile[:idx+1] + "RNX", nil
	default:
		return "", fmt.Errorf("invalid extension of input file name, expected [.??d], [.??D], [.crx] or [.CRX]")
	}
}
