package loader

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// DefaultHexWidth is the number of bits in each hex token.
const DefaultHexWidth = 128

// ErrInvalidWidth is returned for token widths that are not a positive
// multiple of 16.
var ErrInvalidWidth = errors.New("width must be a positive multiple of 16")

// LoadError describes a hex image that could not be read.
type LoadError struct {
	Path string
	Line int
	Err  error
}

func (e *LoadError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %v", e.Path, e.Line, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// LoadHex reads a hex image file. See ParseHex.
func LoadHex(path string, width int) ([]uint16, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	defer func() { _ = f.Close() }()

	halfwords, err := ParseHex(f, width)
	if err != nil {
		var le *LoadError
		if errors.As(err, &le) {
			le.Path = path
			return nil, le
		}
		return nil, &LoadError{Path: path, Err: err}
	}
	return halfwords, nil
}

// ParseHex reads whitespace-separated hex tokens of width bits each and
// returns them as 16-bit halfwords, least significant first within every
// token. Text after // or # is ignored. Tokens may carry a 0x prefix and _
// separators. Short tokens are zero-extended and long tokens keep their
// rightmost digits. A width of 0 selects DefaultHexWidth.
func ParseHex(r io.Reader, width int) ([]uint16, error) {
	if width == 0 {
		width = DefaultHexWidth
	}
	if width < 0 || width%16 != 0 {
		return nil, fmt.Errorf("%w, got %d", ErrInvalidWidth, width)
	}
	digits := width / 4

	var out []uint16
	scanner := bufio.NewScanner(r)
	for lineNo := 1; scanner.Scan(); lineNo++ {
		line := scanner.Text()
		if i := strings.Index(line, "//"); i >= 0 {
			line = line[:i]
		}
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}

		for _, tok := range strings.Fields(line) {
			tok = strings.ReplaceAll(strings.TrimPrefix(strings.ToLower(tok), "0x"), "_", "")
			if tok == "" {
				continue
			}

			switch {
			case len(tok) < digits:
				tok = strings.Repeat("0", digits-len(tok)) + tok
			case len(tok) > digits:
				tok = tok[len(tok)-digits:]
			}

			for end := len(tok); end > 0; end -= 4 {
				v, err := strconv.ParseUint(tok[end-4:end], 16, 16)
				if err != nil {
					return nil, &LoadError{Line: lineNo, Err: fmt.Errorf("invalid hex token %q", tok)}
				}
				out = append(out, uint16(v))
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return out, nil
}
