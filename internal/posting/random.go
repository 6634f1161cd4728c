package posting

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math/big"
)

// ErrRandomSource marks failures of the random source. They are fatal for a
// run: the scheduler never falls back to a fixed value.
var ErrRandomSource = errors.New("random source failure")

// RandomSource supplies the draws used by the scheduler and the bot.
type RandomSource interface {
	// Float64 returns a uniform value in [0,1).
	Float64() (float64, error)
	// IntN returns a uniform value in [0,n). n must be > 0.
	IntN(n int) (int, error)
}

// NewCryptoSource returns a RandomSource backed by crypto/rand.
func NewCryptoSource() RandomSource { return readerSource{r: rand.Reader} }

// NewReaderSource builds a RandomSource on top of r. Reads must return
// uniformly random bytes.
func NewReaderSource(r io.Reader) RandomSource { return readerSource{r: r} }

type readerSource struct{ r io.Reader }

func (s readerSource) Float64() (float64, error) {
	var b [8]byte
	if _, err := io.ReadFull(s.r, b[:]); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRandomSource, err)
	}
	// 53 random bits give a uniform float in [0,1).
	return float64(binary.BigEndian.Uint64(b[:])>>11) / (1 << 53), nil
}

func (s readerSource) IntN(n int) (int, error) {
	if n <= 0 {
		return 0, fmt.Errorf("%w: IntN(%d)", ErrRandomSource, n)
	}
	v, err := rand.Int(s.r, big.NewInt(int64(n)))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRandomSource, err)
	}
	return int(v.Int64()), nil
}
