package field

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// GradientMagnitude returns |∇f| of slot t using unit-spacing central
// differences (one-sided on the faces). It returns nil for an invalid slot.
func (s *Simulator) GradientMagnitude(t int) []float64 {
	if !s.validSlot(t) {
		return nil
	}
	n := s.size
	src := s.slot(t)
	out := make([]float64, len(src))
	strides := [3]int{n * n, n, 1}
	for x := 0; x < n; x++ {
		for y := 0; y < n; y++ {
			for z := 0; z < n; z++ {
				idx := (x*n+y)*n + z
				coord := [3]int{x, y, z}
				var sq float64
				for axis, stride := range strides {
					g := axisDifference(src, idx, coord[axis], n, stride)
					sq += g * g
				}
				out[idx] = math.Sqrt(sq)
			}
		}
	}
	return out
}

func axisDifference(src []float64, idx, pos, n, stride int) float64 {
	switch pos {
	case 0:
		return src[idx+stride] - src[idx]
	case n - 1:
		return src[idx] - src[idx-stride]
	default:
		return (src[idx+stride] - src[idx-stride]) / 2
	}
}

// SpectrumMagnitude returns the magnitudes of the unnormalised 3-D discrete
// Fourier transform of slot t, computed as separable 1-D transforms. It
// returns nil for an invalid slot.
func (s *Simulator) SpectrumMagnitude(t int) []float64 {
	if !s.validSlot(t) {
		return nil
	}
	n := s.size
	src := s.slot(t)
	buf := make([]complex128, len(src))
	for i, v := range src {
		buf[i] = complex(v, 0)
	}

	fft := fourier.NewCmplxFFT(n)
	line := make([]complex128, n)
	coeffs := make([]complex128, n)
	for _, stride := range []int{1, n, n * n} {
		for start := range buf {
			if (start/stride)%n != 0 {
				continue
			}
			for k := 0; k < n; k++ {
				line[k] = buf[start+k*stride]
			}
			fft.Coefficients(coeffs, line)
			for k := 0; k < n; k++ {
				buf[start+k*stride] = coeffs[k]
			}
		}
	}

	out := make([]float64, len(buf))
	for i, c := range buf {
		out[i] = cmplx.Abs(c)
	}
	return out
}

// Digest hashes the current slot down-sampled by two along each spatial axis.
func (s *Simulator) Digest() string {
	return s.SlotDigest(s.current)
}

// SlotDigest hashes slot t down-sampled by two along each spatial axis. An
// invalid slot hashes to the digest of an empty input.
func (s *Simulator) SlotDigest(t int) string {
	h := sha256.New()
	if s.validSlot(t) {
		n := s.size
		src := s.slot(t)
		var word [8]byte
		for x := 0; x < n; x += 2 {
			for y := 0; y < n; y += 2 {
				for z := 0; z < n; z += 2 {
					binary.LittleEndian.PutUint64(word[:], math.Float64bits(src[(x*n+y)*n+z]))
					h.Write(word[:])
				}
			}
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}
