package field

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"
)

const (
	containerVersion = 1
	// maxContainerValues bounds allocations when decoding untrusted input.
	maxContainerValues = 1 << 28
)

var containerMagic = [4]byte{'N', 'R', 'X', 'F'}

// ErrBadContainer reports a field container that cannot be decoded.
var ErrBadContainer = errors.New("malformed field container")

type containerHeader struct {
	Magic     [4]byte
	Version   uint16
	_         uint16
	TimeSteps uint32
	Size      uint32
	Current   uint32
}

// Encode writes the field as a binary container: a fixed header, the values
// as little-endian float64 and a CRC-32 trailer over both.
func (s *Simulator) Encode(w io.Writer) error {
	sum := crc32.NewIEEE()
	mw := io.MultiWriter(w, sum)

	header := containerHeader{
		Magic:     containerMagic,
		Version:   containerVersion,
		TimeSteps: uint32(s.timeSteps),
		Size:      uint32(s.size),
		Current:   uint32(s.current),
	}
	if err := binary.Write(mw, binary.LittleEndian, header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := binary.Write(mw, binary.LittleEndian, s.data); err != nil {
		return fmt.Errorf("write values: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, sum.Sum32()); err != nil {
		return fmt.Errorf("write checksum: %w", err)
	}
	return nil
}

// Decode reads a container written by Encode into a new simulator drawing
// from rng.
func Decode(r io.Reader, rng *RNG) (*Simulator, error) {
	sum := crc32.NewIEEE()
	tr := io.TeeReader(r, sum)

	var header containerHeader
	if err := binary.Read(tr, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrBadContainer, err)
	}
	if header.Magic != containerMagic {
		return nil, fmt.Errorf("%w: bad magic", ErrBadContainer)
	}
	if header.Version != containerVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrBadContainer, header.Version)
	}
	size, timeSteps := int(header.Size), int(header.TimeSteps)
	if size < 2 || timeSteps < 1 || int(header.Current) >= timeSteps {
		return nil, fmt.Errorf("%w: bad shape (%d, %d)", ErrBadContainer, timeSteps, size)
	}
	if uint64(timeSteps)*uint64(size)*uint64(size)*uint64(size) > maxContainerValues {
		return nil, fmt.Errorf("%w: shape (%d, %d) too large", ErrBadContainer, timeSteps, size)
	}

	sim, err := New(size, timeSteps, rng)
	if err != nil {
		return nil, err
	}
	if err := binary.Read(tr, binary.LittleEndian, sim.data); err != nil {
		return nil, fmt.Errorf("%w: values: %v", ErrBadContainer, err)
	}
	expected := sum.Sum32()
	var stored uint32
	if err := binary.Read(r, binary.LittleEndian, &stored); err != nil {
		return nil, fmt.Errorf("%w: checksum: %v", ErrBadContainer, err)
	}
	if stored != expected {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrBadContainer)
	}
	sim.current = int(header.Current)
	return sim, nil
}

// Save writes the field container to path.
func (s *Simulator) Save(path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := f.Close(); err == nil {
			err = closeErr
		}
	}()

	w := bufio.NewWriter(f)
	if err := s.Encode(w); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return f.Sync()
}

// Load replaces the field with the container stored at path. The shape is
// taken from the container. On failure the simulator is left unchanged.
func (s *Simulator) Load(path string) error {
	loaded, err := LoadFile(path, s.rng)
	if err != nil {
		return err
	}
	s.size = loaded.size
	s.timeSteps = loaded.timeSteps
	s.data = loaded.data
	s.current = loaded.current
	return nil
}

// LoadFile decodes the container stored at path into a new simulator.
func LoadFile(path string, rng *RNG) (*Simulator, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sim, err := Decode(bufio.NewReader(f), rng)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return sim, nil
}
