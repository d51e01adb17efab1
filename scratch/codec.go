package scratch

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/wgdzlh/geovrt/raster"
)

const magic = "GVRA"

type header struct {
	Magic         [4]byte
	Width, Height uint32
	Complex       uint8
}

// EncodeArray writes a as little endian float64 planes.
func EncodeArray(w io.Writer, a *raster.Array) (err error) {
	bw := bufio.NewWriter(w)
	h := header{Width: uint32(a.Width), Height: uint32(a.Height)}
	copy(h.Magic[:], magic)
	if a.IsComplex() {
		h.Complex = 1
	}
	if err = binary.Write(bw, binary.LittleEndian, h); err != nil {
		return
	}
	if err = binary.Write(bw, binary.LittleEndian, a.Re); err != nil {
		return
	}
	if a.IsComplex() {
		if err = binary.Write(bw, binary.LittleEndian, a.Im); err != nil {
			return
		}
	}
	return bw.Flush()
}

func DecodeArray(r io.Reader) (a *raster.Array, err error) {
	var h header
	br := bufio.NewReader(r)
	if err = binary.Read(br, binary.LittleEndian, &h); err != nil {
		return
	}
	if string(h.Magic[:]) != magic {
		return nil, fmt.Errorf("scratch: bad array header %q", h.Magic[:])
	}
	n := uint64(h.Width) * uint64(h.Height)
	if n > math.MaxInt32 {
		return nil, fmt.Errorf("scratch: array %dx%d too large", h.Width, h.Height)
	}
	a = raster.NewArray(int(h.Width), int(h.Height))
	if err = binary.Read(br, binary.LittleEndian, a.Re); err != nil {
		return nil, err
	}
	if h.Complex == 1 {
		a.Im = make([]float64, n)
		if err = binary.Read(br, binary.LittleEndian, a.Im); err != nil {
			return nil, err
		}
	}
	return
}

// EncodedSize is the number of bytes EncodeArray writes for a.
func EncodedSize(a *raster.Array) int {
	planes := 1
	if a.IsComplex() {
		planes = 2
	}
	return binary.Size(header{}) + planes*8*a.Len()
}

// PutArray encodes and stores a under key.
func PutArray(ctx context.Context, s Store, key string, a *raster.Array) error {
	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(EncodeArray(pw, a))
	}()
	err := s.Put(ctx, key, pr)
	pr.CloseWithError(err)
	return err
}

func GetArray(ctx context.Context, s Store, key string) (*raster.Array, error) {
	rc, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return DecodeArray(rc)
}
