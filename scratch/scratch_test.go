package scratch

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/wgdzlh/geovrt/raster"
)

func roundTrip(t *testing.T, s Store) {
	ctx := context.Background()
	a := raster.NewComplex(3, 2)
	for i := range a.Re {
		a.Re[i], a.Im[i] = float64(i), -float64(i)
	}
	if err := PutArray(ctx, s, "k1", a); err != nil {
		t.Fatal(err)
	}
	b, err := GetArray(ctx, s, "k1")
	if err != nil {
		t.Fatal(err)
	}
	if !b.SameShape(a) || !b.IsComplex() || b.Re[5] != 5 || b.Im[5] != -5 {
		t.Fatalf("%s: decoded %+v", s.Driver(), b)
	}
	ok, err := s.Delete(ctx, "k1")
	if err != nil || !ok {
		t.Fatalf("%s: delete %v %v", s.Driver(), ok, err)
	}
	if ok, _ = s.Delete(ctx, "k1"); ok {
		t.Fatalf("%s: second delete reported existing key", s.Driver())
	}
	if _, err = s.Get(ctx, "k1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("%s: expected ErrNotFound, got %v", s.Driver(), err)
	}
}

func TestMemory(t *testing.T) {
	s := NewMemory()
	roundTrip(t, s)
	if s.Len() != 0 {
		t.Fatal("entries leaked")
	}
}

func TestFS(t *testing.T) {
	s, err := NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	roundTrip(t, s)
	if _, err = s.path("../x"); err == nil {
		t.Fatal("traversal accepted")
	}
	if err = s.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err = os.Stat(s.Dir()); !os.IsNotExist(err) {
		t.Fatal("directory not removed")
	}
}

func TestDecodeBadHeader(t *testing.T) {
	s := NewMemory()
	_ = s.Put(context.Background(), "junk", strings.NewReader("not an array at all"))
	if _, err := GetArray(context.Background(), s, "junk"); err == nil {
		t.Fatal("expected header error")
	}
}
