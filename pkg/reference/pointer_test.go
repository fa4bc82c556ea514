package reference_test

import (
	"testing"

	"github.com/brickingsoft/seal/pkg/reference"
)

type closer struct {
	closed int
}

func (c *closer) Close() error {
	c.closed++
	return nil
}

func TestPointer(t *testing.T) {
	c := &closer{}
	p := reference.Make[*closer](c)
	if err := p.Retain(); err != nil {
		t.Fatal(err)
	}
	if p.Count() != 2 {
		t.Fatal("count:", p.Count())
	}
	if err := p.Release(); err != nil {
		t.Fatal(err)
	}
	if c.closed != 0 {
		t.Fatal("closed too early")
	}
	if err := p.Release(); err != nil {
		t.Fatal(err)
	}
	if c.closed != 1 {
		t.Fatal("closed:", c.closed)
	}
	if err := p.Release(); err == nil {
		t.Fatal("expected error after last release")
	}
	if c.closed != 1 {
		t.Fatal("value closed more than once")
	}
	if err := p.Retain(); err == nil {
		t.Fatal("expected retain failure after release")
	}
}
