// Package partition groups the flat atom list of a docking session into
// rigid bodies, one per chain.
package partition

import (
	"errors"
	"fmt"

	"github.com/molsim/dockenergy/pkg/core"
)

// ErrInvalid is wrapped by every Validate failure.
var ErrInvalid = errors.New("invalid partition")

// Partition maps bodies to contiguous half-open ranges of the flat atom array.
// Offsets has NumBodies()+1 entries, Offsets[0] == 0 and is strictly increasing.
// Atoms is the flat atom-index permutation addressed by the ranges.
type Partition struct {
	Offsets []int
	Atoms   []int
	Names   []string
}

// Build creates one body per non-empty chain, in molecule then chain order.
func Build(molecules []*core.Molecule) Partition {
	p := Partition{Offsets: []int{0}}
	n := 0
	for _, m := range molecules {
		for _, c := range m.Chains {
			count := c.Count()
			if count == 0 {
				continue
			}
			for i := 0; i < count; i++ {
				p.Atoms = append(p.Atoms, n+i)
			}
			n += count
			p.Offsets = append(p.Offsets, n)
			p.Names = append(p.Names, m.Name+":"+c.Name)
		}
	}
	return p
}

// FromSizes creates a partition from body sizes. Used when the host already
// knows its rigid-body layout.
func FromSizes(sizes ...int) (Partition, error) {
	p := Partition{Offsets: []int{0}}
	n := 0
	for i, s := range sizes {
		if s <= 0 {
			return Partition{}, fmt.Errorf("%w: body %d has %d atoms", ErrInvalid, i, s)
		}
		for j := 0; j < s; j++ {
			p.Atoms = append(p.Atoms, n+j)
		}
		n += s
		p.Offsets = append(p.Offsets, n)
		p.Names = append(p.Names, fmt.Sprintf("body%d", i))
	}
	return p, nil
}

// NumBodies returns the number of bodies.
func (p Partition) NumBodies() int {
	if len(p.Offsets) == 0 {
		return 0
	}
	return len(p.Offsets) - 1
}

// NumAtoms returns the number of atoms covered by the partition.
func (p Partition) NumAtoms() int {
	if len(p.Offsets) == 0 {
		return 0
	}
	return p.Offsets[len(p.Offsets)-1]
}

// Range returns the half-open range [start, end) of body b.
func (p Partition) Range(b int) (start, end int) {
	return p.Offsets[b], p.Offsets[b+1]
}

// Size returns the number of atoms in body b.
func (p Partition) Size(b int) int {
	return p.Offsets[b+1] - p.Offsets[b]
}

// BodyOf returns the body owning flat position i, or -1 if out of range.
func (p Partition) BodyOf(i int) int {
	if i < 0 || i >= p.NumAtoms() {
		return -1
	}
	lo, hi := 0, p.NumBodies()
	for lo < hi {
		mid := (lo + hi) / 2
		if p.Offsets[mid+1] <= i {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// CrossPairs returns the number of atom pairs drawn from two different bodies.
func (p Partition) CrossPairs() int {
	total := 0
	seen := 0
	for b := 0; b < p.NumBodies(); b++ {
		s := p.Size(b)
		total += seen * s
		seen += s
	}
	return total
}

// Validate checks that offsets start at zero, are strictly increasing and
// that Atoms is a permutation of the covered indices.
func (p Partition) Validate() error {
	if len(p.Offsets) == 0 || p.Offsets[0] != 0 {
		return fmt.Errorf("%w: offsets must start at 0", ErrInvalid)
	}
	for i := 1; i < len(p.Offsets); i++ {
		if p.Offsets[i] <= p.Offsets[i-1] {
			return fmt.Errorf("%w: offsets not strictly increasing at %d", ErrInvalid, i)
		}
	}
	if len(p.Atoms) != p.NumAtoms() {
		return fmt.Errorf("%w: %d atoms for %d positions", ErrInvalid, len(p.Atoms), p.NumAtoms())
	}
	seen := make([]bool, len(p.Atoms))
	for _, a := range p.Atoms {
		if a < 0 || a >= len(p.Atoms) || seen[a] {
			return fmt.Errorf("%w: atom index %d repeated or out of range", ErrInvalid, a)
		}
		seen[a] = true
	}
	if len(p.Names) != 0 && len(p.Names) != p.NumBodies() {
		return fmt.Errorf("%w: %d names for %d bodies", ErrInvalid, len(p.Names), p.NumBodies())
	}
	return nil
}
