package kernel

import "github.com/molsim/dockenergy/pkg/core"

// PortableName identifies the single-goroutine kernel.
const PortableName = "portable"

// Portable is the reference single-goroutine kernel. It is always available.
type Portable struct {
	in Inputs
}

// NewPortable validates the inputs and returns a portable kernel.
func NewPortable(in Inputs) (*Portable, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	return &Portable{in: in}, nil
}

// Name implements Kernel.
func (k *Portable) Name() string {
	return PortableName
}

// Compute sums every cross-body pair with bi < bj; same-body pairs are never visited.
func (k *Portable) Compute(s core.Snapshot) (Result, error) {
	if err := k.in.checkSnapshot(s); err != nil {
		return Result{}, err
	}

	var elec, vdw float64
	var pairs int
	n := k.in.Partition.NumBodies()
	for bi := 0; bi < n-1; bi++ {
		from, to := k.in.Partition.Range(bi)
		for bj := bi + 1; bj < n; bj++ {
			e, v, p := k.in.rows(s, from, to, bj)
			elec += e
			vdw += v
			pairs += p
		}
	}
	return toResult(elec, vdw, pairs), nil
}
