package kernel

import (
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/molsim/dockenergy/pkg/core"
)

// AcceleratedName identifies the parallel kernel.
const AcceleratedName = "accelerated"

// ErrAcceleratedUnavailable is returned when the parallel kernel cannot be used.
var ErrAcceleratedUnavailable = errors.New("accelerated kernel unavailable")

// job is a block of rows of body bi evaluated against body bj.
type job struct {
	from, to int
	bj       int
}

type partial struct {
	elec, vdw float64
	pairs     int
}

// Accelerated splits the body-pair double loop into row blocks evaluated by a
// fixed set of goroutines. Partial sums are reduced in job order so repeated
// passes over the same snapshot give identical results.
type Accelerated struct {
	in       Inputs
	workers  int
	jobs     []job
	partials []partial
}

// NewAccelerated builds the job list and runs one probe pass on zero
// coordinates. Any failure means the kernel is unavailable on this host.
func NewAccelerated(in Inputs, workers int) (k *Accelerated, err error) {
	if !acceleratedBuild {
		return nil, fmt.Errorf("%w: built without parallel kernel", ErrAcceleratedUnavailable)
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers < 2 {
		return nil, fmt.Errorf("%w: only %d worker", ErrAcceleratedUnavailable, workers)
	}
	if in.Partition.NumBodies() < 2 {
		return nil, fmt.Errorf("%w: fewer than two bodies", ErrAcceleratedUnavailable)
	}

	k = &Accelerated{in: in, workers: workers}
	k.jobs = splitJobs(in, workers)
	k.partials = make([]partial, len(k.jobs))

	defer func() {
		if r := recover(); r != nil {
			k, err = nil, fmt.Errorf("%w: probe panicked: %v", ErrAcceleratedUnavailable, r)
		}
	}()
	if _, err := k.Compute(make(core.Snapshot, in.Partition.NumAtoms())); err != nil {
		return nil, fmt.Errorf("%w: probe failed: %w", ErrAcceleratedUnavailable, err)
	}
	return k, nil
}

// splitJobs cuts the outer rows of every body pair into about 4 blocks per worker.
func splitJobs(in Inputs, workers int) []job {
	part := in.Partition
	n := part.NumBodies()
	total := 0
	for bi := 0; bi < n-1; bi++ {
		total += part.Size(bi) * (n - 1 - bi)
	}
	block := total / (workers * 4)
	if block < 1 {
		block = 1
	}

	var jobs []job
	for bi := 0; bi < n-1; bi++ {
		from, to := part.Range(bi)
		for bj := bi + 1; bj < n; bj++ {
			for f := from; f < to; f += block {
				t := f + block
				if t > to {
					t = to
				}
				jobs = append(jobs, job{from: f, to: t, bj: bj})
			}
		}
	}
	return jobs
}

// Name implements Kernel.
func (k *Accelerated) Name() string {
	return AcceleratedName
}

// Workers returns the number of goroutines used per pass.
func (k *Accelerated) Workers() int {
	return k.workers
}

// Compute implements Kernel. It is not safe for concurrent use; a session
// owns one kernel and runs one pass at a time.
func (k *Accelerated) Compute(s core.Snapshot) (Result, error) {
	if err := k.in.checkSnapshot(s); err != nil {
		return Result{}, err
	}

	next := make(chan int, len(k.jobs))
	for i := range k.jobs {
		next <- i
	}
	close(next)

	var wg sync.WaitGroup
	for w := 0; w < k.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range next {
				j := k.jobs[i]
				e, v, p := k.in.rows(s, j.from, j.to, j.bj)
				k.partials[i] = partial{elec: e, vdw: v, pairs: p}
			}
		}()
	}
	wg.Wait()

	var elec, vdw float64
	var pairs int
	for _, p := range k.partials {
		elec += p.elec
		vdw += p.vdw
		pairs += p.pairs
	}
	return toResult(elec, vdw, pairs), nil
}
