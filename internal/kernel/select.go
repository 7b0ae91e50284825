package kernel

import (
	"log/slog"
)

// Options controls kernel selection.
type Options struct {
	// Accelerated enables probing for the parallel kernel.
	Accelerated bool
	// Workers is the goroutine count of the parallel kernel; 0 means GOMAXPROCS.
	Workers int
	// Accelerator overrides the parallel kernel constructor.
	Accelerator func(in Inputs) (Kernel, error)
}

// Select returns the accelerated kernel when it can be constructed, and the
// portable kernel otherwise. The choice holds for the whole session.
func Select(in Inputs, opts Options, logger *slog.Logger) (Kernel, error) {
	if logger == nil {
		logger = slog.Default()
	}

	portable, err := NewPortable(in)
	if err != nil {
		return nil, err
	}
	if !opts.Accelerated {
		logger.Info("Using portable implementation of energy calculation routine")
		return portable, nil
	}

	ctor := opts.Accelerator
	if ctor == nil {
		ctor = func(in Inputs) (Kernel, error) {
			return NewAccelerated(in, opts.Workers)
		}
	}

	k, err := ctor(in)
	if err != nil {
		logger.Info("Using portable implementation of energy calculation routine", "reason", err)
		return portable, nil
	}
	logger.Info("Using accelerated implementation of energy calculation routine", "kernel", k.Name())
	return k, nil
}
