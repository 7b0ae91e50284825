//go:build purego

package kernel

// Builds tagged purego ship only the portable kernel.
const acceleratedBuild = false
