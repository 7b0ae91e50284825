//go:build !purego

package kernel

const acceleratedBuild = true
