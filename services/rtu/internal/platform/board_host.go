//go:build !rp2040 && !rp2350

package platform

// Default is the host board: every port is simulated.
func Default() Board { return NewSimBoard() }
