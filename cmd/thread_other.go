//go:build !linux

package cmd

// osThreadID is not available on this platform
func osThreadID() int {
	return -1
}
