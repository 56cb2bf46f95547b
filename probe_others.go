//go:build !linux && !darwin

// SPDX-License-Identifier: GPL-3.0-or-later

package afsock

// NativeProber returns a [Prober] reporting every capability as absent.
func NativeProber() Prober {
	return ProberFunc(func(Capability) (bool, error) { return false, nil })
}
