//go:build !linux && !darwin

// SPDX-License-Identifier: GPL-3.0-or-later

package afsock

// ResolveSystemAddress resolves a kernel-control name. AF_SYSTEM only
// exists on Darwin.
func ResolveSystemAddress(name string, unit uint32) (SystemAddress, error) {
	return SystemAddress{}, newError(ErrAddressFamilyUnavailable, "resolve", FamilySystem, nil)
}
