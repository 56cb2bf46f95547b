// SPDX-License-Identifier: GPL-3.0-or-later

package afsock

// NewEndpointFunc returns a [Func] that always returns the given [Address].
//
// This is a convenience wrapper around [ConstFunc] for the common case of
// injecting a socket address into a pipeline.
func NewEndpointFunc(endpoint Address) Func[Unit, Address] {
	return ConstFunc(endpoint)
}
