// SPDX-License-Identifier: GPL-3.0-or-later

package afsock

// Unit is the empty input of a pipeline head such as [EndpointFunc],
// whose address is fixed at construction.
type Unit struct{}
