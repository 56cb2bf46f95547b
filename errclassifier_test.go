// SPDX-License-Identifier: GPL-3.0-or-later

package afsock

import (
	"context"
	"errors"
	"syscall"
	"testing"

	"github.com/bassosimone/errclass"
	"github.com/stretchr/testify/assert"
)

// Make sure the default classifier maps errors like errclass does.
func TestDefaultErrClassifier(t *testing.T) {
	// Should return empty string for nil error
	result := DefaultErrClassifier.Classify(nil)
	assert.Equal(t, "", result)

	// Should classify known errors using errclass
	result = DefaultErrClassifier.Classify(context.DeadlineExceeded)
	assert.Equal(t, errclass.ETIMEDOUT, result)

	// Should classify socket errors using their errno
	result = DefaultErrClassifier.Classify(&SocketError{
		Kind: ErrConnectionRefused, Op: "connect", Family: FamilyUnix, Errno: syscall.ECONNREFUSED, Err: syscall.ECONNREFUSED})
	assert.Equal(t, errclass.ECONNREFUSED, result)

	// Should return EGENERIC for unknown errors
	result = DefaultErrClassifier.Classify(errors.New("unknown error"))
	assert.Equal(t, errclass.EGENERIC, result)
}
