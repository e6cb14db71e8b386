// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package ex

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

var errSentinel = errors.New("sentinel")

func TestError(t *testing.T) {
	err := Newf("a")
	err = Wrapf(err, "b")
	err = Wrap(Wrap(Wrap(err)))
	require.Contains(t, err.Error(), "a")
	require.Contains(t, err.Error(), "b")
	require.NotEmpty(t, Stack(err))

	err = fmt.Errorf("c")
	err = Wrapf(err, "d")
	err = Wrapf(err, "e")
	require.Contains(t, err.Error(), "c")
	require.Contains(t, err.Error(), "d")
	require.Contains(t, err.Error(), "e")
}

func TestWrapKeepsSentinel(t *testing.T) {
	err := Wrapf(errSentinel, "building policy %q", "http")
	require.ErrorIs(t, err, errSentinel)
	require.Equal(t, `building policy "http": sentinel`, err.Error())
}

func TestWrapNil(t *testing.T) {
	require.NoError(t, Wrap(nil))
	require.NoError(t, Wrapf(nil, "x"))
	require.Nil(t, Stack(errSentinel))
}
