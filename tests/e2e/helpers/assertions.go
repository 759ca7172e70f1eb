// Package helpers provides browser, intercept and polling utilities for the
// portal e2e suite.
package helpers

import (
	"testing"

	"github.com/JustAProjectacc/climate-data-extraction-tool/internal/poll"
	"github.com/stretchr/testify/require"
)

// WaitUntil polls probe with cfg and fails the test when it times out.
func WaitUntil[T any](t *testing.T, probe poll.Probe[T], cfg poll.Config) T {
	t.Helper()
	v, err := poll.Until(t.Context(), probe, cfg)
	require.NoError(t, err, "condition %q not met", cfg.Name)
	return v
}
