package tracker

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/scidms/dms/path"
)

func mustParse(t *testing.T, raw string) path.Path {
	p, err := path.Parse(raw)
	require.NoError(t, err)
	return p
}

func TestAddAndResolveAbsolute(t *testing.T) {
	tr := New()
	tr.Add(path.Path{}, "root-id")
	tr.Add(mustParse(t, "cs"), "cs-id")
	tr.Add(mustParse(t, "cs.rve"), "rve-id")

	// zero leading dots, resolved against the root path: nothing is
	// popped, so the reference is looked up as an absolute path.
	id, err := tr.ResolveRelative("cs.rve", path.Path{})
	require.NoError(t, err)
	require.Equal(t, "rve-id", id)
}

func TestResolveRelativeAscends(t *testing.T) {
	tr := New()
	tr.Add(mustParse(t, "cs"), "cs-id")
	tr.Add(mustParse(t, "cs.rve"), "rve-id")
	tr.Add(mustParse(t, "other"), "other-id")

	// from "cs", "." ascends one level to the root, then resolves "other"
	// there.
	id, err := tr.ResolveRelative(".other", mustParse(t, "cs"))
	require.NoError(t, err)
	require.Equal(t, "other-id", id)
}

func TestResolveRelativeUnseenFails(t *testing.T) {
	tr := New()
	tr.Add(mustParse(t, "cs"), "cs-id")

	_, err := tr.ResolveRelative("nope", mustParse(t, "cs"))
	require.Error(t, err)
}

func TestRelativizeSameBranch(t *testing.T) {
	tr := New()
	tr.Add(mustParse(t, "cs"), "cs-id")
	tr.Add(mustParse(t, "cs.rve"), "rve-id")
	tr.Add(mustParse(t, "cs.other"), "other-id")

	ref, ok := tr.Relativize("other-id", mustParse(t, "cs.rve"))
	require.True(t, ok)
	require.Equal(t, ".other", ref)
}

func TestRelativizeUnknownID(t *testing.T) {
	tr := New()
	_, ok := tr.Relativize("nope", mustParse(t, "cs"))
	require.False(t, ok)
}

func TestRelativizeDescendantOfCurrent(t *testing.T) {
	tr := New()
	tr.Add(mustParse(t, "cs"), "cs-id")
	tr.Add(mustParse(t, "cs.rve"), "rve-id")

	ref, ok := tr.Relativize("rve-id", mustParse(t, "cs"))
	require.True(t, ok)
	require.Equal(t, "rve", ref)
}
