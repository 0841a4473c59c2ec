package reflist

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad_NotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "switch-files.txt"))

	var nf *NotFoundError
	require.True(t, errors.As(err, &nf), "期望 NotFoundError，实际：%T %v", err, err)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoad_ToleratesBlankAndCRLF(t *testing.T) {
	p := filepath.Join(t.TempDir(), "list.txt")
	require.NoError(t, os.WriteFile(p, []byte("override/a.tpc\r\n\r\nmodules/b.rim\n\n"), 0o644))

	l, err := Load(p)
	require.NoError(t, err)
	require.Equal(t, []string{"override/a.tpc", "modules/b.rim"}, l.Entries())

	got, ok := l.Match("A.TPC")
	require.True(t, ok)
	require.Equal(t, "override/a.tpc", got)
}

func TestMatch_SegmentBoundaryOnly(t *testing.T) {
	l := Parse([]byte("override/bigtexture.tpc\nmodules/danm13.rim\n"))

	_, ok := l.Match("texture.tpc")
	require.False(t, ok, "只共享后缀的文件名不能匹配")

	_, ok = l.Match("m13.rim")
	require.False(t, ok)

	got, ok := l.Match("DANM13.RIM")
	require.True(t, ok)
	require.Equal(t, "modules/danm13.rim", got)
}

func TestMatch_RootEntriesNeverMatch(t *testing.T) {
	l := Parse([]byte("dialog.tlk\n"))

	_, ok := l.Match("dialog.tlk")
	require.False(t, ok)
	require.Equal(t, 1, l.Len())
}

func TestMatch_LiteralNotRegexp(t *testing.T) {
	l := Parse([]byte("override/a+b.tga\noverride/axb.tga\n"))

	got, ok := l.Match("a+b.tga")
	require.True(t, ok)
	require.Equal(t, "override/a+b.tga", got)

	_, ok = l.Match("a.b.tga")
	require.False(t, ok)
}

func TestMatch_FirstWinsAndAmbiguousReported(t *testing.T) {
	l := Parse([]byte("override/x.tpc\ntextures/X.tpc\nmodules/y.mod\n"))

	got, ok := l.Match("x.tpc")
	require.True(t, ok)
	require.Equal(t, "override/x.tpc", got)
	require.Equal(t, []string{"x.tpc"}, l.Ambiguous())
}

func TestMatch_RejectsPathLikeNames(t *testing.T) {
	l := Parse([]byte("override/x.tpc\n"))

	_, ok := l.Match("override/x.tpc")
	require.False(t, ok)
	_, ok = l.Match("")
	require.False(t, ok)
}

func TestSameRel(t *testing.T) {
	require.True(t, SameRel("Override/Texture.TPC", "override/texture.tpc"))
	require.False(t, SameRel("texture.tpc", "override/texture.tpc"))
}
