package restructure

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/John-Robertt/ksm/internal/domain"
	"github.com/John-Robertt/ksm/internal/profile"
)

func TestMoveOverrideFileType(t *testing.T) {
	override := filepath.Join(t.TempDir(), "override")
	touch(t, filepath.Join(override, "appearance.2da"))
	touch(t, filepath.Join(override, "FEAT.2DA"))
	touch(t, filepath.Join(override, "x.gui"))
	touch(t, filepath.Join(override, "nested", "deep.2da"))

	c, err := MoveOverrideFileType(override, "2da", "2DA")
	require.NoError(t, err)
	require.Equal(t, domain.Counts{Found: 2, Moved: 2}, c)

	c, err = MoveOverrideFileType(override, "gui", "xbox_gui")
	require.NoError(t, err)
	require.Equal(t, 1, c.Moved)

	require.Equal(t, []string{
		"2DA/FEAT.2DA",
		"2DA/appearance.2da",
		"nested/deep.2da",
		"xbox_gui/x.gui",
	}, tree(t, override))
}

func TestMoveOverrideFileType_MissingOverride(t *testing.T) {
	c, err := MoveOverrideFileType(filepath.Join(t.TempDir(), "override"), "2da", "2da")
	require.NoError(t, err)
	require.Equal(t, domain.Counts{}, c)
}

func k1Localization(t *testing.T) profile.Localization {
	t.Helper()
	p, err := profile.ForEdition(1)
	require.NoError(t, err)
	return p.Localization
}

func k2Localization(t *testing.T) profile.Localization {
	t.Helper()
	p, err := profile.ForEdition(2)
	require.NoError(t, err)
	return p.Localization
}

func TestMoveLocalizedFiles_K1(t *testing.T) {
	tests := []struct {
		name string
		lang string
		want []string
	}{
		{name: "en 不动", lang: "en", want: []string{"dialog.tlk", "streamwaves/a.wav"}},
		{name: "fr 文件与语音目录都改名", lang: "fr", want: []string{"dialogfr.tlk", "streamwavesfr/a.wav"}},
		{name: "de 文件与语音目录都改名", lang: "de", want: []string{"dialogde.tlk", "streamwavesde/a.wav"}},
		{name: "it 只改对白文件", lang: "it", want: []string{"dialogit.tlk", "streamwaves/a.wav"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			touch(t, filepath.Join(root, "dialog.tlk"))
			touch(t, filepath.Join(root, "streamwaves", "a.wav"))

			_, err := MoveLocalizedFiles(root, tt.lang, k1Localization(t))
			require.NoError(t, err)
			require.Equal(t, tt.want, tree(t, root))
		})
	}
}

func TestMoveLocalizedFiles_K1CaseInsensitiveLookup(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "DIALOG.TLK"))

	c, err := MoveLocalizedFiles(root, "es", k1Localization(t))
	require.NoError(t, err)
	require.Equal(t, 1, c.Moved)
	require.Equal(t, []string{"dialoges.tlk"}, tree(t, root))
}

func TestMoveLocalizedFiles_K2(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "Docs", "readme.txt"))
	touch(t, filepath.Join(root, "StreamVoice", "a.wav"))
	touch(t, filepath.Join(root, "StreamVoice", "b.wav"))
	touch(t, filepath.Join(root, "lips", "x.lip"))
	touch(t, filepath.Join(root, "dialog.tlk"))

	c, err := MoveLocalizedFiles(root, "ja", k2Localization(t))
	require.NoError(t, err)
	require.Equal(t, 4, c.Moved)
	require.Equal(t, []string{
		"Localized/Japanese/Docs/readme.txt",
		"Localized/Japanese/StreamVoice/a.wav",
		"Localized/Japanese/StreamVoice/b.wav",
		"Localized/Japanese/lips/x.lip",
		"dialog.tlk",
	}, tree(t, root))
}

func TestMoveLocalizedFiles_K2DefaultLanguageStillMoves(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "lips", "x.lip"))

	_, err := MoveLocalizedFiles(root, "en", k2Localization(t))
	require.NoError(t, err)
	require.Equal(t, []string{"Localized/English/lips/x.lip"}, tree(t, root))
}

func TestMoveLocalizedFiles_Unsupported(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "dialog.tlk"))

	for _, loc := range []profile.Localization{k1Localization(t), k2Localization(t)} {
		_, err := MoveLocalizedFiles(root, "pt", loc)
		require.Error(t, err)
		require.True(t, domain.IsKind(err, domain.KindUnsupportedLanguage), "err=%v", err)
		require.Equal(t, domain.ExitUnsupportedLanguage, domain.ExitCode(err))
	}
	require.Equal(t, []string{"dialog.tlk"}, tree(t, root), "不受支持时不做任何修改")
}
