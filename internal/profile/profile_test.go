package profile

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/John-Robertt/ksm/internal/domain"
)

func TestForEdition_Known(t *testing.T) {
	p1, err := ForEdition(1)
	require.NoError(t, err)
	require.Equal(t, "0100854015868800", p1.TitleID)
	require.Equal(t, domain.StageExactMatches, p1.Stages[2])

	p2, err := ForEdition(2)
	require.NoError(t, err)
	require.Equal(t, "0100B2C016252000", p2.TitleID)
	require.Equal(t, domain.StageExactMatches, p2.Stages[5], "K2 在贴图之后才做精确匹配")
	require.Equal(t, []int{1, 2}, Editions())
}

func TestForEdition_Unknown(t *testing.T) {
	_, err := ForEdition(3)
	require.True(t, domain.IsKind(err, domain.KindConfigInvalid), "err=%v", err)
}

func TestForEdition_ReturnsIndependentCopy(t *testing.T) {
	p, err := ForEdition(2)
	require.NoError(t, err)
	p.Localization.Folders["en"] = "Klingon"
	p.Stages[0] = "x"

	again, err := ForEdition(2)
	require.NoError(t, err)
	require.Equal(t, "English", again.Localization.Folders["en"])
	require.Equal(t, domain.StageKeyFiles, again.Stages[0])
}

func TestLocalization_Supports(t *testing.T) {
	p1, _ := ForEdition(1)
	p2, _ := ForEdition(2)

	for _, code := range LanguageCodes {
		require.True(t, p1.Localization.Supports(code), "k1 %s", code)
		require.True(t, p2.Localization.Supports(code), "k2 %s", code)
	}
	require.False(t, p1.Localization.Supports("pl"))
	require.False(t, p2.Localization.Supports("jp"))
}

func TestAssetPath(t *testing.T) {
	p, _ := ForEdition(1)
	require.Equal(t, filepath.Join("assets", "k1", "switch-files.txt"), p.AssetPath("assets", p.FilesList))
	require.Equal(t, "", p.AssetPath("assets", p.RootOverrideList))
}
