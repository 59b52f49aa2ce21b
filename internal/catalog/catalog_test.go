package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const sample = `
brands:
  zeta:
    platforms:
      imweb:
        url: https://zeta.example/shop
  acme:
    platforms:
      imweb:
        url: " https://acme.example/shop "
      coupang_brandshop:
        url: https://shop.coupang.com/acme
      naver:
        url: https://smartstore.naver.com/acme
      ohou:
        url: ""
`

func TestSourcesSortedAndClassified(t *testing.T) {
	t.Parallel()

	c, err := Parse([]byte(sample))
	require.NoError(t, err)

	sources, skipped := c.Sources()
	require.Equal(t, []Source{
		{Name: "acme_coupang_brandshop", Brand: "acme", Platform: "coupang_brandshop", Kind: KindBrowser, SeedURL: "https://shop.coupang.com/acme"},
		{Name: "acme_imweb", Brand: "acme", Platform: "imweb", Kind: KindHTTP, SeedURL: "https://acme.example/shop"},
		{Name: "zeta_imweb", Brand: "zeta", Platform: "imweb", Kind: KindHTTP, SeedURL: "https://zeta.example/shop"},
	}, sources)
	require.Equal(t, []string{"acme/naver"}, skipped)
}

func TestLoadFromDisk(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	sources, _ := c.Sources()
	require.Len(t, sources, 3)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestParseRejectsMalformedYAML(t *testing.T) {
	t.Parallel()

	_, err := Parse([]byte("brands: [unterminated"))
	require.Error(t, err)
}

func TestFilter(t *testing.T) {
	t.Parallel()

	c, err := Parse([]byte(sample))
	require.NoError(t, err)
	all, _ := c.Sources()

	tests := []struct {
		name   string
		names  []string
		brands []string
		want   []string
	}{
		{name: "no selectors", want: []string{"acme_coupang_brandshop", "acme_imweb", "zeta_imweb"}},
		{name: "by brand", brands: []string{"zeta"}, want: []string{"zeta_imweb"}},
		{name: "by name", names: []string{"acme_imweb", "zeta_imweb"}, want: []string{"acme_imweb", "zeta_imweb"}},
		{name: "both", names: []string{"acme_imweb", "zeta_imweb"}, brands: []string{"acme"}, want: []string{"acme_imweb"}},
		{name: "no match", names: []string{"nope"}, want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := []string{}
			for _, s := range Filter(all, tt.names, tt.brands) {
				got = append(got, s.Name)
			}
			require.Equal(t, tt.want, got)
		})
	}
}

func TestKindFor(t *testing.T) {
	t.Parallel()

	k, ok := KindFor(" Coupang_Brandshop ")
	require.True(t, ok)
	require.Equal(t, KindBrowser, k)

	_, ok = KindFor("naver")
	require.False(t, ok)
}
