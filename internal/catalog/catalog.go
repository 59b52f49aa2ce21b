// Package catalog reads the brand/platform source list.
//
// The file format is:
//
//	brands:
//	  acme:
//	    platforms:
//	      coupang_brandshop:
//	        url: https://shop.coupang.com/...
//	      imweb:
//	        url: https://acme.example/shop
package catalog

import (
	"fmt"
	"os"
	"slices"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Kind selects the collection path for a source.
type Kind string

// Source kinds.
const (
	KindBrowser Kind = "browser"
	KindHTTP    Kind = "http"
)

// platformKinds maps catalog platform keys onto collection paths.
var platformKinds = map[string]Kind{
	"coupang":           KindBrowser,
	"coupang_brandshop": KindBrowser,
	"ohou":              KindBrowser,
	"wadiz_qa":          KindBrowser,
	"imweb":             KindHTTP,
}

// KindFor reports the collection path for platform.
func KindFor(platform string) (Kind, bool) {
	k, ok := platformKinds[strings.ToLower(strings.TrimSpace(platform))]
	return k, ok
}

// Source is one brand storefront on one platform.
type Source struct {
	Name     string `json:"name"`
	Brand    string `json:"brand"`
	Platform string `json:"platform"`
	Kind     Kind   `json:"kind"`
	SeedURL  string `json:"seed_url"`
}

// PlatformEntry is one storefront.
type PlatformEntry struct {
	URL string `yaml:"url"`
}

// BrandEntry lists a brand's storefronts by platform.
type BrandEntry struct {
	Platforms map[string]PlatformEntry `yaml:"platforms"`
}

// Catalog is the parsed source file.
type Catalog struct {
	Brands map[string]BrandEntry `yaml:"brands"`
}

// Load parses the catalog at path.
func Load(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path) //nolint:gosec // path comes from config
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(raw)
}

// Parse decodes catalog YAML.
func Parse(raw []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return &c, nil
}

// Sources returns every entry with a URL on a supported platform, sorted by
// brand then platform. Entries on unknown platforms are reported in skipped.
func (c *Catalog) Sources() (sources []Source, skipped []string) {
	for brand, b := range c.Brands {
		for platform, p := range b.Platforms {
			url := strings.TrimSpace(p.URL)
			if url == "" {
				continue
			}
			kind, ok := KindFor(platform)
			if !ok {
				skipped = append(skipped, brand+"/"+platform)
				continue
			}
			sources = append(sources, Source{
				Name:     brand + "_" + platform,
				Brand:    brand,
				Platform: platform,
				Kind:     kind,
				SeedURL:  url,
			})
		}
	}
	sort.Slice(sources, func(i, j int) bool {
		if sources[i].Brand != sources[j].Brand {
			return sources[i].Brand < sources[j].Brand
		}
		return sources[i].Platform < sources[j].Platform
	})
	sort.Strings(skipped)
	return sources, skipped
}

// Filter keeps sources whose name is in names and whose brand is in brands.
// An empty selector matches everything.
func Filter(sources []Source, names, brands []string) []Source {
	out := make([]Source, 0, len(sources))
	for _, s := range sources {
		if len(names) > 0 && !slices.Contains(names, s.Name) {
			continue
		}
		if len(brands) > 0 && !slices.Contains(brands, s.Brand) {
			continue
		}
		out = append(out, s)
	}
	return out
}
