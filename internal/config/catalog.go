package config

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Catalog lists the storefront categories and the sample products init-db seeds.
type Catalog struct {
	Categories []string      `yaml:"categories"`
	Products   []SeedProduct `yaml:"products"`
}

type SeedProduct struct {
	Name             string  `yaml:"name"`
	ShortDescription string  `yaml:"short_description"`
	LongDescription  string  `yaml:"long_description"`
	Price            float64 `yaml:"price"`
	Category         string  `yaml:"category"`
	ImageURL         string  `yaml:"image_url"`
}

// HasCategory reports whether name is one of the configured categories.
func (c *Catalog) HasCategory(name string) bool {
	for _, cat := range c.Categories {
		if cat == name {
			return true
		}
	}
	return false
}

// LoadCatalog reads the catalog at path, or the embedded default when path is empty.
func LoadCatalog(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return parseCatalog(defaultCatalog)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	return parseCatalog(data)
}

// DefaultCatalog returns the embedded catalog. It panics if the embedded file is invalid.
func DefaultCatalog() *Catalog {
	cat, err := parseCatalog(defaultCatalog)
	if err != nil {
		panic(err)
	}
	return cat
}

func parseCatalog(data []byte) (*Catalog, error) {
	var cat Catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if len(cat.Categories) == 0 {
		return nil, fmt.Errorf("catalog: at least one category is required")
	}
	seen := make(map[string]struct{}, len(cat.Categories))
	for _, name := range cat.Categories {
		if strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("catalog: empty category name")
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("catalog: duplicate category %q", name)
		}
		seen[name] = struct{}{}
	}
	for i, p := range cat.Products {
		if _, ok := seen[p.Category]; !ok {
			return nil, fmt.Errorf("catalog: product %d (%s): unknown category %q", i, p.Name, p.Category)
		}
	}
	return &cat, nil
}
