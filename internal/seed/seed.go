// Package seed provides the built-in crypto and fiat catalogs used to populate
// an empty database.
package seed

import (
	_ "embed"
	"fmt"
	"sync"

	"github.com/artpar/coinshelf/internal/currency"
	"gopkg.in/yaml.v3"
)

//go:embed currencies.yaml
var catalogYAML []byte

// Catalog is the decoded seed file.
type Catalog struct {
	Crypto []currency.Record `yaml:"crypto"`
	Fiat   []currency.Record `yaml:"fiat"`
}

var (
	loadOnce sync.Once
	loaded   Catalog
	loadErr  error
)

// Parse decodes a catalog and validates every record.
func Parse(data []byte) (Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Catalog{}, fmt.Errorf("failed to parse seed catalog: %w", err)
	}
	for _, list := range [][]currency.Record{c.Crypto, c.Fiat} {
		for _, r := range list {
			if err := r.Validate(); err != nil {
				return Catalog{}, err
			}
		}
	}
	return c, nil
}

// Load returns the embedded catalog.
func Load() (Catalog, error) {
	loadOnce.Do(func() {
		loaded, loadErr = Parse(catalogYAML)
	})
	return loaded, loadErr
}

func mustLoad() Catalog {
	c, err := Load()
	if err != nil {
		panic(err)
	}
	return c
}

// Crypto returns a copy of the crypto seed list.
func Crypto() []currency.Record {
	return append([]currency.Record(nil), mustLoad().Crypto...)
}

// Fiat returns a copy of the fiat seed list.
func Fiat() []currency.Record {
	return append([]currency.Record(nil), mustLoad().Fiat...)
}
