package registry

import (
	"fmt"
	"os"

	"github.com/blumarkets/layers/internal/domain"
	"gopkg.in/yaml.v3"
)

// fileSchema is the YAML shape of a registry override file.
type fileSchema struct {
	Layers map[domain.Layer]LayerParams `yaml:"layers"`
	Assets []AssetConfig                `yaml:"assets"`
}

// LoadFile builds a registry from a YAML file. Layer params omitted from
// the file fall back to the canonical table. Used by operators to stage
// universe changes without a rebuild.
func LoadFile(path string) (*Registry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read registry file: %w", err)
	}

	var f fileSchema
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("failed to parse registry file: %w", err)
	}
	if len(f.Assets) == 0 {
		return nil, fmt.Errorf("registry file %s defines no assets", path)
	}

	params := make(map[domain.Layer]LayerParams, len(domain.Layers))
	for l, p := range defaultLayerParams {
		params[l] = p
	}
	for l, p := range f.Layers {
		if !l.Valid() {
			return nil, fmt.Errorf("registry file has unknown layer %q", l)
		}
		params[l] = p
	}

	return NewFromConfigs(f.Assets, params)
}
