package job

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/Pr4yus/sms-bi-dashboard-v2-sub001/internal/common"
)

// RemapSet is the identity normalization table: per tenant, legacy
// client ids mapped to their canonical values, plus the sentinel
// values that are rewritten from the record's own account name.
type RemapSet struct {
	Sentinels []string                     `koanf:"sentinels"`
	Tenants   map[string]map[string]string `koanf:"tenants"`
}

// Mappings returns the remap table for a tenant. A tenant without
// mappings is normal and returns an empty table.
func (r *RemapSet) Mappings(tenantName string) map[string]string {
	if r == nil {
		return nil
	}
	return r.Tenants[tenantName]
}

// LoadRemaps loads the identity remap table from a YAML file. Empty
// mapping targets are a configuration error; the sentinel mechanism
// covers records that should fall back to their account name.
func LoadRemaps(path string, validate *validator.Validate) (*RemapSet, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, common.NewError(common.ErrCodeConfig, fmt.Sprintf("load identity remaps %s", path), err)
	}

	var rs RemapSet
	if err := k.Unmarshal("", &rs); err != nil {
		return nil, common.NewError(common.ErrCodeConfig, "unmarshal identity remaps", err)
	}

	for tenantName, mappings := range rs.Tenants {
		for oldID, newID := range mappings {
			if oldID == "" || newID == "" {
				return nil, common.NewError(common.ErrCodeConfig,
					fmt.Sprintf("tenant %s has an empty remap entry", tenantName), nil)
			}
		}
	}

	return &rs, nil
}
