package tenant

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/Pr4yus/sms-bi-dashboard-v2-sub001/internal/common"
)

// LoadRegistry loads and validates the tenant registry from a YAML file.
// A malformed registry is fatal: this is the one startup error class the
// process refuses to run with.
func LoadRegistry(path string, validate *validator.Validate) (*Registry, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, common.NewError(common.ErrCodeConfig, fmt.Sprintf("load tenant registry %s", path), err)
	}

	var reg Registry
	if err := k.Unmarshal("", &reg); err != nil {
		return nil, common.NewError(common.ErrCodeConfig, "unmarshal tenant registry", err)
	}

	if err := validate.Struct(&reg); err != nil {
		return nil, common.NewError(common.ErrCodeConfig, "tenant registry validation failed", err)
	}

	seen := make(map[string]bool, len(reg.Tenants))
	for i := range reg.Tenants {
		d := &reg.Tenants[i]
		if seen[d.Name] {
			return nil, common.NewError(common.ErrCodeConfig, fmt.Sprintf("duplicate tenant name %q", d.Name), nil)
		}
		seen[d.Name] = true
		if _, err := d.ExcludedObjectIDs(); err != nil {
			return nil, common.NewError(common.ErrCodeConfig, "invalid exclusion list", err)
		}
	}

	return &reg, nil
}
