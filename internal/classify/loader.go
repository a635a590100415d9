package classify

import (
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/Pr4yus/sms-bi-dashboard-v2-sub001/internal/common"
)

// ruleSpec is the YAML shape of one classification rule.
type ruleSpec struct {
	Pattern   string   `koanf:"pattern" validate:"required"`
	Exclude   []string `koanf:"exclude"`
	Type      string   `koanf:"type" validate:"required,oneof=INTERNAL EXTERNAL INFORMATIVE"`
	Processor string   `koanf:"processor" validate:"required"`
	Domain    string   `koanf:"domain" validate:"required"`
}

type ruleFile struct {
	Rules []ruleSpec `koanf:"rules" validate:"required,min=1,dive"`
}

// LoadCascade loads, validates and compiles the ordered rule list from
// a YAML file. Rule order in the file is preserved. A rule that does
// not compile is a fatal configuration error.
func LoadCascade(path string, validate *validator.Validate) (*Cascade, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, common.NewError(common.ErrCodeConfig, fmt.Sprintf("load payment rules %s", path), err)
	}

	var rf ruleFile
	if err := k.Unmarshal("", &rf); err != nil {
		return nil, common.NewError(common.ErrCodeConfig, "unmarshal payment rules", err)
	}

	if err := validate.Struct(&rf); err != nil {
		return nil, common.NewError(common.ErrCodeConfig, "payment rules validation failed", err)
	}

	rules := make([]Rule, 0, len(rf.Rules))
	for i, spec := range rf.Rules {
		re, err := regexp.Compile("(?i)" + spec.Pattern)
		if err != nil {
			return nil, common.NewError(common.ErrCodeConfig, fmt.Sprintf("payment rule %d pattern does not compile", i), err)
		}
		rules = append(rules, Rule{
			Pattern:   re,
			Exclude:   spec.Exclude,
			Type:      spec.Type,
			Processor: spec.Processor,
			Domain:    spec.Domain,
		})
	}

	return NewCascade(rules), nil
}
