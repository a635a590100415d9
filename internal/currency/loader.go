package currency

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/shopspring/decimal"

	"github.com/Pr4yus/sms-bi-dashboard-v2-sub001/internal/common"
)

// currencySpec is the YAML shape of one exchange table entry. Rates
// are parsed as floats and converted to decimals once at load.
type currencySpec struct {
	Code   string  `koanf:"code" validate:"required"`
	Symbol string  `koanf:"symbol" validate:"required"`
	Rate   float64 `koanf:"rate" validate:"required,gt=0"`
}

type tableFile struct {
	Currencies []currencySpec    `koanf:"currencies" validate:"required,min=1,dive"`
	Countries  map[string]string `koanf:"countries"`
}

// LoadTable loads the exchange table from a YAML file. The countries
// section maps ISO country codes to currency codes that must exist in
// the currencies section.
func LoadTable(path string, validate *validator.Validate) (*Table, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, common.NewError(common.ErrCodeConfig, fmt.Sprintf("load exchange rates %s", path), err)
	}

	var tf tableFile
	if err := k.Unmarshal("", &tf); err != nil {
		return nil, common.NewError(common.ErrCodeConfig, "unmarshal exchange rates", err)
	}

	if err := validate.Struct(&tf); err != nil {
		return nil, common.NewError(common.ErrCodeConfig, "exchange rates validation failed", err)
	}

	currencies := make([]Currency, 0, len(tf.Currencies))
	known := make(map[string]bool, len(tf.Currencies))
	for _, spec := range tf.Currencies {
		currencies = append(currencies, Currency{
			Code:   spec.Code,
			Symbol: spec.Symbol,
			Rate:   decimal.NewFromFloat(spec.Rate),
		})
		known[spec.Code] = true
	}
	for country, code := range tf.Countries {
		if !known[code] {
			return nil, common.NewError(common.ErrCodeConfig, fmt.Sprintf("country %s references unknown currency %s", country, code), nil)
		}
	}

	return NewTable(currencies, tf.Countries), nil
}
