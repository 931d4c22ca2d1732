package harvester

import (
	"regexp"
	"strings"

	"github.com/pkg/errors"

	"github.com/openharvest/harvestmux/model"
	"github.com/openharvest/harvestmux/utils"
)

// Variant selects the rule set a record is validated against. Variants form a
// closed set dispatched into independent rule lists rather than an
// inheritance chain, so each profile stays independently testable.
type Variant string

const (
	VariantDcatUSFederal    Variant = "dcatus-federal"
	VariantDcatUSNonFederal Variant = "dcatus-non-federal"
	VariantWaf              Variant = "waf"
)

// VariantForSource maps a harvest source to its validation variant.
func VariantForSource(source *model.HarvestSource) Variant {
	if source.SourceType == model.SourceTypeWaf {
		return VariantWaf
	}
	if source.SchemaType == model.SchemaTypeDcatUSNonFederal {
		return VariantDcatUSNonFederal
	}
	return VariantDcatUSFederal
}

// ValidationExceptionType classifies record errors produced by validation.
const ValidationExceptionType = "ValidationException"

// ValidationError is one structured record-level validation failure.
type ValidationError struct {
	Message string
	Type    string
}

// ValidationResult is the outcome of validating one record. Validation is
// pure: it never mutates storage and never panics on malformed input,
// failures only accumulate here.
type ValidationResult struct {
	Valid  bool
	Errors []ValidationError
}

type datasetCheck func(dataset map[string]interface{}) error

// Validate checks a dataset against the rule set of the given variant.
func Validate(dataset map[string]interface{}, variant Variant) ValidationResult {
	var checks []datasetCheck
	switch variant {
	case VariantDcatUSFederal:
		checks = append(dcatUSChecks(), checkBureauCodes, checkProgramCodes)
	case VariantDcatUSNonFederal:
		checks = dcatUSChecks()
	case VariantWaf:
		// WAF records are synthesized from file listings: the file must be
		// keyed and its body non-empty
		checks = []datasetCheck{
			checkRequiredString("identifier"),
			checkRequiredString("content"),
		}
	}

	result := ValidationResult{Valid: true}
	for _, check := range checks {
		if err := check(dataset); err != nil {
			result.Valid = false
			result.Errors = append(result.Errors, ValidationError{
				Message: err.Error(),
				Type:    ValidationExceptionType,
			})
		}
	}
	return result
}

func dcatUSChecks() []datasetCheck {
	return []datasetCheck{
		checkRequiredString("identifier"),
		checkRequiredString("title"),
		checkRequiredString("description"),
		checkRequiredString("modified"),
		checkAccessLevel,
		checkPublisher,
		checkContactPoint,
		checkKeywords,
		checkDistribution,
	}
}

func stringField(dataset map[string]interface{}, field string) (string, bool) {
	v, ok := dataset[field]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func checkRequiredString(field string) datasetCheck {
	return func(dataset map[string]interface{}) error {
		s, ok := stringField(dataset, field)
		if !ok {
			return errors.Errorf("'%s' is a required property", field)
		}
		if strings.TrimSpace(s) == "" {
			return errors.Errorf("'%s' must be a non-empty string", field)
		}
		return nil
	}
}

var accessLevels = []string{"public", "restricted public", "non-public"}

func checkAccessLevel(dataset map[string]interface{}) error {
	s, ok := stringField(dataset, "accessLevel")
	if !ok {
		return errors.New("'accessLevel' is a required property")
	}
	if !utils.ContainsString(accessLevels, s) {
		return errors.Errorf("'%s' is not a valid accessLevel", s)
	}
	return nil
}

func checkPublisher(dataset map[string]interface{}) error {
	v, ok := dataset["publisher"]
	if !ok {
		return errors.New("'publisher' is a required property")
	}
	publisher, ok := v.(map[string]interface{})
	if !ok {
		return errors.New("'publisher' must be an object")
	}
	name, ok := publisher["name"].(string)
	if !ok || strings.TrimSpace(name) == "" {
		return errors.New("'publisher' must have a non-empty 'name'")
	}
	if sub, present := publisher["subOrganizationOf"]; present {
		if _, ok := sub.(map[string]interface{}); !ok {
			return errors.New("'publisher.subOrganizationOf' must be an object")
		}
	}
	return nil
}

func checkContactPoint(dataset map[string]interface{}) error {
	v, ok := dataset["contactPoint"]
	if !ok {
		return errors.New("'contactPoint' is a required property")
	}
	contact, ok := v.(map[string]interface{})
	if !ok {
		return errors.New("'contactPoint' must be an object")
	}
	fn, ok := contact["fn"].(string)
	if !ok || strings.TrimSpace(fn) == "" {
		return errors.New("'contactPoint' must have a non-empty 'fn'")
	}
	hasEmail, ok := contact["hasEmail"].(string)
	if !ok || !strings.HasPrefix(hasEmail, "mailto:") {
		return errors.New("'contactPoint.hasEmail' must be a mailto: uri")
	}
	return nil
}

func checkKeywords(dataset map[string]interface{}) error {
	v, ok := dataset["keyword"]
	if !ok {
		return errors.New("'keyword' is a required property")
	}
	keywords, ok := v.([]interface{})
	if !ok || len(keywords) == 0 {
		return errors.New("'keyword' must be a non-empty list")
	}
	for _, kw := range keywords {
		if s, ok := kw.(string); !ok || strings.TrimSpace(s) == "" {
			return errors.New("'keyword' entries must be non-empty strings")
		}
	}
	return nil
}

func checkDistribution(dataset map[string]interface{}) error {
	v, ok := dataset["distribution"]
	if !ok {
		return errors.New("'distribution' is a required property")
	}
	distributions, ok := v.([]interface{})
	if !ok || len(distributions) == 0 {
		return errors.New("'distribution' must be a non-empty list")
	}
	for _, d := range distributions {
		entry, ok := d.(map[string]interface{})
		if !ok {
			return errors.New("'distribution' entries must be objects")
		}
		accessURL, _ := entry["accessURL"].(string)
		downloadURL, _ := entry["downloadURL"].(string)
		if accessURL == "" && downloadURL == "" {
			return errors.New("'distribution' entries must have an accessURL or downloadURL")
		}
	}
	return nil
}

var (
	bureauCodeRe  = regexp.MustCompile(`^[0-9]{3}:[0-9]{2}$`)
	programCodeRe = regexp.MustCompile(`^[0-9]{3}:[0-9]{3}$`)
)

func checkCodeList(dataset map[string]interface{}, field string, re *regexp.Regexp) error {
	v, ok := dataset[field]
	if !ok {
		return errors.Errorf("'%s' is a required property", field)
	}
	codes, ok := v.([]interface{})
	if !ok || len(codes) == 0 {
		return errors.Errorf("'%s' must be a non-empty list", field)
	}
	for _, c := range codes {
		s, ok := c.(string)
		if !ok || !re.MatchString(s) {
			return errors.Errorf("'%v' is not a valid %s", c, field)
		}
	}
	return nil
}

// bureauCode and programCode are only required for the federal variant
func checkBureauCodes(dataset map[string]interface{}) error {
	return checkCodeList(dataset, "bureauCode", bureauCodeRe)
}

func checkProgramCodes(dataset map[string]interface{}) error {
	return checkCodeList(dataset, "programCode", programCodeRe)
}
