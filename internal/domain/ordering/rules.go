package ordering

import (
	"regexp"
	"strings"
)

// FieldStatus is the validation status of one field
type FieldStatus string

const (
	FieldUntouched FieldStatus = "untouched"
	FieldValid     FieldStatus = "valid"
	FieldInvalid   FieldStatus = "invalid"
)

// Invalid reasons reported to the form
const (
	ReasonRequired           = "required"
	ReasonHouseNumberFormat  = "house_number_format"
	ReasonPostalCodeFormat   = "postal_code_format"
	ReasonEmailFormat        = "email_format"
	ReasonPhoneFormat        = "phone_format"
	ReasonUnknownSalutation  = "unknown_salutation"
	ReasonUnsupportedCountry = "unsupported_country"
)

// FieldState is the computed validity of a field
type FieldState struct {
	Status FieldStatus `json:"status"`
	Reason string      `json:"reason,omitempty"`
}

// Valid is the state of a passing field
func Valid() FieldState { return FieldState{Status: FieldValid} }

// Invalid is the state of a failing field
func Invalid(reason string) FieldState { return FieldState{Status: FieldInvalid, Reason: reason} }

// IsValid reports whether the state is valid
func (s FieldState) IsValid() bool { return s.Status == FieldValid }

// Rule is a pure check of one field value against the full draft
type Rule func(value string, draft AddressDraft) FieldState

var (
	houseNumberPattern = regexp.MustCompile(`^[0-9]{1,4}[a-zA-Z]?([-/][0-9]{1,3}[a-zA-Z]?)?$`)
	postalCodePattern  = regexp.MustCompile(`^([0-9]{4}|[0-9]{5})$`)
	phonePattern       = regexp.MustCompile(`^[0-9\s+\-/]*$`)
)

// Rules is the fixed rule table keyed by field
var Rules = map[Field]Rule{
	FieldSalutation:  salutationRule,
	FieldFirstName:   personNameRule,
	FieldLastName:    personNameRule,
	FieldCompany:     companyRule,
	FieldStreet:      requiredRule,
	FieldHouseNumber: patternRule(houseNumberPattern, ReasonHouseNumberFormat),
	FieldPostalCode:  patternRule(postalCodePattern, ReasonPostalCodeFormat),
	FieldCity:        requiredRule,
	FieldCountry:     countryRule,
	FieldEmail:       emailRule,
	FieldPhone:       phoneRule,
}

// Evaluate runs the rule for f against the draft's current value
func Evaluate(f Field, draft AddressDraft) FieldState {
	rule, ok := Rules[f]
	if !ok {
		return Valid()
	}
	return rule(draft.Get(f), draft)
}

func blank(v string) bool {
	return strings.TrimSpace(v) == ""
}

func requiredRule(value string, _ AddressDraft) FieldState {
	if blank(value) {
		return Invalid(ReasonRequired)
	}
	return Valid()
}

func patternRule(re *regexp.Regexp, reason string) Rule {
	return func(value string, _ AddressDraft) FieldState {
		if blank(value) {
			return Invalid(ReasonRequired)
		}
		if !re.MatchString(strings.TrimSpace(value)) {
			return Invalid(reason)
		}
		return Valid()
	}
}

func salutationRule(value string, _ AddressDraft) FieldState {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "":
		return Invalid(ReasonRequired)
	case SalutationMr, SalutationMs, SalutationMx, SalutationCompany:
		return Valid()
	}
	return Invalid(ReasonUnknownSalutation)
}

// Person names become optional for companies.
func personNameRule(value string, draft AddressDraft) FieldState {
	if draft.IsCompany() {
		return Valid()
	}
	return requiredRule(value, draft)
}

func companyRule(value string, draft AddressDraft) FieldState {
	if draft.IsCompany() {
		return requiredRule(value, draft)
	}
	return Valid()
}

func countryRule(value string, _ AddressDraft) FieldState {
	if !Country(strings.ToUpper(value)).IsValid() {
		return Invalid(ReasonUnsupportedCountry)
	}
	return Valid()
}

func emailRule(value string, _ AddressDraft) FieldState {
	v := strings.TrimSpace(value)
	if v == "" {
		return Invalid(ReasonRequired)
	}
	if !looksLikeEmail(v) {
		return Invalid(ReasonEmailFormat)
	}
	return Valid()
}

// looksLikeEmail is deliberately loose: non-empty local part, one '@', and a
// domain containing a dot that is neither its first nor last character.
func looksLikeEmail(v string) bool {
	if strings.Count(v, "@") != 1 || strings.ContainsAny(v, " \t") {
		return false
	}
	local, domain, _ := strings.Cut(v, "@")
	if local == "" || domain == "" {
		return false
	}
	dot := strings.Index(domain, ".")
	if dot <= 0 {
		return false
	}
	return !strings.HasSuffix(domain, ".")
}

func phoneRule(value string, _ AddressDraft) FieldState {
	if blank(value) {
		return Valid()
	}
	if !phonePattern.MatchString(value) {
		return Invalid(ReasonPhoneFormat)
	}
	return Valid()
}

// InferCountry derives the country from a postal code that passed its own
// format rule: four digits mean neighboring, five mean domestic.
func InferCountry(postalCode string) (Country, bool) {
	v := strings.TrimSpace(postalCode)
	if !postalCodePattern.MatchString(v) {
		return "", false
	}
	if len(v) == 4 {
		return CountryNeighboring, true
	}
	return CountryDomestic, true
}
