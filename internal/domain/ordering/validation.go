package ordering

// AddressForm pairs an address draft with the validation state of each field.
type AddressForm struct {
	Draft  AddressDraft         `json:"draft"`
	States map[Field]FieldState `json:"states"`
}

// NewAddressForm returns an empty form with every field untouched
func NewAddressForm() *AddressForm {
	return NewAddressFormFrom(NewAddressDraft())
}

// NewAddressFormFrom wraps an existing draft. Field states start untouched
// and no inference runs.
func NewAddressFormFrom(draft AddressDraft) *AddressForm {
	if draft.Country == "" {
		draft.Country = CountryDomestic
	}
	states := make(map[Field]FieldState, len(AllFields))
	for _, f := range AllFields {
		states[f] = FieldState{Status: FieldUntouched}
	}
	return &AddressForm{Draft: draft, States: states}
}

// State returns the current state of a field
func (f *AddressForm) State(field Field) FieldState {
	if s, ok := f.States[field]; ok {
		return s
	}
	return FieldState{Status: FieldUntouched}
}

// CommitField stores value for field (the field lost focus) and validates it.
//
// Committing a postal code that passes its format rule overwrites the country
// with the inferred value, even if the user chose a country explicitly
// before. No other commit touches another field's value.
func (f *AddressForm) CommitField(field Field, value string) FieldState {
	f.Draft = f.Draft.With(field, value)
	state := Evaluate(field, f.Draft)
	f.States[field] = state

	if field == FieldPostalCode && state.IsValid() {
		if country, ok := InferCountry(value); ok {
			f.Draft.Country = country
			f.States[FieldCountry] = Valid()
		}
	}

	// Name requiredness depends on the salutation; refresh touched fields.
	if field == FieldSalutation {
		for _, dep := range []Field{FieldFirstName, FieldLastName, FieldCompany} {
			if f.State(dep).Status != FieldUntouched {
				f.States[dep] = Evaluate(dep, f.Draft)
			}
		}
	}
	return state
}

// FieldError is one failing field of a bulk validation pass
type FieldError struct {
	Address AddressKind `json:"address,omitempty"`
	Field   Field       `json:"field"`
	Reason  string      `json:"reason"`
}

// ValidationResult is the outcome of the submit gate
type ValidationResult struct {
	Errors []FieldError `json:"errors,omitempty"`
}

// Valid reports whether every field passed
func (r ValidationResult) Valid() bool {
	return len(r.Errors) == 0
}

// ValidateAll recomputes every field against the current draft and records
// the states. It reports all failing fields in form order and never infers.
func (f *AddressForm) ValidateAll() ValidationResult {
	var result ValidationResult
	for _, field := range AllFields {
		state := Evaluate(field, f.Draft)
		f.States[field] = state
		if !state.IsValid() {
			result.Errors = append(result.Errors, FieldError{Field: field, Reason: state.Reason})
		}
	}
	return result
}

// Clone returns a deep copy
func (f *AddressForm) Clone() *AddressForm {
	states := make(map[Field]FieldState, len(f.States))
	for k, v := range f.States {
		states[k] = v
	}
	return &AddressForm{Draft: f.Draft, States: states}
}
