// Package validation checks user-entered clinic form fields.
package validation

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/unicode/norm"
)

// FieldError is a single rejected field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	return e.Field + ": " + e.Message
}

// Validator holds the compiled rule set. It is safe for concurrent use.
type Validator struct {
	validate *validator.Validate
	now      func() time.Time
}

// Option configures a Validator.
type Option func(*Validator)

// WithClock overrides the clock used for date bounds.
func WithClock(now func() time.Time) Option {
	return func(v *Validator) {
		if now != nil {
			v.now = now
		}
	}
}

// New constructs a Validator.
func New(opts ...Option) *Validator {
	validate := validator.New()
	registerRules(validate)
	v := &Validator{validate: validate, now: time.Now}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Check accumulates errors for one validation run. It is not safe for
// concurrent use.
type Check struct {
	v      *Validator
	errors []FieldError
}

// NewCheck starts a validation run.
func (v *Validator) NewCheck() *Check {
	return &Check{v: v}
}

// Valid reports whether no rule failed so far.
func (c *Check) Valid() bool {
	return len(c.errors) == 0
}

// Errors returns the failures in the order the rules ran.
func (c *Check) Errors() []FieldError {
	return append([]FieldError(nil), c.errors...)
}

// Err returns nil when valid, otherwise an error wrapping every FieldError.
func (c *Check) Err() error {
	if c.Valid() {
		return nil
	}
	errs := make([]error, len(c.errors))
	for i, fe := range c.errors {
		errs[i] = fe
	}
	return errors.Join(errs...)
}

func (c *Check) add(field, message string) bool {
	c.errors = append(c.errors, FieldError{Field: field, Message: message})
	return false
}

func (c *Check) passes(value any, tag string) bool {
	return c.v.validate.Var(value, tag) == nil
}

func (c *Check) required(field, label, value string) bool {
	if strings.TrimSpace(value) == "" {
		return c.add(field, sentence(label+" es obligatorio"))
	}
	return true
}

// length checks the trimmed rune count of value against limits[key].
func (c *Check) length(field, key, label, value string) bool {
	l := limits[key]
	err := c.v.validate.Var(strings.TrimSpace(value), fmt.Sprintf("min=%d,max=%d", l.min, l.max))
	if err == nil {
		return true
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 && verrs[0].Tag() == "max" {
		return c.add(field, sentence(fmt.Sprintf("%s no puede exceder %d caracteres", label, l.max)))
	}
	return c.add(field, sentence(fmt.Sprintf("%s debe tener al menos %d caracteres", label, l.min)))
}

// Name checks a person name stored under field.
func (c *Check) Name(field, label, value string) bool {
	value = norm.NFC.String(value)
	if !c.required(field, label, value) {
		return false
	}
	if !c.length(field, "name", label, value) {
		return false
	}
	if !c.passes(value, tagOnlyLetters) {
		return c.add(field, sentence(label+" solo puede contener letras y espacios"))
	}
	if !c.passes(value, tagSingleSpace) {
		return c.add(field, sentence(label+" no puede tener espacios múltiples"))
	}
	return true
}

// Email checks presence, shape and length.
func (c *Check) Email(value string) bool {
	const field = "email"
	if strings.TrimSpace(value) == "" {
		return c.add(field, "El email es obligatorio")
	}
	if !c.passes(value, tagEmail) {
		return c.add(field, "Formato de email inválido")
	}
	return c.length(field, field, "El email", value)
}

// Phone checks a number after stripping spaces, dashes and parentheses.
func (c *Check) Phone(value string) bool {
	const field = "phone"
	if strings.TrimSpace(value) == "" {
		return c.add(field, "El teléfono es obligatorio")
	}
	digits := phoneFormatting.ReplaceAllString(value, "")
	l := limits[field]
	if !c.passes(digits, fmt.Sprintf("min=%d,max=%d", l.min, l.max)) {
		return c.add(field, fmt.Sprintf("El teléfono debe tener entre %d y %d dígitos", l.min, l.max))
	}
	if !c.passes(digits, tagPhoneDigits) {
		return c.add(field, "El teléfono solo puede contener números y el símbolo +")
	}
	return true
}

// Password requires letters and digits within the length bounds.
func (c *Check) Password(value string) bool {
	const field = "password"
	l := limits[field]
	switch {
	case value == "":
		return c.add(field, "La contraseña es obligatoria")
	case !c.passes(value, fmt.Sprintf("min=%d", l.min)):
		return c.add(field, fmt.Sprintf("La contraseña debe tener al menos %d caracteres", l.min))
	case !c.passes(value, fmt.Sprintf("max=%d", l.max)):
		return c.add(field, fmt.Sprintf("La contraseña no puede exceder %d caracteres", l.max))
	case !c.passes(value, tagLetterDigit):
		return c.add(field, "La contraseña debe contener al menos una letra y un número")
	}
	return true
}

// PetName checks a required pet name.
func (c *Check) PetName(value string) bool {
	const field = "petName"
	value = norm.NFC.String(value)
	if !c.required(field, "el nombre de la mascota", value) {
		return false
	}
	if !c.length(field, field, "el nombre de la mascota", value) {
		return false
	}
	if !c.passes(value, tagPetName) {
		return c.add(field, "El nombre de la mascota solo puede contener letras y espacios")
	}
	return true
}

// Species checks a required species name.
func (c *Check) Species(value string) bool {
	const field = "species"
	value = norm.NFC.String(value)
	if !c.required(field, "la especie", value) {
		return false
	}
	if !c.length(field, field, "la especie", value) {
		return false
	}
	if !c.passes(value, tagSpecies) {
		return c.add(field, "La especie solo puede contener letras y espacios")
	}
	return true
}

// Breed is optional.
func (c *Check) Breed(value string) bool {
	const field = "breed"
	value = norm.NFC.String(value)
	if strings.TrimSpace(value) == "" {
		return true
	}
	if !c.length(field, field, "la raza", value) {
		return false
	}
	if !c.passes(value, tagOnlyLetters) {
		return c.add(field, "La raza solo puede contener letras y espacios")
	}
	return true
}

// Age is optional; when present it must be a whole number of years.
func (c *Check) Age(value string) bool {
	const field = "age"
	value = strings.TrimSpace(value)
	if value == "" {
		return true
	}
	age, err := strconv.Atoi(value)
	if err != nil {
		return c.add(field, "La edad debe ser un número válido")
	}
	if !c.passes(age, fmt.Sprintf("gte=0,lte=%d", maxAge)) {
		return c.add(field, fmt.Sprintf("La edad debe estar entre 0 y %d años", maxAge))
	}
	return true
}

// Weight is optional; when present it must be in (0, 200] kg.
func (c *Check) Weight(value string) bool {
	const field = "weight"
	value = strings.TrimSpace(value)
	if value == "" {
		return true
	}
	weight, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(weight) || math.IsInf(weight, 0) {
		return c.add(field, "El peso debe ser un número válido")
	}
	if !c.passes(weight, fmt.Sprintf("gt=0,lte=%d", maxWeight)) {
		return c.add(field, fmt.Sprintf("El peso debe estar entre 0.1 y %d kg", maxWeight))
	}
	return true
}

// Notes is optional free text without script injection markers.
func (c *Check) Notes(value string) bool {
	const field = "notes"
	if strings.TrimSpace(value) == "" {
		return true
	}
	if !c.length(field, field, "las notas", value) {
		return false
	}
	if !c.passes(value, tagSafeText) {
		return c.add(field, "Las notas contienen caracteres no permitidos")
	}
	return true
}

// Amount checks a required money value with at most two decimals.
func (c *Check) Amount(field, label, value string) bool {
	value = strings.TrimSpace(value)
	if value == "" {
		return c.add(field, sentence(label+" es obligatorio"))
	}
	amount, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return c.add(field, sentence(label+" debe ser un número válido"))
	}
	if !c.passes(amount, "gte=0") {
		return c.add(field, sentence(label+" no puede ser negativo"))
	}
	if !c.passes(amount, fmt.Sprintf("lte=%v", maxAmount)) {
		return c.add(field, sentence(label+" no puede exceder $999,999.99"))
	}
	if _, decimals, ok := strings.Cut(value, "."); ok && len(decimals) > 2 {
		return c.add(field, sentence(label+" no puede tener más de 2 decimales"))
	}
	return true
}

var dateLayouts = []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02"}

// Date checks a required date no older than 50 years and no further than
// 5 years ahead.
func (c *Check) Date(field, label, value string) bool {
	value = strings.TrimSpace(value)
	if value == "" {
		return c.add(field, sentence(label+" es obligatoria"))
	}
	var (
		at  time.Time
		err error
	)
	for _, layout := range dateLayouts {
		if at, err = time.Parse(layout, value); err == nil {
			break
		}
	}
	if err != nil {
		return c.add(field, sentence(label+" no es válida"))
	}
	now := c.v.now()
	earliest := now.AddDate(-pastYears, 0, 0)
	if at.Before(earliest) {
		return c.add(field, sentence(fmt.Sprintf("%s no puede ser anterior a %d", label, earliest.Year())))
	}
	latest := now.AddDate(futureYears, 0, 0)
	if at.After(latest) {
		return c.add(field, sentence(fmt.Sprintf("%s no puede ser posterior a %d", label, latest.Year())))
	}
	return true
}

// sentence upper-cases the first letter of s.
func sentence(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
