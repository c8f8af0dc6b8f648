package validation

import (
	"regexp"

	"github.com/go-playground/validator/v10"
)

var (
	emailPattern       = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	onlyLettersPattern = regexp.MustCompile(`^[a-zA-ZáéíóúÁÉÍÓÚñÑ\s]{1,50}$`)
	petNamePattern     = regexp.MustCompile(`^[a-zA-ZáéíóúÁÉÍÓÚñÑ\s]{1,30}$`)
	speciesPattern     = regexp.MustCompile(`^[a-zA-ZáéíóúÁÉÍÓÚñÑ\s]{1,20}$`)
	phoneDigitsPattern = regexp.MustCompile(`^[+]?\d+$`)
	phoneFormatting    = regexp.MustCompile(`[\s\-\(\)]`)
	letterPattern      = regexp.MustCompile(`[a-zA-Z]`)
	digitPattern       = regexp.MustCompile(`\d`)
	multiSpacePattern  = regexp.MustCompile(`\s{2,}`)
	dangerousPattern   = regexp.MustCompile(`(?i)<script|javascript:|data:|vbscript:`)
)

type limit struct {
	min, max int
}

// limits are character counts measured on trimmed input.
var limits = map[string]limit{
	"name":     {2, 50},
	"email":    {5, 100},
	"phone":    {7, 15},
	"password": {6, 50},
	"petName":  {1, 30},
	"species":  {2, 20},
	"breed":    {2, 30},
	"notes":    {0, 500},
}

const (
	maxAge    = 30
	maxWeight = 200
	maxAmount = 999999.99

	pastYears   = 50
	futureYears = 5
)

// Custom validator tags.
const (
	tagEmail       = "vet_email"
	tagOnlyLetters = "only_letters"
	tagPetName     = "pet_name"
	tagSpecies     = "species"
	tagPhoneDigits = "phone_digits"
	tagLetterDigit = "letter_digit"
	tagSingleSpace = "single_space"
	tagSafeText    = "safe_text"
)

func matches(p *regexp.Regexp) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return p.MatchString(fl.Field().String())
	}
}

func registerRules(v *validator.Validate) {
	rules := map[string]validator.Func{
		tagEmail:       matches(emailPattern),
		tagOnlyLetters: matches(onlyLettersPattern),
		tagPetName:     matches(petNamePattern),
		tagSpecies:     matches(speciesPattern),
		tagPhoneDigits: matches(phoneDigitsPattern),
		tagLetterDigit: func(fl validator.FieldLevel) bool {
			s := fl.Field().String()
			return letterPattern.MatchString(s) && digitPattern.MatchString(s)
		},
		tagSingleSpace: func(fl validator.FieldLevel) bool {
			return !multiSpacePattern.MatchString(fl.Field().String())
		},
		tagSafeText: func(fl validator.FieldLevel) bool {
			return !dangerousPattern.MatchString(fl.Field().String())
		},
	}
	for tag, fn := range rules {
		if err := v.RegisterValidation(tag, fn); err != nil {
			panic(err)
		}
	}
}
