package waitlist

import (
	"errors"
	"regexp"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const EmailValidationTag = "waitlist_email"

// local@domain.tld where no part contains whitespace or a second '@'. Callers
// trim surrounding whitespace first.
var emailPattern = regexp.MustCompile(`^[^\s\v\p{Z}\x{FEFF}@]+@[^\s\v\p{Z}\x{FEFF}@]+\.[^\s\v\p{Z}\x{FEFF}@]+$`)

var registerOnce sync.Once
var registerErr error

func IsValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// NormalizeEmail is the de-duplication key for an address. A Caser is not
// safe for concurrent use, so one is built per call.
func NormalizeEmail(email string) string {
	return cases.Lower(language.Und).String(strings.TrimSpace(email))
}

func validateWaitlistEmail(fl validator.FieldLevel) bool {
	return IsValidEmail(strings.TrimSpace(fl.Field().String()))
}

// RegisterValidators installs the waitlist_email tag on gin's validator.
func RegisterValidators() error {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			registerErr = errors.New("gin validator engine is not go-playground/validator")
			return
		}
		registerErr = v.RegisterValidation(EmailValidationTag, validateWaitlistEmail)
	})

	return registerErr
}
