package submission

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"github.com/vango-dev/uireg/internal/errors"
	"github.com/vango-dev/uireg/internal/slug"
)

// Limits on detail fields.
const (
	MaxNameLength        = 100
	MaxDescriptionLength = 1000
	MaxTagLength         = 32
	MaxTags              = 10
	MaxLicenseLength     = 64
)

// Validator checks one string field.
type Validator interface {
	Validate(value string) error
}

// ValidatorFunc is a function that implements Validator.
type ValidatorFunc func(value string) error

func (f ValidatorFunc) Validate(value string) error {
	return f(value)
}

// Required rejects blank values.
func Required(msg string) Validator {
	if msg == "" {
		msg = "This field is required"
	}
	return ValidatorFunc(func(value string) error {
		if strings.TrimSpace(value) == "" {
			return errors.New("E300").WithDetail(msg)
		}
		return nil
	})
}

// MaxLength rejects values longer than n characters.
func MaxLength(n int, msg string) Validator {
	if msg == "" {
		msg = fmt.Sprintf("Must be at most %d characters", n)
	}
	return ValidatorFunc(func(value string) error {
		if len([]rune(value)) > n {
			return errors.New("E306").WithDetail(msg)
		}
		return nil
	})
}

// Pattern rejects non-empty values that don't match re.
func Pattern(re *regexp.Regexp, msg string) Validator {
	if msg == "" {
		msg = "Invalid format"
	}
	return ValidatorFunc(func(value string) error {
		if value != "" && !re.MatchString(value) {
			return errors.New("E306").WithDetail(msg)
		}
		return nil
	})
}

// Slug rejects non-empty values that are not valid slugs.
func Slug() Validator {
	return ValidatorFunc(func(value string) error {
		if value != "" && !slug.Valid(value) {
			return errors.New("E304").WithDetailf("%q is not a valid slug", value)
		}
		return nil
	})
}

// HTTPURL rejects non-empty values that are not absolute http(s) URLs.
func HTTPURL(msg string) Validator {
	if msg == "" {
		msg = "Must be an http or https URL"
	}
	return ValidatorFunc(func(value string) error {
		if value == "" {
			return nil
		}
		u, err := url.Parse(value)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return errors.New("E306").WithDetail(msg)
		}
		return nil
	})
}

// validate runs validators in order and returns the first failure, tagged
// with field.
func validate(field, value string, validators ...Validator) *errors.RegistryError {
	for _, v := range validators {
		if err := v.Validate(value); err != nil {
			re, ok := errors.As(err)
			if !ok {
				re = errors.New("E306").WithDetail(err.Error())
			}
			return re.WithField(field)
		}
	}
	return nil
}

var (
	nameValidators = []Validator{
		Required("Component name is required"),
		MaxLength(MaxNameLength, ""),
	}
	slugValidators = []Validator{
		Required("Slug is required"),
		Slug(),
	}
	descriptionValidators = []Validator{
		MaxLength(MaxDescriptionLength, ""),
	}
	licenseValidators = []Validator{
		MaxLength(MaxLicenseLength, ""),
		Pattern(regexp.MustCompile(`^[A-Za-z0-9.+-]+$`), "Use an SPDX identifier such as MIT"),
	}
	websiteValidators = []Validator{
		HTTPURL(""),
	}
)

// ValidateTags checks free-text tags: non-blank, at most MaxTagLength
// characters, at most MaxTags of them, and each must slugify to something.
func ValidateTags(tags []string) *errors.RegistryError {
	if len(tags) > MaxTags {
		return errors.New("E307").WithField("tags").
			WithDetailf("At most %d tags", MaxTags)
	}
	for _, tag := range tags {
		t := strings.TrimSpace(tag)
		switch {
		case t == "":
			return errors.New("E307").WithField("tags").WithDetail("Tags cannot be blank")
		case len([]rune(t)) > MaxTagLength:
			return errors.New("E307").WithField("tags").
				WithDetailf("%q is longer than %d characters", t, MaxTagLength)
		case slug.Make(t) == "":
			return errors.New("E307").WithField("tags").
				WithDetailf("%q needs at least one letter or digit", t)
		}
	}
	return nil
}

// FormatComponentName turns an identifier into a display name:
// "MyButton" → "My Button", "HTMLInput" → "HTML Input", "card_list" →
// "Card List".
func FormatComponentName(ident string) string {
	runes := []rune(strings.TrimSpace(ident))
	var b strings.Builder
	newWord := true
	for i, r := range runes {
		if r == '_' || r == '-' || unicode.IsSpace(r) {
			newWord = true
			continue
		}
		if i > 0 && b.Len() > 0 && !newWord {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			switch {
			case unicode.IsUpper(r) && (unicode.IsLower(prev) || unicode.IsDigit(prev)):
				newWord = true
			case unicode.IsUpper(r) && unicode.IsUpper(prev) && nextLower:
				newWord = true
			}
		}
		if newWord {
			if b.Len() > 0 {
				b.WriteByte(' ')
			}
			r = unicode.ToUpper(r)
			newWord = false
		}
		b.WriteRune(r)
	}
	return b.String()
}
