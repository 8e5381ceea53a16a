package field

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// All chains validators; the first failure wins.
func All(validators ...Validator) Validator {
	return func(value any) error {
		for _, validate := range validators {
			if validate == nil {
				continue
			}
			if err := validate(value); err != nil {
				return err
			}
		}
		return nil
	}
}

// MaxLen rejects strings longer than limit runes.
func MaxLen(limit int) Validator {
	return func(value any) error {
		s, ok := value.(string)
		if !ok {
			return nil
		}
		if len([]rune(s)) > limit {
			return fmt.Errorf("must be at most %d characters", limit)
		}
		return nil
	}
}

// Pattern rejects strings that do not match the expression. It panics on a
// malformed expression, so it is for programmatic call sites with literal
// patterns; loaders handling untrusted input compile first and use
// PatternRegexp.
func Pattern(expr string, message string) Validator {
	return PatternRegexp(regexp.MustCompile(expr), message)
}

// PatternRegexp rejects strings that do not match the already-compiled
// expression.
func PatternRegexp(re *regexp.Regexp, message string) Validator {
	expr := re.String()
	return func(value any) error {
		s, ok := value.(string)
		if !ok || s == "" {
			return nil
		}
		if !re.MatchString(s) {
			if message != "" {
				return errors.New(message)
			}
			return fmt.Errorf("must match %s", expr)
		}
		return nil
	}
}

// NumberRange rejects numeric values outside [min, max].
func NumberRange(min, max float64) Validator {
	return func(value any) error {
		n, ok := asNumber(value)
		if !ok {
			return errors.New("must be a number")
		}
		if n < min || n > max {
			return fmt.Errorf("must be between %v and %v", min, max)
		}
		return nil
	}
}

// DateFormat rejects date strings that do not parse with the given layout.
func DateFormat(layout string) Validator {
	return func(value any) error {
		s, ok := value.(string)
		if !ok || s == "" {
			return nil
		}
		if _, err := time.Parse(layout, s); err != nil {
			return fmt.Errorf("must be a date in %s form", layout)
		}
		return nil
	}
}

// URL rejects strings that are not absolute http(s) URLs.
func URL() Validator {
	return func(value any) error {
		s, ok := value.(string)
		if !ok || s == "" {
			return nil
		}
		parsed, err := url.Parse(strings.TrimSpace(s))
		if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
			return errors.New("must be a full http or https URL")
		}
		return nil
	}
}

// OneOf rejects values outside the spec's declared choices.
func OneOf(choices []Choice) Validator {
	allowed := make(map[string]struct{}, len(choices))
	for _, choice := range choices {
		allowed[choice.Value] = struct{}{}
	}
	return func(value any) error {
		switch v := value.(type) {
		case string:
			if v == "" {
				return nil
			}
			if _, ok := allowed[v]; !ok {
				return fmt.Errorf("%q is not one of the allowed options", v)
			}
		case []string:
			for _, item := range v {
				if _, ok := allowed[item]; !ok {
					return fmt.Errorf("%q is not one of the allowed options", item)
				}
			}
		}
		return nil
	}
}

// Price rejects values that are not a non-negative amount with at most two
// decimal places.
func Price() Validator {
	return func(value any) error {
		s := strings.TrimSpace(asString(value))
		if s == "" {
			return nil
		}
		n, err := strconv.ParseFloat(s, 64)
		if err != nil || n < 0 {
			return errors.New("must be a non-negative amount")
		}
		if dot := strings.IndexByte(s, '.'); dot >= 0 && len(s)-dot-1 > 2 {
			return errors.New("must have at most two decimal places")
		}
		return nil
	}
}
