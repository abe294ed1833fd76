package wizard

import (
	"fmt"
	"strings"
)

// Field validation helpers shared by the signup flows. Checks mirror the
// web client: they are local, synchronous, and return user-facing messages.

// CheckUsername requires at least 3 characters.
func CheckUsername(form *FormState) []string {
	if len(form.String("username")) < 3 {
		return []string{"username must be at least 3 characters"}
	}
	return nil
}

// CheckEmail requires a non-empty local part and domain around an @.
func CheckEmail(form *FormState) []string {
	email := form.String("email")
	at := strings.Index(email, "@")
	if at < 1 || at == len(email)-1 {
		return []string{"a valid email address is required"}
	}
	return nil
}

// CheckPassword requires the password to meet the flow's minimum length and
// to match its confirmation.
func CheckPassword(minLen int) Validator {
	return func(form *FormState) []string {
		var problems []string
		password := form.String("password")
		if len(password) < minLen {
			problems = append(problems, fmt.Sprintf("password must be at least %d characters", minLen))
		}
		if password != form.String("confirmPassword") {
			problems = append(problems, "passwords do not match")
		}
		return problems
	}
}

// CheckWalletPIN requires exactly 6 digits.
func CheckWalletPIN(form *FormState) []string {
	pin := form.String("wallet_pin")
	if len(pin) != 6 {
		return []string{"wallet PIN must be exactly 6 digits"}
	}
	for _, r := range pin {
		if r < '0' || r > '9' {
			return []string{"wallet PIN must contain only digits"}
		}
	}
	return nil
}

// CheckRequired requires each named field to be a non-empty string.
func CheckRequired(fields ...string) Validator {
	return func(form *FormState) []string {
		var problems []string
		for _, field := range fields {
			if form.String(field) == "" {
				problems = append(problems, fmt.Sprintf("%s is required", field))
			}
		}
		return problems
	}
}

// CheckAgreed requires each named checkbox field to be true.
func CheckAgreed(messages map[string]string) Validator {
	return func(form *FormState) []string {
		var problems []string
		for field, message := range messages {
			if !form.Bool(field) {
				problems = append(problems, message)
			}
		}
		return problems
	}
}

// CheckNumeric requires the field, when set, to parse as a base-10 number.
func CheckNumeric(field, message string) Validator {
	return func(form *FormState) []string {
		v := form.String(field)
		if v == "" {
			return []string{message}
		}
		for i, r := range v {
			if r >= '0' && r <= '9' {
				continue
			}
			if r == '.' || (i == 0 && (r == '-' || r == '+')) {
				continue
			}
			return []string{message}
		}
		return nil
	}
}

// CheckSection requires the named sub-fields of a nested section.
func CheckSection(section string, message string, fields ...string) Validator {
	return func(form *FormState) []string {
		sec := form.Section(section)
		for _, field := range fields {
			s, _ := sec[field].(string)
			if strings.TrimSpace(s) == "" {
				return []string{message}
			}
		}
		return nil
	}
}

// All combines validators, accumulating every problem.
func All(validators ...Validator) Validator {
	return func(form *FormState) []string {
		var problems []string
		for _, v := range validators {
			problems = append(problems, v(form)...)
		}
		return problems
	}
}
