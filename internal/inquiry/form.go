package inquiry

import (
	"fmt"
	"strings"

	"github.com/roach88/cmstory/internal/content"
)

const (
	maxFieldLen   = 200
	maxMessageLen = 5000
)

// Form is a contact form submission as entered.
type Form struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
	Type    string `json:"type"`
	Message string `json:"message"`
	Consent bool   `json:"consent"`
}

// FieldError describes one invalid form field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// FieldErrors is returned by Validate when any field is invalid.
type FieldErrors []FieldError

func (e FieldErrors) Error() string {
	parts := make([]string, len(e))
	for i, fe := range e {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "invalid inquiry: " + strings.Join(parts, "; ")
}

// Has reports whether field has an error.
func (e FieldErrors) Has(field string) bool {
	for _, fe := range e {
		if fe.Field == field {
			return true
		}
	}
	return false
}

// Normalize trims whitespace and resolves Type to the site's English label
// for that contact type. An empty type becomes the last listed type.
func (f Form) Normalize(site *content.Site) Form {
	f.Name = strings.TrimSpace(f.Name)
	f.Phone = strings.TrimSpace(f.Phone)
	f.Email = strings.TrimSpace(f.Email)
	f.Type = strings.TrimSpace(f.Type)
	f.Message = strings.TrimSpace(f.Message)

	if f.Type == "" && len(site.ContactTypes) > 0 {
		f.Type = site.ContactTypes[len(site.ContactTypes)-1].EN
	}
	if t, ok := site.ContactType(f.Type); ok {
		f.Type = t.EN
	}
	return f
}

// Validate checks a normalized form. It returns FieldErrors listing every
// invalid field, in form order.
func (f Form) Validate(site *content.Site) error {
	var errs FieldErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	switch {
	case f.Name == "":
		add("name", "required")
	case len(f.Name) > maxFieldLen:
		add("name", "longer than %d bytes", maxFieldLen)
	}

	switch {
	case f.Phone == "":
		add("phone", "required")
	case len(f.Phone) > maxFieldLen:
		add("phone", "longer than %d bytes", maxFieldLen)
	}

	local, domain, found := strings.Cut(f.Email, "@")
	switch {
	case f.Email == "":
		add("email", "required")
	case !found || local == "" || domain == "":
		add("email", "not an email address")
	case len(f.Email) > maxFieldLen:
		add("email", "longer than %d bytes", maxFieldLen)
	}

	if _, ok := site.ContactType(f.Type); !ok {
		add("type", "unknown contact type %q", f.Type)
	}

	if len(f.Message) > maxMessageLen {
		add("message", "longer than %d bytes", maxMessageLen)
	}

	if !f.Consent {
		add("consent", "consent to collect personal information is required")
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
