package markup

import (
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// Namespaces holds the base URLs that link references are resolved against.
// Each base has no trailing slash.
type Namespaces struct {
	Ticket  string
	Report  string
	Wiki    string
	Browser string
	Docs    string
	Log     string
}

// Validate reports a missing or malformed base URL.
func (n Namespaces) Validate() error {
	rules := []validation.Rule{validation.Required, is.URL, validation.By(noTrailingSlash)}
	return validation.ValidateStruct(&n,
		validation.Field(&n.Ticket, rules...),
		validation.Field(&n.Report, rules...),
		validation.Field(&n.Wiki, rules...),
		validation.Field(&n.Browser, rules...),
		validation.Field(&n.Docs, rules...),
		validation.Field(&n.Log, rules...),
	)
}

func noTrailingSlash(value interface{}) error {
	s, _ := value.(string)
	if strings.HasSuffix(s, "/") {
		return errors.New("must not end with a slash")
	}
	return nil
}

// join appends a path to a base URL.
func join(base, rest string) string {
	return base + "/" + strings.TrimPrefix(rest, "/")
}

func mdLink(text, url string) string {
	return "[" + text + "](" + url + ")"
}
