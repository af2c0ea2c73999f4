package oauth

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/language"
)

// User is the canonical user record built from a provider's user info.  Most
// fields may be empty.  A user is identified by (ProviderName, ID).
type User struct {
	ProviderName string

	ID         string
	Email      string
	Username   string
	Name       string
	FirstName  string
	LastName   string
	Nickname   string
	Link       string
	Gender     string
	Timezone   string
	Locale     string
	Picture    string
	BirthDate  string
	Country    string
	City       string
	PostalCode string
	Phone      string
	Location   string

	// Raw is the payload the user was built from.
	Raw any

	// Credentials are the credentials the user info was fetched with.
	Credentials *Credentials
}

// UserFieldNames lists the canonical user field names, as used by
// Behavior.UserFields.
func UserFieldNames() []string {
	return []string{
		"id", "email", "username", "name", "first_name", "last_name",
		"nickname", "link", "gender", "timezone", "locale", "picture",
		"birth_date", "country", "city", "postal_code", "phone", "location",
	}
}

// Field returns a pointer to the canonical field name, or nil.
func (u *User) Field(name string) *string {
	switch name {
	case "id":
		return &u.ID
	case "email":
		return &u.Email
	case "username":
		return &u.Username
	case "name":
		return &u.Name
	case "first_name":
		return &u.FirstName
	case "last_name":
		return &u.LastName
	case "nickname":
		return &u.Nickname
	case "link":
		return &u.Link
	case "gender":
		return &u.Gender
	case "timezone":
		return &u.Timezone
	case "locale":
		return &u.Locale
	case "picture":
		return &u.Picture
	case "birth_date":
		return &u.BirthDate
	case "country":
		return &u.Country
	case "city":
		return &u.City
	case "postal_code":
		return &u.PostalCode
	case "phone":
		return &u.Phone
	case "location":
		return &u.Location
	}
	return nil
}

// LanguageTag parses Locale as a BCP 47 tag.  Provider locales such as
// "en_US" are accepted.
func (u *User) LanguageTag() (language.Tag, error) {
	const op = "oauth.(User).LanguageTag"
	if u.Locale == "" {
		return language.Und, fmt.Errorf("%s: locale is empty: %w", op, ErrNotFound)
	}
	tag, err := language.Parse(strings.ReplaceAll(u.Locale, "_", "-"))
	if err != nil {
		return language.Und, fmt.Errorf("%s: %w", op, err)
	}
	return tag, nil
}

// update copies data into the user: the behavior's field map first, then its
// parser, then derived fields that are still empty.
func (u *User) update(b *Behavior, data any) error {
	const op = "oauth.(User).update"
	u.Raw = data
	if m, ok := data.(map[string]any); ok {
		for _, name := range UserFieldNames() {
			path := name
			if p, ok := b.UserFields[name]; ok {
				path = p
			}
			if v, ok := Lookup(m, path); ok {
				if s := Stringify(v); s != "" {
					*u.Field(name) = s
				}
			}
		}
	}
	if b.UserParser != nil {
		if err := b.UserParser(u, data); err != nil {
			return fmt.Errorf("%s: %s user parser: %w", op, b.Name, err)
		}
	}
	u.derive()
	return nil
}

// fill copies the canonical fields of from that are empty in u.
func (u *User) fill(from *User) {
	for _, name := range UserFieldNames() {
		if dst := u.Field(name); *dst == "" {
			*dst = *from.Field(name)
		}
	}
	u.derive()
}

func (u *User) derive() {
	if u.Name == "" {
		switch {
		case u.FirstName != "" || u.LastName != "":
			u.Name = strings.TrimSpace(u.FirstName + " " + u.LastName)
		case u.Username != "":
			u.Name = u.Username
		case u.Nickname != "":
			u.Name = u.Nickname
		}
	}
	if u.Location == "" {
		switch {
		case u.City != "" && u.Country != "":
			u.Location = u.City + ", " + u.Country
		case u.City != "":
			u.Location = u.City
		case u.Country != "":
			u.Location = u.Country
		}
	}
}

// Lookup walks a dotted path through nested maps and slices, e.g.
// "response.user.firstName" or "emails.0.value".
func Lookup(data any, path string) (any, bool) {
	cur := data
	for _, part := range strings.Split(path, ".") {
		switch v := cur.(type) {
		case map[string]any:
			next, ok := v[part]
			if !ok {
				return nil, false
			}
			cur = next
		case []any:
			i, err := strconv.Atoi(part)
			if err != nil || i < 0 || i >= len(v) {
				return nil, false
			}
			cur = v[i]
		default:
			return nil, false
		}
	}
	return cur, cur != nil
}

// LookupString is Lookup followed by Stringify.
func LookupString(data any, path string) string {
	v, ok := Lookup(data, path)
	if !ok {
		return ""
	}
	return Stringify(v)
}

// Stringify renders scalar payload values.  Maps and slices render as "".
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

// toInt64 reads numeric payload values such as expires_in, which providers
// send as numbers or strings.
func toInt64(v any) (int64, bool) {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i, true
		}
		if f, err := t.Float64(); err == nil {
			return int64(f), true
		}
	case float64:
		return int64(t), true
	case int:
		return int64(t), true
	case int64:
		return t, true
	case string:
		if i, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64); err == nil {
			return i, true
		}
	}
	return 0, false
}
