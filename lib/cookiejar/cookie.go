package cookiejar

import (
	"fmt"
	"net/http"
	"regexp"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"edupage-client/lib/fault"
)

const (
	AttrExpires  = "Expires"
	AttrMaxAge   = "Max-Age"
	AttrDomain   = "Domain"
	AttrPath     = "Path"
	AttrSameSite = "SameSite"

	FlagSecure   = "Secure"
	FlagHttpOnly = "HttpOnly"
)

var (
	knownAttributes = []string{AttrExpires, AttrMaxAge, AttrDomain, AttrPath, AttrSameSite}
	knownFlags      = []string{FlagSecure, FlagHttpOnly}
)

// Cookie is a single name/value pair with its Set-Cookie attributes.
type Cookie struct {
	Name       string            `json:"name"`
	Value      string            `json:"value"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Flags      []string          `json:"flags,omitempty"`
}

func canonical(known []string, key string) (string, bool) {
	for _, k := range known {
		if strings.EqualFold(k, key) {
			return k, true
		}
	}
	return key, false
}

// CanonicalAttribute maps an attribute key case-insensitively onto its canonical spelling.
// Unknown keys are returned unchanged.
func CanonicalAttribute(key string) string {
	out, _ := canonical(knownAttributes, strings.TrimSpace(key))
	return out
}

// CanonicalFlag maps a bare token onto Secure or HttpOnly.
func CanonicalFlag(token string) (string, bool) {
	return canonical(knownFlags, strings.TrimSpace(token))
}

func (c Cookie) clone() Cookie {
	out := Cookie{Name: c.Name, Value: c.Value}
	if len(c.Attributes) > 0 {
		out.Attributes = make(map[string]string, len(c.Attributes))
		for k, v := range c.Attributes {
			out.Attributes[k] = v
		}
	}
	if len(c.Flags) > 0 {
		out.Flags = slices.Clone(c.Flags)
	}
	return out
}

func (c Cookie) HasFlag(flag string) bool {
	return slices.Contains(c.Flags, flag)
}

// attributeKeys returns the attribute keys in rendering order: the known attributes first in
// their usual order, anything else sorted after them.
func (c Cookie) attributeKeys() []string {
	keys := make([]string, 0, len(c.Attributes))
	for _, k := range knownAttributes {
		if _, ok := c.Attributes[k]; ok {
			keys = append(keys, k)
		}
	}
	var rest []string
	for k := range c.Attributes {
		if !slices.Contains(knownAttributes, k) {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(keys, rest...)
}

// String renders "name=value; ". With full set, attributes and flags follow in the same
// "key=value; " form, which is what a Set-Cookie header carries.
func (c Cookie) String(full bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s=%s; ", c.Name, c.Value)
	if !full {
		return b.String()
	}
	for _, k := range c.attributeKeys() {
		fmt.Fprintf(&b, "%s=%s; ", k, c.Attributes[k])
	}
	for _, f := range c.Flags {
		b.WriteString(f)
		b.WriteString("; ")
	}
	return b.String()
}

var expiresLayouts = []string{
	http.TimeFormat,
	time.RFC1123,
	time.RFC1123Z,
	"Mon, 02-Jan-2006 15:04:05 MST",
	time.RFC850,
	time.ANSIC,
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Expires returns the parsed Expires attribute, ok is false when it is missing or unparseable.
func (c Cookie) Expires() (time.Time, bool) {
	raw, ok := c.Attributes[AttrExpires]
	if !ok {
		return time.Time{}, false
	}
	raw = strings.TrimSpace(raw)
	for _, layout := range expiresLayouts {
		t, err := time.Parse(layout, raw)
		if err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Expired is true when Expires is parseable and strictly before now.
func (c Cookie) Expired(now time.Time) bool {
	expires, ok := c.Expires()
	return ok && expires.Before(now)
}

var segmentSeparator = regexp.MustCompile(`;\s*`)

// Parse reads one Set-Cookie style string. The first key=value segment is the cookie itself,
// later key=value segments are attributes and bare tokens are flags. Segments that cannot be
// understood are returned as warnings, the rest of the cookie is still kept.
func Parse(raw string) (Cookie, []error) {
	var cookie Cookie
	var warnings []error

	for _, segment := range segmentSeparator.Split(raw, -1) {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			continue
		}

		key, value, isPair := strings.Cut(segment, "=")
		if isPair {
			key = strings.TrimSpace(key)
			if key == "" {
				warnings = append(warnings, fault.New(fault.KindValidation, "cookie segment without a key: %q", segment))
				continue
			}
			if cookie.Name == "" {
				cookie.Name = key
				cookie.Value = strings.TrimSpace(value)
				continue
			}
			if cookie.Attributes == nil {
				cookie.Attributes = map[string]string{}
			}
			cookie.Attributes[CanonicalAttribute(key)] = strings.TrimSpace(value)
			continue
		}

		flag, known := CanonicalFlag(segment)
		if !known {
			warnings = append(warnings, fault.New(fault.KindValidation, "unknown cookie flag: %q", segment))
			continue
		}
		if !cookie.HasFlag(flag) {
			cookie.Flags = append(cookie.Flags, flag)
		}
	}

	if cookie.Name == "" {
		warnings = append(warnings, fault.New(fault.KindValidation, "cookie without a name: %q", raw))
	}
	return cookie, warnings
}

func sameSiteName(mode http.SameSite) string {
	switch mode {
	case http.SameSiteLaxMode:
		return "Lax"
	case http.SameSiteStrictMode:
		return "Strict"
	case http.SameSiteNoneMode:
		return "None"
	}
	return ""
}

// FromHTTP converts a net/http cookie.
func FromHTTP(c *http.Cookie) Cookie {
	out := Cookie{Name: c.Name, Value: c.Value}
	attrs := map[string]string{}
	switch {
	case c.RawExpires != "":
		attrs[AttrExpires] = c.RawExpires
	case !c.Expires.IsZero():
		attrs[AttrExpires] = c.Expires.UTC().Format(http.TimeFormat)
	}
	if c.MaxAge > 0 {
		attrs[AttrMaxAge] = strconv.Itoa(c.MaxAge)
	}
	if c.Domain != "" {
		attrs[AttrDomain] = c.Domain
	}
	if c.Path != "" {
		attrs[AttrPath] = c.Path
	}
	if name := sameSiteName(c.SameSite); name != "" {
		attrs[AttrSameSite] = name
	}
	if len(attrs) > 0 {
		out.Attributes = attrs
	}
	if c.Secure {
		out.Flags = append(out.Flags, FlagSecure)
	}
	if c.HttpOnly {
		out.Flags = append(out.Flags, FlagHttpOnly)
	}
	return out
}
