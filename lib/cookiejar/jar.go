// Package cookiejar is the session store of one portal identity. Unlike net/http/cookiejar it
// does not do any domain or path matching: everything in the jar is sent to the portal, which
// is what the portal's own web client does.
package cookiejar

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"edupage-client/internal/components/chrono"
	"edupage-client/internal/components/telemetry"
	"edupage-client/lib/fault"
)

const report_jar_parse = "jar.parse"

// Options carries the attributes and flags of a cookie set by name and value.
type Options struct {
	Attributes map[string]string
	Flags      []string
}

// Snapshot is the structured literal form of a jar, what gets written to storage.
type Snapshot struct {
	Cookies []Cookie `json:"cookies"`
}

// Jar holds cookies by unique name in insertion order. Expired cookies are dropped lazily at
// the start of every operation. A Jar is safe for concurrent use.
type Jar struct {
	mutex   sync.Mutex
	cookies []Cookie

	time chrono.API
	tel  telemetry.API
}

// New creates an empty jar. Both arguments may be nil.
func New(clock chrono.API, tel telemetry.API) *Jar {
	if clock == nil {
		clock = chrono.StandardImpl{}
	}
	return &Jar{
		time: clock,
		tel:  telemetry.NewScopedAPI("cookiejar", telemetry.OrNoop(tel)),
	}
}

func (j *Jar) purgeLocked() {
	now := j.time.Now()
	kept := j.cookies[:0]
	for _, c := range j.cookies {
		if c.Expired(now) {
			continue
		}
		kept = append(kept, c)
	}
	j.cookies = kept
}

func (j *Jar) indexLocked(name string) int {
	for i, c := range j.cookies {
		if c.Name == name {
			return i
		}
	}
	return -1
}

func (j *Jar) addLocked(cookies ...Cookie) {
	for _, c := range cookies {
		if c.Name == "" {
			continue
		}
		if i := j.indexLocked(c.Name); i >= 0 {
			j.cookies = append(j.cookies[:i], j.cookies[i+1:]...)
		}
		j.cookies = append(j.cookies, c.clone())
	}
	j.purgeLocked()
}

func (j *Jar) add(cookies ...Cookie) {
	j.mutex.Lock()
	defer j.mutex.Unlock()
	j.addLocked(cookies...)
}

// Set replaces any cookie called name with a new one.
func (j *Jar) Set(name, value string, opts Options) {
	c := Cookie{
		Name:  strings.TrimSpace(name),
		Value: strings.TrimSpace(value),
	}
	for k, v := range opts.Attributes {
		if c.Attributes == nil {
			c.Attributes = map[string]string{}
		}
		c.Attributes[CanonicalAttribute(k)] = v
	}
	for _, f := range opts.Flags {
		flag, known := CanonicalFlag(f)
		if !known {
			j.tel.ReportWarning(report_jar_parse, fmt.Errorf("unknown cookie flag %q", f), name)
			continue
		}
		if !c.HasFlag(flag) {
			c.Flags = append(c.Flags, flag)
		}
	}
	j.add(c)
}

func (j *Jar) parseAll(raws []string) []Cookie {
	out := make([]Cookie, 0, len(raws))
	for _, raw := range raws {
		c, warnings := Parse(raw)
		for _, w := range warnings {
			j.tel.ReportWarning(report_jar_parse, w)
		}
		out = append(out, c)
	}
	return out
}

func (j *Jar) cookiesFromHeader(h http.Header) []Cookie {
	var out []Cookie
	for _, line := range h.Values("Cookie") {
		out = append(out, j.parseAll(strings.Split(line, ";"))...)
	}
	out = append(out, j.parseAll(h.Values("Set-Cookie"))...)
	return out
}

// SetCookie adds cookies from any of the shapes they arrive in:
//   - string, []string: raw Set-Cookie values
//   - *http.Response, *http.Request, http.Header: Set-Cookie and Cookie headers
//   - Cookie, *Cookie, []Cookie, Snapshot, *http.Cookie, []*http.Cookie: structured literals
//
// Anything else is a validation error.
func (j *Jar) SetCookie(source any) error {
	var cookies []Cookie

	switch s := source.(type) {
	case string:
		cookies = j.parseAll([]string{s})
	case []string:
		cookies = j.parseAll(s)
	case Cookie:
		cookies = []Cookie{s}
	case *Cookie:
		if s == nil {
			return fault.New(fault.KindValidation, "cannot set cookie from a nil *Cookie")
		}
		cookies = []Cookie{*s}
	case []Cookie:
		cookies = s
	case Snapshot:
		cookies = s.Cookies
	case *http.Cookie:
		if s == nil {
			return fault.New(fault.KindValidation, "cannot set cookie from a nil *http.Cookie")
		}
		cookies = []Cookie{FromHTTP(s)}
	case []*http.Cookie:
		for _, c := range s {
			if c != nil {
				cookies = append(cookies, FromHTTP(c))
			}
		}
	case http.Header:
		cookies = j.cookiesFromHeader(s)
	case *http.Response:
		if s == nil {
			return fault.New(fault.KindValidation, "cannot set cookie from a nil *http.Response")
		}
		cookies = j.cookiesFromHeader(s.Header)
	case *http.Request:
		if s == nil {
			return fault.New(fault.KindValidation, "cannot set cookie from a nil *http.Request")
		}
		cookies = j.cookiesFromHeader(s.Header)
	default:
		return fault.New(fault.KindValidation, "cannot set cookie from %T", source)
	}

	j.add(cookies...)
	return nil
}

// Get returns the cookie called name.
func (j *Jar) Get(name string) (Cookie, bool) {
	j.mutex.Lock()
	defer j.mutex.Unlock()

	j.purgeLocked()
	i := j.indexLocked(name)
	if i < 0 {
		return Cookie{}, false
	}
	return j.cookies[i].clone(), true
}

// Delete removes the cookie called name and returns it.
func (j *Jar) Delete(name string) (Cookie, bool) {
	j.mutex.Lock()
	defer j.mutex.Unlock()

	j.purgeLocked()
	i := j.indexLocked(name)
	if i < 0 {
		return Cookie{}, false
	}
	deleted := j.cookies[i]
	j.cookies = append(j.cookies[:i], j.cookies[i+1:]...)
	return deleted, true
}

// String serializes the jar. Without full it is a Cookie request header value.
func (j *Jar) String(full bool) string {
	j.mutex.Lock()
	defer j.mutex.Unlock()

	j.purgeLocked()
	var b strings.Builder
	for _, c := range j.cookies {
		b.WriteString(c.String(full))
	}
	return b.String()
}

func (j *Jar) Empty() bool {
	return j.Len() == 0
}

func (j *Jar) Len() int {
	j.mutex.Lock()
	defer j.mutex.Unlock()

	j.purgeLocked()
	return len(j.cookies)
}

func (j *Jar) Includes(name string) bool {
	_, ok := j.Get(name)
	return ok
}

// Cookies returns a copy of the live cookies in insertion order.
func (j *Jar) Cookies() []Cookie {
	j.mutex.Lock()
	defer j.mutex.Unlock()

	j.purgeLocked()
	out := make([]Cookie, len(j.cookies))
	for i, c := range j.cookies {
		out[i] = c.clone()
	}
	return out
}

// Clear drops every cookie.
func (j *Jar) Clear() {
	j.mutex.Lock()
	defer j.mutex.Unlock()
	j.cookies = nil
}

// WriteTo mirrors the jar onto an outgoing server response, one Set-Cookie header per cookie.
func (j *Jar) WriteTo(w http.ResponseWriter, full bool) {
	for _, c := range j.Cookies() {
		w.Header().Add("Set-Cookie", strings.TrimSuffix(c.String(full), "; "))
	}
}

func (j *Jar) Snapshot() Snapshot {
	return Snapshot{Cookies: j.Cookies()}
}

func (j *Jar) MarshalJSON() ([]byte, error) {
	return json.Marshal(j.Snapshot())
}

// UnmarshalJSON adds the cookies of a snapshot to the jar.
func (j *Jar) UnmarshalJSON(data []byte) error {
	var snapshot Snapshot
	err := json.Unmarshal(data, &snapshot)
	if err != nil {
		return fault.Wrap(fault.KindContentDecode, err, "decode cookie snapshot")
	}
	if j.time == nil {
		j.time = chrono.StandardImpl{}
	}
	if j.tel == nil {
		j.tel = telemetry.NoopAPI{}
	}
	j.add(snapshot.Cookies...)
	return nil
}
