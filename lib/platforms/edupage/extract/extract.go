// Package extract pulls JSON literals out of the HTML and inline scripts the portal serves.
// It only works on text, nothing is ever executed.
package extract

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"edupage-client/internal/components/telemetry"
	"edupage-client/lib/fault"
)

const (
	report_extract_assignments = "extractor.assignments"
	report_extract_call        = "extractor.call"
)

// Pattern is a named regular expression. For assignment patterns the first capture group is
// the key and the second the value, for every other pattern the first group is the value.
type Pattern struct {
	Name string
	expr *regexp.Regexp
}

func NewPattern(name, expr string) Pattern {
	return Pattern{Name: name, expr: regexp.MustCompile(expr)}
}

func (p Pattern) String() string {
	return p.Name
}

var (
	// ASC.key = value; pairs of the dashboard page
	ASC = NewPattern("asc", `ASC\.([a-zA-Z0-9_$]+)\s?=\s?([\s\S]+?);`)
	// the argument of $j(...).userhome(...) on the dashboard page
	UserHome = NewPattern("userhome", `(?m)\.userhome\((.+?)\);\r?$`)
	Edubar   = NewPattern("edubar", `edubar\(([\s\S]*?)\);`)
	// grade settings and grade data of the grades page
	GradeSettings = NewPattern("grade-settings", `initZnamkovanieSettings\(([\s\S]*?)\);`)
	GradeData     = NewPattern("grade-data", `znamkyStudentViewer\(([\s\S]*?)\);`)
	// the inline script a gcall loadData answer is made of
	Timetable = NewPattern("timetable", `classbook\.fill\([^,]*,\s*([\s\S]+?)\s*(?:,\s*function[\s\S]*?)?\);`)
	GPID      = NewPattern("gpid", `(?i)gpid="?(\d+)"?`)
	// draft id in the redirect of a created application
	Draft = NewPattern("draft", `draft=(\d+)`)
)

// Result is the outcome of an assignment extraction. Values holds every key that decoded,
// Failures one ContentDecode error per key that did not.
type Result struct {
	Values   map[string]json.RawMessage
	Failures []*fault.Error
}

// Err joins the failures, it is nil when every value decoded.
func (r Result) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}
	errs := make([]error, len(r.Failures))
	for i, f := range r.Failures {
		errs[i] = f
	}
	return errors.Join(errs...)
}

type Extractor struct {
	tel telemetry.API
}

func New(tel telemetry.API) Extractor {
	return Extractor{tel: telemetry.NewScopedAPI("edupage_extract", telemetry.OrNoop(tel))}
}

func pageStructureError(p Pattern, doc string) *fault.Error {
	return &fault.Error{
		Kind:     fault.KindPageStructure,
		Message:  "pattern matched nothing",
		Pattern:  p.Name,
		Snippet:  doc,
		Document: doc,
	}
}

func contentDecodeError(p Pattern, key, value, doc string, err error) *fault.Error {
	message := "matched value is not valid json"
	if key != "" {
		message = fmt.Sprintf("value of %q is not valid json", key)
	}
	return &fault.Error{
		Kind:     fault.KindContentDecode,
		Message:  message,
		Pattern:  p.Name,
		Snippet:  value,
		Document: doc,
		Err:      err,
	}
}

func validJSON(value string) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace([]byte(value))
	if !json.Valid(trimmed) {
		// run the decoder again for a useful error message
		var discard any
		err := json.Unmarshal(trimmed, &discard)
		if err == nil {
			err = errors.New("invalid json")
		}
		return nil, err
	}
	return json.RawMessage(trimmed), nil
}

// Assignments finds every `key = value;` match of p in doc. Values starting with `function`
// are skipped. A document without any match is a PageStructure error, a value that is not
// JSON only fails its own key.
func (e Extractor) Assignments(p Pattern, doc string) (Result, error) {
	matches := p.expr.FindAllStringSubmatch(doc, -1)
	if len(matches) == 0 {
		err := pageStructureError(p, doc)
		e.tel.ReportBroken(report_extract_assignments, err)
		return Result{}, err
	}

	result := Result{Values: make(map[string]json.RawMessage, len(matches))}
	for _, match := range matches {
		key, value := match[1], strings.TrimSpace(match[2])
		if strings.HasPrefix(value, "function") {
			continue
		}

		raw, err := validJSON(value)
		if err != nil {
			failure := contentDecodeError(p, key, value, doc, err)
			e.tel.ReportWarning(report_extract_assignments, failure)
			result.Failures = append(result.Failures, failure)
			continue
		}
		result.Values[key] = raw
	}
	return result, nil
}

// Call returns the JSON argument captured by the first match of p.
func (e Extractor) Call(p Pattern, doc string) (json.RawMessage, error) {
	match := p.expr.FindStringSubmatch(doc)
	if match == nil {
		err := pageStructureError(p, doc)
		e.tel.ReportBroken(report_extract_call, err)
		return nil, err
	}

	raw, err := validJSON(match[1])
	if err != nil {
		failure := contentDecodeError(p, "", match[1], doc, err)
		e.tel.ReportBroken(report_extract_call, failure)
		return nil, failure
	}
	return raw, nil
}

// Last returns the raw text captured by the last match of p.
func (e Extractor) Last(p Pattern, doc string) (string, error) {
	matches := p.expr.FindAllStringSubmatch(doc, -1)
	if len(matches) == 0 {
		return "", pageStructureError(p, doc)
	}
	return matches[len(matches)-1][1], nil
}

// Decode unmarshals raw into T. A shape mismatch is a ContentDecode error naming the pattern
// and key the value came from.
func Decode[T any](raw json.RawMessage, p Pattern, key string) (T, error) {
	var out T
	err := json.Unmarshal(raw, &out)
	if err != nil {
		return out, contentDecodeError(p, key, string(raw), "", err)
	}
	return out, nil
}
