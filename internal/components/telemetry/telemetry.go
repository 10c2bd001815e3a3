package telemetry

import (
	"fmt"
)

// API is the sink every component reports to instead of reaching for a global logger.
// Tests swap it for a RecorderAPI to assert on what was reported.
type API interface {
	// ReportBroken reports a component that failed in a way somebody should look at.
	//
	// `id` names the component, not the line that failed: `client.do` rather than
	// `client.do-json-unmarshal`. Put the details (wrapped errors, urls, ids) into params.
	// Ids are lowercase, underscores separate words of a component, dashes separate words of
	// a method. Use ScopedAPI to prefix the package instead of spelling it out in every id.
	ReportBroken(id string, params ...any)

	// ReportWarning reports something unexpected that did not stop the operation, like a
	// malformed cookie segment or an ASC value that could not be decoded.
	ReportWarning(id string, params ...any)

	// ReportDebug reports information only useful while developing.
	ReportDebug(msg string, params ...any)

	// ReportCount reports a point-in-time count for `id`.
	ReportCount(id string, count int64)
}

// ScopedAPI prefixes every id with a namespace, similar to creating a sub-logger.
type ScopedAPI struct {
	namespace string
	inner     API
}

func NewScopedAPI(namespace string, inner API) ScopedAPI {
	return ScopedAPI{namespace: namespace, inner: inner}
}

func (s ScopedAPI) scope(id string) string {
	return fmt.Sprintf("%s: %s", s.namespace, id)
}

func (s ScopedAPI) ReportBroken(id string, params ...any) {
	s.inner.ReportBroken(s.scope(id), params...)
}

func (s ScopedAPI) ReportWarning(id string, params ...any) {
	s.inner.ReportWarning(s.scope(id), params...)
}

func (s ScopedAPI) ReportDebug(msg string, params ...any) {
	s.inner.ReportDebug(s.scope(msg), params...)
}

func (s ScopedAPI) ReportCount(id string, count int64) {
	s.inner.ReportCount(s.scope(id), count)
}

// NoopAPI discards everything, it is the default when no sink is given.
type NoopAPI struct{}

func (NoopAPI) ReportBroken(string, ...any)  {}
func (NoopAPI) ReportWarning(string, ...any) {}
func (NoopAPI) ReportDebug(string, ...any)   {}
func (NoopAPI) ReportCount(string, int64)    {}

// OrNoop returns tel, or NoopAPI if tel is nil.
func OrNoop(tel API) API {
	if tel == nil {
		return NoopAPI{}
	}
	return tel
}
