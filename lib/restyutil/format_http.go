package restyutil

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/go-resty/resty/v2"
)

func formatHeaders(headers http.Header) string {
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var lines []string
	for _, k := range keys {
		for _, v := range headers[k] {
			if strings.EqualFold(k, "Cookie") {
				v = redact(v)
			}
			lines = append(lines, fmt.Sprintf("%s: %s", k, v))
		}
	}
	return strings.Join(lines, "\n")
}

// redact keeps cookie names but hides values, transcripts end up in bug reports.
func redact(cookieHeader string) string {
	parts := strings.Split(cookieHeader, ";")
	for i, p := range parts {
		name, _, found := strings.Cut(strings.TrimSpace(p), "=")
		if found {
			parts[i] = name + "=<redacted>"
		}
	}
	return strings.Join(parts, "; ")
}

func formatRequestBody(req *http.Request) string {
	if req == nil || req.GetBody == nil {
		return "<NO BODY AVAILABLE>"
	}
	body, err := req.GetBody()
	if err != nil {
		return fmt.Sprintf("failed to get request body: %s", err.Error())
	}
	readBody, err := io.ReadAll(body)
	if err != nil {
		return fmt.Sprintf("failed to read request body: %s", err.Error())
	}
	return string(readBody)
}

const transcriptTemplate = `---- REQUEST ----

%s %s

%s

%s

---- RESPONSE ----

%s

%s

%s`

func formatTranscript(res *resty.Response) string {
	var requestHeaders string
	if res.Request.RawRequest != nil {
		requestHeaders = formatHeaders(res.Request.RawRequest.Header)
	}
	return fmt.Sprintf(
		transcriptTemplate,
		res.Request.Method, res.Request.URL,
		requestHeaders,
		formatRequestBody(res.Request.RawRequest),
		res.Status(),
		formatHeaders(res.Header()),
		res.String(),
	)
}

const failedTemplate = `---- REQUEST ----

%s %s

%s

---- ERROR ----

%s`

func formatFailure(req *resty.Request, err error) string {
	return fmt.Sprintf(
		failedTemplate,
		req.Method, req.URL,
		formatHeaders(req.Header),
		err.Error(),
	)
}
