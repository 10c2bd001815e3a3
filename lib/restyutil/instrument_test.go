package restyutil

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/require"
)

type memoryOutput struct {
	mutex   sync.Mutex
	entries map[string]string
}

func (o *memoryOutput) Write(id string, contents string) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.entries[id] = contents
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func TestInstrumentClient(t *testing.T) {
	output := &memoryOutput{entries: map[string]string{}}
	client := resty.New().SetTransport(roundTripFunc(func(req *http.Request) (*http.Response, error) {
		if strings.Contains(req.URL.Path, "broken") {
			return nil, errors.New("connection reset")
		}
		return &http.Response{
			StatusCode: http.StatusOK,
			Status:     "200 OK",
			Header:     http.Header{"Content-Type": {"text/html"}},
			Body:       io.NopCloser(strings.NewReader("<html>dashboard</html>")),
			Request:    req,
		}, nil
	}))
	InstrumentClient(client, output)

	_, err := client.R().
		SetHeader("Cookie", "PHPSESSID=sess1; edid=abc").
		Get("https://school42.edupage.org/user/")
	require.NoError(t, err)

	_, err = client.R().Get("https://school42.edupage.org/broken")
	require.Error(t, err)

	require.Len(t, output.entries, 2)
	var transcript, failure string
	for id, contents := range output.entries {
		if strings.HasSuffix(id, "-error") {
			failure = contents
			continue
		}
		transcript = contents
	}

	require.Contains(t, transcript, "GET https://school42.edupage.org/user/")
	require.Contains(t, transcript, "Cookie: PHPSESSID=<redacted>; edid=<redacted>")
	require.NotContains(t, transcript, "sess1")
	require.Contains(t, transcript, "200 OK")
	require.Contains(t, transcript, "<html>dashboard</html>")

	require.Contains(t, failure, "GET https://school42.edupage.org/broken")
	require.Contains(t, failure, "connection reset")
}
