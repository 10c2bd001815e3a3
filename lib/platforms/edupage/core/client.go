// Package core talks to the portal: it owns the session of one identity, resolves endpoints,
// encodes bodies, and retries calls that fail in the ways the portal usually fails (empty
// answers, half-written JSON, a login page in place of data).
package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"edupage-client/internal/components/chrono"
	"edupage-client/internal/components/telemetry"
	"edupage-client/lib/cookiejar"
	"edupage-client/lib/fault"
	"edupage-client/lib/restyutil"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/time/rate"
)

const (
	report_client_do      = "client.do"
	report_client_relogin = "client.relogin"
	report_client_cookies = "client.cookies"
)

// LoginMarker is present in every page the portal serves to a logged out visitor.
const LoginMarker = "edubarLogin.php"

const (
	DefaultMaxRetries = 2
	DefaultTimeout    = 30 * time.Second
	DefaultRateLimit  = rate.Limit(4)
	defaultUserAgent  = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"
)

var (
	tracer = otel.Tracer("edupage-client/core")
	meter  = otel.Meter("edupage-client/core")
)

// Mode is how a response body is interpreted.
type Mode int

const (
	ModeJSON Mode = iota
	ModeText
)

// Request describes one logical call. Either Endpoint or URL must be set.
type Request struct {
	Endpoint Endpoint
	URL      string
	// defaults to POST
	Method   string
	Payload  map[string]string
	Body     []byte
	Encoding Encoding
	Headers  map[string]string
	Mode     Mode
	// NoRelogin disables logging in again when the portal answers with its login page.
	NoRelogin bool
}

func (r Request) method() string {
	if r.Method == "" {
		return http.MethodPost
	}
	return strings.ToUpper(r.Method)
}

func (r Request) target() string {
	if r.URL != "" {
		return r.URL
	}
	return r.Endpoint.String()
}

type Response struct {
	// Text is the raw body, set in both modes.
	Text string
	// JSON is set in ModeJSON.
	JSON json.RawMessage
	// Attempts is the number of sends the call took.
	Attempts int
}

// Decode unmarshals the JSON body of res into T, failing with ContentDecode.
func Decode[T any](res Response) (T, error) {
	var out T
	err := json.Unmarshal(res.JSON, &out)
	if err != nil {
		return out, &fault.Error{
			Kind:     fault.KindContentDecode,
			Message:  "unexpected response shape",
			Snippet:  res.Text,
			Document: res.Text,
			Err:      err,
		}
	}
	return out, nil
}

type Options struct {
	// MaxRetries bounds the retries after the first send. Zero means DefaultMaxRetries, a
	// negative value disables retrying.
	MaxRetries int
	// Timeout of a single HTTP exchange, zero means DefaultTimeout.
	Timeout time.Duration
	// RateLimit spaces out requests, zero means DefaultRateLimit.
	RateLimit rate.Limit
	// CloudflareBypass wraps the transport so requests look like a browser's TLS handshake.
	CloudflareBypass bool
	// Transport replaces the HTTP transport, tests use it to fake the portal.
	Transport http.RoundTripper
	UserAgent string
	// Output receives a transcript of every exchange when set.
	Output restyutil.InstrumentOutput

	Telemetry telemetry.API
	Time      chrono.API
}

// Client is the session of one portal identity. It is safe for concurrent use, logging in
// again is serialized so concurrent calls that all hit the login page log in once.
type Client struct {
	http       *resty.Client
	tel        telemetry.API
	time       chrono.API
	maxRetries int
	attempts   metric.Int64Counter

	loginMutex sync.Mutex

	mutex       sync.RWMutex
	origin      string
	jar         *cookiejar.Jar
	account     Account
	credentials *Credentials
	// bumped on every login, lets a waiting relogin notice somebody else already did it
	generation uint64
}

func NewClient(opts Options) (*Client, error) {
	tel := telemetry.NewScopedAPI("edupage_core", telemetry.OrNoop(opts.Telemetry))
	clock := opts.Time
	if clock == nil {
		clock = chrono.StandardImpl{}
	}

	maxRetries := opts.MaxRetries
	switch {
	case maxRetries == 0:
		maxRetries = DefaultMaxRetries
	case maxRetries < 0:
		maxRetries = 0
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	limit := opts.RateLimit
	if limit == 0 {
		limit = DefaultRateLimit
	}
	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	httpClient := resty.New()
	// cookies are managed by hand, every one of them goes to the portal
	httpClient.SetCookieJar(nil)
	httpClient.SetTimeout(timeout)
	httpClient.SetRedirectPolicy(resty.FlexibleRedirectPolicy(10))
	httpClient.SetHeader("user-agent", userAgent)
	if opts.Transport != nil {
		httpClient.SetTransport(opts.Transport)
	}
	if opts.CloudflareBypass {
		httpClient.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(httpClient.GetClient().Transport)
	}

	rateLimiter := rate.NewLimiter(limit, 4)
	httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return rateLimiter.Wait(req.Context())
	})
	telemetry.InstrumentResty(httpClient, tel)
	restyutil.InstrumentClient(httpClient, opts.Output)

	attempts, err := meter.Int64Counter(
		"edupage.request.attempts",
		metric.WithDescription("sends made by the request engine, by outcome"),
	)
	if err != nil {
		return nil, err
	}

	return &Client{
		http:       httpClient,
		tel:        tel,
		time:       clock,
		maxRetries: maxRetries,
		attempts:   attempts,
		jar:        cookiejar.New(clock, tel),
	}, nil
}

// Origin is the subdomain of the school the identity belongs to, empty before login.
func (c *Client) Origin() string {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.origin
}

// BaseURL is https://<origin>.edupage.org, empty before login.
func (c *Client) BaseURL() string {
	origin := c.Origin()
	if origin == "" {
		return ""
	}
	return OriginURL(origin)
}

func (c *Client) Account() Account {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.account
}

func (c *Client) Jar() *cookiejar.Jar {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.jar
}

func (c *Client) LoggedIn() bool {
	return c.Origin() != ""
}

// Now is the client's clock.
func (c *Client) Now() time.Time {
	return c.time.Now()
}

func (c *Client) Clock() chrono.API {
	return c.time
}

func (c *Client) state() (origin string, jar *cookiejar.Jar, generation uint64) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.origin, c.jar, c.generation
}

type outcome int

const (
	outcomeSuccess outcome = iota
	outcomeNetworkRetry
	outcomeEmptyRetry
	outcomeNeedRelogin
	outcomeParseRetry
)

func (o outcome) String() string {
	switch o {
	case outcomeSuccess:
		return "success"
	case outcomeNetworkRetry:
		return "network_retry"
	case outcomeEmptyRetry:
		return "empty_retry"
	case outcomeNeedRelogin:
		return "need_relogin"
	case outcomeParseRetry:
		return "parse_retry"
	}
	return "unknown"
}

// classify decides what to do with one send, in order: transport error, empty body, login
// page, then the requested interpretation.
func classify(mode Mode, relogin bool, body []byte, err error) outcome {
	if err != nil {
		return outcomeNetworkRetry
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return outcomeEmptyRetry
	}
	if relogin && bytes.Contains(body, []byte(LoginMarker)) {
		return outcomeNeedRelogin
	}
	if mode == ModeText {
		return outcomeSuccess
	}
	if json.Valid(body) {
		return outcomeSuccess
	}
	return outcomeParseRetry
}

func (c *Client) resolve(req Request, origin string) (string, error) {
	if req.URL != "" {
		return req.URL, nil
	}
	return Resolve(origin, req.Endpoint, c.time.Now())
}

func (c *Client) send(ctx context.Context, req Request, target, origin string, jar *cookiejar.Jar) ([]byte, error) {
	headers := map[string]string{
		"accept":           "application/json, text/javascript, */*; q=0.01",
		"content-type":     contentTypeForm,
		"Cookie":           jar.String(false),
		"x-requested-with": "XMLHttpRequest",
	}
	if origin != "" {
		headers["referrer"] = OriginURL(origin) + "/"
	}
	for k, v := range req.Headers {
		headers[k] = v
	}

	r := c.http.R().SetContext(ctx).SetHeaders(headers)
	method := req.method()
	if method == http.MethodPost {
		body, err := encodeBody(req)
		if err != nil {
			return nil, err
		}
		r.SetBody(body)
	}

	res, err := r.Execute(method, target)
	if err != nil {
		return nil, fault.Wrap(fault.KindNetwork, err, "%s %s", method, target)
	}
	if res.RawResponse != nil {
		err = jar.SetCookie(res.RawResponse)
		if err != nil {
			c.tel.ReportWarning(report_client_cookies, err)
		}
	}
	return res.Body(), nil
}

// Do performs one logical call: it logs in when there is no session yet, sends the request,
// logs in again once if the portal answers with its login page, and retries empty, broken or
// failed sends up to the retry bound.
func (c *Client) Do(ctx context.Context, req Request) (Response, error) {
	ctx, span := tracer.Start(ctx, "Client.Do")
	defer span.End()
	span.SetAttributes(attribute.String("edupage.target", req.target()))

	if req.Endpoint == 0 && req.URL == "" {
		return Response{}, fault.New(fault.KindValidation, "request has neither an endpoint nor a url")
	}

	fail := func(err error) (Response, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Response{}, err
	}

	attempt := 0
	sends := 0
	relogged := false
	var lastErr error
	var lastBody []byte

	for {
		if attempt > c.maxRetries {
			err := &fault.Error{
				Kind:     fault.KindRetriesExhausted,
				Message:  fmt.Sprintf("%s failed after %d attempts", req.target(), sends),
				Snippet:  string(lastBody),
				Document: string(lastBody),
				Err:      lastErr,
			}
			c.tel.ReportBroken(report_client_do, err)
			return fail(err)
		}
		if err := ctx.Err(); err != nil {
			return fail(err)
		}

		origin, jar, generation := c.state()
		if origin == "" && !req.NoRelogin {
			if relogged {
				return fail(fault.New(fault.KindAuthentication, "login did not establish an origin"))
			}
			err := c.relogin(ctx, generation)
			if err != nil {
				return fail(err)
			}
			relogged = true
			continue
		}

		target, err := c.resolve(req, origin)
		if err != nil {
			return fail(err)
		}

		body, err := c.send(ctx, req, target, origin, jar)
		sends++
		if err != nil && ctx.Err() != nil {
			return fail(ctx.Err())
		}
		if fault.KindOf(err) == fault.KindValidation {
			return fail(err)
		}

		result := classify(req.Mode, !req.NoRelogin, body, err)
		c.attempts.Add(ctx, 1, metric.WithAttributes(
			attribute.String("outcome", result.String()),
			attribute.String("target", req.target()),
		))

		switch result {
		case outcomeSuccess:
			res := Response{Text: string(body), Attempts: sends}
			if req.Mode == ModeJSON {
				res.JSON = json.RawMessage(bytes.TrimSpace(body))
			}
			return res, nil
		case outcomeNeedRelogin:
			if relogged {
				err := &fault.Error{
					Kind:     fault.KindAuthentication,
					Message:  "portal still serves the login page after logging in again",
					Snippet:  string(body),
					Document: string(body),
				}
				c.tel.ReportBroken(report_client_do, err)
				return fail(err)
			}
			span.AddEvent("relogin")
			err := c.relogin(ctx, generation)
			if err != nil {
				return fail(err)
			}
			relogged = true
		default:
			span.AddEvent(result.String())
			c.tel.ReportWarning(report_client_do, result.String(), req.target(), attempt)
			attempt++
			lastErr = err
			lastBody = body
			if err == nil {
				lastErr = errors.New(result.String())
			}
		}
	}
}

// relogin logs in with the stored credentials unless somebody else already logged in since
// the caller read generation.
func (c *Client) relogin(ctx context.Context, generation uint64) error {
	c.loginMutex.Lock()
	defer c.loginMutex.Unlock()

	c.mutex.RLock()
	current := c.generation
	credentials := c.credentials
	c.mutex.RUnlock()

	if current != generation {
		return nil
	}
	if credentials == nil {
		return fault.New(fault.KindConfiguration, "not logged in and no credentials to log in with")
	}

	opts := credentials.Options
	opts.Code2FA = ""
	result, err := c.login(ctx, credentials.Username, credentials.Password, opts)
	if err != nil {
		c.tel.ReportBroken(report_client_relogin, err)
		return err
	}
	if result.Pending2FA {
		err := fault.New(fault.KindAuthentication, "portal asks for a second factor, log in again with a code")
		c.tel.ReportBroken(report_client_relogin, err)
		return err
	}
	return nil
}
