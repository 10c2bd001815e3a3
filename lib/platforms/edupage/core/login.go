package core

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"edupage-client/lib/cookiejar"
	"edupage-client/lib/fault"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const report_client_login = "client.login"

// LoginOptions tune the handshake.
type LoginOptions struct {
	// Edupage is the school subdomain to log in on, needed when a username exists in several
	// schools. Empty means the shared login server.
	Edupage string
	// User picks an account by userid when the credentials match more than one.
	User string
	// Code2FA is the second factor code, sent only when non-empty.
	Code2FA string
	// Skip2FA logs in even when an account says it needs a second factor.
	Skip2FA bool
}

type Credentials struct {
	Username string
	Password string
	Options  LoginOptions
}

// Account is the portal account a login selected.
type Account struct {
	UserID    string `json:"userid"`
	Type      string `json:"typ"`
	Edupage   string `json:"edupage"`
	SchoolID  string `json:"edumeno"`
	Firstname string `json:"firstname"`
	Lastname  string `json:"lastname"`
	SessionID string `json:"esid"`
}

func (a Account) FullName() string {
	return strings.TrimSpace(a.Firstname + " " + a.Lastname)
}

type LoginResult struct {
	Account Account
	// Pending2FA is set when the portal wants a second factor. Nothing was changed, call
	// Login again with LoginOptions.Code2FA.
	Pending2FA bool
}

type mauthUser struct {
	Account
	Need2FA string `json:"need2fa"`
}

type mauthResponse struct {
	Users       []mauthUser `json:"users"`
	NeedEdupage bool        `json:"needEdupage"`
	T2FASec     string      `json:"t2fasec"`
}

// mauth answers `t2fasec` as either a string or a number depending on the server.
func (m *mauthResponse) UnmarshalJSON(data []byte) error {
	type plain struct {
		Users       []mauthUser     `json:"users"`
		NeedEdupage json.RawMessage `json:"needEdupage"`
		T2FASec     json.RawMessage `json:"t2fasec"`
	}
	var p plain
	err := json.Unmarshal(data, &p)
	if err != nil {
		return err
	}
	m.Users = p.Users
	m.NeedEdupage = truthy(p.NeedEdupage)
	if truthy(p.T2FASec) {
		m.T2FASec = strings.Trim(string(p.T2FASec), `"`)
	}
	return nil
}

func truthy(raw json.RawMessage) bool {
	switch strings.TrimSpace(string(raw)) {
	case "", "null", "false", "0", `""`, `"0"`:
		return false
	}
	return true
}

func loginForm(username, password string, opts LoginOptions) map[string]string {
	form := map[string]string{
		"m":             username,
		"h":             password,
		"edupage":       opts.Edupage,
		"plgc":          "null",
		"ajheslo":       "1",
		"hasujheslo":    "1",
		"ajportal":      "1",
		"ajportallogin": "1",
		"mobileLogin":   "1",
		"version":       "2020.0.18",
		"fromEdupage":   opts.Edupage,
		"device_name":   "null",
		"device_id":     "null",
		"device_key":    "",
		"os":            "null",
		"murl":          "null",
		"edid":          "",
	}
	if opts.Code2FA != "" {
		form["t2fasec"] = opts.Code2FA
	}
	return form
}

func describeAccounts(users []mauthUser) string {
	names := make([]string, len(users))
	for i, u := range users {
		names[i] = fmt.Sprintf("%s (%s)", u.UserID, u.FullName())
	}
	return strings.Join(names, ", ")
}

// selectAccount applies the portal's answer rules. A nil account with a nil error means the
// portal wants a second factor.
func selectAccount(res mauthResponse, opts LoginOptions) (*Account, error) {
	switch len(res.Users) {
	case 0:
		if res.NeedEdupage {
			return nil, fault.New(fault.KindAuthentication, "incorrect username, if it is correct try setting the edupage option")
		}
		return nil, fault.New(fault.KindAuthentication, "incorrect password, if it is correct try setting the edupage option")
	case 1:
		user := res.Users[0]
		if user.Need2FA == "1" && !opts.Skip2FA {
			if res.T2FASec != "" {
				return nil, fault.New(fault.KindAuthentication, "invalid 2FA code")
			}
			return nil, nil
		}
		return &user.Account, nil
	}

	if opts.User != "" {
		for _, u := range res.Users {
			if u.UserID == opts.User {
				account := u.Account
				return &account, nil
			}
		}
	}
	return nil, fault.New(
		fault.KindAuthentication,
		"multiple accounts found: %s, pick one with the user option",
		describeAccounts(res.Users),
	)
}

// Login performs the handshake and replaces the session on success.
func (c *Client) Login(ctx context.Context, username, password string, opts LoginOptions) (LoginResult, error) {
	c.loginMutex.Lock()
	defer c.loginMutex.Unlock()
	return c.login(ctx, username, password, opts)
}

func (c *Client) login(ctx context.Context, username, password string, opts LoginOptions) (LoginResult, error) {
	ctx, span := tracer.Start(ctx, "Client.Login")
	defer span.End()

	fail := func(err error) (LoginResult, error) {
		c.tel.ReportBroken(report_client_login, err, username)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return LoginResult{}, err
	}

	if username == "" || password == "" {
		return fail(fault.New(fault.KindAuthentication, "invalid credentials: username and password are required"))
	}

	url := ResolveLogin(opts.Edupage)
	span.SetAttributes(attribute.String("edupage.login_url", url))

	res, err := c.http.R().
		SetContext(ctx).
		SetHeaders(map[string]string{
			"accept":       "application/json, text/javascript, */*; q=0.01",
			"content-type": contentTypeForm,
		}).
		SetBody(RawForm(loginForm(username, password, opts))).
		Post(url)
	if err != nil {
		return fail(fault.Wrap(fault.KindNetwork, err, "login request"))
	}

	var answer mauthResponse
	err = json.Unmarshal(res.Body(), &answer)
	if err != nil {
		return fail(&fault.Error{
			Kind:     fault.KindContentDecode,
			Message:  "login answer is not the expected json",
			Snippet:  res.String(),
			Document: res.String(),
			Err:      err,
		})
	}

	account, err := selectAccount(answer, opts)
	if err != nil {
		return fail(err)
	}
	if account == nil {
		c.tel.ReportDebug("login: second factor requested", username)
		return LoginResult{Pending2FA: true}, nil
	}

	jar := cookiejar.New(c.time, c.tel)
	if res.RawResponse != nil {
		err = jar.SetCookie(res.RawResponse)
		if err != nil {
			c.tel.ReportWarning(report_client_cookies, err)
		}
	}
	jar.Set("PHPSESSID", account.SessionID, cookiejar.Options{})

	c.mutex.Lock()
	c.jar = jar
	c.origin = account.Edupage
	c.account = *account
	c.credentials = &Credentials{Username: username, Password: password, Options: opts}
	c.generation++
	c.mutex.Unlock()

	span.SetAttributes(attribute.String("edupage.origin", account.Edupage))
	c.tel.ReportDebug("login: logged in", account.UserID, account.Edupage)
	return LoginResult{Account: *account}, nil
}

// SetCredentials stores credentials for logging in again without logging in now, used
// together with Restore.
func (c *Client) SetCredentials(username, password string, opts LoginOptions) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.credentials = &Credentials{Username: username, Password: password, Options: opts}
}

// Snapshot is the persistable part of a session. Passwords are never part of it.
type Snapshot struct {
	Origin  string             `json:"origin"`
	Account Account            `json:"account"`
	Cookies cookiejar.Snapshot `json:"cookies"`
}

func (c *Client) Snapshot() Snapshot {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return Snapshot{
		Origin:  c.origin,
		Account: c.account,
		Cookies: c.jar.Snapshot(),
	}
}

// Restore replaces the session with a snapshot. A stale snapshot is harmless: the first call
// that sees the login page logs in again if credentials were set.
func (c *Client) Restore(snapshot Snapshot) error {
	jar := cookiejar.New(c.time, c.tel)
	err := jar.SetCookie(snapshot.Cookies)
	if err != nil {
		return err
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.jar = jar
	c.origin = snapshot.Origin
	c.account = snapshot.Account
	c.generation++
	return nil
}
