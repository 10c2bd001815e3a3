package core

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"edupage-client/lib/fault"

	random "github.com/mazen160/go-random"
)

// Encoding selects how a POST payload is put on the wire.
type Encoding int

const (
	// EncodingWrapped urlencodes the payload, base64s it and sends it as the single `eqap`
	// form field, the way the portal's own scripts do.
	EncodingWrapped Encoding = iota
	// EncodingJSON sends the payload as a JSON object.
	EncodingJSON
	// EncodingRaw sends Request.Body untouched.
	EncodingRaw
)

const (
	contentTypeForm      = "application/x-www-form-urlencoded; charset=UTF-8"
	contentTypeMultipart = "multipart/form-data; boundary="
)

func formValues(payload map[string]string) url.Values {
	values := url.Values{}
	for k, v := range payload {
		values.Set(k, v)
	}
	return values
}

// WrapForm is the EncodingWrapped body of payload.
func WrapForm(payload map[string]string) []byte {
	query := formValues(payload).Encode()
	encoded := base64.StdEncoding.EncodeToString([]byte(query))
	return []byte("eqap=" + url.QueryEscape(encoded) + "&eqaz=0")
}

// UnwrapForm reverses WrapForm.
func UnwrapForm(body []byte) (url.Values, error) {
	outer, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, err
	}
	decoded, err := base64.StdEncoding.DecodeString(outer.Get("eqap"))
	if err != nil {
		return nil, err
	}
	return url.ParseQuery(string(decoded))
}

// RawForm is a plain urlencoded body, used by gcall and the login handshake.
func RawForm(payload map[string]string) []byte {
	return []byte(formValues(payload).Encode())
}

func encodeBody(req Request) ([]byte, error) {
	switch req.Encoding {
	case EncodingWrapped:
		return WrapForm(req.Payload), nil
	case EncodingJSON:
		payload := req.Payload
		if payload == nil {
			payload = map[string]string{}
		}
		body, err := json.Marshal(payload)
		if err != nil {
			return nil, fault.Wrap(fault.KindValidation, err, "encode json payload")
		}
		return body, nil
	case EncodingRaw:
		return req.Body, nil
	}
	return nil, fault.New(fault.KindValidation, "unknown body encoding %d", int(req.Encoding))
}

var (
	boundaryOnce sync.Once
	boundary     string
)

// Boundary is the multipart boundary used for uploads, picked once per process.
func Boundary() string {
	boundaryOnce.Do(func() {
		suffix, err := random.String(16)
		if err != nil || len(suffix) < 16 {
			suffix = strconv.FormatInt(time.Now().UnixNano(), 36)
		}
		boundary = "------EdupageAPIBoundary" + suffix
	})
	return boundary
}

// MultipartFile builds a single file multipart body in field `att` and its content type.
func MultipartFile(filename string, content []byte) ([]byte, string) {
	const crlf = "\r\n"
	b := Boundary()

	var buf bytes.Buffer
	buf.WriteString("--" + b + crlf)
	fmt.Fprintf(&buf, `Content-Disposition: form-data; name="att"; filename="%s"`, filename)
	buf.WriteString(crlf + crlf)
	buf.Write(content)
	buf.WriteString(crlf + "--" + b + "--" + crlf)

	return buf.Bytes(), contentTypeMultipart + b
}
