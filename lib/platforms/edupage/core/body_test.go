package core

import (
	"bytes"
	"io"
	"mime"
	"mime/multipart"
	"strings"
	"testing"

	"edupage-client/lib/fault"

	"github.com/stretchr/testify/require"
)

func TestWrapForm(t *testing.T) {
	payload := map[string]string{
		"datefrom": "2023-09-01",
		"text":     "Ahoj, ako sa máš? 1+1=2 & viac",
	}

	body := WrapForm(payload)
	require.True(t, bytes.HasPrefix(body, []byte("eqap=")))
	require.True(t, bytes.HasSuffix(body, []byte("&eqaz=0")))
	require.NotContains(t, string(body), "datefrom")

	values, err := UnwrapForm(body)
	require.NoError(t, err)
	for k, v := range payload {
		require.Equal(t, v, values.Get(k))
	}
}

func TestEncodeBody(t *testing.T) {
	raw, err := encodeBody(Request{Encoding: EncodingRaw, Body: []byte("a=1")})
	require.NoError(t, err)
	require.Equal(t, "a=1", string(raw))

	encoded, err := encodeBody(Request{Encoding: EncodingJSON})
	require.NoError(t, err)
	require.JSONEq(t, `{}`, string(encoded))

	_, err = encodeBody(Request{Encoding: Encoding(42)})
	require.ErrorIs(t, err, fault.ErrValidation)
}

func TestBoundaryIsStable(t *testing.T) {
	first := Boundary()
	require.True(t, strings.HasPrefix(first, "------EdupageAPIBoundary"))
	require.Greater(t, len(first), len("------EdupageAPIBoundary"))
	require.Equal(t, first, Boundary())
}

func TestMultipartFile(t *testing.T) {
	body, contentType := MultipartFile("notes.txt", []byte("line one\nline two"))

	mediaType, params, err := mime.ParseMediaType(contentType)
	require.NoError(t, err)
	require.Equal(t, "multipart/form-data", mediaType)
	require.Equal(t, Boundary(), params["boundary"])

	reader := multipart.NewReader(bytes.NewReader(body), params["boundary"])
	part, err := reader.NextPart()
	require.NoError(t, err)
	require.Equal(t, "att", part.FormName())
	require.Equal(t, "notes.txt", part.FileName())

	content, err := io.ReadAll(part)
	require.NoError(t, err)
	require.Equal(t, "line one\nline two", string(content))

	_, err = reader.NextPart()
	require.ErrorIs(t, err, io.EOF)
}
