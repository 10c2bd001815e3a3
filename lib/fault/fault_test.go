package fault

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKindMatching(t *testing.T) {
	err := fmt.Errorf("refresh grades: %w", &Error{
		Kind:    KindPageStructure,
		Pattern: "grade-data",
		Message: "pattern matched nothing",
	})

	require.ErrorIs(t, err, ErrPageStructure)
	require.NotErrorIs(t, err, ErrContentDecode)
	require.Equal(t, KindPageStructure, KindOf(err))

	inner, ok := As(err)
	require.True(t, ok)
	require.Equal(t, "grade-data", inner.Pattern)
}

func TestKindOfForeignError(t *testing.T) {
	require.Equal(t, KindUnknown, KindOf(errors.New("boom")))
}

func TestWrapUnwraps(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap(KindRetriesExhausted, cause, "gave up after %d attempts", 3)

	require.ErrorIs(t, err, cause)
	require.ErrorIs(t, err, ErrRetriesExhausted)
	require.Equal(t, "retries exhausted: gave up after 3 attempts: connection reset", err.Error())
}

func TestErrorTruncatesSnippet(t *testing.T) {
	err := &Error{
		Kind:    KindContentDecode,
		Message: "invalid json",
		Snippet: strings.Repeat("x", 500),
	}
	require.Less(t, len(err.Error()), 200)
	require.Contains(t, err.Error(), "...")
}
