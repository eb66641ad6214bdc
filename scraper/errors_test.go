package scraper

import (
	"errors"
	"testing"

	"github.com/gocolly/colly/v2"
)

func TestErrorMessagesAndUnwrap(t *testing.T) {
	cause := errors.New("boom")
	tests := []struct {
		err  error
		want string
	}{
		{ErrTimeout{Err: cause}, "timeout: boom"},
		{ErrConnection{Err: cause}, "connection: boom"},
		{ErrForbidden{Err: cause}, "forbidden: boom"},
		{ErrNotFound{Err: cause}, "not_found: boom"},
		{ErrRateLimited{Err: cause}, "rate_limited: boom"},
		{ErrUnavailable{StatusCode: 503, Err: cause}, "unavailable (503): boom"},
		{ErrBlocked{Err: cause}, "blocked: boom"},
		{ErrUnexpectedStatus{StatusCode: 202, Err: cause}, "unexpected status 202: boom"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Fatalf("Error() = %q, want %q", got, tt.want)
			}
			if !errors.Is(tt.err, cause) {
				t.Fatalf("%T should unwrap to its cause", tt.err)
			}
		})
	}
}

func TestBlockedErrorKeepsCollyCause(t *testing.T) {
	err := classifyError(colly.ErrRobotsTxtBlocked, 0)
	if !errors.Is(err, colly.ErrRobotsTxtBlocked) {
		t.Fatalf("classified error %v lost its cause", err)
	}
}
