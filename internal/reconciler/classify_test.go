package reconciler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Class
	}{
		{"canceled", context.Canceled, ClassCanceled},
		{"wrapped canceled", fmt.Errorf("post: %w", context.Canceled), ClassCanceled},
		{"deadline", context.DeadlineExceeded, ClassAmbiguous},
		{"eof", io.EOF, ClassAmbiguous},
		{"unexpected eof", io.ErrUnexpectedEOF, ClassAmbiguous},
		{"reset", &net.OpError{Op: "read", Net: "tcp", Err: syscall.ECONNRESET}, ClassAmbiguous},
		{"refused", syscall.ECONNREFUSED, ClassAmbiguous},
		{"broken pipe", fmt.Errorf("write: %w", syscall.EPIPE), ClassAmbiguous},
		{"url error", &url.Error{Op: "Post", URL: "http://x", Err: errors.New("proxy gone")}, ClassAmbiguous},
		{"http status", &FatalError{StatusCode: 500, Body: "boom"}, ClassFatal},
		{"fatal wrapping eof", &FatalError{Err: io.EOF}, ClassFatal},
		{"invalid job", ErrInvalidJob, ClassFatal},
		{"unknown", errors.New("something else"), ClassFatal},
		{"nil", nil, ClassFatal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.err))
		})
	}
}

func TestFatalErrorMessage(t *testing.T) {
	assert.Equal(t, "analysis endpoint returned 502: upstream", (&FatalError{StatusCode: 502, Body: "upstream"}).Error())
	assert.Equal(t, "analysis endpoint returned 400", (&FatalError{StatusCode: 400}).Error())
	assert.Equal(t, "decode", (&FatalError{Err: errors.New("decode")}).Error())
}
