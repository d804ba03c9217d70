package channel

import (
	"context"
	"errors"
	"net/http"

	"github.com/danmuck/chanrpc/internal/protocol"
	"github.com/danmuck/chanrpc/internal/rpc"
)

// failure carries the codes for one error path. httpCode 0 means "derive".
// pass forces the underlying message through even for 5xx outcomes.
type failure struct {
	code     int
	httpCode int
	pass     bool
}

// fail is the single exit for every error: it picks the transport code,
// decides whether the peer may see the message, logs the full detail and
// sends an error packet addressed to callID.
func (c *Channel) fail(ctx context.Context, callID int64, err error, f failure) {
	code := f.code
	if code == 0 {
		code = 500
	}
	httpCode := f.httpCode
	if httpCode == 0 {
		httpCode = errorHTTPCode(err)
	}
	if httpCode == 0 {
		httpCode = code
	}

	status := http.StatusText(httpCode)
	if status == "" {
		status = "Unknown error"
	}
	pass := f.pass || httpCode < 500 || httpCode > 599
	message := status
	if pass && err != nil {
		message = errorMessage(err)
	}

	detail := status
	if err != nil {
		detail = err.Error()
	}
	c.logger.Error().Msgf("%s\t%s\t%s\t%d\t%d\t%s",
		c.transport.RemoteAddr(), c.transport.Method(), c.transport.URL(), httpCode, code, detail)

	data, mErr := protocol.Marshal(protocol.Error(callID, message, code))
	if mErr != nil {
		return
	}
	if sErr := c.send(ctx, Frame{Text: data, Status: httpCode}); sErr != nil {
		c.logger.Debug().Err(sErr).Int64("call", callID).Msg("channel: error packet dropped")
	}
}

func asError(result any) (error, bool) {
	if re, ok := result.(*rpc.Error); ok {
		return re, re != nil
	}
	err, ok := result.(error)
	return err, ok && err != nil
}

func errorCode(err error) int {
	var re *rpc.Error
	if errors.As(err, &re) {
		return re.Code
	}
	var coded interface{ Code() int }
	if errors.As(err, &coded) {
		return coded.Code()
	}
	return 0
}

func errorHTTPCode(err error) int {
	var re *rpc.Error
	if errors.As(err, &re) {
		return re.HTTPCode
	}
	var coded interface{ HTTPCode() int }
	if errors.As(err, &coded) {
		return coded.HTTPCode()
	}
	return 0
}

func errorMessage(err error) string {
	var re *rpc.Error
	if errors.As(err, &re) {
		return re.Message
	}
	return err.Error()
}
