package mailer

import (
	"context"
	stderrors "errors"
	"net"
	"net/textproto"
	"os"
	"strings"

	"github.com/wneessen/go-mail"

	"github.com/hpungsan/certmail/internal/errors"
)

// SMTP reply codes that mean the credentials were rejected.
var authCodes = map[int]bool{530: true, 534: true, 535: true}

// Classify maps a transport error to a coded error. temporary reports
// whether a retry may succeed. Context errors are returned unchanged.
func Classify(err error, recipient string) (coded error, temporary bool) {
	if err == nil {
		return nil, false
	}
	if stderrors.Is(err, context.Canceled) {
		return err, false
	}

	var tpErr *textproto.Error
	if stderrors.As(err, &tpErr) {
		switch {
		case authCodes[tpErr.Code]:
			return errors.NewAuthentication(err), false
		case tpErr.Code >= 400 && tpErr.Code < 500:
			return errors.NewDeliveryFailed(recipient, err), true
		}
	}
	if strings.Contains(err.Error(), "SMTP AUTH") {
		return errors.NewAuthentication(err), false
	}

	var sendErr *mail.SendError
	if stderrors.As(err, &sendErr) {
		return errors.NewDeliveryFailed(recipient, err), sendErr.IsTemp()
	}

	var dnsErr *net.DNSError
	var opErr *net.OpError
	var netErr net.Error
	switch {
	case stderrors.As(err, &dnsErr), stderrors.As(err, &opErr):
		return errors.NewNetwork(err), false
	case stderrors.Is(err, context.DeadlineExceeded), stderrors.Is(err, os.ErrDeadlineExceeded):
		return errors.NewNetwork(err), false
	case stderrors.As(err, &netErr) && netErr.Timeout():
		return errors.NewNetwork(err), false
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "dial failed") || strings.Contains(msg, "connection refused") || strings.Contains(msg, "no such host") {
		return errors.NewNetwork(err), false
	}

	return errors.NewDeliveryFailed(recipient, err), false
}
