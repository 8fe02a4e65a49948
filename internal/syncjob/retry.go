package syncjob

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/ykovtun/declsync/internal/gateway"
)

// FailureClass buckets a chunk fetch failure for retry policy and failure
// accounting.
type FailureClass string

const (
	ClassTimeout FailureClass = "timeout"
	// ClassServerError is HTTP 500; retried once, though on this API it
	// frequently means "no data available that far back".
	ClassServerError FailureClass = "http_500"
	ClassNetwork     FailureClass = "network"
	// ClassChannelTimeout is HTTP 400 carrying the upstream channel-timeout
	// marker, which indicates queuing rather than a bad request.
	ClassChannelTimeout FailureClass = "channel_timeout"
	ClassPersistence    FailureClass = "persistence"
	ClassPermanent      FailureClass = "permanent"
)

// channelTimeoutMarker is the body marker distinguishing the retryable 400
// variant from genuine bad requests.
const channelTimeoutMarker = "CHANNEL_TIMEOUT"

// Classify buckets an error from a list fetch.
func Classify(err error) FailureClass {
	if err == nil {
		return ClassPermanent
	}

	var gwErr *gateway.Error
	if errors.As(err, &gwErr) {
		switch {
		case gwErr.HTTPStatus == http.StatusInternalServerError:
			return ClassServerError
		case gwErr.HTTPStatus == http.StatusBadRequest &&
			strings.Contains(gwErr.Message, channelTimeoutMarker):
			return ClassChannelTimeout
		default:
			return ClassPermanent
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ClassTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ClassTimeout
		}
		// Connection reset/refused, DNS failure and friends.
		return ClassNetwork
	}

	return ClassPermanent
}

// Retryable reports whether the class warrants the single retry.
func (c FailureClass) Retryable() bool {
	switch c {
	case ClassTimeout, ClassServerError, ClassNetwork, ClassChannelTimeout:
		return true
	default:
		return false
	}
}
