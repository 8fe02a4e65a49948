// Package gateway speaks the customs data-exchange protocol: a JSON
// envelope around an XML request body, answered with a JSON envelope around
// a Base64 ZIP payload. It performs no persistence.
package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/ykovtun/declsync/internal/codec"
	"github.com/ykovtun/declsync/internal/declparser"
	"github.com/ykovtun/declsync/internal/metrics"
)

const (
	// ListTimeout bounds the list request; list result sets are larger than
	// detail documents, hence the longer budget.
	ListTimeout = 90 * time.Second
	// DetailTimeout bounds a single detail request.
	DetailTimeout = 60 * time.Second

	// maxErrorBody limits how much of an error response is kept for
	// diagnostics and failure classification.
	maxErrorBody = 64 * 1024

	creationDateLayout = "20060102T150405"
)

// Credential identifies one company scope against the upstream API.
// Token must arrive already decrypted.
type Credential struct {
	CliCode string
	Token   string
}

// requestEnvelope is the outbound wire envelope shared by both request types.
type requestEnvelope struct {
	MessageType string `json:"MessageType"`
	MessageBody string `json:"MessageBody"`
	Token       string `json:"Token"`
}

// responseEnvelope is the inbound envelope. MessageBody carries Base64 of a
// ZIP archive; the error fields are populated on vendor-level failures.
type responseEnvelope struct {
	MessageBody  string `json:"messageBody"`
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

// Client issues the two upstream request types.
type Client struct {
	baseURL      string
	ns           string
	listClient   *http.Client
	detailClient *http.Client
	logger       *zap.Logger
	now          func() time.Time
}

// New creates a gateway client. ns is the MessageType namespace prefix.
func New(baseURL, ns string, logger *zap.Logger) *Client {
	return &Client{
		baseURL:      baseURL,
		ns:           ns,
		listClient:   &http.Client{Timeout: ListTimeout},
		detailClient: &http.Client{Timeout: DetailTimeout},
		logger:       logger,
		now:          time.Now,
	}
}

// FetchList requests declarations registered within [from, to], bounds
// normalized to start-of-day and end-of-day. An empty body or HTTP 204 is a
// success with no items: upstream uses it to mean "no data this period".
func (c *Client) FetchList(ctx context.Context, cred Credential, from, to time.Time) ([]*declparser.Summary, error) {
	dayStart := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, from.Location())
	dayEnd := time.Date(to.Year(), to.Month(), to.Day(), 23, 59, 59, 0, to.Location())

	body := fmt.Sprintf(
		"<REQ.60.1><creation_date>%s</creation_date><cli_code>%s</cli_code><date_begin>%s</date_begin><date_end>%s</date_end><date_type>1</date_type><status>R</status></REQ.60.1>",
		c.now().Format(creationDateLayout),
		cred.CliCode,
		dayStart.Format(creationDateLayout),
		dayEnd.Format(creationDateLayout),
	)

	payload, err := c.send(ctx, c.listClient, "list", c.ns+".REQ.60.1", body, cred.Token)
	if err != nil {
		return nil, err
	}
	if payload == "" {
		return []*declparser.Summary{}, nil
	}

	xmlText, err := codec.Decode(payload)
	if err != nil {
		return nil, &Error{Message: "list payload: " + err.Error()}
	}
	return declparser.ParseList(xmlText), nil
}

// FetchDetail requests the full declaration document for one external id
// and returns the decoded XML whole; field mapping happens elsewhere.
func (c *Client) FetchDetail(ctx context.Context, cred Credential, guid string) (string, error) {
	body := fmt.Sprintf(
		"<REQ.61.1><creation_date>%s</creation_date><cli_code>%s</cli_code><guid>%s</guid></REQ.61.1>",
		c.now().Format(creationDateLayout),
		cred.CliCode,
		guid,
	)

	payload, err := c.send(ctx, c.detailClient, "detail", c.ns+".REQ.61.1", body, cred.Token)
	if err != nil {
		return "", err
	}
	if payload == "" {
		return "", nil
	}

	xmlText, err := codec.Decode(payload)
	if err != nil {
		return "", &Error{Message: "detail payload: " + err.Error()}
	}
	return xmlText, nil
}

// send posts one envelope and extracts the Base64 payload. Transport-level
// failures come back unwrapped for the caller's retry classification;
// protocol failures come back as *Error.
func (c *Client) send(ctx context.Context, hc *http.Client, op, messageType, messageBody, token string) (string, error) {
	reqBody, err := json.Marshal(requestEnvelope{
		MessageType: messageType,
		MessageBody: messageBody,
		Token:       token,
	})
	if err != nil {
		return "", fmt.Errorf("marshal envelope: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		metrics.GatewayRequestsTotal.WithLabelValues(op, "network_error").Inc()
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNoContent {
		metrics.GatewayRequestsTotal.WithLabelValues(op, "empty").Inc()
		return "", nil
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.GatewayRequestsTotal.WithLabelValues(op, "http_error").Inc()
		return "", c.httpError(resp)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.GatewayRequestsTotal.WithLabelValues(op, "network_error").Inc()
		return "", err
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		metrics.GatewayRequestsTotal.WithLabelValues(op, "empty").Inc()
		return "", nil
	}

	var envelope responseEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		metrics.GatewayRequestsTotal.WithLabelValues(op, "bad_envelope").Inc()
		return "", &Error{Message: "malformed response envelope", HTTPStatus: resp.StatusCode}
	}
	if envelope.ErrorCode != "" {
		metrics.GatewayRequestsTotal.WithLabelValues(op, "vendor_error").Inc()
		return "", &Error{
			Message:    envelope.ErrorMessage,
			HTTPStatus: resp.StatusCode,
			VendorCode: envelope.ErrorCode,
		}
	}

	metrics.GatewayRequestsTotal.WithLabelValues(op, "ok").Inc()
	return envelope.MessageBody, nil
}

// httpError converts a non-2xx response. A 500 is frequently permanent on
// this API ("no data available that far back"), so the message says as much
// instead of inviting blind retries.
func (c *Client) httpError(resp *http.Response) *Error {
	snippet := readBodySnippet(resp.Body)

	var envelope responseEnvelope
	vendorCode := ""
	message := snippet
	if err := json.Unmarshal([]byte(snippet), &envelope); err == nil && envelope.ErrorCode != "" {
		vendorCode = envelope.ErrorCode
		message = envelope.ErrorMessage
	}

	if resp.StatusCode == http.StatusInternalServerError {
		message = "upstream 500: often means no data is available that far back; " + message
	}

	return &Error{
		Message:    message,
		HTTPStatus: resp.StatusCode,
		VendorCode: vendorCode,
	}
}

// readBodySnippet reads at most maxErrorBody bytes for diagnostics.
func readBodySnippet(r io.Reader) string {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil {
		return "(failed to read response body)"
	}
	return string(bytes.TrimSpace(body))
}
