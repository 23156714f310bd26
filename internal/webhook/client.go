package webhook

import (
	"net"
	"net/http"
	"time"
)

const (
	// ClientTimeout bounds a whole delivery attempt, body included.
	ClientTimeout = 30 * time.Second
	// DialTimeout bounds TCP connection establishment.
	DialTimeout = 10 * time.Second
	// TLSHandshakeTimeout bounds the TLS negotiation.
	TLSHandshakeTimeout = 10 * time.Second
	// ResponseHeaderTimeout bounds the wait for the receiver's status line.
	ResponseHeaderTimeout = 15 * time.Second
)

// Request headers attached to every delivery. Receivers use the signature
// and timestamp to verify authenticity and the delivery ID to deduplicate.
const (
	HeaderSignature  = "X-Kernfi-Signature"
	HeaderTimestamp  = "X-Kernfi-Timestamp"
	HeaderDeliveryID = "X-Kernfi-Delivery-Id"
)

// NewHTTPClient returns the client used for outbound deliveries. Every
// phase of the request has its own timeout so a slow receiver cannot tie
// up a worker slot. Redirects are surfaced rather than followed; a 3xx
// could otherwise steer a validated target URL somewhere the SSRF check
// never saw.
func NewHTTPClient() *http.Client {
	return &http.Client{
		Timeout: ClientTimeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   DialTimeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   TLSHandshakeTimeout,
			ResponseHeaderTimeout: ResponseHeaderTimeout,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// HTTPHeaders carries the per-delivery header values.
type HTTPHeaders struct {
	Signature  string
	Timestamp  string
	DeliveryID string
}

// SetWebhookHeaders stamps the delivery headers onto an outbound request.
func SetWebhookHeaders(req *http.Request, headers HTTPHeaders) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderSignature, headers.Signature)
	req.Header.Set(HeaderTimestamp, headers.Timestamp)
	req.Header.Set(HeaderDeliveryID, headers.DeliveryID)
	req.Header.Set("User-Agent", "Kernfi-Webhook/1.0")
}
