package webhook

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"
)

// SignatureHeader carries the timestamped HMAC over the payload.
const SignatureHeader = "X-Webhook-Signature"

// HTTPTransport posts signed payloads to one subscriber endpoint.
type HTTPTransport struct {
	endpoint string
	client   *http.Client
}

func NewHTTPTransport(endpoint string) *HTTPTransport {
	return &HTTPTransport{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (t *HTTPTransport) Deliver(ctx context.Context, payload []byte, signature string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SignatureHeader, signature)

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// Anything outside 2xx counts as a failed attempt and retries.
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("subscriber returned %d", resp.StatusCode)
	}
	return nil
}

type observedTransport struct {
	inner     Transport
	onSuccess func()
	onFailure func()
}

// Observed wraps a transport with per-attempt callbacks, used to feed the
// analytics rollups.
func Observed(inner Transport, onSuccess, onFailure func()) Transport {
	return &observedTransport{inner: inner, onSuccess: onSuccess, onFailure: onFailure}
}

func (o *observedTransport) Deliver(ctx context.Context, payload []byte, signature string) error {
	err := o.inner.Deliver(ctx, payload, signature)
	if err != nil {
		if o.onFailure != nil {
			o.onFailure()
		}
		return err
	}
	if o.onSuccess != nil {
		o.onSuccess()
	}
	return nil
}
