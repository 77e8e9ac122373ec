package client

import (
	"net/http"
	"strconv"
	"time"

	"paygate/pkg/protocol"

	"github.com/google/uuid"
)

// Credentials attach a wallet proof to every outgoing request.
type Credentials interface {
	Apply(h http.Header)
}

// Bearer authenticates with a gateway-issued token.
type Bearer struct {
	Token string
}

func (b Bearer) Apply(h http.Header) {
	h.Set(protocol.HeaderAuthorization, protocol.BearerPrefix+b.Token)
}

// HMAC signs each request with the funding source's secret and a fresh nonce.
type HMAC struct {
	FundingSourceID string
	Secret          string

	now func() time.Time
}

func (c HMAC) Apply(h http.Header) {
	now := time.Now
	if c.now != nil {
		now = c.now
	}
	ts := now().Unix()
	nonce := uuid.NewString()
	h.Set(protocol.HeaderFundingSource, c.FundingSourceID)
	h.Set(protocol.HeaderTimestamp, strconv.FormatInt(ts, 10))
	h.Set(protocol.HeaderNonce, nonce)
	h.Set(protocol.HeaderSignature, protocol.Sign(c.Secret, protocol.CanonicalString(c.FundingSourceID, ts, nonce)))
}

// authRoundTripper applies credentials to every request of the transport.
type authRoundTripper struct {
	creds Credentials
	base  http.RoundTripper
}

func (t *authRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	if t.creds != nil {
		t.creds.Apply(req.Header)
	}
	return t.base.RoundTrip(req)
}
