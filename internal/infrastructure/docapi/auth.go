package docapi

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/kirillkom/pdf-processor/internal/core/domain"
)

type Authenticator struct {
	client *Client
	now    func() time.Time
}

func NewAuthenticator(client *Client) *Authenticator {
	return &Authenticator{client: client, now: time.Now}
}

type tokenResponse struct {
	AccessToken string          `json:"access_token"`
	Token       string          `json:"token"`
	ExpiresIn   json.RawMessage `json:"expires_in"`
}

func (a *Authenticator) IssueToken(ctx context.Context, creds domain.Credentials) (domain.Token, error) {
	payload := map[string]string{
		"username": creds.Username,
		"password": creds.Password,
	}

	var body []byte
	err := a.client.execute(ctx, "docapi.auth", func(callCtx context.Context) error {
		var callErr error
		body, callErr = a.client.postJSON(callCtx, creds.AuthURL, payload, "auth")
		return callErr
	})
	if err != nil {
		return domain.Token{}, upstreamError(domain.ErrAuth, "issue token", err)
	}

	var resp tokenResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.Token{}, domain.WrapError(domain.ErrAuth, "decode token response", err)
	}

	value := strings.TrimSpace(resp.AccessToken)
	if value == "" {
		value = strings.TrimSpace(resp.Token)
	}
	if value == "" {
		return domain.Token{}, domain.WrapError(domain.ErrAuth, "decode token response", errors.New("no access_token or token in response"))
	}

	issued := a.now().UTC()
	token := domain.Token{Value: value, IssuedAt: issued}
	if seconds, ok := parseExpiresIn(resp.ExpiresIn); ok {
		token.ExpiresAt = issued.Add(time.Duration(seconds) * time.Second)
	}
	return token, nil
}

// parseExpiresIn accepts a JSON number or numeric string.
func parseExpiresIn(raw json.RawMessage) (int64, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, false
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, false
		}
		n = json.Number(strings.TrimSpace(s))
	}
	seconds, err := n.Int64()
	if err != nil {
		f, ferr := n.Float64()
		if ferr != nil {
			return 0, false
		}
		seconds = int64(f)
	}
	if seconds <= 0 {
		return 0, false
	}
	return seconds, true
}

