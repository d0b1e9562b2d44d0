package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client talks to the hosted identity service over HTTP.
//
// Endpoints:
//
//	POST   /v1/accounts              create an account (409 when email taken)
//	DELETE /v1/accounts/{id}         delete an account (404 treated as done)
//	GET    /v1/accounts/lookup?email= check whether an email is registered
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient creates an identity service client.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) Create(ctx context.Context, acct NewAccount) (*Identity, error) {
	body, err := json.Marshal(map[string]string{
		"email":    acct.Email,
		"password": acct.Password,
		"name":     acct.Name,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/accounts", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusConflict:
		return nil, ErrEmailTaken
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("identity: create account: status %d", resp.StatusCode)
	}

	var id Identity
	if err := json.NewDecoder(resp.Body).Decode(&id); err != nil {
		return nil, fmt.Errorf("identity: decode response: %w", err)
	}
	return &id, nil
}

// Delete removes an account. A 404 means the account is already gone, which
// is success for a compensation retry.
func (c *Client) Delete(ctx context.Context, id string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete,
		c.baseURL+"/v1/accounts/"+url.PathEscape(id), nil)
	if err != nil {
		return err
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK:
		return fmt.Errorf("identity: delete account: status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) EmailTaken(ctx context.Context, email string) (bool, error) {
	u := c.baseURL + "/v1/accounts/lookup?email=" + url.QueryEscape(email)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return false, err
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		if resp.StatusCode >= 500 {
			return false, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
		}
		return false, fmt.Errorf("identity: lookup: status %d", resp.StatusCode)
	}
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

var _ Provider = (*Client)(nil)
