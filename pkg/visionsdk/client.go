package visionsdk

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client is a stateless binding of the backend HTTP API. Authenticated
// calls take the bearer token explicitly; Store decides which token to use.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient returns a Client for baseURL with a 10 second request timeout.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Signup creates an account and returns its first session.
func (c *Client) Signup(ctx context.Context, req SignupRequest) (*AuthResponse, error) {
	var out AuthResponse
	if err := c.call(ctx, http.MethodPost, "/auth/signup", "", req, &out, http.StatusCreated); err != nil {
		return nil, err
	}
	return checkAuth(&out)
}

// Login exchanges credentials for a session token.
func (c *Client) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	var out AuthResponse
	req := LoginRequest{Email: email, Password: password}
	if err := c.call(ctx, http.MethodPost, "/auth/login", "", req, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return checkAuth(&out)
}

// Logout revokes token on the server.
func (c *Client) Logout(ctx context.Context, token string) error {
	return c.call(ctx, http.MethodPost, "/auth/logout", token, nil, nil, http.StatusOK)
}

// Me returns the authoritative profile for token.
func (c *Client) Me(ctx context.Context, token string) (*Profile, error) {
	var out ProfileResponse
	if err := c.call(ctx, http.MethodGet, "/me", token, nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return checkProfile(&out.User)
}

// UpdateProfile changes the display name.
func (c *Client) UpdateProfile(ctx context.Context, token string, req UpdateProfileRequest) (*Profile, error) {
	var out ProfileResponse
	if err := c.call(ctx, http.MethodPatch, "/me", token, req, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return checkProfile(&out.User)
}

// GeneratePoster spends CostPerPoster credits and renders a poster.
func (c *Client) GeneratePoster(ctx context.Context, token string, req PosterRequest) (*PosterResponse, error) {
	var out PosterResponse
	if err := c.call(ctx, http.MethodPost, "/poster/generate", token, req, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// Posters lists the user's library, newest first. limit <= 0 uses the
// server default.
func (c *Client) Posters(ctx context.Context, token string, limit int) ([]Poster, error) {
	path := "/posters"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out PostersResponse
	if err := c.call(ctx, http.MethodGet, path, token, nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// DeletePoster removes a poster from the library.
func (c *Client) DeletePoster(ctx context.Context, token, id string) error {
	return c.call(ctx, http.MethodDelete, "/posters/"+url.PathEscape(id), token, nil, nil, http.StatusOK)
}

// Products returns the purchasable catalog. No authentication is needed.
func (c *Client) Products(ctx context.Context) ([]Product, error) {
	var out ProductsResponse
	if err := c.call(ctx, http.MethodGet, "/payments/products", "", nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// Checkout starts a hosted checkout session.
func (c *Client) Checkout(ctx context.Context, token string, req CheckoutRequest) (*CheckoutResponse, error) {
	var out CheckoutResponse
	if err := c.call(ctx, http.MethodPost, "/payments/checkout", token, req, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// CheckoutStatus fetches the payment state of a checkout session.
func (c *Client) CheckoutStatus(ctx context.Context, token, sessionID string) (*CheckoutStatus, error) {
	var out CheckoutStatus
	if err := c.call(ctx, http.MethodGet, "/payments/session/"+url.PathEscape(sessionID), token, nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// Wallet returns the balance and the latest receipts.
func (c *Client) Wallet(ctx context.Context, token string) (*Wallet, error) {
	var out Wallet
	if err := c.call(ctx, http.MethodGet, "/payments/wallet", token, nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// Receipt returns a single purchase receipt.
func (c *Client) Receipt(ctx context.Context, token, id string) (*Receipt, error) {
	var out ReceiptResponse
	if err := c.call(ctx, http.MethodGet, "/payments/receipts/"+url.PathEscape(id), token, nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out.Receipt, nil
}

// CancelSubscription ends the ad-free subscription.
func (c *Client) CancelSubscription(ctx context.Context, token string) (*Profile, error) {
	var out ProfileResponse
	if err := c.call(ctx, http.MethodPost, "/payments/subscription/cancel", token, nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return checkProfile(&out.User)
}

// checkProfile rejects a profile without an id as malformed.
func checkProfile(p *Profile) (*Profile, error) {
	if p.ID == "" {
		return nil, fmt.Errorf("%w: malformed response: profile without id", ErrServer)
	}
	return p, nil
}

func checkAuth(resp *AuthResponse) (*AuthResponse, error) {
	if resp.User != nil {
		if _, err := checkProfile(resp.User); err != nil {
			return nil, err
		}
	}
	return resp, nil
}
