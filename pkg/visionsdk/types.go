package visionsdk

import "time"

// CostPerPoster is the credit price of one generated poster.
const CostPerPoster = 10

// Profile is the user snapshot the backend returns from /me and auth calls.
type Profile struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	Credits     int       `json:"credits"`
	AdFree      bool      `json:"ad_free"`
	Plan        string    `json:"plan"`
	CreatedAt   time.Time `json:"created_at"`
}

// Session is the result of a successful login or signup.
type Session struct {
	Token   string
	Profile Profile
}

// SignupRequest creates an account.
type SignupRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name,omitempty"`
}

// LoginRequest exchanges credentials for a session token.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse is returned by signup and login. User may be absent on older
// servers, in which case the profile is fetched from /me.
type AuthResponse struct {
	OK    bool     `json:"ok"`
	Token string   `json:"token"`
	User  *Profile `json:"user,omitempty"`
}

// ProfileResponse wraps a profile.
type ProfileResponse struct {
	OK   bool    `json:"ok"`
	User Profile `json:"user"`
}

// UpdateProfileRequest changes mutable profile fields.
type UpdateProfileRequest struct {
	DisplayName string `json:"display_name"`
}

// PosterRequest asks the backend to render a poster.
type PosterRequest struct {
	Prompt string `json:"prompt"`
	Style  string `json:"style,omitempty"`
	Size   string `json:"size,omitempty"`
}

// PosterResponse describes a finished poster. Credits is the balance after
// the spend when the server reports it.
type PosterResponse struct {
	OK      bool   `json:"ok"`
	ID      string `json:"id"`
	URL     string `json:"url"`
	Key     string `json:"key"`
	Prompt  string `json:"prompt"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	Credits *int   `json:"credits,omitempty"`
}

// Poster is an entry in the user's library.
type Poster struct {
	ID        string    `json:"id"`
	Prompt    string    `json:"prompt"`
	Style     string    `json:"style,omitempty"`
	Size      string    `json:"size,omitempty"`
	URL       string    `json:"url"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	CreatedAt time.Time `json:"created_at"`
}

// PostersResponse lists posters, newest first.
type PostersResponse struct {
	OK    bool     `json:"ok"`
	Items []Poster `json:"items"`
}

// Product is a purchasable credit pack or subscription.
type Product struct {
	SKU         string  `json:"sku"`
	Name        string  `json:"name"`
	Description string  `json:"desc"`
	Credits     int     `json:"credits"`
	Price       float64 `json:"price"`
	AmountCents int64   `json:"amount_cents"`
	Currency    string  `json:"currency"`
	Mode        string  `json:"mode"`
}

// ProductsResponse is the catalog.
type ProductsResponse struct {
	OK    bool      `json:"ok"`
	Items []Product `json:"items"`
}

// CheckoutRequest starts a hosted checkout for one SKU.
type CheckoutRequest struct {
	SKU        string `json:"sku"`
	SuccessURL string `json:"success_url,omitempty"`
	CancelURL  string `json:"cancel_url,omitempty"`
}

// CheckoutResponse carries the redirect target and the provider session id
// used later to confirm payment.
type CheckoutResponse struct {
	OK        bool   `json:"ok"`
	URL       string `json:"url"`
	SessionID string `json:"session_id"`
}

// Checkout session payment states reported by the backend.
const (
	CheckoutPaid    = "paid"
	CheckoutUnpaid  = "unpaid"
	CheckoutOpen    = "open"
	CheckoutExpired = "expired"
)

// CheckoutStatus is the authoritative state of a checkout session.
type CheckoutStatus struct {
	OK            bool   `json:"ok"`
	Status        string `json:"status"`
	CustomerEmail string `json:"customer_email,omitempty"`
}

// Receipt is an immutable purchase record.
type Receipt struct {
	ID         string    `json:"id"`
	SKU        string    `json:"sku"`
	Credits    int       `json:"credits"`
	Amount     float64   `json:"amount"`
	Currency   string    `json:"currency"`
	ProviderID string    `json:"provider_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// ReceiptResponse wraps a single receipt.
type ReceiptResponse struct {
	OK      bool    `json:"ok"`
	Receipt Receipt `json:"receipt"`
}

// Wallet is the authoritative balance plus the most recent receipts.
type Wallet struct {
	OK        bool       `json:"ok"`
	Credits   int        `json:"credits"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
	Receipts  []Receipt  `json:"receipts"`
}

// OKResponse is the body of calls that return nothing else.
type OKResponse struct {
	OK bool `json:"ok"`
}

// HealthResponse is returned by /livez and /readyz.
type HealthResponse struct {
	Status  string            `json:"status"`
	Uptime  string            `json:"uptime,omitempty"`
	Version string            `json:"version,omitempty"`
	Checks  map[string]string `json:"checks,omitempty"`
}
