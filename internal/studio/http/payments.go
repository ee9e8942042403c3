package http

import (
	"io"
	"net/http"
	"net/url"

	"github.com/aussiebroadwan/minivisionary/internal/studio/payments"
	"github.com/aussiebroadwan/minivisionary/internal/studio/service"
	"github.com/aussiebroadwan/minivisionary/pkg/httpx"
	"github.com/aussiebroadwan/minivisionary/pkg/visionsdk"
)

type PaymentHandler struct {
	PaymentService *service.PaymentService
	WalletService  *service.WalletService
}

// Products lists the catalog.
//
//	@Summary	Product catalog
//	@Tags		Payments
//	@Produce	json
//	@Success	200	{object}	visionsdk.ProductsResponse
//	@Router		/payments/products [get].
func (h *PaymentHandler) Products(w http.ResponseWriter, r *http.Request) {
	products := h.PaymentService.Products()
	items := make([]visionsdk.Product, 0, len(products))
	for _, p := range products {
		items = append(items, toProduct(p))
	}
	httpx.WriteJSON(w, http.StatusOK, visionsdk.ProductsResponse{OK: true, Items: items})
}

// Checkout opens a hosted checkout. Credits are granted only once the
// provider confirms payment.
//
//	@Summary	Start checkout
//	@Tags		Payments
//	@Security	BearerAuth
//	@Accept		json
//	@Produce	json
//	@Param		body	body		visionsdk.CheckoutRequest	true	"sku, success_url, cancel_url"
//	@Success	200		{object}	visionsdk.CheckoutResponse	"redirect url and session id"
//	@Failure	400		{object}	httpx.ErrorBody				"invalid_sku or invalid_input"
//	@Failure	401		{object}	httpx.ErrorBody				"unauthenticated"
//	@Router		/payments/checkout [post].
func (h *PaymentHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req visionsdk.CheckoutRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	res, err := h.PaymentService.Checkout(r.Context(), userID, req.SKU, req.SuccessURL, req.CancelURL)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, visionsdk.CheckoutResponse{OK: true, URL: res.URL, SessionID: res.SessionID})
}

// Session reports whether a checkout has been paid.
//
//	@Summary	Checkout session status
//	@Tags		Payments
//	@Security	BearerAuth
//	@Produce	json
//	@Param		id	path		string	true	"checkout session id"
//	@Success	200	{object}	visionsdk.CheckoutStatus	"paid, unpaid or expired"
//	@Failure	404	{object}	httpx.ErrorBody				"not_found"
//	@Router		/payments/session/{id} [get].
func (h *PaymentHandler) Session(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	sess, err := h.PaymentService.SessionStatus(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, visionsdk.CheckoutStatus{
		OK:            true,
		Status:        paymentStatus(sess),
		CustomerEmail: sess.CustomerEmail,
	})
}

// Wallet returns the balance and latest receipts.
//
//	@Summary	Wallet
//	@Tags		Payments
//	@Security	BearerAuth
//	@Produce	json
//	@Success	200	{object}	visionsdk.Wallet
//	@Failure	401	{object}	httpx.ErrorBody	"unauthenticated"
//	@Router		/payments/wallet [get].
func (h *PaymentHandler) Wallet(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	wallet, err := h.WalletService.Wallet(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	receipts := make([]visionsdk.Receipt, 0, len(wallet.Receipts))
	for _, e := range wallet.Receipts {
		receipts = append(receipts, toReceipt(e))
	}
	updated := wallet.UpdatedAt
	httpx.WriteJSON(w, http.StatusOK, visionsdk.Wallet{
		OK:        true,
		Credits:   wallet.Credits,
		UpdatedAt: &updated,
		Receipts:  receipts,
	})
}

// Receipt returns one purchase receipt.
//
//	@Summary	Receipt
//	@Tags		Payments
//	@Security	BearerAuth
//	@Produce	json
//	@Param		id	path		string	true	"receipt id"
//	@Success	200	{object}	visionsdk.ReceiptResponse
//	@Failure	404	{object}	httpx.ErrorBody	"not_found"
//	@Router		/payments/receipts/{id} [get].
func (h *PaymentHandler) Receipt(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	e, err := h.WalletService.Receipt(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, visionsdk.ReceiptResponse{OK: true, Receipt: toReceipt(e)})
}

// CancelSubscription ends the ad-free plan.
//
//	@Summary	Cancel ad-free subscription
//	@Tags		Payments
//	@Security	BearerAuth
//	@Produce	json
//	@Success	200	{object}	visionsdk.ProfileResponse
//	@Failure	401	{object}	httpx.ErrorBody	"unauthenticated"
//	@Router		/payments/subscription/cancel [post].
func (h *PaymentHandler) CancelSubscription(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	u, err := h.PaymentService.CancelSubscription(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, visionsdk.ProfileResponse{OK: true, User: toProfile(u)})
}

// Webhook applies a signed provider event. Redelivery is harmless.
//
//	@Summary	Payment provider webhook
//	@Tags		Payments
//	@Accept		json
//	@Produce	json
//	@Param		X-Visionary-Signature	header		string	true	"t=<unix>,v1=<hex hmac-sha256>"
//	@Success	200						{object}	visionsdk.OKResponse
//	@Failure	400						{object}	httpx.ErrorBody	"invalid_signature"
//	@Router		/payments/webhook [post].
func (h *PaymentHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, httpx.MaxBodyBytes))
	if err != nil {
		writeBadRequest(w, "unreadable body")
		return
	}

	if err := h.PaymentService.HandleWebhook(r.Context(), payload, r.Header.Get(payments.SignatureHeader)); err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, visionsdk.OKResponse{OK: true})
}

// Simulate pays a local checkout session and sends the browser back to the
// session's success URL. Only mounted when the simulator is enabled.
//
//	@Summary	Simulated hosted checkout
//	@Tags		Payments
//	@Param		id	path	string	true	"checkout session id"
//	@Success	303	"redirect to success_url?session_id={id}"
//	@Failure	404	{object}	httpx.ErrorBody	"not_found"
//	@Router		/payments/simulate/{id} [get].
func (h *PaymentHandler) Simulate(w http.ResponseWriter, r *http.Request) {
	sess, err := h.PaymentService.Simulate(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	target, err := url.Parse(sess.SuccessURL)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	q := target.Query()
	q.Set("session_id", sess.ID)
	target.RawQuery = q.Encode()

	http.Redirect(w, r, target.String(), http.StatusSeeOther)
}
