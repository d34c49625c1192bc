// Package billing wraps the Stripe API calls used for family subscriptions.
package billing

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	stripe "github.com/stripe/stripe-go/v82"
	checksession "github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/customer"
	"github.com/stripe/stripe-go/v82/subscription"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/huzaifasad/backendforfamily/internal/config"
	"github.com/huzaifasad/backendforfamily/internal/model"
)

// Provider is the subset of Stripe the HTTP layer depends on.
type Provider interface {
	CreateCustomer(email, name string) (string, error)
	CreateCheckoutSession(customerID string, userID int64, priceID string) (*Checkout, error)
	GetSession(sessionID string) (*Session, error)
	ConstructWebhookEvent(payload []byte, sigHeader string) (stripe.Event, error)
}

type Checkout struct {
	ID  string `json:"session_id"`
	URL string `json:"url"`
}

// Session is a completed checkout resolved together with its subscription.
type Session struct {
	ID             string
	UserID         int64
	CustomerID     string
	SubscriptionID string
	Paid           bool
	Subscription   model.Subscription
}

type Client struct {
	cfg config.StripeConfig
}

func NewClient(cfg config.StripeConfig) *Client {
	stripe.Key = cfg.SecretKey
	return &Client{cfg: cfg}
}

// CreateCustomer creates a Stripe customer and returns the customer ID.
func (c *Client) CreateCustomer(email, name string) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
	}
	if name != "" {
		params.Name = stripe.String(name)
	}
	cust, err := customer.New(params)
	if err != nil {
		return "", fmt.Errorf("create stripe customer: %w", err)
	}
	return cust.ID, nil
}

// CreateCheckoutSession starts a subscription checkout tagged with the user's ID.
func (c *Client) CreateCheckoutSession(customerID string, userID int64, priceID string) (*Checkout, error) {
	uid := strconv.FormatInt(userID, 10)
	params := &stripe.CheckoutSessionParams{
		Customer: stripe.String(customerID),
		Mode:     stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
		ClientReferenceID: stripe.String(uid),
		Metadata:          map[string]string{"user_id": uid},
		SuccessURL:        stripe.String(c.cfg.SuccessURL),
		CancelURL:         stripe.String(c.cfg.CancelURL),
	}
	sess, err := checksession.New(params)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	return &Checkout{ID: sess.ID, URL: sess.URL}, nil
}

// GetSession retrieves a checkout session and the subscription it created.
func (c *Client) GetSession(sessionID string) (*Session, error) {
	sess, err := checksession.Get(sessionID, nil)
	if err != nil {
		return nil, fmt.Errorf("get checkout session: %w", err)
	}
	out := sessionFromCheckout(sess)
	if out.SubscriptionID == "" {
		return out, nil
	}
	sub, err := subscription.Get(out.SubscriptionID, nil)
	if err != nil {
		return nil, fmt.Errorf("get subscription: %w", err)
	}
	out.Subscription = SubscriptionFromStripe(sub)
	out.Subscription.CustomerID = out.CustomerID
	return out, nil
}

// ConstructWebhookEvent verifies the signature and returns the parsed event.
func (c *Client) ConstructWebhookEvent(payload []byte, sigHeader string) (stripe.Event, error) {
	return webhook.ConstructEvent(payload, sigHeader, c.cfg.WebhookSecret)
}

func sessionFromCheckout(sess *stripe.CheckoutSession) *Session {
	out := &Session{
		ID:   sess.ID,
		Paid: sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
	}
	uid := sess.Metadata["user_id"]
	if uid == "" {
		uid = sess.ClientReferenceID
	}
	out.UserID, _ = strconv.ParseInt(uid, 10, 64)
	if sess.Customer != nil {
		out.CustomerID = sess.Customer.ID
	}
	if sess.Subscription != nil {
		out.SubscriptionID = sess.Subscription.ID
	}
	out.Subscription = model.Subscription{
		Status:     model.SubscriptionActive,
		CustomerID: out.CustomerID,
		StripeID:   out.SubscriptionID,
	}
	return out
}

// SubscriptionFromStripe maps a Stripe subscription onto the stored fields.
// The plan is the first item's price nickname and the expiry its period end.
func SubscriptionFromStripe(sub *stripe.Subscription) model.Subscription {
	out := model.Subscription{
		Status:   MapStatus(sub.Status),
		StripeID: sub.ID,
	}
	if sub.Customer != nil {
		out.CustomerID = sub.Customer.ID
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 {
		item := sub.Items.Data[0]
		if item.Price != nil {
			out.Plan = item.Price.Nickname
		}
		if item.CurrentPeriodEnd > 0 {
			t := time.Unix(item.CurrentPeriodEnd, 0).UTC()
			out.Expiry = &t
		}
	}
	return out
}

func MapStatus(s stripe.SubscriptionStatus) string {
	switch s {
	case stripe.SubscriptionStatusActive, stripe.SubscriptionStatusTrialing:
		return model.SubscriptionActive
	case stripe.SubscriptionStatusPastDue, stripe.SubscriptionStatusUnpaid:
		return model.SubscriptionPastDue
	case stripe.SubscriptionStatusCanceled, stripe.SubscriptionStatusIncompleteExpired:
		return model.SubscriptionCanceled
	default:
		return model.SubscriptionInactive
	}
}

// Update is the subscription change carried by a webhook event.
type Update struct {
	// UserID is set only for checkout completions; other events are matched
	// by SubscriptionID.
	UserID         int64
	SubscriptionID string
	Subscription   model.Subscription
}

// UpdateFromEvent decodes the events that change a user's subscription. It
// returns nil for event types that are ignored.
func UpdateFromEvent(event stripe.Event) (*Update, error) {
	if event.Data == nil {
		return nil, nil
	}
	switch event.Type {
	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return nil, fmt.Errorf("unmarshal checkout session: %w", err)
		}
		s := sessionFromCheckout(&sess)
		return &Update{UserID: s.UserID, SubscriptionID: s.SubscriptionID, Subscription: s.Subscription}, nil

	case "customer.subscription.updated", "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("unmarshal subscription: %w", err)
		}
		u := &Update{SubscriptionID: sub.ID, Subscription: SubscriptionFromStripe(&sub)}
		if event.Type == "customer.subscription.deleted" {
			u.Subscription.Status = model.SubscriptionCanceled
		}
		return u, nil

	case "invoice.payment_failed":
		var invoice stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
			return nil, fmt.Errorf("unmarshal invoice: %w", err)
		}
		subID := subscriptionIDFromInvoice(invoice)
		if subID == "" {
			return nil, nil
		}
		return &Update{
			SubscriptionID: subID,
			Subscription:   model.Subscription{Status: model.SubscriptionPastDue, StripeID: subID},
		}, nil
	}
	return nil, nil
}

func subscriptionIDFromInvoice(invoice stripe.Invoice) string {
	if invoice.Parent != nil &&
		invoice.Parent.SubscriptionDetails != nil &&
		invoice.Parent.SubscriptionDetails.Subscription != nil {
		return invoice.Parent.SubscriptionDetails.Subscription.ID
	}
	return ""
}
