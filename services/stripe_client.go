package services

import (
	"context"
	"fmt"
	"time"

	"checkout-service/models"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/checkout/session"
	"github.com/stripe/stripe-go/v80/webhook"
)

// CheckoutSessionInfo is the subset of the hosted session this service needs.
type CheckoutSessionInfo struct {
	ID        string
	URL       string
	ExpiresAt time.Time
}

// PaymentGateway creates hosted payment sessions with the external provider.
type PaymentGateway interface {
	CreateSession(ctx context.Context, order *models.Order) (*CheckoutSessionInfo, error)
}

// EventVerifier authenticates a raw webhook payload against its signature.
type EventVerifier interface {
	VerifyEvent(payload []byte, sigHeader string) (stripe.Event, error)
}

type StripeService struct {
	SecretKey   string
	WebhookKey  string
	FrontendURL string
	Currency    string
}

func NewStripeService(secretKey, webhookKey, frontendURL, currency string) *StripeService {
	stripe.Key = secretKey
	return &StripeService{
		SecretKey:   secretKey,
		WebhookKey:  webhookKey,
		FrontendURL: frontendURL,
		Currency:    currency,
	}
}

// CreateSession opens a hosted checkout session for the order. The order
// reference is carried as the client reference id so webhook events can be
// correlated back without exposing internal ids.
func (s *StripeService) CreateSession(ctx context.Context, order *models.Order) (*CheckoutSessionInfo, error) {
	lineItems := make([]*stripe.CheckoutSessionLineItemParams, 0, len(order.OrderItems))
	for _, item := range order.OrderItems {
		product := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name: stripe.String(item.Name),
		}
		if item.ImageURL != nil && *item.ImageURL != "" {
			product.Images = stripe.StringSlice([]string{*item.ImageURL})
		}
		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(s.Currency),
				UnitAmount:  stripe.Int64(toMinorUnits(item.UnitPrice)),
				ProductData: product,
			},
			Quantity: stripe.Int64(int64(item.Quantity)),
		})
	}

	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems:          lineItems,
		ClientReferenceID:  stripe.String(order.OrderReference),
		SuccessURL: stripe.String(fmt.Sprintf(
			"%s/success?order_ref=%s&session_id={CHECKOUT_SESSION_ID}", s.FrontendURL, order.OrderReference)),
		CancelURL: stripe.String(fmt.Sprintf(
			"%s/cancel?order_ref=%s", s.FrontendURL, order.OrderReference)),
	}
	if order.SessionExpiresAt != nil {
		params.ExpiresAt = stripe.Int64(order.SessionExpiresAt.Unix())
	}
	params.Context = ctx
	params.AddMetadata("order_id", order.ID.String())
	params.AddMetadata("order_reference", order.OrderReference)
	params.AddMetadata("user_id", order.UserID)

	sess, err := session.New(params)
	if err != nil {
		return nil, err
	}

	return &CheckoutSessionInfo{
		ID:        sess.ID,
		URL:       sess.URL,
		ExpiresAt: time.Unix(sess.ExpiresAt, 0).UTC(),
	}, nil
}

// VerifyEvent checks the Stripe-Signature header against the webhook secret
// and parses the event. Any failure here means the payload cannot be trusted.
func (s *StripeService) VerifyEvent(payload []byte, sigHeader string) (stripe.Event, error) {
	return webhook.ConstructEvent(payload, sigHeader, s.WebhookKey)
}

// toMinorUnits converts a 2-dp decimal amount into integer minor currency
// units for the provider API.
func toMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// fromMinorUnits converts a provider amount back into a 2-dp decimal.
func fromMinorUnits(amount int64) decimal.Decimal {
	return decimal.NewFromInt(amount).Div(decimal.NewFromInt(100))
}
