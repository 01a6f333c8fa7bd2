package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/safar/go-shop-backend/internal/config"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"github.com/stripe/stripe-go/v82/webhook"
)

const (
	metadataOrderID = "order_id"
	metadataUserID  = "user_id"
)

// StripeProvider implements Provider against the Stripe API. One
// instance is constructed at process start from explicit configuration;
// no package-global key is set.
type StripeProvider struct {
	api           *client.API
	webhookSecret string
	currency      string
}

func NewStripeProvider(cfg config.StripeConfig) *StripeProvider {
	api := &client.API{}
	api.Init(cfg.SecretKey, nil)

	return &StripeProvider{
		api:           api,
		webhookSecret: cfg.WebhookSecret,
		currency:      cfg.Currency,
	}
}

func (p *StripeProvider) CreateSession(ctx context.Context, params CreateSessionParams) (*Session, error) {
	lineItems := make([]*stripe.CheckoutSessionLineItemParams, 0, len(params.LineItems))
	for _, item := range params.LineItems {
		productData := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name: stripe.String(item.Name),
		}
		if item.Description != "" {
			productData.Description = stripe.String(item.Description)
		}
		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(p.currency),
				ProductData: productData,
				UnitAmount:  stripe.Int64(item.UnitAmount),
			},
			Quantity: stripe.Int64(item.Quantity),
		})
	}

	sessionParams := &stripe.CheckoutSessionParams{
		Params:             stripe.Params{Context: ctx},
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems:          lineItems,
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:         stripe.String(params.SuccessURL),
		CancelURL:          stripe.String(params.CancelURL),
	}
	if params.CustomerEmail != "" {
		sessionParams.CustomerEmail = stripe.String(params.CustomerEmail)
	}
	sessionParams.AddMetadata(metadataOrderID, params.OrderID)
	sessionParams.AddMetadata(metadataUserID, strconv.FormatInt(params.UserID, 10))

	s, err := p.api.CheckoutSessions.New(sessionParams)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}

	return &Session{
		ID:          s.ID,
		RedirectURL: s.URL,
	}, nil
}

// VerifyWebhook authenticates the delivery against the raw body. The
// bytes must be exactly as received on the wire; a parse/re-serialize
// round trip would break the signature.
func (p *StripeProvider) VerifyWebhook(payload []byte, sigHeader string) (*Event, error) {
	stripeEvent, err := webhook.ConstructEvent(payload, sigHeader, p.webhookSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	event := &Event{RawType: string(stripeEvent.Type)}

	switch stripeEvent.Type {
	case "checkout.session.completed":
		var session stripe.CheckoutSession
		if err := json.Unmarshal(stripeEvent.Data.Raw, &session); err != nil {
			return nil, fmt.Errorf("decode checkout session: %w", err)
		}
		event.Type = EventCheckoutCompleted
		event.SessionID = session.ID
		if session.PaymentIntent != nil {
			event.PaymentID = session.PaymentIntent.ID
		}
		event.OrderID = session.Metadata[metadataOrderID]
		event.UserID = session.Metadata[metadataUserID]

	case "payment_intent.succeeded", "payment_intent.payment_failed":
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(stripeEvent.Data.Raw, &intent); err != nil {
			return nil, fmt.Errorf("decode payment intent: %w", err)
		}
		if stripeEvent.Type == "payment_intent.succeeded" {
			event.Type = EventPaymentSucceeded
		} else {
			event.Type = EventPaymentFailed
		}
		event.PaymentID = intent.ID
		event.OrderID = intent.Metadata[metadataOrderID]
		event.UserID = intent.Metadata[metadataUserID]

	default:
		event.Type = EventUnknown
	}

	return event, nil
}
