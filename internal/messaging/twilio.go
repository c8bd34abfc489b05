package messaging

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/hackgods/vaidya/internal/logging"
)

var tracer = otel.Tracer("vaidya.internal.messaging")

const whatsAppPrefix = "whatsapp:"

var ErrNotConfigured = errors.New("twilio: account sid, auth token and sender number are required")

type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// TwilioSender sends WhatsApp text messages through the Twilio Messages API.
type TwilioSender struct {
	api    messageCreator
	from   string
	logger *zap.Logger
}

func NewTwilioSender(accountSID, authToken, fromNumber string, logger *zap.Logger) (*TwilioSender, error) {
	if accountSID == "" || authToken == "" || fromNumber == "" {
		return nil, ErrNotConfigured
	}
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return newTwilioSender(client.Api, fromNumber, logger), nil
}

func newTwilioSender(api messageCreator, fromNumber string, logger *zap.Logger) *TwilioSender {
	return &TwilioSender{api: api, from: WhatsAppAddress(fromNumber), logger: logging.OrNop(logger)}
}

// WhatsAppAddress adds the "whatsapp:" channel prefix when it is missing.
func WhatsAppAddress(number string) string {
	if strings.HasPrefix(number, whatsAppPrefix) {
		return number
	}
	return whatsAppPrefix + number
}

// StripWhatsApp removes the channel prefix from a Twilio address.
func StripWhatsApp(addr string) string {
	return strings.TrimPrefix(strings.TrimSpace(addr), whatsAppPrefix)
}

// Send delivers body to the phone number to and returns the Twilio message SID.
func (s *TwilioSender) Send(ctx context.Context, to, body string) (string, error) {
	_, span := tracer.Start(ctx, "twilio.send", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(attribute.Int("message.length", len(body)))

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(WhatsAppAddress(to))
	params.SetFrom(s.from)
	params.SetBody(body)

	msg, err := s.api.CreateMessage(params)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create message")
		return "", fmt.Errorf("send whatsapp to %s: %w", logging.MaskPhone(to), err)
	}

	sid := ""
	if msg != nil && msg.Sid != nil {
		sid = *msg.Sid
	}
	span.SetAttributes(attribute.String("twilio.message_sid", sid))
	s.logger.Debug("whatsapp message sent", zap.String("to", logging.MaskPhone(to)), zap.String("sid", sid))
	return sid, nil
}
