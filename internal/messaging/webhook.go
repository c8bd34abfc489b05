package messaging

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/twilio/twilio-go/client"

	"github.com/hackgods/vaidya/internal/processor"
)

const SignatureHeader = "X-Twilio-Signature"

// SignatureVerifier checks the X-Twilio-Signature of inbound webhooks.
type SignatureVerifier struct {
	validator client.RequestValidator
	publicURL string
}

// NewSignatureVerifier verifies against authToken. publicURL, when set, is the URL Twilio was
// configured with; otherwise the URL is rebuilt from the request.
func NewSignatureVerifier(authToken, publicURL string) *SignatureVerifier {
	return &SignatureVerifier{
		validator: client.NewRequestValidator(authToken),
		publicURL: strings.TrimSpace(publicURL),
	}
}

// Verify reports whether r carries a valid signature. r.PostForm must already be parsed.
func (v *SignatureVerifier) Verify(r *http.Request) bool {
	sig := r.Header.Get(SignatureHeader)
	if sig == "" {
		return false
	}
	params := make(map[string]string, len(r.PostForm))
	for k, vals := range r.PostForm {
		if len(vals) > 0 {
			params[k] = vals[0]
		}
	}
	return v.validator.Validate(v.requestURL(r), params, sig)
}

func (v *SignatureVerifier) requestURL(r *http.Request) string {
	if v.publicURL != "" {
		return v.publicURL
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = strings.TrimSpace(strings.Split(proto, ",")[0])
	}
	host := r.Host
	if fh := r.Header.Get("X-Forwarded-Host"); fh != "" {
		host = strings.TrimSpace(strings.Split(fh, ",")[0])
	}
	return scheme + "://" + host + r.URL.RequestURI()
}

// ParseInbound maps Twilio's webhook form to an Inbound message.
func ParseInbound(form url.Values) processor.Inbound {
	in := processor.Inbound{
		From:        StripWhatsApp(form.Get("From")),
		Body:        strings.TrimSpace(form.Get("Body")),
		SID:         form.Get("MessageSid"),
		ProfileName: form.Get("ProfileName"),
	}
	lat, errLat := strconv.ParseFloat(form.Get("Latitude"), 64)
	lng, errLng := strconv.ParseFloat(form.Get("Longitude"), 64)
	if errLat == nil && errLng == nil {
		in.Latitude, in.Longitude = &lat, &lng
	}
	return in
}
