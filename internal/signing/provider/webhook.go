package provider

import (
	"fmt"
	"net/http"
)

type webhookDialect struct {
	parse  func(body []byte) (Event, error)
	verify func(secret string, header http.Header, body []byte) error
}

var dialects = map[Kind]webhookDialect{
	KindDocuSign: {parse: parseDocuSign, verify: verifyDocuSign},
	KindSignWell: {parse: parseSignWell, verify: verifySignWell},
}

// ParseKind validates a provider name taken from a URL or config.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if _, ok := dialects[k]; !ok {
		return "", fmt.Errorf("provider: unknown kind %q", s)
	}
	return k, nil
}

// ParseWebhook decodes a raw webhook body with the parser for kind.
func ParseWebhook(kind Kind, body []byte) (Event, error) {
	d, ok := dialects[kind]
	if !ok {
		return Event{}, fmt.Errorf("provider: unknown kind %q", kind)
	}
	return d.parse(body)
}

// VerifyWebhook checks the provider's HMAC. An empty secret disables the check.
func VerifyWebhook(kind Kind, secret string, header http.Header, body []byte) error {
	if secret == "" {
		return nil
	}
	d, ok := dialects[kind]
	if !ok {
		return fmt.Errorf("provider: unknown kind %q", kind)
	}
	return d.verify(secret, header, body)
}
