package entity

import "strings"

type Provider string

const (
	ProviderWhatsApp  Provider = "whatsapp"
	ProviderInstagram Provider = "instagram"
	ProviderMessenger Provider = "messenger"
)

// ParseProvider accepts route names and a few aliases used by older integration rows.
func ParseProvider(s string) (Provider, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "whatsapp", "wa":
		return ProviderWhatsApp, true
	case "instagram", "ig":
		return ProviderInstagram, true
	case "messenger", "facebook", "fb", "page":
		return ProviderMessenger, true
	}
	return "", false
}

func (p Provider) String() string {
	return string(p)
}

// EventPrefix is the short tag used in synthetic event ids.
func (p Provider) EventPrefix() string {
	switch p {
	case ProviderWhatsApp:
		return "wa"
	case ProviderInstagram:
		return "ig"
	case ProviderMessenger:
		return "fb"
	}
	return "meta"
}
