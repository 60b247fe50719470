package source

import "InboxGate/entity"

const (
	objectWhatsApp  = "whatsapp_business_account"
	objectInstagram = "instagram"
	objectPage      = "page"
)

// Detect is only used when the webhook route carries no provider.
// The documented object field wins; payload shape is the last resort, and a bare
// messaging shape stays ambiguous between Instagram and Messenger.
func Detect(p *Payload) (entity.Provider, []entity.Provider) {
	switch p.Object {
	case objectWhatsApp:
		return entity.ProviderWhatsApp, nil
	case objectInstagram:
		return entity.ProviderInstagram, nil
	case objectPage:
		return entity.ProviderMessenger, nil
	}

	for _, entry := range p.Entry {
		for _, change := range entry.Changes {
			if change.Value.MessagingProduct == "whatsapp" || change.Value.Metadata.PhoneNumberID != "" {
				return entity.ProviderWhatsApp, nil
			}
		}
		if len(entry.Messaging) > 0 {
			return "", []entity.Provider{entity.ProviderInstagram, entity.ProviderMessenger}
		}
	}
	return "", nil
}
