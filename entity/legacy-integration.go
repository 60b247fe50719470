package entity

// LegacyChannelIntegration is the single pre-multi-tenant credential row per channel.
// Its config holds plaintext tokens.
type LegacyChannelIntegration struct {
	Channel     Provider          `json:"channel" bson:"channel"`
	IsConnected bool              `json:"is_connected" bson:"is_connected"`
	AccountID   string            `json:"account_id" bson:"account_id"`
	Config      map[string]string `json:"config" bson:"config"`
}

const (
	LegacyKeyPageAccessToken = "page_access_token"
	LegacyKeyAccessToken     = "access_token"
	LegacyKeyPhoneNumberID   = "phone_number_id"
	LegacyKeyWorkspaceID     = "workspace_id"
)

// AccessToken returns the embedded token, whichever key the row was written with.
func (l *LegacyChannelIntegration) AccessToken() string {
	if t := l.Config[LegacyKeyPageAccessToken]; t != "" {
		return t
	}
	return l.Config[LegacyKeyAccessToken]
}

// ChannelID is the phone number id for WhatsApp rows and the account id otherwise.
func (l *LegacyChannelIntegration) ChannelID() string {
	if l.Channel == ProviderWhatsApp {
		if id := l.Config[LegacyKeyPhoneNumberID]; id != "" {
			return id
		}
	}
	return l.AccountID
}
