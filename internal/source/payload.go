package source

// Payload is the union of the Meta webhook shapes. WhatsApp Cloud deliveries populate
// Entry.Changes; Messenger and Instagram deliveries populate Entry.Messaging.
type Payload struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

type Entry struct {
	ID        string      `json:"id"`
	Time      int64       `json:"time"`
	Changes   []Change    `json:"changes"`
	Messaging []Messaging `json:"messaging"`
}

type Change struct {
	Field string      `json:"field"`
	Value ChangeValue `json:"value"`
}

type ChangeValue struct {
	MessagingProduct string `json:"messaging_product"`
	Metadata         struct {
		DisplayPhoneNumber string `json:"display_phone_number"`
		PhoneNumberID      string `json:"phone_number_id"`
	} `json:"metadata"`
	Contacts []struct {
		Profile struct {
			Name string `json:"name"`
		} `json:"profile"`
		WaID string `json:"wa_id"`
	} `json:"contacts"`
	Messages []WhatsAppMessage `json:"messages"`
	Statuses []struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"statuses"`
}

type WhatsAppMessage struct {
	From      string     `json:"from"`
	ID        string     `json:"id"`
	Timestamp string     `json:"timestamp"`
	Type      string     `json:"type"`
	Text      *textBody  `json:"text,omitempty"`
	Image     *mediaBody `json:"image,omitempty"`
	Video     *mediaBody `json:"video,omitempty"`
	Document  *mediaBody `json:"document,omitempty"`
	Audio     *mediaBody `json:"audio,omitempty"`
	Sticker   *mediaBody `json:"sticker,omitempty"`
}

type textBody struct {
	Body string `json:"body"`
}

type mediaBody struct {
	ID       string `json:"id"`
	Caption  string `json:"caption"`
	MimeType string `json:"mime_type"`
}

type Messaging struct {
	Sender struct {
		ID string `json:"id"`
	} `json:"sender"`
	Recipient struct {
		ID string `json:"id"`
	} `json:"recipient"`
	Timestamp int64             `json:"timestamp"`
	Message   *MessagingMessage `json:"message,omitempty"`
}

type MessagingMessage struct {
	Mid         string `json:"mid"`
	Text        string `json:"text"`
	IsEcho      bool   `json:"is_echo,omitempty"`
	Attachments []struct {
		Type string `json:"type"`
	} `json:"attachments,omitempty"`
}
