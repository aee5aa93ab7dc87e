package normalizer

// Tipos del payload de webhook de la Cloud API (Graph).
// Solo se declaran los campos que el pipeline consume.

type CloudWebhookPayload struct {
	Object string       `json:"object"`
	Entry  []CloudEntry `json:"entry"`
}

type CloudEntry struct {
	ID      string        `json:"id"` // WABA id
	Changes []CloudChange `json:"changes"`
}

type CloudChange struct {
	Field string           `json:"field"`
	Value CloudChangeValue `json:"value"`
}

type CloudChangeValue struct {
	MessagingProduct string         `json:"messaging_product"`
	Metadata         CloudMetadata  `json:"metadata"`
	Contacts         []CloudContact `json:"contacts"`
	Messages         []CloudMessage `json:"messages"`
	Statuses         []CloudStatus  `json:"statuses"`
}

type CloudMetadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

type CloudContact struct {
	WaID    string `json:"wa_id"`
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
}

type CloudMessage struct {
	ID        string `json:"id"`
	From      string `json:"from"`
	Timestamp string `json:"timestamp"` // unix seconds as string
	Type      string `json:"type"`

	Text        *CloudText        `json:"text,omitempty"`
	Image       *CloudMedia       `json:"image,omitempty"`
	Video       *CloudMedia       `json:"video,omitempty"`
	Audio       *CloudMedia       `json:"audio,omitempty"`
	Document    *CloudMedia       `json:"document,omitempty"`
	Sticker     *CloudMedia       `json:"sticker,omitempty"`
	Location    *CloudLocation    `json:"location,omitempty"`
	Contacts    []map[string]any  `json:"contacts,omitempty"`
	Button      *CloudButton      `json:"button,omitempty"`
	Interactive *CloudInteractive `json:"interactive,omitempty"`
	Context     *CloudContext     `json:"context,omitempty"`
	Errors      []CloudError      `json:"errors,omitempty"`
}

type CloudText struct {
	Body string `json:"body"`
}

type CloudMedia struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type"`
	SHA256   string `json:"sha256"`
	Caption  string `json:"caption,omitempty"`
	Filename string `json:"filename,omitempty"`
}

type CloudLocation struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Name      string  `json:"name,omitempty"`
	Address   string  `json:"address,omitempty"`
}

type CloudButton struct {
	Text    string `json:"text"`
	Payload string `json:"payload"`
}

type CloudInteractive struct {
	Type        string            `json:"type"` // button_reply | list_reply
	ButtonReply *CloudButtonReply `json:"button_reply,omitempty"`
	ListReply   *CloudListReply   `json:"list_reply,omitempty"`
}

type CloudButtonReply struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type CloudListReply struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

type CloudContext struct {
	From string `json:"from"`
	ID   string `json:"id"` // quoted message id
}

type CloudStatus struct {
	ID          string       `json:"id"`
	Status      string       `json:"status"` // sent | delivered | read | failed
	Timestamp   string       `json:"timestamp"`
	RecipientID string       `json:"recipient_id"`
	Errors      []CloudError `json:"errors,omitempty"`
}

type CloudError struct {
	Code    int    `json:"code"`
	Title   string `json:"title"`
	Message string `json:"message,omitempty"`
}
