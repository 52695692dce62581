package dto

// Inbound webhook envelope, trimmed to the fields the bots dispatch on.
// The platform delivers batches but in practice one message per callback;
// handlers take the first message of the first change of the first entry.

type WebhookEnvelope struct {
	Object string         `json:"object"`
	Entry  []WebhookEntry `json:"entry"`
}

type WebhookEntry struct {
	ID      string          `json:"id"`
	Changes []WebhookChange `json:"changes"`
}

type WebhookChange struct {
	Field string       `json:"field"`
	Value WebhookValue `json:"value"`
}

type WebhookValue struct {
	MessagingProduct string           `json:"messaging_product"`
	Metadata         WebhookMetadata  `json:"metadata"`
	Contacts         []WebhookContact `json:"contacts"`
	Messages         []InboundMessage `json:"messages"`
}

type WebhookMetadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

type WebhookContact struct {
	WaID    string `json:"wa_id"`
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
}

type InboundMessage struct {
	ID          string              `json:"id"`
	From        string              `json:"from"`
	Timestamp   string              `json:"timestamp"`
	Type        string              `json:"type"` // text, interactive, order, location
	Text        *TextBody           `json:"text,omitempty"`
	Interactive *InboundInteractive `json:"interactive,omitempty"`
	Order       *InboundOrder       `json:"order,omitempty"`
	Location    *InboundLocation    `json:"location,omitempty"`
}

type InboundInteractive struct {
	Type        string        `json:"type"` // list_reply, button_reply
	ListReply   *ReplySummary `json:"list_reply,omitempty"`
	ButtonReply *ReplySummary `json:"button_reply,omitempty"`
}

// ReplyID returns the selected row or button id regardless of reply kind.
func (i *InboundInteractive) ReplyID() string {
	if i.ListReply != nil {
		return i.ListReply.ID
	}
	if i.ButtonReply != nil {
		return i.ButtonReply.ID
	}
	return ""
}

type ReplySummary struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type InboundOrder struct {
	CatalogID    string             `json:"catalog_id"`
	ProductItems []InboundOrderItem `json:"product_items"`
}

type InboundOrderItem struct {
	ProductRetailerID string  `json:"product_retailer_id"`
	Quantity          int     `json:"quantity"`
	ItemPrice         float64 `json:"item_price"`
	Currency          string  `json:"currency"`
}

type InboundLocation struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Name      string  `json:"name,omitempty"`
	Address   string  `json:"address,omitempty"`
}

// Outbound payloads. The send path fills messaging_product, recipient_type
// and to; builders below produce the type-specific part.

type MessagePayload struct {
	MessagingProduct string       `json:"messaging_product,omitempty"`
	RecipientType    string       `json:"recipient_type,omitempty"`
	To               string       `json:"to,omitempty"`
	Type             string       `json:"type"`
	Text             *TextBody    `json:"text,omitempty"`
	Interactive      *Interactive `json:"interactive,omitempty"`
}

type TextBody struct {
	Body string `json:"body"`
}

type Interactive struct {
	Type   string             `json:"type"` // button, list, product_list, location_request_message
	Header *InteractiveHeader `json:"header,omitempty"`
	Body   *TextContent       `json:"body,omitempty"`
	Footer *TextContent       `json:"footer,omitempty"`
	Action *InteractiveAction `json:"action,omitempty"`
}

type InteractiveHeader struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type TextContent struct {
	Text string `json:"text"`
}

type InteractiveAction struct {
	Name      string          `json:"name,omitempty"`
	Button    string          `json:"button,omitempty"`
	Buttons   []Button        `json:"buttons,omitempty"`
	CatalogID string          `json:"catalog_id,omitempty"`
	Sections  []ActionSection `json:"sections,omitempty"`
}

type Button struct {
	Type  string      `json:"type"`
	Reply ButtonReply `json:"reply"`
}

type ButtonReply struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type ActionSection struct {
	Title        string        `json:"title,omitempty"`
	Rows         []SectionRow  `json:"rows,omitempty"`
	ProductItems []ProductItem `json:"product_items,omitempty"`
}

type SectionRow struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

type ProductItem struct {
	ProductRetailerID string `json:"product_retailer_id"`
}

func TextMessage(body string) *MessagePayload {
	return &MessagePayload{Type: "text", Text: &TextBody{Body: body}}
}

func ButtonMessage(body string, buttons ...ButtonReply) *MessagePayload {
	btns := make([]Button, 0, len(buttons))
	for _, b := range buttons {
		btns = append(btns, Button{Type: "reply", Reply: b})
	}
	return &MessagePayload{
		Type: "interactive",
		Interactive: &Interactive{
			Type:   "button",
			Body:   &TextContent{Text: body},
			Action: &InteractiveAction{Buttons: btns},
		},
	}
}

func ListMessage(header, body, footer, button string, sections ...ActionSection) *MessagePayload {
	return &MessagePayload{
		Type: "interactive",
		Interactive: &Interactive{
			Type:   "list",
			Header: &InteractiveHeader{Type: "text", Text: header},
			Body:   &TextContent{Text: body},
			Footer: &TextContent{Text: footer},
			Action: &InteractiveAction{Button: button, Sections: sections},
		},
	}
}

func ProductListMessage(header, body, catalogID, sectionTitle string, retailerIDs []string) *MessagePayload {
	items := make([]ProductItem, 0, len(retailerIDs))
	for _, id := range retailerIDs {
		items = append(items, ProductItem{ProductRetailerID: id})
	}
	return &MessagePayload{
		Type: "interactive",
		Interactive: &Interactive{
			Type:   "product_list",
			Header: &InteractiveHeader{Type: "text", Text: header},
			Body:   &TextContent{Text: body},
			Action: &InteractiveAction{
				CatalogID: catalogID,
				Sections:  []ActionSection{{Title: sectionTitle, ProductItems: items}},
			},
		},
	}
}

func LocationRequestMessage(body string) *MessagePayload {
	return &MessagePayload{
		Type: "interactive",
		Interactive: &Interactive{
			Type:   "location_request_message",
			Body:   &TextContent{Text: body},
			Action: &InteractiveAction{Name: "send_location"},
		},
	}
}
