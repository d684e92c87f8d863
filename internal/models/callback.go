package models

// STKCallbackEnvelope is the notification Daraja posts to the callback URL
// after the payer responds to the STK prompt.
type STKCallbackEnvelope struct {
	Body struct {
		StkCallback STKCallback `json:"stkCallback"`
	} `json:"Body"`
}

type STKCallback struct {
	MerchantRequestID string            `json:"MerchantRequestID"`
	CheckoutRequestID string            `json:"CheckoutRequestID"`
	ResultCode        int               `json:"ResultCode"`
	ResultDesc        string            `json:"ResultDesc"`
	CallbackMetadata  *CallbackMetadata `json:"CallbackMetadata,omitempty"`
}

// CallbackMetadata is only present on successful payments.
type CallbackMetadata struct {
	Item []CallbackItem `json:"Item"`
}

// CallbackItem values are strings for MpesaReceiptNumber and numbers for
// Amount and PhoneNumber, hence the interface type.
type CallbackItem struct {
	Name  string      `json:"Name"`
	Value interface{} `json:"Value,omitempty"`
}

// ReceiptNumber returns the MpesaReceiptNumber metadata value, or "" when
// the metadata list is absent or does not carry one.
func (c *STKCallback) ReceiptNumber() string {
	if c.CallbackMetadata == nil {
		return ""
	}
	for _, item := range c.CallbackMetadata.Item {
		if item.Name == "MpesaReceiptNumber" {
			if v, ok := item.Value.(string); ok {
				return v
			}
		}
	}
	return ""
}
