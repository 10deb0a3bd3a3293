package asaas

// CustomerRequest creates a customer on Asaas.
type CustomerRequest struct {
	Name              string `json:"name"`
	Email             string `json:"email"`
	CpfCnpj           string `json:"cpfCnpj"`
	MobilePhone       string `json:"mobilePhone,omitempty"`
	ExternalReference string `json:"externalReference,omitempty"`
}

// CustomerResponse is the customer object returned by Asaas.
type CustomerResponse struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	CpfCnpj string `json:"cpfCnpj"`
	Deleted bool   `json:"deleted"`
}

// PaymentLinkRequest creates a hosted recurring checkout session.
// Value is in reais, as Asaas expects decimal amounts.
type PaymentLinkRequest struct {
	Name              string  `json:"name"`
	Description       string  `json:"description,omitempty"`
	BillingType       string  `json:"billingType"`
	ChargeType        string  `json:"chargeType"`
	SubscriptionCycle string  `json:"subscriptionCycle,omitempty"`
	Value             float64 `json:"value"`
	ExternalReference string  `json:"externalReference"`
	SuccessURL        string  `json:"callback,omitempty"`
	CancelURL         string  `json:"cancelUrl,omitempty"`
}

// PaymentLinkResponse is the hosted checkout session.
type PaymentLinkResponse struct {
	ID     string `json:"id"`
	URL    string `json:"url"`
	Active bool   `json:"active"`
}

// WebhookPayload is the body Asaas posts to our webhook endpoint.
type WebhookPayload struct {
	ID      string         `json:"id"`
	Event   string         `json:"event"`
	Payment WebhookPayment `json:"payment"`
}

// WebhookPayment is the payment object embedded in a webhook event.
type WebhookPayment struct {
	ID                string  `json:"id"`
	Customer          string  `json:"customer"`
	Subscription      string  `json:"subscription,omitempty"`
	Value             float64 `json:"value"`
	ExternalReference string  `json:"externalReference"`
	BillingType       string  `json:"billingType"`
	Status            string  `json:"status"`
	DueDate           string  `json:"dueDate"`
}

// errorResponse is the error envelope Asaas returns on non-2xx.
type errorResponse struct {
	Errors []struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"errors"`
}
