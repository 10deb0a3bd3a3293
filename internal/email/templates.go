package email

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/ecclesia-cloud/billing-service/internal/domain"
)

// Type is the closed set of transactional emails this service sends.
type Type string

const (
	TypePaymentConfirmed      Type = "payment_confirmed"
	TypePaymentOverdue        Type = "payment_overdue"
	TypeChurchSuspended       Type = "church_suspended"
	TypeSubscriptionCancelled Type = "subscription_cancelled"
	TypeFreeAccountUsed       Type = "free_account_used"
)

// TemplateData carries the fields the templates can reference.
type TemplateData struct {
	ChurchName   string
	OwnerName    string
	PlanName     string
	DaysOverdue  int
	GrantedEmail string
}

var templates = map[Type]*template.Template{
	TypePaymentConfirmed: template.Must(template.New("payment_confirmed").Parse(
		`Olá {{.OwnerName}},

O pagamento do plano {{.PlanName}} da {{.ChurchName}} foi confirmado.
Seu site já está no ar e todos os recursos do plano estão liberados.

Equipe Ecclesia`)),

	TypePaymentOverdue: template.Must(template.New("payment_overdue").Parse(
		`Olá {{.OwnerName}},

Identificamos um pagamento em atraso ({{.DaysOverdue}} dia(s)) na assinatura da {{.ChurchName}}.
Regularize o pagamento para evitar a suspensão do site.

Equipe Ecclesia`)),

	TypeChurchSuspended: template.Must(template.New("church_suspended").Parse(
		`Olá {{.OwnerName}},

O site da {{.ChurchName}} foi suspenso por falta de pagamento.
Assim que o pagamento for confirmado, o site volta ao ar automaticamente.

Equipe Ecclesia`)),

	TypeSubscriptionCancelled: template.Must(template.New("subscription_cancelled").Parse(
		`Olá {{.OwnerName}},

Recebemos o pedido de cancelamento da assinatura da {{.ChurchName}}.
O acesso completo permanece até o fim do ciclo atual; depois disso a conta passa para o plano gratuito.

Equipe Ecclesia`)),

	TypeFreeAccountUsed: template.Must(template.New("free_account_used").Parse(
		`Olá,

A conta gratuita concedida para {{.GrantedEmail}} foi ativada pela {{.ChurchName}} no plano {{.PlanName}}.

Equipe Ecclesia`)),
}

var subjects = map[Type]string{
	TypePaymentConfirmed:      "Pagamento confirmado",
	TypePaymentOverdue:        "Pagamento em atraso",
	TypeChurchSuspended:       "Site suspenso por falta de pagamento",
	TypeSubscriptionCancelled: "Cancelamento de assinatura recebido",
	TypeFreeAccountUsed:       "Conta gratuita ativada",
}

// Render produces the subject and body for one email type. An unknown
// type is a caller bug and yields ErrInvalidEmailType.
func Render(emailType Type, data TemplateData) (subject, body string, err error) {
	tmpl, ok := templates[emailType]
	if !ok {
		return "", "", fmt.Errorf("%w: %q", domain.ErrInvalidEmailType, emailType)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", "", fmt.Errorf("email: failed to render template %q: %w", emailType, err)
	}
	return subjects[emailType], buf.String(), nil
}
