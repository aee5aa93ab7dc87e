package application

import (
	"context"

	"github.com/AzielCF/az-desk/ticketing/domain"
)

// ContactResolver garantiza que todo mensaje entrante tenga un contacto
// persistido antes de resolver el ticket.
type ContactResolver struct {
	contacts domain.ContactRepository
}

func NewContactResolver(contacts domain.ContactRepository) *ContactResolver {
	return &ContactResolver{contacts: contacts}
}

// Resolve materializa el contacto del mensaje. El nombre solo se usa al
// crear: un contacto existente nunca cambia de nombre por un evento de canal.
func (r *ContactResolver) Resolve(ctx context.Context, msg *domain.InboundMessage) (domain.Contact, error) {
	if msg.Number == "" {
		return domain.Contact{}, domain.Ignorable("inbound message without counterpart number")
	}

	name := msg.DisplayName
	if name == "" {
		name = msg.Number
	}

	contact, err := r.contacts.FindOrCreate(ctx, msg.TenantID, msg.Number, name, msg.IsGroup)
	if err != nil {
		return domain.Contact{}, domain.Transient("resolving contact", err)
	}
	return contact, nil
}
