package repository

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/AzielCF/az-desk/infrastructure/valkey"
)

// presenceTTL expira entradas de agentes que dejaron de hacer ping sin
// despedirse (cierre abrupto del navegador, caída del servidor).
const presenceTTL = 90 * time.Second

// ValkeyPresenceStore implements domain.PresenceStore using Valkey, shared
// across servers behind the same instance.
type ValkeyPresenceStore struct {
	client *valkey.Client
	prefix string
}

// NewValkeyPresenceStore creates a new ValkeyPresenceStore instance.
func NewValkeyPresenceStore(client *valkey.Client) *ValkeyPresenceStore {
	return &ValkeyPresenceStore{
		client: client,
		prefix: client.Key("presence") + ":",
	}
}

func (s *ValkeyPresenceStore) fullKey(tenantID, userID string) string {
	return s.prefix + tenantID + ":" + userID
}

// SetOnline marks the agent online, refreshing the TTL on every call so the
// UI ping keeps the entry alive.
func (s *ValkeyPresenceStore) SetOnline(ctx context.Context, tenantID, userID string) error {
	cmd := s.client.Inner().B().Set().
		Key(s.fullKey(tenantID, userID)).
		Value("1").
		Ex(presenceTTL).
		Build()
	return s.client.Inner().Do(ctx, cmd).Error()
}

func (s *ValkeyPresenceStore) SetOffline(ctx context.Context, tenantID, userID string) error {
	cmd := s.client.Inner().B().Del().Key(s.fullKey(tenantID, userID)).Build()
	return s.client.Inner().Do(ctx, cmd).Error()
}

// IsOnline reports whether the agent has a live presence entry. Errors are
// treated as offline so a Valkey outage degrades to the offline path instead
// of blocking assignment.
func (s *ValkeyPresenceStore) IsOnline(ctx context.Context, tenantID, userID string) bool {
	cmd := s.client.Inner().B().Exists().Key(s.fullKey(tenantID, userID)).Build()
	n, err := s.client.Inner().Do(ctx, cmd).AsInt64()
	if err != nil {
		if !valkey.IsNil(err) {
			logrus.WithError(err).Warn("[PRESENCE] Valkey exists check failed, treating as offline")
		}
		return false
	}
	return n > 0
}
