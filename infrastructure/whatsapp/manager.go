package whatsapp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"

	"github.com/AzielCF/az-desk/ticketing/domain"
)

// EventSubmitter recibe eventos normalizados; lo implementa el pipeline.
type EventSubmitter interface {
	Submit(ch domain.ChannelInstance, ev domain.NormalizedEvent) bool
}

// Manager mantiene las sesiones del canal direct: un cliente whatsmeow por
// canal, con su event handler conectado al pipeline.
type Manager struct {
	container *sqlstore.Container
	pipeline  EventSubmitter
	mediaDir  string
	logLevel  string

	mu      sync.RWMutex
	clients map[string]*whatsmeow.Client

	pendingMu sync.Mutex
	pending   map[string]whatsmeow.DownloadableMessage // stanza id -> adjunto
}

func NewManager(ctx context.Context, dbURI, driver, mediaDir, logLevel string, pipeline EventSubmitter) (*Manager, error) {
	if logLevel == "" {
		logLevel = "WARN"
	}
	container, err := sqlstore.New(ctx, driver, dbURI, waLog.Stdout("WaDB", logLevel, true))
	if err != nil {
		return nil, fmt.Errorf("init whatsmeow store: %w", err)
	}
	return &Manager{
		container: container,
		pipeline:  pipeline,
		mediaDir:  mediaDir,
		logLevel:  logLevel,
		clients:   make(map[string]*whatsmeow.Client),
		pending:   make(map[string]whatsmeow.DownloadableMessage),
	}, nil
}

// StartChannel levanta la sesión del canal. Si el dispositivo aún no está
// emparejado, los códigos QR se imprimen en el log para escanear.
func (m *Manager) StartChannel(ctx context.Context, ch domain.ChannelInstance) error {
	if ch.Kind != domain.ChannelKindDirect {
		return fmt.Errorf("channel %s is not a direct channel", ch.ID)
	}

	device, err := m.container.GetFirstDevice(ctx)
	if err != nil {
		return fmt.Errorf("get device for channel %s: %w", ch.ID, err)
	}

	client := whatsmeow.NewClient(device, waLog.Stdout("Client-"+shortID(ch.ID), m.logLevel, true))
	client.AddEventHandler(func(raw any) {
		m.handleEvent(ch, raw)
	})

	if client.Store.ID == nil {
		qrChan, err := client.GetQRChannel(ctx)
		if err != nil {
			return fmt.Errorf("qr channel for %s: %w", ch.ID, err)
		}
		if err := client.Connect(); err != nil {
			return fmt.Errorf("connect channel %s: %w", ch.ID, err)
		}
		go func() {
			for evt := range qrChan {
				if evt.Event == "code" {
					logrus.Infof("[DIRECT] Channel %s pairing code: %s", ch.Name, evt.Code)
				} else {
					logrus.Infof("[DIRECT] Channel %s login event: %s", ch.Name, evt.Event)
				}
			}
		}()
	} else {
		if err := client.Connect(); err != nil {
			return fmt.Errorf("connect channel %s: %w", ch.ID, err)
		}
	}

	m.mu.Lock()
	m.clients[ch.ID] = client
	m.mu.Unlock()

	logrus.Infof("[DIRECT] Channel %s (%s) session started", ch.Name, ch.ID)
	return nil
}

// Stop desconecta todas las sesiones.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, client := range m.clients {
		client.Disconnect()
		delete(m.clients, id)
	}
	logrus.Info("[DIRECT] All sessions disconnected")
}

func (m *Manager) clientFor(channelID string) (*whatsmeow.Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	client, ok := m.clients[channelID]
	if !ok || client == nil {
		return nil, fmt.Errorf("no session for channel %s", channelID)
	}
	return client, nil
}

func (m *Manager) handleEvent(ch domain.ChannelInstance, raw any) {
	switch evt := raw.(type) {
	case *events.Message:
		normalized, downloadable := NormalizeMessageEvent(ch, evt)
		if downloadable != nil {
			m.registerPending(evt.Info.ID, downloadable)
		}
		if !m.pipeline.Submit(ch, normalized) {
			logrus.Warnf("[DIRECT] Gate rejected message %s on channel %s", evt.Info.ID, ch.ID)
		}
	case *events.Receipt:
		for _, normalized := range NormalizeReceiptEvent(ch, evt) {
			if !m.pipeline.Submit(ch, normalized) {
				logrus.Warnf("[DIRECT] Gate rejected receipt on channel %s", ch.ID)
			}
		}
	case *events.Connected:
		logrus.Infof("[DIRECT] Channel %s connected", ch.Name)
	case *events.Disconnected:
		logrus.Warnf("[DIRECT] Channel %s disconnected", ch.Name)
	case *events.LoggedOut:
		logrus.Warnf("[DIRECT] Channel %s logged out, pairing required", ch.Name)
	}
}

func (m *Manager) registerPending(stanzaID string, dl whatsmeow.DownloadableMessage) {
	m.pendingMu.Lock()
	defer m.pendingMu.Unlock()
	m.pending[stanzaID] = dl
}

func (m *Manager) takePending(stanzaID string) (whatsmeow.DownloadableMessage, bool) {
	m.pendingMu.Lock()
	defer m.pendingMu.Unlock()
	dl, ok := m.pending[stanzaID]
	if ok {
		delete(m.pending, stanzaID)
	}
	return dl, ok
}

// Fetch implementa application.MediaFetcher para el canal direct: descarga el
// adjunto registrado durante la normalización y lo guarda en disco.
func (m *Manager) Fetch(ctx context.Context, ch domain.ChannelInstance, content domain.MessageContent) (string, error) {
	dl, ok := m.takePending(content.MediaRef)
	if !ok {
		return "", fmt.Errorf("no pending attachment for %s", content.MediaRef)
	}

	client, err := m.clientFor(ch.ID)
	if err != nil {
		return "", err
	}

	data, err := client.Download(ctx, dl)
	if err != nil {
		return "", fmt.Errorf("download attachment: %w", err)
	}

	dir := filepath.Join(m.mediaDir, ch.TenantID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("media dir: %w", err)
	}
	path := filepath.Join(dir, uuid.NewString())
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("media write: %w", err)
	}
	return path, nil
}

// SendText envía un mensaje de texto por el socket y retorna el stanza id.
func (m *Manager) SendText(ctx context.Context, ch domain.ChannelInstance, to, body, quotedID string) (string, error) {
	client, err := m.clientFor(ch.ID)
	if err != nil {
		return "", domain.Transient("direct session unavailable", err)
	}

	jid := types.NewJID(to, types.DefaultUserServer)
	msg := &waE2E.Message{
		ExtendedTextMessage: &waE2E.ExtendedTextMessage{
			Text: proto.String(body),
		},
	}
	if quotedID != "" {
		msg.ExtendedTextMessage.ContextInfo = &waE2E.ContextInfo{
			StanzaID:      proto.String(quotedID),
			Participant:   proto.String(jid.String()),
			QuotedMessage: &waE2E.Message{Conversation: proto.String("")},
		}
	}

	resp, err := client.SendMessage(ctx, jid, msg)
	if err != nil {
		return "", domain.Transient("direct send", err)
	}
	return resp.ID, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
