package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Ananth-NQI/finbot-backend/internal/broadcast"
	"github.com/Ananth-NQI/finbot-backend/internal/models"
	"github.com/Ananth-NQI/finbot-backend/internal/storage"
	"github.com/Ananth-NQI/finbot-backend/internal/transport"
)

var (
	ErrSessionNotInitialized = errors.New("session not initialized")
	ErrSessionNotConnected   = errors.New("session not connected")
	ErrInvalidSessionName    = errors.New("invalid session name")
)

// Disconnect reasons reported to observers
const (
	ReasonManualDisconnect = "manual_disconnect"
	ReasonAuthFailure      = "auth_failure"
	ReasonQRRenderFailed   = "qr_render_failed"
)

const (
	defaultEventTimeout       = 30 * time.Second
	defaultRestoreConcurrency = 4
)

// OperationResult is the soft-failure envelope returned to admin callers
type OperationResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// SessionStatusView is what admin callers see for one session
type SessionStatusView struct {
	Status      models.SessionStatus `json:"status"`
	QRCode      string               `json:"qrCode,omitempty"`
	PairingCode string               `json:"pairingCode,omitempty"`
}

// liveSession is a registered connection plus its event loop
type liveSession struct {
	name   string
	client transport.Client
	stop   chan struct{}
	done   chan struct{}
	once   sync.Once

	mu          sync.RWMutex
	status      models.SessionStatus
	qrCode      string
	pairingCode string
}

func (ls *liveSession) halt() {
	ls.once.Do(func() { close(ls.stop) })
}

func (ls *liveSession) view() SessionStatusView {
	ls.mu.RLock()
	defer ls.mu.RUnlock()
	return SessionStatusView{Status: ls.status, QRCode: ls.qrCode, PairingCode: ls.pairingCode}
}

func (ls *liveSession) set(fn func(ls *liveSession)) {
	ls.mu.Lock()
	fn(ls)
	ls.mu.Unlock()
}

// SessionManager owns the registry of live WhatsApp sessions and drives each
// one through DISCONNECTED → CONNECTING → QR_READY → AUTHENTICATED → CONNECTED.
type SessionManager struct {
	store     storage.SessionStore
	dialer    transport.Dialer
	messages  MessageProcessor
	publisher broadcast.Publisher
	renderQR  transport.QRRenderer
	logger    *zap.Logger

	defaultSession     string
	restoreConcurrency int
	eventTimeout       time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	sessions map[string]*liveSession

	// per-name locks serializing record writes for one session
	recordLocks sync.Map
}

// SessionOption customizes a SessionManager
type SessionOption func(*SessionManager)

// WithQRRenderer replaces the PNG data URL renderer
func WithQRRenderer(render transport.QRRenderer) SessionOption {
	return func(m *SessionManager) { m.renderQR = render }
}

// WithDefaultSession sets the session created on boot when nothing is restored
func WithDefaultSession(name string) SessionOption {
	return func(m *SessionManager) { m.defaultSession = name }
}

// WithRestoreConcurrency bounds parallel reconnects during Restore
func WithRestoreConcurrency(n int) SessionOption {
	return func(m *SessionManager) {
		if n > 0 {
			m.restoreConcurrency = n
		}
	}
}

// WithEventTimeout bounds store and network work done for a single event
func WithEventTimeout(d time.Duration) SessionOption {
	return func(m *SessionManager) {
		if d > 0 {
			m.eventTimeout = d
		}
	}
}

// NewSessionManager creates a new session manager
func NewSessionManager(
	store storage.SessionStore,
	dialer transport.Dialer,
	messages MessageProcessor,
	publisher broadcast.Publisher,
	logger *zap.Logger,
	opts ...SessionOption,
) *SessionManager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &SessionManager{
		store:              store,
		dialer:             dialer,
		messages:           messages,
		publisher:          publisher,
		renderQR:           transport.RenderQRDataURL,
		logger:             logger,
		restoreConcurrency: defaultRestoreConcurrency,
		eventTimeout:       defaultEventTimeout,
		ctx:                ctx,
		cancel:             cancel,
		sessions:           make(map[string]*liveSession),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// InitializeSession registers a new connection for name and starts its
// handshake. A second call while the session is live is a soft failure.
func (m *SessionManager) InitializeSession(ctx context.Context, name string) (*OperationResult, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalidSessionName
	}

	lock := m.recordLock(name)
	lock.Lock()

	m.mu.Lock()
	if _, exists := m.sessions[name]; exists {
		m.mu.Unlock()
		lock.Unlock()
		return &OperationResult{Success: false, Message: "Session already exists"}, nil
	}

	client, err := m.dialer.Dial(name)
	if err != nil {
		m.mu.Unlock()
		m.persistDisconnected(ctx, name, false)
		lock.Unlock()
		return nil, fmt.Errorf("dial session %s: %w", name, err)
	}

	ls := &liveSession{
		name:   name,
		client: client,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
		status: models.SessionConnecting,
	}
	m.sessions[name] = ls
	m.mu.Unlock()

	_, err = m.saveRecord(ctx, name, func(rec *models.WhatsAppSession) {
		rec.Status = models.SessionConnecting
	})
	lock.Unlock()
	if err != nil {
		m.unregister(ls)
		client.Close()
		return nil, fmt.Errorf("persist session %s: %w", name, err)
	}

	m.logger.Info("🔄 Connecting session", zap.String("session", name))
	m.publishStatus(name, models.SessionConnecting, "", "")

	go m.run(ls)

	if err := client.Connect(ctx); err != nil {
		m.logger.Error("❌ Session handshake failed", zap.String("session", name), zap.Error(err))
		m.retire(ls, err.Error(), false)
		return nil, fmt.Errorf("connect session %s: %w", name, err)
	}

	return &OperationResult{Success: true, Message: "Session initialization started"}, nil
}

// GetStatus returns the live state when the session is registered, else the
// last persisted state. Unknown sessions read as DISCONNECTED.
func (m *SessionManager) GetStatus(ctx context.Context, name string) (*SessionStatusView, error) {
	if ls, ok := m.lookup(name); ok {
		view := ls.view()
		return &view, nil
	}

	rec, err := m.store.GetSession(ctx, name)
	if errors.Is(err, storage.ErrNotFound) {
		return &SessionStatusView{Status: models.SessionDisconnected}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", name, err)
	}
	return &SessionStatusView{Status: rec.Status, QRCode: rec.QRCode, PairingCode: rec.PairingCode}, nil
}

// GetQRCode returns the current QR image of a live session, if any
func (m *SessionManager) GetQRCode(name string) (string, bool) {
	ls, ok := m.lookup(name)
	if !ok {
		return "", false
	}
	qr := ls.view().QRCode
	return qr, qr != ""
}

// RequestPairingCode asks the transport for a code linking phoneNumber
func (m *SessionManager) RequestPairingCode(ctx context.Context, name, phoneNumber string) (string, error) {
	ls, ok := m.lookup(name)
	if !ok {
		return "", ErrSessionNotInitialized
	}

	code, err := ls.client.RequestPairingCode(ctx, models.NormalizePhone(phoneNumber))
	if err != nil {
		m.logger.Error("❌ Failed to request pairing code", zap.String("session", name), zap.Error(err))
		return "", err
	}

	ls.set(func(ls *liveSession) { ls.pairingCode = code })

	lock := m.recordLock(name)
	lock.Lock()
	_, err = m.saveRecord(ctx, name, func(rec *models.WhatsAppSession) {
		rec.PairingCode = code
	})
	lock.Unlock()
	if err != nil {
		return "", fmt.Errorf("persist pairing code: %w", err)
	}

	m.logger.Info("🔑 Pairing code issued", zap.String("session", name))
	m.publisher.Publish(broadcast.Event{
		Type:        broadcast.EventStatusUpdate,
		SessionName: name,
		Status:      string(ls.view().Status),
		PairingCode: code,
	})
	return code, nil
}

// DisconnectSession logs the device out and forgets the live connection
func (m *SessionManager) DisconnectSession(ctx context.Context, name string) (*OperationResult, error) {
	lock := m.recordLock(name)
	lock.Lock()
	defer lock.Unlock()

	m.mu.Lock()
	ls, ok := m.sessions[name]
	if ok {
		delete(m.sessions, name)
	}
	m.mu.Unlock()

	if !ok {
		return &OperationResult{Success: false, Message: "Session not found"}, nil
	}

	ls.halt()
	if err := ls.client.Logout(ctx); err != nil {
		m.logger.Warn("⚠️ Logout failed, closing anyway", zap.String("session", name), zap.Error(err))
	}
	if err := ls.client.Close(); err != nil {
		m.logger.Warn("⚠️ Close failed", zap.String("session", name), zap.Error(err))
	}

	if _, err := m.saveRecord(ctx, name, clearToDisconnected); err != nil {
		return nil, fmt.Errorf("persist session %s: %w", name, err)
	}

	m.logger.Info("📴 Session disconnected", zap.String("session", name))
	m.publishDisconnected(name, ReasonManualDisconnect)
	return &OperationResult{Success: true, Message: "Session disconnected successfully"}, nil
}

// DeleteSession disconnects the session if live and removes its record
func (m *SessionManager) DeleteSession(ctx context.Context, name string) error {
	if _, err := m.DisconnectSession(ctx, name); err != nil {
		return err
	}

	lock := m.recordLock(name)
	lock.Lock()
	defer lock.Unlock()

	if err := m.store.DeleteSession(ctx, name); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("delete session %s: %w", name, err)
	}
	m.logger.Info("🗑️ Session deleted", zap.String("session", name))
	return nil
}

// SendMessage sends text to phoneNumber through a CONNECTED session
func (m *SessionManager) SendMessage(ctx context.Context, name, phoneNumber, text string) error {
	ls, ok := m.lookup(name)
	if !ok || ls.view().Status != models.SessionConnected {
		return ErrSessionNotConnected
	}

	if err := ls.client.SendText(ctx, models.ChatAddress(phoneNumber), text); err != nil {
		m.logger.Error("❌ Failed to send message", zap.String("session", name), zap.Error(err))
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// ListSessions returns every persisted session, newest first
func (m *SessionManager) ListSessions(ctx context.Context) ([]*models.WhatsAppSession, error) {
	return m.store.GetAllSessions(ctx)
}

// LiveSessionNames returns the names of sessions with a live connection
func (m *SessionManager) LiveSessionNames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	names := make([]string, 0, len(m.sessions))
	for name := range m.sessions {
		names = append(names, name)
	}
	return names
}

// IsLive reports whether name has a registered connection
func (m *SessionManager) IsLive(name string) bool {
	_, ok := m.lookup(name)
	return ok
}

// Restore re-initializes every session last seen CONNECTED or AUTHENTICATED.
// Failures are logged per session. When nothing was restorable the default
// session, if configured, is initialized instead.
func (m *SessionManager) Restore(ctx context.Context) error {
	records, err := m.store.GetSessionsByStatus(ctx, models.RestorableStatuses...)
	if err != nil {
		return fmt.Errorf("load restorable sessions: %w", err)
	}

	if len(records) == 0 {
		if m.defaultSession == "" {
			return nil
		}
		m.logger.Info("🚀 Initializing default session", zap.String("session", m.defaultSession))
		if _, err := m.InitializeSession(ctx, m.defaultSession); err != nil {
			m.logger.Error("❌ Failed to initialize default session", zap.String("session", m.defaultSession), zap.Error(err))
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.restoreConcurrency)
	for _, rec := range records {
		name := rec.Name
		g.Go(func() error {
			m.logger.Info("🔄 Restoring session", zap.String("session", name))
			if _, err := m.InitializeSession(gctx, name); err != nil {
				m.logger.Error("❌ Failed to restore session", zap.String("session", name), zap.Error(err))
			}
			return nil
		})
	}
	return g.Wait()
}

// ReconcileOrphans marks records that claim a live status but have no
// connection in this process as DISCONNECTED, returning their names.
func (m *SessionManager) ReconcileOrphans(ctx context.Context) ([]string, error) {
	records, err := m.store.GetSessionsByStatus(ctx, models.LiveStatuses...)
	if err != nil {
		return nil, fmt.Errorf("load live sessions: %w", err)
	}

	var orphaned []string
	for _, rec := range records {
		if m.reconcileOne(ctx, rec.Name) {
			orphaned = append(orphaned, rec.Name)
		}
	}
	return orphaned, nil
}

func (m *SessionManager) reconcileOne(ctx context.Context, name string) bool {
	lock := m.recordLock(name)
	lock.Lock()
	defer lock.Unlock()

	if m.IsLive(name) {
		return false
	}

	rec, err := m.store.GetSession(ctx, name)
	if err != nil || !rec.Status.IsLive() {
		return false
	}

	clearToDisconnected(rec)
	if err := m.store.SaveSession(ctx, rec); err != nil {
		m.logger.Error("❌ Failed to reconcile session", zap.String("session", name), zap.Error(err))
		return false
	}
	m.publishStatus(name, models.SessionDisconnected, "", "")
	return true
}

// Shutdown closes every live connection without logging out, so persisted
// statuses survive for the next Restore.
func (m *SessionManager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	live := make([]*liveSession, 0, len(m.sessions))
	for name, ls := range m.sessions {
		live = append(live, ls)
		delete(m.sessions, name)
	}
	m.mu.Unlock()

	for _, ls := range live {
		ls.halt()
		if err := ls.client.Close(); err != nil {
			m.logger.Warn("⚠️ Failed to close session", zap.String("session", ls.name), zap.Error(err))
		}
	}
	m.cancel()

	for _, ls := range live {
		select {
		case <-ls.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// run consumes one session's events in order until the session is halted
func (m *SessionManager) run(ls *liveSession) {
	defer close(ls.done)

	events := ls.client.Events()
	for {
		select {
		case <-ls.stop:
			return
		case ev := <-events:
			m.handleEvent(ls, ev)
		}
	}
}

func (m *SessionManager) handleEvent(ls *liveSession, ev transport.Event) {
	ctx, cancel := context.WithTimeout(m.ctx, m.eventTimeout)
	defer cancel()

	switch ev.Type {
	case transport.EventQR:
		m.onQR(ctx, ls, ev.QR)

	case transport.EventAuthenticated:
		m.logger.Info("🔐 Session authenticated", zap.String("session", ls.name))
		m.transition(ctx, ls, models.SessionAuthenticated, func(rec *models.WhatsAppSession) {
			rec.Status = models.SessionAuthenticated
		})

	case transport.EventReady:
		m.logger.Info("✅ Session ready", zap.String("session", ls.name))
		ls.set(func(ls *liveSession) { ls.qrCode = "" })
		now := time.Now()
		if m.transition(ctx, ls, models.SessionConnected, func(rec *models.WhatsAppSession) {
			rec.Status = models.SessionConnected
			rec.QRCode = ""
			rec.LastActiveAt = &now
		}) {
			m.publisher.Publish(broadcast.Event{
				Type:        broadcast.EventSessionConnected,
				SessionName: ls.name,
				Status:      string(models.SessionConnected),
			})
		}

	case transport.EventAuthFailure:
		m.logger.Error("❌ Session authentication failed", zap.String("session", ls.name), zap.String("reason", ev.Reason))
		m.retire(ls, ReasonAuthFailure, true)

	case transport.EventDisconnected:
		m.logger.Info("📴 Session disconnected by network", zap.String("session", ls.name), zap.String("reason", ev.Reason))
		m.retire(ls, ev.Reason, true)

	case transport.EventMessage:
		m.onMessage(ctx, ls, ev)

	default:
		m.logger.Debug("Ignoring transport event", zap.String("session", ls.name), zap.String("type", string(ev.Type)))
	}
}

func (m *SessionManager) onQR(ctx context.Context, ls *liveSession, payload string) {
	image, err := m.renderQR(payload)
	if err != nil {
		m.logger.Error("❌ Failed to render QR code", zap.String("session", ls.name), zap.Error(err))
		m.retire(ls, ReasonQRRenderFailed, true)
		return
	}

	m.logger.Info("📱 QR code ready", zap.String("session", ls.name))
	ls.set(func(ls *liveSession) { ls.qrCode = image })
	if !m.transition(ctx, ls, models.SessionQRReady, func(rec *models.WhatsAppSession) {
		rec.Status = models.SessionQRReady
		rec.QRCode = image
	}) {
		return
	}
	m.publisher.Publish(broadcast.Event{
		Type:        broadcast.EventQRCode,
		SessionName: ls.name,
		Status:      string(models.SessionQRReady),
		QRCode:      image,
	})
}

func (m *SessionManager) onMessage(ctx context.Context, ls *liveSession, ev transport.Event) {
	if m.messages == nil {
		return
	}
	reply := m.messages.ProcessMessage(ctx, ev.From, ev.Body)
	if reply == "" {
		return
	}
	if err := ls.client.SendText(ctx, ev.From, reply); err != nil {
		m.logger.Error("❌ Failed to reply", zap.String("session", ls.name), zap.Error(err))
	}
}

// transition applies a live status change if ls still owns the name.
// It reports whether the change was persisted and broadcast.
func (m *SessionManager) transition(ctx context.Context, ls *liveSession, status models.SessionStatus, mutate func(*models.WhatsAppSession)) bool {
	lock := m.recordLock(ls.name)
	lock.Lock()
	defer lock.Unlock()

	if !m.owns(ls) {
		return false
	}

	ls.set(func(ls *liveSession) { ls.status = status })
	if _, err := m.saveRecord(ctx, ls.name, mutate); err != nil {
		m.logger.Error("❌ Failed to persist session status",
			zap.String("session", ls.name),
			zap.String("status", string(status)),
			zap.Error(err))
	}

	view := ls.view()
	m.publishStatus(ls.name, status, view.QRCode, view.PairingCode)
	return true
}

// retire tears down ls after a terminal event. It is a no-op when another
// caller already removed ls from the registry.
func (m *SessionManager) retire(ls *liveSession, reason string, clearCredentials bool) {
	lock := m.recordLock(ls.name)
	lock.Lock()
	defer lock.Unlock()

	if !m.unregister(ls) {
		return
	}

	ls.halt()
	if err := ls.client.Close(); err != nil {
		m.logger.Warn("⚠️ Close failed", zap.String("session", ls.name), zap.Error(err))
	}
	ls.set(func(ls *liveSession) { ls.status = models.SessionDisconnected })

	ctx, cancel := context.WithTimeout(m.ctx, m.eventTimeout)
	defer cancel()
	m.persistDisconnected(ctx, ls.name, clearCredentials)
	m.publishDisconnected(ls.name, reason)
}

func (m *SessionManager) persistDisconnected(ctx context.Context, name string, clearCredentials bool) {
	mutate := func(rec *models.WhatsAppSession) { rec.Status = models.SessionDisconnected }
	if clearCredentials {
		mutate = clearToDisconnected
	}
	if _, err := m.saveRecord(ctx, name, mutate); err != nil {
		m.logger.Error("❌ Failed to persist disconnect", zap.String("session", name), zap.Error(err))
	}
}

func clearToDisconnected(rec *models.WhatsAppSession) {
	rec.Status = models.SessionDisconnected
	rec.QRCode = ""
	rec.PairingCode = ""
}

// saveRecord reads, mutates and writes the record. Callers hold the name's
// record lock.
func (m *SessionManager) saveRecord(ctx context.Context, name string, mutate func(*models.WhatsAppSession)) (*models.WhatsAppSession, error) {
	rec, err := m.store.GetSession(ctx, name)
	if errors.Is(err, storage.ErrNotFound) {
		rec = &models.WhatsAppSession{Name: name, Status: models.SessionDisconnected}
	} else if err != nil {
		return nil, err
	}

	mutate(rec)
	if err := m.store.SaveSession(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (m *SessionManager) publishStatus(name string, status models.SessionStatus, qrCode, pairingCode string) {
	m.publisher.Publish(broadcast.Event{
		Type:        broadcast.EventStatusUpdate,
		SessionName: name,
		Status:      string(status),
		QRCode:      qrCode,
		PairingCode: pairingCode,
	})
}

func (m *SessionManager) publishDisconnected(name, reason string) {
	m.publishStatus(name, models.SessionDisconnected, "", "")
	m.publisher.Publish(broadcast.Event{
		Type:        broadcast.EventSessionDisconnected,
		SessionName: name,
		Status:      string(models.SessionDisconnected),
		Reason:      reason,
	})
}

func (m *SessionManager) recordLock(name string) *sync.Mutex {
	lock, _ := m.recordLocks.LoadOrStore(name, &sync.Mutex{})
	return lock.(*sync.Mutex)
}

func (m *SessionManager) lookup(name string) (*liveSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ls, ok := m.sessions[name]
	return ls, ok
}

func (m *SessionManager) owns(ls *liveSession) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[ls.name] == ls
}

// unregister removes ls if it still owns its name
func (m *SessionManager) unregister(ls *liveSession) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sessions[ls.name] != ls {
		return false
	}
	delete(m.sessions, ls.name)
	return true
}
