package services

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Ananth-NQI/finbot-backend/internal/storage"
)

type sentText struct {
	session string
	phone   string
	text    string
}

type recordingSender struct {
	mu   sync.Mutex
	sent []sentText
	err  error
}

func (r *recordingSender) SendMessage(ctx context.Context, sessionName, phoneNumber, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, sentText{session: sessionName, phone: phoneNumber, text: text})
	return nil
}

var codePattern = regexp.MustCompile(`\*(\d{6})\*`)

func (r *recordingSender) lastCode(t *testing.T) string {
	t.Helper()

	r.mu.Lock()
	defer r.mu.Unlock()

	require.NotEmpty(t, r.sent)
	m := codePattern.FindStringSubmatch(r.sent[len(r.sent)-1].text)
	require.Len(t, m, 2)
	return m[1]
}

func newContactFixture(t *testing.T) (*ContactService, *storage.MemoryStore, *recordingSender) {
	t.Helper()

	store := storage.NewMemoryStore()
	sender := &recordingSender{}
	return NewContactService(store, sender, zap.NewNop()), store, sender
}

func TestContactRegister(t *testing.T) {
	svc, store, _ := newContactFixture(t)
	ctx := context.Background()

	contact, err := svc.Register(ctx, "+55 (11) 99999-0000", testUserID, false)
	require.NoError(t, err)
	assert.Equal(t, "5511999990000", contact.PhoneNumber)
	assert.False(t, contact.IsVerified)
	assert.Nil(t, contact.VerifiedAt)

	stored, err := store.GetContactByPhone(ctx, "5511999990000")
	require.NoError(t, err)
	assert.Equal(t, testUserID, stored.UserID)

	_, err = svc.Register(ctx, "5511999990000", "someone-else", true)
	assert.Error(t, err, "duplicate phone")

	_, err = svc.Register(ctx, "1234", testUserID, true)
	assert.ErrorIs(t, err, ErrInvalidPhone)

	_, err = svc.Register(ctx, "5521988887777", "  ", true)
	assert.Error(t, err)

	verified, err := svc.Register(ctx, "5521988887777", testUserID, true)
	require.NoError(t, err)
	assert.True(t, verified.IsVerified)
	assert.NotNil(t, verified.VerifiedAt)

	contacts, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, contacts, 2)
}

func TestContactVerification_HappyPath(t *testing.T) {
	svc, store, sender := newContactFixture(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "5511999990000", testUserID, false)
	require.NoError(t, err)

	require.NoError(t, svc.StartVerification(ctx, "main-session", "5511999990000"))
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "main-session", sender.sent[0].session)
	assert.Equal(t, "5511999990000", sender.sent[0].phone)
	assert.Contains(t, sender.sent[0].text, "Válido por 10 minutos.")

	contact, err := svc.Verify(ctx, "5511999990000", sender.lastCode(t))
	require.NoError(t, err)
	assert.True(t, contact.IsVerified)
	assert.NotNil(t, contact.VerifiedAt)

	stored, err := store.GetContactByPhone(ctx, "5511999990000")
	require.NoError(t, err)
	assert.True(t, stored.IsVerified)
	assert.Empty(t, stored.VerificationCode)
	assert.Nil(t, stored.VerificationExpiresAt)

	// verifying again is a no-op
	again, err := svc.Verify(ctx, "5511999990000", "000000")
	require.NoError(t, err)
	assert.True(t, again.IsVerified)

	assert.ErrorIs(t, svc.StartVerification(ctx, "main-session", "5511999990000"), ErrContactAlreadyVerified)
}

func TestContactVerification_Failures(t *testing.T) {
	svc, _, sender := newContactFixture(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "5511999990000", testUserID, false)
	require.NoError(t, err)

	_, err = svc.Verify(ctx, "5511999990000", "123456")
	assert.ErrorIs(t, err, ErrNoPendingVerification)

	_, err = svc.Verify(ctx, "5599000000000", "123456")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, svc.StartVerification(ctx, "main-session", "5511999990000"))
	code := sender.lastCode(t)
	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}

	for i := 0; i < maxVerificationAttempts; i++ {
		_, err = svc.Verify(ctx, "5511999990000", wrong)
		assert.ErrorIs(t, err, ErrVerificationInvalid)
	}
	_, err = svc.Verify(ctx, "5511999990000", code)
	assert.ErrorIs(t, err, ErrTooManyAttempts)

	// a fresh code resets the attempt counter
	require.NoError(t, svc.StartVerification(ctx, "main-session", "5511999990000"))
	contact, err := svc.Verify(ctx, "5511999990000", sender.lastCode(t))
	require.NoError(t, err)
	assert.True(t, contact.IsVerified)
}

func TestContactVerification_Expired(t *testing.T) {
	svc, _, sender := newContactFixture(t)
	ctx := context.Background()

	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	_, err := svc.Register(ctx, "5511999990000", testUserID, false)
	require.NoError(t, err)
	require.NoError(t, svc.StartVerification(ctx, "main-session", "5511999990000"))

	now = now.Add(verificationTTL + time.Second)
	_, err = svc.Verify(ctx, "5511999990000", sender.lastCode(t))
	assert.ErrorIs(t, err, ErrVerificationExpired)
}

func TestContactVerification_SendFailure(t *testing.T) {
	svc, _, sender := newContactFixture(t)
	ctx := context.Background()
	sender.err = ErrSessionNotConnected

	_, err := svc.Register(ctx, "5511999990000", testUserID, false)
	require.NoError(t, err)

	err = svc.StartVerification(ctx, "main-session", "5511999990000")
	assert.True(t, errors.Is(err, ErrSessionNotConnected))
}
