package transport

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
	"go.uber.org/zap"
)

type fakeMessages struct {
	params []*twilioApi.CreateMessageParams
	resp   *twilioApi.ApiV2010Message
	err    error
}

func (f *fakeMessages) CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error) {
	f.params = append(f.params, params)
	if f.err != nil {
		return nil, f.err
	}
	if f.resp != nil {
		return f.resp, nil
	}
	sid := "SM123"
	return &twilioApi.ApiV2010Message{Sid: &sid}, nil
}

func TestNewTwilioDialer_RequiresCredentials(t *testing.T) {
	_, err := NewTwilioDialer(TwilioConfig{AccountSID: "AC1", AuthToken: "tok"}, zap.NewNop())
	assert.Error(t, err)

	dialer, err := NewTwilioDialer(TwilioConfig{AccountSID: "AC1", AuthToken: "tok", From: "whatsapp:+14155238886"}, zap.NewNop())
	require.NoError(t, err)
	assert.NotNil(t, dialer)
}

func TestTwilioClient_ConnectIsImmediate(t *testing.T) {
	dialer := newTwilioDialer(&fakeMessages{}, "whatsapp:+14155238886", zap.NewNop())
	client, err := dialer.Dial("main")
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.Connect(context.Background()))
	assert.Equal(t, EventAuthenticated, next(t, client).Type)
	assert.Equal(t, EventReady, next(t, client).Type)

	_, err = client.RequestPairingCode(context.Background(), "5511999990000")
	assert.ErrorIs(t, err, ErrPairingUnsupported)
}

func TestTwilioClient_SendText(t *testing.T) {
	api := &fakeMessages{}
	dialer := newTwilioDialer(api, "whatsapp:+14155238886", zap.NewNop())
	client, err := dialer.Dial("main")
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.SendText(context.Background(), "5511999990000@c.us", "olá"))
	require.Len(t, api.params, 1)
	assert.Equal(t, "whatsapp:+14155238886", *api.params[0].From)
	assert.Equal(t, "whatsapp:+5511999990000", *api.params[0].To)
	assert.Equal(t, "olá", *api.params[0].Body)

	api.err = errors.New("503")
	assert.Error(t, client.SendText(context.Background(), "5511999990000", "x"))

	code, msg := 63016, "outside the 24h window"
	api.err = nil
	api.resp = &twilioApi.ApiV2010Message{ErrorCode: &code, ErrorMessage: &msg}
	err = client.SendText(context.Background(), "5511999990000", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "63016")
}

func TestTwilioDialer_Deliver(t *testing.T) {
	dialer := newTwilioDialer(&fakeMessages{}, "whatsapp:+14155238886", zap.NewNop())

	assert.ErrorIs(t, dialer.Deliver("main", "whatsapp:+5511999990000", "saldo"), ErrClosed)

	client, err := dialer.Dial("main")
	require.NoError(t, err)

	require.NoError(t, dialer.Deliver("main", "whatsapp:+5511999990000", "saldo"))
	assert.Equal(t, Event{Type: EventMessage, From: "whatsapp:+5511999990000", Body: "saldo"}, next(t, client))

	require.NoError(t, client.Close())
	assert.ErrorIs(t, dialer.Deliver("main", "whatsapp:+5511999990000", "saldo"), ErrClosed)
	assert.ErrorIs(t, client.SendText(context.Background(), "5511999990000", "x"), ErrClosed)
}

func TestTwilioDialer_CloseOfStaleClientKeepsNewer(t *testing.T) {
	dialer := newTwilioDialer(&fakeMessages{}, "whatsapp:+14155238886", zap.NewNop())

	old, err := dialer.Dial("main")
	require.NoError(t, err)
	current, err := dialer.Dial("main")
	require.NoError(t, err)
	defer current.Close()

	require.NoError(t, old.Close())
	require.NoError(t, dialer.Deliver("main", "whatsapp:+5511999990000", "oi"))

	select {
	case ev := <-current.Events():
		assert.Equal(t, "oi", ev.Body)
	case <-time.After(time.Second):
		t.Fatal("newer client lost its registration")
	}
}
