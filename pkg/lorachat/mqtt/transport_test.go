package mqtt

import (
	"context"
	"testing"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/exepirit/lorachat/pkg/lorachat"
)

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 0 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 0 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

var _ mqtt.Message = fakeMessage{}

func TestServiceEnvelopeRoundTrip(t *testing.T) {
	in := ServiceEnvelope{Payload: []byte(`{"id":1}`), ChannelID: "LongFast", GatewayID: "PI_NODE_1"}
	var out ServiceEnvelope
	require.NoError(t, out.Unmarshal(in.Marshal()))
	assert.Equal(t, in, out)
}

func TestServiceEnvelopeSkipsUnknownFields(t *testing.T) {
	buf := protowire.AppendTag(nil, 7, protowire.VarintType)
	buf = protowire.AppendVarint(buf, 99)
	buf = append(buf, (&ServiceEnvelope{Payload: []byte("x"), GatewayID: "g"}).Marshal()...)

	var env ServiceEnvelope
	require.NoError(t, env.Unmarshal(buf))
	assert.Equal(t, []byte("x"), env.Payload)
	assert.Equal(t, "g", env.GatewayID)
}

func TestServiceEnvelopeMalformed(t *testing.T) {
	var env ServiceEnvelope
	err := env.Unmarshal([]byte{0x0a, 0x10, 'x'})
	assert.ErrorIs(t, err, lorachat.ErrMalformedEnvelope)
}

func TestTopic(t *testing.T) {
	tr := &Transport{RootTopic: "lorachat", ChannelID: "LongFast"}
	assert.Equal(t, "lorachat/2/e/LongFast/PI_NODE_1", tr.Topic("PI_NODE_1"))
	assert.Equal(t, "lorachat/2/e/LongFast/+", tr.Topic("+"))
}

func TestReceiveFiltersOwnGateway(t *testing.T) {
	tr := &Transport{ChannelID: "LongFast", GatewayID: "me"}
	tr.messagesCh = make(chan mqtt.Message, 4)

	own := ServiceEnvelope{Payload: []byte("echo"), GatewayID: "me"}
	peer := ServiceEnvelope{Payload: []byte("hello"), GatewayID: "peer"}
	tr.handleMessage(nil, fakeMessage{topic: "t", payload: own.Marshal()})
	tr.handleMessage(nil, fakeMessage{topic: "t", payload: peer.Marshal()})

	frame, err := tr.receive()
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), frame)

	frame, err = tr.receive()
	require.NoError(t, err)
	assert.Nil(t, frame)
}

func TestHandleMessageDropsOldest(t *testing.T) {
	tr := &Transport{GatewayID: "me"}
	tr.messagesCh = make(chan mqtt.Message, 2)
	for _, payload := range []string{"1", "2", "3"} {
		env := ServiceEnvelope{Payload: []byte(payload), GatewayID: "peer"}
		tr.handleMessage(nil, fakeMessage{payload: env.Marshal()})
	}

	first, err := tr.receive()
	require.NoError(t, err)
	assert.Equal(t, []byte("2"), first)
	second, err := tr.receive()
	require.NoError(t, err)
	assert.Equal(t, []byte("3"), second)
}

func TestNotConnected(t *testing.T) {
	tr := &Transport{}
	assert.False(t, tr.Ready())
	assert.ErrorIs(t, tr.Send(context.Background(), []byte("x")), lorachat.ErrNotInitialized)
	_, err := tr.Poll(context.Background())
	assert.ErrorIs(t, err, lorachat.ErrNotInitialized)
	assert.ErrorIs(t, tr.HandleMessages(context.Background()), ErrNotConnected)
	assert.NoError(t, tr.Cleanup())
}
