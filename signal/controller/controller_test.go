package controller_test

import (
	"encoding/json"
	"io"
	"testing"

	"callnotify/broker"
	"callnotify/metric"
	"callnotify/pkg/socket"
	"callnotify/signal/controller"
	"callnotify/types/client/request"
	"callnotify/types/client/response"
	"callnotify/types/message"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const topic = broker.Topic("webrtc")

func envelope(t *testing.T, typ string, payload any) request.Common {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return request.Common{Type: typ, Payload: data}
}

// expectReads makes the socket return reqs in order and then io.EOF.
func expectReads(s *socket.MockSocket, reqs ...request.Common) {
	calls := make([]*gomock.Call, 0, len(reqs)+1)
	for _, req := range reqs {
		req := req
		calls = append(calls, s.EXPECT().ReadJSON(gomock.Any()).DoAndReturn(func(v any) error {
			*v.(*request.Common) = req
			return nil
		}))
	}
	calls = append(calls, s.EXPECT().ReadJSON(gomock.Any()).Return(io.EOF))
	gomock.InOrder(calls...)
}

func drain(sub interface{ Receive() <-chan any }) []response.Event {
	var got []response.Event
	for {
		select {
		case ev := <-sub.Receive():
			got = append(got, ev.(response.Event))
		default:
			return got
		}
	}
}

func TestProcess(t *testing.T) {
	activate := func(t *testing.T, user string) request.Common {
		return envelope(t, request.ACTIVATE, request.Activate{UserID: user, Topic: string(topic)})
	}

	t.Run("given a first request other than activate when processed then error", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		s := socket.NewMockSocket(ctrl)
		s.EXPECT().ReadJSON(gomock.Any()).DoAndReturn(func(v any) error {
			*v.(*request.Common) = envelope(t, request.SIGNAL, message.Message{})
			return nil
		})

		c := controller.New(broker.New(), topic, metric.New(metric.Config{}))
		err := c.Process(s)
		assert.ErrorIs(t, err, controller.ErrNotActivated)
	})

	t.Run("given activation without user when processed then error", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		s := socket.NewMockSocket(ctrl)
		s.EXPECT().ReadJSON(gomock.Any()).DoAndReturn(func(v any) error {
			*v.(*request.Common) = envelope(t, request.ACTIVATE, request.Activate{})
			return nil
		})

		c := controller.New(broker.New(), topic, metric.New(metric.Config{}))
		err := c.Process(s)
		assert.ErrorIs(t, err, controller.ErrInvalidRequest)
	})

	t.Run("given activation when processed then connection id is returned", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		s := socket.NewMockSocket(ctrl)
		expectReads(s, activate(t, "u7"))
		s.EXPECT().WriteJSON(gomock.Any()).DoAndReturn(func(data any) error {
			res, ok := data.(response.Activate)
			require.True(t, ok)
			assert.Equal(t, response.ACTIVATE, res.Type)
			assert.NotEmpty(t, res.ConnectionID)
			return nil
		})

		c := controller.New(broker.New(), topic, metric.New(metric.Config{}))
		err := c.Process(s)
		assert.ErrorIs(t, err, io.EOF)
	})

	t.Run("given valid envelopes when processed then they are published in order", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		s := socket.NewMockSocket(ctrl)
		brk := broker.New()
		peer := brk.Subscribe(topic)

		inv := message.Invite{FromUserID: "u7", ToUserID: "u1"}
		msg := message.Message{Action: message.CANCEL, FromUserID: "u7", ToUserID: "u1"}
		expectReads(s,
			activate(t, "u7"),
			envelope(t, request.NOTIFY, inv),
			envelope(t, request.SIGNAL, msg),
		)
		s.EXPECT().WriteJSON(gomock.Any()).Return(nil).AnyTimes()

		c := controller.New(brk, topic, metric.New(metric.Config{}))
		require.ErrorIs(t, c.Process(s), io.EOF)

		got := drain(peer)
		require.Len(t, got, 2)
		assert.Equal(t, request.NOTIFY, got[0].Type)
		assert.Equal(t, string(topic), got[0].Topic)
		decodedInv, err := message.DecodeInvite(got[0].Payload)
		require.NoError(t, err)
		assert.Equal(t, inv, decodedInv)
		assert.Equal(t, request.SIGNAL, got[1].Type)
		decodedMsg, err := message.Decode(got[1].Payload)
		require.NoError(t, err)
		assert.Equal(t, msg, decodedMsg)
	})

	t.Run("given invalid envelopes when processed then they are dropped", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		s := socket.NewMockSocket(ctrl)
		brk := broker.New()
		peer := brk.Subscribe(topic)

		valid := message.Message{Action: message.ANSWER, FromUserID: "u7", ToUserID: "u1"}
		expectReads(s,
			activate(t, "u7"),
			envelope(t, request.SIGNAL, message.Message{Action: message.ANSWER, FromUserID: "u9", ToUserID: "u1"}),
			envelope(t, request.SIGNAL, map[string]string{"action": "HANGUP", "from_user_id": "u7", "to_user_id": "u1"}),
			envelope(t, request.NOTIFY, message.Invite{FromUserID: "u7"}),
			envelope(t, "PUSH", valid),
			envelope(t, request.SIGNAL, valid),
		)
		s.EXPECT().WriteJSON(gomock.Any()).Return(nil).AnyTimes()

		c := controller.New(brk, topic, metric.New(metric.Config{}))
		require.ErrorIs(t, c.Process(s), io.EOF)

		got := drain(peer)
		require.Len(t, got, 1)
		decoded, err := message.Decode(got[0].Payload)
		require.NoError(t, err)
		assert.Equal(t, valid, decoded)
	})
}
