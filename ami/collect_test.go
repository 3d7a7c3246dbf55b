package ami

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectListGathersUntilEventListComplete(t *testing.T) {
	c, server := startedClient(t)
	defer c.Stop()

	go func() {
		frame, err := server.nextFrame()
		require.NoError(t, err)
		id := extractActionID(frame)

		server.send("Response: Success\r\nActionID: " + id + "\r\n\r\n")
		server.send("Event: PeerEntry\r\nActionID: " + id + "\r\nEventList: start\r\nObjectName: 1101\r\n\r\n")
		server.send("Event: PeerEntry\r\nActionID: " + id + "\r\nObjectName: 1102\r\n\r\n")
		server.send("Event: PeerlistComplete\r\nActionID: " + id + "\r\nEventList: Complete\r\n\r\n")
	}()

	action := NewMessage(
		Field{Key: "Action", Value: "SIPPeers"},
		Field{Key: "ActionID", Value: "L1"},
	)
	got, err := CollectList(context.Background(), c, action, "")
	require.NoError(t, err)
	require.Len(t, got, 1)
	obj, _ := got[0].Get("ObjectName")
	assert.Equal(t, "1102", obj)
}

func TestCollectListGathersUntilNamedCompleteEvent(t *testing.T) {
	c, server := startedClient(t)
	defer c.Stop()

	go func() {
		frame, err := server.nextFrame()
		require.NoError(t, err)
		id := extractActionID(frame)

		server.send("Response: Success\r\nActionID: " + id + "\r\n\r\n")
		server.send("Event: ConfbridgeListRooms\r\nActionID: " + id + "\r\nConference: 1000\r\n\r\n")
		server.send("Event: ConfbridgeListRoomsComplete\r\nActionID: " + id + "\r\n\r\n")
	}()

	action := NewMessage(
		Field{Key: "Action", Value: "ConfbridgeListRooms"},
		Field{Key: "ActionID", Value: "L2"},
	)
	got, err := CollectList(context.Background(), c, action, "ConfbridgeListRoomsComplete")
	require.NoError(t, err)
	require.Len(t, got, 1)
	conf, _ := got[0].Get("Conference")
	assert.Equal(t, "1000", conf)
}

func TestCollectListIgnoresEventsForOtherActionIDs(t *testing.T) {
	c, server := startedClient(t)
	defer c.Stop()

	go func() {
		frame, err := server.nextFrame()
		require.NoError(t, err)
		id := extractActionID(frame)

		server.send("Response: Success\r\nActionID: " + id + "\r\n\r\n")
		server.send("Event: PeerEntry\r\nActionID: someone-else\r\nObjectName: noise\r\n\r\n")
		server.send("Event: PeerEntry\r\nActionID: " + id + "\r\nObjectName: signal\r\n\r\n")
		server.send("Event: PeerlistComplete\r\nActionID: " + id + "\r\nEventList: Complete\r\n\r\n")
	}()

	action := NewMessage(
		Field{Key: "Action", Value: "SIPPeers"},
		Field{Key: "ActionID", Value: "L3"},
	)
	got, err := CollectList(context.Background(), c, action, "")
	require.NoError(t, err)
	require.Len(t, got, 1)
	obj, _ := got[0].Get("ObjectName")
	assert.Equal(t, "signal", obj)
}

func TestCollectListFailsWithoutActionID(t *testing.T) {
	c, server := startedClient(t)
	defer c.Stop()
	_ = server

	action := NewMessage(Field{Key: "Action", Value: "SIPPeers"})
	action.Fields = action.Fields[:1] // strip the auto-generated ActionID

	_, err := CollectList(context.Background(), c, action, "")
	assert.ErrorIs(t, err, ErrArgument)
}

func TestCollectListRespectsContextCancellation(t *testing.T) {
	c, server := startedClient(t)
	defer c.Stop()

	go func() {
		frame, err := server.nextFrame()
		require.NoError(t, err)
		id := extractActionID(frame)
		server.send("Response: Success\r\nActionID: " + id + "\r\n\r\n")
		// No terminal event ever arrives.
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	action := NewMessage(
		Field{Key: "Action", Value: "SIPPeers"},
		Field{Key: "ActionID", Value: "L4"},
	)
	_, err := CollectList(ctx, c, action, "")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCommandJoinsOutputLines(t *testing.T) {
	c, server := startedClient(t)
	defer c.Stop()

	go func() {
		frame, err := server.nextFrame()
		require.NoError(t, err)
		require.Contains(t, frame, "Command: core show channels")
		id := extractActionID(frame)
		server.send("Response: Follows\r\nActionID: " + id +
			"\r\nOutput: 0 active channels\r\nOutput: --END COMMAND--\r\n\r\n")
	}()

	out, err := Command(context.Background(), c, "core show channels")
	require.NoError(t, err)
	assert.Equal(t, "0 active channels\n--END COMMAND--", out)
}

func TestCommandErrorResponse(t *testing.T) {
	c, server := startedClient(t)
	defer c.Stop()

	go func() {
		frame, err := server.nextFrame()
		require.NoError(t, err)
		id := extractActionID(frame)
		server.send("Response: Error\r\nActionID: " + id + "\r\nMessage: No such command\r\n\r\n")
	}()

	_, err := Command(context.Background(), c, "bogus")
	require.Error(t, err)
	var cmdErr commandError
	require.ErrorAs(t, err, &cmdErr)
}
