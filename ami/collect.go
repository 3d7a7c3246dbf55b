package ami

import (
	"context"
	"strings"
)

// CollectList runs a list-producing action (SIPPeers, ConfbridgeList, and
// similar) and gathers the Event frames Asterisk tags with the action's
// ActionID, stopping once the matching complete event fires (by name, or
// by "EventList: Complete"). completeEvent may be empty to rely solely on
// EventList. Frames carrying "EventList: start" and the complete event
// itself are not included in the result.
//
// The action's own Response is consumed by Publish itself; the Event
// frames that follow, sharing its ActionID, arrive on the subscriber side
// instead, which is why this subscribes before publishing the action.
func CollectList(ctx context.Context, c *Client, action Message, completeEvent string) ([]Message, error) {
	id, ok := action.ActionID()
	if !ok || id == "" {
		return nil, ErrArgument
	}

	sub := NewChannelSubscriber(c.queueDepth, nil)
	if _, err := c.Subscribe(sub); err != nil {
		return nil, err
	}
	defer c.Unsubscribe(sub)

	resp, err := c.Publish(ctx, action)
	if err != nil {
		return nil, err
	}
	if err := responseOK(resp); err != nil {
		return nil, err
	}

	var out []Message
	for {
		select {
		case msg, ok := <-sub.Events():
			if !ok {
				return out, sub.Err()
			}
			msgID, _ := msg.ActionID()
			if !strings.EqualFold(msgID, id) {
				continue
			}

			evList, _ := msg.Get("EventList")
			if strings.EqualFold(evList, "start") {
				continue
			}

			ev, _ := msg.Get("Event")
			if strings.EqualFold(evList, "Complete") ||
				(completeEvent != "" && strings.EqualFold(ev, completeEvent)) {
				return out, nil
			}

			out = append(out, msg)
		case <-ctx.Done():
			return out, ctx.Err()
		}
	}
}

// Command runs an Asterisk CLI command via the AMI Command action and
// returns its output joined by newlines. A Command response arrives as
// "Response: Follows" followed by one Output field per output line and a
// trailing "--END COMMAND--" sentinel line, which this reassembles into a
// single string.
func Command(ctx context.Context, c *Client, cliCommand string) (string, error) {
	resp, err := c.Publish(ctx, NewMessage(
		Field{Key: "Action", Value: "Command"},
		Field{Key: "Command", Value: cliCommand},
	))
	if err != nil {
		return "", err
	}

	status, _ := resp.Get("Response")
	if strings.EqualFold(status, "Error") {
		msg, _ := resp.Get("Message")
		return "", errCommandFailed(msg)
	}

	var lines []string
	for _, f := range resp.Fields {
		if strings.EqualFold(f.Key, "Output") {
			lines = append(lines, f.Value)
		}
	}
	return strings.Join(lines, "\n"), nil
}

type commandError string

func (e commandError) Error() string { return "ami: command failed: " + string(e) }

func errCommandFailed(msg string) error { return commandError(msg) }
