package ami

import (
	"context"
	"fmt"
	"strings"
)

// OriginateRequest places a call. It covers AMI's two Originate shapes in
// one struct: set Context/Exten/Priority to send the call into the
// dialplan, or Application/Data to connect it directly to an application.
type OriginateRequest struct {
	Channel     string
	Context     string
	Exten       string
	Priority    string
	Application string
	Data        string
	Timeout     string // milliseconds; "30000" if empty
	CallerID    string
	Account     string
	Async       bool
	Variables   map[string]string
}

const defaultOriginateTimeoutMS = "30000"

// Originate places a call per req, blocking for the AMI response (which,
// for Async requests, only confirms the request was accepted — the call's
// actual outcome arrives as an OriginateResponse event to subscribers).
func Originate(ctx context.Context, c *Client, req OriginateRequest) (Message, error) {
	fields := []Field{
		{Key: "Action", Value: "Originate"},
		{Key: "Channel", Value: req.Channel},
	}

	if req.Context != "" {
		fields = append(fields,
			Field{Key: "Context", Value: req.Context},
			Field{Key: "Exten", Value: req.Exten},
			Field{Key: "Priority", Value: req.Priority},
		)
	} else {
		fields = append(fields,
			Field{Key: "Application", Value: req.Application},
			Field{Key: "Data", Value: req.Data},
		)
	}

	timeout := req.Timeout
	if timeout == "" {
		timeout = defaultOriginateTimeoutMS
	}
	fields = append(fields, Field{Key: "Timeout", Value: timeout})

	if req.CallerID != "" {
		fields = append(fields, Field{Key: "CallerID", Value: req.CallerID})
	}
	if req.Account != "" {
		fields = append(fields, Field{Key: "Account", Value: req.Account})
	}
	if req.Async {
		fields = append(fields, Field{Key: "Async", Value: "true"})
	}
	if len(req.Variables) > 0 {
		var pairs []string
		for k, v := range req.Variables {
			pairs = append(pairs, fmt.Sprintf("%s=%s", k, v))
		}
		fields = append(fields, Field{Key: "Variable", Value: strings.Join(pairs, ",")})
	}

	return c.Publish(ctx, NewMessage(fields...))
}

// Hangup terminates channel.
func Hangup(ctx context.Context, c *Client, channel string) (Message, error) {
	return c.Publish(ctx, NewMessage(
		Field{Key: "Action", Value: "Hangup"},
		Field{Key: "Channel", Value: channel},
	))
}

// Redirect moves channel to a different dialplan location.
func Redirect(ctx context.Context, c *Client, channel, context_, exten, priority string) (Message, error) {
	return c.Publish(ctx, NewMessage(
		Field{Key: "Action", Value: "Redirect"},
		Field{Key: "Channel", Value: channel},
		Field{Key: "Context", Value: context_},
		Field{Key: "Exten", Value: exten},
		Field{Key: "Priority", Value: priority},
	))
}
