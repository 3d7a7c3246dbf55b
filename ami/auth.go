package ami

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
)

// Login authenticates against an already-Started Client: plain Secret
// auth, or the MD5 challenge exchange when useMD5 is set. Login and
// Logoff are ordinary callers of Publish — no privileged access to the
// core.
func Login(ctx context.Context, c *Client, user, secret string, useMD5 bool) error {
	if useMD5 {
		return loginMD5(ctx, c, user, secret)
	}

	resp, err := c.Publish(ctx, NewMessage(
		Field{Key: "Action", Value: "Login"},
		Field{Key: "Username", Value: user},
		Field{Key: "Secret", Value: secret},
	))
	if err != nil {
		return err
	}
	return responseOK(resp)
}

func loginMD5(ctx context.Context, c *Client, user, secret string) error {
	challengeResp, err := c.Publish(ctx, NewMessage(
		Field{Key: "Action", Value: "Challenge"},
		Field{Key: "AuthType", Value: "MD5"},
	))
	if err != nil {
		return err
	}
	if err := responseOK(challengeResp); err != nil {
		return fmt.Errorf("ami: challenge: %w", err)
	}

	challenge, _ := challengeResp.Get("Challenge")
	sum := md5.Sum([]byte(challenge + secret))
	key := hex.EncodeToString(sum[:])

	loginResp, err := c.Publish(ctx, NewMessage(
		Field{Key: "Action", Value: "Login"},
		Field{Key: "AuthType", Value: "MD5"},
		Field{Key: "Username", Value: user},
		Field{Key: "Key", Value: key},
	))
	if err != nil {
		return err
	}
	return responseOK(loginResp)
}

// Logoff ends the AMI session. It does not Stop the client or close the
// transport; callers do that separately.
func Logoff(ctx context.Context, c *Client) error {
	resp, err := c.Publish(ctx, NewMessage(Field{Key: "Action", Value: "Logoff"}))
	if err != nil {
		return err
	}
	val, _ := resp.Get("Response")
	if !strings.EqualFold(val, "Goodbye") {
		msg, _ := resp.Get("Message")
		return fmt.Errorf("ami: logoff failed: %s", msg)
	}
	return nil
}

func responseOK(m Message) error {
	val, _ := m.Get("Response")
	if strings.EqualFold(val, "Success") {
		return nil
	}
	msg, _ := m.Get("Message")
	return fmt.Errorf("ami: %s", msg)
}
