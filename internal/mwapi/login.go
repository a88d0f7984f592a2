package mwapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"
)

// Login authenticates the session with a bot password. The session cookie
// ends up in the httpds client's cookie jar, so every later Request made
// through the same client is authenticated.
//
// The login token is fetched with meta=tokens; wikis too old to know
// type=login fall back to the two-step action=login handshake.
func (c *Client) Login(ctx context.Context, user, pass string) error {
	if user == "" {
		return errors.New("mwapi: login: empty username")
	}

	token, err := c.loginToken(ctx)
	if err != nil {
		return err
	}

	doc, err := c.Request(ctx, http.MethodPost, Params{
		"action":     "login",
		"lgname":     user,
		"lgpassword": pass,
		"lgtoken":    token,
	})
	if err != nil {
		return fmt.Errorf("mwapi: login: %w", err)
	}

	res := asMap(doc["login"])
	result := str(res["result"])

	if result == "NeedToken" && token == "" {
		// Legacy handshake: the first action=login hands out the token.
		token = str(res["token"])
		if token == "" {
			return &LoginError{User: user, Result: result, Reason: "no token in NeedToken response"}
		}
		if doc, err = c.Request(ctx, http.MethodPost, Params{
			"action":     "login",
			"lgname":     user,
			"lgpassword": pass,
			"lgtoken":    token,
		}); err != nil {
			return fmt.Errorf("mwapi: login: %w", err)
		}
		res = asMap(doc["login"])
		result = str(res["result"])
	}

	if result != "Success" {
		return &LoginError{User: user, Result: result, Reason: str(res["reason"])}
	}

	logrus.WithField("user", str(res["lgusername"])).Info("mwapi: logged in")
	return nil
}

// loginToken returns an empty token when the wiki does not support
// meta=tokens&type=login.
func (c *Client) loginToken(ctx context.Context) (string, error) {
	doc, err := c.Request(ctx, http.MethodGet, Params{
		"action": "query",
		"meta":   "tokens",
		"type":   "login",
	})
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			logrus.WithField("code", apiErr.Code).Debug("mwapi: meta=tokens unsupported, using legacy login")
			return "", nil
		}
		return "", fmt.Errorf("mwapi: login token: %w", err)
	}
	tokens := asMap(asMap(doc["query"])["tokens"])
	return str(tokens["logintoken"]), nil
}
