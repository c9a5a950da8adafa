package goMormot

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/MrEthical07/goMormot/internal/flows"
	"github.com/MrEthical07/goMormot/session"
	"github.com/MrEthical07/goMormot/transport"
)

var errMissingResult = errors.New(`response has no string "result" member`)

func (c *Client) flowDeps() flows.Deps {
	audit := func(ctx context.Context, event string, success bool, user, sessionID string, err error) {
		c.emitAudit(ctx, event, success, user, sessionID, err)
	}
	metric := func(id int) {
		c.metricInc(MetricID(id))
	}

	return flows.Deps{
		Login: flows.LoginDeps{
			Salt:              c.config.Salt,
			RootModel:         c.config.RootModel,
			Latin1:            c.config.Latin1Digest,
			Now:               c.now,
			FetchTimestamp:    c.fetchTimestamp,
			FetchChallenge:    c.fetchChallenge,
			SubmitCredentials: c.submitCredentials,
			Commit:            c.machine.Commit,
			MetricInc:         metric,
			EmitAudit:         audit,
			Metrics: flows.LoginMetrics{
				LoginSuccess: int(MetricLoginSuccess),
				LoginFailure: int(MetricLoginFailure),
			},
			Events: flows.LoginEvents{
				LoginSuccess: AuditEventLoginSuccess,
				LoginFailure: AuditEventLoginFailure,
			},
			Errors: flows.LoginErrors{
				NotReady:      ErrClientNotReady,
				EmptyUserName: ErrEmptyUserName,
				Protocol:      protocolError,
			},
		},
		Logout: flows.LogoutDeps{
			Snapshot:   c.machine.Snapshot,
			SendLogout: c.sendLogout,
			ResetIf:    c.machine.ResetIf,
			Forget:     c.forgetSession,
			Warn: func(msg string, err error) {
				c.logger.WithError(err).Warn(msg)
			},
			MetricInc: metric,
			EmitAudit: audit,
			Metrics: flows.LogoutMetrics{
				LogoutSuccess: int(MetricLogoutSuccess),
				LogoutFailure: int(MetricLogoutFailure),
			},
			Events: flows.LogoutEvents{
				LogoutSuccess: AuditEventLogoutSuccess,
				LogoutFailure: AuditEventLogoutFailure,
			},
			NotReady: ErrClientNotReady,
		},
	}
}

func (c *Client) rootURL(pathAndQuery string) string {
	return c.baseURL + c.config.RootModel + "/" + pathAndQuery
}

func (c *Client) fetchTimestamp(ctx context.Context) (string, error) {
	c.metricInc(MetricRequestUnsigned)
	resp, err := c.send(ctx, &transport.Request{
		Method: transport.MethodPost,
		URL:    c.rootURL("timestamp"),
	})
	if err != nil {
		return "", err
	}
	if raw, ok := resp.Result(); ok {
		return string(raw), nil
	}
	return resp.Text(), nil
}

func (c *Client) fetchChallenge(ctx context.Context, user string) (string, error) {
	c.metricInc(MetricRequestUnsigned)
	resp, err := c.send(ctx, &transport.Request{
		Method: transport.MethodGet,
		URL:    c.rootURL("Auth?" + NewParams("UserName", user).Encode()),
	})
	if err != nil {
		return "", err
	}
	seed, err := stringResult(resp)
	if err != nil {
		return "", protocolError(flows.StepChallenge, err)
	}
	return seed, nil
}

func (c *Client) submitCredentials(ctx context.Context, user, password, clientNonce string) (flows.CredentialsResult, error) {
	c.metricInc(MetricRequestUnsigned)
	query := NewParams(
		"UserName", user,
		"Password", password,
		"ClientNonce", clientNonce,
	).Encode()
	resp, err := c.send(ctx, &transport.Request{
		Method: transport.MethodGet,
		URL:    c.rootURL("Auth?" + query),
	})
	if err != nil {
		return flows.CredentialsResult{}, err
	}
	result, err := stringResult(resp)
	if err != nil {
		return flows.CredentialsResult{}, protocolError(flows.StepCredentials, err)
	}
	return flows.CredentialsResult{Result: result, Raw: resp.Body}, nil
}

func (c *Client) sendLogout(ctx context.Context, st session.State) error {
	c.metricInc(MetricRequestSigned)
	path := c.config.RootModel + "/Auth?" + NewParams(
		"UserName", st.UserName,
		"Session", strconv.FormatUint(uint64(st.SessionID), 10),
	).Encode()
	_, err := c.send(ctx, &transport.Request{
		Method: transport.MethodGet,
		URL:    c.baseURL + signState(path, st, c.now()),
	})
	if err != nil {
		return err
	}
	c.logger.WithField("session", st.SessionIDHex8).Info("logged out")
	return nil
}

func (c *Client) forgetSession(ctx context.Context, _ session.State) error {
	if c.store == nil {
		return nil
	}
	if err := c.store.Delete(ctx, c.config.Session.Key); err != nil {
		c.metricInc(MetricSessionPersistFailure)
		return err
	}
	return nil
}

func stringResult(resp *transport.Response) (string, error) {
	raw, ok := resp.Result()
	if !ok {
		return "", errMissingResult
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", errMissingResult
	}
	return s, nil
}
