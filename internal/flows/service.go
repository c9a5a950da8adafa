package flows

import (
	"context"

	"github.com/MrEthical07/goMormot/session"
)

// Service is the centralized flow runner built once by the root client.
type Service struct {
	deps Deps
}

// New returns a flow service with immutable dependency wiring.
func New(deps Deps) Service {
	return Service{deps: deps}
}

// Initialized reports whether the service has been wired with flow deps.
func (s Service) Initialized() bool {
	return s.deps.Login.FetchTimestamp != nil && s.deps.Logout.SendLogout != nil
}

func (s Service) Login(ctx context.Context, req LoginRequest) (session.State, error) {
	return RunLogin(ctx, req, s.deps.Login)
}

func (s Service) Logout(ctx context.Context) error {
	return RunLogout(ctx, s.deps.Logout)
}
