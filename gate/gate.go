// Package gate decides, once per request, whether a request may proceed to
// the login page or the admin area, and handles self-whitelisting through
// the secret key.
package gate

import (
	"errors"
	"fmt"

	"iplogin/allowlist"
	"iplogin/options"
)

// ErrAuthorizationDenied is attached to decisions that turn a visitor away
// from a gated resource.
var ErrAuthorizationDenied = errors.New("ip not on allow-list")

// Target classifies the requested resource. The host computes it once per
// request.
type Target int

const (
	Other Target = iota
	FrontPage
	Async
	Login
	Admin
)

func (t Target) String() string {
	switch t {
	case FrontPage:
		return "front-page"
	case Async:
		return "async"
	case Login:
		return "login"
	case Admin:
		return "admin"
	default:
		return "other"
	}
}

// Gated reports whether the target is IP restricted.
func (t Target) Gated() bool {
	return t == Login || t == Admin
}

type Action int

const (
	Allow Action = iota
	RedirectToLogin
	RedirectToHome
)

func (a Action) String() string {
	switch a {
	case RedirectToLogin:
		return "redirect-login"
	case RedirectToHome:
		return "redirect-home"
	default:
		return "allow"
	}
}

type Request struct {
	IP       string
	Target   Target
	QueryKey string
}

type Decision struct {
	Action Action
	// Whitelisted is set when the request presented the secret key and the
	// IP was newly added to the allow-list.
	Whitelisted bool
	Reason      error
}

type Gate struct {
	store options.Store
	list  *allowlist.Engine
}

func New(store options.Store) *Gate {
	return &Gate{store: store, list: allowlist.NewEngine(store)}
}

// Evaluate runs the access checks in order. Only store failures are returned
// as errors; a denial is a Decision.
func (g *Gate) Evaluate(req Request) (Decision, error) {
	allowed, err := g.list.Load()
	if err != nil {
		return Decision{}, err
	}
	secret, err := g.store.Get(options.SecretKey, "")
	if err != nil {
		return Decision{}, fmt.Errorf("failed to read secret key: %w", err)
	}

	// An empty secret never matches because the query key must be non-empty.
	if req.QueryKey != "" && req.QueryKey == secret {
		d := Decision{Action: RedirectToLogin}
		if req.IP == "" {
			return d, nil
		}
		updated := allowlist.Append(allowed, req.IP)
		if len(updated) != len(allowed) {
			if err := g.list.Save(updated); err != nil {
				return Decision{}, err
			}
			d.Whitelisted = true
		}
		return d, nil
	}

	if req.Target == FrontPage || req.Target == Async {
		return Decision{Action: Allow}, nil
	}

	if !allowlist.Contains(allowed, req.IP) && req.Target.Gated() {
		return Decision{Action: RedirectToHome, Reason: ErrAuthorizationDenied}, nil
	}

	return Decision{Action: Allow}, nil
}
