// Package settings applies an administrator's settings-form submission.
package settings

import (
	"iplogin/allowlist"
	"iplogin/secretkey"
)

// Submission is a verified settings form post.
type Submission struct {
	AllowedIPs  string
	SecretKey   string
	AdminEmails []string
	// Actor is the email of the administrator who submitted the form.
	Actor string
}

type Outcome struct {
	AllowedIPs []string
	KeyChange  secretkey.Result
}

type Service struct {
	list *allowlist.Engine
	keys *secretkey.Manager
}

func NewService(list *allowlist.Engine, keys *secretkey.Manager) *Service {
	return &Service{list: list, keys: keys}
}

// Apply always overwrites the allow-list, then attempts the key change. The
// two are independent: a locked key does not block the allow-list update.
func (s *Service) Apply(sub Submission) (Outcome, error) {
	ips, err := s.list.Replace(sub.AllowedIPs)
	if err != nil {
		return Outcome{}, err
	}
	res, err := s.keys.SubmitKeyChange(sub.SecretKey, sub.AdminEmails, sub.Actor)
	if err != nil {
		return Outcome{AllowedIPs: ips}, err
	}
	return Outcome{AllowedIPs: ips, KeyChange: res}, nil
}
