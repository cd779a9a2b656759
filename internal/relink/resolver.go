package relink

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/julianfbeck/panopto-relink-cli/internal/config"
	"github.com/julianfbeck/panopto-relink-cli/internal/panopto"
)

// SessionService is the remote side of a lookup.
type SessionService interface {
	ListGroupsByName(ctx context.Context, cred panopto.Credential, groupName string) ([]panopto.Group, error)
	GetGroupAccessDetails(ctx context.Context, cred panopto.Credential, groupID string) (*panopto.AccessDetails, error)
	GetSessionsByID(ctx context.Context, cred panopto.Credential, sessionIDs []string) ([]panopto.Session, error)
}

// ServiceFactory returns the service for a selected instance.
type ServiceFactory func(inst config.Instance) SessionService

// Outcome describes one finished lookup; Resolver reports it to OnOutcome.
type Outcome struct {
	RequestID string
	Group     string
	Instance  config.Instance
	Session   *panopto.Session
	Err       error
}

type Resolver struct {
	instances []config.Instance
	userKey   string
	sign      panopto.Signer
	services  ServiceFactory
	log       zerolog.Logger

	// OnOutcome, when set, is called after every lookup.
	OnOutcome func(Outcome)
}

func NewResolver(instances []config.Instance, userKey string, services ServiceFactory, log zerolog.Logger) *Resolver {
	return &Resolver{
		instances: instances,
		userKey:   userKey,
		sign:      panopto.SignSHA1,
		services:  services,
		log:       log,
	}
}

// WithSigner replaces the auth code signer.
func (r *Resolver) WithSigner(sign panopto.Signer) *Resolver {
	r.sign = sign
	return r
}

// Resolve finds the session an externally provisioned group can view.
// A nil session with a nil error means no session was found. groupName is
// matched exactly as given; a blank name fails with ErrEmptyGroupName.
func (r *Resolver) Resolve(ctx context.Context, groupName string) (*panopto.Session, error) {
	if strings.TrimSpace(groupName) == "" {
		return nil, ErrEmptyGroupName
	}
	out := Outcome{RequestID: uuid.NewString(), Group: groupName}
	out.Instance, out.Session, out.Err = r.resolve(ctx, groupName)
	r.report(out)
	return out.Session, out.Err
}

func (r *Resolver) resolve(ctx context.Context, groupName string) (config.Instance, *panopto.Session, error) {
	inst, err := config.Select(r.instances)
	if err != nil {
		return inst, nil, &Error{Kind: KindConfigurationMissing, Group: groupName, Err: err}
	}
	if inst.Overflow {
		r.log.Warn().
			Int("slot", inst.Slot).
			Str("server", inst.ServerName).
			Msg("using instance slot past the configured server count")
	}

	cred := panopto.NewCredential(r.userKey, config.ServerHost(inst.ServerName), inst.ApplicationKey, r.sign)
	svc := r.services(inst)

	groups, err := svc.ListGroupsByName(ctx, cred, groupName)
	if err != nil {
		return inst, nil, wrap(groupName, err)
	}
	group, ok := externalGroup(groups, groupName)
	if !ok {
		return inst, nil, nil
	}

	details, err := svc.GetGroupAccessDetails(ctx, cred, group.ID)
	if err != nil {
		return inst, nil, wrap(groupName, err)
	}
	if details == nil || len(details.SessionGUIDs) == 0 {
		return inst, nil, nil
	}

	sessions, err := svc.GetSessionsByID(ctx, cred, details.SessionGUIDs)
	if err != nil {
		return inst, nil, wrap(groupName, err)
	}
	if len(sessions) == 0 {
		return inst, nil, nil
	}
	session := sessions[0]
	return inst, &session, nil
}

func (r *Resolver) report(out Outcome) {
	var ev *zerolog.Event
	switch {
	case out.Err != nil:
		ev = r.log.Error().Err(out.Err).Str("kind", KindOf(out.Err).String())
	case out.Session != nil:
		ev = r.log.Debug().Str("session_id", out.Session.ID)
	default:
		ev = r.log.Debug()
	}
	ev.Str("request_id", out.RequestID).
		Str("group", out.Group).
		Str("server", out.Instance.ServerName).
		Bool("found", out.Session != nil).
		Msg("session lookup")

	if r.OnOutcome != nil {
		r.OnOutcome(out)
	}
}

// externalGroup picks the first External group whose name matches exactly.
func externalGroup(groups []panopto.Group, name string) (panopto.Group, bool) {
	for _, g := range groups {
		if g.Type == panopto.GroupTypeExternal && g.Name == name {
			return g, true
		}
	}
	return panopto.Group{}, false
}
