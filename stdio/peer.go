package stdio

import (
	"log/slog"
	"os/user"
	"sync"
)

// osUser names the local account for the session label. Nothing is
// authorized with it.
func osUser() (string, error) {
	u, err := user.Current()
	if err != nil {
		return "", err
	}
	if u.Username != "" {
		return u.Username, nil
	}
	return u.Uid, nil
}

// stdioPeer is the single implicit session of a stdio connection.
type stdioPeer struct {
	id string

	mu              sync.Mutex
	clientName      string
	protocolVersion string
}

// newPeer labels the session after the local user, or plain "stdio" when
// the user cannot be resolved.
func newPeer(lookup func() (string, error)) *stdioPeer {
	id := "stdio"
	if lookup != nil {
		if uid, err := lookup(); err == nil && uid != "" {
			id = "stdio:" + uid
		}
	}
	return &stdioPeer{id: id}
}

func (p *stdioPeer) SessionID() string { return p.id }

func (p *stdioPeer) SetClient(name, protocolVersion string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clientName = name
	p.protocolVersion = protocolVersion
}

// clientAttrs describes the client recorded during initialize.
func (p *stdioPeer) clientAttrs() []any {
	p.mu.Lock()
	defer p.mu.Unlock()
	return []any{
		slog.String("client", p.clientName),
		slog.String("protocol_version", p.protocolVersion),
	}
}
