package security

import (
	"crypto/subtle"
	"strings"
)

// Client is an operator or back-office service allowed to call the /v1 API.
type Client struct {
	ID      string
	Secret  string
	Perms   []string // e.g. {"orders.read","orders.write"}
	Enabled bool
}

// Clients is the registry of operator clients, loaded from configuration.
type Clients map[string]Client

func NewClients(list []Client) Clients {
	out := make(Clients, len(list))
	for _, c := range list {
		id := strings.TrimSpace(c.ID)
		if id == "" || c.Secret == "" {
			continue
		}
		c.ID = id
		out[id] = c
	}
	return out
}

// Authenticate checks the client credentials in constant time.
func (cs Clients) Authenticate(id, secret string) (Client, bool) {
	cl, ok := cs[id]
	if !ok || !cl.Enabled {
		return Client{}, false
	}
	if subtle.ConstantTimeCompare([]byte(secret), []byte(cl.Secret)) != 1 {
		return Client{}, false
	}
	return cl, true
}
