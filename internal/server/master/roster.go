package master

import (
	"sort"

	"github.com/iudanet/gophreview/internal/models"
	"github.com/iudanet/gophreview/pkg/api"
)

// member запись ростера: сведения о пире и его соединение
type member struct {
	conn *conn
	peer models.Peer
}

// roster арена пиров мастера, ключ - peerId.
// Не потокобезопасна: все обращения идут под мьютексом мастера.
type roster struct {
	members map[string]*member
}

func newRoster() *roster {
	return &roster{members: make(map[string]*member)}
}

// add регистрирует пира и возвращает вытесненную запись с тем же peerId
func (r *roster) add(peer models.Peer, c *conn) (replaced *member) {
	replaced = r.members[peer.PeerID]
	r.members[peer.PeerID] = &member{peer: peer, conn: c}
	return replaced
}

// remove удаляет пира, только если запись принадлежит соединению c.
// Старое соединение, вытесненное новым, не должно удалять чужую запись.
func (r *roster) remove(peerID string, c *conn) (models.Peer, bool) {
	m, ok := r.members[peerID]
	if !ok || m.conn != c {
		return models.Peer{}, false
	}
	delete(r.members, peerID)
	return m.peer, true
}

func (r *roster) get(peerID string) (*member, bool) {
	m, ok := r.members[peerID]
	return m, ok
}

func (r *roster) setRole(peerID string, role models.Role) bool {
	m, ok := r.members[peerID]
	if !ok {
		return false
	}
	m.peer.Role = role
	return true
}

func (r *roster) len() int {
	return len(r.members)
}

// list возвращает пиров в порядке подключения
func (r *roster) list() []models.Peer {
	out := make([]models.Peer, 0, len(r.members))
	for _, m := range r.members {
		out = append(out, m.peer)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ConnectedAt.Equal(out[j].ConnectedAt) {
			return out[i].ConnectedAt.Before(out[j].ConnectedAt)
		}
		return out[i].PeerID < out[j].PeerID
	})
	return out
}

func (r *roster) conns() []*conn {
	out := make([]*conn, 0, len(r.members))
	for _, m := range r.members {
		out = append(out, m.conn)
	}
	return out
}

func (r *roster) peerInfos() []api.PeerInfo {
	peers := r.list()
	out := make([]api.PeerInfo, 0, len(peers))
	for _, p := range peers {
		out = append(out, api.PeerInfo{
			PeerID:      p.PeerID,
			Name:        p.Name,
			Role:        p.Role,
			ConnectedAt: p.ConnectedAt.UnixMilli(),
		})
	}
	return out
}
