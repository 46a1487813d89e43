package chainclient

import (
	"net/url"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/gorilla/websocket"
)

// keepaliveProber pings a ws/wss archive-node endpoint on an interval,
// independent of the JSON-RPC request/response path (which stays on
// go-ethereum's own rpc.Client). It exists only to notice a dead
// connection between RPC calls and trigger Client's bounded reconnect
// loop promptly, rather than waiting for the next caller to time out.
//
// For non-websocket endpoints (http/https archive nodes) the prober is a
// no-op: there is no persistent connection to keep alive.
type keepaliveProber struct {
	endpoint string
	onDead   func()

	mu     sync.Mutex
	conn   *websocket.Conn
	stopCh chan struct{}
}

func newKeepaliveProber(endpoint string, onDead func()) *keepaliveProber {
	p := &keepaliveProber{endpoint: endpoint, onDead: onDead, stopCh: make(chan struct{})}
	if isWebsocketEndpoint(endpoint) {
		go p.run()
	}
	return p
}

func isWebsocketEndpoint(endpoint string) bool {
	u, err := url.Parse(endpoint)
	if err != nil {
		return false
	}
	return u.Scheme == "ws" || u.Scheme == "wss"
}

const keepaliveInterval = 30 * time.Second

func (p *keepaliveProber) run() {
	ticker := time.NewTicker(keepaliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			if err := p.ping(); err != nil {
				log.Warn("chainclient: keepalive ping failed", "endpoint", p.endpoint, "error", err)
				p.onDead()
			}
		}
	}
}

func (p *keepaliveProber) ping() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn == nil {
		conn, _, err := websocket.DefaultDialer.Dial(p.endpoint, nil)
		if err != nil {
			return err
		}
		p.conn = conn
	}

	p.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return p.conn.WriteMessage(websocket.PingMessage, nil)
}

func (p *keepaliveProber) stop() {
	select {
	case <-p.stopCh:
	default:
		close(p.stopCh)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn != nil {
		p.conn.Close()
		p.conn = nil
	}
}
