package gateway

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/hertz-contrib/websocket"
	"github.com/parley-im/parley/pkg/jwt"
	"github.com/rs/zerolog/log"
)

// HandleHertzConnection handles a WebSocket connection from Hertz using
// hertz-contrib/websocket
func (s *WsServer) HandleHertzConnection(ctx context.Context, c *app.RequestContext, upgrader *websocket.HertzUpgrader) {
	if s.onlineConnNum.Load() >= s.maxConnNum {
		c.String(503, "connection limit exceeded")
		return
	}

	token := string(c.Query(QueryToken))
	if token == "" {
		c.String(400, "missing token")
		return
	}

	claims, err := jwt.ParseToken(token, s.cfg.JWT.Secret)
	if err != nil {
		log.Debug().Err(err).Msg("token validation failed")
		c.String(401, "unauthorized")
		return
	}

	err = upgrader.Upgrade(c, func(conn *websocket.Conn) {
		wsConn := NewHertzClientConn(conn, s.cfg.WebSocket.MaxMessageSize, s.cfg.WebSocket.WriteChannelSize, PongWait, PingPeriod)
		client := s.attachClient(ctx, wsConn, claims)

		// Blocking: the hertz handler owns the connection lifetime
		client.readLoop()
	})
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
	}
}
