package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/iliyamo/hiring-negotiation/internal/apperr"
	"github.com/iliyamo/hiring-negotiation/internal/hiring"
	"github.com/iliyamo/hiring-negotiation/internal/middleware"
	"github.com/iliyamo/hiring-negotiation/internal/model"
	"github.com/iliyamo/hiring-negotiation/internal/realtime"
	"github.com/iliyamo/hiring-negotiation/internal/service"
	"github.com/iliyamo/hiring-negotiation/internal/utils"
	"github.com/iliyamo/hiring-negotiation/internal/worker"
	"github.com/iliyamo/hiring-negotiation/pkg/protocol"
)

// Authenticator resolves a credential to a user id.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (string, error)
}

// JWTAuthenticator accepts HS256 access tokens signed with Secret.
type JWTAuthenticator struct {
	Secret string
}

func (a JWTAuthenticator) Authenticate(_ context.Context, token string) (string, error) {
	sub, err := utils.ParseAccessToken(a.Secret, token)
	if err != nil {
		return "", apperr.ErrInvalidToken
	}
	return sub, nil
}

// Negotiator is the set of client actions the gateway can run.
type Negotiator interface {
	CreateRequest(ctx context.Context, clientID string, draft service.RequestDraft) (model.HiringRequest, error)
	SubmitResponse(ctx context.Context, artistID, requestID string, draft service.ResponseDraft) (model.HiringResponse, error)
	AcceptResponse(ctx context.Context, clientID, requestID, responseID string) (hiring.Outcome, error)
	RejectResponse(ctx context.Context, clientID, requestID, responseID string) (model.HiringResponse, error)
	CloseRequest(ctx context.Context, clientID, requestID string) (hiring.Outcome, error)
}

// GatewayOptions tunes the websocket gateway.
type GatewayOptions struct {
	Conn          realtime.ConnOptions
	SubmitTimeout time.Duration // how long an action may wait for a free worker
	ActionTimeout time.Duration // upper bound for one action
}

// Gateway terminates websocket connections.  The read loop handles
// authentication, subscriptions and pings itself and hands domain actions
// to the worker pool, replying with ack or error frames that echo the
// action's ref.
type Gateway struct {
	reg      *realtime.Registry
	svc      Negotiator
	auth     Authenticator
	pool     *worker.Pool
	limiter  *middleware.TokenBucket
	opts     GatewayOptions
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

func NewGateway(reg *realtime.Registry, svc Negotiator, auth Authenticator, pool *worker.Pool,
	limiter *middleware.TokenBucket, opts GatewayOptions, log zerolog.Logger) *Gateway {
	if opts.SubmitTimeout <= 0 {
		opts.SubmitTimeout = 5 * time.Second
	}
	if opts.ActionTimeout <= 0 {
		opts.ActionTimeout = 15 * time.Second
	}
	return &Gateway{
		reg:     reg,
		svc:     svc,
		auth:    auth,
		pool:    pool,
		limiter: limiter,
		opts:    opts,
		log:     log.With().Str("component", "gateway").Logger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Handle upgrades the request and serves the connection until it closes.
func (g *Gateway) Handle(c echo.Context) error {
	ws, err := g.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		g.log.Debug().Err(err).Msg("upgrade failed")
		return nil
	}
	conn := realtime.NewConn(uuid.NewString(), ws, g.opts.Conn, g.log)
	g.reg.Register(conn.ID(), conn)
	go conn.WritePump()
	g.log.Debug().Str("conn_id", conn.ID()).Str("remote", c.RealIP()).Msg("connection opened")

	g.serve(c.Request().Context(), conn)
	return nil
}

func (g *Gateway) serve(ctx context.Context, conn *realtime.Conn) {
	defer func() {
		g.reg.Evict(conn)
		_ = conn.Close()
		g.log.Debug().Str("conn_id", conn.ID()).Msg("connection closed")
	}()
	for {
		data, err := conn.ReadFrame()
		if err != nil {
			return
		}
		g.reg.Touch(conn.ID())

		env, err := protocol.Decode(data)
		if err != nil {
			msg := apperr.ErrMalformedMessage
			if errors.Is(err, protocol.ErrUnknownType) {
				msg = msg.WithMessage(err.Error())
			}
			g.replyError(conn, env.Ref, msg)
			continue
		}
		g.route(ctx, conn, env)
	}
}

func (g *Gateway) route(ctx context.Context, conn *realtime.Conn, env protocol.Envelope) {
	switch m := env.Message.(type) {
	case protocol.Ping:
		g.reply(conn, env.Ref, protocol.Pong{})
	case protocol.Auth:
		g.handleAuth(ctx, conn, env.Ref, m)
	case protocol.Subscribe:
		g.handleSubscribe(conn, env.Ref, m.Topic)
	case protocol.Unsubscribe:
		if err := g.reg.Unsubscribe(conn.ID(), m.Topic); err != nil {
			g.replyError(conn, env.Ref, err)
			return
		}
		g.reply(conn, env.Ref, protocol.Unsubscribed{Topic: m.Topic})
	case protocol.CreateRequest, protocol.SubmitResponse, protocol.AcceptResponse,
		protocol.RejectResponse, protocol.CloseRequest:
		g.submitAction(ctx, conn, env)
	default:
		g.replyError(conn, env.Ref, apperr.ErrMalformedMessage.WithMessage("message type not accepted from clients"))
	}
}

func (g *Gateway) handleAuth(ctx context.Context, conn *realtime.Conn, ref string, m protocol.Auth) {
	if m.Token == "" {
		g.replyError(conn, ref, apperr.ErrMissingField.WithMessage("token is required"))
		return
	}
	userID, err := g.auth.Authenticate(ctx, m.Token)
	if err != nil {
		g.replyError(conn, ref, err)
		return
	}
	if m.UserID != "" && m.UserID != userID {
		g.replyError(conn, ref, apperr.ErrInvalidToken.WithMessage("token does not belong to userId"))
		return
	}
	if err := g.reg.Authenticate(conn.ID(), userID); err != nil {
		g.replyError(conn, ref, err)
		return
	}
	if err := g.reg.Subscribe(conn.ID(), protocol.UserTopic(userID)); err != nil {
		g.replyError(conn, ref, err)
		return
	}
	g.log.Info().Str("conn_id", conn.ID()).Str("user_id", userID).Msg("connection authenticated")
	g.reply(conn, ref, protocol.AuthSuccess{UserID: userID})
}

func (g *Gateway) handleSubscribe(conn *realtime.Conn, ref string, topic protocol.Topic) {
	userID := g.reg.UserOf(conn.ID())
	if userID == "" {
		g.replyError(conn, ref, apperr.ErrUnauthenticated)
		return
	}
	kind, id, err := topic.Parse()
	if err != nil {
		g.replyError(conn, ref, apperr.ErrInvalidTopic)
		return
	}
	if kind == protocol.KindUser && id != userID {
		g.replyError(conn, ref, apperr.ErrForbidden.WithMessage("user topics are private"))
		return
	}
	if err := g.reg.Subscribe(conn.ID(), topic); err != nil {
		g.replyError(conn, ref, err)
		return
	}
	g.reply(conn, ref, protocol.Subscribed{Topic: topic})
}

// submitAction runs a domain action on the pool.  The job context outlives
// the connection so an action that was accepted always runs to completion.
func (g *Gateway) submitAction(ctx context.Context, conn *realtime.Conn, env protocol.Envelope) {
	userID := g.reg.UserOf(conn.ID())
	if userID == "" {
		g.replyError(conn, env.Ref, apperr.ErrUnauthenticated)
		return
	}

	waitCtx, cancel := context.WithTimeout(ctx, g.opts.SubmitTimeout)
	defer cancel()
	jobCtx := context.WithoutCancel(ctx)
	err := g.pool.Submit(waitCtx, jobCtx, func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, g.opts.ActionTimeout)
		defer cancel()

		if err := g.allow(ctx, userID); err != nil {
			g.replyError(conn, env.Ref, err)
			return
		}
		id, err := g.perform(ctx, userID, env.Message)
		if err != nil {
			g.replyError(conn, env.Ref, err)
			return
		}
		g.reply(conn, env.Ref, protocol.Ack{ID: id})
	})
	if err != nil {
		g.log.Warn().Err(err).Str("conn_id", conn.ID()).Msg("action not scheduled")
		g.replyError(conn, env.Ref, err)
	}
}

func (g *Gateway) allow(ctx context.Context, userID string) error {
	d, err := g.limiter.Allow(ctx, "ws:user:"+userID)
	if err != nil {
		g.log.Warn().Err(err).Str("user_id", userID).Msg("action limiter unavailable")
		return nil
	}
	if !d.Allowed {
		return apperr.ErrRateLimited
	}
	return nil
}

// perform executes msg for userID and returns the id of the record it
// created or changed.
func (g *Gateway) perform(ctx context.Context, userID string, msg protocol.Message) (string, error) {
	switch m := msg.(type) {
	case protocol.CreateRequest:
		req, err := g.svc.CreateRequest(ctx, userID, service.RequestDraft{
			CategoryID:        m.CategoryID,
			City:              m.City,
			EventDate:         m.EventDate,
			BudgetMin:         m.BudgetMin,
			BudgetMax:         m.BudgetMax,
			AdditionalDetails: m.AdditionalDetails,
		})
		return req.ID, err
	case protocol.SubmitResponse:
		if m.RequestID == "" {
			return "", apperr.ErrMissingField.WithMessage("requestId is required")
		}
		resp, err := g.svc.SubmitResponse(ctx, userID, m.RequestID, service.ResponseDraft{
			ResponseType:  model.ResponseType(m.ResponseType),
			ProposedPrice: m.ProposedPrice,
			Message:       m.Message,
		})
		return resp.ID, err
	case protocol.AcceptResponse:
		if m.RequestID == "" || m.ResponseID == "" {
			return "", apperr.ErrMissingField.WithMessage("requestId and responseId are required")
		}
		_, err := g.svc.AcceptResponse(ctx, userID, m.RequestID, m.ResponseID)
		return m.ResponseID, err
	case protocol.RejectResponse:
		if m.RequestID == "" || m.ResponseID == "" {
			return "", apperr.ErrMissingField.WithMessage("requestId and responseId are required")
		}
		_, err := g.svc.RejectResponse(ctx, userID, m.RequestID, m.ResponseID)
		return m.ResponseID, err
	case protocol.CloseRequest:
		if m.RequestID == "" {
			return "", apperr.ErrMissingField.WithMessage("requestId is required")
		}
		_, err := g.svc.CloseRequest(ctx, userID, m.RequestID)
		return m.RequestID, err
	}
	return "", apperr.ErrMalformedMessage
}

func (g *Gateway) reply(conn *realtime.Conn, ref string, msg protocol.Message) {
	if err := realtime.SendTo(conn, ref, msg); err != nil {
		g.log.Debug().Err(err).Str("conn_id", conn.ID()).Str("type", string(msg.Type())).Msg("reply dropped")
	}
}

func (g *Gateway) replyError(conn *realtime.Conn, ref string, err error) {
	frame, typed := errorFrame(err)
	if !typed {
		g.log.Error().Err(err).Str("conn_id", conn.ID()).Msg("action failed")
	}
	g.reply(conn, ref, frame)
}
