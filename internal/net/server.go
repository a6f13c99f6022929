// Package net is the TCP session front-end: it speaks the line-based
// JSON protocol described by the exchange's external interface and
// drives an embedded engine.MarketManager. None of the matching logic
// lives here; this package only ever calls the MarketManager's public
// API.
package net

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"matchbook/internal/engine"
	"matchbook/internal/utils"
)

const (
	maxRequestSize      = 1024
	defaultWorkers      = 10
	defaultReadDeadline = 30 * time.Second
)

var errImproperConversion = errors.New("improper type conversion")

// session tracks the registration state of one TCP connection.
type session struct {
	conn       net.Conn
	connID     uuid.UUID
	registered bool
	userID     uint64
}

// Server listens for exchange sessions and dispatches their requests
// against a shared MarketManager.
type Server struct {
	address string
	port    int
	market  *engine.MarketManager

	pool   utils.WorkerPool
	cancel context.CancelFunc

	// marketLock serializes every call into market. MarketManager is
	// not safe for concurrent use, but the worker pool drains
	// connections with several goroutines at once, so each request
	// dispatch takes this lock for the duration of its engine calls.
	marketLock sync.Mutex

	sessionsLock sync.Mutex
	sessions     map[string]*session
}

// New builds a Server bound to market. market should already have its
// symbols and order books registered; Server only adds users and orders.
func New(address string, port int, market *engine.MarketManager) *Server {
	return &Server{
		address:  address,
		port:     port,
		market:   market,
		pool:     utils.NewWorkerPool(defaultWorkers),
		sessions: make(map[string]*session),
	}
}

func (s *Server) Shutdown() {
	log.Info().Msg("server shutting down")
	if s.cancel != nil {
		s.cancel()
	}
}

// Run accepts connections until ctx is cancelled. Each connection is
// handed to the worker pool, one read-dispatch-write cycle per task;
// a connection that is still alive re-enqueues itself for its next
// message.
func (s *Server) Run(ctx context.Context) {
	defer s.Shutdown()

	ctx, s.cancel = context.WithCancel(ctx)
	t, ctx := tomb.WithContext(ctx)

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", fmt.Sprintf("%s:%d", s.address, s.port))
	if err != nil {
		log.Error().Err(err).Msg("unable to start listener")
		return
	}
	defer func() {
		if err := listener.Close(); err != nil {
			log.Error().Err(err).Msg("unable to close listener")
		}
	}()

	t.Go(func() error {
		s.pool.Setup(t, s.handleConnection)
		return nil
	})

	log.Info().Str("address", listener.Addr().String()).Msg("exchange server listening")

	for {
		select {
		case <-ctx.Done():
			return
		default:
			conn, err := listener.Accept()
			if err != nil {
				log.Error().Err(err).Msg("error accepting connection")
				continue
			}

			sess := &session{conn: conn, connID: uuid.New()}
			s.addSession(sess)

			log.Info().
				Str("connId", sess.connID.String()).
				Str("remote", conn.RemoteAddr().String()).
				Msg("connection accepted")

			s.pool.AddTask(conn)
		}
	}
}

func (s *Server) addSession(sess *session) {
	s.sessionsLock.Lock()
	defer s.sessionsLock.Unlock()
	s.sessions[sess.conn.RemoteAddr().String()] = sess
}

func (s *Server) getSession(conn net.Conn) *session {
	s.sessionsLock.Lock()
	defer s.sessionsLock.Unlock()
	return s.sessions[conn.RemoteAddr().String()]
}

func (s *Server) dropSession(conn net.Conn) {
	s.sessionsLock.Lock()
	defer s.sessionsLock.Unlock()
	delete(s.sessions, conn.RemoteAddr().String())
}

// handleConnection reads exactly one request off conn, dispatches it,
// writes the reply, and re-queues the connection for its next
// message. A read or decode failure tears the session down.
func (s *Server) handleConnection(t *tomb.Tomb, task any) error {
	conn, ok := task.(net.Conn)
	if !ok {
		return errImproperConversion
	}

	sess := s.getSession(conn)
	if sess == nil {
		_ = conn.Close()
		return nil
	}

	if err := conn.SetReadDeadline(time.Now().Add(defaultReadDeadline)); err != nil {
		log.Error().Err(err).Str("connId", sess.connID.String()).Msg("failed setting read deadline")
		s.closeSession(sess)
		return nil
	}

	buf := make([]byte, maxRequestSize)
	select {
	case <-t.Dying():
		return nil
	default:
		n, err := conn.Read(buf)
		if err != nil {
			log.Info().Str("connId", sess.connID.String()).Err(err).Msg("connection closed")
			s.closeSession(sess)
			return nil
		}

		req, err := parseRequest(buf[:n])
		if err != nil {
			log.Error().Str("connId", sess.connID.String()).Err(err).Msg("malformed request")
			s.closeSession(sess)
			return nil
		}

		reply := s.handleRequest(sess, req)
		if _, err := conn.Write([]byte(reply)); err != nil {
			log.Error().Str("connId", sess.connID.String()).Err(err).Msg("write failed")
			s.closeSession(sess)
			return nil
		}

		s.pool.AddTask(conn)
	}
	return nil
}

func (s *Server) closeSession(sess *session) {
	s.dropSession(sess.conn)
	_ = sess.conn.Close()
}

func (s *Server) handleRequest(sess *session, req Request) string {
	switch req.ReqType {
	case Registration:
		return s.handleRegistration(sess, req)
	case ViewBalance:
		return s.handleViewBalance(sess)
	case AddOrder:
		return s.handleAddOrder(sess, req)
	default:
		log.Error().Int("reqType", int(req.ReqType)).Msg("unknown request type")
		return replyOrderNotCreated
	}
}

func (s *Server) handleRegistration(sess *session, req Request) string {
	if sess.registered {
		return replyAlreadyRegistered
	}

	s.marketLock.Lock()
	userID := uint64(s.market.UsersCount())
	err := s.market.AddUser(userID, req.Username)
	s.marketLock.Unlock()
	if err != nil {
		log.Error().Err(err).Str("connId", sess.connID.String()).Msg("registration failed")
		return replyRegistrationFailed
	}

	sess.registered = true
	sess.userID = userID
	log.Info().Str("connId", sess.connID.String()).Uint64("userId", userID).Msg("user registered")
	return replyRegistrationOK
}

func (s *Server) handleViewBalance(sess *session) string {
	if !sess.registered {
		return replyNotRegistered
	}
	s.marketLock.Lock()
	user, err := s.market.GetUser(sess.userID)
	s.marketLock.Unlock()
	if err != nil {
		return replyNotRegistered
	}
	return replyBalance(user.Balance)
}

func (s *Server) handleAddOrder(sess *session, req Request) string {
	if !sess.registered {
		return replyOrderNotCreated
	}

	side, err := req.Side()
	if err != nil {
		return replyOrderNotCreated
	}

	s.marketLock.Lock()
	orderID := s.market.GetOrdersCount()
	order := engine.NewOrder(orderID, req.SymbolId, sess.userID, side, req.Price, req.Quantity, engine.MaxQuantity)
	err = s.market.AddOrder(order)
	s.marketLock.Unlock()
	if err != nil {
		log.Error().Err(err).Str("connId", sess.connID.String()).Msg("order rejected")
		return replyOrderNotCreated
	}
	return replyOrderCreated
}
