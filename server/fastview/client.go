package fastview

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	channerics "github.com/niceyeti/channerics/channels"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 1 * time.Second
	// Maximum message size allowed from peer.
	maxMessageSize = 8192

	// Updates are published at most this often; the latest pending update wins.
	pubResolution  = time.Millisecond * 100
	pingResolution = time.Millisecond * 200
	// The number of pings to tolerate losing before concluding the peer is gone.
	pongWait = pingResolution * 4

	writeDeadline = time.Second
)

var upgrader = websocket.Upgrader{}

// Client publishes idempotent updates to a single browser over a websocket. Updates arriving
// faster than the publish resolution are coalesced, so only the latest is sent.
type Client[T any] struct {
	updates <-chan T
	ws      *websock
	rootCtx context.Context
	log     logrus.FieldLogger
}

// NewClient upgrades the request to a websocket.
func NewClient[T any](
	updates <-chan T,
	w http.ResponseWriter,
	r *http.Request,
	log logrus.FieldLogger,
) (*Client[T], error) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("upgrade: %w", err)
	}
	ws.SetReadLimit(maxMessageSize)

	return &Client[T]{
		updates: updates,
		ws:      newWebSocket(ws),
		rootCtx: r.Context(),
		log:     log.WithField("remote", r.RemoteAddr),
	}, nil
}

// Sync publishes updates until the peer disconnects, the request context is done, or the
// updates channel closes. A normal disconnect returns nil.
func (cli *Client[T]) Sync() error {
	defer cli.ws.Close()
	group, groupCtx := errgroup.WithContext(cli.rootCtx)

	group.Go(func() error {
		return cli.readMessages(groupCtx)
	})
	group.Go(func() error {
		return cli.pingPong(groupCtx)
	})
	group.Go(func() error {
		return cli.publish(groupCtx)
	})
	group.Go(func() error {
		// Unblocks the reader.
		<-groupCtx.Done()
		return cli.ws.Conn().SetReadDeadline(time.Now())
	})

	err := group.Wait()
	if errors.Is(err, errClientDone) {
		err = nil
	}
	cli.log.WithError(err).Debug("client sync ended")
	return err
}

var (
	ErrPongDeadlineExceeded = errors.New("client disconnect, pong deadline exceeded")
	// errClientDone ends the group on a normal disconnect or when the updates close.
	errClientDone = errors.New("client done")
)

// pingPong checks client liveness. The pong handler only runs while readMessages is reading.
func (cli *Client[T]) pingPong(ctx context.Context) error {
	pong := make(chan struct{}, 1)
	cli.ws.Conn().SetPongHandler(func(_ string) error {
		select {
		case pong <- struct{}{}:
		default:
		}
		return nil
	})

	lastPong := time.Now()
	pinger := channerics.NewTicker(ctx.Done(), pingResolution)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-pinger:
			if time.Since(lastPong) > pongWait {
				return ErrPongDeadlineExceeded
			}
			if err := cli.ping(ctx); err != nil {
				return err
			}
		case <-pong:
			lastPong = time.Now()
		}
	}
}

func (cli *Client[T]) ping(ctx context.Context) error {
	return cli.ws.Write(ctx, func(ws *websocket.Conn) error {
		err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
		if isClosure(err) {
			return errClientDone
		}
		if err != nil {
			return fmt.Errorf("ping failed: %w", err)
		}
		return nil
	})
}

// readMessages drains client messages; websocket read errors are permanent.
func (cli *Client[T]) readMessages(ctx context.Context) error {
	for {
		_, _, err := cli.ws.Conn().ReadMessage()
		if ctx.Err() != nil {
			return nil
		}
		if isClosure(err) {
			return errClientDone
		}
		if err != nil {
			return fmt.Errorf("read failed: %w", err)
		}
	}
}

func (cli *Client[T]) publish(ctx context.Context) error {
	var (
		latest  T
		pending bool
	)
	ticker := channerics.NewTicker(ctx.Done(), pubResolution)
	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-cli.updates:
			if !ok {
				return errClientDone
			}
			latest, pending = update, true
		case <-ticker:
			if !pending {
				continue
			}
			pending = false
			err := cli.ws.Write(ctx, func(ws *websocket.Conn) error {
				if err := ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
					return fmt.Errorf("failed to set deadline: %w", err)
				}
				if err := ws.WriteJSON(latest); err != nil {
					return fmt.Errorf("publish failed: %w", err)
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
	}
}

func isClosure(err error) bool {
	return err != nil && websocket.IsCloseError(
		err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway)
}

// ErrSockCongestion indicates there are too many waiters on the socket for a given op.
var ErrSockCongestion = errors.New("sock op failed due to congestion")

// websock serializes writes to the websocket, which permits only one concurrent writer.
// Reads happen only in readMessages.
type websock struct {
	writeSem chan struct{}
	ws       *websocket.Conn
}

func newWebSocket(ws *websocket.Conn) *websock {
	return &websock{
		writeSem: make(chan struct{}, 1),
		ws:       ws,
	}
}

// Conn returns the underlying websocket, for setup and for the single reader.
func (sock *websock) Conn() *websocket.Conn {
	return sock.ws
}

// Close sends a close frame and closes the connection once all writers are done.
func (sock *websock) Close() {
	sock.writeSem <- struct{}{}
	_ = sock.ws.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	sock.ws.Close()
}

// Write serializes write operations to the websocket.
func (sock *websock) Write(
	ctx context.Context,
	writeFn func(*websocket.Conn) error,
) error {
	select {
	case <-ctx.Done():
		return nil
	case sock.writeSem <- struct{}{}:
		defer func() { <-sock.writeSem }()
		return writeFn(sock.ws)
	case <-time.After(writeDeadline):
		return ErrSockCongestion
	}
}
