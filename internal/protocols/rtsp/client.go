// Package rtsp contains a RTSP client that negotiates UDP unicast sessions.
package rtsp

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/bluenviron/gortsplib/v4/pkg/auth"
	"github.com/bluenviron/gortsplib/v4/pkg/base"
	"github.com/bluenviron/gortsplib/v4/pkg/headers"

	"github.com/ovframework/ovf/internal/logger"
)

const (
	defaultPort        = 554
	defaultReadTimeout = 10 * time.Second
	teardownTimeout    = 2 * time.Second
	keepAliveRatio     = 0.66
	userAgent          = "ovf"
	responseBufferSize = 4096
)

// ErrAuthFailed is returned when the server rejects the provided credentials,
// or when the server requires credentials and none are available.
var ErrAuthFailed = errors.New("authentication failed")

// ErrBadStatusCode is returned when the server replies with a non-successful status code.
type ErrBadStatusCode struct {
	Code    base.StatusCode
	Message string
}

// Error implements the error interface.
func (e ErrBadStatusCode) Error() string {
	return fmt.Sprintf("bad status code: %d (%s)", e.Code, e.Message)
}

// Track is a track that has been set up.
type Track struct {
	Metadata *TrackMetadata

	// local sockets
	RTPConn  *net.UDPConn
	RTCPConn *net.UDPConn

	// server sockets
	ServerRTPAddr  *net.UDPAddr
	ServerRTCPAddr *net.UDPAddr
}

type clientParent interface {
	logger.Writer
}

// Client is a RTSP client.
// Its methods must be called in this order:
// Connect, Options (optional), Describe, Setup (once per track), Play, Close.
type Client struct {
	URL         string
	User        string
	Pass        string
	ReadTimeout time.Duration
	Parent      clientParent

	u    *base.URL
	user string
	pass string

	mutex      sync.Mutex
	conn       net.Conn
	br         *bufio.Reader
	cseq       int
	contentURL *base.URL
	session    string
	timeout    time.Duration
	sender     *auth.Sender
	tracks     []*Track

	closeOnce          sync.Once
	keepAliveTerminate chan struct{}
	keepAliveDone      chan struct{}
}

// Log implements logger.Writer.
func (c *Client) Log(level logger.Level, format string, args ...interface{}) {
	c.Parent.Log(level, format, args...)
}

// Connect opens the control connection.
func (c *Client) Connect(ctx context.Context) error {
	if c.ReadTimeout == 0 {
		c.ReadTimeout = defaultReadTimeout
	}

	u, err := base.ParseURL(c.URL)
	if err != nil {
		return err
	}

	if u.Scheme != "rtsp" {
		return fmt.Errorf("unsupported scheme '%s'", u.Scheme)
	}

	if c.User != "" {
		c.user = c.User
		c.pass = c.Pass
	} else if u.User != nil {
		c.user = u.User.Username()
		c.pass, _ = u.User.Password()
	}

	c.u = stripCredentials(u)
	c.contentURL = c.u

	host := c.u.Host
	if (*url.URL)(c.u).Port() == "" {
		host = net.JoinHostPort((*url.URL)(c.u).Hostname(), strconv.Itoa(defaultPort))
	}

	var d net.Dialer
	c.conn, err = d.DialContext(ctx, "tcp", host)
	if err != nil {
		return err
	}

	c.br = bufio.NewReaderSize(c.conn, responseBufferSize)

	return nil
}

func stripCredentials(u *base.URL) *base.URL {
	ret := *u
	ret.User = nil
	return &ret
}

func (c *Client) roundTrip(ctx context.Context, req *base.Request) (*base.Response, error) {
	c.cseq++
	req.Header["CSeq"] = base.HeaderValue{strconv.Itoa(c.cseq)}
	req.Header["User-Agent"] = base.HeaderValue{userAgent}

	if c.session != "" {
		req.Header["Session"] = base.HeaderValue{c.session}
	}

	if c.sender != nil {
		c.sender.AddAuthorization(req)
	}

	byts, err := req.Marshal()
	if err != nil {
		return nil, err
	}

	c.conn.SetDeadline(time.Now().Add(c.ReadTimeout)) //nolint:errcheck

	// interrupt blocking I/O when the context is canceled
	stop := context.AfterFunc(ctx, func() {
		c.conn.SetDeadline(time.Now()) //nolint:errcheck
	})
	defer stop()

	_, err = c.conn.Write(byts)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}

	var res base.Response
	err = res.Unmarshal(c.br)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}

	return &res, nil
}

// do sends a request and reads the response.
// On a 401 response, the request is repeated once with credentials.
func (c *Client) do(ctx context.Context, method base.Method, u *base.URL, header base.Header) (*base.Response, error) {
	if header == nil {
		header = base.Header{}
	}

	req := &base.Request{
		Method: method,
		URL:    u,
		Header: header,
	}

	res, err := c.roundTrip(ctx, req)
	if err != nil {
		return nil, err
	}

	if res.StatusCode == base.StatusUnauthorized {
		if c.sender != nil || c.user == "" {
			return nil, ErrAuthFailed
		}

		sender := &auth.Sender{
			WWWAuth: res.Header["WWW-Authenticate"],
			User:    c.user,
			Pass:    c.pass,
		}
		err = sender.Initialize()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrAuthFailed, err)
		}
		c.sender = sender

		c.Log(logger.Debug, "retrying with credentials")

		res, err = c.roundTrip(ctx, req)
		if err != nil {
			return nil, err
		}

		if res.StatusCode == base.StatusUnauthorized {
			return nil, ErrAuthFailed
		}
	}

	if res.StatusCode < base.StatusOK || res.StatusCode >= base.StatusCode(300) {
		return nil, ErrBadStatusCode{Code: res.StatusCode, Message: res.StatusMessage}
	}

	return res, nil
}

// Options sends an OPTIONS request.
func (c *Client) Options(ctx context.Context) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	_, err := c.do(ctx, base.Options, c.u, nil)
	return err
}

// Describe sends a DESCRIBE request and returns the announced tracks.
func (c *Client) Describe(ctx context.Context) ([]*TrackMetadata, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	res, err := c.do(ctx, base.Describe, c.u, base.Header{
		"Accept": base.HeaderValue{"application/sdp"},
	})
	if err != nil {
		return nil, err
	}

	if cb, ok := res.Header["Content-Base"]; ok && len(cb) == 1 {
		u, err2 := base.ParseURL(cb[0])
		if err2 != nil {
			return nil, fmt.Errorf("invalid Content-Base: %w", err2)
		}
		c.contentURL = stripCredentials(u)
	}

	tracks, err := ParseSDP(res.Body, c.contentURL)
	if err != nil {
		return nil, fmt.Errorf("invalid SDP: %w", err)
	}

	return tracks, nil
}

func (c *Client) serverIP() net.IP {
	if addr, ok := c.conn.RemoteAddr().(*net.TCPAddr); ok {
		return addr.IP
	}
	return nil
}

// Setup allocates a couple of UDP sockets and sends a SETUP request for a track.
func (c *Client) Setup(ctx context.Context, md *TrackMetadata) (*Track, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	rtpConn, rtcpConn, err := listenPair()
	if err != nil {
		return nil, err
	}

	track, err := c.setup(ctx, md, rtpConn, rtcpConn)
	if err != nil {
		rtpConn.Close()
		rtcpConn.Close()
		return nil, err
	}

	c.tracks = append(c.tracks, track)

	return track, nil
}

func (c *Client) setup(
	ctx context.Context,
	md *TrackMetadata,
	rtpConn *net.UDPConn,
	rtcpConn *net.UDPConn,
) (*Track, error) {
	rtpPort := rtpConn.LocalAddr().(*net.UDPAddr).Port
	rtcpPort := rtcpConn.LocalAddr().(*net.UDPAddr).Port

	res, err := c.do(ctx, base.Setup, md.Control, base.Header{
		"Transport": base.HeaderValue{
			"RTP/AVP/UDP;unicast;client_port=" + strconv.Itoa(rtpPort) + "-" + strconv.Itoa(rtcpPort),
		},
	})
	if err != nil {
		return nil, err
	}

	var th headers.Transport
	err = th.Unmarshal(res.Header["Transport"])
	if err != nil {
		return nil, fmt.Errorf("invalid transport header: %w", err)
	}

	if th.ServerPorts == nil {
		return nil, fmt.Errorf("server ports have not been provided")
	}

	// the session identifier is captured once and reused
	if c.session == "" {
		var sh headers.Session
		err = sh.Unmarshal(res.Header["Session"])
		if err != nil {
			return nil, fmt.Errorf("invalid session header: %w", err)
		}

		c.session = sh.Session

		if sh.Timeout != nil && *sh.Timeout > 0 {
			c.timeout = time.Duration(*sh.Timeout) * time.Second
		}
	}

	ip := c.serverIP()
	if th.Source != nil {
		ip = *th.Source
	}

	return &Track{
		Metadata:       md,
		RTPConn:        rtpConn,
		RTCPConn:       rtcpConn,
		ServerRTPAddr:  &net.UDPAddr{IP: ip, Port: th.ServerPorts[0]},
		ServerRTCPAddr: &net.UDPAddr{IP: ip, Port: th.ServerPorts[1]},
	}, nil
}

// Play sends a PLAY request.
// When the server advertised a session timeout, GET_PARAMETER requests are sent
// periodically until Close is called.
func (c *Client) Play(ctx context.Context) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	_, err := c.do(ctx, base.Play, c.contentURL, nil)
	if err != nil {
		return err
	}

	if c.timeout > 0 {
		c.keepAliveTerminate = make(chan struct{})
		c.keepAliveDone = make(chan struct{})
		go c.runKeepAlive(time.Duration(float64(c.timeout) * keepAliveRatio))
	}

	return nil
}

func (c *Client) runKeepAlive(period time.Duration) {
	defer close(c.keepAliveDone)

	t := time.NewTicker(period)
	defer t.Stop()

	for {
		select {
		case <-t.C:
			err := c.keepAlive()
			if err != nil {
				c.Log(logger.Warn, "keep-alive failed: %v", err)
			}

		case <-c.keepAliveTerminate:
			return
		}
	}
}

func (c *Client) keepAlive() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	_, err := c.do(context.Background(), base.GetParameter, c.contentURL, nil)
	return err
}

// Timeout returns the session timeout advertised by the server.
func (c *Client) Timeout() time.Duration {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.timeout
}

// Close tears down the session and releases every resource.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		if c.keepAliveTerminate != nil {
			close(c.keepAliveTerminate)
			<-c.keepAliveDone
		}

		c.mutex.Lock()
		defer c.mutex.Unlock()

		if c.conn != nil {
			if c.session != "" {
				ctx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
				_, err := c.do(ctx, base.Teardown, c.contentURL, nil)
				cancel()
				if err != nil {
					c.Log(logger.Debug, "teardown failed: %v", err)
				}
			}

			c.conn.Close()
		}

		for _, t := range c.tracks {
			t.RTPConn.Close()
			t.RTCPConn.Close()
		}
	})

	return nil
}
