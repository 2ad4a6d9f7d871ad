package docapi

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/proxy"

	"github.com/kirillkom/pdf-processor/internal/infrastructure/resilience"
)

const defaultTimeout = 60 * time.Second

type Options struct {
	Timeout  time.Duration
	ProxyURL string
	Executor *resilience.Executor
}

// Client carries the HTTP transport shared by the auth and processing endpoints.
type Client struct {
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(opts Options) (*Client, error) {
	httpClient, err := NewHTTPClient(opts.Timeout, opts.ProxyURL)
	if err != nil {
		return nil, err
	}
	return &Client{
		httpClient: httpClient,
		executor:   opts.Executor,
	}, nil
}

// NewHTTPClient builds a client with the given timeout. socks5:// proxies are
// dialed through x/net/proxy; http(s):// proxies go through the transport.
func NewHTTPClient(timeout time.Duration, proxyURL string) (*http.Client, error) {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()

	if raw := strings.TrimSpace(proxyURL); raw != "" {
		u, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("parse upstream proxy url: %w", err)
		}
		switch u.Scheme {
		case "socks5", "socks5h":
			var auth *proxy.Auth
			if u.User != nil {
				password, _ := u.User.Password()
				auth = &proxy.Auth{User: u.User.Username(), Password: password}
			}
			dialer, err := proxy.SOCKS5("tcp", u.Host, auth, proxy.Direct)
			if err != nil {
				return nil, fmt.Errorf("create socks5 dialer: %w", err)
			}
			transport.Proxy = nil
			transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
				if cd, ok := dialer.(proxy.ContextDialer); ok {
					return cd.DialContext(ctx, network, addr)
				}
				return dialer.Dial(network, addr)
			}
		case "http", "https":
			transport.Proxy = http.ProxyURL(u)
		default:
			return nil, fmt.Errorf("unsupported upstream proxy scheme %q", u.Scheme)
		}
	}

	return &http.Client{Timeout: timeout, Transport: transport}, nil
}

func (c *Client) execute(ctx context.Context, operation string, fn func(context.Context) error) error {
	if c.executor == nil {
		return fn(ctx)
	}
	return c.executor.Execute(ctx, operation, fn, classifyUpstreamError)
}
