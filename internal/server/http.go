package server

import (
	"net"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/rsclarke/aiconnect/internal/logging"
)

// RedirectServer answers the plain HTTP port when HTTPS is enabled. ACME
// HTTP-01 challenges go to Challenge; everything else is redirected.
type RedirectServer struct {
	HTTPSPort int
	Challenge func(http.Handler) http.Handler
	Logger    *zap.Logger
}

// Handler returns the redirecting handler, wrapped by Challenge when set.
func (s *RedirectServer) Handler() http.Handler {
	if s.Logger == nil {
		s.Logger = zap.NewNop()
	}
	var h http.Handler = http.HandlerFunc(s.redirect)
	if s.Challenge != nil {
		h = s.Challenge(h)
	}
	return h
}

func (s *RedirectServer) redirect(w http.ResponseWriter, r *http.Request) {
	target := HTTPSURL(r, s.HTTPSPort)
	s.Logger.Debug("redirecting to https", logging.Method(r.Method), logging.Path(r.URL.Path), logging.Port(s.HTTPSPort))
	http.Redirect(w, r, target, http.StatusPermanentRedirect)
}

// HTTPSURL rewrites the request URL to https on port. The port is omitted
// when it is 443.
func HTTPSURL(r *http.Request, port int) string {
	host := r.Host
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	if ip := net.ParseIP(host); ip != nil && ip.To4() == nil {
		host = "[" + host + "]"
	}
	if port != 0 && port != 443 {
		host += ":" + strconv.Itoa(port)
	}
	u := "https://" + host + r.URL.Path
	if r.URL.RawQuery != "" {
		u += "?" + r.URL.RawQuery
	}
	return u
}
