package http

import (
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// securityMetrics counts rejected and flagged requests.
type securityMetrics struct {
	rateLimitHits      prometheus.Counter
	suspiciousRequests *prometheus.CounterVec
}

func newSecurityMetrics(reg prometheus.Registerer) *securityMetrics {
	f := promauto.With(reg)
	return &securityMetrics{
		rateLimitHits: f.NewCounter(prometheus.CounterOpts{
			Name: "ledger_http_rate_limited_total",
			Help: "Mutating requests rejected by the per-IP rate limiter.",
		}),
		suspiciousRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_http_suspicious_requests_total",
			Help: "Requests flagged as hostile, by reason.",
		}, []string{"reason"}),
	}
}

// Reasons a request is flagged.
const (
	reasonInjection  = "injection"
	reasonScanTarget = "scan_target"
	reasonScanner    = "scanner_agent"
	reasonMethod     = "method"
	reasonLongURI    = "long_uri"
	reasonForwarded  = "forwarded_chain"
)

const (
	// Ids and deletion tokens are uuids, so no route of ours comes close.
	maxRequestURILength = 512
	maxForwardedHops    = 5
)

// apiRoutes are the path prefixes this server answers.
var apiRoutes = []string{"/api/", "/healthz", "/readyz", "/metrics"}

// scanTargets are well-known files and panels requested by crawlers on any host.
var scanTargets = []string{
	".env", ".git", ".aws", ".ssh", ".php", "wp-", "phpmyadmin",
	"cgi-bin", "actuator", "server-status", "etc/passwd",
}

// injectionMarkers never occur in an entity id, a deletion token or our query strings.
var injectionMarkers = []string{
	"../", "..\\", "\x00", "<script", "javascript:", "union select", "' or ", "eval(",
}

var scannerAgents = []string{
	"sqlmap", "nmap", "nikto", "gobuster", "dirb", "masscan", "zgrab", "nuclei", "wpscan",
}

var allowedMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodHead:    true,
	http.MethodPost:    true,
	http.MethodPut:     true,
	http.MethodDelete:  true,
	http.MethodOptions: true,
}

// trustedProxies may set forwarding headers.
var trustedProxies = []netip.Prefix{
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("::1/128"),
}

func isTrustedProxy(addr netip.Addr) bool {
	addr = addr.Unmap()
	for _, p := range trustedProxies {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// extractClientIP returns the peer address, or the forwarded client when the peer
// is a trusted proxy.
func extractClientIP(r *http.Request) string {
	direct := r.RemoteAddr
	if host, _, err := net.SplitHostPort(direct); err == nil {
		direct = host
	}
	addr, err := netip.ParseAddr(direct)
	if err != nil || !isTrustedProxy(addr) {
		return direct
	}

	if first, _, _ := strings.Cut(r.Header.Get("X-Forwarded-For"), ","); first != "" {
		if ip, err := netip.ParseAddr(strings.TrimSpace(first)); err == nil {
			return ip.String()
		}
	}
	if ip, err := netip.ParseAddr(strings.TrimSpace(r.Header.Get("X-Real-IP"))); err == nil {
		return ip.String()
	}
	return direct
}

// suspiciousReason reports why r looks hostile, or "" when it does not.
func suspiciousReason(r *http.Request) string {
	if !allowedMethods[r.Method] {
		return reasonMethod
	}
	if len(r.URL.RequestURI()) > maxRequestURILength {
		return reasonLongURI
	}

	path := strings.ToLower(r.URL.Path)
	query := strings.ToLower(r.URL.RawQuery)
	if q, err := url.QueryUnescape(query); err == nil {
		query = q
	}
	for _, m := range injectionMarkers {
		if strings.Contains(path, m) || strings.Contains(query, m) {
			return reasonInjection
		}
	}

	if !isAPIRoute(path) {
		for _, t := range scanTargets {
			if strings.Contains(path, t) {
				return reasonScanTarget
			}
		}
	}

	ua := strings.ToLower(r.Header.Get("User-Agent"))
	for _, a := range scannerAgents {
		if strings.Contains(ua, a) {
			return reasonScanner
		}
	}

	if strings.Count(r.Header.Get("X-Forwarded-For"), ",") >= maxForwardedHops {
		return reasonForwarded
	}
	return ""
}

func isAPIRoute(path string) bool {
	for _, p := range apiRoutes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// detectSuspiciousRequest flags r and counts it under its reason.
func detectSuspiciousRequest(r *http.Request, metrics *securityMetrics) string {
	reason := suspiciousReason(r)
	if reason != "" && metrics != nil {
		metrics.suspiciousRequests.WithLabelValues(reason).Inc()
	}
	return reason
}
