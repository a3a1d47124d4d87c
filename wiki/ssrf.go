package wiki

import (
	"fmt"
	"net"
	"net/http"
	"syscall"
	"time"
)

// SSRFError reports a link-check target blocked because it points at,
// or could resolve to, a private network.
type SSRFError struct {
	URL    string
	Reason string
}

func (e *SSRFError) Error() string {
	return fmt.Sprintf("blocked %q: %s", e.URL, e.Reason)
}

var privateIPBlocks []*net.IPNet

// safeDialer validates the resolved IP at connection time, after DNS
// resolution but before the TCP connection, so DNS rebinding cannot
// route a check into a private network.
var safeDialer = &net.Dialer{
	Timeout:   30 * time.Second,
	KeepAlive: 30 * time.Second,
	Control: func(network, address string, c syscall.RawConn) error {
		host, _, err := net.SplitHostPort(address)
		if err != nil {
			return fmt.Errorf("invalid address format: %w", err)
		}
		ip := net.ParseIP(host)
		if ip == nil {
			return fmt.Errorf("failed to parse IP: %s", host)
		}
		if isPrivateIP(ip) {
			return &SSRFError{URL: host, Reason: "private IP"}
		}
		return nil
	},
}

// linkCheckClient is shared across link checks for connection reuse.
// Redirect targets are re-validated so a public URL cannot bounce the
// check into a private network.
var linkCheckClient = &http.Client{
	Timeout: 30 * time.Second,
	Transport: &http.Transport{
		DialContext:         safeDialer.DialContext,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		DisableCompression:  true,
		ForceAttemptHTTP2:   true,
	},
	CheckRedirect: func(req *http.Request, via []*http.Request) error {
		if len(via) >= 5 {
			return fmt.Errorf("too many redirects")
		}
		if hostname := req.URL.Hostname(); hostname != "" {
			if private, _ := isPrivateHost(hostname); private {
				return &SSRFError{URL: req.URL.String(), Reason: "redirect to private network"}
			}
		}
		return nil
	},
}

func init() {
	privateCIDRs := []string{
		"127.0.0.0/8",        // IPv4 loopback
		"10.0.0.0/8",         // RFC 1918
		"172.16.0.0/12",      // RFC 1918
		"192.168.0.0/16",     // RFC 1918
		"169.254.0.0/16",     // link-local
		"0.0.0.0/8",          // current network
		"100.64.0.0/10",      // CGN shared space
		"192.0.0.0/24",       // IETF protocol assignments
		"192.0.2.0/24",       // TEST-NET-1
		"198.51.100.0/24",    // TEST-NET-2
		"203.0.113.0/24",     // TEST-NET-3
		"224.0.0.0/4",        // multicast
		"240.0.0.0/4",        // reserved
		"255.255.255.255/32", // broadcast
		"::1/128",            // IPv6 loopback
		"fe80::/10",          // IPv6 link-local
		"fc00::/7",           // IPv6 unique local
		"ff00::/8",           // IPv6 multicast
	}
	for _, cidr := range privateCIDRs {
		if _, block, err := net.ParseCIDR(cidr); err == nil {
			privateIPBlocks = append(privateIPBlocks, block)
		}
	}
}

func isPrivateIP(ip net.IP) bool {
	if ip == nil {
		return true
	}
	for _, block := range privateIPBlocks {
		if block.Contains(ip) {
			return true
		}
	}
	return false
}

// isPrivateHost reports whether a hostname resolves to any private IP.
// DNS failures are treated as private: an attacker-controlled zone can
// time out first and resolve to a private IP later.
func isPrivateHost(hostname string) (bool, error) {
	if ip := net.ParseIP(hostname); ip != nil {
		return isPrivateIP(ip), nil
	}
	ips, err := net.LookupIP(hostname)
	if err != nil {
		return true, &SSRFError{URL: hostname, Reason: fmt.Sprintf("DNS resolution failed: %v", err)}
	}
	if len(ips) == 0 {
		return true, &SSRFError{URL: hostname, Reason: "DNS returned no IP addresses"}
	}
	for _, ip := range ips {
		if isPrivateIP(ip) {
			return true, nil
		}
	}
	return false, nil
}
