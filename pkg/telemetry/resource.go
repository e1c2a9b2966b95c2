package telemetry

import (
	"context"
	"net"
	"os"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
)

// buildResource describes this process to the collector. host.name is set to
// the machine's IP rather than its hostname so traces from different cluster
// nodes stay distinguishable behind shared DNS names.
func buildResource(ctx context.Context, cfg *Config) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
	}
	if ip := hostIP(); ip != "" {
		attrs = append(attrs, semconv.HostName(ip))
	}
	for k, v := range cfg.ResourceAttrs {
		attrs = append(attrs, attribute.String(k, v))
	}

	return resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(semconv.SchemaURL, attrs...),
	)
}

// hostIP resolves the hostname to an IP, preferring IPv4. Falls back to
// scanning network interfaces when resolution fails.
func hostIP() string {
	hostname, err := os.Hostname()
	if err != nil {
		return ""
	}
	addrs, err := net.LookupIP(hostname)
	if err == nil {
		if ip := pickAddr(addrs); ip != "" {
			return ip
		}
	}
	return interfaceIP()
}

// pickAddr chooses a non-loopback address, IPv4 first.
func pickAddr(addrs []net.IP) string {
	for _, a := range addrs {
		if v4 := a.To4(); v4 != nil && !v4.IsLoopback() {
			return v4.String()
		}
	}
	for _, a := range addrs {
		if !a.IsLoopback() {
			return a.String()
		}
	}
	return ""
}

// interfaceIP returns the first usable IPv4 from any interface that is up,
// or "" when the machine has none.
func interfaceIP() string {
	ifaces, err := net.Interfaces()
	if err != nil {
		return ""
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			var ip net.IP
			switch v := addr.(type) {
			case *net.IPNet:
				ip = v.IP
			case *net.IPAddr:
				ip = v.IP
			}
			if ip == nil || ip.IsLoopback() {
				continue
			}
			if v4 := ip.To4(); v4 != nil {
				return v4.String()
			}
		}
	}
	return ""
}
