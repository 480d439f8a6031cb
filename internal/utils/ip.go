package utils

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP devolve o endereço do cliente. X-Forwarded-For só é considerado
// quando trustProxy for true; caso contrário o cabeçalho é controlado pelo cliente.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first := strings.TrimSpace(strings.Split(xff, ",")[0])
			if first != "" {
				return first
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
