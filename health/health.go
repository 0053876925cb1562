package health

import (
	"expvar"
	"fmt"
	"net"
	"net/http"
)

// StartHealthServer serves the liveness endpoint and the expvar metrics on
// addr. The caller owns the returned server and listener.
func StartHealthServer(addr string) (*http.Server, net.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "OK")
	})
	mux.Handle("/metrics", expvar.Handler())

	server := &http.Server{Handler: mux}
	go func() {
		_ = server.Serve(ln)
	}()
	return server, ln, nil
}
