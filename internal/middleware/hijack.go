package middleware

import (
	"bufio"
	"errors"
	"net"
	"net/http"
)

var errNoHijack = errors.New("middleware: underlying ResponseWriter does not support hijacking")

// hijack lets websocket upgrades pass through the status-recording wrappers.
func hijack(w http.ResponseWriter) (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.(http.Hijacker)
	if !ok {
		return nil, nil, errNoHijack
	}
	return h.Hijack()
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) { return hijack(rw.ResponseWriter) }

func (rw *responseWriter) Unwrap() http.ResponseWriter { return rw.ResponseWriter }

func (sr *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) { return hijack(sr.ResponseWriter) }

func (sr *statusRecorder) Unwrap() http.ResponseWriter { return sr.ResponseWriter }
