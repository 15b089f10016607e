package server

import (
	"io"

	"bzot/application/bzot/request"
	iolib "bzot/lib/io"
)

var DefaultReply = []byte("HTTP/1.1 200 OK\r\n\r\nHello from bzot!\r\n")

// Responder writes the reply once the request has been read.
type Responder interface {
	Respond(w io.Writer, req *request.Request) error
}

type ResponderFunc func(w io.Writer, req *request.Request) error

func (f ResponderFunc) Respond(w io.Writer, req *request.Request) error { return f(w, req) }

// FixedReply always writes reply, whatever was received.
func FixedReply(reply []byte) Responder {
	return ResponderFunc(func(w io.Writer, _ *request.Request) error {
		_, err := iolib.WriteFull(w, reply)
		return err
	})
}
