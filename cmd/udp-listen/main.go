package main

import (
	"fmt"

	"github.com/sockline/sockline"
	"github.com/sockline/sockline/log"
	"github.com/sockline/sockline/payload"
	"github.com/spf13/pflag"
)

var (
	portFlag = pflag.StringP("port", "p", "5000", "port to listen on")
	sizeFlag = pflag.IntP("buffer", "b", 1024, "receive capacity in bytes; larger datagrams are truncated")
)

// check panics if err is not nil.
func check(err error) {
	if err != nil {
		panic(err)
	}
}

// A console listener that prints every datagram it receives.
func main() {
	pflag.Parse()

	server, err := sockline.NewDatagram("", *portFlag, sockline.RoleServer)
	check(err)

	defer server.Close()

	log.Info().Str("port", *portFlag).Msg("Listening for datagrams.")

	buf := make([]byte, *sizeFlag)

	for {
		n, from, err := server.RecvFrom(buf)
		check(err)

		fmt.Printf("%s> %s\n", from, payload.TrimTerminator(buf[:n]))
	}
}
