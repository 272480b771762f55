package main

import (
	"bufio"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/sockline/sockline"
	"github.com/sockline/sockline/log"
	"github.com/spf13/pflag"
)

var (
	hostFlag = pflag.StringP("host", "h", "127.0.0.1", "listener address")
	portFlag = pflag.StringP("port", "p", "5000", "listener port")
)

// check panics if err is not nil.
func check(err error) {
	if err != nil {
		panic(err)
	}
}

// A console sender that forwards every line from stdin as one datagram.
func main() {
	pflag.Parse()

	client, err := sockline.NewDatagram(*hostFlag, *portFlag, sockline.RoleClient)
	check(err)

	defer client.Close()

	log.Info().Str("host", *hostFlag).Str("port", *portFlag).Msg("Forwarding console lines.")

	r := bufio.NewReader(os.Stdin)

	for {
		line, _, err := r.ReadLine()
		if errors.Is(err, io.EOF) {
			return
		}
		check(err)

		if len(line) == 0 {
			continue
		}

		_, err = client.SendString(string(line))
		check(err)
	}
}
