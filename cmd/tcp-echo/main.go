package main

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/sockline/sockline"
	"github.com/sockline/sockline/log"
	"github.com/spf13/pflag"
)

var (
	hostFlag = pflag.StringP("host", "h", "127.0.0.1", "address to dial in dial mode")
	portFlag = pflag.StringP("port", "p", "5000", "port")
	dialFlag = pflag.BoolP("dial", "d", false, "dial an echo server instead of serving")
	sizeFlag = pflag.IntP("buffer", "b", 1024, "receive capacity in bytes")
)

// check panics if err is not nil.
func check(err error) {
	if err != nil {
		panic(err)
	}
}

// A line echo over a stream endpoint: serves one connection at a time, or
// with -d reads console lines, sends them and prints the echo.
func main() {
	pflag.Parse()

	if *dialFlag {
		dial()
		return
	}

	serve()
}

func serve() {
	server, err := sockline.NewStream("", *portFlag, sockline.RoleServer)
	check(err)

	defer server.Close()

	log.Info().Str("port", *portFlag).Msg("Waiting for stream connections.")

	for {
		conn, err := server.Accept(16)
		check(err)

		echo(conn)
	}
}

func echo(conn *sockline.Stream) {
	defer conn.Close()

	buf := make([]byte, *sizeFlag)

	for {
		n, err := conn.Read(buf)
		if errors.Is(err, io.EOF) {
			log.Info().Msg("Peer closed the connection.")
			return
		}
		check(err)

		_, err = conn.Write(buf[:n])
		check(err)
	}
}

func dial() {
	client, err := sockline.NewStream(*hostFlag, *portFlag, sockline.RoleClient)
	check(err)

	defer client.Close()

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

		reply, err := client.RecvString(*sizeFlag)
		check(err)

		fmt.Println(reply)
	}
}
