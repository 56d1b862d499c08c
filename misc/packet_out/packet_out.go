package main

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/kelseyhightower/envconfig"
	log "github.com/sirupsen/logrus"

	"github.com/ciena/ofcore/openflow"
	"github.com/ciena/ofcore/openflow/of13"
)

// App is the application configuration and runtime information
type App struct {
	ShowHelp   bool   `envconfig:"HELP" default:"false" desc:"show this message"`
	OfCoreAPI  string `envconfig:"OFCORE_API" default:"http://127.0.0.1:8002" desc:"HOST:PORT on which to connect to ofcore REST API"`
	Device     string `envconfig:"DEVICE" required:"true" desc:"DPID of device on which to packet out"`
	Port       string `envconfig:"PORT" required:"true" desc:"Port on device on which to packet out"`
	PacketFile string `envconfig:"PACKET_FILE" required:"true" desc:"File from which to read packet to send, or '-' for stdin"`
}

const (
	noBuffer           = 0xffffffff
	portAny            = 0xffffffff
	actionOutput       = 0
	actionOutputLen    = 16
	contentLenNoBuffer = 0xffff
)

// outputAction encodes a single 1.3 output action to the given port.
func outputAction(portNo uint32) []byte {
	b := make([]byte, actionOutputLen)
	binary.BigEndian.PutUint16(b[0:], actionOutput)
	binary.BigEndian.PutUint16(b[2:], actionOutputLen)
	binary.BigEndian.PutUint32(b[4:], portNo)
	binary.BigEndian.PutUint16(b[8:], contentLenNoBuffer)
	return b
}

func main() {
	var app App
	var data bytes.Buffer

	var flags flag.FlagSet
	err := flags.Parse(os.Args[1:])
	if err != nil {
		if err = envconfig.Usage("", &(app)); err != nil {
			log.
				WithError(err).
				Fatal("Unable to display usage information")
		}
		return
	}

	err = envconfig.Process("", &app)
	if err != nil {
		log.
			WithError(err).
			Fatal("Unable to process configuration")
	}
	if app.ShowHelp {
		if err = envconfig.Usage("", &(app)); err != nil {
			log.
				WithError(err).
				Fatal("Unable to display usage information")
		}
		return
	}

	var scanner *bufio.Scanner
	if app.PacketFile == "-" {
		scanner = bufio.NewScanner(os.Stdin)
	} else {
		reader, err := os.OpenFile(app.PacketFile, os.O_RDONLY, 0)
		if err == nil {
			scanner = bufio.NewScanner(reader)
		}
	}
	if err != nil {
		log.
			WithFields(log.Fields{
				"file": app.PacketFile,
			}).
			WithError(err).
			Fatal("Unable to read packet file")
	}

	scanner.Split(bufio.ScanWords)
	var val uint64
	for scanner.Scan() {
		val, err = strconv.ParseUint(scanner.Text(), 16, 8)
		if err != nil {
			log.
				WithFields(log.Fields{
					"byte": scanner.Text(),
				}).
				WithError(err).
				Fatal("Unable to parse value to byte")
		}
		data.WriteByte(uint8(val))
	}
	if err := scanner.Err(); err != nil {
		log.
			WithError(err).
			Fatal("Unable to read input")
	}

	// Process port constants
	var portNo uint32
	switch strings.ToUpper(app.Port) {
	case "IN":
		portNo = 0xfffffff8
	case "TABLE":
		portNo = 0xfffffff9
	case "NORMAL":
		portNo = 0xfffffffa
	case "FLOOD":
		portNo = 0xfffffffb
	case "ALL":
		portNo = 0xfffffffc
	case "CONTROLLER":
		portNo = 0xfffffffd
	case "LOCAL":
		portNo = 0xfffffffe
	default:
		val, err := strconv.ParseUint(app.Port, 10, 32)
		if err != nil {
			log.
				WithFields(log.Fields{
					"port": app.Port,
				}).
				WithError(err).
				Fatal("Unable to parse specified port value")
		}
		portNo = uint32(val)
	}

	// Build packet out message
	pktOut := &of13.PacketOut{
		BufferID: noBuffer,
		InPort:   portAny,
		Actions:  outputAction(portNo),
		Data:     data.Bytes(),
	}
	message, err := openflow.Encode(pktOut)
	if err != nil {
		log.
			WithError(err).
			Fatal("Unable to encode packet out message")
	}

	log.Debug("POSTING")
	url := fmt.Sprintf("%s/ofcore/%s", app.OfCoreAPI, app.Device)
	resp, err := http.Post(url, "application/octet-stream", bytes.NewReader(message))
	if err != nil {
		log.
			WithFields(log.Fields{
				"ofcore": app.OfCoreAPI,
			}).
			WithError(err).
			Fatal("Unable to connect to ofcore API end point")
	} else if int(resp.StatusCode/100) != 2 {
		log.
			WithFields(log.Fields{
				"ofcore":        app.OfCoreAPI,
				"response-code": resp.StatusCode,
				"response":      resp.Status,
			}).
			Fatal("Non success code returned from ofcore")
	}
}
