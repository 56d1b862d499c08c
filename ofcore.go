// OFCORE command to start an OpenFlow controller core. This command
// parses the environment for configuration information and then accepts
// switch connections, negotiating versions and dispatching their
// messages to the registered application components.
package main

import (
	"crypto/tls"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	log "github.com/sirupsen/logrus"

	"github.com/ciena/ofcore/api"
	"github.com/ciena/ofcore/apps/monitor"
	"github.com/ciena/ofcore/connection"
	"github.com/ciena/ofcore/criteria"
	"github.com/ciena/ofcore/datapath"
	"github.com/ciena/ofcore/dispatch"
)

const (
	// Supported monitor filter terms
	TermDlType = "dl_type"
	TermInPort = "in_port"
)

// Maintains the application configuration and runtime state
type App struct {
	ShowHelp      bool          `envconfig:"HELP" default:"false" desc:"show this message"`
	ListenOn      string        `envconfig:"LISTEN_ON" default:":6653" required:"true" desc:"connection on which to listen for open flow devices"`
	ApiOn         string        `envconfig:"API_ON" default:":8002" required:"true" desc:"port on which to listen to accept API requests"`
	LogLevel      string        `envconfig:"LOG_LEVEL" default:"debug" desc:"logging level"`
	EchoInterval  time.Duration `envconfig:"ECHO_INTERVAL" default:"15s" desc:"period between keepalive echo requests to each device"`
	EchoMisses    int           `envconfig:"ECHO_MISSES" default:"3" desc:"consecutive unanswered echo requests before a device is disconnected"`
	XactTimeout   time.Duration `envconfig:"XACT_TIMEOUT" default:"10s" desc:"how long to wait for a device to answer a request"`
	SendQueue     int           `envconfig:"SEND_QUEUE" default:"32" desc:"per device outbound message queue depth"`
	MonitorFilter string        `envconfig:"MONITOR_FILTER" default:"" desc:"packet monitor match terms, e.g. dl_type=0x88cc;in_port=1"`
	TlsCert       string        `envconfig:"TLS_CERT" default:"" desc:"certificate file for TLS switch connections"`
	TlsKey        string        `envconfig:"TLS_KEY" default:"" desc:"key file for TLS switch connections"`

	dispatcher *dispatch.Dispatcher
	paths      *datapath.Registry
	server     *connection.Server
	api        *api.API
}

// parseFilter converts a term list of the form
//
//	dl_type=0x88cc;in_port=1
//
// into packet match criteria for the monitor component.
func parseFilter(expr string) (criteria.Criteria, error) {
	match := criteria.Criteria{}
	if len(expr) == 0 {
		return match, nil
	}
	for _, part := range strings.Split(expr, ";") {
		terms := strings.SplitN(part, "=", 2)
		if len(terms) != 2 {
			return match, fmt.Errorf("malformed filter term '%s'", part)
		}
		switch strings.ToLower(terms[0]) {
		case TermDlType:
			ethType, err := strconv.ParseUint(terms[1], 0, 16)
			if err != nil {
				log.
					WithFields(log.Fields{
						"term":  terms[0],
						"value": terms[1],
					}).
					Error("Unable to convert term to uint16")
				return match, err
			}
			match.Set |= criteria.BitDLType
			match.DlType = uint16(ethType)
		case TermInPort:
			port, err := strconv.ParseUint(terms[1], 0, 32)
			if err != nil {
				log.
					WithFields(log.Fields{
						"term":  terms[0],
						"value": terms[1],
					}).
					Error("Unable to convert term to uint32")
				return match, err
			}
			match.Set |= criteria.BitInPort
			match.InPort = uint32(port)
		default:
			log.
				WithFields(log.Fields{
					"term":  terms[0],
					"value": terms[1],
				}).
				Error("Unknown filter term")
			return match, fmt.Errorf("unknown filter term '%s'", terms[0])
		}
	}
	return match, nil
}

func main() {
	var app App

	// This application is not configured by command line options, so
	// if we have an unknown options or they used -h/--help to ask for
	// usage, give it to them
	var flags flag.FlagSet
	err := flags.Parse(os.Args[1:])
	if err != nil {
		envconfig.Usage("", &(app))
		return
	}

	// Load the application configuration from the environment and initialize
	// the logging system
	err = envconfig.Process("", &app)
	if err != nil {
		log.WithError(err).Fatal("Unable to parse application configuration")
	}

	// Set the logging level, if it can't be parsed then default to warning
	logLevel, err := log.ParseLevel(app.LogLevel)
	if err != nil {
		log.
			WithFields(log.Fields{
				"log-level": app.LogLevel,
			}).
			WithError(err).
			Warn("Unable to parse log level specified, defaulting to Warning")
		logLevel = log.WarnLevel
	}
	log.SetLevel(logLevel)

	// If the help message is requested, then display and return
	if app.ShowHelp {
		envconfig.Usage("", &app)
		return
	}

	// Optional TLS on the switch side
	var tlsConfig *tls.Config
	if app.TlsCert != "" || app.TlsKey != "" {
		cert, err := tls.LoadX509KeyPair(app.TlsCert, app.TlsKey)
		if err != nil {
			log.
				WithFields(log.Fields{
					"cert": app.TlsCert,
					"key":  app.TlsKey,
				}).
				WithError(err).
				Fatal("Unable to load TLS key pair")
		}
		tlsConfig = &tls.Config{Certificates: []tls.Certificate{cert}}
	}

	app.dispatcher = dispatch.NewDispatcher()
	app.paths = datapath.NewRegistry()

	// Register the packet monitor component
	filter, err := parseFilter(app.MonitorFilter)
	if err != nil {
		log.WithError(err).Fatal("Unable to parse monitor filter")
	}
	mon := monitor.New(filter)
	app.dispatcher.Subscribe(mon, mon.Interest())

	// Create and invoke the API sub-system
	app.api = api.NewAPI(app.ApiOn, app.paths)
	go app.api.ListenAndServe()

	// Listen and serve device connections
	app.server = connection.NewServer(app.ListenOn, connection.Config{
		EchoInterval:       app.EchoInterval,
		EchoMissLimit:      app.EchoMisses,
		TransactionTimeout: app.XactTimeout,
		SendQueueDepth:     app.SendQueue,
	}, app.dispatcher, app.paths, tlsConfig)
	log.Fatal(app.server.ListenAndServe())
}
