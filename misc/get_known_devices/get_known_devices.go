package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/kelseyhightower/envconfig"
	log "github.com/sirupsen/logrus"
)

type App struct {
	ShowHelp  bool   `envconfig:"HELP" default:"false" desc:"show this message"`
	OfCoreAPI string `envconfig:"OFCORE_API" default:"http://127.0.0.1:8002" desc:"HOST:PORT on which to connect to ofcore REST API"`
}

type devicesResponse struct {
	Devices []string `json:"devices"`
}

type deviceResponse struct {
	DPID    string `json:"dpid"`
	Version string `json:"version"`
	Address string `json:"address"`
}

// fetch performs one GET against the ofcore API and decodes the JSON
// response into out.
func fetch(base, path string, out interface{}) error {
	resp, err := http.Get(base + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if int(resp.StatusCode/100) != 2 {
		return fmt.Errorf("non success code returned from ofcore : %s", resp.Status)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func main() {
	var app App

	var flags flag.FlagSet
	err := flags.Parse(os.Args[1:])
	if err != nil {
		envconfig.Usage("", &(app))
		return
	}

	err = envconfig.Process("", &app)
	if err != nil {
		log.WithError(err).Fatal("Unable to parse application configuration")
	}
	if app.ShowHelp {
		envconfig.Usage("", &app)
		return
	}

	var list devicesResponse
	if err = fetch(app.OfCoreAPI, "/ofcore", &list); err != nil {
		log.
			WithFields(log.Fields{
				"ofcore": app.OfCoreAPI,
			}).
			WithError(err).
			Fatal("Unable to query ofcore API end point")
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "DPID\tVERSION\tADDRESS")
	for _, name := range list.Devices {
		// The list endpoint renders DPIDs with an of: prefix; the
		// device endpoint takes the bare hex id.
		id := strings.TrimPrefix(name, "of:")
		var dev deviceResponse
		if err = fetch(app.OfCoreAPI, "/ofcore/"+id, &dev); err != nil {
			log.
				WithFields(log.Fields{
					"ofcore": app.OfCoreAPI,
					"device": name,
				}).
				WithError(err).
				Fatal("Unable to query device from ofcore")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", dev.DPID, dev.Version, dev.Address)
	}
	w.Flush()
}
