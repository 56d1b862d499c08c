// This package implements the ofcore REST API that can be used to list
// connected devices and push OpenFlow messages down to them
package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/ciena/ofcore/datapath"
	"github.com/ciena/ofcore/metrics"
	"github.com/ciena/ofcore/openflow"
)

// maxMessageBytes bounds the request body for packet out posts; no
// single OpenFlow message can exceed its 16 bit length field.
const maxMessageBytes = 0x10000

// API serves the northbound REST surface over the datapath registry.
type API struct {
	ListenOn string

	paths  *datapath.Registry
	router *mux.Router
}

// Used to create a HTTP response that lists all the known DPIDs
type DevicesResponse struct {
	Devices []string `json:"devices"`
}

// Returns the list of DPIDs known to the system as a JSON array
func (api *API) ListDevicesHandler(resp http.ResponseWriter, req *http.Request) {
	data := DevicesResponse{
		Devices: []string{},
	}
	for _, dpid := range api.paths.List() {
		data.Devices = append(data.Devices, datapath.DPIDString(dpid))
	}

	bytes, err := json.Marshal(data)
	if err != nil {
		http.Error(resp,
			fmt.Sprintf("Unable to marshal device list : %s", err.Error()),
			http.StatusInternalServerError)
		return
	}
	resp.Header().Set("Content-type", "application/json")
	resp.Write(bytes)
}

// Used to create a HTTP response describing one connected device
type DeviceResponse struct {
	DPID    string `json:"dpid"`
	Version string `json:"version"`
	Address string `json:"address"`
}

// Returns the negotiated version and transport address of one device
func (api *API) GetDeviceHandler(resp http.ResponseWriter, req *http.Request) {
	vars := mux.Vars(req)
	dpid, err := strconv.ParseUint(vars["dpid"], 0, 64)
	if err != nil {
		http.Error(resp, fmt.Sprintf("DPID doesn't reference a device, '%s' : %s", vars["dpid"], err), http.StatusNotFound)
		return
	}

	sw, ok := api.paths.Lookup(dpid)
	if !ok {
		http.Error(resp, fmt.Sprintf("DPID not found, '%s'", vars["dpid"]), http.StatusNotFound)
		return
	}

	data := DeviceResponse{
		DPID:    datapath.DPIDString(dpid),
		Version: fmt.Sprintf("0x%02x", sw.Version()),
		Address: sw.RemoteAddr().String(),
	}
	bytes, err := json.Marshal(data)
	if err != nil {
		http.Error(resp,
			fmt.Sprintf("Unable to marshal device : %s", err.Error()),
			http.StatusInternalServerError)
		return
	}
	resp.Header().Set("Content-type", "application/json")
	resp.Write(bytes)
}

// Handles an HTTP request to send an OpenFlow message to a given
// switch. The payload is the wire encoding of a complete message,
// common header included. The message is decoded against the switch's
// negotiated version before it is queued, so a malformed payload is
// rejected here rather than poisoning the connection.
func (api *API) SendHandler(resp http.ResponseWriter, req *http.Request) {
	defer req.Body.Close()

	vars := mux.Vars(req)
	log.WithFields(log.Fields{
		"dpid": vars["dpid"],
	}).Debug("Send request received")
	dpid, err := strconv.ParseUint(vars["dpid"], 0, 64)
	if err != nil {
		log.WithFields(log.Fields{
			"dpid": vars["dpid"],
		}).Warn("Unable to parse given DPID")
		http.Error(resp, fmt.Sprintf("DPID doesn't reference a device, '%s' : %s", vars["dpid"], err), http.StatusNotFound)
		return
	}

	sw, ok := api.paths.Lookup(dpid)
	if !ok {
		log.WithFields(log.Fields{
			"dpid": vars["dpid"],
		}).Warn("Unable to find connection for DPID, unknown device")
		http.Error(resp, fmt.Sprintf("DPID not found, '%s'", vars["dpid"]), http.StatusNotFound)
		return
	}

	data, err := io.ReadAll(io.LimitReader(req.Body, maxMessageBytes))
	if err != nil {
		http.Error(resp, err.Error(), http.StatusInternalServerError)
		return
	}

	m, err := openflow.Decode(sw.Version(), data)
	if err != nil {
		log.WithFields(log.Fields{
			"dpid":  vars["dpid"],
			"error": err.Error(),
		}).Warn("Rejecting undecodable message")
		http.Error(resp, err.Error(), http.StatusBadRequest)
		return
	}

	if err := sw.Send(m); err != nil {
		http.Error(resp, err.Error(), http.StatusServiceUnavailable)
		return
	}
}

// Properly instantiates a new API instance over the given registry.
func NewAPI(listenOn string, paths *datapath.Registry) *API {
	api := &API{
		ListenOn: listenOn,
		paths:    paths,
		router:   mux.NewRouter(),
	}

	api.router.
		HandleFunc("/ofcore/{dpid}", api.SendHandler).
		Methods("POST").
		Headers("Content-type", "application/octet-stream")
	api.router.
		HandleFunc("/ofcore/{dpid}", api.GetDeviceHandler).
		Methods("GET")
	api.router.
		HandleFunc("/ofcore", api.ListDevicesHandler).
		Methods("GET")
	api.router.
		Handle("/metrics", metrics.Handler()).
		Methods("GET")
	return api
}

func (api *API) ListenAndServe() {
	srv := &http.Server{
		Addr:         api.ListenOn,
		Handler:      api.router,
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
	}

	log.WithFields(log.Fields{
		"connect-point": api.ListenOn,
	}).Debug("Listening for REST API requests")
	log.Fatal(srv.ListenAndServe())
}
