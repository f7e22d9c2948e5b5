// Package inspect turns a completed architecture context into a small HTTP
// server so that the annotated hierarchy and the insertion summary can be
// browsed while the artifacts are still in memory.
package inspect

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/pkg/browser"

	"github.com/sarchlab/prism/arch"
	"github.com/sarchlab/prism/netlist"
)

// An Inspector serves a read-only view of one architecture context.
type Inspector struct {
	ctx        *arch.Context
	portNumber int
	openInWeb  bool
}

// NewInspector creates an inspector over a context.
func NewInspector(ctx *arch.Context) *Inspector {
	return &Inspector{ctx: ctx}
}

// WithPortNumber sets the port of the inspection server.
func (i *Inspector) WithPortNumber(portNumber int) *Inspector {
	if portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is assigned to the inspection server, "+
				"which is not allowed. Using a random port instead.\n", portNumber)
		portNumber = 0
	}

	i.portNumber = portNumber

	return i
}

// WithBrowser opens the served address in the default browser.
func (i *Inspector) WithBrowser() *Inspector {
	i.openInWeb = true
	return i
}

// StartServer starts serving in the background and returns the address the
// server listens on.
func (i *Inspector) StartServer() string {
	r := mux.NewRouter()
	r.HandleFunc("/api/summary", i.summary)
	r.HandleFunc("/api/modules", i.listModules)
	r.HandleFunc("/api/module/{view}/{name}", i.moduleDetails)

	actualPort := ":0"
	if i.portNumber > 1000 {
		actualPort = ":" + strconv.Itoa(i.portNumber)
	}

	listener, err := net.Listen("tcp", actualPort)
	dieOnErr(err)

	addr := fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)
	fmt.Fprintf(os.Stderr, "Inspecting fabric with %s\n", addr)

	go func() {
		dieOnErr(http.Serve(listener, r))
	}()

	if i.openInWeb {
		dieOnErr(browser.OpenURL(addr))
	}

	return addr
}

type summaryResponse struct {
	ID      string       `json:"id"`
	Name    string       `json:"name"`
	Top     string       `json:"top"`
	Applied []string     `json:"applied_passes"`
	Summary arch.Summary `json:"summary"`
}

func (i *Inspector) summary(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, summaryResponse{
		ID:      i.ctx.ID(),
		Name:    i.ctx.Name(),
		Top:     string(i.ctx.TopKey()),
		Applied: i.ctx.AppliedKeys(),
		Summary: i.ctx.Summary,
	})
}

func (i *Inspector) listModules(w http.ResponseWriter, _ *http.Request) {
	out := make(map[string][]string)

	for _, view := range []netlist.View{
		netlist.ViewAbstract, netlist.ViewDesign,
	} {
		keys := i.ctx.DB.Keys(view)
		names := make([]string, 0, len(keys))
		for _, k := range keys {
			names = append(names, string(k))
		}

		out[view.String()] = names
	}

	writeJSON(w, out)
}

type portResponse struct {
	Name      string `json:"name"`
	Width     int    `json:"width"`
	Direction string `json:"direction"`
}

type instanceResponse struct {
	Key   string `json:"key"`
	Model string `json:"model"`
	Class string `json:"class"`
}

type moduleResponse struct {
	Name        string             `json:"name"`
	View        string             `json:"view"`
	Class       string             `json:"class"`
	Ports       []portResponse     `json:"ports"`
	Instances   []instanceResponse `json:"instances"`
	Connections int                `json:"connections"`
}

func (i *Inspector) moduleDetails(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var view netlist.View
	switch vars["view"] {
	case "abstract":
		view = netlist.ViewAbstract
	case "design":
		view = netlist.ViewDesign
	default:
		http.Error(w, "unknown view "+vars["view"], http.StatusNotFound)
		return
	}

	m := i.ctx.DB.Get(view, netlist.ModuleKey(vars["name"]))
	if m == nil {
		http.Error(w, "unknown module "+vars["name"], http.StatusNotFound)
		return
	}

	resp := moduleResponse{
		Name:        m.Name(),
		View:        m.View().String(),
		Class:       m.Class().String(),
		Connections: len(m.Connections()),
	}

	for _, p := range m.Ports() {
		resp.Ports = append(resp.Ports, portResponse{
			Name:      p.Name,
			Width:     p.Width,
			Direction: p.Direction.String(),
		})
	}

	for _, inst := range m.Instances() {
		resp.Instances = append(resp.Instances, instanceResponse{
			Key:   inst.Key.String(),
			Model: inst.Model.Name(),
			Class: inst.Model.Class().String(),
		})
	}

	writeJSON(w, resp)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	dieOnErr(json.NewEncoder(w).Encode(v))
}

func dieOnErr(err error) {
	if err != nil {
		panic(err)
	}
}
