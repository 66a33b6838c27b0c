package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/didip/tollbooth/v6"
	"github.com/go-resty/resty/v2"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/urfave/cli/v2"

	"github.com/leasenet/ledgerclient/cmd/utils"
	"github.com/leasenet/ledgerclient/log"
)

const (
	statusPath      = "/status"
	statusRateLimit = 10 // requests per second per client
)

var (
	statusAddrFlag = &cli.StringFlag{
		Name:  "status.addr",
		Usage: "serve the watcher status over http on this address (eg. 127.0.0.1:8480)",
	}
	statusURLFlag = &cli.StringFlag{
		Name:  "status.url",
		Usage: "base url of a watcher status server",
		Value: "http://127.0.0.1:8480",
	}

	statusCommand = &cli.Command{
		Action: statusAction,
		Name:   "status",
		Usage:  "query the status server of a running watcher",
		Flags:  []cli.Flag{statusURLFlag, utils.VerbosityFlag},
	}
)

// watchStatus is served on the status path.
type watchStatus struct {
	State       string   `json:"state"`
	Endpoint    string   `json:"endpoint"`
	LedgerIndex uint32   `json:"ledgerIndex"`
	Watched     []string `json:"watched"`
	Events      uint64   `json:"events"`
	Failures    uint64   `json:"failures"`
}

type statusSource func() *watchStatus

func newStatusRouter(src statusSource) *mux.Router {
	r := mux.NewRouter()
	lmt := tollbooth.NewLimiter(statusRateLimit, nil)
	r.Handle(statusPath, tollbooth.LimitFuncHandler(lmt, func(w http.ResponseWriter, req *http.Request) {
		writeResponse(w, src(), nil)
	})).Methods(http.MethodGet)
	r.HandleFunc(statusPath, warnHandler)
	return r
}

// startStatusServer serves the status until ctx is done.
func startStatusServer(ctx context.Context, addr string, src statusSource) {
	corsOptions := []handlers.CORSOption{
		handlers.AllowedMethods([]string{http.MethodGet}),
	}
	svr := &http.Server{
		Addr:         addr,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		Handler:      handlers.CORS(corsOptions...)(newStatusRouter(src)),
	}
	log.Info("status server listen and serving", "addr", addr)
	go func() {
		if err := svr.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("status server error", "err", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = svr.Shutdown(shutdownCtx)
	}()
}

func writeResponse(w http.ResponseWriter, resp interface{}, err error) {
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonData, err := json.Marshal(resp)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(jsonData)
}

func warnHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusMethodNotAllowed)
	fmt.Fprintf(w, "Forbid '%v' on '%v'\n", r.Method, r.RequestURI)
}

func fetchStatus(ctx context.Context, baseURL string) (*watchStatus, error) {
	var status watchStatus
	resp, err := resty.New().
		SetHostURL(baseURL).
		SetTimeout(10 * time.Second).
		R().
		SetContext(ctx).
		SetResult(&status).
		Get(statusPath)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("status server replied %v", resp.Status())
	}
	return &status, nil
}

func statusAction(ctx *cli.Context) error {
	utils.SetLogger(ctx)
	status, err := fetchStatus(ctx.Context, ctx.String(statusURLFlag.Name))
	if err != nil {
		return err
	}
	infoStyle.Printf("%-10s %s\n", status.State, status.Endpoint)
	fmt.Printf("ledger     %d\n", status.LedgerIndex)
	fmt.Printf("events     %d (failed %d)\n", status.Events, status.Failures)
	for _, address := range status.Watched {
		hostStyle.Printf("watching   %s\n", address)
	}
	return nil
}
