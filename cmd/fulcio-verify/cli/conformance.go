package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"code.cloudfoundry.org/clock/fakeclock"
	"github.com/gorilla/mux"
	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type conformanceConfig struct {
	Addr string `envconfig:"ADDR" default:":8080"`
}

func conformanceCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "conformance",
		Short: "Serve the conformance-test execution endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var cfg conformanceConfig
			if err := envconfig.Process("fulcio_verify", &cfg); err != nil {
				return err
			}
			router := mux.NewRouter()
			router.Handle("/execute", &conformanceHandler{}).Methods(http.MethodPost)
			logrus.Infof("Serving conformance endpoint on %s", cfg.Addr)
			return http.ListenAndServe(cfg.Addr, router)
		},
	}
}

type executeRequest struct {
	Args []string `json:"args"`
	// Faketime is a unix-seconds string; the dispatched command runs under
	// a fixed UTC clock at that instant.
	Faketime string `json:"faketime"`
	Cwd      string `json:"cwd"`
}

type executeResponse struct {
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exitCode"`
}

// conformanceHandler dispatches CLI invocations in-process. Requests are
// serialized: parallel runs would race the working directory, the captured
// output streams, and the injected clock.
type conformanceHandler struct {
	mu sync.Mutex
}

func (h *conformanceHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("decoding request: %v", err), http.StatusBadRequest)
		return
	}
	seconds, err := strconv.ParseInt(req.Faketime, 10, 64)
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid faketime %q: %v", req.Faketime, err), http.StatusBadRequest)
		return
	}

	h.mu.Lock()
	resp := h.execute(req.Args, time.Unix(seconds, 0).UTC(), req.Cwd)
	h.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logrus.Errorf("Encoding conformance response: %v", err)
	}
}

func (h *conformanceHandler) execute(args []string, at time.Time, cwd string) executeResponse {
	var stdout, stderr bytes.Buffer

	if cwd != "" {
		prev, err := os.Getwd()
		if err != nil {
			return executeResponse{Stderr: err.Error(), ExitCode: 1}
		}
		if err := os.Chdir(cwd); err != nil {
			return executeResponse{Stderr: err.Error(), ExitCode: 1}
		}
		defer func() {
			if err := os.Chdir(prev); err != nil {
				logrus.Errorf("Restoring working directory: %v", err)
			}
		}()
	}

	prevLogOutput := logrus.StandardLogger().Out
	logrus.SetOutput(&stderr)
	defer logrus.SetOutput(prevLogOutput)

	cmd := NewWithClock(fakeclock.NewFakeClock(at))
	cmd.SetArgs(args)
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)

	exitCode := 0
	if err := cmd.Execute(); err != nil {
		exitCode = 1
	}
	return executeResponse{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: exitCode,
	}
}
