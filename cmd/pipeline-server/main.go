// Command pipeline-server exposes the step pipeline over HTTP: a single
// endpoint accepts a pipeline definition and streams back whatever the last
// step produces. Routing beyond that one endpoint, authentication, and TLS
// termination are left to whatever sits in front of this process.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/oarepo/file-pipeline-server/pkg/infrastructure/config"
	"github.com/oarepo/file-pipeline-server/pkg/infrastructure/logging"
	"github.com/oarepo/file-pipeline-server/pkg/pipeline"
	"github.com/oarepo/file-pipeline-server/pkg/pipeline/steps"
	"github.com/oarepo/file-pipeline-server/pkg/response"
)

type server struct {
	executor *pipeline.Executor
	logger   *logging.Logger
}

// runRequest is the wire shape of a pipeline definition: an ordered list of
// steps, each naming a registered step type plus its arguments. iat/exp are
// the outer auth collaborator's concern; the core only reads pipeline_steps.
type runRequest struct {
	PipelineSteps []stepRequest `json:"pipeline_steps"`
}

type stepRequest struct {
	Type      string         `json:"type"`
	Arguments pipeline.Args  `json:"arguments"`
}

func main() {
	var configFile = flag.String("config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logCfg := logging.DefaultConfig()
	if level, err := logging.ParseLogLevel(cfg.Logging.Level); err == nil {
		logCfg.Level = level
	}
	if cfg.Logging.Format == "json" {
		logCfg.Format = logging.JSONFormat
	}
	logCfg.ShowCaller = cfg.Logging.ShowCaller
	logCfg.EnableSanitizing = cfg.Logging.EnableSanitizing
	logger := logging.NewLogger(logCfg)

	registry := steps.NewDefaultRegistry(steps.Config{
		HTTPClient:      newSourceHTTPClient(cfg),
		LookaheadSize:   cfg.Source.LookaheadBytes,
		SeekBufferLimit: cfg.ZIP.SeekBufferLimitBytes,
		QueueCapacity:   cfg.Queue.Capacity,
		FanOutCapacity:  cfg.ZIP.FanOutCapacity,
		MaxImageWidth:   cfg.Image.MaxAllowedWidth,
		MaxImageHeight:  cfg.Image.MaxAllowedHeight,
	})

	srv := &server{
		executor: pipeline.NewExecutor(registry, logger),
		logger:   logger.WithComponent("server"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/run", srv.runHandler)

	httpServer := &http.Server{
		Addr:           cfg.Server.Address,
		Handler:        mux,
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   5 * time.Minute,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	fmt.Printf("file-pipeline-server listening on %s\n", cfg.Server.Address)
	log.Fatal(httpServer.ListenAndServe())
}

// newSourceHTTPClient builds the bounded-retry HTTP client Url carriers use
// to fetch source_url content: transient network failures on the HEAD or
// ranged-GET calls are retried with exponential backoff before surfacing as
// a pipeerr.Network error.
func newSourceHTTPClient(cfg *config.Config) *http.Client {
	client := retryablehttp.NewClient()
	client.Logger = nil
	client.RetryMax = cfg.Source.RetryMaxAttempts
	client.RetryWaitMin = time.Duration(cfg.Source.RetryWaitMinMillis) * time.Millisecond
	client.RetryWaitMax = time.Duration(cfg.Source.RetryWaitMaxMillis) * time.Millisecond
	client.HTTPClient.Timeout = time.Duration(cfg.Source.TimeoutSeconds) * time.Second
	return client.StandardClient()
}

func (s *server) runHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	specs := make([]pipeline.StepSpec, len(req.PipelineSteps))
	for i, s := range req.PipelineSteps {
		specs[i] = pipeline.StepSpec{Type: s.Type, Arguments: s.Arguments}
	}

	ctx := r.Context()
	outputs, teardown, err := s.executor.Run(ctx, specs)
	if err != nil {
		s.logger.Error("pipeline run failed", map[string]interface{}{"error": err.Error()})
		response.WriteError(w, err)
		return
	}
	defer teardown()

	result, err := outputs.Next(ctx)
	if err != nil {
		s.logger.Error("pipeline produced no output", map[string]interface{}{"error": err.Error()})
		response.WriteError(w, err)
		return
	}

	if err := response.Write(ctx, w, result); err != nil {
		s.logger.Error("failed to write response", map[string]interface{}{"error": err.Error()})
	}
}
