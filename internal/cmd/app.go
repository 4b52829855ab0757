package cmd

import (
	"fmt"
	"os"
	"sync"

	"github.com/taxonline/admin/cli/pkg/api"
	"github.com/taxonline/admin/cli/pkg/client"
	"github.com/taxonline/admin/cli/pkg/config"
	"github.com/taxonline/admin/cli/pkg/formatter"
	"github.com/taxonline/admin/cli/pkg/logger"
	"github.com/taxonline/admin/cli/pkg/output"
	"github.com/taxonline/admin/cli/pkg/service"
	"github.com/taxonline/admin/cli/pkg/session"
	"github.com/taxonline/admin/cli/pkg/stream"
)

// App wires the session, the gateway and the view modules for one run.
type App struct {
	Store   *session.Store
	API     *api.API
	Streams *stream.Registry

	Auth       *service.AuthService
	Documents  *service.DocumentService
	Pipeline   *service.PipelineService
	Monitoring *service.MonitoringService
	Analytics  *service.AnalyticsService
	Testing    *service.TestingService
	Chunks     *service.ChunkService

	closeOnce sync.Once
}

var app *App

func newApp() *App {
	store := session.NewStore(session.NewFilePersister(config.GetSessionPath()))
	c := client.NewFromConfig(store, func() {
		formatter.PrintWarning("session expired, run 'taxonline-cli auth login'")
	})
	a := api.New(c)

	opts := stream.OptionsFromConfig(store)
	opts.OnEvent = printEvent
	opts.OnState = func(jobID int, s stream.State) {
		if s == stream.StateDisconnected {
			logger.Warn("Job stream disconnected, reconnecting", "job_id", jobID)
		}
	}
	streams := stream.NewRegistry(opts)

	return &App{
		Store:      store,
		API:        a,
		Streams:    streams,
		Auth:       service.NewAuthService(a, store),
		Documents:  service.NewDocumentService(a, store, streams),
		Pipeline:   service.NewPipelineService(a, store, streams),
		Monitoring: service.NewMonitoringService(a, store),
		Analytics:  service.NewAnalyticsService(a, store),
		Testing:    service.NewTestingService(a, store),
		Chunks:     service.NewChunkService(a, store),
	}
}

// Close stops every live job stream.
func (a *App) Close() {
	a.closeOnce.Do(a.Streams.CloseAll)
}

var printMu sync.Mutex

// printEvent writes one job log event as it arrives. Several jobs may be
// followed at once, so lines are written whole.
func printEvent(jobID int, ev stream.Event) {
	printMu.Lock()
	defer printMu.Unlock()

	if output.GetOutputFormat() == output.FormatJSON {
		line, err := output.FormatAsJSON(struct {
			JobID int `json:"job_id"`
			stream.Event
		}{jobID, ev})
		if err == nil {
			fmt.Fprintln(output.Out, line)
		}
		return
	}
	fmt.Fprintln(output.Out, formatter.EventLine(jobID, ev))
}

// downloadDir is where exports are written.
func downloadDir() string {
	if dir := config.GetString("output.download_dir"); dir != "" {
		return dir
	}
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}
