package main

import (
	"errors"
	"net/http"

	"github.com/go-echarts/statsview"
	"github.com/go-echarts/statsview/viewer"
	"github.com/go-logr/logr"
)

const statsViewPath = "/debug/statsview"

// launchStatsView serves live runtime charts (heap, GC, goroutines) while the
// emulator runs. The returned function shuts the server down.
func launchStatsView(addr string, log logr.Logger) func() {
	viewer.SetConfiguration(viewer.WithAddr(addr))
	mgr := statsview.New()

	go func() {
		if err := mgr.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(err, "stats server stopped")
		}
	}()

	log.Info("stats server available", "url", "http://"+addr+statsViewPath)
	return mgr.Stop
}
