// Package pprof contains a pprof exporter.
package pprof

import (
	"strconv"
	"time"

	ginpprof "github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"

	"github.com/ovframework/ovf/internal/conf"
	"github.com/ovframework/ovf/internal/logger"
	"github.com/ovframework/ovf/internal/protocols/httpp"
)

type pprofParent interface {
	logger.Writer
}

// PPROF is a pprof exporter.
type PPROF struct {
	Address     string
	ReadTimeout conf.StringDuration
	Parent      pprofParent

	httpServer *httpp.Server
}

// Initialize initializes PPROF.
func (pp *PPROF) Initialize() error {
	router := gin.New()
	ginpprof.Register(router)

	pp.httpServer = &httpp.Server{
		Address:     pp.Address,
		ReadTimeout: time.Duration(pp.ReadTimeout),
		// profiles are collected for 30 seconds by default
		WriteTimeout: 60 * time.Second,
		Handler:      router,
		Parent:       pp,
	}
	err := pp.httpServer.Initialize()
	if err != nil {
		return err
	}

	pp.Log(logger.Info, "listener opened on "+pp.httpServer.Addr().String())

	return nil
}

// Close closes PPROF.
func (pp *PPROF) Close() {
	pp.Log(logger.Info, "listener is closing")
	pp.httpServer.Close()
}

// Log implements logger.Writer.
func (pp *PPROF) Log(level logger.Level, format string, args ...interface{}) {
	pp.Parent.Log(level, "[pprof] "+format, args...)
}

// String implements fmt.Stringer.
func (pp *PPROF) String() string {
	return "pprof on " + strconv.Quote(pp.Address)
}
