package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/r1k0/nuxhash/internal/config"
	"github.com/r1k0/nuxhash/internal/interfaces"
	"github.com/r1k0/nuxhash/internal/lib"
	"github.com/r1k0/nuxhash/internal/miners"
	"github.com/r1k0/nuxhash/internal/mining"
	"github.com/r1k0/nuxhash/internal/orchestrator"
)

type HTTPHandler struct {
	// appCtx bounds mining runs started over HTTP; the request context would
	// cancel the run as soon as the request finishes
	appCtx     context.Context
	controller *orchestrator.Controller
	recorder   *Recorder
	engines    *lib.Collection[miners.Miner]
	devices    []mining.Device
	cfg        *config.Config
	log        interfaces.ILogger
}

func NewHTTPHandler(appCtx context.Context, controller *orchestrator.Controller, recorder *Recorder, engines *lib.Collection[miners.Miner], devices []mining.Device, cfg *config.Config, log interfaces.ILogger) *HTTPHandler {
	return &HTTPHandler{
		appCtx:     appCtx,
		controller: controller,
		recorder:   recorder,
		engines:    engines,
		devices:    devices,
		cfg:        cfg,
		log:        log,
	}
}

func (h *HTTPHandler) GetStatus(ctx *gin.Context) {
	resp := gin.H{
		"state":      h.controller.State().String(),
		"assignment": h.controller.Assignment(),
	}
	if snapshot, ok := h.recorder.Latest(); ok {
		resp["snapshot"] = snapshot
	}
	ctx.JSON(http.StatusOK, resp)
}

func (h *HTTPHandler) GetStatusHistory(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"snapshots": h.recorder.History()})
}

func (h *HTTPHandler) GetDevices(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"devices": h.devices})
}

func (h *HTTPHandler) GetBalance(ctx *gin.Context) {
	balance, ok := h.recorder.Balance()
	if !ok {
		ctx.JSON(http.StatusOK, gin.H{"balance": nil})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"balance": balance})
}

func (h *HTTPHandler) GetMiners(ctx *gin.Context) {
	entries := []gin.H{}
	h.engines.Range(func(engine miners.Miner) bool {
		algos := []string{}
		for _, algo := range engine.Algorithms() {
			algos = append(algos, algo.Name())
		}
		entries = append(entries, gin.H{
			"id":         engine.ID(),
			"running":    engine.IsRunning(ctx.Request.Context()),
			"algorithms": algos,
		})
		return true
	})
	ctx.JSON(http.StatusOK, gin.H{"miners": entries})
}

func (h *HTTPHandler) GetConfig(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, h.cfg.GetSanitized())
}

func (h *HTTPHandler) StartMining(ctx *gin.Context) {
	err := h.controller.StartMining(h.appCtx)
	if err != nil {
		ctx.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *HTTPHandler) StopMining(ctx *gin.Context) {
	h.controller.StopMining()
	ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
}
