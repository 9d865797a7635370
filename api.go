package main

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/rms_backend/appctx"
	"github.com/mmdatafocus/rms_backend/config"
	"github.com/mmdatafocus/rms_backend/inventory"
	"github.com/mmdatafocus/rms_backend/location"
	"github.com/mmdatafocus/rms_backend/models"
	"github.com/mmdatafocus/rms_backend/requisition"
	"github.com/mmdatafocus/rms_backend/utils"
	"github.com/shopspring/decimal"
)

// registerAPI mounts the JSON endpoints for requisitions, stock and
// locations. Request bodies use the exported field names of the service
// inputs (case-insensitive).
func registerAPI(g *gin.RouterGroup) {
	g.POST("/req", ready(func(c *gin.Context, app *services) {
		var in requisition.NewReq
		if bind(c, &in) {
			respond(c, http.StatusCreated, call(app.reqs.CreateReq(c.Request.Context(), in)))
		}
	}))
	g.POST("/req/:id/items", ready(func(c *gin.Context, app *services) {
		var in requisition.NewItem
		if id, ok := param(c); ok && bind(c, &in) {
			respond(c, http.StatusCreated, call(app.reqs.AddItem(c.Request.Context(), id, in)))
		}
	}))
	g.POST("/req/:id/submit", ready(reqAction(func(app *services) reqFn { return app.reqs.Submit })))
	g.POST("/req/:id/approve", ready(reqAction(func(app *services) reqFn { return app.reqs.Approve })))
	g.POST("/req/:id/cancel", ready(reqAction(func(app *services) reqFn { return app.reqs.Cancel })))

	g.POST("/send", ready(func(c *gin.Context, app *services) {
		var in requisition.NewSend
		if bind(c, &in) {
			respond(c, http.StatusCreated, call(app.reqs.CreateSend(c.Request.Context(), in)))
		}
	}))
	g.POST("/send/:id/process", ready(func(c *gin.Context, app *services) {
		if id, ok := param(c); ok {
			respond(c, http.StatusOK, call(app.reqs.ProcessSend(c.Request.Context(), id)))
		}
	}))
	g.POST("/recv", ready(func(c *gin.Context, app *services) {
		var in requisition.NewRecv
		if bind(c, &in) {
			respond(c, http.StatusCreated, call(app.reqs.CreateRecv(c.Request.Context(), in)))
		}
	}))
	g.POST("/recv/:id/process", ready(func(c *gin.Context, app *services) {
		if id, ok := param(c); ok {
			respond(c, http.StatusOK, call(app.reqs.ProcessRecv(c.Request.Context(), id)))
		}
	}))

	g.POST("/warehouse", ready(func(c *gin.Context, app *services) {
		var in inventory.NewWarehouse
		if !bind(c, &in) {
			return
		}
		site, wh, err := app.stock.RegisterWarehouse(c.Request.Context(), in)
		respond(c, http.StatusCreated, result{gin.H{"site": site, "warehouse": wh}, err})
	}))
	g.POST("/adj", ready(func(c *gin.Context, app *services) {
		var in inventory.AdjInput
		if bind(c, &in) {
			respond(c, http.StatusCreated, call(app.stock.OpenAdj(c.Request.Context(), in)))
		}
	}))
	g.POST("/adj/:id/close", ready(func(c *gin.Context, app *services) {
		if id, ok := param(c); ok {
			respond(c, http.StatusOK, call(app.stock.CloseAdj(c.Request.Context(), id)))
		}
	}))
	g.POST("/kit", ready(func(c *gin.Context, app *services) {
		var in inventory.KitInput
		if bind(c, &in) {
			respond(c, http.StatusCreated, call(app.stock.Kit(c.Request.Context(), in)))
		}
	}))
	g.GET("/site/:id/stock/:item", ready(func(c *gin.Context, app *services) {
		site, ok := param(c)
		if !ok {
			return
		}
		item, err := strconv.Atoi(c.Param("item"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid item"})
			return
		}
		qty, err := app.stock.Stock(c.Request.Context(), site, item)
		if err != nil {
			respond(c, http.StatusOK, result{err: err})
			return
		}
		card, err := app.stock.StockCard(c.Request.Context(), site, item)
		respond(c, http.StatusOK, result{gin.H{"quantity": qty, "card": card}, err})
	}))
	g.PUT("/site/:id/minimum/:item", ready(func(c *gin.Context, app *services) {
		var body struct {
			Quantity decimal.Decimal `json:"quantity"`
		}
		site, ok := param(c)
		if !ok {
			return
		}
		item, err := strconv.Atoi(c.Param("item"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid item"})
			return
		}
		if !bind(c, &body) {
			return
		}
		respond(c, http.StatusOK, call(app.stock.SetMinimum(c.Request.Context(), site, item, body.Quantity)))
	}))

	g.PUT("/location/:id", ready(func(c *gin.Context, app *services) {
		var l models.Location
		id, ok := param(c)
		if !ok || !bind(c, &l) {
			return
		}
		l.ID = id
		_, err := app.tree.UpdateLocationTree(c.Request.Context(), &l)
		respond(c, http.StatusOK, result{&l, err})
	}))
	g.GET("/location/:id/contains", ready(func(c *gin.Context, app *services) {
		id, ok := param(c)
		if !ok {
			return
		}
		lat, lon, ok := latLon(c)
		if !ok {
			return
		}
		in, err := app.tree.Contains(c.Request.Context(), id, lat, lon)
		respond(c, http.StatusOK, result{gin.H{"contains": in}, err})
	}))
	g.GET("/location/find", ready(func(c *gin.Context, app *services) {
		lat, lon, ok := latLon(c)
		if !ok {
			return
		}
		respond(c, http.StatusOK, call(app.tree.FindContaining(c.Request.Context(), c.Query("level"), lat, lon)))
	}))
}

type reqFn func(ctx context.Context, id int) (*models.Req, error)

func reqAction(pick func(app *services) reqFn) func(c *gin.Context, app *services) {
	return func(c *gin.Context, app *services) {
		if id, ok := param(c); ok {
			respond(c, http.StatusOK, call(pick(app)(c.Request.Context(), id)))
		}
	}
}

type result struct {
	data any
	err  error
}

func call(v any, err error) result { return result{v, err} }

func bind(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return false
	}
	return true
}

func param(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

func latLon(c *gin.Context) (float64, float64, bool) {
	lat, err1 := strconv.ParseFloat(c.Query("lat"), 64)
	lon, err2 := strconv.ParseFloat(c.Query("lon"), 64)
	if err1 != nil || err2 != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "lat and lon are required"})
		return 0, 0, false
	}
	return lat, lon, true
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, requisition.ErrForbidden), errors.Is(err, requisition.ErrNotApprover):
		return http.StatusForbidden
	case utils.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, requisition.ErrInvalidTransition),
		errors.Is(err, requisition.ErrAlreadyApproved),
		errors.Is(err, requisition.ErrNoItems),
		errors.Is(err, inventory.ErrInsufficientStock),
		errors.Is(err, inventory.ErrAdjClosed),
		errors.Is(err, inventory.ErrNotKit),
		utils.IsDuplicate(err):
		return http.StatusConflict
	case errors.Is(err, location.ErrMissingID), strings.HasPrefix(err.Error(), "invalid input"):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// respond writes data with the session messages of the request, or the
// error mapped to a status.
func respond(c *gin.Context, status int, r result) {
	if r.err != nil {
		code := statusOf(r.err)
		if code == http.StatusInternalServerError {
			config.LogError(config.GetLogger(), "api.go", c.FullPath(), "handler", c.Param("id"), r.err)
			_ = c.Error(r.err)
			c.JSON(code, gin.H{"error": "internal error"})
			return
		}
		c.JSON(code, gin.H{"error": r.err.Error()})
		return
	}
	c.JSON(status, gin.H{
		"data":     r.data,
		"messages": appctx.GetSession(c.Request.Context()).Messages(),
	})
}
