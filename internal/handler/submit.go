package handler

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"net/netip"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/geobeacon/backend/internal/codec"
	"github.com/geobeacon/backend/internal/geoip"
	"github.com/geobeacon/backend/internal/geolocate"
	"github.com/geobeacon/backend/internal/intake"
	"github.com/geobeacon/backend/internal/metrics"
	"github.com/geobeacon/backend/internal/models"
	"github.com/geobeacon/backend/internal/store"
)

type handlers struct {
	intake    *intake.Service
	responder *geolocate.Responder
	cellStore *store.Store
	geoip     *geoip.Table
	maxBody   int64
	log       *logrus.Entry
}

func (h *handlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type submitBody struct {
	Items []json.RawMessage `json:"items"`
}

// submit implements POST /v2/geosubmit.
func (h *handlers) submit(c *gin.Context) {
	userAgent := c.GetHeader("User-Agent")

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBody)

	var body submitBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": 400, "message": "malformed request body"})
		return
	}

	batch := make([]models.Report, 0, len(body.Items))
	raw := make([][]byte, 0, len(body.Items))
	for _, item := range body.Items {
		report, err := codec.Decode(item)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "message": "malformed report"})
			return
		}
		batch = append(batch, *report)
		raw = append(raw, item)
	}

	ack, err := h.intake.Submit(c.Request.Context(), batch, raw, userAgent)
	if err != nil {
		h.log.WithError(err).Error("submission intake failed")
		c.JSON(http.StatusBadRequest, gin.H{"code": 400, "message": err.Error()})
		return
	}

	metrics.SubmissionReportsTotal.WithLabelValues("accepted").Add(float64(ack.Accepted))
	metrics.SubmissionReportsTotal.WithLabelValues("dropped").Add(float64(ack.Dropped))

	c.JSON(http.StatusOK, gin.H{"accepted": ack.Accepted, "dropped": ack.Dropped})
}

// geolocate implements POST /v1/geolocate.
func (h *handlers) geolocate(c *gin.Context) {
	var req geolocate.Request
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "message": "malformed request body"})
			return
		}
	}

	clientIP, _ := parseClientIP(c.ClientIP())

	result, err := h.responder.Locate(c.Request.Context(), req, clientIP)
	if err == geolocate.ErrNotFound {
		metrics.GeolocateRequestsTotal.WithLabelValues("not_found").Inc()
		c.JSON(http.StatusNotFound, notFoundBody())
		return
	}
	if err != nil {
		h.log.WithError(err).Error("geolocate failed")
		c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "message": "internal error"})
		return
	}

	metrics.GeolocateRequestsTotal.WithLabelValues(result.Fallback).Inc()
	c.JSON(http.StatusOK, gin.H{
		"location": gin.H{"lat": result.Lat, "lng": result.Lng},
		"accuracy": result.Accuracy,
	})
}

// country implements POST /v1/country.
func (h *handlers) country(c *gin.Context) {
	clientIP, ok := parseClientIP(c.ClientIP())
	if !ok {
		c.JSON(http.StatusNotFound, notFoundBody())
		return
	}

	country, found := h.geoip.Lookup(clientIP)
	if !found {
		c.JSON(http.StatusNotFound, notFoundBody())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"license":       "geobeacon-internal",
		"country_code":  country.Code,
		"country_name":  country.Name,
		"fallback":      "ipf",
	})
}

// cellsInArea implements GET /v0/cells/{radio}/{country}/{network}/{area}.
func (h *handlers) cellsInArea(c *gin.Context) {
	radio, err := models.ParseCellRadio(c.Param("radio"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": 400, "message": "unknown radio type"})
		return
	}
	country, err1 := strconv.Atoi(c.Param("country"))
	network, err2 := strconv.Atoi(c.Param("network"))
	area, err3 := strconv.Atoi(c.Param("area"))
	if err1 != nil || err2 != nil || err3 != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": 400, "message": "country/network/area must be integers"})
		return
	}

	rows, err := h.cellStore.ListCellsInArea(c.Request.Context(), radio, int32(country), int32(network), int32(area))
	if err != nil {
		h.log.WithError(err).Error("cell-area export failed")
		c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "message": "internal error"})
		return
	}
	if len(rows) == 0 {
		c.Status(http.StatusNoContent)
		return
	}

	filename := fmt.Sprintf("%s-%d-%d-%d.csv", c.Param("radio"), country, network, area)
	c.Header("Content-Disposition", "attachment; filename=\""+filename+"\"")
	c.Header("Cache-Control", "public, max-age=604800")
	c.Header("Content-Type", "text/csv")

	w := csv.NewWriter(c.Writer)
	_ = w.Write([]string{"cell", "unit", "lon", "lat", "range", "created", "updated"})
	for _, r := range rows {
		_ = w.Write([]string{
			strconv.FormatInt(r.CellID, 10),
			strconv.Itoa(int(r.Unit)),
			strconv.FormatFloat(r.Lon, 'f', 6, 64),
			strconv.FormatFloat(r.Lat, 'f', 6, 64),
			strconv.FormatFloat(r.RangeM, 'f', 1, 64),
			r.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
			r.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		h.log.WithError(err).Warn("cell-area export: response write failed")
	}
}

func parseClientIP(s string) (netip.Addr, bool) {
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}, false
	}
	return addr, true
}

func notFoundBody() gin.H {
	return gin.H{"error": gin.H{
		"errors":  []gin.H{{"domain": "geolocation", "reason": "notFound", "message": "not found"}},
		"code":    404,
		"message": "Not found",
	}}
}
