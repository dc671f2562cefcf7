package http

import (
	"bytes"
	"context"
	"errors"
	nethttp "net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	g "maragu.dev/gomponents"
	h "maragu.dev/gomponents/html"

	"go-sample-plates-report/internal/connectors/samples"
	"go-sample-plates-report/internal/export"
	"go-sample-plates-report/internal/platedata"
	"go-sample-plates-report/internal/publish"
	"go-sample-plates-report/internal/render"
	"go-sample-plates-report/internal/report"
)

// loadedSnapshot writes a 503 and reports false when there is no dataset to
// serve from.
func loadedSnapshot(w nethttp.ResponseWriter, cat *catalog) (snapshot, bool) {
	if cat == nil {
		writeJSON(w, nethttp.StatusServiceUnavailable, map[string]any{
			"error": "data source disabled (set APP_DATA_SOURCE)",
		})
		return snapshot{}, false
	}
	snap, err := cat.Snapshot()
	if err != nil {
		writeJSON(w, nethttp.StatusServiceUnavailable, map[string]any{
			"error": "dataset not loaded yet (POST /api/v1/reload)",
		})
		return snapshot{}, false
	}
	return snap, true
}

// criteriaFromQuery reads one query parameter per layout control. Text
// controls take the raw value; flag controls are checked by any truthy value.
func criteriaFromQuery(r *nethttp.Request, layout report.Layout) report.Criteria {
	q := r.URL.Query()
	c := report.NewCriteria()
	for _, def := range layout.Criteria {
		v := q.Get(def.Control)
		if v == "" {
			continue
		}
		if def.Kind == report.Flag {
			c = c.WithChecked(def.Control, platedata.Truthy(v))
			continue
		}
		c = c.WithText(def.Control, v)
	}
	return c
}

// stateFromRequest filters the snapshot with the request's criteria and
// moves to the requested page. A missing or unparseable page keeps page 1.
func stateFromRequest(r *nethttp.Request, snap snapshot, layout report.Layout) *report.State {
	s := report.NewState(snap.Dataset, layout)
	s.FilterChange(criteriaFromQuery(r, layout))
	if raw := r.URL.Query().Get("page"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			s.ChangePage(n)
		}
	}
	return s
}

func reportPageHandler(cat *catalog, layout report.Layout) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.URL.Path != "/" {
			writeJSON(w, nethttp.StatusNotFound, map[string]any{"error": "not found"})
			return
		}
		snap, ok := loadedSnapshot(w, cat)
		if !ok {
			return
		}
		writeHTML(w, "page", render.ReportPage(render.Page{
			State:       stateFromRequest(r, snap, layout),
			Coverage:    snap.Coverage,
			LivePath:    LivePath,
			GeneratedAt: snap.LoadedAt,
		}))
	}
}

func printPageHandler(cat *catalog, layout report.Layout) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		snap, ok := loadedSnapshot(w, cat)
		if !ok {
			return
		}
		writeHTML(w, "print", render.PrintPage(render.Page{
			State:       stateFromRequest(r, snap, layout),
			Coverage:    snap.Coverage,
			GeneratedAt: snap.LoadedAt,
		}))
	}
}

// writeHTML renders into memory first so a failed render is a clean 500.
func writeHTML(w nethttp.ResponseWriter, format string, n g.Node) {
	start := time.Now()
	var buf bytes.Buffer
	if err := render.Write(&buf, n); err != nil {
		recordReportRun(format, "error", time.Since(start).Seconds())
		writeJSON(w, nethttp.StatusInternalServerError, map[string]any{
			"error": "failed to render report",
		})
		return
	}
	recordReportRun(format, "ok", time.Since(start).Seconds())
	w.Header().Set("Content-Type", publish.ContentTypeHTML)
	w.WriteHeader(nethttp.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func platesHandler(cat *catalog, layout report.Layout) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		snap, ok := loadedSnapshot(w, cat)
		if !ok {
			return
		}
		s := stateFromRequest(r, snap, layout)

		data := map[string]any{
			"plate": nil,
			"wells": []platedata.Well{},
			"rows":  report.BuildTableRows(s),
		}
		if p, ok := s.CurrentPlate(); ok {
			data["plate"] = p
			data["wells"] = s.MatchingWells(p)
		}
		writeJSON(w, nethttp.StatusOK, map[string]any{
			"meta": map[string]any{
				"page":     s.Page(),
				"max_page": s.MaxPage(),
				"label":    s.MaxPageLabel(),
				"plates":   len(s.FilteredPlates()),
			},
			"data": data,
		})
	}
}

func plateTableHandler(cat *catalog, layout report.Layout) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		snap, ok := loadedSnapshot(w, cat)
		if !ok {
			return
		}
		s := stateFromRequest(r, snap, layout)
		w.Header().Set("X-Report-Page", strconv.Itoa(s.Page()))
		w.Header().Set("X-Report-Max-Page", strconv.Itoa(s.MaxPage()))
		writeHTML(w, "table", render.BuildTable(report.BuildTableRows(s), h.ID(render.TableBodyID)))
	}
}

func coverageHandler(cat *catalog) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, _ *nethttp.Request) {
		snap, ok := loadedSnapshot(w, cat)
		if !ok {
			return
		}
		cov := snap.Coverage
		writeJSON(w, nethttp.StatusOK, map[string]any{
			"meta": map[string]any{
				"families": len(cov.Families),
				"taxa":     cov.Total.Total,
				"imaged":   cov.Total.Imaged,
				"percent":  cov.Total.Percent,
			},
			"data": cov,
		})
	}
}

func layoutHandler(layout report.Layout) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, _ *nethttp.Request) {
		writeJSON(w, nethttp.StatusOK, map[string]any{
			"meta": map[string]any{
				"builtin": report.BuiltinLayoutNames(),
			},
			"data": layout,
		})
	}
}

func exportHandler(cat *catalog, layout report.Layout) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		snap, ok := loadedSnapshot(w, cat)
		if !ok {
			return
		}
		start := time.Now()
		var buf bytes.Buffer
		if err := export.Write(&buf, stateFromRequest(r, snap, layout), snap.Coverage); err != nil {
			recordReportRun("xlsx", "error", time.Since(start).Seconds())
			writeJSON(w, nethttp.StatusInternalServerError, map[string]any{
				"error": "failed to build workbook",
			})
			return
		}
		recordReportRun("xlsx", "ok", time.Since(start).Seconds())

		name := publish.ReportName(time.Now(), "xlsx")
		w.Header().Set("Content-Type", publish.ContentTypeXLSX)
		w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
		w.WriteHeader(nethttp.StatusOK)
		_, _ = w.Write(buf.Bytes())
	}
}

func sourceStatusHandler(source samples.Source) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if source == nil {
			writeJSON(w, nethttp.StatusServiceUnavailable, map[string]any{
				"error": "data source disabled (set APP_DATA_SOURCE)",
			})
			return
		}
		start := time.Now()
		stats, err := source.ServiceStats(r.Context())
		recordDBQuery(source.Kind(), "ServiceStats", time.Since(start).Seconds(), err)
		if err != nil {
			status := nethttp.StatusInternalServerError
			if errors.Is(err, context.DeadlineExceeded) {
				status = nethttp.StatusGatewayTimeout
			}
			writeJSON(w, status, map[string]any{
				"error": "failed to query data source",
			})
			return
		}
		writeJSON(w, nethttp.StatusOK, map[string]any{
			"meta": map[string]any{"kind": source.Kind()},
			"data": stats,
		})
	}
}

func reloadHandler(cat *catalog, logger zerolog.Logger) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodPost {
			w.Header().Set("Allow", nethttp.MethodPost)
			writeJSON(w, nethttp.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
			return
		}
		if cat == nil {
			writeJSON(w, nethttp.StatusServiceUnavailable, map[string]any{
				"error": "data source disabled (set APP_DATA_SOURCE)",
			})
			return
		}
		ds, err := cat.Load(r.Context())
		if err != nil {
			logger.Error().Err(err).Str("source", cat.source.Kind()).Msg("dataset reload failed")
			writeJSON(w, nethttp.StatusInternalServerError, map[string]any{
				"error": "failed to reload dataset",
			})
			return
		}
		writeJSON(w, nethttp.StatusOK, map[string]any{
			"meta": map[string]any{"source": cat.source.Kind()},
			"data": map[string]any{
				"plates": len(ds.Plates),
				"wells":  ds.WellCount(),
				"taxa":   len(ds.Taxa),
			},
		})
	}
}
