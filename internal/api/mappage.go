package api

import (
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"net/url"

	"drtnav/internal/model"
	"drtnav/internal/opt"
)

// vehicleColors mirrors the palette riders already know from the ops map.
var vehicleColors = []string{"red", "blue", "green", "purple", "orange"}

type mapVehicle struct {
	ID         string       `json:"id"`
	Color      string       `json:"color"`
	Requests   int          `json:"requests"`
	State      string       `json:"state"`
	Reason     string       `json:"reason,omitempty"`
	DistanceKm float64      `json:"distanceKm"`
	EstimateKm float64      `json:"estimateKm"`
	Geometry   [][2]float64 `json:"geometry"` // [lat, lng]
	Waypoints  [][2]float64 `json:"waypoints"`
	Sequence   []mapStop    `json:"sequence"`
}

type mapStop struct {
	Type      string  `json:"type"`
	RequestID string  `json:"requestId"`
	StopID    string  `json:"stopId"`
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	Time      string  `json:"time,omitempty"`
}

type mapPageData struct {
	HasRun   bool
	RunID    string
	Start    string
	End      string
	Payload  template.JS
	Degraded int
}

// FilterHandler validates the query window and redirects to the map page.
// Bad input fails fast with a problem response before any store access.
func (s *Server) FilterHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	start := r.URL.Query().Get("start")
	end := r.URL.Query().Get("end")
	f, err := parseTimeFilter(start, end)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid time window", err.Error(), r.URL.Path)
		return
	}

	q := url.Values{}
	if f.Start != nil {
		q.Set("start", f.Start.Format("2006-01-02 15:04"))
	}
	if f.End != nil {
		q.Set("end", f.End.Format("2006-01-02 15:04"))
	}
	target := "/"
	if len(q) > 0 {
		target += "?" + q.Encode()
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// MapHandler renders the interactive route map. A start/end window in the
// query triggers a fresh dispatch run over that window before rendering, so
// the filter form recomputes rather than re-displaying stale routes.
func (s *Server) MapHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeProblem(w, http.StatusNotFound, "Not found", "", r.URL.Path)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	data := mapPageData{
		Start: r.URL.Query().Get("start"),
		End:   r.URL.Query().Get("end"),
	}
	run := s.LatestRun()
	if data.Start != "" || data.End != "" {
		filter, err := parseTimeFilter(data.Start, data.End)
		if err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid time window", err.Error(), r.URL.Path)
			return
		}
		fresh, err := s.Engine.Run(r.Context(), filter, model.RunParams{})
		if err != nil {
			if errors.Is(err, opt.ErrNoVehicles) {
				writeProblem(w, http.StatusConflict, "No vehicles", "no vehicles available for dispatch", r.URL.Path)
				return
			}
			s.Log.Error().Err(err).Msg("filtered dispatch run failed")
			writeProblem(w, http.StatusInternalServerError, "Dispatch failed", err.Error(), r.URL.Path)
			return
		}
		s.setLatestRun(fresh)
		run = fresh
	}
	if run != nil {
		data.HasRun = true
		data.RunID = run.RunID
		data.Degraded = len(run.Degraded)

		var vehicles []mapVehicle
		for i, v := range run.Vehicles {
			rr := run.Routes[v.ID]
			mv := mapVehicle{
				ID:         v.ID,
				Color:      vehicleColors[i%len(vehicleColors)],
				Requests:   len(run.Assignments[v.ID]),
				State:      string(rr.State),
				Reason:     rr.Reason,
				DistanceKm: rr.DistanceKm,
				EstimateKm: rr.EstimateKm,
			}
			for _, p := range rr.Geometry {
				mv.Geometry = append(mv.Geometry, [2]float64{p.Lat, p.Lng})
			}
			for _, p := range rr.Waypoints {
				mv.Waypoints = append(mv.Waypoints, [2]float64{p.Lat, p.Lng})
			}
			for _, ev := range rr.Sequence {
				mv.Sequence = append(mv.Sequence, mapStop{
					Type:      string(ev.Type),
					RequestID: ev.RequestID,
					StopID:    ev.StopID,
					Lat:       ev.Position.Lat,
					Lng:       ev.Position.Lng,
					Time:      ev.PickupTime,
				})
			}
			vehicles = append(vehicles, mv)
		}
		payload, err := json.Marshal(vehicles)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Render failed", err.Error(), r.URL.Path)
			return
		}
		data.Payload = template.JS(payload)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := mapTmpl.Execute(w, data); err != nil {
		s.Log.Error().Err(err).Msg("map template render failed")
	}
}

var mapTmpl = template.Must(template.New("map").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Dispatch Map</title>
<link rel="stylesheet" href="https://unpkg.com/leaflet@1.9.4/dist/leaflet.css"/>
<script src="https://unpkg.com/leaflet@1.9.4/dist/leaflet.js"></script>
<style>
body { margin: 0; font-family: sans-serif; }
#map { position: absolute; inset: 0; }
.panel { position: fixed; top: 10px; left: 10px; width: 280px; background: white;
  border: 2px solid grey; z-index: 9999; font-size: 12px; padding: 10px; }
.panel input { width: 100%; margin: 4px 0; box-sizing: border-box; }
.panel button { width: 100%; padding: 5px; background: #007cba; color: white; border: none; cursor: pointer; }
.legend { position: fixed; bottom: 20px; left: 10px; background: white; border: 2px solid grey;
  z-index: 9999; font-size: 12px; padding: 8px 12px; }
.legend .row { margin: 3px 0; }
.swatch { display: inline-block; width: 12px; height: 12px; border-radius: 50%; margin-right: 6px; vertical-align: middle; }
.badge { display: inline-block; background: #c0392b; color: white; border-radius: 3px; padding: 1px 6px; margin-left: 6px; }
.stop-icon div { box-sizing: border-box; }
</style>
</head>
<body>
<div id="map"></div>
<div class="panel">
  <h4 style="margin:0 0 6px">Time Filter</h4>
  <form action="/filter" method="get">
    <label>Start</label>
    <input type="text" name="start" placeholder="YYYY-MM-DD HH:MM" value="{{.Start}}">
    <label>End</label>
    <input type="text" name="end" placeholder="YYYY-MM-DD HH:MM" value="{{.End}}">
    <button type="submit">Filter</button>
  </form>
  {{if .HasRun}}
  <div style="margin-top:8px">Run {{.RunID}}{{if .Degraded}}<span class="badge">{{.Degraded}} degraded</span>{{end}}</div>
  {{else}}
  <div style="margin-top:8px">No dispatch run yet. POST /v1/dispatch to plan routes.</div>
  {{end}}
</div>
<div class="legend" id="legend"><b>Vehicles</b></div>
<script>
var map = L.map('map').setView([39.7491, -8.8118], 12);
L.tileLayer('https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png', {
  attribution: '&copy; OpenStreetMap contributors'
}).addTo(map);

var vehicles = {{if .HasRun}}{{.Payload}}{{else}}[]{{end}};

function markerIcon(color, number, hasPickup, hasDropoff) {
  var style;
  if (hasPickup && hasDropoff) {
    style = 'background:linear-gradient(45deg,' + color + ' 50%,white 50%);color:black;border:2px solid ' + color + ';line-height:26px;';
  } else if (hasPickup) {
    style = 'background-color:' + color + ';color:white;line-height:30px;';
  } else {
    style = 'background-color:white;color:' + color + ';border:3px solid ' + color + ';line-height:24px;';
  }
  return L.divIcon({
    className: 'stop-icon',
    iconSize: [30, 30],
    html: '<div style="' + style + 'border-radius:50%;width:30px;height:30px;text-align:center;font-weight:bold;font-size:12px;">' + number + '</div>'
  });
}

var bounds = [];
vehicles.forEach(function (v) {
  if (v.geometry && v.geometry.length > 1) {
    L.polyline(v.geometry, { color: v.color, weight: 4, opacity: 0.8 })
      .bindPopup('Vehicle ' + v.id + ' — ' + v.distanceKm.toFixed(1) + ' km').addTo(map);
    bounds = bounds.concat(v.geometry);
  } else if (v.waypoints && v.waypoints.length > 1) {
    L.polyline(v.waypoints, { color: v.color, weight: 3, opacity: 0.5, dashArray: '5, 5' })
      .bindPopup('Vehicle ' + v.id + ' (direct, ~' + v.estimateKm.toFixed(1) + ' km)').addTo(map);
    bounds = bounds.concat(v.waypoints);
  }

  // Group sequence stops by coordinate so shared stops get one numbered marker.
  var groups = {};
  (v.sequence || []).forEach(function (stop, idx) {
    var key = stop.lat.toFixed(6) + ',' + stop.lng.toFixed(6);
    if (!groups[key]) groups[key] = { lat: stop.lat, lng: stop.lng, number: idx + 1, stops: [] };
    groups[key].stops.push(stop);
  });
  Object.keys(groups).forEach(function (key) {
    var g = groups[key];
    var pickups = g.stops.filter(function (s) { return s.type === 'pickup'; });
    var dropoffs = g.stops.filter(function (s) { return s.type === 'dropoff'; });
    var html = 'Stop ' + g.number + ':<br>';
    if (pickups.length) {
      html += '<b>PICKUPS:</b><br>';
      pickups.forEach(function (s) { html += '&bull; Request ' + s.requestId + ' at ' + (s.time || 'N/A') + '<br>'; });
    }
    if (dropoffs.length) {
      html += '<b>DROPOFFS:</b><br>';
      dropoffs.forEach(function (s) { html += '&bull; Request ' + s.requestId + '<br>'; });
    }
    html += 'Stop ID: ' + g.stops[0].stopId;
    L.marker([g.lat, g.lng], { icon: markerIcon(v.color, g.number, pickups.length > 0, dropoffs.length > 0) })
      .bindPopup(html).addTo(map);
    bounds.push([g.lat, g.lng]);
  });

  var legend = document.getElementById('legend');
  var row = document.createElement('div');
  row.className = 'row';
  row.innerHTML = '<span class="swatch" style="background:' + v.color + '"></span>' +
    v.id + ' — ' + v.requests + ' request(s)' +
    (v.state === 'degraded' ? ' <span class="badge">degraded</span>' : '');
  legend.appendChild(row);
});
if (bounds.length > 1) map.fitBounds(bounds, { padding: [40, 40] });
</script>
</body>
</html>
`))
