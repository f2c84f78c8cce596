package fun

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"einkcode-go/apps/internal/screens"
	"einkcode-go/errcode"
	"einkcode-go/services/display"
	"einkcode-go/x/httpx"
)

const (
	CatFactsURL     = "https://meowfacts.herokuapp.com/"
	EarthquakeURL   = "https://earthquake.usgs.gov/earthquakes/feed/v1.0/summary/2.5_day.geojson"
	ISSURL          = "https://api.wheretheiss.at/v1/satellites/25544"
	UselessFactsURL = "https://uselessfacts.jsph.pl/api/v2/facts/random?language=en"

	kmToMiles = 0.621371
)

// HTTPSource pulls each mode from its public JSON feed. URLs are fields so
// tests can point them at a local server.
type HTTPSource struct {
	Client          *http.Client
	CatFactsURL     string
	EarthquakeURL   string
	ISSURL          string
	UselessFactsURL string
}

func NewHTTPSource(c *http.Client) *HTTPSource {
	if c == nil {
		c = httpx.NewClient(10 * time.Second)
	}
	return &HTTPSource{
		Client:          c,
		CatFactsURL:     CatFactsURL,
		EarthquakeURL:   EarthquakeURL,
		ISSURL:          ISSURL,
		UselessFactsURL: UselessFactsURL,
	}
}

func (h *HTTPSource) Fetch(ctx context.Context, m Mode) (display.Screen, error) {
	switch m {
	case CatFacts:
		return h.catFact(ctx)
	case Earthquake:
		return h.earthquake(ctx)
	case ISS:
		return h.iss(ctx)
	case UselessFacts:
		return h.uselessFact(ctx)
	default:
		return display.Screen{}, errcode.New(errcode.InvalidPayload, "fun.fetch", "no feed for "+m.String())
	}
}

func (h *HTTPSource) catFact(ctx context.Context) (display.Screen, error) {
	var r struct {
		Data []string `json:"data"`
	}
	if err := httpx.GetJSON(ctx, h.Client, h.CatFactsURL, nil, &r); err != nil {
		return display.Screen{}, err
	}
	if len(r.Data) == 0 || r.Data[0] == "" {
		return display.Screen{}, errcode.New(errcode.InvalidPayload, "fun.cat_facts", "empty data")
	}
	return screens.Message("Cat Facts", r.Data[0]), nil
}

func (h *HTTPSource) uselessFact(ctx context.Context) (display.Screen, error) {
	var r struct {
		Text string `json:"text"`
	}
	if err := httpx.GetJSON(ctx, h.Client, h.UselessFactsURL, nil, &r); err != nil {
		return display.Screen{}, err
	}
	if r.Text == "" {
		return display.Screen{}, errcode.New(errcode.InvalidPayload, "fun.useless_facts", "empty text")
	}
	return screens.Message("Fun Fact!", r.Text), nil
}

func (h *HTTPSource) earthquake(ctx context.Context) (display.Screen, error) {
	var r struct {
		Features []struct {
			Properties struct {
				Mag   float64 `json:"mag"`
				Place string  `json:"place"`
				Time  int64   `json:"time"`
			} `json:"properties"`
		} `json:"features"`
	}
	if err := httpx.GetJSON(ctx, h.Client, h.EarthquakeURL, nil, &r); err != nil {
		return display.Screen{}, err
	}
	if len(r.Features) == 0 {
		return display.Screen{}, errcode.New(errcode.InvalidPayload, "fun.earthquake", "no features")
	}
	p := r.Features[0].Properties
	return screens.Message("Latest Earthquake",
		"M "+strconv.FormatFloat(p.Mag, 'f', 1, 64)+" - "+p.Place,
		Pacific(time.UnixMilli(p.Time)),
	), nil
}

func (h *HTTPSource) iss(ctx context.Context) (display.Screen, error) {
	var r struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
		Altitude  float64 `json:"altitude"`
		Velocity  float64 `json:"velocity"`
	}
	if err := httpx.GetJSON(ctx, h.Client, h.ISSURL, nil, &r); err != nil {
		return display.Screen{}, err
	}
	return screens.Message("Where is the ISS?",
		"Lat/Long: "+f2(r.Latitude)+", "+f2(r.Longitude),
		"Altitude: "+f2(r.Altitude*kmToMiles)+" mi",
		"Velocity: "+f2(r.Velocity*kmToMiles)+" mph",
	), nil
}

func f2(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }

// Pacific formats t as US Pacific wall time, "2006-01-02 15:04 PST".
// The DST rule is computed so no zoneinfo database is needed on the device.
func Pacific(t time.Time) string {
	u := t.UTC()
	if pacificDST(u) {
		return u.Add(-7*time.Hour).Format("2006-01-02 15:04") + " PDT"
	}
	return u.Add(-8*time.Hour).Format("2006-01-02 15:04") + " PST"
}

// pacificDST: second Sunday of March 02:00 PST to first Sunday of November
// 02:00 PDT.
func pacificDST(u time.Time) bool {
	y := u.Year()
	start := nthSunday(y, time.March, 2).Add(2*time.Hour + 8*time.Hour)
	end := nthSunday(y, time.November, 1).Add(2*time.Hour + 7*time.Hour)
	return !u.Before(start) && u.Before(end)
}

func nthSunday(y int, m time.Month, n int) time.Time {
	d := time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
	off := (7 - int(d.Weekday())) % 7
	return d.AddDate(0, 0, off+7*(n-1))
}
