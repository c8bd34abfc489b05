package patient

import (
	"context"
	"strings"
)

type Place struct {
	City      string
	Latitude  *float64
	Longitude *float64
}

// Geocoder resolves free-text locations. A miss is not an error: the Place keeps the text
// with nil coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, text string) (Place, error)
}

type coords struct{ lat, lng float64 }

var indianCities = map[string]coords{
	"hyderabad":     {17.3850, 78.4867},
	"banjara hills": {17.4239, 78.4738},
	"secunderabad":  {17.4400, 78.4980},
	"bangalore":     {12.9716, 77.5946},
	"bengaluru":     {12.9716, 77.5946},
	"mumbai":        {19.0760, 72.8777},
	"delhi":         {28.6139, 77.2090},
	"new delhi":     {28.6139, 77.2090},
	"chennai":       {13.0827, 80.2707},
	"kolkata":       {22.5726, 88.3639},
	"pune":          {18.5204, 73.8567},
}

// StaticGeocoder looks locations up in a fixed city table.
type StaticGeocoder struct {
	table map[string]coords
}

func NewStaticGeocoder() *StaticGeocoder {
	return &StaticGeocoder{table: indianCities}
}

func (g *StaticGeocoder) Geocode(_ context.Context, text string) (Place, error) {
	text = strings.TrimSpace(text)
	p := Place{City: text}
	if c, ok := g.table[strings.ToLower(text)]; ok {
		lat, lng := c.lat, c.lng
		p.Latitude, p.Longitude = &lat, &lng
	}
	return p, nil
}
