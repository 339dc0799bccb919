package trajectory

import (
	"cmp"
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"slices"
	"strings"

	"trajectory_planner/internal/drone"
	"trajectory_planner/internal/waypoint"
)

// KML structures for XML marshalling, following KML 2.2:
// https://developers.google.com/kml/documentation/kmlreference

// KML is the root element of a KML document.
type KML struct {
	XMLName   xml.Name    `xml:"kml"`
	Namespace string      `xml:"xmlns,attr"`
	Document  KMLDocument `xml:"Document"`
}

// KMLDocument contains the document metadata and features.
type KMLDocument struct {
	Name        string      `xml:"name"`
	Description string      `xml:"description,omitempty"`
	Styles      []KMLStyle  `xml:"Style,omitempty"`
	Folders     []KMLFolder `xml:"Folder"`
}

// KMLFolder groups the placemarks of one drone.
type KMLFolder struct {
	Name       string         `xml:"name"`
	Placemarks []KMLPlacemark `xml:"Placemark"`
}

// KMLStyle defines the line and icon appearance of a drone's features.
type KMLStyle struct {
	ID        string       `xml:"id,attr"`
	LineStyle KMLLineStyle `xml:"LineStyle"`
	IconStyle KMLIconStyle `xml:"IconStyle"`
}

type KMLLineStyle struct {
	Color string  `xml:"color"` // aabbggrr
	Width float64 `xml:"width"`
}

type KMLIconStyle struct {
	Color string  `xml:"color"`
	Scale float64 `xml:"scale,omitempty"`
}

// KMLPlacemark carries either a path or a single waypoint.
type KMLPlacemark struct {
	Name         string           `xml:"name"`
	Description  string           `xml:"description,omitempty"`
	StyleURL     string           `xml:"styleUrl,omitempty"`
	LineString   *KMLLineString   `xml:"LineString,omitempty"`
	Point        *KMLPoint        `xml:"Point,omitempty"`
	ExtendedData *KMLExtendedData `xml:"ExtendedData,omitempty"`
}

type KMLLineString struct {
	AltitudeMode string `xml:"altitudeMode"`
	Coordinates  string `xml:"coordinates"` // lon,lat,alt tuples separated by spaces
}

type KMLPoint struct {
	AltitudeMode string `xml:"altitudeMode"`
	Coordinates  string `xml:"coordinates"`
}

type KMLExtendedData struct {
	Data []KMLData `xml:"Data"`
}

type KMLData struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value"`
}

// Origin is the geographic position of the scene origin.
type Origin struct {
	Latitude  float64
	Longitude float64
	Altitude  float64 // metres above ground
}

// metresPerDegreeLat is the mean length of one degree of latitude.
const metresPerDegreeLat = 111320.0

// Geo converts a scene position to longitude, latitude and altitude.
// Scene X points north, -Z east and Y up, one unit per metre.
func (o Origin) Geo(x, y, z float64) (lon, lat, alt float64) {
	north, east := x, -z
	lat = o.Latitude + north/metresPerDegreeLat
	lon = o.Longitude + east/(metresPerDegreeLat*math.Cos(o.Latitude*math.Pi/180))
	return lon, lat, o.Altitude + y
}

// BuildKML renders each drone's path as a LineString with one point
// placemark per anchor. Drones without waypoints are skipped.
func BuildKML(name string, drones []drone.Drone, wps []waypoint.Waypoint, origin Origin) KML {
	doc := KMLDocument{
		Name:        name,
		Description: fmt.Sprintf("Drone trajectories relative to %.6f,%.6f.", origin.Latitude, origin.Longitude),
	}

	for _, d := range drones {
		var path []waypoint.Waypoint
		for _, w := range wps {
			if w.DroneID == d.ID {
				path = append(path, w)
			}
		}
		if len(path) == 0 {
			continue
		}
		slices.SortStableFunc(path, func(a, b waypoint.Waypoint) int { return cmp.Compare(a.Index, b.Index) })

		styleID := "style-" + d.ID
		color := kmlColor(d.Color)
		doc.Styles = append(doc.Styles, KMLStyle{
			ID:        styleID,
			LineStyle: KMLLineStyle{Color: color, Width: 3},
			IconStyle: KMLIconStyle{Color: color, Scale: 0.7},
		})

		coords := make([]string, 0, len(path)+1)
		for _, w := range path {
			coords = append(coords, kmlCoord(origin, w))
		}
		if closesLoop(path) {
			coords = append(coords, coords[0])
		}

		folder := KMLFolder{Name: d.Name}
		folder.Placemarks = append(folder.Placemarks, KMLPlacemark{
			Name:     d.Name,
			StyleURL: "#" + styleID,
			LineString: &KMLLineString{
				AltitudeMode: "relativeToGround",
				Coordinates:  strings.Join(coords, " "),
			},
		})
		for _, w := range path {
			if !w.IsAnchor() {
				continue
			}
			folder.Placemarks = append(folder.Placemarks, KMLPlacemark{
				Name:     w.Name,
				StyleURL: "#" + styleID,
				Point: &KMLPoint{
					AltitudeMode: "relativeToGround",
					Coordinates:  kmlCoord(origin, w),
				},
				ExtendedData: &KMLExtendedData{
					Data: []KMLData{
						{Name: "index", Value: w.Label()},
						{Name: "type", Value: string(w.Type)},
						{Name: "speed", Value: fmt.Sprintf("%g", w.Speed)},
					},
				},
			})
		}
		doc.Folders = append(doc.Folders, folder)
	}

	return KML{
		Namespace: "http://www.opengis.net/kml/2.2",
		Document:  doc,
	}
}

// WriteKML writes k with an XML header.
func WriteKML(w io.Writer, k KML) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(k); err != nil {
		return fmt.Errorf("encode kml: %w", err)
	}
	return enc.Close()
}

func kmlCoord(o Origin, w waypoint.Waypoint) string {
	lon, lat, alt := o.Geo(w.Position.X, w.Position.Y, w.Position.Z)
	return fmt.Sprintf("%.7f,%.7f,%.2f", lon, lat, alt)
}

// kmlColor converts "#rrggbb" to KML's opaque aabbggrr form.
func kmlColor(hex string) string {
	r, g, b := parseHexColor(hex)
	return fmt.Sprintf("ff%02x%02x%02x", b, g, r)
}
