// Package polyline encodes and decodes Google's encoded polyline format.
// The algorithm is documented at: https://developers.google.com/maps/documentation/utilities/polylinealgorithm
//
// Points use orb's [lon, lat] ordering; the wire format stores latitude first.
package polyline

import (
	"math"

	"github.com/paulmach/orb"
)

// Precision5 is the scale used by Google and OpenRouteService (5 decimal places).
const Precision5 = 1e5

// Decode decodes a precision-5 polyline into a line string.
func Decode(encoded string) orb.LineString {
	return DecodeWithPrecision(encoded, Precision5)
}

// DecodeWithPrecision decodes a polyline encoded with the given scale factor.
func DecodeWithPrecision(encoded string, scale float64) orb.LineString {
	if encoded == "" {
		return nil
	}

	var ls orb.LineString
	index := 0
	lat := 0
	lon := 0

	for index < len(encoded) {
		latDelta, next := decodeValue(encoded, index)
		index = next
		lat += latDelta

		if index >= len(encoded) {
			// truncated input, drop the dangling latitude
			break
		}

		lonDelta, next := decodeValue(encoded, index)
		index = next
		lon += lonDelta

		ls = append(ls, orb.Point{float64(lon) / scale, float64(lat) / scale})
	}

	return ls
}

// decodeValue decodes one zig-zag varint starting at index.
// Returns the value and the index just past it.
func decodeValue(encoded string, index int) (int, int) {
	shift := 0
	result := 0

	for index < len(encoded) {
		b := int(encoded[index]) - 63
		index++
		result |= (b & 0x1f) << shift
		shift += 5
		if b < 0x20 {
			break
		}
	}

	if result&1 != 0 {
		return ^(result >> 1), index
	}
	return result >> 1, index
}

// Encode encodes a line string as a precision-5 polyline.
func Encode(ls orb.LineString) string {
	if len(ls) == 0 {
		return ""
	}

	encoded := make([]byte, 0, len(ls)*4)
	prevLat := 0
	prevLon := 0

	for _, p := range ls {
		lat := int(math.Round(p.Lat() * Precision5))
		lon := int(math.Round(p.Lon() * Precision5))

		encoded = encodeValue(encoded, lat-prevLat)
		encoded = encodeValue(encoded, lon-prevLon)

		prevLat = lat
		prevLon = lon
	}

	return string(encoded)
}

func encodeValue(buf []byte, value int) []byte {
	if value < 0 {
		value = ^(value << 1)
	} else {
		value <<= 1
	}

	for value >= 0x20 {
		buf = append(buf, byte((value&0x1f)|0x20)+63)
		value >>= 5
	}
	return append(buf, byte(value)+63)
}

const earthRadiusMeters = 6371000

// Length returns the haversine length of the line string in meters.
func Length(ls orb.LineString) float64 {
	if len(ls) < 2 {
		return 0
	}

	var total float64
	for i := 1; i < len(ls); i++ {
		total += haversine(ls[i-1], ls[i])
	}
	return total
}

func haversine(a, b orb.Point) float64 {
	lat1 := a.Lat() * math.Pi / 180
	lat2 := b.Lat() * math.Pi / 180
	dLat := (b.Lat() - a.Lat()) * math.Pi / 180
	dLon := (b.Lon() - a.Lon()) * math.Pi / 180

	sinDLat := math.Sin(dLat / 2)
	sinDLon := math.Sin(dLon / 2)

	h := sinDLat*sinDLat + math.Cos(lat1)*math.Cos(lat2)*sinDLon*sinDLon
	return 2 * earthRadiusMeters * math.Asin(math.Sqrt(h))
}
