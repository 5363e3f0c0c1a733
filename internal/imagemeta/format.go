package imagemeta

import (
	"math"
	"strconv"
)

var sizeUnits = []string{"Bytes", "KB", "MB", "GB"}

// FormatBytes renders a byte count with binary units and one decimal place.
// A nil count renders as "Unknown".
func FormatBytes(n *int64) string {
	if n == nil {
		return "Unknown"
	}
	return FormatSize(*n)
}

// FormatSize renders a byte count with binary units and one decimal place,
// dropping a trailing ".0" (1536 -> "1.5 KB", 2048 -> "2 KB").
func FormatSize(n int64) string {
	if n == 0 {
		return "0 Bytes"
	}
	if n < 0 {
		return "Unknown"
	}

	const k = 1024.0
	i := int(math.Floor(math.Log(float64(n)) / math.Log(k)))
	if i >= len(sizeUnits) {
		i = len(sizeUnits) - 1
	}
	value := math.Round(float64(n)/math.Pow(k, float64(i))*10) / 10
	return strconv.FormatFloat(value, 'f', -1, 64) + " " + sizeUnits[i]
}
