package graph

import "time"

// timeNow is the clock behind lastUpdated stamps; tests pin it.
var timeNow = time.Now

// TimestampLayout is the lastUpdated format: ISO-8601, UTC, millisecond
// precision.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

func stamp(g *Graph) {
	g.LastUpdated = timeNow().UTC().Format(TimestampLayout)
}
