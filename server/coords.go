package server

// coord is a WGS84 point for heatmap placement.
type coord struct {
	Lat float64
	Lng float64
}

// suburbCoords maps lowercase Port Moresby suburb names to approximate
// centre points. Suburbs without an entry still appear in the heatmap,
// just without a pin.
var suburbCoords = map[string]coord{
	"waigani":      {-9.4119, 147.1803},
	"boroko":       {-9.4647, 147.1926},
	"gerehu":       {-9.3941, 147.1571},
	"gordons":      {-9.4419, 147.2078},
	"hohola":       {-9.4494, 147.1704},
	"tokarara":     {-9.4364, 147.1619},
	"koki":         {-9.4789, 147.1583},
	"badili":       {-9.4836, 147.1659},
	"six mile":     {-9.4508, 147.2252},
	"eight mile":   {-9.4333, 147.2397},
	"morata":       {-9.4081, 147.1694},
	"erima":        {-9.4347, 147.2064},
	"korobosea":    {-9.4781, 147.1789},
	"ensisi":       {-9.4231, 147.1747},
	"town":         {-9.4790, 147.1494},
	"konedobu":     {-9.4672, 147.1431},
	"port moresby": {-9.4438, 147.1803},
}
