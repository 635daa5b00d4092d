package bgm

// The tables below describe original songs whose layout cannot be
// reproduced by the general rules. They are keyed by song name.

// unknownRegions are copied verbatim on decode and written back as-is.
var unknownRegions = map[string][][2]int64{
	"169 ": {{0x0064, 0x1294}}, // Bowser's Castle Caves
	"117 ": {{0x1934, 0x19A0}}, // Battle Fanfare
	"322 ": {{0x0D15, 0x0D70}}, // Bowser's Castle Explodes
}

// sizeOverrides replace the declared file size when the encoded size
// matches computed: these songs leave their trailing bytes out of the
// header size.
var sizeOverrides = map[string]struct{ computed, declared int64 }{
	"117 ": {0x19A0, 0x1998},
	"322 ": {0x0D70, 0x0D64},
}

// forcedMarkers maps an absolute position to the absolute position of a
// marker that is created when a command stream's tail scan reaches it. Some
// data in Bowser's Castle is reached by a command that is not decoded yet.
var forcedMarkers = map[int64]int64{
	0x38EB: 0x39EB,
}
